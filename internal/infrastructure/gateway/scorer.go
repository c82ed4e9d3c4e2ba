package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"go.opentelemetry.io/otel"

	"github.com/multicreator/mintpipe/internal/usecase"
)

var tracer = otel.Tracer("scorer")

const scorerSystemPrompt = "You compare an NFT project vision against existing projects. " +
	"Reply with a single integer from 0 to 100: the similarity of the vision to existing projects. " +
	"Reply with the number only."

// ScorerGateway rates vision text through an OpenAI-style chat
// completion endpoint. Scores are cached per text: the model call is
// the most expensive hop in the pipeline and identical drafts are
// resubmitted often while users iterate on the rest of the form.
type ScorerGateway struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
	cache    *cache.Cache
}

func NewScorerGateway(endpoint, apiKey, model string) *ScorerGateway {
	return &ScorerGateway{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		cache:    cache.New(10*time.Minute, 15*time.Minute),
	}
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (g *ScorerGateway) Score(ctx context.Context, vision string) (int, error) {
	ctx, span := tracer.Start(ctx, "Scorer.Gateway.Score")
	defer span.End()

	key := fmt.Sprintf("%x", xxh3.HashString(vision))
	if cached, found := g.cache.Get(key); found {
		return cached.(int), nil
	}

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: scorerSystemPrompt},
			{Role: "user", Content: vision},
		},
		MaxTokens: 10,
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, errors.Wrap(err, "failed to build scorer request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return 0, errors.Wrap(err, "scorer request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("scorer returned status %d", resp.StatusCode)
		span.RecordError(err)
		return 0, err
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, errors.Wrap(err, "failed to decode scorer response")
	}
	if len(parsed.Choices) == 0 {
		return 0, fmt.Errorf("scorer returned no choices")
	}

	score, err := strconv.Atoi(strings.TrimSpace(parsed.Choices[0].Message.Content))
	if err != nil {
		return 0, errors.Wrapf(err, "scorer returned non-numeric content %q", parsed.Choices[0].Message.Content)
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	g.cache.Set(key, score, cache.DefaultExpiration)
	return score, nil
}

var _ usecase.OriginalityScorer = (*ScorerGateway)(nil)
