package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/multicreator/mintpipe"
)

type fakeScorer struct {
	score int
	err   error
	calls int
}

func (s *fakeScorer) Score(ctx context.Context, vision string) (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	return s.score, nil
}

func newTestGate(scorer OriginalityScorer) *OriginalityGate {
	return NewOriginalityGate(scorer, 30, 3, time.Second, time.Millisecond)
}

func TestOriginalityGateThresholdBoundary(t *testing.T) {
	// 29 passes; 30 rejects. The threshold is inclusive-reject.
	score, err := newTestGate(&fakeScorer{score: 29}).Check(context.Background(), "a vision")
	if err != nil {
		t.Fatalf("score 29 should pass, got %v", err)
	}
	if score != 29 {
		t.Fatalf("expected measured score 29, got %d", score)
	}

	score, err = newTestGate(&fakeScorer{score: 30}).Check(context.Background(), "a vision")
	if err == nil {
		t.Fatalf("score 30 should reject")
	}
	var pe *mintpipe.PipelineError
	if !errors.As(err, &pe) || pe.Kind != mintpipe.KindOriginalityRejected {
		t.Fatalf("expected originality_rejected kind, got %v", err)
	}
	if pe.Score != 30 || score != 30 {
		t.Fatalf("rejection must carry the measured score, got %d", pe.Score)
	}
}

func TestOriginalityGateRetryBudget(t *testing.T) {
	scorer := &fakeScorer{err: fmt.Errorf("connection refused")}
	_, err := newTestGate(scorer).Check(context.Background(), "a vision")
	if err == nil {
		t.Fatalf("expected scoring_unavailable after exhausted retries")
	}
	var pe *mintpipe.PipelineError
	if !errors.As(err, &pe) || pe.Kind != mintpipe.KindScoringUnavailable {
		t.Fatalf("expected scoring_unavailable kind, got %v", err)
	}
	if scorer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", scorer.calls)
	}
}

func TestOriginalityGateRecoversWithinBudget(t *testing.T) {
	scorer := &flakyScorer{failures: 2, score: 10}
	score, err := newTestGate(scorer).Check(context.Background(), "a vision")
	if err != nil {
		t.Fatalf("expected recovery within budget, got %v", err)
	}
	if score != 10 {
		t.Fatalf("expected score 10, got %d", score)
	}
}

type flakyScorer struct {
	failures int
	score    int
}

func (s *flakyScorer) Score(ctx context.Context, vision string) (int, error) {
	if s.failures > 0 {
		s.failures--
		return 0, fmt.Errorf("temporarily unavailable")
	}
	return s.score, nil
}
