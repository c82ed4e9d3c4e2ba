package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/multicreator/mintpipe"
)

// OriginalityGate submits vision text to the similarity scorer and
// enforces the pass/fail threshold. The scorer call is a network
// round-trip and gets a bounded retry budget; a rejection is a policy
// decision, not a failure, and is never retried.
type OriginalityGate struct {
	scorer         OriginalityScorer
	threshold      int
	attempts       int
	attemptTimeout time.Duration
	retryInterval  time.Duration
}

func NewOriginalityGate(scorer OriginalityScorer, threshold, attempts int, attemptTimeout, retryInterval time.Duration) *OriginalityGate {
	return &OriginalityGate{
		scorer:         scorer,
		threshold:      threshold,
		attempts:       attempts,
		attemptTimeout: attemptTimeout,
		retryInterval:  retryInterval,
	}
}

// Check scores the vision text and evaluates it against the threshold.
// The threshold is inclusive-reject: score >= threshold fails.
// Returns the measured score either way so rejections can surface it.
func (g *OriginalityGate) Check(ctx context.Context, vision string) (int, error) {

	var score int
	op := func() error {
		cctx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()

		s, err := g.scorer.Score(cctx, vision)
		if err != nil {
			return err
		}
		score = s
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = g.retryInterval
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(g.attempts-1)), ctx))
	if err != nil {
		return 0, mintpipe.WrapErr(mintpipe.KindScoringUnavailable, err, "similarity scorer unreachable after retries")
	}

	if score >= g.threshold {
		pe := mintpipe.Errf(mintpipe.KindOriginalityRejected,
			"vision similarity %d%% meets or exceeds threshold %d%%, revise the project vision", score, g.threshold)
		pe.Score = score
		return score, pe
	}

	return score, nil
}
