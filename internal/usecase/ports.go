package usecase

import (
	"context"
	"math/big"

	"github.com/multicreator/mintpipe"
)

// DedupRegistry is the only state shared across concurrent pipeline
// runs. CheckAndReserve must be atomic: of N concurrent calls with the
// same fingerprint, exactly one observes reserved=true. Reservations
// taken by CheckAndReserve may expire as a crash-recovery backstop;
// Persist marks a fingerprint permanently reserved once its mint is
// confirmed.
type DedupRegistry interface {
	CheckAndReserve(ctx context.Context, fp mintpipe.Fingerprint) (bool, error)
	Release(ctx context.Context, fp mintpipe.Fingerprint) error
	Persist(ctx context.Context, fp mintpipe.Fingerprint) error
}

// OriginalityScorer rates a project vision against existing projects,
// returning an integer similarity in [0,100].
type OriginalityScorer interface {
	Score(ctx context.Context, vision string) (int, error)
}

// StorageBackend is one durable content store. Put must return an
// address under which Get can retrieve the same bytes.
type StorageBackend interface {
	Kind() mintpipe.BackendKind
	Put(ctx context.Context, data []byte, mimeType string) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
}

type ChainState int

const (
	ChainPending ChainState = iota
	ChainConfirmed
	ChainFailed
)

// ChainStatus is the observed state of a submitted mint transaction.
type ChainStatus struct {
	State   ChainState
	TokenID *big.Int
}

// ChainClient submits and observes on-chain mint transactions.
// SubmitMint is not idempotent; callers must never retry it blindly.
type ChainClient interface {
	SubmitMint(ctx context.Context, metadataURI, backupURI string, price *big.Int, creators []mintpipe.CreatorShare) (string, error)
	Confirm(ctx context.Context, txRef string) (ChainStatus, error)
}

// EventSink receives stage transitions for watchers. Publishing is
// best-effort; a sink failure never fails a run.
type EventSink interface {
	Publish(ctx context.Context, event mintpipe.StageEvent) error
}

// MintedStore persists confirmed mints.
type MintedStore interface {
	Record(ctx context.Context, record mintpipe.MintedRecord) error
}
