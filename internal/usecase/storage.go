package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/multicreator/mintpipe"
)

// UploadOutcome carries the receipts of a dual upload. Backup is nil
// when the backup network was unreachable; the run then continues in a
// degraded state and BackupErr records why.
type UploadOutcome struct {
	Primary   mintpipe.StorageReceipt
	Backup    *mintpipe.StorageReceipt
	BackupErr error
}

// Degraded reports whether the asset is stored without its backup copy.
func (o UploadOutcome) Degraded() bool {
	return o.Backup == nil
}

// DualStorageUploader pushes content to the primary object store and
// the backup archive network concurrently. Primary failure is fatal to
// the run; backup failure only degrades it.
type DualStorageUploader struct {
	primary        StorageBackend
	backup         StorageBackend
	attempts       int
	attemptTimeout time.Duration
	retryInterval  time.Duration
}

func NewDualStorageUploader(primary, backup StorageBackend, attempts int, attemptTimeout, retryInterval time.Duration) *DualStorageUploader {
	return &DualStorageUploader{
		primary:        primary,
		backup:         backup,
		attempts:       attempts,
		attemptTimeout: attemptTimeout,
		retryInterval:  retryInterval,
	}
}

// Upload stores the asset on both backends, awaiting both before
// returning. Each backend gets its own bounded retry budget.
func (u *DualStorageUploader) Upload(ctx context.Context, asset mintpipe.Asset) (UploadOutcome, error) {

	var outcome UploadOutcome

	// The group context must not cancel the primary upload when the
	// backup fails, so the backup goroutine never returns an error.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr, err := u.putWithRetry(gctx, u.primary, asset.Data, asset.MimeType)
		if err != nil {
			return mintpipe.WrapErr(mintpipe.KindStorageUnavailable, err, "primary storage upload failed")
		}
		outcome.Primary = mintpipe.StorageReceipt{Backend: u.primary.Kind(), Address: addr}
		return nil
	})

	g.Go(func() error {
		addr, err := u.putWithRetry(gctx, u.backup, asset.Data, asset.MimeType)
		if err != nil {
			outcome.BackupErr = mintpipe.WrapErr(mintpipe.KindStorageUnavailable, err, "backup storage upload failed")
			return nil
		}
		outcome.Backup = &mintpipe.StorageReceipt{Backend: u.backup.Kind(), Address: addr}
		return nil
	})

	if err := g.Wait(); err != nil {
		return UploadOutcome{}, err
	}
	return outcome, nil
}

// UploadMetadata serializes the metadata document and stores it on the
// primary backend only; the minted record addresses content through the
// primary network.
func (u *DualStorageUploader) UploadMetadata(ctx context.Context, metadata mintpipe.MintMetadata) (mintpipe.StorageReceipt, error) {

	data, err := json.Marshal(metadata)
	if err != nil {
		return mintpipe.StorageReceipt{}, mintpipe.WrapErr(mintpipe.KindStorageUnavailable, err, "failed to serialize metadata")
	}

	addr, err := u.putWithRetry(ctx, u.primary, data, "application/json")
	if err != nil {
		return mintpipe.StorageReceipt{}, mintpipe.WrapErr(mintpipe.KindStorageUnavailable, err, "metadata upload failed")
	}
	return mintpipe.StorageReceipt{Backend: u.primary.Kind(), Address: addr}, nil
}

func (u *DualStorageUploader) putWithRetry(ctx context.Context, backend StorageBackend, data []byte, mimeType string) (string, error) {

	var addr string
	op := func() error {
		cctx, cancel := context.WithTimeout(ctx, u.attemptTimeout)
		defer cancel()

		a, err := backend.Put(cctx, data, mimeType)
		if err != nil {
			return err
		}
		addr = a
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = u.retryInterval
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(u.attempts-1)), ctx))
	if err != nil {
		return "", err
	}
	return addr, nil
}
