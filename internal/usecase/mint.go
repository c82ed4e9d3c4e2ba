package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/multicreator/mintpipe"
)

var tracer = otel.Tracer("mint")

// Coordinator drives a MintRequest through the pipeline:
// Received -> Fingerprinted -> DedupChecked -> OriginalityChecked ->
// SharesValidated -> Stored -> MetadataFinalized -> Submitted ->
// Confirmed, short-circuiting to Failed on the first hard error.
//
// The dedup reservation taken at DedupChecked is released on every
// later failure except ConfirmationTimeout, whose on-chain outcome is
// ambiguous: releasing there would let a naive resubmission mint the
// same content twice.
type Coordinator struct {
	registry DedupRegistry
	gate     *OriginalityGate
	uploader *DualStorageUploader
	chain    ChainClient
	events   EventSink
	store    MintedStore

	confirmTimeout time.Duration
	confirmPoll    time.Duration
}

func NewCoordinator(
	registry DedupRegistry,
	gate *OriginalityGate,
	uploader *DualStorageUploader,
	chain ChainClient,
	events EventSink,
	store MintedStore,
	confirmTimeout time.Duration,
	confirmPoll time.Duration,
) *Coordinator {
	return &Coordinator{
		registry:       registry,
		gate:           gate,
		uploader:       uploader,
		chain:          chain,
		events:         events,
		store:          store,
		confirmTimeout: confirmTimeout,
		confirmPoll:    confirmPoll,
	}
}

// Mint runs one pipeline pass. It always returns a terminal MintResult;
// no error escapes untagged.
func (co *Coordinator) Mint(ctx context.Context, req mintpipe.MintRequest) mintpipe.MintResult {

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	ctx, span := tracer.Start(ctx, "Mint.Coordinator.Mint")
	defer span.End()
	span.SetAttributes(attribute.String("runId", runID))

	co.emit(ctx, runID, mintpipe.StageReceived, nil)

	// Received -> Fingerprinted
	fp, err := FingerprintAsset(req.Asset)
	if err != nil {
		return co.fail(ctx, runID, "", mintpipe.StageFingerprinted, err)
	}
	co.emit(ctx, runID, mintpipe.StageFingerprinted, nil)

	// Fingerprinted -> DedupChecked. The reservation is scoped: any
	// later failure path below must pass through co.fail, which
	// releases it.
	reserved, rerr := co.registry.CheckAndReserve(ctx, fp)
	if rerr != nil {
		return co.fail(ctx, runID, "", mintpipe.StageDedupChecked,
			mintpipe.WrapErr(mintpipe.KindStorageUnavailable, rerr, "dedup registry unreachable"))
	}
	if !reserved {
		return co.fail(ctx, runID, "", mintpipe.StageDedupChecked,
			mintpipe.Errf(mintpipe.KindDuplicateRejected, "identical content has already been submitted"))
	}
	co.emit(ctx, runID, mintpipe.StageDedupChecked, nil)

	if err := co.checkCanceled(ctx); err != nil {
		return co.fail(ctx, runID, fp, mintpipe.StageDedupChecked, err)
	}

	// DedupChecked -> OriginalityChecked. Runs before any storage
	// write so rejected submissions never pay storage costs.
	if _, err := co.gate.Check(ctx, req.Vision); err != nil {
		return co.fail(ctx, runID, fp, mintpipe.StageOriginalityChecked, err)
	}
	co.emit(ctx, runID, mintpipe.StageOriginalityChecked, nil)

	// OriginalityChecked -> SharesValidated
	if err := ValidateShares(req.Creators); err != nil {
		return co.fail(ctx, runID, fp, mintpipe.StageSharesValidated, err)
	}
	co.emit(ctx, runID, mintpipe.StageSharesValidated, nil)

	if err := co.checkCanceled(ctx); err != nil {
		return co.fail(ctx, runID, fp, mintpipe.StageSharesValidated, err)
	}

	// SharesValidated -> Stored
	outcome, err := co.uploader.Upload(ctx, req.Asset)
	if err != nil {
		return co.fail(ctx, runID, fp, mintpipe.StageStored, err)
	}
	co.emit(ctx, runID, mintpipe.StageStored, nil)

	// Stored -> MetadataFinalized
	metadata := mintpipe.MintMetadata{
		Name:              req.Title,
		Description:       req.Description,
		Vision:            req.Vision,
		RightsDeclaration: req.RightsDeclaration,
		Image:             outcome.Primary.URI(),
		Fingerprint:       string(fp),
		Creators:          req.Creators,
	}
	backupURI := ""
	if outcome.Backup != nil {
		metadata.ArweaveBackup = outcome.Backup.URI()
		backupURI = outcome.Backup.URI()
	}

	metadataReceipt, err := co.uploader.UploadMetadata(ctx, metadata)
	if err != nil {
		return co.fail(ctx, runID, fp, mintpipe.StageMetadataFinalized, err)
	}
	co.emit(ctx, runID, mintpipe.StageMetadataFinalized, nil)

	// Last cancellation point. Once the transaction is broadcast it
	// cannot be withdrawn and the run must observe its outcome.
	if err := co.checkCanceled(ctx); err != nil {
		return co.fail(ctx, runID, fp, mintpipe.StageMetadataFinalized, err)
	}

	// MetadataFinalized -> Submitted. Never retried: a second submit
	// of an unconfirmed transaction risks a double mint.
	txRef, err := co.chain.SubmitMint(ctx, metadataReceipt.URI(), backupURI, req.Price, req.Creators)
	if err != nil {
		return co.fail(ctx, runID, fp, mintpipe.StageSubmitted,
			mintpipe.AsPipelineError(err, mintpipe.KindChainSubmissionFailed))
	}
	co.emit(ctx, runID, mintpipe.StageSubmitted, nil)

	// The transaction is broadcast: from here cancellation is no
	// longer honored and the run must observe the outcome even if the
	// caller has gone away.
	ctx = context.WithoutCancel(ctx)

	// Submitted -> Confirmed
	status, err := co.awaitConfirmation(ctx, txRef)
	if err != nil {
		return co.failWithResult(ctx, runID, fp, mintpipe.StageSubmitted, err, mintpipe.MintResult{
			RunID:           runID,
			TxRef:           txRef,
			MetadataAddress: metadataReceipt.Address,
			Degraded:        outcome.Degraded(),
		})
	}
	co.emit(ctx, runID, mintpipe.StageConfirmed, nil)

	// Confirmed content may never mint again; lift the crash-recovery
	// TTL from its reservation.
	if err := co.registry.Persist(ctx, fp); err != nil {
		slog.ErrorContext(ctx, "failed to persist fingerprint reservation",
			slog.String("runId", runID),
			slog.String("error", err.Error()),
		)
	}

	result := mintpipe.MintResult{
		RunID:           runID,
		Stage:           mintpipe.StageConfirmed,
		TokenID:         status.TokenID,
		TxRef:           txRef,
		MetadataAddress: metadataReceipt.Address,
		Degraded:        outcome.Degraded(),
	}
	if outcome.Degraded() {
		result.Warning = "stored without backup; retry the archive upload separately"
	}

	if co.store != nil {
		record := mintpipe.MintedRecord{
			TokenID:     status.TokenID.String(),
			TxRef:       txRef,
			Fingerprint: fp,
			Title:       req.Title,
			MetadataURI: metadataReceipt.URI(),
			BackupURI:   backupURI,
			Creators:    req.Creators,
			Price:       req.Price.String(),
			Degraded:    outcome.Degraded(),
			MintedAt:    time.Now(),
		}
		if err := co.store.Record(ctx, record); err != nil {
			// The mint is on-chain already; record-keeping failures
			// must not fail the run.
			slog.ErrorContext(ctx, "failed to persist minted record",
				slog.String("runId", runID),
				slog.String("error", err.Error()),
			)
		}
	}

	return result
}

func (co *Coordinator) awaitConfirmation(ctx context.Context, txRef string) (ChainStatus, error) {

	deadline := time.NewTimer(co.confirmTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(co.confirmPoll)
	defer ticker.Stop()

	for {
		status, err := co.chain.Confirm(ctx, txRef)
		if err != nil {
			// A failed receipt lookup leaves the on-chain state
			// unknown; never terminal. Keep polling until the window
			// closes and the run degrades to ConfirmationTimeout.
			slog.WarnContext(ctx, "confirmation poll failed",
				slog.String("txRef", txRef),
				slog.String("error", err.Error()),
			)
		} else {
			switch status.State {
			case ChainConfirmed:
				return status, nil
			case ChainFailed:
				return ChainStatus{}, mintpipe.Errf(mintpipe.KindChainSubmissionFailed,
					"mint transaction %s reverted on chain", txRef)
			}
		}

		select {
		case <-deadline.C:
			return ChainStatus{}, mintpipe.Errf(mintpipe.KindConfirmationTimeout,
				"transaction %s still unconfirmed, poll before resubmitting", txRef)
		case <-ticker.C:
		}
	}
}

func (co *Coordinator) checkCanceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return mintpipe.WrapErr(mintpipe.KindCanceled, err, "run canceled by caller")
	}
	return nil
}

func (co *Coordinator) fail(ctx context.Context, runID string, fp mintpipe.Fingerprint, stage mintpipe.Stage, err error) mintpipe.MintResult {
	return co.failWithResult(ctx, runID, fp, stage, err, mintpipe.MintResult{RunID: runID})
}

func (co *Coordinator) failWithResult(ctx context.Context, runID string, fp mintpipe.Fingerprint, stage mintpipe.Stage, err error, base mintpipe.MintResult) mintpipe.MintResult {

	pe := mintpipe.AsPipelineError(err, mintpipe.KindChainSubmissionFailed).WithStage(stage)

	terminal := mintpipe.StageFailed
	if fp != "" && pe.Kind != mintpipe.KindConfirmationTimeout {
		// Release the reservation so a corrected resubmission of the
		// same asset can go through. Events use the release context
		// even when the run's own context is already canceled.
		rctx := context.WithoutCancel(ctx)
		if rerr := co.registry.Release(rctx, fp); rerr != nil {
			slog.ErrorContext(ctx, "failed to release dedup reservation",
				slog.String("runId", runID),
				slog.String("error", rerr.Error()),
			)
		}
		if stage == mintpipe.StageMetadataFinalized || stage == mintpipe.StageSubmitted {
			// Asset and metadata are already stored but nothing
			// minted; the run rolls back to a reservable state with no
			// chain-side effects to undo.
			terminal = mintpipe.StageReverted
		}
	}

	co.emit(ctx, runID, terminal, pe)

	base.Stage = terminal
	base.Err = pe
	return base
}

func (co *Coordinator) emit(ctx context.Context, runID string, stage mintpipe.Stage, pe *mintpipe.PipelineError) {
	if co.events == nil {
		return
	}
	event := mintpipe.StageEvent{
		RunID: runID,
		Stage: stage,
		At:    time.Now(),
	}
	if pe != nil {
		event.Error = pe.Error()
	}
	if err := co.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		slog.DebugContext(ctx, "failed to publish stage event",
			slog.String("runId", runID),
			slog.String("error", err.Error()),
		)
	}
}
