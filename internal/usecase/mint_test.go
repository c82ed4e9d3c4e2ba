package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/multicreator/mintpipe"
)

type fakeRegistry struct {
	mu       sync.Mutex
	reserved map[mintpipe.Fingerprint]struct{}
	releases int
	persists int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{reserved: make(map[mintpipe.Fingerprint]struct{})}
}

func (r *fakeRegistry) CheckAndReserve(ctx context.Context, fp mintpipe.Fingerprint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reserved[fp]; ok {
		return false, nil
	}
	r.reserved[fp] = struct{}{}
	return true, nil
}

func (r *fakeRegistry) Release(ctx context.Context, fp mintpipe.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, fp)
	r.releases++
	return nil
}

func (r *fakeRegistry) Persist(ctx context.Context, fp mintpipe.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reserved[fp] = struct{}{}
	r.persists++
	return nil
}

func (r *fakeRegistry) isReserved(fp mintpipe.Fingerprint) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.reserved[fp]
	return ok
}

type fakeChain struct {
	mu          sync.Mutex
	submits     int
	submitErr   error
	onSubmit    func() // runs once the transaction is broadcast
	confirmErrs int    // Confirm calls failing before answering
	pendingFor  int    // Confirm calls answering Pending before Confirmed
	revert      bool
	respectCtx  bool // Confirm propagates ctx errors, like the rpc client
	tokenID     *big.Int
}

func (c *fakeChain) SubmitMint(ctx context.Context, metadataURI, backupURI string, price *big.Int, creators []mintpipe.CreatorShare) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submits++
	if c.submitErr != nil {
		return "", c.submitErr
	}
	if c.onSubmit != nil {
		c.onSubmit()
	}
	return "0xdeadbeef", nil
}

func (c *fakeChain) Confirm(ctx context.Context, txRef string) (ChainStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.respectCtx {
		if err := ctx.Err(); err != nil {
			return ChainStatus{}, err
		}
	}
	if c.confirmErrs > 0 {
		c.confirmErrs--
		return ChainStatus{}, fmt.Errorf("receipt lookup failed")
	}
	if c.revert {
		return ChainStatus{State: ChainFailed}, nil
	}
	if c.pendingFor > 0 {
		c.pendingFor--
		return ChainStatus{State: ChainPending}, nil
	}
	return ChainStatus{State: ChainConfirmed, TokenID: c.tokenID}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	stages []mintpipe.Stage
}

func (e *fakeEvents) Publish(ctx context.Context, event mintpipe.StageEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stages = append(e.stages, event.Stage)
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	records []mintpipe.MintedRecord
}

func (s *fakeStore) Record(ctx context.Context, record mintpipe.MintedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

type pipelineFixture struct {
	registry *fakeRegistry
	scorer   *fakeScorer
	primary  *fakeBackend
	backup   *fakeBackend
	chain    *fakeChain
	events   *fakeEvents
	store    *fakeStore
}

func newPipeline(t *testing.T) (*Coordinator, *pipelineFixture) {
	t.Helper()
	f := &pipelineFixture{
		registry: newFakeRegistry(),
		scorer:   &fakeScorer{score: 10},
		primary:  newFakeBackend(mintpipe.BackendIPFS),
		backup:   newFakeBackend(mintpipe.BackendArweave),
		chain:    &fakeChain{tokenID: big.NewInt(7)},
		events:   &fakeEvents{},
		store:    &fakeStore{},
	}
	gate := NewOriginalityGate(f.scorer, 30, 3, time.Second, time.Millisecond)
	uploader := NewDualStorageUploader(f.primary, f.backup, 3, time.Second, time.Millisecond)
	co := NewCoordinator(f.registry, gate, uploader, f.chain, f.events, f.store,
		200*time.Millisecond, time.Millisecond)
	return co, f
}

func testRequest() mintpipe.MintRequest {
	return mintpipe.MintRequest{
		Asset:             mintpipe.Asset{Data: []byte("artwork bytes"), MimeType: "image/png", Filename: "art.png"},
		Title:             "Genesis Piece",
		Description:       "first of its kind",
		Vision:            "a cooperative art project",
		RightsDeclaration: "all rights reserved to creators",
		Price:             big.NewInt(500000000000000000), // 0.5 ETH
		Creators:          []mintpipe.CreatorShare{{Address: addrA, Share: 100}},
	}
}

func TestMintEndToEnd(t *testing.T) {
	co, f := newPipeline(t)
	f.chain.pendingFor = 2

	result := co.Mint(context.Background(), testRequest())
	if !result.Succeeded() {
		t.Fatalf("expected confirmed mint, got %+v", result.Err)
	}
	if result.TokenID == nil || result.TokenID.Int64() != 7 {
		t.Fatalf("expected token id 7, got %v", result.TokenID)
	}
	if result.TxRef == "" || result.MetadataAddress == "" {
		t.Fatalf("success must carry tx reference and metadata address")
	}
	if result.Degraded {
		t.Fatalf("both uploads succeeded, result must not be degraded")
	}

	// The finalized metadata must resolve from the primary backend to
	// a JSON document whose image points at the primary asset address.
	data, err := f.primary.Get(context.Background(), result.MetadataAddress)
	if err != nil {
		t.Fatalf("metadata not resolvable: %v", err)
	}
	var metadata mintpipe.MintMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		t.Fatalf("metadata is not valid json: %v", err)
	}
	assetAddr, _ := f.primary.Put(context.Background(), []byte("artwork bytes"), "image/png")
	if metadata.Image != "ipfs://"+assetAddr {
		t.Fatalf("metadata image %q does not point at primary asset address", metadata.Image)
	}
	if metadata.ArweaveBackup == "" {
		t.Fatalf("metadata must reference the backup address")
	}

	if len(f.store.records) != 1 {
		t.Fatalf("expected one minted record, got %d", len(f.store.records))
	}
	if f.store.records[0].TokenID != "7" {
		t.Fatalf("unexpected recorded token id %s", f.store.records[0].TokenID)
	}

	last := f.events.stages[len(f.events.stages)-1]
	if last != mintpipe.StageConfirmed {
		t.Fatalf("expected final stage event confirmed, got %s", last)
	}

	if f.registry.persists != 1 {
		t.Fatalf("confirmed fingerprint must be persisted, saw %d persists", f.registry.persists)
	}
}

func TestMintDuplicateRejected(t *testing.T) {
	co, f := newPipeline(t)
	req := testRequest()

	fp, _ := FingerprintAsset(req.Asset)
	f.registry.CheckAndReserve(context.Background(), fp)

	result := co.Mint(context.Background(), req)
	if result.Succeeded() {
		t.Fatalf("expected duplicate rejection")
	}
	if result.Err.Kind != mintpipe.KindDuplicateRejected {
		t.Fatalf("expected duplicate_rejected, got %s", result.Err.Kind)
	}
	// The loser must not release the winner's reservation.
	if !f.registry.isReserved(fp) {
		t.Fatalf("original reservation was released by the rejected run")
	}
	if f.primary.puts != 0 || f.backup.puts != 0 {
		t.Fatalf("no storage write may happen for a rejected duplicate")
	}
}

func TestMintOriginalityRejectionReleasesReservation(t *testing.T) {
	co, f := newPipeline(t)
	f.scorer.score = 55
	req := testRequest()

	result := co.Mint(context.Background(), req)
	if result.Err == nil || result.Err.Kind != mintpipe.KindOriginalityRejected {
		t.Fatalf("expected originality rejection, got %+v", result.Err)
	}
	if result.Err.Stage != mintpipe.StageOriginalityChecked {
		t.Fatalf("rejection must carry its stage, got %s", result.Err.Stage)
	}
	if f.primary.puts != 0 {
		t.Fatalf("rejected submissions must not pay storage costs")
	}

	// A corrected resubmission with the same asset must be reservable.
	f.scorer.score = 10
	result = co.Mint(context.Background(), req)
	if !result.Succeeded() {
		t.Fatalf("corrected resubmission should mint, got %+v", result.Err)
	}
}

func TestMintPrimaryStorageFailure(t *testing.T) {
	co, f := newPipeline(t)
	f.primary.fail = true
	f.backup.fail = true
	req := testRequest()

	result := co.Mint(context.Background(), req)
	if result.Err == nil || result.Err.Kind != mintpipe.KindStorageUnavailable {
		t.Fatalf("expected storage_unavailable, got %+v", result.Err)
	}
	if result.Err.Stage != mintpipe.StageStored {
		t.Fatalf("expected failure at stored stage, got %s", result.Err.Stage)
	}

	fp, _ := FingerprintAsset(req.Asset)
	if f.registry.isReserved(fp) {
		t.Fatalf("reservation must be released after a storage failure")
	}
}

func TestMintBackupFailureDegradesSuccess(t *testing.T) {
	co, f := newPipeline(t)
	f.backup.fail = true

	result := co.Mint(context.Background(), testRequest())
	if !result.Succeeded() {
		t.Fatalf("backup failure must not fail the run, got %+v", result.Err)
	}
	if !result.Degraded || result.Warning == "" {
		t.Fatalf("expected degraded success with warning, got %+v", result)
	}
	if len(f.store.records) != 1 || !f.store.records[0].Degraded {
		t.Fatalf("degraded state must be recorded")
	}
}

func TestMintChainSubmissionFailureReleases(t *testing.T) {
	co, f := newPipeline(t)
	f.chain.submitErr = mintpipe.Errf(mintpipe.KindChainSubmissionFailed, "nonce too low")
	req := testRequest()

	result := co.Mint(context.Background(), req)
	if result.Err == nil || result.Err.Kind != mintpipe.KindChainSubmissionFailed {
		t.Fatalf("expected chain_submission_failed, got %+v", result.Err)
	}
	if result.Stage != mintpipe.StageReverted {
		t.Fatalf("stored-but-unminted failure must terminate reverted, got %s", result.Stage)
	}
	if f.chain.submits != 1 {
		t.Fatalf("chain submission must never be retried, saw %d submits", f.chain.submits)
	}

	fp, _ := FingerprintAsset(req.Asset)
	if f.registry.isReserved(fp) {
		t.Fatalf("reservation must be released after a submission failure")
	}
}

func TestMintRevertedTransactionReleases(t *testing.T) {
	co, f := newPipeline(t)
	f.chain.revert = true
	req := testRequest()

	result := co.Mint(context.Background(), req)
	if result.Err == nil || result.Err.Kind != mintpipe.KindChainSubmissionFailed {
		t.Fatalf("expected chain_submission_failed for reverted tx, got %+v", result.Err)
	}
	if result.Stage != mintpipe.StageReverted {
		t.Fatalf("on-chain revert must terminate reverted, got %s", result.Stage)
	}
	if result.TxRef == "" {
		t.Fatalf("reverted result must carry the tx reference")
	}

	// The revert is final: the content never minted, so it must be
	// reservable again.
	fp, _ := FingerprintAsset(req.Asset)
	if f.registry.isReserved(fp) {
		t.Fatalf("reservation must be released after an on-chain revert")
	}
}

func TestMintConfirmationTimeoutKeepsReservation(t *testing.T) {
	co, f := newPipeline(t)
	f.chain.pendingFor = 1 << 30 // never confirms within the test window
	req := testRequest()

	result := co.Mint(context.Background(), req)
	if result.Err == nil || result.Err.Kind != mintpipe.KindConfirmationTimeout {
		t.Fatalf("expected confirmation_timeout, got %+v", result.Err)
	}
	if result.TxRef == "" {
		t.Fatalf("timeout result must carry the tx reference for polling")
	}

	// Ambiguous on-chain state: the fingerprint must stay reserved so
	// a naive retry cannot double-mint.
	fp, _ := FingerprintAsset(req.Asset)
	if !f.registry.isReserved(fp) {
		t.Fatalf("reservation must survive a confirmation timeout")
	}
	if f.chain.submits != 1 {
		t.Fatalf("timeout must not trigger resubmission")
	}
	if result.Stage != mintpipe.StageFailed {
		t.Fatalf("ambiguous outcome must terminate failed, not reverted, got %s", result.Stage)
	}
}

func TestMintCancellationAfterSubmitStillConfirms(t *testing.T) {
	co, f := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.chain.respectCtx = true
	f.chain.onSubmit = cancel // client disconnects the moment the tx is broadcast
	f.chain.pendingFor = 1
	req := testRequest()

	result := co.Mint(ctx, req)
	if !result.Succeeded() {
		t.Fatalf("cancellation after broadcast must not abort the run, got %+v", result.Err)
	}
	if f.chain.submits != 1 {
		t.Fatalf("expected a single submission, saw %d", f.chain.submits)
	}

	fp, _ := FingerprintAsset(req.Asset)
	if !f.registry.isReserved(fp) {
		t.Fatalf("confirmed fingerprint must stay reserved after the caller is gone")
	}
	if len(f.store.records) != 1 {
		t.Fatalf("confirmed mint must be recorded despite the canceled caller")
	}
}

func TestMintTransientConfirmErrorsRecover(t *testing.T) {
	co, f := newPipeline(t)
	f.chain.confirmErrs = 2
	req := testRequest()

	result := co.Mint(context.Background(), req)
	if !result.Succeeded() {
		t.Fatalf("transient receipt errors within the window must not fail the run, got %+v", result.Err)
	}
	if f.chain.submits != 1 {
		t.Fatalf("confirm errors must not trigger resubmission, saw %d submits", f.chain.submits)
	}
}

func TestMintPersistentConfirmErrorsDegradeToTimeout(t *testing.T) {
	co, f := newPipeline(t)
	f.chain.confirmErrs = 1 << 30 // receipt endpoint down for the whole window
	req := testRequest()

	result := co.Mint(context.Background(), req)
	if result.Err == nil || result.Err.Kind != mintpipe.KindConfirmationTimeout {
		t.Fatalf("expected confirmation_timeout, got %+v", result.Err)
	}
	if result.TxRef == "" {
		t.Fatalf("degraded result must carry the tx reference for polling")
	}

	// The on-chain state is unknown; the reservation must survive.
	fp, _ := FingerprintAsset(req.Asset)
	if !f.registry.isReserved(fp) {
		t.Fatalf("reservation must survive an unreachable receipt endpoint")
	}
}

func TestMintCancellationBeforeSubmit(t *testing.T) {
	co, f := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := testRequest()

	result := co.Mint(ctx, req)
	if result.Err == nil || result.Err.Kind != mintpipe.KindCanceled {
		t.Fatalf("expected canceled result, got %+v", result.Err)
	}
	if f.chain.submits != 0 {
		t.Fatalf("canceled run must not reach chain submission")
	}
	fp, _ := FingerprintAsset(req.Asset)
	if f.registry.isReserved(fp) {
		t.Fatalf("cancellation must release the reservation")
	}
}
