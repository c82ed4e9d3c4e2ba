package mintpipe

import (
	"math/big"
	"testing"
)

func TestDigestDeterminism(t *testing.T) {
	a := Digest([]byte("same bytes"))
	b := Digest([]byte("same bytes"))
	if a != b {
		t.Fatalf("digest is not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
}

func TestParseStorageURI(t *testing.T) {
	r, err := ParseStorageURI("ipfs://QmAbc")
	if err != nil || r.Backend != BackendIPFS || r.Address != "QmAbc" {
		t.Fatalf("unexpected parse: %+v, %v", r, err)
	}
	r, err = ParseStorageURI("ar://txid123")
	if err != nil || r.Backend != BackendArweave || r.Address != "txid123" {
		t.Fatalf("unexpected parse: %+v, %v", r, err)
	}
	if _, err := ParseStorageURI("http://example.com/x"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}

	// Receipts and URIs round-trip.
	receipt := StorageReceipt{Backend: BackendArweave, Address: "txid123"}
	back, err := ParseStorageURI(receipt.URI())
	if err != nil || back != receipt {
		t.Fatalf("receipt did not round-trip: %+v", back)
	}
}

func TestParseEtherPrice(t *testing.T) {
	wei, err := ParseEtherPrice("0.5")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	want, _ := new(big.Int).SetString("500000000000000000", 10)
	if wei.Cmp(want) != 0 {
		t.Fatalf("expected %s wei, got %s", want, wei)
	}

	zero, err := ParseEtherPrice("0")
	if err != nil || zero.Sign() != 0 {
		t.Fatalf("zero price must be allowed, got %v %v", zero, err)
	}

	if _, err := ParseEtherPrice("-1"); err == nil {
		t.Fatalf("negative price must be rejected")
	}
	if _, err := ParseEtherPrice("abc"); err == nil {
		t.Fatalf("malformed price must be rejected")
	}
}

func TestPipelineErrorTagging(t *testing.T) {
	err := Errf(KindInvalidShares, "sum is %d", 90).WithStage(StageSharesValidated)
	if err.Error() != "shares_validated: invalid_shares: sum is 90" {
		t.Fatalf("unexpected message: %s", err.Error())
	}

	tagged := AsPipelineError(err, KindChainSubmissionFailed)
	if tagged.Kind != KindInvalidShares {
		t.Fatalf("existing kind must be preserved")
	}

	untyped := AsPipelineError(assertError("boom"), KindStorageUnavailable)
	if untyped.Kind != KindStorageUnavailable || untyped.Reason != "boom" {
		t.Fatalf("untyped errors must be tagged with the fallback kind: %+v", untyped)
	}
}

type assertError string

func (e assertError) Error() string { return string(e) }
