package mintpipe

import (
	"math/big"
	"time"
)

// BackendKind identifies one of the two storage networks.
type BackendKind string

const (
	BackendIPFS    BackendKind = "ipfs"
	BackendArweave BackendKind = "arweave"
)

// Asset is the raw payload to be minted. Immutable once fingerprinted.
type Asset struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename"`
}

// Fingerprint is the hex-encoded SHA-256 digest of asset bytes.
//
// Deduplication is content-identity based: bitwise-identical uploads
// produce the same fingerprint regardless of filename or submission
// time, so identical bytes can never mint twice.
type Fingerprint string

// CreatorShare assigns an integer percentage of a mint to one address.
type CreatorShare struct {
	Address string `json:"address"`
	Share   int    `json:"share"`
}

// MintRequest is the validated aggregate handed to the coordinator.
// It lives for a single pipeline run and is never persisted as-is.
type MintRequest struct {
	RunID             string
	Asset             Asset
	Title             string
	Description       string
	Vision            string
	RightsDeclaration string
	Price             *big.Int // wei
	Creators          []CreatorShare
}

// StorageReceipt is issued by a backend once content is durably stored.
type StorageReceipt struct {
	Backend BackendKind `json:"backend"`
	Address string      `json:"address"`
}

// URI renders the receipt as a scheme-prefixed address.
func (r StorageReceipt) URI() string {
	switch r.Backend {
	case BackendArweave:
		return "ar://" + r.Address
	default:
		return "ipfs://" + r.Address
	}
}

// MintMetadata is the JSON document uploaded to the primary backend and
// referenced by the on-chain mint call.
type MintMetadata struct {
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	Vision            string         `json:"vision"`
	RightsDeclaration string         `json:"rightsDeclaration"`
	Image             string         `json:"image"`
	ArweaveBackup     string         `json:"arweaveBackup,omitempty"`
	Fingerprint       string         `json:"fingerprint"`
	Creators          []CreatorShare `json:"creators"`
}

// Stage names a coordinator state. Terminal failures carry the stage at
// which the pipeline stopped.
type Stage string

const (
	StageReceived           Stage = "received"
	StageFingerprinted      Stage = "fingerprinted"
	StageDedupChecked       Stage = "dedup_checked"
	StageOriginalityChecked Stage = "originality_checked"
	StageSharesValidated    Stage = "shares_validated"
	StageStored             Stage = "stored"
	StageMetadataFinalized  Stage = "metadata_finalized"
	StageSubmitted          Stage = "submitted"
	StageConfirmed          Stage = "confirmed"
	StageFailed             Stage = "failed"
	StageReverted           Stage = "reverted"
)

// StageEvent is published on every coordinator transition so watchers
// can follow a run in flight.
type StageEvent struct {
	RunID string    `json:"runId"`
	Stage Stage     `json:"stage"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

// MintResult is the single terminal outcome of a pipeline run.
type MintResult struct {
	RunID           string         `json:"runId"`
	Stage           Stage          `json:"stage"`
	TokenID         *big.Int       `json:"tokenId,omitempty"`
	TxRef           string         `json:"txRef,omitempty"`
	MetadataAddress string         `json:"metadataAddress,omitempty"`
	Degraded        bool           `json:"degraded,omitempty"`
	Warning         string         `json:"warning,omitempty"`
	Err             *PipelineError `json:"error,omitempty"`
}

// Succeeded reports whether the run reached Confirmed.
func (r MintResult) Succeeded() bool {
	return r.Err == nil && r.Stage == StageConfirmed
}

// MintedRecord is the durable view of a confirmed mint.
type MintedRecord struct {
	TokenID     string
	TxRef       string
	Fingerprint Fingerprint
	Title       string
	MetadataURI string
	BackupURI   string
	Creators    []CreatorShare
	Price       string
	Degraded    bool
	MintedAt    time.Time
}
