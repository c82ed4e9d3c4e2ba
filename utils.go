package mintpipe

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Digest computes the content fingerprint of a byte payload.
func Digest(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// ParseStorageURI splits a scheme-prefixed storage address back into a
// receipt. Accepts ipfs:// and ar:// forms.
func ParseStorageURI(uri string) (StorageReceipt, error) {
	switch {
	case strings.HasPrefix(uri, "ipfs://"):
		return StorageReceipt{Backend: BackendIPFS, Address: strings.TrimPrefix(uri, "ipfs://")}, nil
	case strings.HasPrefix(uri, "ar://"):
		return StorageReceipt{Backend: BackendArweave, Address: strings.TrimPrefix(uri, "ar://")}, nil
	default:
		return StorageReceipt{}, fmt.Errorf("unsupported storage uri scheme: %s", uri)
	}
}

var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// ParseEtherPrice converts a decimal ether amount to wei.
// Negative and malformed amounts are rejected.
func ParseEtherPrice(s string) (*big.Int, error) {
	f, ok := new(big.Float).SetString(strings.TrimSpace(s))
	if !ok {
		return nil, fmt.Errorf("invalid price: %q", s)
	}
	if f.Sign() < 0 {
		return nil, fmt.Errorf("price must be non-negative: %q", s)
	}
	wei, _ := new(big.Float).Mul(f, weiPerEther).Int(nil)
	return wei, nil
}
