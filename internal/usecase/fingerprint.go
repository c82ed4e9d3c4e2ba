package usecase

import (
	"github.com/multicreator/mintpipe"
)

// FingerprintAsset computes the content fingerprint of an asset.
// Deterministic: identical bytes always yield identical fingerprints.
func FingerprintAsset(asset mintpipe.Asset) (mintpipe.Fingerprint, error) {
	if len(asset.Data) == 0 {
		return "", mintpipe.Errf(mintpipe.KindAssetUnreadable, "asset is empty or could not be read")
	}
	return mintpipe.Digest(asset.Data), nil
}
