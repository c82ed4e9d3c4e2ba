package usecase

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/multicreator/mintpipe"
)

// ValidateShares checks a creator/share list: non-empty, each share an
// integer in [0,100], addresses syntactically valid and unique, shares
// summing to exactly 100. Pure; must run before any storage write so
// malformed requests fail cheaply.
func ValidateShares(shares []mintpipe.CreatorShare) error {
	if len(shares) == 0 {
		return mintpipe.Errf(mintpipe.KindInvalidShares, "creator list is empty")
	}

	seen := make(map[string]struct{}, len(shares))
	sum := 0
	for _, cs := range shares {
		if !common.IsHexAddress(cs.Address) {
			return mintpipe.Errf(mintpipe.KindInvalidShares, "invalid creator address: %s", cs.Address)
		}
		key := strings.ToLower(common.HexToAddress(cs.Address).Hex())
		if _, dup := seen[key]; dup {
			return mintpipe.Errf(mintpipe.KindInvalidShares, "duplicate creator address: %s", cs.Address)
		}
		seen[key] = struct{}{}

		if cs.Share < 0 || cs.Share > 100 {
			return mintpipe.Errf(mintpipe.KindInvalidShares, "share out of range [0,100]: %d", cs.Share)
		}
		sum += cs.Share
	}

	if sum != 100 {
		return mintpipe.Errf(mintpipe.KindInvalidShares, "shares sum to %d, expected exactly 100", sum)
	}
	return nil
}
