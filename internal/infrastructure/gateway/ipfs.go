package gateway

import (
	"bytes"
	"context"
	"io"

	"github.com/bradfitz/gomemcache/memcache"
	shell "github.com/ipfs/go-ipfs-api"
	"github.com/pkg/errors"

	"github.com/multicreator/mintpipe"
)

// memcache rejects values above 1MB; larger objects skip the cache.
const maxCacheableSize = 1 << 20

// IPFSGateway is the primary storage backend. Reads go through a
// memcached layer keyed by CID; content under a CID never changes so
// entries need no invalidation.
type IPFSGateway struct {
	sh *shell.Shell
	mc *memcache.Client
}

func NewIPFSGateway(apiURL string, mc *memcache.Client) *IPFSGateway {
	return &IPFSGateway{
		sh: shell.NewShell(apiURL),
		mc: mc,
	}
}

func (g *IPFSGateway) Kind() mintpipe.BackendKind {
	return mintpipe.BackendIPFS
}

func (g *IPFSGateway) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	cid, err := g.sh.Add(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "ipfs add failed")
	}
	return cid, nil
}

func (g *IPFSGateway) Get(ctx context.Context, address string) ([]byte, error) {

	if g.mc != nil {
		item, err := g.mc.Get(cacheKey(address))
		if err == nil {
			return item.Value, nil
		}
	}

	rc, err := g.sh.Cat(address)
	if err != nil {
		return nil, errors.Wrapf(err, "ipfs cat failed for %s", address)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ipfs content")
	}

	if g.mc != nil && len(data) < maxCacheableSize {
		g.mc.Set(&memcache.Item{
			Key:   cacheKey(address),
			Value: data,
		})
	}

	return data, nil
}

func cacheKey(address string) string {
	return "mint:content:" + address
}
