package gateway

import (
	"context"

	"github.com/everFinance/goar"
	"github.com/everFinance/goar/types"
	"github.com/pkg/errors"

	"github.com/multicreator/mintpipe"
)

// ArweaveGateway is the backup permanent-archive backend. Uploads are
// signed transactions paid for by the configured wallet.
type ArweaveGateway struct {
	wallet *goar.Wallet
	client *goar.Client
}

func NewArweaveGateway(nodeURL, keyPath string) (*ArweaveGateway, error) {
	wallet, err := goar.NewWalletFromPath(keyPath, nodeURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load arweave wallet")
	}
	return &ArweaveGateway{
		wallet: wallet,
		client: goar.NewClient(nodeURL),
	}, nil
}

func (g *ArweaveGateway) Kind() mintpipe.BackendKind {
	return mintpipe.BackendArweave
}

func (g *ArweaveGateway) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	tags := []types.Tag{
		{Name: "Content-Type", Value: mimeType},
	}
	tx, err := g.wallet.SendData(data, tags)
	if err != nil {
		return "", errors.Wrap(err, "arweave upload failed")
	}
	return tx.ID, nil
}

func (g *ArweaveGateway) Get(ctx context.Context, address string) ([]byte, error) {
	data, err := g.client.GetTransactionData(address)
	if err != nil {
		return nil, errors.Wrapf(err, "arweave fetch failed for %s", address)
	}
	return data, nil
}
