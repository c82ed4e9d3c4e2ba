package gateway

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"

	"github.com/multicreator/mintpipe"
	"github.com/multicreator/mintpipe/internal/usecase"
)

// Minimal ABI of the MultiCreatorNFT contract: the mint entrypoint and
// the event the tokenId is decoded from.
const multiCreatorNFTABI = `[
	{
		"type": "function",
		"name": "mint",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "metadataURI", "type": "string"},
			{"name": "backupURI", "type": "string"},
			{"name": "price", "type": "uint256"},
			{"name": "creators", "type": "address[]"},
			{"name": "shares", "type": "uint256[]"}
		],
		"outputs": [{"name": "tokenId", "type": "uint256"}]
	},
	{
		"type": "event",
		"name": "NFTMinted",
		"inputs": [
			{"name": "tokenId", "type": "uint256", "indexed": true},
			{"name": "creators", "type": "address[]", "indexed": false},
			{"name": "shares", "type": "uint256[]", "indexed": false}
		]
	}
]`

// ChainGateway submits mint transactions to the MultiCreatorNFT
// contract and observes their confirmation state.
type ChainGateway struct {
	client        *ethclient.Client
	contractABI   abi.ABI
	contract      common.Address
	key           *ecdsa.PrivateKey
	from          common.Address
	chainID       *big.Int
	mintedEventID common.Hash
}

func NewChainGateway(rpcURL, contractAddress, privateKeyHex string, chainID int64) (*ChainGateway, error) {

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to chain rpc")
	}

	parsed, err := abi.JSON(strings.NewReader(multiCreatorNFTABI))
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse contract abi")
	}

	if !common.IsHexAddress(contractAddress) {
		return nil, errors.Errorf("invalid contract address: %s", contractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid signing key")
	}

	return &ChainGateway{
		client:        client,
		contractABI:   parsed,
		contract:      common.HexToAddress(contractAddress),
		key:           key,
		from:          crypto.PubkeyToAddress(key.PublicKey),
		chainID:       big.NewInt(chainID),
		mintedEventID: parsed.Events["NFTMinted"].ID,
	}, nil
}

// SubmitMint broadcasts the mint transaction. Not idempotent: callers
// own the decision to retry after an unconfirmed submission.
func (g *ChainGateway) SubmitMint(ctx context.Context, metadataURI, backupURI string, price *big.Int, creators []mintpipe.CreatorShare) (string, error) {

	addresses := make([]common.Address, len(creators))
	shares := make([]*big.Int, len(creators))
	for i, cs := range creators {
		addresses[i] = common.HexToAddress(cs.Address)
		shares[i] = big.NewInt(int64(cs.Share))
	}
	if price == nil {
		price = big.NewInt(0)
	}

	data, err := g.contractABI.Pack("mint", metadataURI, backupURI, price, addresses, shares)
	if err != nil {
		return "", errors.Wrap(err, "failed to pack mint call")
	}

	nonce, err := g.client.PendingNonceAt(ctx, g.from)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch nonce")
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to fetch gas price")
	}
	gasLimit, err := g.client.EstimateGas(ctx, ethereum.CallMsg{
		From: g.from,
		To:   &g.contract,
		Data: data,
	})
	if err != nil {
		return "", errors.Wrap(err, "gas estimation failed")
	}

	tx := types.NewTransaction(nonce, g.contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(g.chainID), g.key)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign transaction")
	}

	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return "", errors.Wrap(err, "failed to broadcast transaction")
	}

	return signed.Hash().Hex(), nil
}

func (g *ChainGateway) Confirm(ctx context.Context, txRef string) (usecase.ChainStatus, error) {

	receipt, err := g.client.TransactionReceipt(ctx, common.HexToHash(txRef))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return usecase.ChainStatus{State: usecase.ChainPending}, nil
		}
		return usecase.ChainStatus{}, errors.Wrapf(err, "failed to fetch receipt for %s", txRef)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return usecase.ChainStatus{State: usecase.ChainFailed}, nil
	}

	for _, lg := range receipt.Logs {
		if len(lg.Topics) > 1 && lg.Topics[0] == g.mintedEventID {
			tokenID := new(big.Int).SetBytes(lg.Topics[1].Bytes())
			return usecase.ChainStatus{State: usecase.ChainConfirmed, TokenID: tokenID}, nil
		}
	}

	return usecase.ChainStatus{}, errors.Errorf("transaction %s succeeded but emitted no NFTMinted event", txRef)
}

var _ usecase.ChainClient = (*ChainGateway)(nil)
