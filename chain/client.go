package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Receipt outcome of a mined transaction
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
}

// Succeeded status 1
func (r *Receipt) Succeeded() bool {
	return r.Status == types.ReceiptStatusSuccessful
}

// Client the node calls the dispatcher needs
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	// TransactionReceipt returns ErrReceiptNotFound while the tx is unmined
	TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// EthClient JSON-RPC client backed by go-ethereum's ethclient
type EthClient struct {
	eth *ethclient.Client
}

// Dial connects to the node at rpcURL
func Dial(ctx context.Context, rpcURL string) (*EthClient, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	return &EthClient{eth: eth}, nil
}

func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (c *EthClient) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

func (c *EthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasPrice(ctx)
}

func (c *EthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return ClassifyError(c.eth.SendTransaction(ctx, tx))
}

func (c *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	r, err := c.eth.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	var block uint64
	if r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}
	return &Receipt{TxHash: r.TxHash, Status: r.Status, BlockNumber: block}, nil
}

// Close drops the RPC connection
func (c *EthClient) Close() {
	c.eth.Close()
}
