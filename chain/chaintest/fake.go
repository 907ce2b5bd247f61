// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"digital-will/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Fake records sent transactions and serves scripted receipts.
// With AutoMine set every accepted tx gets a receipt immediately.
type Fake struct {
	mu sync.Mutex

	ID       *big.Int
	GasPrice *big.Int
	Nonce    uint64
	AutoMine bool
	// MineStatus receipt status for auto-mined txs, default success
	MineStatus *uint64

	// SendErrs returned in order by SendTransaction before it accepts
	SendErrs []error
	Sent     []*types.Transaction
	Receipts map[common.Hash]*chain.Receipt
	block    uint64
}

func NewFake() *Fake {
	return &Fake{
		ID:       big.NewInt(1337),
		GasPrice: big.NewInt(1_000_000_000),
		Receipts: make(map[common.Hash]*chain.Receipt),
		block:    100,
	}
}

func (f *Fake) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.ID), nil
}

func (f *Fake) PendingNonce(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Nonce, nil
}

func (f *Fake) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.GasPrice), nil
}

func (f *Fake) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.SendErrs) > 0 {
		err := f.SendErrs[0]
		f.SendErrs = f.SendErrs[1:]
		if err != nil {
			return err
		}
	}
	f.Sent = append(f.Sent, tx)
	if tx.Nonce() >= f.Nonce {
		f.Nonce = tx.Nonce() + 1
	}
	if f.AutoMine {
		status := types.ReceiptStatusSuccessful
		if f.MineStatus != nil {
			status = *f.MineStatus
		}
		f.mineLocked(tx.Hash(), status)
	}
	return nil
}

func (f *Fake) TransactionReceipt(ctx context.Context, hash common.Hash) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.Receipts[hash]
	if !ok {
		return nil, chain.ErrReceiptNotFound
	}
	cp := *r
	return &cp, nil
}

// Mine records a receipt for hash
func (f *Fake) Mine(hash common.Hash, status uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mineLocked(hash, status)
}

func (f *Fake) mineLocked(hash common.Hash, status uint64) {
	f.block++
	f.Receipts[hash] = &chain.Receipt{TxHash: hash, Status: status, BlockNumber: f.block}
}

// SentCount number of accepted transactions
func (f *Fake) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// LastSent most recent accepted transaction, nil when none
func (f *Fake) LastSent() *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	return f.Sent[len(f.Sent)-1]
}
