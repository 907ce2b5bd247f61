package distribution_service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"digital-will/chain"
	"digital-will/common"
	"digital-will/common/logger"
	"digital-will/model"
	"digital-will/service/eligibility_service"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Outcome where a dispatch ended up
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeReverted  Outcome = "reverted"
	OutcomePending   Outcome = "pending" // submitted, no receipt yet
	OutcomeFailed    Outcome = "failed"  // never landed, safe to dispatch again
)

// Result of a dispatch or reconcile
type Result struct {
	AssetID     uint64
	TxHash      string
	BlockNumber uint64
	Outcome     Outcome
	Attempt     *model.DistributionAttempt
}

// AttemptStore persistence for attempts, satisfied by *dao.DistributionAttemptDAO
type AttemptStore interface {
	Create(attempt *model.DistributionAttempt) error
	Update(attempt *model.DistributionAttempt) error
}

// Dispatcher builds, signs, submits and confirms distribution transactions
// from the operator wallet. Nonce selection and submission are serialized.
type Dispatcher struct {
	client   chain.Client
	wallet   *chain.Wallet
	contract *chain.Distributor
	attempts AttemptStore
	cfg      Config

	mu      sync.Mutex
	chainID *big.Int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	log   *zap.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(client chain.Client, wallet *chain.Wallet, contract *chain.Distributor, attempts AttemptStore, cfg Config) *Dispatcher {
	return &Dispatcher{
		client:   client,
		wallet:   wallet,
		contract: contract,
		attempts: attempts,
		cfg:      cfg,
		chainID:  cfg.ChainID,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepCtx,
		log:      logger.Named("dispatcher"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Dispatch submits distribute(owner, willId, amountOrDuration) for asset and
// waits for the receipt. The attempt is stored before broadcast. A confirmed
// attempt is returned unsaved: the caller commits it together with the
// distributed flag.
func (d *Dispatcher) Dispatch(ctx context.Context, asset *model.Asset) (*Result, error) {
	if asset.TriggerCondition == nil {
		return nil, &DispatchError{Kind: ErrInvalidAsset, AssetID: asset.ID, Err: errors.New("no trigger condition")}
	}
	trigger, err := asset.TriggerCondition.Variant()
	if err != nil {
		return nil, &DispatchError{Kind: ErrInvalidAsset, AssetID: asset.ID, Err: err}
	}
	owner, err := common.CheckAddress(asset.WalletAddress)
	if err != nil {
		return nil, &DispatchError{Kind: ErrInvalidAsset, AssetID: asset.ID, Err: err}
	}
	parameter := eligibility_service.Parameter(asset, trigger)
	data, err := d.contract.PackDistribute(owner, new(big.Int).SetUint64(asset.WillID), parameter)
	if err != nil {
		return nil, &DispatchError{Kind: ErrInvalidAsset, AssetID: asset.ID, Err: err}
	}

	d.mu.Lock()
	attempt, err := d.submit(ctx, asset, trigger.Type(), parameter, data)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return d.await(ctx, attempt)
}

func (d *Dispatcher) chainIDFor(ctx context.Context) (*big.Int, error) {
	if d.chainID != nil {
		return d.chainID, nil
	}
	id, err := d.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	d.chainID = id
	return id, nil
}

func (d *Dispatcher) gasPrice(ctx context.Context) (*big.Int, error) {
	if d.cfg.GasPolicy == GasPolicyFixed {
		return new(big.Int).Set(d.cfg.FixedGasPrice), nil
	}
	suggested, err := d.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return addPercent(suggested, d.cfg.MarkupPercent), nil
}

// submit signs and broadcasts, retrying nonce conflicts with a fresh nonce
// and underpriced rejections with a higher gas price. Caller holds d.mu.
func (d *Dispatcher) submit(ctx context.Context, asset *model.Asset, triggerType model.ConditionType, parameter *big.Int, data []byte) (*model.DistributionAttempt, error) {
	fail := func(txHash string, err error) error {
		return &DispatchError{Kind: ErrSubmitFailed, AssetID: asset.ID, TxHash: txHash, Err: err}
	}

	chainID, err := d.chainIDFor(ctx)
	if err != nil {
		return nil, fail("", err)
	}
	gasPrice, err := d.gasPrice(ctx)
	if err != nil {
		return nil, fail("", err)
	}
	from := d.wallet.Address()
	nonce, err := d.client.PendingNonce(ctx, from)
	if err != nil {
		return nil, fail("", fmt.Errorf("pending nonce: %w", err))
	}

	to := d.contract.Address()
	backoff := d.cfg.RetryBackoff
	for try := 0; ; try++ {
		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      d.cfg.GasLimit,
			To:       &to,
			Value:    big.NewInt(0),
			Data:     data,
		})
		signed, err := d.wallet.SignTx(tx, chainID)
		if err != nil {
			return nil, fail("", err)
		}
		raw, err := signed.MarshalBinary()
		if err != nil {
			return nil, fail("", fmt.Errorf("encode tx: %w", err))
		}

		attempt := &model.DistributionAttempt{
			ID:          uuid.NewString(),
			AssetID:     asset.ID,
			TxHash:      signed.Hash().Hex(),
			RawTx:       hexutil.Encode(raw),
			Nonce:       nonce,
			GasPriceWei: decimal.NewFromBigInt(gasPrice, 0),
			Parameter:   decimal.NewFromBigInt(parameter, 0),
			TriggerType: triggerType,
			Status:      model.AttemptStatusPending,
			SubmittedAt: d.now(),
		}
		if err := d.attempts.Create(attempt); err != nil {
			return nil, fail(attempt.TxHash, fmt.Errorf("persist attempt: %w", err))
		}

		sendErr := d.client.SendTransaction(ctx, signed)
		if sendErr == nil || errors.Is(sendErr, chain.ErrAlreadyKnown) {
			d.log.Info("distribution submitted",
				zap.Uint64("asset_id", asset.ID),
				zap.String("tx_hash", attempt.TxHash),
				zap.Uint64("nonce", nonce),
				zap.String("gas_price", gasPrice.String()),
				zap.String("parameter", parameter.String()))
			return attempt, nil
		}

		rejected := errors.Is(sendErr, chain.ErrNonceConflict) || errors.Is(sendErr, chain.ErrUnderpriced)
		if !rejected {
			// the node may have taken it; keep the attempt open so the next
			// cycle checks the hash before anything new is sent
			d.markAttempt(attempt, model.AttemptStatusUnknown, sendErr)
			return nil, fail(attempt.TxHash, sendErr)
		}
		d.markAttempt(attempt, model.AttemptStatusFailed, sendErr)

		if try >= d.cfg.MaxSubmitRetries {
			return nil, fail(attempt.TxHash, fmt.Errorf("gave up after %d retries: %w", try, sendErr))
		}

		if errors.Is(sendErr, chain.ErrNonceConflict) {
			fresh, err := d.client.PendingNonce(ctx, from)
			if err != nil {
				return nil, fail(attempt.TxHash, fmt.Errorf("pending nonce: %w", err))
			}
			if fresh <= nonce {
				fresh = nonce + 1
			}
			nonce = fresh
		} else {
			gasPrice = addPercent(gasPrice, d.cfg.UnderpricedBumpPercent)
		}

		d.log.Warn("distribution rejected, retrying",
			zap.Uint64("asset_id", asset.ID),
			zap.String("tx_hash", attempt.TxHash),
			zap.Int("retry", try+1),
			zap.Uint64("nonce", nonce),
			zap.String("gas_price", gasPrice.String()),
			zap.Error(sendErr))

		if err := d.sleep(ctx, backoff); err != nil {
			return nil, fail(attempt.TxHash, err)
		}
		backoff *= 2
	}
}

// await blocks for the receipt up to the configured timeout
func (d *Dispatcher) await(ctx context.Context, attempt *model.DistributionAttempt) (*Result, error) {
	hash := ethcommon.HexToHash(attempt.TxHash)
	receipt, err := chain.WaitReceipt(ctx, d.client, hash, d.cfg.Wait)
	if err != nil {
		d.markAttempt(attempt, model.AttemptStatusUnknown, err)
		d.log.Warn("distribution outcome unknown",
			zap.Uint64("asset_id", attempt.AssetID),
			zap.String("tx_hash", attempt.TxHash),
			zap.Error(err))
		result := &Result{AssetID: attempt.AssetID, TxHash: attempt.TxHash, Outcome: OutcomePending, Attempt: attempt}
		return result, &DispatchError{Kind: ErrOutcomeUnknown, AssetID: attempt.AssetID, TxHash: attempt.TxHash, Err: err}
	}
	return d.resolve(attempt, receipt)
}

// resolve applies a receipt. Reverts are saved here; confirmations are left
// for the caller's distributed commit.
func (d *Dispatcher) resolve(attempt *model.DistributionAttempt, receipt *chain.Receipt) (*Result, error) {
	result := &Result{
		AssetID:     attempt.AssetID,
		TxHash:      attempt.TxHash,
		BlockNumber: receipt.BlockNumber,
		Attempt:     attempt,
	}
	if receipt.Succeeded() {
		attempt.Resolve(model.AttemptStatusConfirmed, receipt.BlockNumber, d.now())
		attempt.ErrorMessage = ""
		result.Outcome = OutcomeConfirmed
		d.log.Info("distribution confirmed",
			zap.Uint64("asset_id", attempt.AssetID),
			zap.String("tx_hash", attempt.TxHash),
			zap.Uint64("block", receipt.BlockNumber))
		return result, nil
	}

	attempt.Resolve(model.AttemptStatusReverted, receipt.BlockNumber, d.now())
	attempt.ErrorMessage = fmt.Sprintf("receipt status %d", receipt.Status)
	if err := d.attempts.Update(attempt); err != nil {
		d.log.Error("failed to save reverted attempt", zap.String("tx_hash", attempt.TxHash), zap.Error(err))
	}
	result.Outcome = OutcomeReverted
	d.log.Error("distribution reverted",
		zap.Uint64("asset_id", attempt.AssetID),
		zap.String("tx_hash", attempt.TxHash),
		zap.Uint64("block", receipt.BlockNumber))
	return result, &DispatchError{Kind: ErrReverted, AssetID: attempt.AssetID, TxHash: attempt.TxHash}
}

// Reconcile checks an open attempt without submitting anything new. An
// attempt unmined after RebroadcastAfter is resent from its stored raw tx;
// if its nonce was taken by another transaction it is marked failed.
func (d *Dispatcher) Reconcile(ctx context.Context, attempt *model.DistributionAttempt) (*Result, error) {
	hash := ethcommon.HexToHash(attempt.TxHash)
	pending := &Result{AssetID: attempt.AssetID, TxHash: attempt.TxHash, Outcome: OutcomePending, Attempt: attempt}

	receipt, err := d.client.TransactionReceipt(ctx, hash)
	if err == nil {
		return d.resolveReconciled(attempt, receipt)
	}
	if !errors.Is(err, chain.ErrReceiptNotFound) {
		return pending, fmt.Errorf("receipt %s: %w", attempt.TxHash, err)
	}

	if d.now().Sub(attempt.SubmittedAt) < d.cfg.RebroadcastAfter {
		return pending, nil
	}

	tx, err := decodeRawTx(attempt.RawTx)
	if err != nil {
		return pending, fmt.Errorf("attempt %s: %w", attempt.ID, err)
	}

	d.mu.Lock()
	sendErr := d.client.SendTransaction(ctx, tx)
	d.mu.Unlock()

	switch {
	case sendErr == nil || errors.Is(sendErr, chain.ErrAlreadyKnown):
		d.log.Warn("distribution still unmined, rebroadcast",
			zap.Uint64("asset_id", attempt.AssetID),
			zap.String("tx_hash", attempt.TxHash),
			zap.Duration("age", d.now().Sub(attempt.SubmittedAt)))
		return pending, nil
	case errors.Is(sendErr, chain.ErrNonceConflict):
		// nonce consumed: either this tx was mined meanwhile or another one took it
		receipt, err := d.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return d.resolveReconciled(attempt, receipt)
		}
		if !errors.Is(err, chain.ErrReceiptNotFound) {
			return pending, fmt.Errorf("receipt %s: %w", attempt.TxHash, err)
		}
		d.markAttempt(attempt, model.AttemptStatusFailed, sendErr)
		d.log.Warn("distribution nonce taken by another tx, attempt failed",
			zap.Uint64("asset_id", attempt.AssetID),
			zap.String("tx_hash", attempt.TxHash),
			zap.Uint64("nonce", attempt.Nonce))
		pending.Outcome = OutcomeFailed
		return pending, nil
	default:
		return pending, fmt.Errorf("rebroadcast %s: %w", attempt.TxHash, sendErr)
	}
}

func (d *Dispatcher) resolveReconciled(attempt *model.DistributionAttempt, receipt *chain.Receipt) (*Result, error) {
	result, err := d.resolve(attempt, receipt)
	if errors.Is(err, ErrReverted) {
		// a revert found on reconcile is an outcome, not a failure of this call
		return result, nil
	}
	return result, err
}

func (d *Dispatcher) markAttempt(attempt *model.DistributionAttempt, status model.AttemptStatus, cause error) {
	attempt.Status = status
	if cause != nil {
		attempt.ErrorMessage = cause.Error()
	}
	if !status.IsOpen() {
		at := d.now()
		attempt.ResolvedAt = &at
	}
	if err := d.attempts.Update(attempt); err != nil {
		d.log.Error("failed to update attempt",
			zap.String("tx_hash", attempt.TxHash),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}

func decodeRawTx(raw string) (*types.Transaction, error) {
	b, err := hexutil.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode raw tx: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("decode raw tx: %w", err)
	}
	return tx, nil
}
