package scheduler_service

import (
	"context"
	"errors"
	"strings"
	"time"

	"digital-will/common/logger"
	"digital-will/model"
	"digital-will/oracle"

	"go.uber.org/zap"
)

// TxChecker satisfied by *oracle.Oracle
type TxChecker interface {
	TxDetails(ctx context.Context, txHash string) (*oracle.TxDetails, error)
}

// ValidationStore satisfied by *dao.AssetDAO
type ValidationStore interface {
	ListUnvalidated(limit int) ([]*model.Asset, error)
	MarkCreatedValidated(id uint64) error
	MarkFundsValidated(id uint64) error
	RecordValidationCheck(id uint64, at time.Time) error
}

// ValidationOptions explorer check settings
type ValidationOptions struct {
	Interval     time.Duration
	BatchSize    int
	CreatedDelay time.Duration // minimum age of the creation tx before checking
	FundedDelay  time.Duration // minimum age of the funding tx before checking
	OkStatus     string
}

// ValidationProcessor flips validated_created / validated_funds once the
// explorer reports the creation / funding tx as successful.
type ValidationProcessor struct {
	*loop

	assets  ValidationStore
	checker TxChecker
	opts    ValidationOptions
	now     func() time.Time
	log     *zap.Logger
}

// NewValidationProcessor creates the processor
func NewValidationProcessor(assets ValidationStore, checker TxChecker, opts ValidationOptions) *ValidationProcessor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.OkStatus == "" {
		opts.OkStatus = "ok"
	}
	log := logger.Named("validation")
	p := &ValidationProcessor{
		assets:  assets,
		checker: checker,
		opts:    opts,
		now:     time.Now,
		log:     log,
	}
	p.loop = newLoop("validation", opts.Interval, func(ctx context.Context) { p.RunCycle(ctx) }, log)
	return p
}

// WithLease see Scheduler
func (p *ValidationProcessor) WithLease(lease Lease, owner string, ttl time.Duration) *ValidationProcessor {
	p.loop.setLease(lease, owner, ttl)
	return p
}

// RunCycle checks one batch, returning how many flags were set
func (p *ValidationProcessor) RunCycle(ctx context.Context) int {
	assets, err := p.assets.ListUnvalidated(p.opts.BatchSize)
	if err != nil {
		p.log.Error("failed to list unvalidated assets", zap.Error(err))
		return 0
	}

	now := p.now()
	var flipped int
	for _, asset := range assets {
		if p.loop.stopping() {
			break
		}
		pending := false
		if !asset.ValidatedCreated && asset.TxHash != "" {
			if now.Sub(asset.CreatedAt) >= p.opts.CreatedDelay && p.confirmed(ctx, asset.ID, asset.TxHash) {
				if err := p.assets.MarkCreatedValidated(asset.ID); err != nil {
					p.log.Error("failed to mark created validated", zap.Uint64("asset_id", asset.ID), zap.Error(err))
					pending = true
				} else {
					flipped++
				}
			} else {
				pending = true
			}
		}
		if !asset.ValidatedFunds && asset.TxHashFunded != "" {
			if now.Sub(asset.UpdatedAt) >= p.opts.FundedDelay && p.confirmed(ctx, asset.ID, asset.TxHashFunded) {
				if err := p.assets.MarkFundsValidated(asset.ID); err != nil {
					p.log.Error("failed to mark funds validated", zap.Uint64("asset_id", asset.ID), zap.Error(err))
					pending = true
				} else {
					flipped++
					p.log.Info("asset funding validated", zap.Uint64("asset_id", asset.ID), zap.String("tx_hash", asset.TxHashFunded))
				}
			} else {
				pending = true
			}
		}
		// rotate to the back so later assets get a turn
		if pending {
			if err := p.assets.RecordValidationCheck(asset.ID, now); err != nil {
				p.log.Warn("failed to record validation check", zap.Uint64("asset_id", asset.ID), zap.Error(err))
			}
		}
	}
	return flipped
}

func (p *ValidationProcessor) confirmed(ctx context.Context, assetID uint64, txHash string) bool {
	details, err := p.checker.TxDetails(ctx, txHash)
	if err != nil {
		if errors.Is(err, oracle.ErrNotFound) {
			p.log.Debug("tx not on explorer yet", zap.Uint64("asset_id", assetID), zap.String("tx_hash", txHash))
		} else {
			p.log.Warn("explorer lookup failed", zap.Uint64("asset_id", assetID), zap.String("tx_hash", txHash), zap.Error(err))
		}
		return false
	}
	return strings.EqualFold(details.Status, p.opts.OkStatus)
}
