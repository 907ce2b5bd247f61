package scheduler_service

import (
	"context"
	"errors"
	"time"

	"digital-will/common/logger"
	"digital-will/model"
	"digital-will/oracle"

	"go.uber.org/zap"
)

// ActivityScorer satisfied by *oracle.Oracle
type ActivityScorer interface {
	ScoreInactivity(ctx context.Context, wallet string) (*oracle.Score, error)
}

// InactivityStore satisfied by *dao.AssetDAO
type InactivityStore interface {
	ListInactivityCandidates(limit int) ([]*model.Asset, error)
	RecordActivityScore(id uint64, score float64, due bool, at time.Time) error
}

// InactivityScorer sets the sticky is_now_due_date flag once an owner wallet
// has been idle for the asset's threshold. It runs on its own cadence so the
// distribution loop never calls the oracle.
type InactivityScorer struct {
	*loop

	assets    InactivityStore
	oracle    ActivityScorer
	batchSize int
	now       func() time.Time
	log       *zap.Logger
}

// NewInactivityScorer creates the scorer
func NewInactivityScorer(assets InactivityStore, scorer ActivityScorer, interval time.Duration, batchSize int) *InactivityScorer {
	if batchSize <= 0 {
		batchSize = 100
	}
	log := logger.Named("inactivity")
	p := &InactivityScorer{
		assets:    assets,
		oracle:    scorer,
		batchSize: batchSize,
		now:       time.Now,
		log:       log,
	}
	p.loop = newLoop("inactivity", interval, func(ctx context.Context) { p.RunCycle(ctx) }, log)
	return p
}

// WithLease see Scheduler
func (p *InactivityScorer) WithLease(lease Lease, owner string, ttl time.Duration) *InactivityScorer {
	p.loop.setLease(lease, owner, ttl)
	return p
}

// RunCycle scores one batch, returning how many were scored and flagged
func (p *InactivityScorer) RunCycle(ctx context.Context) (scored, flagged int) {
	assets, err := p.assets.ListInactivityCandidates(p.batchSize)
	if err != nil {
		p.log.Error("failed to list inactivity candidates", zap.Error(err))
		return 0, 0
	}

	for _, asset := range assets {
		if p.loop.stopping() {
			break
		}
		log := p.log.With(zap.Uint64("asset_id", asset.ID), zap.String("wallet", asset.WalletAddress))

		if asset.TriggerCondition == nil {
			log.Warn("inactivity candidate has no trigger condition")
			continue
		}
		trigger, err := asset.TriggerCondition.Variant()
		if err != nil {
			log.Warn("invalid trigger condition", zap.Error(err))
			continue
		}
		inactivity, ok := trigger.(model.Inactivity)
		if !ok {
			continue
		}

		score, err := p.oracle.ScoreInactivity(ctx, asset.WalletAddress)
		switch {
		case errors.Is(err, oracle.ErrNotFound):
			log.Info("wallet has no transaction history, not scoring")
			continue
		case errors.Is(err, oracle.ErrUpstreamUnavailable):
			log.Warn("activity oracle unavailable, retry next cycle", zap.Error(err))
			continue
		case err != nil:
			log.Warn("failed to score wallet", zap.Error(err))
			continue
		}

		due := score.Months >= float64(inactivity.ThresholdMonths)
		if err := p.assets.RecordActivityScore(asset.ID, score.Months, due, p.now().UTC()); err != nil {
			log.Error("failed to record activity score", zap.Error(err))
			continue
		}
		scored++
		if due {
			flagged++
			log.Info("wallet inactive past threshold, asset now due",
				zap.Float64("months", score.Months),
				zap.Int64("threshold", inactivity.ThresholdMonths),
				zap.Time("last_tx_at", score.LastTxAt))
		}
	}
	return scored, flagged
}
