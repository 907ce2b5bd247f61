package scheduler_service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"digital-will/common/logger"
	"digital-will/conf"
	"digital-will/database"
	"digital-will/model"
	"digital-will/service/distribution_service"
	"digital-will/service/eligibility_service"
	"digital-will/storage"

	"go.uber.org/zap"
)

// Dispatcher satisfied by *distribution_service.Dispatcher
type Dispatcher interface {
	Dispatch(ctx context.Context, asset *model.Asset) (*distribution_service.Result, error)
	Reconcile(ctx context.Context, attempt *model.DistributionAttempt) (*distribution_service.Result, error)
}

// AssetStore satisfied by *dao.AssetDAO
type AssetStore interface {
	ListCandidates(types []model.ConditionType, now time.Time, afterID uint64, limit int) ([]*model.Asset, error)
	MarkDistributed(assetID uint64, attempt *model.DistributionAttempt) error
}

// AttemptStore satisfied by *dao.DistributionAttemptDAO
type AttemptStore interface {
	GetOpen(assetID uint64) (*model.DistributionAttempt, error)
	Update(attempt *model.DistributionAttempt) error
	RevertHistory(assetID uint64) (int, *model.DistributionAttempt, error)
}

// Options one poll loop profile
type Options struct {
	Name         string
	Interval     time.Duration
	TriggerTypes []model.ConditionType // empty = all
	BatchSize    int                   // page size, a cycle walks every page

	RevertCooldown time.Duration // 0 = retry next cycle
	MaxReverts     int           // 0 = unlimited
}

// NewOptions maps a configured profile plus the dispatch section
func NewOptions(s conf.SchedulerConfig, d conf.DispatchConfig) (Options, error) {
	types, err := model.ParseConditionTypes(s.TriggerTypes)
	if err != nil {
		return Options{}, fmt.Errorf("scheduler %s: %w", s.Name, err)
	}
	maxReverts := d.MaxReverts
	if maxReverts < 0 {
		maxReverts = 0
	}
	return Options{
		Name:           s.Name,
		Interval:       time.Duration(s.Interval) * time.Second,
		TriggerTypes:   types,
		BatchSize:      s.BatchSize,
		RevertCooldown: time.Duration(d.RevertCooldownSeconds) * time.Second,
		MaxReverts:     maxReverts,
	}, nil
}

// Stats counters of the last finished cycle
type Stats struct {
	Name            string    `json:"name"`
	Interval        string    `json:"interval"`
	TriggerTypes    []string  `json:"trigger_types"`
	Cycles          uint64    `json:"cycles"`
	CycleStartedAt  time.Time `json:"cycle_started_at"`
	CycleFinishedAt time.Time `json:"cycle_finished_at"`
	Candidates      int       `json:"candidates"`
	Due             int       `json:"due"`
	Confirmed       int       `json:"confirmed"`
	Reverted        int       `json:"reverted"`
	Unknown         int       `json:"unknown"`
	Failed          int       `json:"failed"`
	Skipped         int       `json:"skipped"`
	LastError       string    `json:"last_error,omitempty"`
}

// Scheduler the distribution poll loop: fetch candidates, reconcile open
// attempts, evaluate, dispatch, persist. One instance per trigger profile.
type Scheduler struct {
	*loop

	opts       Options
	assets     AssetStore
	attempts   AttemptStore
	dispatcher Dispatcher
	evaluator  *eligibility_service.Evaluator
	archive    storage.Archive

	statsMu sync.RWMutex
	stats   Stats

	now func() time.Time
	log *zap.Logger
}

type Option func(*Scheduler)

// WithLease runs cycles only while owner holds the Redis lease
func WithLease(lease Lease, owner string, ttl time.Duration) Option {
	return func(s *Scheduler) { s.loop.setLease(lease, owner, ttl) }
}

// WithArchive stores a receipt record for every confirmed distribution
func WithArchive(a storage.Archive) Option {
	return func(s *Scheduler) { s.archive = a }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler for one profile
func NewScheduler(opts Options, assets AssetStore, attempts AttemptStore, dispatcher Dispatcher, options ...Option) *Scheduler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	log := logger.Named("scheduler").With(zap.String("profile", opts.Name))
	s := &Scheduler{
		opts:       opts,
		assets:     assets,
		attempts:   attempts,
		dispatcher: dispatcher,
		evaluator:  eligibility_service.NewEvaluator(opts.TriggerTypes),
		now:        time.Now,
		log:        log,
	}
	s.loop = newLoop("scheduler:"+opts.Name, opts.Interval, func(ctx context.Context) { s.RunCycle(ctx) }, log)

	names := make([]string, 0, len(opts.TriggerTypes))
	for _, t := range opts.TriggerTypes {
		names = append(names, string(t))
	}
	s.stats = Stats{Name: opts.Name, Interval: opts.Interval.String(), TriggerTypes: names}

	for _, o := range options {
		o(s)
	}
	return s
}

// Name profile name
func (s *Scheduler) Name() string {
	return s.opts.Name
}

// Stats last finished cycle
func (s *Scheduler) Stats() Stats {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()
	return s.stats
}

// RunCycle walks every candidate page. Each asset is isolated: an error or
// panic on one never stops the rest.
func (s *Scheduler) RunCycle(ctx context.Context) Stats {
	st := s.Stats()
	st.Cycles++
	st.CycleStartedAt = s.now()
	st.Candidates, st.Due, st.Confirmed, st.Reverted, st.Unknown, st.Failed, st.Skipped = 0, 0, 0, 0, 0, 0, 0
	st.LastError = ""

	defer func() {
		st.CycleFinishedAt = s.now()
		s.statsMu.Lock()
		s.stats = st
		s.statsMu.Unlock()
	}()

	now := s.now()
	var afterID uint64
	for !s.loop.stopping() {
		assets, err := s.assets.ListCandidates(s.opts.TriggerTypes, now, afterID, s.opts.BatchSize)
		if err != nil {
			s.log.Error("failed to list candidates", zap.Error(err), zap.Uint64("after_id", afterID))
			st.LastError = err.Error()
			break
		}
		st.Candidates += len(assets)
		for _, asset := range assets {
			if s.loop.stopping() {
				break
			}
			s.processAsset(ctx, asset, &st)
			afterID = asset.ID
		}
		if len(assets) < s.opts.BatchSize {
			break
		}
	}
	if s.loop.stopping() {
		s.log.Info("stop requested or lease lost, leaving cycle early")
	}

	if st.Due > 0 || st.Unknown > 0 || st.Failed > 0 {
		s.log.Info("cycle finished",
			zap.Int("candidates", st.Candidates),
			zap.Int("due", st.Due),
			zap.Int("confirmed", st.Confirmed),
			zap.Int("reverted", st.Reverted),
			zap.Int("unknown", st.Unknown),
			zap.Int("failed", st.Failed))
	}
	return st
}

func (s *Scheduler) processAsset(ctx context.Context, asset *model.Asset, st *Stats) {
	log := s.log.With(zap.Uint64("asset_id", asset.ID))
	defer func() {
		if r := recover(); r != nil {
			st.Failed++
			st.LastError = fmt.Sprint(r)
			log.Error("asset processing panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	// an open attempt must be settled before anything new is sent
	open, err := s.attempts.GetOpen(asset.ID)
	if err != nil {
		st.Failed++
		st.LastError = err.Error()
		log.Error("failed to load open attempt", zap.Error(err))
		return
	}
	if open != nil {
		res, err := s.dispatcher.Reconcile(ctx, open)
		if err != nil {
			st.Skipped++
			log.Warn("reconcile failed, will retry", zap.String("tx_hash", open.TxHash), zap.Error(err))
			return
		}
		switch res.Outcome {
		case distribution_service.OutcomeConfirmed:
			st.Due++
			s.commit(ctx, asset, res, st)
			return
		case distribution_service.OutcomePending:
			st.Skipped++
			log.Info("previous distribution still unconfirmed", zap.String("tx_hash", open.TxHash))
			return
		case distribution_service.OutcomeReverted:
			st.Reverted++
			log.Warn("previous distribution reverted", zap.String("tx_hash", open.TxHash))
		}
	}

	reverts, lastRevert, err := s.attempts.RevertHistory(asset.ID)
	if err != nil {
		st.Failed++
		st.LastError = err.Error()
		log.Error("failed to load revert history", zap.Error(err))
		return
	}
	if s.opts.MaxReverts > 0 && reverts >= s.opts.MaxReverts {
		st.Skipped++
		log.Error("asset reverted too often, needs operator attention",
			zap.Int("reverts", reverts), zap.String("last_tx_hash", lastRevert.TxHash))
		return
	}
	if lastRevert != nil && s.opts.RevertCooldown > 0 && lastRevert.ResolvedAt != nil &&
		s.now().Sub(*lastRevert.ResolvedAt) < s.opts.RevertCooldown {
		st.Skipped++
		return
	}

	due, reason := s.evaluator.IsDue(asset, s.now())
	if !due {
		log.Debug("asset not due", zap.String("reason", string(reason)))
		return
	}
	st.Due++

	res, err := s.dispatcher.Dispatch(ctx, asset)
	if err != nil {
		var de *distribution_service.DispatchError
		txHash := ""
		if errors.As(err, &de) {
			txHash = de.TxHash
		}
		switch {
		case errors.Is(err, distribution_service.ErrReverted):
			st.Reverted++
			log.Error("distribution reverted", zap.String("tx_hash", txHash), zap.Error(err))
		case errors.Is(err, distribution_service.ErrOutcomeUnknown):
			st.Unknown++
			log.Warn("distribution outcome unknown, will check next cycle", zap.String("tx_hash", txHash), zap.Error(err))
		default:
			st.Failed++
			st.LastError = err.Error()
			log.Error("distribution failed", zap.String("tx_hash", txHash), zap.Error(err))
		}
		return
	}
	s.commit(ctx, asset, res, st)
}

// commit persists distributed=true with the confirmed attempt, then archives
func (s *Scheduler) commit(ctx context.Context, asset *model.Asset, res *distribution_service.Result, st *Stats) {
	log := s.log.With(zap.Uint64("asset_id", asset.ID), zap.String("tx_hash", res.TxHash))

	err := s.assets.MarkDistributed(asset.ID, res.Attempt)
	switch {
	case errors.Is(err, database.ErrAlreadyDistributed):
		// keep the on-chain record even though the flag was set elsewhere
		if res.Attempt != nil {
			if uerr := s.attempts.Update(res.Attempt); uerr != nil {
				log.Error("failed to save confirmed attempt", zap.Error(uerr))
			}
		}
		log.Warn("asset already marked distributed")
		return
	case err != nil:
		// the attempt stays open and is reconciled again next cycle
		st.Failed++
		st.LastError = err.Error()
		log.Error("failed to mark asset distributed", zap.Error(err))
		return
	}
	st.Confirmed++
	asset.Distributed = true
	log.Info("asset distributed", zap.Uint64("block", res.BlockNumber))

	if s.archive == nil {
		return
	}
	rec := &storage.ReceiptRecord{
		AssetID:       asset.ID,
		WillID:        asset.WillID,
		WalletAddress: asset.WalletAddress,
		TriggerType:   string(asset.TriggerType()),
		TxHash:        res.TxHash,
		BlockNumber:   res.BlockNumber,
		ConfirmedAt:   s.now().UTC(),
	}
	if a := res.Attempt; a != nil {
		rec.Parameter = a.Parameter.String()
		rec.Nonce = a.Nonce
		rec.GasPriceWei = a.GasPriceWei.String()
	}
	if err := storage.SaveReceipt(ctx, s.archive, rec); err != nil {
		log.Warn("failed to archive receipt", zap.Error(err))
	}
}
