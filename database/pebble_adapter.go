package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"digital-will/common/logger"
	"digital-will/model"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// PebbleDatabase PebbleDB database implementation with multiple collections.
// Suited to a single scheduler node; writes are serialized by mu.
type PebbleDatabase struct {
	collections map[string]*pebble.DB

	mu sync.Mutex

	assetIDCounter   atomic.Uint64
	triggerIDCounter atomic.Uint64
	benefIDCounter   atomic.Uint64
}

// PebbleConfig PebbleDB configuration
type PebbleConfig struct {
	DataDir string
}

// Collection names and their key-value formats
const (
	collectionAssets       = "assets"        // key: {asset_id:020d}, value: JSON(Asset) with trigger + beneficiaries
	collectionAssetTxHash  = "asset_tx"      // key: {tx_hash}, value: {asset_id}
	collectionAssetFunded  = "asset_funded"  // key: {tx_hash_funded}, value: {asset_id}
	collectionAttempts     = "attempts"      // key: {attempt_id}, value: JSON(DistributionAttempt)
	collectionAttemptAsset = "attempt_asset" // key: {asset_id:020d}:{submitted_unix_nano:020d}:{attempt_id}, value: {attempt_id}
	collectionAttemptTx    = "attempt_tx"    // key: {tx_hash}, value: {attempt_id}
	collectionCounters     = "counters"      // key: asset/trigger/beneficiary, value: {max_id}
)

// Counter keys
const (
	keyAssetCounter       = "asset"
	keyTriggerCounter     = "trigger"
	keyBeneficiaryCounter = "beneficiary"
)

// NewPebbleDatabase create PebbleDB database instance with multiple collections
func NewPebbleDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*PebbleConfig)
	if !ok {
		return nil, fmt.Errorf("invalid PebbleDB config type")
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", cfg.DataDir, err)
	}

	collectionNames := []string{
		collectionAssets,
		collectionAssetTxHash,
		collectionAssetFunded,
		collectionAttempts,
		collectionAttemptAsset,
		collectionAttemptTx,
		collectionCounters,
	}

	p := &PebbleDatabase{collections: make(map[string]*pebble.DB)}
	for _, name := range collectionNames {
		dbPath := filepath.Join(cfg.DataDir, "will_db", name)
		db, err := pebble.Open(dbPath, &pebble.Options{})
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
		}
		p.collections[name] = db
	}

	p.assetIDCounter.Store(p.loadCounter(keyAssetCounter))
	p.triggerIDCounter.Store(p.loadCounter(keyTriggerCounter))
	p.benefIDCounter.Store(p.loadCounter(keyBeneficiaryCounter))

	logger.Named("database").Info("PebbleDB opened", zap.String("data_dir", cfg.DataDir),
		zap.Int("collections", len(collectionNames)))

	return p, nil
}

func (p *PebbleDatabase) loadCounter(key string) uint64 {
	value, closer, err := p.collections[collectionCounters].Get([]byte(key))
	if err != nil {
		return 0
	}
	defer closer.Close()
	n, _ := strconv.ParseUint(string(value), 10, 64)
	return n
}

func (p *PebbleDatabase) saveCounter(key string, value uint64) error {
	return p.collections[collectionCounters].Set([]byte(key), []byte(strconv.FormatUint(value, 10)), pebble.Sync)
}

func assetKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%020d", id))
}

func attemptAssetPrefix(assetID uint64) string {
	return fmt.Sprintf("%020d:", assetID)
}

func attemptAssetKey(a *model.DistributionAttempt) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", attemptAssetPrefix(a.AssetID), a.SubmittedAt.UnixNano(), a.ID))
}

// prefixUpperBound smallest key greater than every key with the prefix
func prefixUpperBound(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (p *PebbleDatabase) getJSON(collection string, key []byte, dest interface{}) error {
	value, closer, err := p.collections[collection].Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(value, dest)
}

func (p *PebbleDatabase) getString(collection string, key string) (string, error) {
	value, closer, err := p.collections[collection].Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(value), nil
}

func (p *PebbleDatabase) putAsset(asset *model.Asset) error {
	data, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}
	return p.collections[collectionAssets].Set(assetKey(asset.ID), data, pebble.Sync)
}

// scanAssets visits assets with id >= fromID in id order until fn returns false
func (p *PebbleDatabase) scanAssets(fromID uint64, fn func(asset *model.Asset) bool) error {
	var opts *pebble.IterOptions
	if fromID > 0 {
		opts = &pebble.IterOptions{LowerBound: assetKey(fromID)}
	}
	iter, err := p.collections[collectionAssets].NewIter(opts)
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var asset model.Asset
		if err := json.Unmarshal(iter.Value(), &asset); err != nil {
			logger.Named("database").Warn("skipping undecodable asset", zap.ByteString("key", iter.Key()), zap.Error(err))
			continue
		}
		if !fn(&asset) {
			break
		}
	}
	return iter.Error()
}

// Asset operations

func (p *PebbleDatabase) CreateAsset(asset *model.Asset) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if asset.TxHash != "" {
		if _, err := p.getString(collectionAssetTxHash, asset.TxHash); err == nil {
			return fmt.Errorf("asset with txhash %s already exists", asset.TxHash)
		}
	}

	now := time.Now().UTC()
	if asset.ID == 0 {
		asset.ID = p.assetIDCounter.Add(1)
		if err := p.saveCounter(keyAssetCounter, asset.ID); err != nil {
			return err
		}
	}
	asset.CreatedAt = now
	asset.UpdatedAt = now

	if asset.TriggerCondition != nil {
		asset.TriggerCondition.AssetID = asset.ID
		if asset.TriggerCondition.ID == 0 {
			asset.TriggerCondition.ID = p.triggerIDCounter.Add(1)
			if err := p.saveCounter(keyTriggerCounter, asset.TriggerCondition.ID); err != nil {
				return err
			}
		}
	}
	for i := range asset.Beneficiaries {
		asset.Beneficiaries[i].AssetID = asset.ID
		if asset.Beneficiaries[i].ID == 0 {
			asset.Beneficiaries[i].ID = p.benefIDCounter.Add(1)
		}
	}
	if len(asset.Beneficiaries) > 0 {
		if err := p.saveCounter(keyBeneficiaryCounter, p.benefIDCounter.Load()); err != nil {
			return err
		}
	}

	if err := p.putAsset(asset); err != nil {
		return err
	}

	id := []byte(strconv.FormatUint(asset.ID, 10))
	if asset.TxHash != "" {
		if err := p.collections[collectionAssetTxHash].Set([]byte(asset.TxHash), id, pebble.Sync); err != nil {
			return err
		}
	}
	if asset.TxHashFunded != "" {
		if err := p.collections[collectionAssetFunded].Set([]byte(asset.TxHashFunded), id, pebble.Sync); err != nil {
			return err
		}
	}
	return nil
}

func (p *PebbleDatabase) GetAssetByID(id uint64) (*model.Asset, error) {
	var asset model.Asset
	if err := p.getJSON(collectionAssets, assetKey(id), &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (p *PebbleDatabase) getAssetByIndex(collection, txHash string) (*model.Asset, error) {
	idStr, err := p.getString(collection, txHash)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt asset index for %s: %w", txHash, err)
	}
	return p.GetAssetByID(id)
}

func (p *PebbleDatabase) GetAssetByTxHash(txHash string) (*model.Asset, error) {
	return p.getAssetByIndex(collectionAssetTxHash, txHash)
}

func (p *PebbleDatabase) GetAssetByFundingTxHash(txHash string) (*model.Asset, error) {
	return p.getAssetByIndex(collectionAssetFunded, txHash)
}

func (p *PebbleDatabase) ListDistributionCandidates(types []model.ConditionType, now time.Time, afterID uint64, limit int) ([]*model.Asset, error) {
	var assets []*model.Asset
	err := p.scanAssets(afterID+1, func(asset *model.Asset) bool {
		if asset.ValidatedFunds && !asset.Distributed && asset.TriggerCondition != nil &&
			matchesTypes(asset.TriggerCondition.ConditionType, types) && triggerFired(asset, now) {
			assets = append(assets, asset)
		}
		return limit <= 0 || len(assets) < limit
	})
	return assets, err
}

func (p *PebbleDatabase) ListInactivityCandidates(limit int) ([]*model.Asset, error) {
	var assets []*model.Asset
	err := p.scanAssets(0, func(asset *model.Asset) bool {
		if asset.ValidatedFunds && !asset.Distributed && !asset.IsNowDueDate &&
			asset.TriggerType() == model.ConditionInactivity {
			assets = append(assets, asset)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return oldestFirst(assets, func(a *model.Asset) *time.Time { return a.LastScoredAt }, limit), nil
}

func (p *PebbleDatabase) ListUnvalidatedAssets(limit int) ([]*model.Asset, error) {
	var assets []*model.Asset
	err := p.scanAssets(0, func(asset *model.Asset) bool {
		if (!asset.ValidatedCreated && asset.TxHash != "") || (!asset.ValidatedFunds && asset.TxHashFunded != "") {
			assets = append(assets, asset)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return oldestFirst(assets, func(a *model.Asset) *time.Time { return a.ValidationCheckedAt }, limit), nil
}

// oldestFirst orders by the stamp, nil before all, id order among equals, then truncates
func oldestFirst(assets []*model.Asset, stamp func(*model.Asset) *time.Time, limit int) []*model.Asset {
	sort.SliceStable(assets, func(i, j int) bool {
		a, b := stamp(assets[i]), stamp(assets[j])
		if a == nil || b == nil {
			return a == nil && b != nil
		}
		return a.Before(*b)
	})
	if limit > 0 && len(assets) > limit {
		assets = assets[:limit]
	}
	return assets
}

// updateAsset read-modify-write of one asset under the write lock
func (p *PebbleDatabase) updateAsset(id uint64, fn func(asset *model.Asset) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	asset, err := p.GetAssetByID(id)
	if err != nil {
		return err
	}
	if err := fn(asset); err != nil {
		return err
	}
	asset.UpdatedAt = time.Now().UTC()
	return p.putAsset(asset)
}

func (p *PebbleDatabase) UpdateActivityScore(id uint64, score float64, due bool, scoredAt time.Time) error {
	return p.updateAsset(id, func(asset *model.Asset) error {
		asset.LastActivityScore = score
		asset.LastScoredAt = &scoredAt
		if due {
			asset.IsNowDueDate = true
		}
		return nil
	})
}

// TouchValidationCheck leaves UpdatedAt alone, the funded delay is measured from it
func (p *PebbleDatabase) TouchValidationCheck(id uint64, checkedAt time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	asset, err := p.GetAssetByID(id)
	if err != nil {
		return err
	}
	asset.ValidationCheckedAt = &checkedAt
	return p.putAsset(asset)
}

func (p *PebbleDatabase) SetAssetValidated(id uint64, flag ValidationFlag) error {
	return p.updateAsset(id, func(asset *model.Asset) error {
		switch flag {
		case FlagValidatedCreated:
			asset.ValidatedCreated = true
		case FlagValidatedFunds:
			asset.ValidatedFunds = true
		default:
			return fmt.Errorf("unknown validation flag %q", flag)
		}
		return nil
	})
}

// MarkDistributed writes the asset before the attempt: a crash in between
// leaves the asset distributed with an open attempt, which is never redispatched.
func (p *PebbleDatabase) MarkDistributed(assetID uint64, attempt *model.DistributionAttempt) error {
	err := p.updateAsset(assetID, func(asset *model.Asset) error {
		if asset.Distributed {
			return ErrAlreadyDistributed
		}
		now := time.Now().UTC()
		asset.Distributed = true
		asset.DistributedTxHash = attempt.TxHash
		asset.DistributedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	return p.UpdateDistributionAttempt(attempt)
}

// DistributionAttempt operations

func (p *PebbleDatabase) putAttempt(attempt *model.DistributionAttempt) error {
	data, err := json.Marshal(attempt)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}
	return p.collections[collectionAttempts].Set([]byte(attempt.ID), data, pebble.Sync)
}

func (p *PebbleDatabase) CreateDistributionAttempt(attempt *model.DistributionAttempt) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.getString(collectionAttemptTx, attempt.TxHash); err == nil {
		return ErrDuplicateTxHash
	}

	now := time.Now().UTC()
	attempt.CreatedAt = now
	attempt.UpdatedAt = now
	if attempt.SubmittedAt.IsZero() {
		attempt.SubmittedAt = now
	}

	if err := p.putAttempt(attempt); err != nil {
		return err
	}
	if err := p.collections[collectionAttemptAsset].Set(attemptAssetKey(attempt), []byte(attempt.ID), pebble.Sync); err != nil {
		return err
	}
	return p.collections[collectionAttemptTx].Set([]byte(attempt.TxHash), []byte(attempt.ID), pebble.Sync)
}

func (p *PebbleDatabase) UpdateDistributionAttempt(attempt *model.DistributionAttempt) error {
	if attempt == nil {
		return fmt.Errorf("attempt is nil")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var existing model.DistributionAttempt
	if err := p.getJSON(collectionAttempts, []byte(attempt.ID), &existing); err != nil {
		return err
	}
	attempt.CreatedAt = existing.CreatedAt
	attempt.UpdatedAt = time.Now().UTC()
	return p.putAttempt(attempt)
}

func (p *PebbleDatabase) GetOpenDistributionAttempt(assetID uint64) (*model.DistributionAttempt, error) {
	attempts, err := p.ListDistributionAttempts(assetID)
	if err != nil {
		return nil, err
	}
	for _, attempt := range attempts {
		if attempt.Status.IsOpen() {
			return attempt, nil
		}
	}
	return nil, ErrNotFound
}

func (p *PebbleDatabase) ListDistributionAttempts(assetID uint64) ([]*model.DistributionAttempt, error) {
	prefix := attemptAssetPrefix(assetID)
	iter, err := p.collections[collectionAttemptAsset].NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var attempts []*model.DistributionAttempt
	// newest first
	for iter.Last(); iter.Valid(); iter.Prev() {
		var attempt model.DistributionAttempt
		if err := p.getJSON(collectionAttempts, iter.Value(), &attempt); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		attempts = append(attempts, &attempt)
	}
	return attempts, iter.Error()
}

// General operations

func (p *PebbleDatabase) Ping() error {
	if len(p.collections) == 0 {
		return fmt.Errorf("pebble database is closed")
	}
	return nil
}

func (p *PebbleDatabase) Close() error {
	var firstErr error
	for name, db := range p.collections {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close collection %s: %w", name, err)
		}
	}
	p.collections = map[string]*pebble.DB{}
	return firstErr
}
