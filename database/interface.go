package database

import (
	"time"

	"digital-will/model"
)

// ValidationFlag asset validation flag flipped by the explorer check
type ValidationFlag string

const (
	FlagValidatedCreated ValidationFlag = "validated_created"
	FlagValidatedFunds   ValidationFlag = "validated_funds"
)

// Database interface for different database implementations
type Database interface {
	// Asset operations
	CreateAsset(asset *model.Asset) error
	GetAssetByID(id uint64) (*model.Asset, error)
	GetAssetByTxHash(txHash string) (*model.Asset, error)
	GetAssetByFundingTxHash(txHash string) (*model.Asset, error)
	// ListDistributionCandidates returns funded, undistributed assets whose trigger
	// has fired by now (due date passed, or inactivity flag set), with id > afterID,
	// in id order. An empty types slice means every trigger type.
	ListDistributionCandidates(types []model.ConditionType, now time.Time, afterID uint64, limit int) ([]*model.Asset, error)
	ListInactivityCandidates(limit int) ([]*model.Asset, error)
	// ListUnvalidatedAssets least recently checked first, never checked before all
	ListUnvalidatedAssets(limit int) ([]*model.Asset, error)
	UpdateActivityScore(id uint64, score float64, due bool, scoredAt time.Time) error
	SetAssetValidated(id uint64, flag ValidationFlag) error
	TouchValidationCheck(id uint64, checkedAt time.Time) error
	// MarkDistributed flips distributed false->true and stores the confirmed
	// attempt together. Returns ErrAlreadyDistributed if the flag was set.
	MarkDistributed(assetID uint64, attempt *model.DistributionAttempt) error

	// DistributionAttempt operations
	CreateDistributionAttempt(attempt *model.DistributionAttempt) error
	UpdateDistributionAttempt(attempt *model.DistributionAttempt) error
	GetOpenDistributionAttempt(assetID uint64) (*model.DistributionAttempt, error)
	// ListDistributionAttempts newest first
	ListDistributionAttempts(assetID uint64) ([]*model.DistributionAttempt, error)

	// General operations
	Ping() error
	Close() error
}

// DBType database type
type DBType string

const (
	DBTypeMySQL  DBType = "mysql"
	DBTypePebble DBType = "pebble"
)

// NewDatabase initialize database with specified type
func NewDatabase(dbType DBType, config interface{}) (Database, error) {
	switch dbType {
	case DBTypeMySQL:
		return NewMySQLDatabase(config)
	case DBTypePebble:
		return NewPebbleDatabase(config)
	default:
		return nil, ErrUnsupportedDBType
	}
}

// matchesTypes reports whether t is allowed by the filter
func matchesTypes(t model.ConditionType, types []model.ConditionType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// triggerFired the store-side prefilter of ListDistributionCandidates. The
// evaluator still makes the final decision.
func triggerFired(asset *model.Asset, now time.Time) bool {
	tc := asset.TriggerCondition
	if tc == nil {
		return false
	}
	switch tc.ConditionType {
	case model.ConditionDueDate:
		return tc.Value != nil && *tc.Value <= now.Unix()
	case model.ConditionInactivity:
		return asset.IsNowDueDate
	default:
		return false
	}
}
