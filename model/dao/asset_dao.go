package dao

import (
	"time"

	"digital-will/database"
	"digital-will/model"
)

// AssetDAO data access layer for assets
type AssetDAO struct {
	db database.Database
}

// NewAssetDAO creates a new DAO instance
func NewAssetDAO(db database.Database) *AssetDAO {
	return &AssetDAO{db: db}
}

// Create inserts an asset with its trigger and beneficiaries
func (dao *AssetDAO) Create(asset *model.Asset) error {
	return dao.db.CreateAsset(asset)
}

// GetByID fetches an asset by primary key
func (dao *AssetDAO) GetByID(id uint64) (*model.Asset, error) {
	return dao.db.GetAssetByID(id)
}

// GetByTxHash fetches an asset by its creation tx hash
func (dao *AssetDAO) GetByTxHash(txHash string) (*model.Asset, error) {
	return dao.db.GetAssetByTxHash(txHash)
}

// GetByFundingTxHash fetches an asset by its funding tx hash
func (dao *AssetDAO) GetByFundingTxHash(txHash string) (*model.Asset, error) {
	return dao.db.GetAssetByFundingTxHash(txHash)
}

// ListCandidates returns funded, undistributed assets with a fired trigger in
// types, one page after afterID
func (dao *AssetDAO) ListCandidates(types []model.ConditionType, now time.Time, afterID uint64, limit int) ([]*model.Asset, error) {
	return dao.db.ListDistributionCandidates(types, now, afterID, limit)
}

// ListInactivityCandidates returns assets whose inactivity flag is not yet set
func (dao *AssetDAO) ListInactivityCandidates(limit int) ([]*model.Asset, error) {
	return dao.db.ListInactivityCandidates(limit)
}

// ListUnvalidated returns assets waiting on an explorer check
func (dao *AssetDAO) ListUnvalidated(limit int) ([]*model.Asset, error) {
	return dao.db.ListUnvalidatedAssets(limit)
}

// RecordActivityScore stores the latest score, setting the sticky flag when due
func (dao *AssetDAO) RecordActivityScore(id uint64, score float64, due bool, at time.Time) error {
	return dao.db.UpdateActivityScore(id, score, due, at)
}

// RecordValidationCheck moves the asset to the back of the validation queue
func (dao *AssetDAO) RecordValidationCheck(id uint64, at time.Time) error {
	return dao.db.TouchValidationCheck(id, at)
}

// MarkCreatedValidated flips validated_created
func (dao *AssetDAO) MarkCreatedValidated(id uint64) error {
	return dao.db.SetAssetValidated(id, database.FlagValidatedCreated)
}

// MarkFundsValidated flips validated_funds
func (dao *AssetDAO) MarkFundsValidated(id uint64) error {
	return dao.db.SetAssetValidated(id, database.FlagValidatedFunds)
}

// MarkDistributed commits distributed=true with the confirmed attempt
func (dao *AssetDAO) MarkDistributed(assetID uint64, attempt *model.DistributionAttempt) error {
	return dao.db.MarkDistributed(assetID, attempt)
}
