package dao

import (
	"errors"
	"fmt"

	"digital-will/database"
	"digital-will/model"
)

// DistributionAttemptDAO data access layer for distribution attempts
type DistributionAttemptDAO struct {
	db database.Database
}

// NewDistributionAttemptDAO creates a new DAO instance
func NewDistributionAttemptDAO(db database.Database) *DistributionAttemptDAO {
	return &DistributionAttemptDAO{db: db}
}

// Create inserts a new attempt record
func (dao *DistributionAttemptDAO) Create(attempt *model.DistributionAttempt) error {
	return dao.db.CreateDistributionAttempt(attempt)
}

// Update persists attempt changes
func (dao *DistributionAttemptDAO) Update(attempt *model.DistributionAttempt) error {
	if attempt == nil {
		return fmt.Errorf("attempt is nil")
	}
	return dao.db.UpdateDistributionAttempt(attempt)
}

// GetOpen returns the pending/unknown attempt for an asset, nil if none
func (dao *DistributionAttemptDAO) GetOpen(assetID uint64) (*model.DistributionAttempt, error) {
	attempt, err := dao.db.GetOpenDistributionAttempt(assetID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return attempt, err
}

// ListByAsset returns attempts newest first
func (dao *DistributionAttemptDAO) ListByAsset(assetID uint64) ([]*model.DistributionAttempt, error) {
	return dao.db.ListDistributionAttempts(assetID)
}

// RevertHistory counts reverted attempts and returns the newest one
func (dao *DistributionAttemptDAO) RevertHistory(assetID uint64) (int, *model.DistributionAttempt, error) {
	attempts, err := dao.db.ListDistributionAttempts(assetID)
	if err != nil {
		return 0, nil, err
	}
	var count int
	var latest *model.DistributionAttempt
	for _, a := range attempts {
		if a.Status != model.AttemptStatusReverted {
			continue
		}
		if latest == nil {
			latest = a
		}
		count++
	}
	return count, latest, nil
}
