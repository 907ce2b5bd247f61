package database

import (
	"errors"
	"fmt"
	"time"

	"digital-will/common/logger"
	"digital-will/model"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// MySQLDatabase MySQL database implementation
type MySQLDatabase struct {
	db *gorm.DB
}

// MySQLConfig MySQL configuration
type MySQLConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

// NewMySQLDatabase create MySQL database instance
func NewMySQLDatabase(config interface{}) (Database, error) {
	cfg, ok := config.(*MySQLConfig)
	if !ok {
		return nil, fmt.Errorf("invalid MySQL config type")
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Set connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.Asset{}, &model.TriggerCondition{}, &model.Beneficiary{}, &model.DistributionAttempt{}); err != nil {
		return nil, fmt.Errorf("failed to migrate MySQL schema: %w", err)
	}

	logger.Named("database").Info("MySQL database connected successfully")

	return &MySQLDatabase{db: db}, nil
}

func (m *MySQLDatabase) withRelations() *gorm.DB {
	return m.db.Preload("TriggerCondition").Preload("Beneficiaries")
}

// Asset operations

func (m *MySQLDatabase) CreateAsset(asset *model.Asset) error {
	return m.db.Create(asset).Error
}

func (m *MySQLDatabase) GetAssetByID(id uint64) (*model.Asset, error) {
	var asset model.Asset
	err := m.withRelations().Where("id = ?", id).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &asset, err
}

func (m *MySQLDatabase) GetAssetByTxHash(txHash string) (*model.Asset, error) {
	var asset model.Asset
	err := m.withRelations().Where("tx_hash = ?", txHash).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &asset, err
}

func (m *MySQLDatabase) GetAssetByFundingTxHash(txHash string) (*model.Asset, error) {
	var asset model.Asset
	err := m.withRelations().Where("tx_hash_funded = ?", txHash).First(&asset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &asset, err
}

func (m *MySQLDatabase) ListDistributionCandidates(types []model.ConditionType, now time.Time, afterID uint64, limit int) ([]*model.Asset, error) {
	var assets []*model.Asset
	query := m.withRelations().
		Joins("JOIN tb_trigger_condition tc ON tc.asset_id = tb_asset.id").
		Where("tb_asset.validated_funds = ? AND tb_asset.distributed = ? AND tb_asset.id > ?", true, false, afterID).
		Where("((tc.condition_type = ? AND tc.value <= ?) OR (tc.condition_type = ? AND tb_asset.is_now_due_date = ?))",
			model.ConditionDueDate, now.Unix(), model.ConditionInactivity, true)
	if len(types) > 0 {
		query = query.Where("tc.condition_type IN ?", types)
	}
	err := query.Order("tb_asset.id ASC").Limit(limit).Find(&assets).Error
	return assets, err
}

func (m *MySQLDatabase) ListInactivityCandidates(limit int) ([]*model.Asset, error) {
	var assets []*model.Asset
	err := m.withRelations().
		Joins("JOIN tb_trigger_condition tc ON tc.asset_id = tb_asset.id").
		Where("tb_asset.validated_funds = ? AND tb_asset.distributed = ? AND tb_asset.is_now_due_date = ?", true, false, false).
		Where("tc.condition_type = ?", model.ConditionInactivity).
		Order("tb_asset.last_scored_at ASC").
		Limit(limit).
		Find(&assets).Error
	return assets, err
}

func (m *MySQLDatabase) ListUnvalidatedAssets(limit int) ([]*model.Asset, error) {
	var assets []*model.Asset
	err := m.withRelations().
		Where("(validated_created = ? AND tx_hash <> '') OR (validated_funds = ? AND tx_hash_funded <> '')", false, false).
		Order("validation_checked_at ASC, id ASC"). // NULLs sort first
		Limit(limit).
		Find(&assets).Error
	return assets, err
}

func (m *MySQLDatabase) UpdateActivityScore(id uint64, score float64, due bool, scoredAt time.Time) error {
	updates := map[string]interface{}{
		"last_activity_score": score,
		"last_scored_at":      scoredAt,
	}
	// sticky: never cleared here
	if due {
		updates["is_now_due_date"] = true
	}
	result := m.db.Model(&model.Asset{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MySQLDatabase) SetAssetValidated(id uint64, flag ValidationFlag) error {
	result := m.db.Model(&model.Asset{}).Where("id = ?", id).Update(string(flag), true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MySQLDatabase) TouchValidationCheck(id uint64, checkedAt time.Time) error {
	result := m.db.Model(&model.Asset{}).Where("id = ?", id).UpdateColumn("validation_checked_at", checkedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MySQLDatabase) MarkDistributed(assetID uint64, attempt *model.DistributionAttempt) error {
	return m.db.Transaction(func(tx *gorm.DB) error {
		var asset model.Asset
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", assetID).First(&asset).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if asset.Distributed {
			return ErrAlreadyDistributed
		}

		now := time.Now().UTC()
		err = tx.Model(&model.Asset{}).Where("id = ? AND distributed = ?", assetID, false).
			Updates(map[string]interface{}{
				"distributed":         true,
				"distributed_tx_hash": attempt.TxHash,
				"distributed_at":      now,
			}).Error
		if err != nil {
			return err
		}

		return tx.Save(attempt).Error
	})
}

// DistributionAttempt operations

func (m *MySQLDatabase) CreateDistributionAttempt(attempt *model.DistributionAttempt) error {
	err := m.db.Create(attempt).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateTxHash
	}
	return err
}

func (m *MySQLDatabase) UpdateDistributionAttempt(attempt *model.DistributionAttempt) error {
	if attempt == nil {
		return fmt.Errorf("attempt is nil")
	}
	return m.db.Model(&model.DistributionAttempt{}).
		Where("id = ?", attempt.ID).
		Select("*").
		Updates(attempt).Error
}

func (m *MySQLDatabase) GetOpenDistributionAttempt(assetID uint64) (*model.DistributionAttempt, error) {
	var attempt model.DistributionAttempt
	err := m.db.Where("asset_id = ? AND status IN ?", assetID,
		[]model.AttemptStatus{model.AttemptStatusPending, model.AttemptStatusUnknown}).
		Order("submitted_at DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &attempt, err
}

func (m *MySQLDatabase) ListDistributionAttempts(assetID uint64) ([]*model.DistributionAttempt, error) {
	var attempts []*model.DistributionAttempt
	err := m.db.Where("asset_id = ?", assetID).Order("submitted_at DESC").Find(&attempts).Error
	return attempts, err
}

// General operations

func (m *MySQLDatabase) Ping() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (m *MySQLDatabase) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	logger.Named("database").Info("MySQL database closed", zap.String("driver", "mysql"))
	return nil
}
