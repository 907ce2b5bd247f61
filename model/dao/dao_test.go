package dao

import (
	"testing"
	"time"

	"digital-will/database"
	"digital-will/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewDatabase(database.DBTypePebble, &database.PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestAttemptDAOGetOpenReturnsNilWhenAbsent(t *testing.T) {
	attempts := NewDistributionAttemptDAO(newTestDB(t))

	open, err := attempts.GetOpen(1)
	require.NoError(t, err)
	assert.Nil(t, open)

	assert.Error(t, attempts.Update(nil))
}

func TestAttemptDAORevertHistory(t *testing.T) {
	db := newTestDB(t)
	assets := NewAssetDAO(db)
	attempts := NewDistributionAttemptDAO(db)

	value := int64(1)
	asset := &model.Asset{
		WalletAddress:    "0x0F9Bf01fe3b3eE9027CBf569383761ED55A0b5a2",
		Balance:          decimal.NewFromInt(5),
		ValidatedFunds:   true,
		TriggerCondition: &model.TriggerCondition{ConditionType: model.ConditionDueDate, Value: &value},
	}
	require.NoError(t, assets.Create(asset))

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	statuses := []model.AttemptStatus{model.AttemptStatusReverted, model.AttemptStatusFailed, model.AttemptStatusReverted}
	for i, status := range statuses {
		require.NoError(t, attempts.Create(&model.DistributionAttempt{
			ID:          string(rune('a' + i)),
			AssetID:     asset.ID,
			TxHash:      "0x" + string(rune('a'+i)),
			Status:      status,
			SubmittedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	count, latest, err := attempts.RevertHistory(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NotNil(t, latest)
	assert.Equal(t, "c", latest.ID)

	count, latest, err = attempts.RevertHistory(999)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Nil(t, latest)
}

func TestAssetDAOValidationFlags(t *testing.T) {
	db := newTestDB(t)
	assets := NewAssetDAO(db)

	asset := &model.Asset{TxHash: "0xc1", TxHashFunded: "0xf1", Balance: decimal.Zero}
	require.NoError(t, assets.Create(asset))

	require.NoError(t, assets.MarkCreatedValidated(asset.ID))
	got, err := assets.GetByTxHash("0xc1")
	require.NoError(t, err)
	assert.True(t, got.ValidatedCreated)
	assert.False(t, got.ValidatedFunds)

	require.NoError(t, assets.MarkFundsValidated(asset.ID))
	got, err = assets.GetByFundingTxHash("0xf1")
	require.NoError(t, err)
	assert.True(t, got.ValidatedFunds)
}
