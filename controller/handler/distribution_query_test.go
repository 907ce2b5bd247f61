package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digital-will/database"
	"digital-will/model"
	"digital-will/model/dao"
	"digital-will/service/scheduler_service"
	"digital-will/storage"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixedStats scheduler_service.Stats

func (f fixedStats) Stats() scheduler_service.Stats { return scheduler_service.Stats(f) }

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, pingErr error) (*DistributionQueryHandler, *dao.AssetDAO, *dao.DistributionAttemptDAO) {
	t.Helper()
	db, err := database.NewDatabase(database.DBTypePebble, &database.PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	archive, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assets := dao.NewAssetDAO(db)
	attempts := dao.NewDistributionAttemptDAO(db)
	h := NewDistributionQueryHandler(assets, attempts,
		[]StatsSource{fixedStats{Name: "due-date", Cycles: 3}},
		archive,
		func() error { return pingErr })
	h.now = func() time.Time { return now }
	return h, assets, attempts
}

func newAsset(t *testing.T, assets *dao.AssetDAO, ct model.ConditionType, value int64) *model.Asset {
	t.Helper()
	a := &model.Asset{
		AssetType:        model.AssetTypeCOTI,
		WalletAddress:    "0x1014BD7f50abb2A3107EC701701fb93542912e3a",
		Balance:          decimal.NewFromInt(1000),
		ValidatedCreated: true,
		ValidatedFunds:   true,
		TriggerCondition: &model.TriggerCondition{ConditionType: ct, Value: &value},
	}
	require.NoError(t, assets.Create(a))
	return a
}

func serve(h *DistributionQueryHandler, target string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/assets/due", h.ListDueAssets)
	r.GET("/assets/:id", h.GetAsset)
	r.GET("/assets/:id/attempts", h.ListAttempts)
	r.GET("/assets/:id/receipt", h.GetReceipt)
	r.GET("/schedulers", h.ListSchedulers)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	w := serve(h, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	h, _, _ = newTestHandler(t, errors.New("closed"))
	w = serve(h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestListDueAssets(t *testing.T) {
	h, assets, _ := newTestHandler(t, nil)
	past := newAsset(t, assets, model.ConditionDueDate, now.Add(-time.Hour).Unix())
	newAsset(t, assets, model.ConditionDueDate, now.Add(time.Hour).Unix())
	newAsset(t, assets, model.ConditionInactivity, 6)

	w := serve(h, "/assets/due")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Assets []struct {
			ID          uint64 `json:"id"`
			TriggerType string `json:"trigger_type"`
		} `json:"assets"`
		Total int `json:"total"`
	}
	env := decode(t, w, &list)
	assert.Zero(t, env.Code)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, past.ID, list.Assets[0].ID)
	assert.Equal(t, "due_date", list.Assets[0].TriggerType)

	w = serve(h, "/assets/due?trigger=inactivity")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Zero(t, list.Total)
}

func TestListDueAssetsRejectsBadQuery(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)

	for _, target := range []string{"/assets/due?trigger=weather", "/assets/due?limit=0", "/assets/due?limit=abc"} {
		w := serve(h, target)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestGetAsset(t *testing.T) {
	h, assets, _ := newTestHandler(t, nil)
	a := newAsset(t, assets, model.ConditionDueDate, now.Unix())

	w := serve(h, "/assets/1")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		ID      uint64 `json:"id"`
		Balance string `json:"balance"`
	}
	decode(t, w, &got)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, "1000", got.Balance)

	assert.Equal(t, http.StatusNotFound, serve(h, "/assets/99").Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, "/assets/x").Code)
}

func TestListAttempts(t *testing.T) {
	h, assets, attempts := newTestHandler(t, nil)
	a := newAsset(t, assets, model.ConditionDueDate, now.Unix())
	require.NoError(t, attempts.Create(&model.DistributionAttempt{
		ID:          "a1",
		AssetID:     a.ID,
		TxHash:      "0xabc",
		Status:      model.AttemptStatusReverted,
		SubmittedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, attempts.Create(&model.DistributionAttempt{
		ID:          "a2",
		AssetID:     a.ID,
		TxHash:      "0xdef",
		Status:      model.AttemptStatusPending,
		SubmittedAt: now,
	}))

	w := serve(h, "/assets/1/attempts")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Attempts []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"attempts"`
	}
	decode(t, w, &list)
	require.Len(t, list.Attempts, 2)
	assert.Equal(t, "a2", list.Attempts[0].ID)
	assert.Equal(t, "pending", list.Attempts[0].Status)
}

func TestGetReceipt(t *testing.T) {
	h, assets, attempts := newTestHandler(t, nil)
	a := newAsset(t, assets, model.ConditionDueDate, now.Unix())
	other := newAsset(t, assets, model.ConditionDueDate, now.Unix())

	assert.Equal(t, http.StatusNotFound, serve(h, "/assets/1/receipt").Code, "not distributed yet")
	assert.Equal(t, http.StatusNotFound, serve(h, "/assets/99/receipt").Code)

	for _, id := range []uint64{a.ID, other.ID} {
		attempt := &model.DistributionAttempt{
			ID:          fmt.Sprintf("d%d", id),
			AssetID:     id,
			TxHash:      fmt.Sprintf("0xfeed%d", id),
			Status:      model.AttemptStatusPending,
			SubmittedAt: now,
		}
		require.NoError(t, attempts.Create(attempt))
		attempt.Resolve(model.AttemptStatusConfirmed, 42, now)
		require.NoError(t, assets.MarkDistributed(id, attempt))
	}
	require.NoError(t, storage.SaveReceipt(context.Background(), h.archive, &storage.ReceiptRecord{
		AssetID:     a.ID,
		TxHash:      "0xfeed1",
		BlockNumber: 42,
		ConfirmedAt: now,
	}))

	w := serve(h, "/assets/1/receipt")
	require.Equal(t, http.StatusOK, w.Code)
	var rec storage.ReceiptRecord
	decode(t, w, &rec)
	assert.Equal(t, "0xfeed1", rec.TxHash)
	assert.Equal(t, uint64(42), rec.BlockNumber)

	// distributed, but the archive write never happened
	w = serve(h, "/assets/2/receipt")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "receipt not archived")
}

func TestListSchedulers(t *testing.T) {
	h, _, _ := newTestHandler(t, nil)
	w := serve(h, "/schedulers")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Schedulers []scheduler_service.Stats `json:"schedulers"`
	}
	decode(t, w, &list)
	require.Len(t, list.Schedulers, 1)
	assert.Equal(t, "due-date", list.Schedulers[0].Name)
	assert.Equal(t, uint64(3), list.Schedulers[0].Cycles)
}
