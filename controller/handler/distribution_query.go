package handler

import (
	"errors"
	"strconv"
	"time"

	"digital-will/controller/respond"
	"digital-will/database"
	"digital-will/model"
	"digital-will/service/eligibility_service"
	"digital-will/service/scheduler_service"
	"digital-will/storage"

	"github.com/gin-gonic/gin"
)

// AssetReader satisfied by *dao.AssetDAO
type AssetReader interface {
	GetByID(id uint64) (*model.Asset, error)
	ListCandidates(types []model.ConditionType, now time.Time, afterID uint64, limit int) ([]*model.Asset, error)
}

// AttemptReader satisfied by *dao.DistributionAttemptDAO
type AttemptReader interface {
	ListByAsset(assetID uint64) ([]*model.DistributionAttempt, error)
}

// StatsSource satisfied by *scheduler_service.Scheduler
type StatsSource interface {
	Stats() scheduler_service.Stats
}

// DistributionQueryHandler read-only views of the distribution engine
type DistributionQueryHandler struct {
	assets     AssetReader
	attempts   AttemptReader
	schedulers []StatsSource
	archive    storage.Archive
	pinger     func() error
	now        func() time.Time
}

// NewDistributionQueryHandler create handler instance; archive may be nil
func NewDistributionQueryHandler(assets AssetReader, attempts AttemptReader, schedulers []StatsSource, archive storage.Archive, pinger func() error) *DistributionQueryHandler {
	return &DistributionQueryHandler{
		assets:     assets,
		attempts:   attempts,
		schedulers: schedulers,
		archive:    archive,
		pinger:     pinger,
		now:        time.Now,
	}
}

// Health reports whether the store answers
func (h *DistributionQueryHandler) Health(c *gin.Context) {
	if h.pinger != nil {
		if err := h.pinger(); err != nil {
			respond.Unavailable(c, "database unavailable: "+err.Error())
			return
		}
	}
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "distributor",
	})
}

// ListDueAssets assets the evaluator would dispatch right now
// @Summary      List due assets
// @Tags         Distribution
// @Produce      json
// @Param        trigger  query     string  false  "Trigger type filter (due_date, inactivity), repeatable"
// @Param        limit    query     int     false  "Max candidates to scan"  default(100)
// @Success      200      {object}  respond.Response{data=respond.AssetListResponse}
// @Router       /assets/due [get]
func (h *DistributionQueryHandler) ListDueAssets(c *gin.Context) {
	types, err := model.ParseConditionTypes(c.QueryArray("trigger"))
	if err != nil {
		respond.InvalidParam(c, err.Error())
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 1000 {
		respond.InvalidParam(c, "limit must be between 1 and 1000")
		return
	}

	now := h.now()
	candidates, err := h.assets.ListCandidates(types, now, 0, limit)
	if err != nil {
		respond.ServerError(c, err.Error())
		return
	}
	due := eligibility_service.NewEvaluator(types).ListDueAssets(candidates, now)
	respond.Success(c, respond.ToAssetListResponse(due))
}

func parseAssetID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respond.InvalidParam(c, "invalid asset id")
		return 0, false
	}
	return id, true
}

// GetAsset one asset with its distribution state
// @Summary      Get asset
// @Tags         Distribution
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  respond.Response{data=respond.AssetResponse}
// @Failure      404  {object}  respond.Response
// @Router       /assets/{id} [get]
func (h *DistributionQueryHandler) GetAsset(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	asset, err := h.assets.GetByID(id)
	if errors.Is(err, database.ErrNotFound) {
		respond.NotFound(c, "asset not found")
		return
	}
	if err != nil {
		respond.ServerError(c, err.Error())
		return
	}
	respond.Success(c, respond.ToAssetResponse(asset))
}

// ListAttempts distribution attempts of one asset, newest first
// @Summary      List distribution attempts
// @Tags         Distribution
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  respond.Response{data=respond.AttemptListResponse}
// @Router       /assets/{id}/attempts [get]
func (h *DistributionQueryHandler) ListAttempts(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	attempts, err := h.attempts.ListByAsset(id)
	if err != nil {
		respond.ServerError(c, err.Error())
		return
	}
	respond.Success(c, respond.ToAttemptListResponse(id, attempts))
}

// GetReceipt archived receipt of a distributed asset
// @Summary      Get distribution receipt
// @Tags         Distribution
// @Produce      json
// @Param        id   path      int  true  "Asset ID"
// @Success      200  {object}  respond.Response{data=storage.ReceiptRecord}
// @Failure      404  {object}  respond.Response
// @Router       /assets/{id}/receipt [get]
func (h *DistributionQueryHandler) GetReceipt(c *gin.Context) {
	id, ok := parseAssetID(c)
	if !ok {
		return
	}
	asset, err := h.assets.GetByID(id)
	if errors.Is(err, database.ErrNotFound) {
		respond.NotFound(c, "asset not found")
		return
	}
	if err != nil {
		respond.ServerError(c, err.Error())
		return
	}
	if !asset.Distributed || asset.DistributedTxHash == "" {
		respond.NotFound(c, "asset not distributed")
		return
	}
	if h.archive == nil {
		respond.NotFound(c, "receipt archive disabled")
		return
	}

	rec, err := storage.LoadReceipt(c.Request.Context(), h.archive, id, asset.DistributedTxHash)
	if errors.Is(err, storage.ErrNotFound) {
		respond.NotFound(c, "receipt not archived")
		return
	}
	if err != nil {
		respond.ServerError(c, err.Error())
		return
	}
	respond.Success(c, rec)
}

// ListSchedulers last cycle stats of every loop profile
// @Summary      Scheduler status
// @Tags         Distribution
// @Produce      json
// @Success      200  {object}  respond.Response{data=respond.SchedulerListResponse}
// @Router       /schedulers [get]
func (h *DistributionQueryHandler) ListSchedulers(c *gin.Context) {
	stats := make([]scheduler_service.Stats, 0, len(h.schedulers))
	for _, s := range h.schedulers {
		stats = append(stats, s.Stats())
	}
	respond.Success(c, &respond.SchedulerListResponse{Schedulers: stats})
}
