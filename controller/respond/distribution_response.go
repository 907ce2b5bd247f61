package respond

import (
	"time"

	"digital-will/model"
	"digital-will/service/scheduler_service"
)

// AssetResponse asset status as seen by the distributor
type AssetResponse struct {
	ID                uint64     `json:"id" example:"42"`
	AssetType         string     `json:"asset_type" example:"COTI"`
	WalletAddress     string     `json:"wallet_address" example:"0x1014BD7f50abb2A3107EC701701fb93542912e3a"`
	Balance           string     `json:"balance" example:"1000000000000000000"`
	WillID            uint64     `json:"will_id" example:"7"`
	TriggerType       string     `json:"trigger_type" example:"due_date"`
	TriggerValue      *int64     `json:"trigger_value" example:"1700000000"`
	ValidatedCreated  bool       `json:"validated_created"`
	ValidatedFunds    bool       `json:"validated_funds"`
	IsNowDueDate      bool       `json:"is_now_due_date"`
	LastActivityScore float64    `json:"last_activity_score" example:"2"`
	LastScoredAt      *time.Time `json:"last_scored_at"`
	Distributed       bool       `json:"distributed"`
	DistributedTxHash string     `json:"distributed_tx_hash"`
	DistributedAt     *time.Time `json:"distributed_at"`
	Beneficiaries     int        `json:"beneficiaries" example:"2"`
}

// AssetListResponse list of assets
type AssetListResponse struct {
	Assets []*AssetResponse `json:"assets"`
	Total  int              `json:"total" example:"1"`
}

// AttemptResponse one distribution attempt
type AttemptResponse struct {
	ID           string     `json:"id"`
	AssetID      uint64     `json:"asset_id"`
	TxHash       string     `json:"tx_hash"`
	Nonce        uint64     `json:"nonce"`
	GasPriceWei  string     `json:"gas_price_wei"`
	Parameter    string     `json:"parameter"`
	TriggerType  string     `json:"trigger_type"`
	Status       string     `json:"status" example:"confirmed"` // pending, unknown, confirmed, reverted, failed
	BlockNumber  uint64     `json:"block_number"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	ResolvedAt   *time.Time `json:"resolved_at"`
}

// AttemptListResponse attempts of one asset, newest first
type AttemptListResponse struct {
	AssetID  uint64             `json:"asset_id"`
	Attempts []*AttemptResponse `json:"attempts"`
}

// SchedulerListResponse stats of every running loop profile
type SchedulerListResponse struct {
	Schedulers []scheduler_service.Stats `json:"schedulers"`
}

// ToAssetResponse converts a model.Asset
func ToAssetResponse(a *model.Asset) *AssetResponse {
	resp := &AssetResponse{
		ID:                a.ID,
		AssetType:         string(a.AssetType),
		WalletAddress:     a.WalletAddress,
		Balance:           a.Balance.String(),
		WillID:            a.WillID,
		TriggerType:       string(a.TriggerType()),
		ValidatedCreated:  a.ValidatedCreated,
		ValidatedFunds:    a.ValidatedFunds,
		IsNowDueDate:      a.IsNowDueDate,
		LastActivityScore: a.LastActivityScore,
		LastScoredAt:      a.LastScoredAt,
		Distributed:       a.Distributed,
		DistributedTxHash: a.DistributedTxHash,
		DistributedAt:     a.DistributedAt,
		Beneficiaries:     len(a.Beneficiaries),
	}
	if a.TriggerCondition != nil {
		resp.TriggerValue = a.TriggerCondition.Value
	}
	return resp
}

// ToAssetListResponse converts a list of assets
func ToAssetListResponse(assets []*model.Asset) *AssetListResponse {
	list := make([]*AssetResponse, 0, len(assets))
	for _, a := range assets {
		list = append(list, ToAssetResponse(a))
	}
	return &AssetListResponse{Assets: list, Total: len(list)}
}

// ToAttemptListResponse converts attempts of one asset
func ToAttemptListResponse(assetID uint64, attempts []*model.DistributionAttempt) *AttemptListResponse {
	list := make([]*AttemptResponse, 0, len(attempts))
	for _, a := range attempts {
		list = append(list, &AttemptResponse{
			ID:           a.ID,
			AssetID:      a.AssetID,
			TxHash:       a.TxHash,
			Nonce:        a.Nonce,
			GasPriceWei:  a.GasPriceWei.String(),
			Parameter:    a.Parameter.String(),
			TriggerType:  string(a.TriggerType),
			Status:       string(a.Status),
			BlockNumber:  a.BlockNumber,
			ErrorMessage: a.ErrorMessage,
			SubmittedAt:  a.SubmittedAt,
			ResolvedAt:   a.ResolvedAt,
		})
	}
	return &AttemptListResponse{AssetID: assetID, Attempts: list}
}
