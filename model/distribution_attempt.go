package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AttemptStatus outcome of one submitted distribution transaction
type AttemptStatus string

const (
	AttemptStatusPending   AttemptStatus = "pending"   // Signed and persisted, waiting for a receipt
	AttemptStatusUnknown   AttemptStatus = "unknown"   // Receipt wait expired, tx may still land
	AttemptStatusConfirmed AttemptStatus = "confirmed" // Receipt status 1
	AttemptStatusReverted  AttemptStatus = "reverted"  // Receipt status != 1
	AttemptStatusFailed    AttemptStatus = "failed"    // Never accepted by the node, safe to redo
)

// IsOpen pending and unknown attempts block a fresh submission for the asset
func (s AttemptStatus) IsOpen() bool {
	return s == AttemptStatusPending || s == AttemptStatusUnknown
}

// DistributionAttempt one in-flight or finished dispatch for an asset.
// It is written before broadcast so a crash can be recovered from the tx hash.
type DistributionAttempt struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AssetID uint64 `gorm:"index;not null" json:"asset_id"`

	TxHash      string          `gorm:"uniqueIndex;type:varchar(80);not null" json:"tx_hash"`
	RawTx       string          `gorm:"type:text" json:"raw_tx,omitempty"` // Signed tx hex, rebroadcast on recovery
	Nonce       uint64          `json:"nonce"`
	GasPriceWei decimal.Decimal `gorm:"type:decimal(65,0)" json:"gas_price_wei"`
	Parameter   decimal.Decimal `gorm:"type:decimal(65,0)" json:"parameter"` // amountOrDuration argument
	TriggerType ConditionType   `gorm:"type:varchar(20)" json:"trigger_type"`

	Status       AttemptStatus `gorm:"index;type:varchar(20);default:'pending'" json:"status"`
	BlockNumber  uint64        `json:"block_number"`
	ErrorMessage string        `gorm:"type:text" json:"error_message"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specify table name
func (DistributionAttempt) TableName() string {
	return "tb_distribution_attempt"
}

// Resolve moves the attempt to a terminal status
func (a *DistributionAttempt) Resolve(status AttemptStatus, blockNumber uint64, at time.Time) {
	a.Status = status
	a.BlockNumber = blockNumber
	a.ResolvedAt = &at
}
