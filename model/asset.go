package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// AssetType chain/token kind held by an asset
type AssetType string

const (
	AssetTypeCOTI AssetType = "COTI"
	AssetTypeETH  AssetType = "ETH"
	AssetTypeUSDT AssetType = "USDT"
)

// Asset a tracked wallet balance with an owner, a trigger and beneficiaries
type Asset struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"`

	AssetType     AssetType       `gorm:"type:varchar(20);not null" json:"asset_type"`
	WalletAddress string          `gorm:"index;type:varchar(64);not null" json:"wallet_address"` // Owner wallet, also the activity subject
	Balance       decimal.Decimal `gorm:"type:decimal(65,0);not null;default:0" json:"balance"`  // Smallest unit for the chain
	OwnerID       uint64          `gorm:"index" json:"owner_id"`
	WillID        uint64          `json:"will_id"` // Will identifier known to the distribution contract

	// Creation / funding transactions
	TxHash       string `gorm:"uniqueIndex;type:varchar(80)" json:"txhash"`
	TxHashFunded string `gorm:"index;type:varchar(80)" json:"txhash_funded"`

	ValidatedCreated bool `gorm:"default:false" json:"validated_created"`
	ValidatedFunds   bool `gorm:"default:false" json:"validated_funds"`
	// Last explorer lookup, rotates the validation batch
	ValidationCheckedAt *time.Time `gorm:"index" json:"validation_checked_at"`

	// Terminal flag, false -> true once
	Distributed       bool       `gorm:"index;default:false" json:"distributed"`
	DistributedTxHash string     `gorm:"type:varchar(80)" json:"distributed_tx_hash"`
	DistributedAt     *time.Time `json:"distributed_at"`

	// Sticky inactivity flag and the score that set it
	IsNowDueDate      bool       `gorm:"default:false" json:"is_now_due_date"`
	LastActivityScore float64    `json:"last_activity_score"`
	LastScoredAt      *time.Time `json:"last_scored_at"`

	TriggerCondition *TriggerCondition `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"trigger_condition"`
	Beneficiaries    []Beneficiary     `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"beneficiaries"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specify table name
func (Asset) TableName() string {
	return "tb_asset"
}

// BalanceWei balance as an integer amount for the contract call
func (a *Asset) BalanceWei() *big.Int {
	return a.Balance.Truncate(0).BigInt()
}

// TriggerType returns the trigger condition type, empty when there is none
func (a *Asset) TriggerType() ConditionType {
	if a.TriggerCondition == nil {
		return ""
	}
	return a.TriggerCondition.ConditionType
}
