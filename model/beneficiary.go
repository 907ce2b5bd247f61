package model

import "github.com/shopspring/decimal"

// Beneficiary receives share_percentage of an asset on distribution
type Beneficiary struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletAddress   string          `gorm:"type:varchar(64);not null" json:"wallet_address"`
	SharePercentage decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"share_percentage"` // 0-100
	AssetID         uint64          `gorm:"index;not null" json:"asset_id"`
}

// TableName specify table name
func (Beneficiary) TableName() string {
	return "tb_beneficiary"
}

// TotalShare sums share_percentage over beneficiaries
func TotalShare(beneficiaries []Beneficiary) decimal.Decimal {
	total := decimal.Zero
	for _, b := range beneficiaries {
		total = total.Add(b.SharePercentage)
	}
	return total
}
