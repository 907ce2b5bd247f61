// Package storage archives distribution receipts to local disk, S3 or OSS.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"digital-will/conf"
)

// Archive write-once object store for receipt records
type Archive interface {
	Save(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) bool
}

var (
	ErrNotFound = errors.New("object not found")
	ErrInvalid  = errors.New("invalid archive configuration")
)

// NewArchive create archive by configuration
func NewArchive(cfg conf.ArchiveConfig) (Archive, error) {
	switch cfg.Type {
	case "local", "":
		return NewLocalStorage(cfg.Local.BasePath)
	case "oss":
		return NewOSSStorage(cfg.OSS.Endpoint, cfg.OSS.AccessKey, cfg.OSS.SecretKey, cfg.OSS.Bucket)
	case "s3":
		return NewS3Storage(cfg.S3.Region, cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket)
	case "none":
		return nopArchive{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown archive type %q", ErrInvalid, cfg.Type)
	}
}

// ReceiptRecord what is archived for each confirmed distribution
type ReceiptRecord struct {
	AssetID       uint64    `json:"asset_id"`
	WillID        uint64    `json:"will_id"`
	WalletAddress string    `json:"wallet_address"`
	TriggerType   string    `json:"trigger_type"`
	Parameter     string    `json:"parameter"`
	TxHash        string    `json:"tx_hash"`
	Nonce         uint64    `json:"nonce"`
	GasPriceWei   string    `json:"gas_price_wei"`
	BlockNumber   uint64    `json:"block_number"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// ReceiptKey receipts/<asset id>/<tx hash>.json
func ReceiptKey(assetID uint64, txHash string) string {
	return fmt.Sprintf("receipts/%d/%s.json", assetID, txHash)
}

// SaveReceipt stores rec unless it is already archived
func SaveReceipt(ctx context.Context, a Archive, rec *ReceiptRecord) error {
	key := ReceiptKey(rec.AssetID, rec.TxHash)
	if a.Exists(ctx, key) {
		return nil
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}
	return a.Save(ctx, key, data)
}

// LoadReceipt reads back the record archived for one confirmed distribution
func LoadReceipt(ctx context.Context, a Archive, assetID uint64, txHash string) (*ReceiptRecord, error) {
	data, err := a.Get(ctx, ReceiptKey(assetID, txHash))
	if err != nil {
		return nil, err
	}
	var rec ReceiptRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal receipt %s: %w", txHash, err)
	}
	return &rec, nil
}

type nopArchive struct{}

func (nopArchive) Save(context.Context, string, []byte) error  { return nil }
func (nopArchive) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }
func (nopArchive) Exists(context.Context, string) bool         { return false }
