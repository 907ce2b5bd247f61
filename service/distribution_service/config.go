package distribution_service

import (
	"fmt"
	"math/big"
	"time"

	"digital-will/chain"
	"digital-will/conf"
)

// GasPolicy how the gas price of a distribution is chosen
type GasPolicy string

const (
	GasPolicyMarkup GasPolicy = "markup" // node suggestion plus MarkupPercent
	GasPolicyFixed  GasPolicy = "fixed"  // FixedGasPrice
)

// Config dispatcher settings
type Config struct {
	ChainID                *big.Int // nil = ask the node once
	GasLimit               uint64
	GasPolicy              GasPolicy
	FixedGasPrice          *big.Int
	MarkupPercent          int64
	UnderpricedBumpPercent int64
	MaxSubmitRetries       int
	RetryBackoff           time.Duration
	Wait                   chain.WaitOptions
	// RebroadcastAfter age at which an unmined open attempt is resent
	RebroadcastAfter time.Duration
}

// NewConfig maps the chain section of the daemon config
func NewConfig(c conf.ChainConfig) (Config, error) {
	policy := GasPolicy(c.GasPolicy)
	switch policy {
	case GasPolicyMarkup, GasPolicyFixed:
	default:
		return Config{}, fmt.Errorf("unknown gas policy %q", c.GasPolicy)
	}

	cfg := Config{
		GasLimit:               c.GasLimit,
		GasPolicy:              policy,
		FixedGasPrice:          big.NewInt(c.GasPriceWei),
		MarkupPercent:          c.GasMarkupPercent,
		UnderpricedBumpPercent: c.UnderpricedBumpPercent,
		MaxSubmitRetries:       c.MaxSubmitRetries,
		RetryBackoff:           c.RetryBackoff(),
		Wait:                   chain.WaitOptions{Timeout: c.ReceiptTimeout()},
		RebroadcastAfter:       c.ReceiptTimeout(),
	}
	if c.ChainID > 0 {
		cfg.ChainID = big.NewInt(c.ChainID)
	}
	return cfg, nil
}

// addPercent returns v * (100 + pct) / 100, strictly above v when pct > 0
func addPercent(v *big.Int, pct int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(100+pct))
	out.Div(out, big.NewInt(100))
	if pct > 0 && out.Cmp(v) <= 0 {
		out.Add(v, big.NewInt(1))
	}
	return out
}
