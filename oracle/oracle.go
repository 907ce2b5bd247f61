// Package oracle scores wallet inactivity from an address-activity API and
// looks up transaction details on the block explorer.
package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"digital-will/common/logger"

	"github.com/imroc/req"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Cache optional score cache, satisfied by *database.RedisClient
type Cache interface {
	SetCache(ctx context.Context, key string, value interface{}) error
	GetCache(ctx context.Context, key string, dest interface{}) error
}

// Oracle activity API client
type Oracle struct {
	baseURL       string
	explorerTxURL string
	http          *req.Req
	now           func() time.Time
	cache         Cache
	log           *zap.Logger
}

type Option func(*Oracle)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

// WithCache caches scores under oracle:score:<wallet>
func WithCache(c Cache) Option {
	return func(o *Oracle) { o.cache = c }
}

// WithExplorer sets the base URL for TxDetails lookups
func WithExplorer(txURL string) Option {
	return func(o *Oracle) { o.explorerTxURL = strings.TrimRight(txURL, "/") }
}

// New builds an oracle for baseURL with a per-request timeout
func New(baseURL string, timeout time.Duration, opts ...Option) *Oracle {
	r := req.New()
	r.SetClient(&http.Client{Timeout: timeout})

	o := &Oracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    r,
		now:     time.Now,
		log:     logger.Named("oracle"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func scoreCacheKey(wallet string) string {
	return "oracle:score:" + strings.ToLower(wallet)
}

// ScoreInactivity fetches the newest transaction of wallet and buckets the
// time since it into months.
func (o *Oracle) ScoreInactivity(ctx context.Context, wallet string) (*Score, error) {
	if o.cache != nil {
		var cached Score
		if err := o.cache.GetCache(ctx, scoreCacheKey(wallet), &cached); err == nil {
			return &cached, nil
		}
	}

	body, err := o.get(ctx, fmt.Sprintf("%s/addresses/%s/transactions", o.baseURL, url.PathEscape(wallet)))
	if err != nil {
		return nil, err
	}

	items := gjson.GetBytes(body, "items")
	if !items.Exists() || !items.IsArray() {
		return nil, fmt.Errorf("%w: missing items for %s", ErrMalformedResponse, wallet)
	}
	first := items.Get("0")
	if !first.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, wallet)
	}
	raw := first.Get("timestamp").String()
	last, ok := parseTimestamp(raw)
	if !ok {
		return nil, fmt.Errorf("%w: bad timestamp %q for %s", ErrMalformedResponse, raw, wallet)
	}

	diff := DiffDays(last, o.now())
	score := &Score{Months: BucketScore(diff), DiffDays: diff, LastTxAt: last}

	if o.cache != nil {
		if err := o.cache.SetCache(ctx, scoreCacheKey(wallet), score); err != nil {
			o.log.Warn("failed to cache score", zap.String("wallet", wallet), zap.Error(err))
		}
	}
	return score, nil
}

// TxDetails summary of one transaction on the explorer
type TxDetails struct {
	Hash         string `json:"transaction_hash"`
	Status       string `json:"status"`
	From         string `json:"from_address"`
	To           string `json:"to_address"`
	ContractName string `json:"contract_name"`
	Value        string `json:"value_sent"`
	Timestamp    string `json:"timestamp"`
	GasUsed      string `json:"gas_used"`
	Fee          string `json:"transaction_fee"`
}

// TxDetails looks up txHash on the explorer
func (o *Oracle) TxDetails(ctx context.Context, txHash string) (*TxDetails, error) {
	if o.explorerTxURL == "" {
		return nil, fmt.Errorf("oracle: explorer tx url not configured")
	}
	body, err := o.get(ctx, o.explorerTxURL+"/"+url.PathEscape(txHash))
	if err != nil {
		return nil, err
	}
	r := gjson.ParseBytes(body)
	return &TxDetails{
		Hash:         r.Get("hash").String(),
		Status:       r.Get("status").String(),
		From:         r.Get("from.hash").String(),
		To:           r.Get("to.hash").String(),
		ContractName: r.Get("to.name").String(),
		Value:        r.Get("value").String(),
		Timestamp:    r.Get("timestamp").String(),
		GasUsed:      r.Get("gas_used").String(),
		Fee:          r.Get("fee.value").String(),
	}, nil
}

// get maps status codes onto the oracle error classes
func (o *Oracle) get(ctx context.Context, u string) ([]byte, error) {
	resp, err := o.http.Get(u, ctx, req.Header{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	code := resp.Response().StatusCode
	switch {
	case code == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u)
	case code >= 500:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstreamUnavailable, u, code)
	case code >= 400:
		return nil, fmt.Errorf("%w: %s returned %d", ErrMalformedResponse, u, code)
	}
	body, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json from %s", ErrMalformedResponse, u)
	}
	return body, nil
}
