package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketScore(t *testing.T) {
	tests := []struct {
		days int64
		want float64
	}{
		{0, 0.25},
		{7, 0.25},
		{8, 1},
		{30, 1},
		{31, 2},
		{60, 2},
		{61, 2},
		{91, 3},
		{300, 10},
		{-3, 0.25},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_days", tt.days), func(t *testing.T) {
			assert.Equal(t, tt.want, BucketScore(tt.days))
		})
	}
}

func TestDiffDaysTruncates(t *testing.T) {
	last := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, int64(7), DiffDays(last, last.Add(7*24*time.Hour+23*time.Hour)))
	assert.Equal(t, int64(8), DiffDays(last, last.Add(8*24*time.Hour)))
}

var fixedNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func activityServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addresses/0xabc/transactions", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScoreInactivity(t *testing.T) {
	ts := fixedNow.Add(-31 * 24 * time.Hour).Format(time.RFC3339)
	srv := activityServer(t, http.StatusOK, fmt.Sprintf(`{"items":[{"timestamp":%q},{"timestamp":"2020-01-01T00:00:00Z"}]}`, ts))

	o := New(srv.URL, time.Second, WithClock(func() time.Time { return fixedNow }))
	score, err := o.ScoreInactivity(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, 2.0, score.Months)
	assert.Equal(t, int64(31), score.DiffDays)
}

func TestScoreInactivityZonelessTimestamp(t *testing.T) {
	srv := activityServer(t, http.StatusOK, `{"items":[{"timestamp":"2023-08-06T00:00:00.000000"}]}`)

	o := New(srv.URL, time.Second, WithClock(func() time.Time { return fixedNow }))
	score, err := o.ScoreInactivity(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(300), score.DiffDays)
	assert.Equal(t, 10.0, score.Months)
}

func TestScoreInactivityErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"empty history", http.StatusOK, `{"items":[]}`, ErrNotFound},
		{"404", http.StatusNotFound, `{"message":"not found"}`, ErrNotFound},
		{"5xx", http.StatusBadGateway, `bad gateway`, ErrUpstreamUnavailable},
		{"not json", http.StatusOK, `<html>`, ErrMalformedResponse},
		{"no items", http.StatusOK, `{"result":[]}`, ErrMalformedResponse},
		{"bad timestamp", http.StatusOK, `{"items":[{"timestamp":"yesterday"}]}`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := activityServer(t, tt.status, tt.body)
			o := New(srv.URL, time.Second, WithClock(func() time.Time { return fixedNow }))
			_, err := o.ScoreInactivity(context.Background(), "0xabc")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestScoreInactivityUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	o := New(srv.URL, 200*time.Millisecond)
	_, err := o.ScoreInactivity(context.Background(), "0xabc")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

type memCache struct {
	mu   sync.Mutex
	data map[string]*Score
}

func (m *memCache) SetCache(ctx context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(*Score)
	return nil
}

func (m *memCache) GetCache(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[key]
	if !ok {
		return fmt.Errorf("miss")
	}
	*dest.(*Score) = *s
	return nil
}

func TestScoreInactivityCached(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"items":[{"timestamp":"2024-05-01T00:00:00Z"}]}`))
	}))
	defer srv.Close()

	cache := &memCache{data: map[string]*Score{}}
	o := New(srv.URL, time.Second, WithClock(func() time.Time { return fixedNow }), WithCache(cache))

	for i := 0; i < 3; i++ {
		score, err := o.ScoreInactivity(context.Background(), "0xABC")
		require.NoError(t, err)
		assert.Equal(t, 2.0, score.Months)
	}
	assert.Equal(t, 1, hits)
}

func TestTxDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tx/0xfeed", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"hash":"0xfeed","status":"ok",
			"from":{"hash":"0x1"},"to":{"hash":"0x2","name":"WillVault"},
			"value":"1000","timestamp":"2024-05-01T00:00:00Z","gas_used":"21000",
			"fee":{"value":"42"}}`))
	}))
	defer srv.Close()

	o := New("http://unused", time.Second, WithExplorer(srv.URL+"/tx/"))
	d, err := o.TxDetails(context.Background(), "0xfeed")
	require.NoError(t, err)
	assert.Equal(t, &TxDetails{
		Hash: "0xfeed", Status: "ok", From: "0x1", To: "0x2", ContractName: "WillVault",
		Value: "1000", Timestamp: "2024-05-01T00:00:00Z", GasUsed: "21000", Fee: "42",
	}, d)
}

func TestTxDetailsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	o := New("http://unused", time.Second, WithExplorer(srv.URL))
	_, err := o.TxDetails(context.Background(), "0xfeed")
	assert.ErrorIs(t, err, ErrNotFound)
}
