package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"digital-will/conf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.False(t, s.Exists(ctx, "a/b.json"))
	_, err = s.Get(ctx, "a/b.json")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, "a/b.json", []byte(`{"x":1}`)))
	assert.True(t, s.Exists(ctx, "a/b.json"))

	data, err := s.Get(ctx, "a/b.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(data))

	_, err = os.Stat(filepath.Join(s.basePath, "a/b.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveReceiptIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rec := &ReceiptRecord{AssetID: 3, TxHash: "0xaa", BlockNumber: 10, ConfirmedAt: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, SaveReceipt(ctx, s, rec))

	second := *rec
	second.BlockNumber = 99
	require.NoError(t, SaveReceipt(ctx, s, &second))

	data, err := s.Get(ctx, ReceiptKey(3, "0xaa"))
	require.NoError(t, err)
	var got ReceiptRecord
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, uint64(10), got.BlockNumber)
}

func TestLoadReceipt(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = LoadReceipt(ctx, s, 3, "0xaa")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := &ReceiptRecord{AssetID: 3, TxHash: "0xaa", Nonce: 4, BlockNumber: 10, ConfirmedAt: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, SaveReceipt(ctx, s, rec))

	got, err := LoadReceipt(ctx, s, 3, "0xaa")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	require.NoError(t, s.Save(ctx, ReceiptKey(3, "0xbad"), []byte("not json")))
	_, err = LoadReceipt(ctx, s, 3, "0xbad")
	assert.Error(t, err)
}

func TestNewArchive(t *testing.T) {
	a, err := NewArchive(conf.ArchiveConfig{Type: "local", Local: conf.LocalStorageConfig{BasePath: t.TempDir()}})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, a)

	a, err = NewArchive(conf.ArchiveConfig{Type: "none"})
	require.NoError(t, err)
	assert.NoError(t, a.Save(context.Background(), "k", nil))
	assert.False(t, a.Exists(context.Background(), "k"))

	_, err = NewArchive(conf.ArchiveConfig{Type: "s3"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewArchive(conf.ArchiveConfig{Type: "oss"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = NewArchive(conf.ArchiveConfig{Type: "ftp"})
	assert.ErrorIs(t, err, ErrInvalid)
}
