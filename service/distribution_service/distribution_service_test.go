package distribution_service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"digital-will/chain"
	"digital-will/chain/chaintest"
	"digital-will/conf"
	"digital-will/database"
	"digital-will/model"
	"digital-will/model/dao"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contractAddr = ethcommon.HexToAddress("0x6B4485B0Aec3BBe9E8eA335F049df5DE41668C5D")

type fixture struct {
	dispatcher *Dispatcher
	chain      *chaintest.Fake
	attempts   *dao.DistributionAttemptDAO
	contract   *chain.Distributor
}

func testConfig() Config {
	return Config{
		GasLimit:               300000,
		GasPolicy:              GasPolicyMarkup,
		FixedGasPrice:          big.NewInt(10_000_000_000),
		MarkupPercent:          10,
		UnderpricedBumpPercent: 20,
		MaxSubmitRetries:       3,
		Wait: chain.WaitOptions{
			Timeout:      100 * time.Millisecond,
			InitialDelay: 5 * time.Millisecond,
			Step:         5 * time.Millisecond,
			MaxDelay:     10 * time.Millisecond,
		},
		RebroadcastAfter: time.Minute,
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db, err := database.NewDatabase(database.DBTypePebble, &database.PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	contract, err := chain.NewDistributor(contractAddr, "")
	require.NoError(t, err)

	fake := chaintest.NewFake()
	attempts := dao.NewDistributionAttemptDAO(db)
	return &fixture{
		dispatcher: NewDispatcher(fake, chain.NewWalletFromKey(key), contract, attempts, cfg),
		chain:      fake,
		attempts:   attempts,
		contract:   contract,
	}
}

func dueAsset() *model.Asset {
	at := int64(1700000000)
	return &model.Asset{
		ID:             42,
		WalletAddress:  "0x1014BD7f50abb2A3107EC701701fb93542912e3a",
		Balance:        decimal.NewFromInt(5_000_000_000_000_000),
		WillID:         7,
		ValidatedFunds: true,
		TriggerCondition: &model.TriggerCondition{
			ConditionType: model.ConditionDueDate,
			Value:         &at,
		},
	}
}

func TestDispatchConfirmed(t *testing.T) {
	f := newFixture(t, testConfig())
	f.chain.AutoMine = true
	f.chain.Nonce = 9

	res, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.NotZero(t, res.BlockNumber)
	assert.Equal(t, model.AttemptStatusConfirmed, res.Attempt.Status)

	require.Equal(t, 1, f.chain.SentCount())
	tx := f.chain.LastSent()
	assert.Equal(t, res.TxHash, tx.Hash().Hex())
	assert.Equal(t, uint64(9), tx.Nonce())
	assert.Equal(t, uint64(300000), tx.Gas())
	assert.Equal(t, big.NewInt(1_100_000_000), tx.GasPrice())
	assert.Equal(t, contractAddr, *tx.To())

	data, err := f.contract.PackDistribute(
		ethcommon.HexToAddress("0x1014BD7f50abb2A3107EC701701fb93542912e3a"),
		big.NewInt(7), big.NewInt(5_000_000_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, data, tx.Data())

	// stored before broadcast; the confirmation is committed by the caller
	stored, err := f.attempts.GetOpen(42)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, res.TxHash, stored.TxHash)
	assert.NotEmpty(t, stored.RawTx)
}

func TestDispatchReverted(t *testing.T) {
	f := newFixture(t, testConfig())
	f.chain.AutoMine = true
	failed := types.ReceiptStatusFailed
	f.chain.MineStatus = &failed

	res, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReverted)
	assert.Equal(t, OutcomeReverted, res.Outcome)

	var de *DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, res.TxHash, de.TxHash)
	assert.Contains(t, err.Error(), res.TxHash)

	count, latest, err := f.attempts.RevertHistory(42)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, res.TxHash, latest.TxHash)
}

func TestDispatchReceiptTimeoutLeavesAttemptOpen(t *testing.T) {
	f := newFixture(t, testConfig())

	res, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutcomeUnknown)
	assert.ErrorIs(t, err, chain.ErrReceiptTimeout)
	assert.Equal(t, OutcomePending, res.Outcome)

	open, err := f.attempts.GetOpen(42)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, model.AttemptStatusUnknown, open.Status)
	assert.Equal(t, res.TxHash, open.TxHash)
}

func TestDispatchRetriesNonceConflict(t *testing.T) {
	f := newFixture(t, testConfig())
	f.chain.AutoMine = true
	f.chain.Nonce = 3
	f.chain.SendErrs = []error{chain.ClassifyError(errors.New("nonce too low: next nonce 4, tx nonce 3"))}

	res, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, uint64(4), f.chain.LastSent().Nonce())

	attempts, err := f.attempts.ListByAsset(42)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, model.AttemptStatusFailed, attempts[1].Status)
}

func TestDispatchBumpsUnderpriced(t *testing.T) {
	f := newFixture(t, testConfig())
	f.chain.AutoMine = true
	f.chain.SendErrs = []error{chain.ClassifyError(errors.New("transaction underpriced"))}

	_, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	require.NoError(t, err)
	// 1 gwei + 10% markup, then +20%
	assert.Equal(t, big.NewInt(1_320_000_000), f.chain.LastSent().GasPrice())
}

func TestDispatchGivesUpAfterRetries(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSubmitRetries = 1
	f := newFixture(t, cfg)
	underpriced := chain.ClassifyError(errors.New("transaction underpriced"))
	f.chain.SendErrs = []error{underpriced, underpriced}

	_, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.ErrorIs(t, err, chain.ErrUnderpriced)
	assert.Zero(t, f.chain.SentCount())

	open, err := f.attempts.GetOpen(42)
	require.NoError(t, err)
	assert.Nil(t, open)
}

func TestDispatchUnclassifiedSendErrorKeepsAttemptOpen(t *testing.T) {
	f := newFixture(t, testConfig())
	f.chain.SendErrs = []error{errors.New("read tcp: connection reset by peer")}

	_, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	assert.ErrorIs(t, err, ErrSubmitFailed)

	open, err := f.attempts.GetOpen(42)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, model.AttemptStatusUnknown, open.Status)
}

func TestDispatchFixedGasPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.GasPolicy = GasPolicyFixed
	f := newFixture(t, cfg)
	f.chain.AutoMine = true

	_, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000_000), f.chain.LastSent().GasPrice())
}

func TestDispatchInactivityParameter(t *testing.T) {
	f := newFixture(t, testConfig())
	f.chain.AutoMine = true

	threshold := int64(6)
	asset := dueAsset()
	asset.TriggerCondition = &model.TriggerCondition{ConditionType: model.ConditionInactivity, Value: &threshold}
	asset.IsNowDueDate = true
	asset.LastActivityScore = 10

	res, err := f.dispatcher.Dispatch(context.Background(), asset)
	require.NoError(t, err)
	assert.Equal(t, "10", res.Attempt.Parameter.String())
	assert.Equal(t, model.ConditionInactivity, res.Attempt.TriggerType)
}

func TestDispatchRejectsInvalidAsset(t *testing.T) {
	f := newFixture(t, testConfig())

	bad := dueAsset()
	bad.WalletAddress = "not-an-address"
	_, err := f.dispatcher.Dispatch(context.Background(), bad)
	assert.ErrorIs(t, err, ErrInvalidAsset)

	noTrigger := dueAsset()
	noTrigger.TriggerCondition = nil
	_, err = f.dispatcher.Dispatch(context.Background(), noTrigger)
	assert.ErrorIs(t, err, ErrInvalidAsset)

	assert.Zero(t, f.chain.SentCount())
}

func openAttempt(t *testing.T, f *fixture) *model.DistributionAttempt {
	t.Helper()
	_, err := f.dispatcher.Dispatch(context.Background(), dueAsset())
	require.ErrorIs(t, err, ErrOutcomeUnknown)
	open, err := f.attempts.GetOpen(42)
	require.NoError(t, err)
	require.NotNil(t, open)
	return open
}

func TestReconcileConfirmed(t *testing.T) {
	f := newFixture(t, testConfig())
	open := openAttempt(t, f)
	f.chain.Mine(ethcommon.HexToHash(open.TxHash), types.ReceiptStatusSuccessful)

	res, err := f.dispatcher.Reconcile(context.Background(), open)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, 1, f.chain.SentCount())
}

func TestReconcileReverted(t *testing.T) {
	f := newFixture(t, testConfig())
	open := openAttempt(t, f)
	f.chain.Mine(ethcommon.HexToHash(open.TxHash), types.ReceiptStatusFailed)

	res, err := f.dispatcher.Reconcile(context.Background(), open)
	require.NoError(t, err)
	assert.Equal(t, OutcomeReverted, res.Outcome)

	stillOpen, err := f.attempts.GetOpen(42)
	require.NoError(t, err)
	assert.Nil(t, stillOpen)
}

func TestReconcileYoungAttemptStaysPending(t *testing.T) {
	f := newFixture(t, testConfig())
	open := openAttempt(t, f)

	res, err := f.dispatcher.Reconcile(context.Background(), open)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, res.Outcome)
	assert.Equal(t, 1, f.chain.SentCount())
}

func TestReconcileRebroadcastsStaleAttempt(t *testing.T) {
	f := newFixture(t, testConfig())
	open := openAttempt(t, f)
	f.dispatcher.now = func() time.Time { return open.SubmittedAt.Add(time.Hour) }

	res, err := f.dispatcher.Reconcile(context.Background(), open)
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, res.Outcome)
	require.Equal(t, 2, f.chain.SentCount())
	assert.Equal(t, open.TxHash, f.chain.LastSent().Hash().Hex())
}

func TestReconcileNonceTakenFailsAttempt(t *testing.T) {
	f := newFixture(t, testConfig())
	open := openAttempt(t, f)
	f.dispatcher.now = func() time.Time { return open.SubmittedAt.Add(time.Hour) }
	f.chain.SendErrs = []error{chain.ClassifyError(errors.New("nonce too low"))}

	res, err := f.dispatcher.Reconcile(context.Background(), open)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)

	stillOpen, err := f.attempts.GetOpen(42)
	require.NoError(t, err)
	assert.Nil(t, stillOpen)
}

func TestAddPercent(t *testing.T) {
	assert.Equal(t, big.NewInt(110), addPercent(big.NewInt(100), 10))
	assert.Equal(t, big.NewInt(2), addPercent(big.NewInt(1), 10))
	assert.Equal(t, big.NewInt(100), addPercent(big.NewInt(100), 0))
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(conf.ChainConfig{
		GasPolicy:             "fixed",
		GasPriceWei:           5,
		ChainID:               7701,
		ReceiptTimeoutSeconds: 90,
		RetryBackoffMs:        250,
	})
	require.NoError(t, err)
	assert.Equal(t, GasPolicyFixed, cfg.GasPolicy)
	assert.Equal(t, int64(7701), cfg.ChainID.Int64())
	assert.Equal(t, 90*time.Second, cfg.Wait.Timeout)
	assert.Equal(t, 90*time.Second, cfg.RebroadcastAfter)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryBackoff)

	_, err = NewConfig(conf.ChainConfig{GasPolicy: "auction"})
	assert.Error(t, err)
}
