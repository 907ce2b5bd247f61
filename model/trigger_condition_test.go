package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestTriggerConditionVariant(t *testing.T) {
	tests := []struct {
		name    string
		cond    TriggerCondition
		want    Trigger
		wantErr error
	}{
		{"due date", TriggerCondition{ConditionType: ConditionDueDate, Value: int64Ptr(1700000000)}, DueDate{At: 1700000000}, nil},
		{"inactivity", TriggerCondition{ConditionType: ConditionInactivity, Value: int64Ptr(6)}, Inactivity{ThresholdMonths: 6}, nil},
		{"multisig without value", TriggerCondition{ConditionType: ConditionMultiSig}, MultiSig{}, nil},
		{"due date without value", TriggerCondition{ConditionType: ConditionDueDate}, nil, ErrMissingTriggerValue},
		{"inactivity without value", TriggerCondition{ConditionType: ConditionInactivity}, nil, ErrMissingTriggerValue},
		{"unknown", TriggerCondition{ConditionType: "weather"}, nil, ErrUnknownTrigger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.Variant()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.cond.ConditionType, got.Type())
		})
	}
}

func TestParseConditionTypes(t *testing.T) {
	types, err := ParseConditionTypes([]string{"due_date", "inactivity"})
	require.NoError(t, err)
	assert.Equal(t, []ConditionType{ConditionDueDate, ConditionInactivity}, types)

	_, err = ParseConditionTypes([]string{"due_date", "lunar"})
	assert.ErrorIs(t, err, ErrUnknownTrigger)
}

func TestAssetHelpers(t *testing.T) {
	asset := &Asset{Balance: decimal.RequireFromString("1500000000000000000.9")}
	assert.Equal(t, "1500000000000000000", asset.BalanceWei().String())
	assert.Equal(t, ConditionType(""), asset.TriggerType())

	asset.TriggerCondition = &TriggerCondition{ConditionType: ConditionInactivity}
	assert.Equal(t, ConditionInactivity, asset.TriggerType())

	total := TotalShare([]Beneficiary{
		{SharePercentage: decimal.RequireFromString("33.33")},
		{SharePercentage: decimal.RequireFromString("66.67")},
	})
	assert.True(t, total.Equal(decimal.NewFromInt(100)))
}

func TestAttemptStatusIsOpen(t *testing.T) {
	assert.True(t, AttemptStatusPending.IsOpen())
	assert.True(t, AttemptStatusUnknown.IsOpen())
	assert.False(t, AttemptStatusConfirmed.IsOpen())
	assert.False(t, AttemptStatusReverted.IsOpen())
	assert.False(t, AttemptStatusFailed.IsOpen())
}
