package eligibility_service

import (
	"math"
	"math/big"
	"time"

	"digital-will/common/logger"
	"digital-will/model"

	"go.uber.org/zap"
)

// Reason why an asset is or is not due
type Reason string

const (
	ReasonDueDateReached Reason = "due_date_reached"
	ReasonInactive       Reason = "inactivity_confirmed"
	ReasonNotFunded      Reason = "funds_not_validated"
	ReasonDistributed    Reason = "already_distributed"
	ReasonNoTrigger      Reason = "no_trigger"
	ReasonBadTrigger     Reason = "invalid_trigger"
	ReasonFiltered       Reason = "trigger_filtered"
	ReasonDueDatePending Reason = "due_date_not_reached"
	ReasonActive         Reason = "inactivity_not_confirmed"
	ReasonMultiSigInert  Reason = "multisig_not_active"
	ReasonUnsupported    Reason = "unsupported_trigger"
)

// Evaluator decides which assets are due for distribution
type Evaluator struct {
	// Filter limits evaluation to these trigger types; empty means all
	Filter []model.ConditionType
	log    *zap.Logger
}

// NewEvaluator creates an evaluator for the given trigger types
func NewEvaluator(filter []model.ConditionType) *Evaluator {
	return &Evaluator{Filter: filter, log: logger.Named("eligibility")}
}

func (e *Evaluator) accepts(ct model.ConditionType) bool {
	if len(e.Filter) == 0 {
		return true
	}
	for _, f := range e.Filter {
		if f == ct {
			return true
		}
	}
	return false
}

// IsDue evaluates one asset at now
func (e *Evaluator) IsDue(asset *model.Asset, now time.Time) (bool, Reason) {
	if !asset.ValidatedFunds {
		return false, ReasonNotFunded
	}
	if asset.Distributed {
		return false, ReasonDistributed
	}
	if asset.TriggerCondition == nil {
		e.log.Warn("asset has no trigger condition", zap.Uint64("asset_id", asset.ID))
		return false, ReasonNoTrigger
	}
	if !e.accepts(asset.TriggerCondition.ConditionType) {
		return false, ReasonFiltered
	}

	trigger, err := asset.TriggerCondition.Variant()
	if err != nil {
		e.log.Warn("asset has an invalid trigger condition", zap.Uint64("asset_id", asset.ID), zap.Error(err))
		return false, ReasonBadTrigger
	}

	switch t := trigger.(type) {
	case model.DueDate:
		if t.At <= now.Unix() {
			return true, ReasonDueDateReached
		}
		return false, ReasonDueDatePending
	case model.Inactivity:
		if asset.IsNowDueDate {
			return true, ReasonInactive
		}
		return false, ReasonActive
	case model.MultiSig:
		return false, ReasonMultiSigInert
	default:
		return false, ReasonUnsupported
	}
}

// ListDueAssets keeps the assets due at now, preserving order
func (e *Evaluator) ListDueAssets(assets []*model.Asset, now time.Time) []*model.Asset {
	due := make([]*model.Asset, 0, len(assets))
	for _, asset := range assets {
		if ok, _ := e.IsDue(asset, now); ok {
			due = append(due, asset)
		}
	}
	return due
}

// Parameter the amountOrDuration argument of the contract call: the balance
// for a due date, the observed idle months for inactivity (rounded up, never
// below the threshold).
func Parameter(asset *model.Asset, trigger model.Trigger) *big.Int {
	switch t := trigger.(type) {
	case model.DueDate:
		return asset.BalanceWei()
	case model.Inactivity:
		months := int64(math.Ceil(asset.LastActivityScore))
		if months < t.ThresholdMonths {
			months = t.ThresholdMonths
		}
		return big.NewInt(months)
	default:
		return big.NewInt(0)
	}
}
