package model

import (
	"errors"
	"fmt"
)

// ConditionType stored trigger kind
type ConditionType string

const (
	ConditionDueDate    ConditionType = "due_date"
	ConditionInactivity ConditionType = "inactivity"
	ConditionMultiSig   ConditionType = "multisig"
)

var (
	ErrUnknownTrigger      = errors.New("unknown trigger condition type")
	ErrMissingTriggerValue = errors.New("trigger condition has no value")
)

// TriggerCondition one per asset, condition_type immutable after creation
type TriggerCondition struct {
	ID            uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
	ConditionType ConditionType `gorm:"type:varchar(20);not null" json:"condition_type"`
	Value         *int64        `json:"value"` // UNIX seconds for due_date, months for inactivity
	AssetID       uint64        `gorm:"uniqueIndex;not null" json:"asset_id"`
}

// TableName specify table name
func (TriggerCondition) TableName() string {
	return "tb_trigger_condition"
}

// Trigger is the decoded form of a TriggerCondition. Implementations are
// DueDate, Inactivity and MultiSig.
type Trigger interface {
	Type() ConditionType
	isTrigger()
}

// DueDate eligible once At (UNIX seconds) has passed
type DueDate struct {
	At int64
}

// Inactivity eligible once the owner wallet has been idle ThresholdMonths
type Inactivity struct {
	ThresholdMonths int64
}

// MultiSig requires co-signers; not active in this deployment
type MultiSig struct {
	Required int64
}

func (DueDate) Type() ConditionType    { return ConditionDueDate }
func (Inactivity) Type() ConditionType { return ConditionInactivity }
func (MultiSig) Type() ConditionType   { return ConditionMultiSig }

func (DueDate) isTrigger()    {}
func (Inactivity) isTrigger() {}
func (MultiSig) isTrigger()   {}

// Variant decodes the stored row
func (t *TriggerCondition) Variant() (Trigger, error) {
	switch t.ConditionType {
	case ConditionDueDate:
		if t.Value == nil {
			return nil, fmt.Errorf("%w: due_date", ErrMissingTriggerValue)
		}
		return DueDate{At: *t.Value}, nil
	case ConditionInactivity:
		if t.Value == nil {
			return nil, fmt.Errorf("%w: inactivity", ErrMissingTriggerValue)
		}
		return Inactivity{ThresholdMonths: *t.Value}, nil
	case ConditionMultiSig:
		var required int64
		if t.Value != nil {
			required = *t.Value
		}
		return MultiSig{Required: required}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, t.ConditionType)
	}
}

// ParseConditionTypes converts config strings, rejecting unknown names
func ParseConditionTypes(names []string) ([]ConditionType, error) {
	types := make([]ConditionType, 0, len(names))
	for _, name := range names {
		ct := ConditionType(name)
		switch ct {
		case ConditionDueDate, ConditionInactivity, ConditionMultiSig:
			types = append(types, ct)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownTrigger, name)
		}
	}
	return types, nil
}
