// Package alerts holds alert rules, the predicate that decides whether a
// rule fires for a transaction, and the notifier that turns matches into
// stored notifications.
package alerts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidCondition is returned when a rule's condition does not fit its type.
var ErrInvalidCondition = errors.New("invalid alert condition")

// RuleType identifies which predicate a rule evaluates.
type RuleType string

const (
	TypeAmountThreshold    RuleType = "amount_threshold"
	TypeTokenTransfer      RuleType = "token_transfer"
	TypeProgramInteraction RuleType = "program_interaction"
	TypeAnyActivity        RuleType = "any_activity"
)

// Operator compares a transaction amount against a threshold.
type Operator string

const (
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpEqual       Operator = "eq"
)

// Condition is the type-specific payload of a rule. The set of
// implementations is closed.
type Condition interface {
	Type() RuleType
	isCondition()
}

// AmountThreshold fires when the transaction amount compares to Value.
type AmountThreshold struct {
	Operator Operator `json:"operator"`
	Value    float64  `json:"value"`
}

// TokenTransfer fires for transfers of TokenMint, or any token transfer
// when TokenMint is nil.
type TokenTransfer struct {
	TokenMint *string `json:"tokenMint,omitempty"`
}

// ProgramInteraction fires for transactions attributed to ProgramID, or
// any program interaction when ProgramID is nil.
type ProgramInteraction struct {
	ProgramID *string `json:"programId,omitempty"`
}

// AnyActivity fires for every transaction.
type AnyActivity struct{}

// unknownCondition stands in for stored rows whose type or payload this
// build cannot interpret. It never matches.
type unknownCondition struct {
	ruleType RuleType
	raw      json.RawMessage
}

func (AmountThreshold) Type() RuleType    { return TypeAmountThreshold }
func (TokenTransfer) Type() RuleType      { return TypeTokenTransfer }
func (ProgramInteraction) Type() RuleType { return TypeProgramInteraction }
func (AnyActivity) Type() RuleType        { return TypeAnyActivity }
func (c unknownCondition) Type() RuleType { return c.ruleType }

func (AmountThreshold) isCondition()    {}
func (TokenTransfer) isCondition()      {}
func (ProgramInteraction) isCondition() {}
func (AnyActivity) isCondition()        {}
func (unknownCondition) isCondition()   {}

// Rule is a user-defined alert. A nil WalletID makes the rule global.
type Rule struct {
	ID        string
	Name      string
	WalletID  *string
	Condition Condition
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Type returns the rule type, derived from its condition.
func (r Rule) Type() RuleType {
	if r.Condition == nil {
		return ""
	}
	return r.Condition.Type()
}

type ruleJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	WalletID  *string         `json:"walletId"`
	Type      RuleType        `json:"type"`
	Condition json.RawMessage `json:"condition"`
	Active    bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	cond, err := EncodeCondition(r.Condition)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ruleJSON{
		ID:        r.ID,
		Name:      r.Name,
		WalletID:  r.WalletID,
		Type:      r.Type(),
		Condition: cond,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	})
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	var v ruleJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Rule{
		ID:        v.ID,
		Name:      v.Name,
		WalletID:  v.WalletID,
		Condition: DecodeStoredCondition(v.Type, v.Condition),
		Active:    v.Active,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
	return nil
}

// NewRule validates input and builds an active rule with a fresh id.
func NewRule(name string, walletID *string, ruleType RuleType, condition json.RawMessage) (*Rule, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("rule name is required")
	}
	if walletID != nil && *walletID == "" {
		walletID = nil
	}
	cond, err := ParseCondition(ruleType, condition)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Rule{
		ID:        uuid.NewString(),
		Name:      name,
		WalletID:  walletID,
		Condition: cond,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// conditionInput accepts the loose shape clients send: value may be a
// number or a numeric string.
type conditionInput struct {
	Operator  *string         `json:"operator"`
	Value     json.RawMessage `json:"value"`
	TokenMint *string         `json:"tokenMint"`
	ProgramID *string         `json:"programId"`
}

// ParseCondition decodes raw as the condition for ruleType, rejecting
// payloads that don't fit the type.
func ParseCondition(ruleType RuleType, raw json.RawMessage) (Condition, error) {
	var in conditionInput
	if body := bytes.TrimSpace(raw); len(body) > 0 && !bytes.Equal(body, []byte("null")) {
		if err := json.Unmarshal(body, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCondition, err)
		}
	}

	switch ruleType {
	case TypeAmountThreshold:
		if in.Operator == nil {
			return nil, fmt.Errorf("%w: operator is required", ErrInvalidCondition)
		}
		op := Operator(*in.Operator)
		if op != OpGreaterThan && op != OpLessThan && op != OpEqual {
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidCondition, op)
		}
		value, err := parseThreshold(in.Value)
		if err != nil {
			return nil, err
		}
		return AmountThreshold{Operator: op, Value: value}, nil

	case TypeTokenTransfer:
		return TokenTransfer{TokenMint: nonEmpty(in.TokenMint)}, nil

	case TypeProgramInteraction:
		return ProgramInteraction{ProgramID: nonEmpty(in.ProgramID)}, nil

	case TypeAnyActivity:
		return AnyActivity{}, nil
	}
	return nil, fmt.Errorf("%w: unknown rule type %q", ErrInvalidCondition, ruleType)
}

// DecodeStoredCondition is the lenient counterpart of ParseCondition used
// when reading persisted rules. Rows that fail validation decode to a
// condition that never matches instead of failing the whole read.
func DecodeStoredCondition(ruleType RuleType, raw json.RawMessage) Condition {
	cond, err := ParseCondition(ruleType, raw)
	if err != nil {
		return unknownCondition{ruleType: ruleType, raw: raw}
	}
	return cond
}

// EncodeCondition renders a condition in its stored JSON form.
func EncodeCondition(c Condition) (json.RawMessage, error) {
	switch c := c.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case unknownCondition:
		if len(c.raw) == 0 {
			return json.RawMessage("{}"), nil
		}
		return c.raw, nil
	default:
		return json.Marshal(c)
	}
}

func parseThreshold(raw json.RawMessage) (float64, error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return 0, fmt.Errorf("%w: value is required", ErrInvalidCondition)
	}

	var f float64
	if err := json.Unmarshal(body, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(body, &s); err != nil {
		return 0, fmt.Errorf("%w: value must be a number", ErrInvalidCondition)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: value %q is not numeric", ErrInvalidCondition, s)
	}
	return f, nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
