package alerts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		name     string
		ruleType RuleType
		raw      string
		want     Condition
		wantErr  bool
	}{
		{
			name:     "amount threshold with number",
			ruleType: TypeAmountThreshold,
			raw:      `{"operator":"gt","value":50}`,
			want:     AmountThreshold{Operator: OpGreaterThan, Value: 50},
		},
		{
			name:     "amount threshold with numeric string",
			ruleType: TypeAmountThreshold,
			raw:      `{"operator":"lt","value":" 0.25 "}`,
			want:     AmountThreshold{Operator: OpLessThan, Value: 0.25},
		},
		{
			name:     "amount threshold zero is a real threshold",
			ruleType: TypeAmountThreshold,
			raw:      `{"operator":"gt","value":0}`,
			want:     AmountThreshold{Operator: OpGreaterThan, Value: 0},
		},
		{
			name:     "amount threshold missing value",
			ruleType: TypeAmountThreshold,
			raw:      `{"operator":"gt"}`,
			wantErr:  true,
		},
		{
			name:     "amount threshold unsupported operator",
			ruleType: TypeAmountThreshold,
			raw:      `{"operator":"contains","value":1}`,
			wantErr:  true,
		},
		{
			name:     "amount threshold non numeric value",
			ruleType: TypeAmountThreshold,
			raw:      `{"operator":"eq","value":"lots"}`,
			wantErr:  true,
		},
		{
			name:     "amount threshold empty payload",
			ruleType: TypeAmountThreshold,
			raw:      ``,
			wantErr:  true,
		},
		{
			name:     "token transfer with mint",
			ruleType: TypeTokenTransfer,
			raw:      `{"tokenMint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"}`,
			want:     TokenTransfer{TokenMint: strPtr("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")},
		},
		{
			name:     "token transfer blank mint means any",
			ruleType: TypeTokenTransfer,
			raw:      `{"tokenMint":"  "}`,
			want:     TokenTransfer{},
		},
		{
			name:     "program interaction without id",
			ruleType: TypeProgramInteraction,
			raw:      `{}`,
			want:     ProgramInteraction{},
		},
		{
			name:     "any activity ignores payload",
			ruleType: TypeAnyActivity,
			raw:      `null`,
			want:     AnyActivity{},
		},
		{
			name:     "unknown type",
			ruleType: "balance_below",
			raw:      `{}`,
			wantErr:  true,
		},
		{
			name:     "malformed json",
			ruleType: TypeTokenTransfer,
			raw:      `{"tokenMint":`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCondition(tt.ruleType, json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidCondition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRule(t *testing.T) {
	walletID := "wallet-1"
	rule, err := NewRule("  Whale watch ", &walletID, TypeAmountThreshold, json.RawMessage(`{"operator":"gt","value":100}`))
	require.NoError(t, err)

	assert.NotEmpty(t, rule.ID)
	assert.Equal(t, "Whale watch", rule.Name)
	assert.Equal(t, TypeAmountThreshold, rule.Type())
	assert.True(t, rule.Active)
	require.NotNil(t, rule.WalletID)
	assert.Equal(t, walletID, *rule.WalletID)

	empty := ""
	global, err := NewRule("everything", &empty, TypeAnyActivity, nil)
	require.NoError(t, err)
	assert.Nil(t, global.WalletID, "empty wallet id means global")

	_, err = NewRule(" ", nil, TypeAnyActivity, nil)
	assert.Error(t, err)

	_, err = NewRule("bad", nil, TypeAmountThreshold, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidCondition)
}

func TestDecodeStoredCondition_FailsClosed(t *testing.T) {
	cond := DecodeStoredCondition("balance_below", json.RawMessage(`{"value":3}`))
	assert.Equal(t, RuleType("balance_below"), cond.Type())

	raw, err := EncodeCondition(cond)
	require.NoError(t, err)
	assert.JSONEq(t, `{"value":3}`, string(raw), "unknown payloads round-trip untouched")
}

func TestRule_JSON(t *testing.T) {
	mint := "So11111111111111111111111111111111111111112"
	rule := Rule{
		ID:        "r1",
		Name:      "wsol",
		Condition: TokenTransfer{TokenMint: &mint},
		Active:    true,
	}

	data, err := json.Marshal(rule)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "token_transfer", m["type"])
	assert.Equal(t, true, m["isActive"])
	assert.Nil(t, m["walletId"])
	assert.Equal(t, map[string]any{"tokenMint": mint}, m["condition"])

	var back Rule
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rule.Condition, back.Condition)
}

func strPtr(s string) *string { return &s }
