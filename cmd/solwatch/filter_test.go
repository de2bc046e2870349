package main

import (
	"testing"

	"github.com/brojonat/solwatch/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJQFilterMatching(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		filters     []string
		expectMatch bool
		expectErr   bool
	}{
		{
			name:        "no filters match everything",
			input:       `{"type": "sol_transfer"}`,
			expectMatch: true,
		},
		{
			name:        "type match",
			input:       `{"type": "spl_transfer", "tokenSymbol": "USDC"}`,
			filters:     []string{`.type == "spl_transfer"`},
			expectMatch: true,
		},
		{
			name:        "type mismatch",
			input:       `{"type": "sol_transfer"}`,
			filters:     []string{`.type == "spl_transfer"`},
			expectMatch: false,
		},
		{
			name:        "all filters must match",
			input:       `{"type": "spl_transfer", "amount": "250.5"}`,
			filters:     []string{`.type == "spl_transfer"`, `(.amount | tonumber) > 1000`},
			expectMatch: false,
		},
		{
			name:        "numeric string amount",
			input:       `{"amount": "250.5"}`,
			filters:     []string{`(.amount | tonumber) > 100`},
			expectMatch: true,
		},
		{
			name:        "null result is falsy",
			input:       `{"type": "sol_transfer"}`,
			filters:     []string{`.tokenMint`},
			expectMatch: false,
		},
		{
			name:        "non-boolean result is truthy",
			input:       `{"tokenMint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"}`,
			filters:     []string{`.tokenMint`},
			expectMatch: true,
		},
		{
			name:      "invalid JSON input",
			input:     `not-json`,
			filters:   []string{`.type`},
			expectErr: true,
		},
		{
			name:      "runtime error",
			input:     `{"amount": "abc"}`,
			filters:   []string{`(.amount | tonumber) > 1`},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters, err := compileFilters(tt.filters)
			require.NoError(t, err)

			matched, err := filters.Match([]byte(tt.input))
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectMatch, matched)
		})
	}
}

func TestCompileFilters_Invalid(t *testing.T) {
	_, err := compileFilters([]string{`.type ==`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse jq filter")
}

func TestJQFilter_StructUsesWireNames(t *testing.T) {
	symbol := "USDC"
	txn := &client.Transaction{Signature: "sig1", Type: "spl_transfer", TokenSymbol: &symbol}

	filters, err := compileFilters([]string{`.tokenSymbol == "USDC"`, `.signature == "sig1"`})
	require.NoError(t, err)

	matched, err := filters.Match(txn)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]interface{}{}))
}
