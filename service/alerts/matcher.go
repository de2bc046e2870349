package alerts

import (
	"strconv"

	"github.com/brojonat/solwatch/service/solana"
)

// Matches reports whether rule fires for tx. It only looks at the rule's
// condition; scope and the active flag are the caller's concern.
func Matches(rule Rule, tx *solana.ClassifiedTransaction) bool {
	if tx == nil {
		return false
	}

	switch c := rule.Condition.(type) {
	case AmountThreshold:
		if tx.Amount == nil {
			return false
		}
		amount, err := strconv.ParseFloat(*tx.Amount, 64)
		if err != nil {
			return false
		}
		switch c.Operator {
		case OpGreaterThan:
			return amount > c.Value
		case OpLessThan:
			return amount < c.Value
		case OpEqual:
			// exact comparison; fractional SOL amounts rarely hit it
			return amount == c.Value
		}
		return false

	case TokenTransfer:
		if c.TokenMint != nil {
			return tx.TokenMint != nil && *tx.TokenMint == *c.TokenMint
		}
		return tx.Category == solana.CategorySPLTransfer || tx.Category == solana.CategoryNFTTransfer

	case ProgramInteraction:
		if c.ProgramID != nil {
			return tx.ProgramID != nil && *tx.ProgramID == *c.ProgramID
		}
		return tx.Category == solana.CategoryProgramInteraction

	case AnyActivity:
		return true
	}
	return false
}
