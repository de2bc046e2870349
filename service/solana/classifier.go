package solana

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Well-known program identifiers and names as reported by jsonParsed encoding.
const (
	SystemProgramID    = "11111111111111111111111111111111"
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"

	programSystem    = "system"
	programToken     = "spl-token"
	programToken2022 = "spl-token-2022"
)

// lamportsPerSOLExp is the decimal exponent between lamports and SOL.
const lamportsPerSOLExp = 9

// knownMints maps a few widely held token mints to their symbols.
var knownMints = map[string]string{
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"So11111111111111111111111111111111111111112":  "wSOL",
}

// Classify sorts a raw transaction into exactly one category.
//
// The first native SOL transfer wins. Failing that, the first token
// transfer decides between nft_transfer (raw amount "1", regardless of
// decimals) and spl_transfer. Everything else is a program_interaction
// attributed to walletAddress. It returns false when raw has no metadata;
// such transactions must be skipped, not stored.
func Classify(raw *RawTransaction, walletAddress string) (*ClassifiedTransaction, bool) {
	if raw == nil || raw.Meta == nil {
		return nil, false
	}

	var tx *ClassifiedTransaction
	if inst, ok := firstNativeTransfer(raw.Instructions); ok {
		tx = classifySOLTransfer(inst)
	} else if inst, ok := firstTokenTransfer(raw.Instructions); ok {
		tx = classifyTokenTransfer(inst)
	} else {
		tx = classifyProgramInteraction(raw.Instructions, walletAddress)
	}

	if raw.Meta.Fee > 0 {
		tx.Fee = ptr(lamportsToSOL(decimal.NewFromInt(int64(raw.Meta.Fee))))
	}

	tx.Signature = raw.Signature
	tx.Status = StatusSuccess
	if raw.Failed {
		tx.Status = StatusFailed
	}
	tx.BlockTime = raw.BlockTime
	tx.Slot = raw.Slot
	tx.RawData = raw.Raw

	return tx, true
}

func firstNativeTransfer(instructions []RawInstruction) (RawInstruction, bool) {
	for _, inst := range instructions {
		if !inst.Parsed || inst.Type != "transfer" {
			continue
		}
		if inst.Program == programSystem || inst.ProgramID == SystemProgramID {
			return inst, true
		}
	}
	return RawInstruction{}, false
}

func firstTokenTransfer(instructions []RawInstruction) (RawInstruction, bool) {
	for _, inst := range instructions {
		if !inst.Parsed || !isTokenProgram(inst) {
			continue
		}
		if inst.Type == "transfer" || inst.Type == "transferChecked" {
			return inst, true
		}
	}
	return RawInstruction{}, false
}

func isTokenProgram(inst RawInstruction) bool {
	switch {
	case inst.Program == programToken, inst.Program == programToken2022:
		return true
	case inst.ProgramID == TokenProgramID, inst.ProgramID == Token2022ProgramID:
		return true
	}
	return false
}

func classifySOLTransfer(inst RawInstruction) *ClassifiedTransaction {
	tx := &ClassifiedTransaction{
		Category: CategorySOLTransfer,
		From:     infoString(inst.Info, "source"),
		To:       optional(infoString(inst.Info, "destination")),
	}
	if lamports, ok := infoDecimal(inst.Info, "lamports"); ok {
		tx.Amount = ptr(lamportsToSOL(lamports))
	}
	return tx
}

func classifyTokenTransfer(inst RawInstruction) *ClassifiedTransaction {
	amount := infoString(inst.Info, "amount")
	tokenAmount, _ := inst.Info["tokenAmount"].(map[string]any)
	if amount == "" {
		amount = infoString(tokenAmount, "amount")
	}

	from := infoString(inst.Info, "source")
	if from == "" {
		from = infoString(inst.Info, "authority")
	}

	tx := &ClassifiedTransaction{
		From:      from,
		To:        optional(infoString(inst.Info, "destination")),
		TokenMint: optional(infoString(inst.Info, "mint")),
	}
	if tx.TokenMint != nil {
		if sym, ok := knownMints[*tx.TokenMint]; ok {
			tx.TokenSymbol = ptr(sym)
		}
	}

	if amount == "1" {
		tx.Category = CategoryNFTTransfer
		tx.Amount = ptr("1")
		return tx
	}

	tx.Category = CategorySPLTransfer
	tx.Amount = optional(amount)
	if d, ok := infoDecimal(tokenAmount, "decimals"); ok {
		n := int(d.IntPart())
		tx.TokenDecimals = &n
	}
	return tx
}

func classifyProgramInteraction(instructions []RawInstruction, walletAddress string) *ClassifiedTransaction {
	tx := &ClassifiedTransaction{
		Category: CategoryProgramInteraction,
		From:     walletAddress,
	}
	for _, inst := range instructions {
		if inst.ProgramID != "" {
			tx.ProgramID = ptr(inst.ProgramID)
			break
		}
	}
	if len(instructions) > 0 {
		if data, err := json.Marshal(instructions); err == nil {
			tx.InstructionData = data
		}
	}
	return tx
}

func lamportsToSOL(lamports decimal.Decimal) string {
	return lamports.Shift(-lamportsPerSOLExp).String()
}

// infoString reads a string field from a parsed info map. Numbers are
// rendered in their decimal form since token amounts arrive as either.
func infoString(info map[string]any, key string) string {
	switch v := info[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func infoDecimal(info map[string]any, key string) (decimal.Decimal, bool) {
	s := infoString(info, key)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr[T any](v T) *T {
	return &v
}
