package solana

import (
	"encoding/json"
	"time"
)

// Category is the semantic class a transaction is sorted into.
type Category string

const (
	CategorySOLTransfer        Category = "sol_transfer"
	CategorySPLTransfer        Category = "spl_transfer"
	CategoryNFTTransfer        Category = "nft_transfer"
	CategoryProgramInteraction Category = "program_interaction"
)

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	switch c {
	case CategorySOLTransfer, CategorySPLTransfer, CategoryNFTTransfer, CategoryProgramInteraction:
		return true
	}
	return false
}

// Status is the on-chain execution outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// RawInstruction is one instruction as returned by a jsonParsed
// getTransaction call. Unparsed instructions only carry ProgramID.
type RawInstruction struct {
	Program   string         `json:"program,omitempty"`
	ProgramID string         `json:"programId,omitempty"`
	Parsed    bool           `json:"parsed"`
	Type      string         `json:"type,omitempty"`
	Info      map[string]any `json:"info,omitempty"`
}

// RawMeta is the subset of transaction metadata the classifier reads.
type RawMeta struct {
	Fee uint64 `json:"fee"`
}

// RawTransaction is an unclassified chain record. Meta is nil when the
// node returned no metadata for the transaction.
type RawTransaction struct {
	Signature    string
	Instructions []RawInstruction
	Meta         *RawMeta
	Failed       bool
	BlockTime    *time.Time
	Slot         uint64

	// Raw is the node's response body, kept for display.
	Raw json.RawMessage
}

// ClassifiedTransaction is the typed result of Classify. It is never
// mutated after it is produced.
type ClassifiedTransaction struct {
	Signature     string     `json:"signature"`
	Category      Category   `json:"type"`
	From          string     `json:"from"`
	To            *string    `json:"to,omitempty"`
	Amount        *string    `json:"amount,omitempty"`
	TokenMint     *string    `json:"tokenMint,omitempty"`
	TokenSymbol   *string    `json:"tokenSymbol,omitempty"`
	TokenDecimals *int       `json:"tokenDecimals,omitempty"`
	ProgramID     *string    `json:"programId,omitempty"`
	Fee           *string    `json:"fee,omitempty"`
	Status        Status     `json:"status"`
	BlockTime     *time.Time `json:"blockTime,omitempty"`
	Slot          uint64     `json:"slot"`

	InstructionData json.RawMessage `json:"instructionData,omitempty"`
	RawData         json.RawMessage `json:"-"`
}
