package solana

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionResult is a getTransaction response in jsonParsed encoding,
// reduced to the fields we read.
type TransactionResult struct {
	Slot        uint64              `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *TransactionMeta    `json:"meta"`
	Transaction TransactionEnvelope `json:"transaction"`

	raw json.RawMessage
}

// TransactionMeta is the "meta" object of a getTransaction response.
type TransactionMeta struct {
	Err any    `json:"err"`
	Fee uint64 `json:"fee"`
}

// TransactionEnvelope is the "transaction" object of a getTransaction response.
type TransactionEnvelope struct {
	Signatures []string `json:"signatures"`
	Message    struct {
		Instructions []WireInstruction `json:"instructions"`
	} `json:"message"`
}

// WireInstruction is a single instruction in jsonParsed encoding. Parsed is
// an object for programs the node can decode, a plain string for the memo
// program, and absent otherwise.
type WireInstruction struct {
	Program   string          `json:"program,omitempty"`
	ProgramID string          `json:"programId"`
	Parsed    json.RawMessage `json:"parsed,omitempty"`
	Accounts  []string        `json:"accounts,omitempty"`
	Data      string          `json:"data,omitempty"`
}

type parsedPayload struct {
	Type string         `json:"type"`
	Info map[string]any `json:"info"`
}

// DecodeTransactionResult decodes a raw getTransaction result. A JSON null
// (transaction not found) decodes to nil without error.
func DecodeTransactionResult(data []byte) (*TransactionResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var res TransactionResult
	if err := json.Unmarshal(trimmed, &res); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	res.raw = append(json.RawMessage(nil), trimmed...)
	return &res, nil
}

// toRawTransaction merges a signature listing entry with its full
// transaction. Status, block time and slot come from the listing entry.
func toRawTransaction(sig *rpc.TransactionSignature, res *TransactionResult) *RawTransaction {
	raw := &RawTransaction{
		Signature: sig.Signature.String(),
		Slot:      sig.Slot,
		Failed:    sig.Err != nil,
		Raw:       res.raw,
	}
	if sig.BlockTime != nil {
		t := sig.BlockTime.Time()
		raw.BlockTime = &t
	}
	if res.Meta != nil {
		raw.Meta = &RawMeta{Fee: res.Meta.Fee}
	}

	raw.Instructions = make([]RawInstruction, 0, len(res.Transaction.Message.Instructions))
	for _, wi := range res.Transaction.Message.Instructions {
		raw.Instructions = append(raw.Instructions, wi.toRaw())
	}
	return raw
}

func (wi WireInstruction) toRaw() RawInstruction {
	inst := RawInstruction{
		Program:   wi.Program,
		ProgramID: wi.ProgramID,
	}

	body := bytes.TrimSpace(wi.Parsed)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return inst
	}
	inst.Parsed = true

	if body[0] != '{' {
		// memo-style payloads carry no operation type
		return inst
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var p parsedPayload
	if err := dec.Decode(&p); err != nil {
		inst.Parsed = false
		return inst
	}
	inst.Type = p.Type
	inst.Info = p.Info
	return inst
}
