package db

import (
	"context"
	"time"

	"github.com/brojonat/solwatch/service/solana"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Transaction is a stored classified transaction.
type Transaction struct {
	solana.ClassifiedTransaction
	WalletID  string    `json:"walletId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListTransactionsParams filters and pages transaction listings. Empty
// filters match everything.
type ListTransactionsParams struct {
	WalletID string
	Category string
	Limit    int32
	Offset   int32
}

// InsertTransactionIfAbsent stores tx under walletID. It reports false,
// without error, when a transaction with the same signature already exists.
func (s *Store) InsertTransactionIfAbsent(ctx context.Context, walletID string, tx *solana.ClassifiedTransaction) (inserted bool, err error) {
	start := time.Now()
	defer func() { s.observe("insert", "transactions", start, err) }()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (
			signature, wallet_id, type, status, block_time, slot, from_address, to_address,
			amount, token_mint, token_symbol, token_decimals, fee, program_id, instruction_data, raw_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (signature) DO NOTHING`,
		tx.Signature,
		walletID,
		string(tx.Category),
		string(tx.Status),
		pgtimestamptzFromTimePtr(tx.BlockTime),
		int64(tx.Slot),
		tx.From,
		pgtextFromStringPtr(tx.To),
		pgtextFromStringPtr(tx.Amount),
		pgtextFromStringPtr(tx.TokenMint),
		pgtextFromStringPtr(tx.TokenSymbol),
		pgint4FromIntPtr(tx.TokenDecimals),
		pgtextFromStringPtr(tx.Fee),
		pgtextFromStringPtr(tx.ProgramID),
		nullableJSON(tx.InstructionData),
		nullableJSON(tx.RawData),
	)
	if err != nil {
		return false, translateError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetTransaction retrieves a stored transaction by signature.
func (s *Store) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE signature = $1`, signature))
	if err != nil {
		return nil, translateError(err)
	}
	return t, nil
}

// ListTransactions returns transactions newest block first.
func (s *Store) ListTransactions(ctx context.Context, params ListTransactionsParams) (out []*Transaction, err error) {
	start := time.Now()
	defer func() { s.observe("select", "transactions", start, err) }()

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE ($1 = '' OR wallet_id = $1)
		  AND ($2 = '' OR type = $2)
		ORDER BY block_time DESC NULLS LAST, slot DESC
		LIMIT $3 OFFSET $4`,
		params.WalletID, params.Category, limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CountTransactions counts transactions matching the same filters as
// ListTransactions, ignoring paging.
func (s *Store) CountTransactions(ctx context.Context, params ListTransactionsParams) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE ($1 = '' OR wallet_id = $1)
		  AND ($2 = '' OR type = $2)`,
		params.WalletID, params.Category,
	).Scan(&n)
	return n, err
}

const transactionColumns = `
	signature, wallet_id, type, status, block_time, slot, from_address, to_address,
	amount, token_mint, token_symbol, token_decimals, fee, program_id, instruction_data, created_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		t         Transaction
		category  string
		status    string
		blockTime pgtype.Timestamptz
		slot      int64
		to        pgtype.Text
		amount    pgtype.Text
		mint      pgtype.Text
		symbol    pgtype.Text
		decimals  pgtype.Int4
		fee       pgtype.Text
		programID pgtype.Text
		instr     []byte
	)
	err := row.Scan(
		&t.Signature, &t.WalletID, &category, &status, &blockTime, &slot, &t.From, &to,
		&amount, &mint, &symbol, &decimals, &fee, &programID, &instr, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Category = solana.Category(category)
	t.Status = solana.Status(status)
	t.BlockTime = timePtrFromPgTimestamptz(blockTime)
	t.Slot = uint64(slot)
	t.To = stringPtrFromPgtext(to)
	t.Amount = stringPtrFromPgtext(amount)
	t.TokenMint = stringPtrFromPgtext(mint)
	t.TokenSymbol = stringPtrFromPgtext(symbol)
	t.TokenDecimals = intPtrFromPgint4(decimals)
	t.Fee = stringPtrFromPgtext(fee)
	t.ProgramID = stringPtrFromPgtext(programID)
	t.InstructionData = instr
	return &t, nil
}

// nullableJSON sends an empty document as SQL NULL.
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
