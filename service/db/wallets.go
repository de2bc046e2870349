package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Wallet is a tracked address.
type Wallet struct {
	ID        string     `json:"id"`
	Address   string     `json:"address"`
	Name      *string    `json:"name,omitempty"`
	Tag       *string    `json:"tag,omitempty"`
	Priority  int        `json:"priority"`
	Active    bool       `json:"isActive"`
	LastSync  *time.Time `json:"lastSync,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	// Populated by reads; zero on writes.
	TransactionCount int64 `json:"transactionCount"`
	AlertCount       int64 `json:"alertCount"`
}

// DisplayName returns the wallet name or an empty string.
func (w *Wallet) DisplayName() string {
	if w.Name == nil {
		return ""
	}
	return *w.Name
}

// CreateWalletParams contains the parameters for registering a wallet.
type CreateWalletParams struct {
	Address  string
	Name     *string
	Tag      *string
	Priority int
}

// UpdateWalletParams holds optional field changes; nil leaves a field as is.
type UpdateWalletParams struct {
	Name     *string
	Tag      *string
	Priority *int
	Active   *bool
}

// ListWalletsParams filters wallet listings.
type ListWalletsParams struct {
	IncludeInactive bool
}

const walletColumns = `
	w.id, w.address, w.name, w.tag, w.priority, w.is_active, w.last_sync, w.created_at, w.updated_at,
	(SELECT COUNT(*) FROM transactions t WHERE t.wallet_id = w.id),
	(SELECT COUNT(*) FROM alert_rules r WHERE r.wallet_id = w.id AND r.is_active)`

func scanWallet(row pgx.Row) (*Wallet, error) {
	var (
		w        Wallet
		name     pgtype.Text
		tag      pgtype.Text
		priority int16
		lastSync pgtype.Timestamptz
	)
	err := row.Scan(
		&w.ID, &w.Address, &name, &tag, &priority, &w.Active, &lastSync, &w.CreatedAt, &w.UpdatedAt,
		&w.TransactionCount, &w.AlertCount,
	)
	if err != nil {
		return nil, err
	}
	w.Name = stringPtrFromPgtext(name)
	w.Tag = stringPtrFromPgtext(tag)
	w.Priority = int(priority)
	w.LastSync = timePtrFromPgTimestamptz(lastSync)
	return &w, nil
}

// CreateWallet registers a new wallet. A duplicate address yields ErrDuplicate.
func (s *Store) CreateWallet(ctx context.Context, params CreateWalletParams) (w *Wallet, err error) {
	start := time.Now()
	defer func() { s.observe("insert", "wallets", start, err) }()

	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO wallets (id, address, name, tag, priority)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		uuid.NewString(),
		params.Address,
		pgtextFromStringPtr(params.Name),
		pgtextFromStringPtr(params.Tag),
		int16(params.Priority),
	).Scan(&id)
	if err != nil {
		return nil, translateError(err)
	}
	return s.GetWallet(ctx, id)
}

// GetWallet retrieves a wallet by id.
func (s *Store) GetWallet(ctx context.Context, id string) (*Wallet, error) {
	w, err := scanWallet(s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets w WHERE w.id = $1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return w, nil
}

// GetWalletByAddress retrieves a wallet by its chain address.
func (s *Store) GetWalletByAddress(ctx context.Context, address string) (*Wallet, error) {
	w, err := scanWallet(s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets w WHERE w.address = $1`, address))
	if err != nil {
		return nil, translateError(err)
	}
	return w, nil
}

// ListWallets returns wallets ordered by priority, then newest first.
func (s *Store) ListWallets(ctx context.Context, params ListWalletsParams) (out []*Wallet, err error) {
	start := time.Now()
	defer func() { s.observe("select", "wallets", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT `+walletColumns+`
		FROM wallets w
		WHERE $1 OR w.is_active
		ORDER BY w.priority DESC, w.created_at DESC`,
		params.IncludeInactive,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ListActiveWallets returns all active wallets.
func (s *Store) ListActiveWallets(ctx context.Context) ([]*Wallet, error) {
	return s.ListWallets(ctx, ListWalletsParams{})
}

// UpdateWallet applies the non-nil fields of params.
func (s *Store) UpdateWallet(ctx context.Context, id string, params UpdateWalletParams) (*Wallet, error) {
	var priority pgtype.Int2
	if params.Priority != nil {
		priority = pgtype.Int2{Int16: int16(*params.Priority), Valid: true}
	}
	var active pgtype.Bool
	if params.Active != nil {
		active = pgtype.Bool{Bool: *params.Active, Valid: true}
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE wallets SET
			name       = COALESCE($2, name),
			tag        = COALESCE($3, tag),
			priority   = COALESCE($4, priority),
			is_active  = COALESCE($5, is_active),
			updated_at = NOW()
		WHERE id = $1`,
		id,
		pgtextFromStringPtr(params.Name),
		pgtextFromStringPtr(params.Tag),
		priority,
		active,
	)
	if err != nil {
		return nil, translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.GetWallet(ctx, id)
}

// DeleteWallet removes a wallet and its transactions. Rules scoped to the
// wallet are deactivated before their reference is cleared so they don't
// start firing as global rules.
func (s *Store) DeleteWallet(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE alert_rules SET is_active = FALSE, updated_at = NOW() WHERE wallet_id = $1`, id); err != nil {
		return fmt.Errorf("failed to deactivate wallet rules: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// UpdateWalletLastSync records when the wallet was last synced.
func (s *Store) UpdateWalletLastSync(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE wallets SET last_sync = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
