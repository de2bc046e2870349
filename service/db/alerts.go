package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brojonat/solwatch/service/alerts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// ListAlertRulesParams filters rule listings.
type ListAlertRulesParams struct {
	WalletID        string
	IncludeInactive bool
}

// UpdateAlertRuleParams holds optional rule changes. A non-nil Condition
// must have the rule's existing type.
type UpdateAlertRuleParams struct {
	Name      *string
	Active    *bool
	Condition alerts.Condition
}

// ListNotificationsParams filters notification listings.
type ListNotificationsParams struct {
	UnreadOnly bool
	Limit      int32
}

const ruleColumns = `id, name, wallet_id, type, condition, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (*alerts.Rule, error) {
	var (
		r         alerts.Rule
		walletID  pgtype.Text
		ruleType  string
		condition []byte
	)
	if err := row.Scan(&r.ID, &r.Name, &walletID, &ruleType, &condition, &r.Active, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.WalletID = stringPtrFromPgtext(walletID)
	r.Condition = alerts.DecodeStoredCondition(alerts.RuleType(ruleType), condition)
	return &r, nil
}

func collectRules(rows pgx.Rows) ([]*alerts.Rule, error) {
	defer rows.Close()
	var out []*alerts.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateAlertRule stores a rule built by alerts.NewRule. A WalletID that
// does not exist yields ErrInvalidReference.
func (s *Store) CreateAlertRule(ctx context.Context, rule *alerts.Rule) (*alerts.Rule, error) {
	cond, err := alerts.EncodeCondition(rule.Condition)
	if err != nil {
		return nil, fmt.Errorf("failed to encode condition: %w", err)
	}
	id := rule.ID
	if id == "" {
		id = uuid.NewString()
	}

	out, err := scanRule(s.pool.QueryRow(ctx, `
		INSERT INTO alert_rules (id, name, wallet_id, type, condition, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+ruleColumns,
		id,
		rule.Name,
		pgtextFromStringPtr(rule.WalletID),
		string(rule.Type()),
		string(cond),
		rule.Active,
	))
	if err != nil {
		return nil, translateError(err)
	}
	return out, nil
}

// GetAlertRule retrieves a rule by id.
func (s *Store) GetAlertRule(ctx context.Context, id string) (*alerts.Rule, error) {
	r, err := scanRule(s.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM alert_rules WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return r, nil
}

// ListAlertRules returns rules newest first.
func (s *Store) ListAlertRules(ctx context.Context, params ListAlertRulesParams) ([]*alerts.Rule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM alert_rules
		WHERE ($1 OR is_active)
		  AND ($2 = '' OR wallet_id = $2)
		ORDER BY created_at DESC`,
		params.IncludeInactive, params.WalletID,
	)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// ListActiveRulesForWallet returns active rules scoped to walletID together
// with active global rules, oldest first.
func (s *Store) ListActiveRulesForWallet(ctx context.Context, walletID string) (out []*alerts.Rule, err error) {
	start := time.Now()
	defer func() { s.observe("select", "alert_rules", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM alert_rules
		WHERE is_active AND (wallet_id = $1 OR wallet_id IS NULL)
		ORDER BY created_at ASC`,
		walletID,
	)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// UpdateAlertRule applies the non-nil fields of params.
func (s *Store) UpdateAlertRule(ctx context.Context, id string, params UpdateAlertRuleParams) (*alerts.Rule, error) {
	var cond any
	if params.Condition != nil {
		raw, err := alerts.EncodeCondition(params.Condition)
		if err != nil {
			return nil, fmt.Errorf("failed to encode condition: %w", err)
		}
		cond = string(raw)
	}
	var active pgtype.Bool
	if params.Active != nil {
		active = pgtype.Bool{Bool: *params.Active, Valid: true}
	}

	r, err := scanRule(s.pool.QueryRow(ctx, `
		UPDATE alert_rules SET
			name       = COALESCE($2, name),
			is_active  = COALESCE($3, is_active),
			condition  = COALESCE($4::jsonb, condition),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+ruleColumns,
		id,
		pgtextFromStringPtr(params.Name),
		active,
		cond,
	))
	if err != nil {
		return nil, translateError(err)
	}
	return r, nil
}

// DeleteAlertRule removes a rule and its notifications.
func (s *Store) DeleteAlertRule(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateNotification stores n and returns it with id and timestamp set.
func (s *Store) CreateNotification(ctx context.Context, n *alerts.Notification) (out *alerts.Notification, err error) {
	start := time.Now()
	defer func() { s.observe("insert", "notifications", start, err) }()

	data, err := json.Marshal(n.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification data: %w", err)
	}

	stored := *n
	stored.ID = uuid.NewString()
	err = s.pool.QueryRow(ctx, `
		INSERT INTO notifications (id, rule_id, title, message, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING is_read, created_at`,
		stored.ID, stored.RuleID, stored.Title, stored.Message, string(data),
	).Scan(&stored.Read, &stored.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return &stored, nil
}

// ListNotifications returns notifications newest first.
func (s *Store) ListNotifications(ctx context.Context, params ListNotificationsParams) ([]*alerts.Notification, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_id, title, message, data, is_read, created_at
		FROM notifications
		WHERE NOT $1 OR NOT is_read
		ORDER BY created_at DESC
		LIMIT $2`,
		params.UnreadOnly, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*alerts.Notification
	for rows.Next() {
		var (
			n    alerts.Notification
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.RuleID, &n.Title, &n.Message, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to decode notification %s: %w", n.ID, err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

// MarkNotificationsRead sets the read flag on the given notifications and
// returns how many rows changed.
func (s *Store) MarkNotificationsRead(ctx context.Context, ids []string, read bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `UPDATE notifications SET is_read = $2 WHERE id = ANY($1)`, ids, read)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountUnreadNotifications returns the number of unread notifications.
func (s *Store) CountUnreadNotifications(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE NOT is_read`).Scan(&n)
	return n, err
}
