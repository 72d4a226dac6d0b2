package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/models"
)

type LedgerRepoPG struct {
	db *DB
}

func NewLedgerRepoPG(db *DB) *LedgerRepoPG {
	return &LedgerRepoPG{db: db}
}

// EnsureBalance returns the balance row for userID, creating it with zero
// points when absent. A differing non-empty email is written back.
func (r *LedgerRepoPG) EnsureBalance(ctx context.Context, userID, email string) (*models.Balance, error) {
	return ensureBalance(ctx, r.db, userID, email)
}

func ensureBalance(ctx context.Context, q queryer, userID, email string) (*models.Balance, error) {
	ts := now()
	_, err := q.ExecContext(ctx, `INSERT INTO loyalty_balances (user_id, email, points, created_at, updated_at) VALUES ($1, $2, 0, $3, $3) ON CONFLICT (user_id) DO NOTHING`, userID, email, ts)
	if err != nil {
		return nil, err
	}
	if email != "" {
		_, err = q.ExecContext(ctx, `UPDATE loyalty_balances SET email=$1 WHERE user_id=$2 AND email<>$1`, email, userID)
		if err != nil {
			return nil, err
		}
	}
	var b models.Balance
	err = q.QueryRowContext(ctx, `SELECT user_id, email, points, created_at, updated_at FROM loyalty_balances WHERE user_id=$1`, userID).Scan(&b.UserID, &b.Email, &b.Points, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ApplyDelta moves the balance by op.Sign()*amount and appends the matching
// history row in one transaction. The update is a single guarded statement,
// so concurrent writers cannot lose updates or drive points below zero.
// applied is false when the guard rejected the change; entry.PointsBefore
// then holds the balance that was seen.
func (r *LedgerRepoPG) ApplyDelta(ctx context.Context, userID, email string, op models.Op, amount int64, orderID string) (entry models.HistoryEntry, applied bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return entry, false, err
	}
	defer tx.Rollback()

	b, err := ensureBalance(ctx, tx, userID, email)
	if err != nil {
		return entry, false, err
	}
	ts := now()
	entry = models.HistoryEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Email:        b.Email,
		Op:           op,
		Amount:       amount,
		PointsBefore: b.Points,
		OrderID:      orderID,
		CreatedAt:    ts,
	}

	delta := op.Sign() * amount
	var after int64
	err = tx.QueryRowContext(ctx, `UPDATE loyalty_balances SET points = points + $1, updated_at = $2 WHERE user_id = $3 AND points + $1 >= 0 RETURNING points`, delta, ts, userID).Scan(&after)
	if errors.Is(err, sql.ErrNoRows) {
		return entry, false, nil
	}
	if err != nil {
		return entry, false, err
	}
	entry.PointsBefore = after - delta
	entry.PointsAfter = after

	_, err = tx.ExecContext(ctx, `INSERT INTO loyalty_history (id, user_id, email, op, amount, points_before, points_after, order_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.UserID, entry.Email, string(entry.Op), entry.Amount, entry.PointsBefore, entry.PointsAfter, nullString(orderID), entry.CreatedAt)
	if err != nil {
		return entry, false, err
	}
	if err := tx.Commit(); err != nil {
		return entry, false, err
	}
	return entry, true, nil
}

func (r *LedgerRepoPG) FindUserIDByEmail(ctx context.Context, email string) (string, bool, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, `SELECT user_id FROM loyalty_balances WHERE email=$1 ORDER BY updated_at DESC LIMIT 1`, email).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

func (r *LedgerRepoPG) ListHistory(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, user_id, email, op, amount, points_before, points_after, order_id, created_at FROM loyalty_history WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	history := make([]models.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			h       models.HistoryEntry
			op      string
			orderID sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.UserID, &h.Email, &op, &h.Amount, &h.PointsBefore, &h.PointsAfter, &orderID, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.Op = models.Op(op)
		h.OrderID = orderID.String
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

// HasHistorySince reports whether an entry with the same op and amount was
// recorded for userID at or after since.
func (r *LedgerRepoPG) HasHistorySince(ctx context.Context, userID string, op models.Op, amount int64, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM loyalty_history WHERE user_id=$1 AND op=$2 AND amount=$3 AND created_at >= $4)`, userID, string(op), amount, since.UTC()).Scan(&exists)
	return exists, err
}

func (r *LedgerRepoPG) ListBalances(ctx context.Context) ([]models.Balance, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, email, points, created_at, updated_at FROM loyalty_balances ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var balances []models.Balance
	for rows.Next() {
		var b models.Balance
		if err := rows.Scan(&b.UserID, &b.Email, &b.Points, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return balances, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
