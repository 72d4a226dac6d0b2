package db

import (
	"context"
	"fmt"
)

func Migrate(ctx context.Context, db *DB) error {
	timestamp, money := "TIMESTAMPTZ", "NUMERIC(14,2)"
	if db.Dialect == DialectSQLite {
		// mattn/go-sqlite3 only parses time values for these exact decltypes.
		timestamp, money = "TIMESTAMP", "TEXT"
	}

	statements := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS loyalty_balances (
			user_id TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT '',
			points BIGINT NOT NULL DEFAULT 0 CHECK (points >= 0),
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, timestamp),
		`CREATE INDEX IF NOT EXISTS idx_loyalty_balances_email ON loyalty_balances(email)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS loyalty_history (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES loyalty_balances(user_id),
			email TEXT NOT NULL DEFAULT '',
			op TEXT NOT NULL CHECK (op IN ('earn', 'redeem', 'refund')),
			amount BIGINT NOT NULL CHECK (amount > 0),
			points_before BIGINT NOT NULL,
			points_after BIGINT NOT NULL,
			order_id TEXT,
			created_at %[1]s NOT NULL
		)`, timestamp),
		`CREATE INDEX IF NOT EXISTS idx_loyalty_history_user_created ON loyalty_history(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_loyalty_history_dedupe ON loyalty_history(user_id, op, amount, created_at)`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL DEFAULT '',
			customer_email TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'AwaitingPayment',
			total %[2]s NOT NULL,
			points_redeemed BIGINT,
			points_discount %[2]s NOT NULL DEFAULT 0,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, timestamp, money),
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, created_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
