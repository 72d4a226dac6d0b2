package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/db"
)

type testEnv struct {
	ledgerRepo *db.LedgerRepoPG
	orderRepo  *db.OrderRepoPG
	ledger     *LedgerService
	orders     *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Init(filepath.Join(t.TempDir(), "storefront.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))

	logger := zaptest.NewLogger(t)
	env := &testEnv{
		ledgerRepo: db.NewLedgerRepoPG(conn),
		orderRepo:  db.NewOrderRepoPG(conn),
	}
	env.ledger = NewLedgerService(env.ledgerRepo, logger)
	env.orders = NewOrderService(env.orderRepo, env.ledger, logger)
	return env
}

// seed gives the user a balance of points through an earn entry.
func (e *testEnv) seed(t *testing.T, userID, email string, points int64) {
	t.Helper()
	ctx := context.Background()
	_, err := e.ledger.GetBalance(ctx, userID, email)
	require.NoError(t, err)
	if points > 0 {
		_, err = e.ledger.ApplyDelta(ctx, userID, email, "earn", points)
		require.NoError(t, err)
	}
}
