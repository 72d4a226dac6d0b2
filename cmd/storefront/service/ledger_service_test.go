package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/models"
)

func TestGetBalance_CreatesRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	points, err := env.ledger.GetBalance(ctx, "u-1", "Buyer@Example.com ")
	require.NoError(t, err)
	assert.Equal(t, int64(0), points)

	id, ok, err := env.ledgerRepo.FindUserIDByEmail(ctx, "buyer@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u-1", id)
}

func TestApplyDelta_Redeem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, "u-1", "a@example.com", 100)

	points, err := env.ledger.ApplyDelta(ctx, "u-1", "a@example.com", models.OpRedeem, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), points)

	history, err := env.ledger.GetHistory(ctx, "u-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	h := history[0]
	assert.Equal(t, models.OpRedeem, h.Op)
	assert.Equal(t, int64(50), h.Amount)
	assert.Equal(t, int64(100), h.PointsBefore)
	assert.Equal(t, int64(50), h.PointsAfter)
}

func TestApplyDelta_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, "u-1", "a@example.com", 50)

	_, err := env.ledger.ApplyDelta(ctx, "u-1", "a@example.com", models.OpRedeem, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	var shortfall *InsufficientBalanceError
	require.ErrorAs(t, err, &shortfall)
	assert.Equal(t, int64(50), shortfall.Available)
	assert.Equal(t, int64(100), shortfall.Requested)
	assert.True(t, IsClientError(err))

	points, err := env.ledger.GetBalance(ctx, "u-1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(50), points)

	history, err := env.ledger.GetHistory(ctx, "u-1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1, "only the seeding earn")
}

func TestApplyDelta_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.ApplyDelta(ctx, "u-1", "a@example.com", models.OpEarn, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.ledger.ApplyDelta(ctx, "u-1", "a@example.com", models.OpEarn, -5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.ledger.ApplyDelta(ctx, "u-1", "a@example.com", models.Op("gift"), 5)
	assert.ErrorIs(t, err, ErrInvalidOp)

	balances, err := env.ledgerRepo.ListBalances(ctx)
	require.NoError(t, err)
	assert.Empty(t, balances, "validation happens before touching the store")
}

func TestApplyDelta_HistoryConservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, "u-1", "a@example.com", 0)

	steps := []struct {
		op     models.Op
		amount int64
	}{
		{models.OpEarn, 120}, {models.OpRedeem, 50}, {models.OpRefund, 20},
		{models.OpRedeem, 500}, {models.OpRedeem, 90}, {models.OpEarn, 1},
	}
	var (
		balance int64
		applied int
	)
	for _, step := range steps {
		next, err := env.ledger.ApplyDelta(ctx, "u-1", "a@example.com", step.op, step.amount)
		if errors.Is(err, ErrInsufficientBalance) {
			continue
		}
		require.NoError(t, err)
		applied++
		assert.Equal(t, balance+step.op.Sign()*step.amount, next)
		balance = next
		assert.GreaterOrEqual(t, balance, int64(0))

		history, err := env.ledger.GetHistory(ctx, "u-1", MaxHistoryLimit)
		require.NoError(t, err)
		require.Len(t, history, applied)
		last := history[0]
		assert.Equal(t, step.op, last.Op)
		assert.Equal(t, step.op.Sign()*step.amount, last.PointsAfter-last.PointsBefore)
		assert.Equal(t, next, last.PointsAfter)
	}
	assert.Equal(t, int64(1), balance)
}

func TestGetHistory_ClampsLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, ClampHistoryLimit(0))
	assert.Equal(t, DefaultHistoryLimit, ClampHistoryLimit(-3))
	assert.Equal(t, 1, ClampHistoryLimit(1))
	assert.Equal(t, MaxHistoryLimit, ClampHistoryLimit(1000))

	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, "u-1", "a@example.com", 0)
	for i := 0; i < 3; i++ {
		_, err := env.ledger.ApplyDelta(ctx, "u-1", "a@example.com", models.OpEarn, 1)
		require.NoError(t, err)
	}
	history, err := env.ledger.GetHistory(ctx, "u-1", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPointsFromFloat(t *testing.T) {
	v, err := PointsFromFloat(25)
	require.NoError(t, err)
	assert.Equal(t, int64(25), v)

	for _, bad := range []float64{0, -1, 1.5, math.NaN(), math.Inf(1)} {
		_, err := PointsFromFloat(bad)
		assert.ErrorIs(t, err, ErrInvalidAmount, "%v", bad)
	}
}

func TestResolveTarget(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, "u-2", "other@example.com", 10)

	buyer := models.Identity{UserID: "u-1", Email: "a@example.com"}
	admin := models.Identity{UserID: "adm", Email: "admin@example.com", Admin: true}

	id, email, err := env.ledger.ResolveTarget(ctx, buyer, "")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
	assert.Equal(t, "a@example.com", email)

	_, _, err = env.ledger.ResolveTarget(ctx, buyer, "other@example.com")
	assert.ErrorIs(t, err, ErrForbidden)

	id, _, err = env.ledger.ResolveTarget(ctx, admin, "OTHER@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-2", id)

	_, _, err = env.ledger.ResolveTarget(ctx, admin, "ghost@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSubmit_OpRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, "u-1", "a@example.com", 100)
	buyer := models.Identity{UserID: "u-1", Email: "a@example.com"}
	admin := models.Identity{UserID: "adm", Email: "admin@example.com", Admin: true}

	_, err := env.ledger.Submit(ctx, buyer, models.LoyaltyRequest{Op: models.OpEarn}, 10)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.ledger.Submit(ctx, buyer, models.LoyaltyRequest{Op: models.OpRefund}, 10)
	assert.ErrorIs(t, err, ErrInvalidOp)

	points, err := env.ledger.Submit(ctx, buyer, models.LoyaltyRequest{Op: models.OpRedeem}, 40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), points)

	points, err = env.ledger.Submit(ctx, admin, models.LoyaltyRequest{Op: models.OpEarn, Email: "a@example.com"}, 15)
	require.NoError(t, err)
	assert.Equal(t, int64(75), points)
}

func TestAllBalances(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "u-1", "a@example.com", 7)
	env.seed(t, "u-2", "b@example.com", 0)

	all, err := env.ledger.AllBalances(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a@example.com": 7, "b@example.com": 0}, all)
}

func TestRedemptionCap_NeverTripsBalanceBackstop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed(t, "u-1", "a@example.com", 437)
	buyer := models.Identity{UserID: "u-1", Email: "a@example.com"}

	maxPoints, balance, err := env.ledger.RedemptionCap(ctx, buyer, RedemptionInput{
		Subtotal: decimal.NewFromInt(1_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(437), balance)
	assert.Equal(t, int64(400), maxPoints)

	_, err = env.ledger.ApplyDelta(ctx, "u-1", "a@example.com", models.OpRedeem, maxPoints)
	assert.NoError(t, err)
}

type failingLedgerRepo struct {
	LedgerRepo
	err error
}

func (f failingLedgerRepo) EnsureBalance(context.Context, string, string) (*models.Balance, error) {
	return nil, f.err
}

func (f failingLedgerRepo) ApplyDelta(context.Context, string, string, models.Op, int64, string) (models.HistoryEntry, bool, error) {
	return models.HistoryEntry{}, false, f.err
}

func (f failingLedgerRepo) HasHistorySince(context.Context, string, models.Op, int64, time.Time) (bool, error) {
	return false, f.err
}

func TestStoreErrorsPropagate(t *testing.T) {
	cause := errors.New("connection refused")
	ledger := NewLedgerService(failingLedgerRepo{err: cause}, zaptest.NewLogger(t))

	_, err := ledger.GetBalance(context.Background(), "u-1", "a@example.com")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsClientError(err))

	_, err = ledger.ApplyDelta(context.Background(), "u-1", "a@example.com", models.OpEarn, 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
