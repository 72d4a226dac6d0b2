package service

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/models"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

type LedgerRepo interface {
	EnsureBalance(ctx context.Context, userID, email string) (*models.Balance, error)
	ApplyDelta(ctx context.Context, userID, email string, op models.Op, amount int64, orderID string) (models.HistoryEntry, bool, error)
	FindUserIDByEmail(ctx context.Context, email string) (string, bool, error)
	ListHistory(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error)
	HasHistorySince(ctx context.Context, userID string, op models.Op, amount int64, since time.Time) (bool, error)
	ListBalances(ctx context.Context) ([]models.Balance, error)
}

// LedgerService is the only writer of point balances.
type LedgerService struct {
	LedgerRepo LedgerRepo
	Logger     *zap.Logger
}

func NewLedgerService(repo LedgerRepo, logger *zap.Logger) *LedgerService {
	return &LedgerService{LedgerRepo: repo, Logger: logger}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PointsFromFloat validates a JSON amount: finite, whole and positive.
func PointsFromFloat(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v != math.Trunc(v) || v > math.MaxInt32 {
		return 0, ErrInvalidAmount
	}
	return int64(v), nil
}

// ClampHistoryLimit maps a requested page size into [1, MaxHistoryLimit];
// zero or negative means the default.
func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}

// GetBalance returns the user's points, creating an empty balance on first use.
func (s *LedgerService) GetBalance(ctx context.Context, userID, email string) (int64, error) {
	b, err := s.LedgerRepo.EnsureBalance(ctx, userID, NormalizeEmail(email))
	if err != nil {
		return 0, storeErr("ensure balance", err)
	}
	return b.Points, nil
}

func (s *LedgerService) ApplyDelta(ctx context.Context, userID, email string, op models.Op, amount int64) (int64, error) {
	entry, err := s.applyDelta(ctx, userID, email, op, amount, "")
	if err != nil {
		return 0, err
	}
	return entry.PointsAfter, nil
}

func (s *LedgerService) applyDelta(ctx context.Context, userID, email string, op models.Op, amount int64, orderID string) (models.HistoryEntry, error) {
	if !op.Valid() {
		return models.HistoryEntry{}, ErrInvalidOp
	}
	if amount <= 0 {
		return models.HistoryEntry{}, ErrInvalidAmount
	}
	entry, applied, err := s.LedgerRepo.ApplyDelta(ctx, userID, NormalizeEmail(email), op, amount, orderID)
	if err != nil {
		return models.HistoryEntry{}, storeErr("apply delta", err)
	}
	if !applied {
		return models.HistoryEntry{}, &InsufficientBalanceError{UserID: userID, Available: entry.PointsBefore, Requested: amount}
	}
	s.Logger.Info("Ledger delta applied",
		zap.String("user_id", userID),
		zap.String("op", string(op)),
		zap.Int64("amount", amount),
		zap.Int64("points_before", entry.PointsBefore),
		zap.Int64("points_after", entry.PointsAfter),
		zap.String("order_id", orderID),
	)
	return entry, nil
}

func (s *LedgerService) GetHistory(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	history, err := s.LedgerRepo.ListHistory(ctx, userID, ClampHistoryLimit(limit))
	if err != nil {
		return nil, storeErr("list history", err)
	}
	return history, nil
}

// AllBalances maps email to points for every known account.
func (s *LedgerService) AllBalances(ctx context.Context) (map[string]int64, error) {
	balances, err := s.LedgerRepo.ListBalances(ctx)
	if err != nil {
		return nil, storeErr("list balances", err)
	}
	out := make(map[string]int64, len(balances))
	for _, b := range balances {
		key := b.Email
		if key == "" {
			key = b.UserID
		}
		out[key] = b.Points
	}
	return out, nil
}

// ResolveTarget picks whose balance a request acts on. Only callers that may
// target other users get their email override looked up.
func (s *LedgerService) ResolveTarget(ctx context.Context, caller models.Identity, email string) (string, string, error) {
	email = NormalizeEmail(email)
	if email == "" || email == NormalizeEmail(caller.Email) {
		return caller.UserID, caller.Email, nil
	}
	if !caller.CanTargetOtherUsers() {
		return "", "", ErrForbidden
	}
	userID, ok, err := s.LedgerRepo.FindUserIDByEmail(ctx, email)
	if err != nil {
		return "", "", storeErr("find user", err)
	}
	if !ok {
		return "", "", ErrUserNotFound
	}
	return userID, email, nil
}

// Submit applies a caller-initiated ledger request. Buyers may only redeem;
// manual credits are reserved for admins.
func (s *LedgerService) Submit(ctx context.Context, caller models.Identity, req models.LoyaltyRequest, amount int64) (int64, error) {
	switch req.Op {
	case models.OpRedeem:
	case models.OpEarn:
		if !caller.CanTargetOtherUsers() {
			return 0, ErrForbidden
		}
	default:
		return 0, ErrInvalidOp
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	userID, email, err := s.ResolveTarget(ctx, caller, req.Email)
	if err != nil {
		return 0, err
	}
	return s.ApplyDelta(ctx, userID, email, req.Op, amount)
}

// RedemptionCap returns the caller's balance and how much of it the given
// cart may redeem.
func (s *LedgerService) RedemptionCap(ctx context.Context, caller models.Identity, in RedemptionInput) (int64, int64, error) {
	balance, err := s.GetBalance(ctx, caller.UserID, caller.Email)
	if err != nil {
		return 0, 0, err
	}
	in.Balance = balance
	return MaxRedeemable(in), balance, nil
}

// CreditForOrder runs the earn-on-completion / refund-on-cancellation
// procedure for one order. An earlier entry with the same op and amount
// recorded at or after the order's creation counts as already applied.
func (s *LedgerService) CreditForOrder(ctx context.Context, order *models.Order, op models.Op, amount int64) (Outcome, error) {
	email := NormalizeEmail(order.CustomerEmail)
	if amount <= 0 || email == "" {
		return OutcomeSkipped, nil
	}
	userID, ok, err := s.LedgerRepo.FindUserIDByEmail(ctx, email)
	if err != nil {
		return OutcomeFailed, storeErr("find user", err)
	}
	if !ok {
		return OutcomeSkipped, nil
	}
	done, err := s.LedgerRepo.HasHistorySince(ctx, userID, op, amount, order.CreatedAt)
	if err != nil {
		return OutcomeFailed, storeErr("idempotency check", err)
	}
	if done {
		s.Logger.Info("Ledger side effect already applied",
			zap.String("order_id", order.ID),
			zap.String("op", string(op)),
			zap.Int64("amount", amount),
		)
		return OutcomeDuplicate, nil
	}
	if _, err := s.applyDelta(ctx, userID, email, op, amount, order.ID); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeApplied, nil
}
