package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/models"
)

// Outcome reports what a status transition did to the loyalty ledger.
type Outcome string

const (
	OutcomeNone      Outcome = "none"
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

var (
	// One point per 10,000 currency units of order total.
	earnDivisor = decimal.NewFromInt(10000)
	// One redeemed point is worth 100 currency units of discount.
	pointValue = decimal.NewFromInt(DefaultPointValue)
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (models.OrderStatus, *models.Order, error)
}

type OrderLedger interface {
	CreditForOrder(ctx context.Context, order *models.Order, op models.Op, amount int64) (Outcome, error)
}

type OrderService struct {
	OrderRepo OrderRepo
	Ledger    OrderLedger
	Logger    *zap.Logger
}

func NewOrderService(orderRepo OrderRepo, ledger OrderLedger, logger *zap.Logger) *OrderService {
	return &OrderService{OrderRepo: orderRepo, Ledger: ledger, Logger: logger}
}

// PointsEarned is floor(total / 10000).
func PointsEarned(order *models.Order) int64 {
	return order.Total.Div(earnDivisor).Floor().IntPart()
}

// PointsToRefund is the redemption recorded on the order, or the points
// discount converted back to points when no redemption count was stored.
func PointsToRefund(order *models.Order) int64 {
	if order.PointsRedeemed != nil {
		return *order.PointsRedeemed
	}
	return order.PointsDiscount.Div(pointValue).Floor().IntPart()
}

func (s *OrderService) CreateOrder(ctx context.Context, caller models.Identity, req models.CreateOrderRequest) (*models.Order, error) {
	if req.Total.IsNegative() || req.PointsDiscount.IsNegative() {
		return nil, ErrInvalidOrder
	}
	if req.PointsRedeemed != nil && *req.PointsRedeemed < 0 {
		return nil, ErrInvalidOrder
	}
	order := &models.Order{
		ID:             uuid.NewString(),
		CustomerID:     caller.UserID,
		CustomerEmail:  NormalizeEmail(caller.Email),
		Status:         models.StatusAwaitingPayment,
		Total:          req.Total,
		PointsRedeemed: req.PointsRedeemed,
		PointsDiscount: req.PointsDiscount,
	}
	if err := s.OrderRepo.CreateOrder(ctx, order); err != nil {
		return nil, storeErr("create order", err)
	}
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, caller models.Identity, id string) (*models.Order, error) {
	order, err := s.OrderRepo.GetOrder(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, storeErr("get order", err)
	}
	if order.CustomerID != caller.UserID && !caller.Admin {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, caller models.Identity) ([]models.Order, error) {
	orders, err := s.OrderRepo.ListOrdersByCustomer(ctx, caller.UserID)
	if err != nil {
		return nil, storeErr("list orders", err)
	}
	return orders, nil
}

// UpdateStatus applies status unconditionally, then fires the loyalty side
// effect for a crossing into Completed or Cancelled. Once the status is
// written the call succeeds; ledger failures are logged and reported through
// the returned Outcome only.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, Outcome, error) {
	if !status.Valid() {
		return nil, OutcomeNone, ErrInvalidStatus
	}
	prev, order, err := s.OrderRepo.UpdateOrderStatus(ctx, id, status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, OutcomeNone, ErrOrderNotFound
	}
	if err != nil {
		return nil, OutcomeNone, storeErr("update order status", err)
	}

	var (
		op     models.Op
		amount int64
	)
	switch {
	case prev != models.StatusCompleted && status == models.StatusCompleted:
		op, amount = models.OpEarn, PointsEarned(order)
	case prev != models.StatusCancelled && status == models.StatusCancelled:
		op, amount = models.OpRefund, PointsToRefund(order)
	default:
		return order, OutcomeNone, nil
	}

	outcome, err := s.Ledger.CreditForOrder(ctx, order, op, amount)
	if err != nil {
		s.Logger.Error("Не удалось применить начисление баллов по заказу",
			zap.String("order_id", order.ID),
			zap.String("from", string(prev)),
			zap.String("to", string(status)),
			zap.String("op", string(op)),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return order, OutcomeFailed, nil
	}
	return order, outcome, nil
}
