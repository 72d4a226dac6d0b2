package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Op is a ledger operation kind.
type Op string

const (
	OpEarn   Op = "earn"
	OpRedeem Op = "redeem"
	OpRefund Op = "refund"
)

func (o Op) Valid() bool {
	switch o {
	case OpEarn, OpRedeem, OpRefund:
		return true
	}
	return false
}

// Sign is +1 for credits and -1 for debits.
func (o Op) Sign() int64 {
	if o == OpRedeem {
		return -1
	}
	return 1
}

type OrderStatus string

const (
	StatusAwaitingPayment OrderStatus = "AwaitingPayment"
	StatusProcessing      OrderStatus = "Processing"
	StatusShipped         OrderStatus = "Shipped"
	StatusCompleted       OrderStatus = "Completed"
	StatusCancelled       OrderStatus = "Cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusProcessing, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Balance struct {
	UserID    string    `db:"user_id" json:"userId"`
	Email     string    `db:"email" json:"email"`
	Points    int64     `db:"points" json:"points"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type HistoryEntry struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"userId"`
	Email        string    `db:"email" json:"email"`
	Op           Op        `db:"op" json:"op"`
	Amount       int64     `db:"amount" json:"amount"`
	PointsBefore int64     `db:"points_before" json:"pointsBefore"`
	PointsAfter  int64     `db:"points_after" json:"pointsAfter"`
	OrderID      string    `db:"order_id" json:"orderId,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type Order struct {
	ID             string          `db:"id" json:"id"`
	CustomerID     string          `db:"customer_id" json:"customerId"`
	CustomerEmail  string          `db:"customer_email" json:"customerEmail"`
	Status         OrderStatus     `db:"status" json:"status"`
	Total          decimal.Decimal `db:"total" json:"total"`
	PointsRedeemed *int64          `db:"points_redeemed" json:"pointsRedeemed,omitempty"`
	PointsDiscount decimal.Decimal `db:"points_discount" json:"pointsDiscount"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updatedAt"`
}

// Identity is the authenticated caller as resolved from the auth token.
type Identity struct {
	UserID string
	Email  string
	Admin  bool
}

// CanTargetOtherUsers reports whether the caller may act on another user's balance.
func (i Identity) CanTargetOtherUsers() bool {
	return i.Admin
}

// LoyaltyRequest keeps Amount as a float so fractional or out-of-range
// values are rejected as invalid amounts rather than malformed JSON.
type LoyaltyRequest struct {
	Op     Op      `json:"op"`
	Amount float64 `json:"amount"`
	Email  string  `json:"email,omitempty"`
}

type PointsResponse struct {
	Points int64 `json:"points"`
}

type HistoryResponse struct {
	History []HistoryEntry `json:"history"`
}

type CapResponse struct {
	MaxRedeemable int64 `json:"maxRedeemable"`
	Balance       int64 `json:"balance"`
}

type CreateOrderRequest struct {
	Total          decimal.Decimal `json:"total"`
	PointsRedeemed *int64          `json:"pointsRedeemed,omitempty"`
	PointsDiscount decimal.Decimal `json:"pointsDiscount"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status"`
}

type OrderStatusResponse struct {
	Order   Order  `json:"order"`
	Loyalty string `json:"loyalty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
