package db

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/AlexeySalamakhin/storefront/cmd/storefront/models"
)

type OrderRepoPG struct {
	db *DB
}

func NewOrderRepoPG(db *DB) *OrderRepoPG {
	return &OrderRepoPG{db: db}
}

const orderColumns = `id, customer_id, customer_email, status, total, points_redeemed, points_discount, created_at, updated_at`

func (r *OrderRepoPG) CreateOrder(ctx context.Context, o *models.Order) error {
	ts := now()
	o.CreatedAt, o.UpdatedAt = ts, ts
	var redeemed sql.NullInt64
	if o.PointsRedeemed != nil {
		redeemed = sql.NullInt64{Int64: *o.PointsRedeemed, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.CustomerID, o.CustomerEmail, string(o.Status), o.Total.String(), redeemed, o.PointsDiscount.String(), o.CreatedAt, o.UpdatedAt)
	return err
}

// GetOrder returns sql.ErrNoRows when the order does not exist.
func (r *OrderRepoPG) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
}

func (r *OrderRepoPG) ListOrdersByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateOrderStatus writes status and returns the order as updated together
// with the status it had before. The read and the write share a transaction
// (row-locked on postgres) so concurrent transitions observe each other.
func (r *OrderRepoPG) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (models.OrderStatus, *models.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, err
	}
	defer tx.Rollback()

	lock := ""
	if r.db.Dialect == DialectPostgres {
		lock = " FOR UPDATE"
	}
	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`+lock, id))
	if err != nil {
		return "", nil, err
	}
	prev := order.Status

	ts := now()
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status=$1, updated_at=$2 WHERE id=$3`, string(status), ts, id); err != nil {
		return "", nil, err
	}
	if err := tx.Commit(); err != nil {
		return "", nil, err
	}
	order.Status = status
	order.UpdatedAt = ts
	return prev, order, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		o        models.Order
		status   string
		redeemed sql.NullInt64
		total    decimal.Decimal
		discount decimal.Decimal
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerEmail, &status, &total, &redeemed, &discount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	o.Total = total
	o.PointsDiscount = discount
	if redeemed.Valid {
		v := redeemed.Int64
		o.PointsRedeemed = &v
	}
	return &o, nil
}
