package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderItem is one line of an order.
type OrderItem struct {
	PartID   int64 `json:"part_id"`
	Quantity int32 `json:"quantity"`
}

// OrderRecord mirrors the orders table plus its line items.
type OrderRecord struct {
	ID         int64       `json:"id"`
	Username   string      `json:"username"`
	TotalPrice float64     `json:"total_price"`
	Items      []OrderItem `json:"items"`
	CreatedAt  time.Time   `json:"created_at"`
}

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, username string, items []OrderItem) (*OrderRecord, error)
	ListByUsername(ctx context.Context, username string) ([]OrderRecord, error)
	ListAll(ctx context.Context) ([]OrderRecord, error)
}

// PgOrderRepository implements OrderRepository using pgxpool.
type PgOrderRepository struct {
	db *pgxpool.Pool
}

func NewPgOrderRepository(db *pgxpool.Pool) *PgOrderRepository {
	return &PgOrderRepository{db: db}
}

// Create inserts the order and its items in one transaction. The total is
// computed from current part prices and stock is decremented; insufficient
// stock aborts the whole order.
func (r *PgOrderRepository) Create(ctx context.Context, username string, items []OrderItem) (*OrderRecord, error) {
	if len(items) == 0 {
		return nil, errors.New("order has no items")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var userID int64
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE username=$1`, username).Scan(&userID); err != nil {
		return nil, err
	}

	var total float64
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, errors.New("invalid quantity")
		}
		var price float64
		err := tx.QueryRow(ctx,
			`UPDATE car_parts SET stock = stock - $2 WHERE id=$1 AND stock >= $2 RETURNING price`,
			it.PartID, it.Quantity).Scan(&price)
		if err != nil {
			return nil, errors.New("part unavailable")
		}
		total += price * float64(it.Quantity)
	}

	order := &OrderRecord{Username: username, TotalPrice: total, Items: items}
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, total_price) VALUES ($1,$2) RETURNING id, created_at`,
		userID, total).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if _, err := tx.Exec(ctx,
			`INSERT INTO order_parts (order_id, part_id, quantity) VALUES ($1,$2,$3)`,
			order.ID, it.PartID, it.Quantity); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *PgOrderRepository) ListByUsername(ctx context.Context, username string) ([]OrderRecord, error) {
	const q = `SELECT o.id, u.username, o.total_price, o.created_at
	           FROM orders o JOIN users u ON u.id = o.user_id
	           WHERE u.username=$1 ORDER BY o.id`
	return r.list(ctx, q, username)
}

func (r *PgOrderRepository) ListAll(ctx context.Context) ([]OrderRecord, error) {
	const q = `SELECT o.id, u.username, o.total_price, o.created_at
	           FROM orders o JOIN users u ON u.id = o.user_id ORDER BY o.id`
	return r.list(ctx, q)
}

func (r *PgOrderRepository) list(ctx context.Context, q string, args ...interface{}) ([]OrderRecord, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.ID, &o.Username, &o.TotalPrice, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		items, err := r.listItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *PgOrderRepository) listItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT part_id, quantity FROM order_parts WHERE order_id=$1 ORDER BY part_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.PartID, &it.Quantity); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
