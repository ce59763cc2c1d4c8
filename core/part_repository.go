package core

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PartRecord mirrors the car_parts table.
type PartRecord struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Stock      int32   `json:"stock"`
	SupplierID int64   `json:"supplier_id"`
}

// PartRepository defines persistence operations for car parts.
type PartRepository interface {
	List(ctx context.Context) ([]PartRecord, error)
	Create(ctx context.Context, p PartRecord) (int64, error)
	Update(ctx context.Context, p PartRecord) error
	Delete(ctx context.Context, id int64) error
}

// PgPartRepository implements PartRepository using pgxpool.
type PgPartRepository struct {
	db *pgxpool.Pool
}

func NewPgPartRepository(db *pgxpool.Pool) *PgPartRepository {
	return &PgPartRepository{db: db}
}

func (r *PgPartRepository) List(ctx context.Context) ([]PartRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, price, stock, supplier_id FROM car_parts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PartRecord
	for rows.Next() {
		var p PartRecord
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.SupplierID); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *PgPartRepository) Create(ctx context.Context, p PartRecord) (int64, error) {
	const q = `INSERT INTO car_parts (name, price, stock, supplier_id)
	           VALUES ($1,$2,$3,$4) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, p.Name, p.Price, p.Stock, p.SupplierID).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgPartRepository) Update(ctx context.Context, p PartRecord) error {
	const q = `UPDATE car_parts SET name=$2, price=$3, stock=$4 WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, p.ID, p.Name, p.Price, p.Stock)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgPartRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM car_parts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
