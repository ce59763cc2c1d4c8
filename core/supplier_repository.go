package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SupplierRecord mirrors the suppliers table.
type SupplierRecord struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	City       string `json:"city"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
}

// SupplierRepository defines persistence operations for suppliers.
type SupplierRepository interface {
	List(ctx context.Context) ([]SupplierRecord, error)
	Create(ctx context.Context, s SupplierRecord) (int64, error)
	Update(ctx context.Context, s SupplierRecord) error
	Delete(ctx context.Context, id int64) error
}

// PgSupplierRepository implements SupplierRepository using pgxpool.
type PgSupplierRepository struct {
	db *pgxpool.Pool
}

func NewPgSupplierRepository(db *pgxpool.Pool) *PgSupplierRepository {
	return &PgSupplierRepository{db: db}
}

func (r *PgSupplierRepository) List(ctx context.Context) ([]SupplierRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, email, city, street, postal_code FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SupplierRecord
	for rows.Next() {
		var s SupplierRecord
		if err := rows.Scan(&s.ID, &s.Name, &s.Email, &s.City, &s.Street, &s.PostalCode); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *PgSupplierRepository) Create(ctx context.Context, s SupplierRecord) (int64, error) {
	const q = `INSERT INTO suppliers (name, email, city, street, postal_code)
	           VALUES ($1,$2,$3,$4,$5) RETURNING id`
	var id int64
	if err := r.db.QueryRow(ctx, q, s.Name, s.Email, s.City, s.Street, s.PostalCode).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgSupplierRepository) Update(ctx context.Context, s SupplierRecord) error {
	const q = `UPDATE suppliers SET name=$2, email=$3, city=$4, street=$5, postal_code=$6 WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, s.ID, s.Name, s.Email, s.City, s.Street, s.PostalCode)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgSupplierRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id=$1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
