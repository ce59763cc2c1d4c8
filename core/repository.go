package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by repositories when a record does not exist.
var ErrNotFound = errors.New("record not found")

// UserRecord is the credential-store projection of a principal.
// PasswordHash is opaque and never serialized in responses.
type UserRecord struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Roles        []Role
	CreatedAt    time.Time
}

// UserListItem is a projection for admin user listing (no password hash).
type UserListItem struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// UserRepository defines persistence operations for principals.
// Lookups must be safe under concurrent reads; writes are atomic with
// respect to concurrent reads of the same username.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*UserRecord, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u UserRecord) (int64, error)
	UpdateProfile(ctx context.Context, username, firstName, lastName string) error
	DeleteByUsername(ctx context.Context, username string) error
	HasAdmin(ctx context.Context) (bool, error)
	List(ctx context.Context, page, perPage int) ([]UserListItem, int, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

func (r *PgUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	const q = `SELECT id, username, email, password_hash, first_name, last_name, roles, created_at
	           FROM users WHERE username=$1`
	var u UserRecord
	var roleNames []string
	err := r.db.QueryRow(ctx, q, username).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &roleNames, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	roles, err := ParseRoles(roleNames)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return &u, nil
}

func (r *PgUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE username=$1 LIMIT 1`, username)
}

func (r *PgUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE email=$1 LIMIT 1`, email)
}

func (r *PgUserRepository) exists(ctx context.Context, q string, arg string) (bool, error) {
	var one int
	if err := r.db.QueryRow(ctx, q, arg).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PgUserRepository) Create(ctx context.Context, u UserRecord) (int64, error) {
	const q = `INSERT INTO users (username, email, password_hash, first_name, last_name, roles)
	           VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, q,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, RoleNames(u.Roles)).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, username, firstName, lastName string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET first_name=$2, last_name=$3 WHERE username=$1`, username, firstName, lastName)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) DeleteByUsername(ctx context.Context, username string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE username=$1`, username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) HasAdmin(ctx context.Context) (bool, error) {
	return r.exists(ctx, `SELECT 1 FROM users WHERE $1 = ANY(roles) LIMIT 1`, string(RoleAdmin))
}

// List returns paginated users without password hash.
func (r *PgUserRepository) List(ctx context.Context, page, perPage int) ([]UserListItem, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, username, email, roles, created_at FROM users ORDER BY id LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]UserListItem, 0, perPage)
	for rows.Next() {
		var u UserListItem
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Roles, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}
