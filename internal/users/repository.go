package users

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kuma-mall/kuma-admin/internal/platform/db"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filters shared.ListFilters) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	SetActive(ctx context.Context, id int64, active bool) (User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return user, err
}

// ListUsers returns one page of users ordered by id.
func (r *Repository) ListUsers(ctx context.Context, filters shared.ListFilters) ([]User, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0
	if filters.Search != "" {
		argCount++
		where += ` AND (email ILIKE $` + strconv.Itoa(argCount) + ` OR name ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY id LIMIT $` +
		strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
	args = append(args, filters.Limit, shared.Offset(filters.Page, filters.Limit))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetUser fetches one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// CreateUser inserts an active user.
func (r *Repository) CreateUser(ctx context.Context, user User, passwordHash string) (User, error) {
	created, err := scanUser(r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, is_active)
VALUES ($1, $2, $3, TRUE)
RETURNING `+userColumns, user.Email, user.Name, passwordHash))
	if db.IsUniqueViolation(err) {
		return User{}, ErrDuplicateEmail
	}
	return created, err
}

// SetActive toggles the account.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1
RETURNING `+userColumns, id, active))
}

// UpdatePassword stores a new hash.
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
