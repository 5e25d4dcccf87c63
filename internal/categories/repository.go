package categories

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kuma-mall/kuma-admin/internal/platform/db"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error)
	Get(ctx context.Context, id int64) (Category, error)
	Create(ctx context.Context, category Category) (Category, error)
	Update(ctx context.Context, category Category) (Category, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const columns = `id, code, name, description, is_active, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Description, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + columns + ` FROM categories` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
		args = append(args, filters.Limit, shared.Offset(filters.Page, filters.Limit))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		categories = append(categories, c)
	}
	return categories, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Category, error) {
	return scanCategory(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM categories WHERE id = $1`, id))
}

func (r *repository) Create(ctx context.Context, category Category) (Category, error) {
	created, err := scanCategory(r.pool.QueryRow(ctx, `INSERT INTO categories (code, name, description, is_active)
VALUES ($1, $2, $3, $4)
RETURNING `+columns, category.Code, category.Name, category.Description, category.IsActive))
	if db.IsUniqueViolation(err) {
		return Category{}, ErrDuplicateCode
	}
	return created, err
}

func (r *repository) Update(ctx context.Context, category Category) (Category, error) {
	updated, err := scanCategory(r.pool.QueryRow(ctx, `UPDATE categories
SET code = $2, name = $3, description = $4, is_active = $5, updated_at = NOW()
WHERE id = $1
RETURNING `+columns, category.ID, category.Code, category.Name, category.Description, category.IsActive))
	if db.IsUniqueViolation(err) {
		return Category{}, ErrDuplicateCode
	}
	return updated, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "created_at":
		return "created_at " + dir + ", id " + dir
	default:
		return "name " + dir + ", id " + dir
	}
}
