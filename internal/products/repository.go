package products

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
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const selectProducts = `SELECT p.id, p.sku, p.name, p.description, p.category_id, COALESCE(c.name, ''),
	p.price, p.stock_quantity, p.is_active, p.created_at, p.updated_at
FROM products p
LEFT JOIN categories c ON c.id = p.category_id`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.CategoryID, &p.CategoryName,
		&p.Price, &p.StockQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.CategoryID != nil {
		argCount++
		where += ` AND p.category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filters.CategoryID)
	}
	if filters.Search != "" {
		argCount++
		where += ` AND (p.name ILIKE $` + strconv.Itoa(argCount) + ` OR p.sku ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND p.is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products p`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectProducts + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		query += ` LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
		args = append(args, filters.Limit, shared.Offset(filters.Page, filters.Limit))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	return scanProduct(r.db.QueryRow(ctx, selectProducts+` WHERE p.id = $1`, id))
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO products (sku, name, description, category_id, price, stock_quantity, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		product.SKU, product.Name, product.Description, product.CategoryID, product.Price,
		product.StockQuantity, product.IsActive,
	).Scan(&id)
	if err := mapWriteError(err); err != nil {
		return Product{}, err
	}
	return r.Get(ctx, id)
}

func (r *repository) Update(ctx context.Context, product Product) (Product, error) {
	tag, err := r.db.Exec(ctx, `UPDATE products
SET sku = $2, name = $3, description = $4, category_id = $5, price = $6,
	stock_quantity = $7, is_active = $8, updated_at = NOW()
WHERE id = $1`,
		product.ID, product.SKU, product.Name, product.Description, product.CategoryID, product.Price,
		product.StockQuantity, product.IsActive,
	)
	if err := mapWriteError(err); err != nil {
		return Product{}, err
	}
	if tag.RowsAffected() == 0 {
		return Product{}, ErrNotFound
	}
	return r.Get(ctx, product.ID)
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteError(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return ErrDuplicateSKU
	case db.IsForeignKeyViolation(err):
		return ErrCategoryNotFound
	default:
		return err
	}
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == shared.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "p.sku " + dir
	case "price":
		return "p.price " + dir + ", p.id " + dir
	case "stock":
		return "p.stock_quantity " + dir + ", p.id " + dir
	case "created_at":
		return "p.created_at " + dir + ", p.id " + dir
	default:
		return "p.name " + dir + ", p.id " + dir
	}
}
