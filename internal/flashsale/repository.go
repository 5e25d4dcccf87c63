package flashsale

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/kuma-mall/kuma-admin/internal/platform/db"
	"github.com/kuma-mall/kuma-admin/internal/shared"
)

const purchaseModule = "flashsale.purchase"

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]FlashSale, int, error)
	Get(ctx context.Context, id int64) (FlashSale, error)
	GetBySKU(ctx context.Context, sku string) (FlashSale, error)
	ProductExists(ctx context.Context, sku string) (bool, error)
	Insert(ctx context.Context, sale FlashSale) (FlashSale, error)
	Save(ctx context.Context, sale FlashSale, expectedUpdatedAt time.Time) (FlashSale, error)
	Delete(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error)
	ListAll(ctx context.Context) ([]FlashSale, error)
	ListSoldOutCandidates(ctx context.Context) ([]FlashSale, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the purchase operations that share one transaction.
type TxRepository interface {
	ClaimIdempotencyKey(ctx context.Context, key string) error
	DecrementForPurchase(ctx context.Context, id int64, quantity int, now time.Time) (FlashSale, error)
	DecrementProductStock(ctx context.Context, sku string, quantity int, at time.Time) error
}

// Repository persists flash sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	idem *shared.IdempotencyStore
}

// NewRepository constructs Repository. idem may be nil to disable purchase
// idempotency keys.
func NewRepository(pool *pgxpool.Pool, idem *shared.IdempotencyStore) *Repository {
	return &Repository{pool: pool, idem: idem}
}

const selectColumns = `SELECT fs.id, fs.sku, COALESCE(p.name, ''), fs.start_at, fs.end_at,
	fs.origin_price, fs.sale_price, fs.discount_percent, fs.quantity, fs.status,
	fs.created_at, fs.updated_at
FROM flash_sales fs
LEFT JOIN products p ON p.sku = fs.sku`

func scanSale(row pgx.Row) (FlashSale, error) {
	var (
		sale   FlashSale
		status string
	)
	err := row.Scan(
		&sale.ID, &sale.SKU, &sale.ProductName, &sale.StartAt, &sale.EndAt,
		&sale.OriginPrice, &sale.SalePrice, &sale.DiscountPercent, &sale.Quantity, &status,
		&sale.CreatedAt, &sale.UpdatedAt,
	)
	if err != nil {
		return FlashSale{}, err
	}
	sale.Status = Status(status)
	return sale, nil
}

func collectSales(rows pgx.Rows) ([]FlashSale, error) {
	defer rows.Close()
	var sales []FlashSale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// List returns one page of sales plus the total matching count. The count and
// page queries run concurrently on separate pool connections.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]FlashSale, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if search := strings.TrimSpace(filter.Search); search != "" {
		argCount++
		where += ` AND (fs.sku ILIKE $` + strconv.Itoa(argCount) + ` OR p.name ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+search+"%")
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		argCount++
		where += ` AND fs.status = ANY($` + strconv.Itoa(argCount) + `)`
		args = append(args, statuses)
	}

	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	pageArgs := append(append([]any{}, args...), limit, shared.Offset(page, limit))
	pageQuery := selectColumns + where + ` ORDER BY fs.start_at DESC, fs.id DESC LIMIT $` +
		strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)

	var (
		total int
		sales []FlashSale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM flash_sales fs LEFT JOIN products p ON p.sku = fs.sku`+where, args...).Scan(&total)
	})
	g.Go(func() error {
		rows, err := r.pool.Query(gctx, pageQuery, pageArgs...)
		if err != nil {
			return err
		}
		sales, err = collectSales(rows)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("list flash sales: %w", err)
	}
	return sales, total, nil
}

// Get fetches a sale by id.
func (r *Repository) Get(ctx context.Context, id int64) (FlashSale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, selectColumns+` WHERE fs.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return FlashSale{}, ErrNotFound
	}
	return sale, err
}

// GetBySKU fetches the sale row for a SKU.
func (r *Repository) GetBySKU(ctx context.Context, sku string) (FlashSale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, selectColumns+` WHERE fs.sku = $1`, sku))
	if errors.Is(err, pgx.ErrNoRows) {
		return FlashSale{}, ErrNotFound
	}
	return sale, err
}

// ProductExists reports whether a product carries sku.
func (r *Repository) ProductExists(ctx context.Context, sku string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE sku = $1)`, sku).Scan(&exists)
	return exists, err
}

// Insert stores a new sale.
func (r *Repository) Insert(ctx context.Context, sale FlashSale) (FlashSale, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO flash_sales
	(sku, start_at, end_at, origin_price, sale_price, discount_percent, quantity, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
RETURNING id`,
		sale.SKU, sale.StartAt, sale.EndAt, sale.OriginPrice, sale.SalePrice, sale.DiscountPercent,
		sale.Quantity, string(sale.Status), sale.CreatedAt,
	).Scan(&sale.ID)
	switch {
	case db.IsUniqueViolation(err):
		return FlashSale{}, ErrConflict
	case db.IsForeignKeyViolation(err):
		return FlashSale{}, ErrProductNotFound
	case err != nil:
		return FlashSale{}, err
	}
	return sale, nil
}

// Save overwrites the mutable columns of a sale, provided nobody changed the
// row since it was read at expectedUpdatedAt.
func (r *Repository) Save(ctx context.Context, sale FlashSale, expectedUpdatedAt time.Time) (FlashSale, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE flash_sales
SET start_at = $2, end_at = $3, origin_price = $4, sale_price = $5, discount_percent = $6,
	quantity = $7, status = $8, created_at = $9, updated_at = $10
WHERE id = $1 AND updated_at = $11`,
		sale.ID, sale.StartAt, sale.EndAt, sale.OriginPrice, sale.SalePrice, sale.DiscountPercent,
		sale.Quantity, string(sale.Status), sale.CreatedAt, sale.UpdatedAt, expectedUpdatedAt,
	)
	if err != nil {
		return FlashSale{}, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, sale.ID); err != nil {
			return FlashSale{}, err
		}
		return FlashSale{}, ErrConcurrentUpdate
	}
	return sale, nil
}

// Delete removes a sale.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM flash_sales WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves a sale from one status to another. It reports false when
// the stored status no longer equals from.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE flash_sales SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListAll returns every sale, oldest first.
func (r *Repository) ListAll(ctx context.Context) ([]FlashSale, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` ORDER BY fs.id`)
	if err != nil {
		return nil, err
	}
	return collectSales(rows)
}

// ListSoldOutCandidates returns sales with no quantity left that are not yet
// marked sold_out.
func (r *Repository) ListSoldOutCandidates(ctx context.Context) ([]FlashSale, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` WHERE fs.quantity <= 0 AND fs.status <> $1 ORDER BY fs.id`, string(StatusSoldOut))
	if err != nil {
		return nil, err
	}
	return collectSales(rows)
}

// WithTx executes the callback inside a read-committed transaction. The
// conditional decrement row-locks the sale it touches.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, idem: r.idem})
	})
}

type txRepo struct {
	tx   pgx.Tx
	idem *shared.IdempotencyStore
}

func (t *txRepo) ClaimIdempotencyKey(ctx context.Context, key string) error {
	if t.idem == nil || key == "" {
		return nil
	}
	return t.idem.Claim(ctx, t.tx, key, purchaseModule)
}

// DecrementForPurchase subtracts quantity only while the sale is active, inside
// its window and holds enough stock. It returns errNotPurchasable otherwise.
func (t *txRepo) DecrementForPurchase(ctx context.Context, id int64, quantity int, now time.Time) (FlashSale, error) {
	var (
		sale   FlashSale
		status string
	)
	err := t.tx.QueryRow(ctx, `UPDATE flash_sales
SET quantity = quantity - $2,
	status = CASE WHEN quantity - $2 <= 0 THEN $4 ELSE status END,
	updated_at = $3
WHERE id = $1 AND status = $5 AND quantity >= $2 AND start_at <= $3 AND end_at >= $3
RETURNING id, sku, start_at, end_at, origin_price, sale_price, discount_percent, quantity, status, created_at, updated_at`,
		id, quantity, now, string(StatusSoldOut), string(StatusActive),
	).Scan(
		&sale.ID, &sale.SKU, &sale.StartAt, &sale.EndAt, &sale.OriginPrice, &sale.SalePrice,
		&sale.DiscountPercent, &sale.Quantity, &status, &sale.CreatedAt, &sale.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return FlashSale{}, errNotPurchasable
	}
	if err != nil {
		return FlashSale{}, err
	}
	sale.Status = Status(status)
	return sale, nil
}

func (t *txRepo) DecrementProductStock(ctx context.Context, sku string, quantity int, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = $3 WHERE sku = $1`,
		sku, quantity, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
