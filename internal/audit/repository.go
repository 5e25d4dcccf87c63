package audit

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error)
}

// PGRepository is the Postgres implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineSelect = `SELECT a.id, a.occurred_at, a.actor_id, COALESCE(u.email, ''), a.action, a.entity, a.entity_id, a.meta
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id
WHERE 1=1`

// Window returns rows newest first starting at offset.
func (r *PGRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	query, args := timelineQuery(filters)
	args = append(args, limit, offset)
	query += " ORDER BY a.occurred_at DESC, a.id DESC LIMIT $" + strconv.Itoa(len(args)-1) + " OFFSET $" + strconv.Itoa(len(args))
	return r.query(ctx, query, args)
}

// All returns every matching row up to limit.
func (r *PGRepository) All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error) {
	query, args := timelineQuery(filters)
	args = append(args, limit)
	query += " ORDER BY a.occurred_at DESC, a.id DESC LIMIT $" + strconv.Itoa(len(args))
	return r.query(ctx, query, args)
}

func (r *PGRepository) query(ctx context.Context, query string, args []any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var (
			out   TimelineRow
			actor pgtype.Int8
			meta  []byte
		)
		if err := row.Scan(&out.ID, &out.At, &actor, &out.ActorEmail, &out.Action, &out.Entity, &out.EntityID, &meta); err != nil {
			return TimelineRow{}, err
		}
		if actor.Valid {
			id := actor.Int64
			out.ActorID = &id
		}
		if len(meta) > 0 && string(meta) != "{}" {
			out.Meta = meta
		}
		return out, nil
	})
}

func timelineQuery(filters TimelineFilters) (string, []any) {
	var sb strings.Builder
	sb.WriteString(timelineSelect)
	args := make([]any, 0, 8)
	add := func(clause string, value any) {
		args = append(args, value)
		sb.WriteString(" AND ")
		sb.WriteString(strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if !filters.From.IsZero() {
		add("a.occurred_at >= ?", filters.From)
	}
	if !filters.To.IsZero() {
		add("a.occurred_at < ?", filters.To)
	}
	if filters.ActorID > 0 {
		add("a.actor_id = ?", filters.ActorID)
	}
	if filters.Entity != "" {
		add("a.entity = ?", filters.Entity)
	}
	if filters.EntityID != "" {
		add("a.entity_id = ?", filters.EntityID)
	}
	if filters.Action != "" {
		add("a.action LIKE ?", filters.Action+"%")
	}
	return sb.String(), args
}
