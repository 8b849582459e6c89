package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"milletsmon/pkg/metrics"
)

var ErrReportNotFound = errors.New("report not found")

// DB pgxpool.Pool 与 pgx.Tx 都满足
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    id           UUID PRIMARY KEY,
    title        TEXT NOT NULL,
    filter       JSONB NOT NULL,
    rows         JSONB NOT NULL,
    totals       JSONB NOT NULL,
    generated_by TEXT NOT NULL,
    generated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_generated_at ON reports (generated_at DESC);
`

type Repository struct {
	db     DB
	logger *zap.Logger
}

func NewRepository(db DB, logger *zap.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// EnsureSchema 启动时建表
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure reports schema: %w", err)
	}
	return nil
}

// Save 分配 id 并写入；rows/totals/filter 以 JSONB 保存
func (r *Repository) Save(ctx context.Context, rep *Report) error {
	defer observe("insert", time.Now())
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}

	filter, err := json.Marshal(rep.Filter)
	if err != nil {
		return err
	}
	rows, err := json.Marshal(nonNil(rep.Rows))
	if err != nil {
		return err
	}
	totals, err := json.Marshal(nonNil(rep.Totals))
	if err != nil {
		return err
	}

	query := `
        INSERT INTO reports (id, title, filter, rows, totals, generated_by, generated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `
	_, err = r.db.Exec(ctx, query,
		rep.ID,
		rep.Title,
		filter,
		rows,
		totals,
		rep.GeneratedBy,
		rep.GeneratedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert report", zap.Error(err))
		return err
	}

	r.logger.Info("Report saved",
		zap.String("id", rep.ID),
		zap.String("generated_by", rep.GeneratedBy),
	)
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Report, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrReportNotFound
	}
	defer observe("select", time.Now())

	query := `
        SELECT id::text, title, filter, rows, totals, generated_by, generated_at
        FROM reports
        WHERE id = $1
    `
	var (
		rep                  Report
		filter, rows, totals []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rep.ID,
		&rep.Title,
		&filter,
		&rows,
		&totals,
		&rep.GeneratedBy,
		&rep.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(filter, &rep.Filter); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	if err := json.Unmarshal(rows, &rep.Rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if err := json.Unmarshal(totals, &rep.Totals); err != nil {
		return nil, fmt.Errorf("decode totals: %w", err)
	}
	return &rep, nil
}

// List 按生成时间倒序，不含明细行
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Report, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	defer observe("list", time.Now())

	query := `
        SELECT id::text, title, filter, generated_by, generated_at
        FROM reports
        ORDER BY generated_at DESC
        LIMIT $1 OFFSET $2
    `
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		var (
			rep    Report
			filter []byte
		)
		if err := rows.Scan(
			&rep.ID,
			&rep.Title,
			&filter,
			&rep.GeneratedBy,
			&rep.GeneratedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(filter, &rep.Filter); err != nil {
			return nil, fmt.Errorf("decode filter: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func nonNil(rows []Row) []Row {
	if rows == nil {
		return []Row{}
	}
	return rows
}

func observe(operation string, start time.Time) {
	metrics.RecordDBQueryDuration(operation, "reports", time.Since(start))
}
