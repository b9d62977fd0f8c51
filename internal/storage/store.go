// Package storage implements the repositories on SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"webbudget/internal/core"
	"webbudget/internal/ports"

	_ "modernc.org/sqlite"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite unit of work.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// DSN builds the connection string. Transactions begin IMMEDIATE so a unit
// of work holds the database write lock from its first statement.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// Open creates the database directory, runs migrations and opens the store.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", DSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite store opened", "path", dbPath)
	return NewWithDB(db), nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Within runs fn in a transaction, committing only when fn succeeds.
func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, r ports.Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, s.repos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) repos(q queryer) ports.Repos {
	return ports.Repos{
		CostCenters:    costCenterRepo{q},
		Classes:        classRepo{q},
		Movements:      movementRepo{q},
		Apportionments: apportionmentRepo{q},
		FixedMovements: fixedMovementRepo{q},
		Launches:       launchRepo{q},
		Payments:       paymentRepo{q},
		Wallets:        walletRepo{q},
		Balances:       balanceRepo{q, s.now},
		Cards:          cardRepo{q},
		CardInvoices:   cardInvoiceRepo{q},
		Periods:        periodRepo{q},
		Outbox:         outboxRepo{q, s.now},
	}
}

func notFound(entity string, ref any) error {
	return core.NewConflict(core.NotFound, fmt.Sprintf("%s %v", entity, ref))
}

// one maps sql.ErrNoRows to a NotFound conflict.
func one(err error, entity string, ref any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(entity, ref)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}

// requireRow reports NotFound when an update touched nothing.
func requireRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

func nullID(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

// pageClause renders ORDER BY / LIMIT / OFFSET for a normalized query. Only
// whitelisted columns are sortable.
func pageClause(q core.PageQuery, sortable map[string]string) string {
	col, ok := sortable[q.SortField]
	if !ok {
		col = "id"
	}
	dir := "ASC"
	if q.SortDirection == core.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s LIMIT %d OFFSET %d", col, dir, q.Limit, q.Offset)
}

func likePattern(filter string) string {
	return "%" + strings.ToLower(strings.TrimSpace(filter)) + "%"
}

func count(ctx context.Context, q queryer, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

type nullInt64 = sql.NullInt64

type scanner interface {
	Scan(dest ...any) error
}

func queryAll[T any](ctx context.Context, q queryer, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// listPage runs the count and the bounded select for a paginated listing.
// filterCols are matched case-insensitively against q.Filter.
func listPage[T any](ctx context.Context, q queryer, pq core.PageQuery, table, selectSQL string, filterCols []string, sortable map[string]string, scan func(scanner) (T, error), where string, whereArgs ...any) (core.Page[T], error) {
	pq = pq.Normalize()
	var conds []string
	args := append([]any{}, whereArgs...)
	if where != "" {
		conds = append(conds, where)
	}
	if strings.TrimSpace(pq.Filter) != "" && len(filterCols) > 0 {
		var ors []string
		for _, c := range filterCols {
			ors = append(ors, "lower("+c+") LIKE ?")
			args = append(args, likePattern(pq.Filter))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}
	clause := ""
	if len(conds) > 0 {
		clause = " WHERE " + strings.Join(conds, " AND ")
	}

	total, err := count(ctx, q, "SELECT COUNT(*) FROM "+table+clause, args...)
	if err != nil {
		return core.Page[T]{}, err
	}
	items, err := queryAll(ctx, q, scan, selectSQL+clause+pageClause(pq, sortable), args...)
	if err != nil {
		return core.Page[T]{}, err
	}
	if items == nil {
		items = []T{}
	}
	return core.Page[T]{Items: items, Total: total}, nil
}
