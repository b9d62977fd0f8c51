package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"webbudget/internal/core"
)

const periodSelect = `SELECT id, identification, start_date, end_date, closed FROM financial_periods`

type periodRepo struct{ q queryer }

func scanPeriod(s scanner) (core.FinancialPeriod, error) {
	var (
		p          core.FinancialPeriod
		start, end string
	)
	err := s.Scan(&p.ID, &p.Identification, &start, &end, &p.Closed)
	p.Start = parseDate(start)
	p.End = parseDate(end)
	return p, err
}

func (r periodRepo) Save(ctx context.Context, p *core.FinancialPeriod) error {
	if p.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO financial_periods (identification, start_date, end_date, closed)
			VALUES (?, ?, ?, ?)`, p.Identification, p.Start.String(), p.End.String(), p.Closed)
		if err != nil {
			return fmt.Errorf("insert financial period: %w", err)
		}
		p.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE financial_periods SET identification = ?, start_date = ?, end_date = ?,
		closed = ? WHERE id = ?`, p.Identification, p.Start.String(), p.End.String(), p.Closed, p.ID)
	if err != nil {
		return fmt.Errorf("update financial period: %w", err)
	}
	return requireRow(res, "financial period", p.ID)
}

func (r periodRepo) FindByID(ctx context.Context, id int64) (core.FinancialPeriod, error) {
	p, err := scanPeriod(r.q.QueryRowContext(ctx, periodSelect+` WHERE id = ?`, id))
	return p, one(err, "financial period", id)
}

func (r periodRepo) List(ctx context.Context, q core.PageQuery) (core.Page[core.FinancialPeriod], error) {
	return listPage(ctx, r.q, q, "financial_periods", periodSelect, []string{"identification"},
		map[string]string{"start": "start_date", "identification": "identification"}, scanPeriod, "")
}

func (r periodRepo) FindActive(ctx context.Context) (core.FinancialPeriod, error) {
	p, err := scanPeriod(r.q.QueryRowContext(ctx,
		periodSelect+` WHERE closed = 0 ORDER BY start_date DESC, id DESC LIMIT 1`))
	return p, one(err, "financial period", "active")
}

func (r periodRepo) FindByIdentification(ctx context.Context, identification string) (core.FinancialPeriod, error) {
	p, err := scanPeriod(r.q.QueryRowContext(ctx, periodSelect+` WHERE identification = ?`, identification))
	return p, one(err, "financial period", identification)
}

const outboxSelect = `SELECT id, name, payload, attempts, last_error, created_at, published_at FROM outbox`

type outboxRepo struct {
	q   queryer
	now func() time.Time
}

func scanOutbox(s scanner) (core.OutboxEvent, error) {
	var (
		e         core.OutboxEvent
		created   string
		published sql.NullString
	)
	err := s.Scan(&e.ID, &e.Name, &e.Payload, &e.Attempts, &e.LastError, &created, &published)
	e.CreatedAt = parseTime(created)
	if published.Valid {
		t := parseTime(published.String)
		e.PublishedAt = &t
	}
	return e, err
}

func (r outboxRepo) Append(ctx context.Context, e *core.OutboxEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	res, err := r.q.ExecContext(ctx, `INSERT INTO outbox (name, payload, created_at) VALUES (?, ?, ?)`,
		e.Name, e.Payload, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (r outboxRepo) Pending(ctx context.Context, limit, maxAttempts int) ([]core.OutboxEvent, error) {
	return queryAll(ctx, r.q, scanOutbox,
		outboxSelect+` WHERE published_at IS NULL AND attempts < ? ORDER BY id LIMIT ?`, maxAttempts, limit)
}

func (r outboxRepo) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	res, err := r.q.ExecContext(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	return requireRow(res, "outbox event", id)
}

func (r outboxRepo) MarkFailed(ctx context.Context, id int64, reason string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?`, reason, id)
	if err != nil {
		return fmt.Errorf("mark outbox event failed: %w", err)
	}
	return requireRow(res, "outbox event", id)
}

func (r outboxRepo) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("delete published outbox events: %w", err)
	}
	return res.RowsAffected()
}
