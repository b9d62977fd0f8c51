package storage

import (
	"context"
	"fmt"
	"time"

	"webbudget/internal/core"
)

const fixedMovementSelect = `SELECT id, identification, description, value_cents, quotes, undetermined, auto_launch,
	start_date, status FROM fixed_movements`

type fixedMovementRepo struct{ q queryer }

func scanFixedMovement(s scanner) (core.FixedMovement, error) {
	var (
		f      core.FixedMovement
		quotes nullInt64
		start  string
	)
	err := s.Scan(&f.ID, &f.Identification, &f.Description, &f.Value.Cents, &quotes, &f.Undetermined,
		&f.AutoLaunch, &start, &f.Status)
	f.Quotes = intPtr(quotes)
	f.StartDate = parseDate(start)
	return f, err
}

func (r fixedMovementRepo) Save(ctx context.Context, f *core.FixedMovement) error {
	if f.ID == 0 {
		res, err := r.q.ExecContext(ctx, `INSERT INTO fixed_movements (identification, description, value_cents, quotes,
			undetermined, auto_launch, start_date, status) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.Identification, f.Description, f.Value.Cents, nullInt(f.Quotes), f.Undetermined, f.AutoLaunch,
			f.StartDate.String(), string(f.Status))
		if err != nil {
			return fmt.Errorf("insert fixed movement: %w", err)
		}
		f.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE fixed_movements SET identification = ?, description = ?, value_cents = ?,
		quotes = ?, undetermined = ?, auto_launch = ?, start_date = ?, status = ? WHERE id = ?`,
		f.Identification, f.Description, f.Value.Cents, nullInt(f.Quotes), f.Undetermined, f.AutoLaunch,
		f.StartDate.String(), string(f.Status), f.ID)
	if err != nil {
		return fmt.Errorf("update fixed movement: %w", err)
	}
	return requireRow(res, "fixed movement", f.ID)
}

func (r fixedMovementRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM fixed_movements WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete fixed movement: %w", err)
	}
	return nil
}

func (r fixedMovementRepo) FindByID(ctx context.Context, id int64) (core.FixedMovement, error) {
	f, err := scanFixedMovement(r.q.QueryRowContext(ctx, fixedMovementSelect+` WHERE id = ?`, id))
	return f, one(err, "fixed movement", id)
}

func (r fixedMovementRepo) List(ctx context.Context, q core.PageQuery) (core.Page[core.FixedMovement], error) {
	return listPage(ctx, r.q, q, "fixed_movements", fixedMovementSelect, []string{"identification", "description"},
		map[string]string{"identification": "identification", "status": "status", "value": "value_cents"},
		scanFixedMovement, "")
}

func (r fixedMovementRepo) ListAutoLaunch(ctx context.Context) ([]core.FixedMovement, error) {
	return queryAll(ctx, r.q, scanFixedMovement,
		fixedMovementSelect+` WHERE auto_launch = 1 AND status = 'ACTIVE' ORDER BY id`)
}

const launchSelect = `SELECT id, code, fixed_movement_id, period_id, movement_id, quote, created_at FROM launches`

type launchRepo struct{ q queryer }

func scanLaunch(s scanner) (core.Launch, error) {
	var (
		l       core.Launch
		quote   nullInt64
		created string
	)
	err := s.Scan(&l.ID, &l.Code, &l.FixedMovementID, &l.PeriodID, &l.MovementID, &quote, &created)
	l.Quote = intPtr(quote)
	l.CreatedAt = parseTime(created)
	return l, err
}

func (r launchRepo) Save(ctx context.Context, l *core.Launch) error {
	if l.ID == 0 {
		if l.CreatedAt.IsZero() {
			l.CreatedAt = time.Now().UTC()
		}
		res, err := r.q.ExecContext(ctx, `INSERT INTO launches (code, fixed_movement_id, period_id, movement_id, quote,
			created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			l.Code, l.FixedMovementID, l.PeriodID, l.MovementID, nullInt(l.Quote), formatTime(l.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert launch: %w", err)
		}
		l.ID, err = res.LastInsertId()
		return err
	}
	res, err := r.q.ExecContext(ctx, `UPDATE launches SET code = ?, fixed_movement_id = ?, period_id = ?, movement_id = ?,
		quote = ? WHERE id = ?`, l.Code, l.FixedMovementID, l.PeriodID, l.MovementID, nullInt(l.Quote), l.ID)
	if err != nil {
		return fmt.Errorf("update launch: %w", err)
	}
	return requireRow(res, "launch", l.ID)
}

func (r launchRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM launches WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete launch: %w", err)
	}
	return nil
}

func (r launchRepo) CountByFixedMovement(ctx context.Context, fixedMovementID int64) (int, error) {
	return count(ctx, r.q, `SELECT COUNT(*) FROM launches WHERE fixed_movement_id = ?`, fixedMovementID)
}

func (r launchRepo) MaxQuote(ctx context.Context, fixedMovementID int64) (int, error) {
	return count(ctx, r.q, `SELECT COALESCE(MAX(quote), 0) FROM launches WHERE fixed_movement_id = ?`, fixedMovementID)
}

func (r launchRepo) ListByFixedMovement(ctx context.Context, fixedMovementID int64, q core.PageQuery) (core.Page[core.Launch], error) {
	return listPage(ctx, r.q, q, "launches", launchSelect, []string{"code"},
		map[string]string{"quote": "quote", "created_at": "created_at"},
		scanLaunch, "fixed_movement_id = ?", fixedMovementID)
}

func (r launchRepo) FindByMovement(ctx context.Context, movementID int64) (core.Launch, error) {
	l, err := scanLaunch(r.q.QueryRowContext(ctx, launchSelect+` WHERE movement_id = ?`, movementID))
	return l, one(err, "launch for movement", movementID)
}

func (r launchRepo) ExistsForPeriod(ctx context.Context, fixedMovementID, periodID int64) (bool, error) {
	n, err := count(ctx, r.q, `SELECT COUNT(*) FROM launches WHERE fixed_movement_id = ? AND period_id = ?`,
		fixedMovementID, periodID)
	return n > 0, err
}
