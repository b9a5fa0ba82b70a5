// Package postgres implements the shift engine's storage ports on
// PostgreSQL via pgx. The conditional close relies on the same
// guarded-UPDATE shape as the sqlite store; here the row-level lock
// taken by UPDATE provides the serialization, no client-side mutex
// is needed.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/shift"
)

// Store implements all storage ports using a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn, pings, and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	return s, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		day DATE NOT NULL,
		status TEXT NOT NULL,
		opened_at TIMESTAMPTZ NOT NULL,
		closed_at TIMESTAMPTZ,
		total_revenue NUMERIC NOT NULL DEFAULT 0,
		total_consumables NUMERIC NOT NULL DEFAULT 0,
		percent_worker NUMERIC NOT NULL DEFAULT 0,
		percent_business NUMERIC NOT NULL DEFAULT 0,
		worker_share NUMERIC NOT NULL DEFAULT 0,
		business_share NUMERIC NOT NULL DEFAULT 0,
		hours_worked NUMERIC,
		hourly_wage NUMERIC,
		guaranteed_amount NUMERIC,
		top_up NUMERIC,
		UNIQUE (worker_id, day)
	);

	CREATE TABLE IF NOT EXISTS shift_items (
		id BIGSERIAL PRIMARY KEY,
		shift_id TEXT NOT NULL REFERENCES shifts(id),
		client_name TEXT NOT NULL DEFAULT '',
		service_name TEXT NOT NULL,
		revenue NUMERIC NOT NULL,
		consumables NUMERIC NOT NULL,
		appointment_id TEXT,
		note TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_shift_items_shift ON shift_items(shift_id);

	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		day DATE NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_appointments_worker_day ON appointments(worker_id, day);

	CREATE TABLE IF NOT EXISTS worker_configs (
		worker_id TEXT PRIMARY KEY,
		percent_worker NUMERIC NOT NULL,
		percent_business NUMERIC NOT NULL,
		hourly_wage NUMERIC
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// SHIFT STORE
// =============================================================================

const shiftColumns = `id, worker_id, day::text, status, opened_at, closed_at,
	total_revenue::text, total_consumables::text, percent_worker::text, percent_business::text,
	worker_share::text, business_share::text, hours_worked::text, hourly_wage::text,
	guaranteed_amount::text, top_up::text`

func (s *Store) GetCurrentShift(ctx context.Context, worker shift.WorkerID, day shift.Day) (*shift.Shift, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE worker_id = $1 AND day = $2`,
		string(worker), day.String())
	sh, err := scanShift(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return sh, err
}

func (s *Store) CreateShift(ctx context.Context, sh *shift.Shift) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO shifts (id, worker_id, day, status, opened_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		string(sh.ID), string(sh.WorkerID), sh.Day.String(), string(sh.Status), sh.OpenedAt.UTC())
	return err
}

// CloseIfOpen performs the guarded UPDATE; CommandTag.RowsAffected
// reports whether this caller won the transition.
func (s *Store) CloseIfOpen(ctx context.Context, id shift.ShiftID, rec shift.CloseRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE shifts SET
			status = $1,
			closed_at = $2,
			total_revenue = $3,
			total_consumables = $4,
			percent_worker = $5,
			percent_business = $6,
			worker_share = $7,
			business_share = $8,
			hours_worked = $9,
			hourly_wage = $10,
			guaranteed_amount = $11,
			top_up = $12
		 WHERE id = $13 AND status = $14`,
		string(shift.StatusClosed),
		rec.ClosedAt.UTC(),
		rec.TotalRevenue.String(),
		rec.TotalConsumables.String(),
		rec.PercentWorker.String(),
		rec.PercentBusiness.String(),
		rec.WorkerShare.String(),
		rec.BusinessShare.String(),
		nullDecimal(rec.HoursWorked),
		nullDecimal(rec.HourlyWage),
		nullDecimal(rec.GuaranteedAmount),
		nullDecimal(rec.TopUp),
		string(id), string(shift.StatusOpen))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ReplaceLineItems(ctx context.Context, id shift.ShiftID, items []shift.LineItem) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM shift_items WHERE shift_id = $1`, string(id)); err != nil {
		return err
	}
	for _, it := range items {
		var apptID *string
		if it.AppointmentID != "" {
			v := string(it.AppointmentID)
			apptID = &v
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO shift_items (shift_id, client_name, service_name, revenue, consumables, appointment_id, note)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			string(id), it.ClientName, it.ServiceName,
			it.Revenue.String(), it.Consumables.String(), apptID, it.Note)
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListLineItems(ctx context.Context, id shift.ShiftID) ([]shift.LineItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT client_name, service_name, revenue::text, consumables::text, appointment_id, note
		 FROM shift_items WHERE shift_id = $1 ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []shift.LineItem
	for rows.Next() {
		var it shift.LineItem
		var revenue, consumables string
		var apptID *string
		if err := rows.Scan(&it.ClientName, &it.ServiceName, &revenue, &consumables, &apptID, &it.Note); err != nil {
			return nil, err
		}
		if it.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, err
		}
		if it.Consumables, err = decimal.NewFromString(consumables); err != nil {
			return nil, err
		}
		if apptID != nil {
			it.AppointmentID = shift.AppointmentID(*apptID)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) ListShiftsInRange(ctx context.Context, worker shift.WorkerID, from, to shift.Day) ([]*shift.Shift, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+shiftColumns+` FROM shifts
		 WHERE worker_id = $1 AND day >= $2 AND day <= $3
		 ORDER BY day`,
		string(worker), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []*shift.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

// =============================================================================
// APPOINTMENT STORE
// =============================================================================

func (s *Store) ListForWorkerDay(ctx context.Context, worker shift.WorkerID, day shift.Day) ([]*shift.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, worker_id, day::text, status FROM appointments
		 WHERE worker_id = $1 AND day = $2 AND status != $3`,
		string(worker), day.String(), string(shift.AppointmentCancelled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []*shift.Appointment
	for rows.Next() {
		var a shift.Appointment
		var id, workerID, dayStr, status string
		if err := rows.Scan(&id, &workerID, &dayStr, &status); err != nil {
			return nil, err
		}
		d, err := shift.ParseDay(dayStr)
		if err != nil {
			return nil, err
		}
		a.ID = shift.AppointmentID(id)
		a.WorkerID = shift.WorkerID(workerID)
		a.Day = d
		a.Status = shift.AppointmentStatus(status)
		appts = append(appts, &a)
	}
	return appts, rows.Err()
}

func (s *Store) MarkStatus(ctx context.Context, id shift.AppointmentID, status shift.AppointmentStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status = $1 WHERE id = $2`,
		string(status), string(id))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("appointment %s not found", id)
	}
	return nil
}

// =============================================================================
// CONFIG PROVIDER
// =============================================================================

func (s *Store) PayConfig(ctx context.Context, worker shift.WorkerID) (shift.PayConfig, error) {
	var pw, pb string
	var wage *string
	err := s.pool.QueryRow(ctx,
		`SELECT percent_worker::text, percent_business::text, hourly_wage::text
		 FROM worker_configs WHERE worker_id = $1`,
		string(worker)).Scan(&pw, &pb, &wage)
	if errors.Is(err, pgx.ErrNoRows) {
		return shift.PayConfig{}, fmt.Errorf("no pay config for worker %s", worker)
	}
	if err != nil {
		return shift.PayConfig{}, err
	}

	var cfg shift.PayConfig
	if cfg.PercentWorker, err = decimal.NewFromString(pw); err != nil {
		return shift.PayConfig{}, err
	}
	if cfg.PercentBusiness, err = decimal.NewFromString(pb); err != nil {
		return shift.PayConfig{}, err
	}
	if wage != nil {
		w, err := decimal.NewFromString(*wage)
		if err != nil {
			return shift.PayConfig{}, err
		}
		cfg.HourlyWage = &w
	}
	return cfg, nil
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShift(row rowScanner) (*shift.Shift, error) {
	var sh shift.Shift
	var id, workerID, dayStr, status string
	var openedAt time.Time
	var closedAt *time.Time
	var revenue, consumables, pw, pb, ws, bs string
	var hours, wage, guaranteed, topUp *string

	err := row.Scan(&id, &workerID, &dayStr, &status, &openedAt, &closedAt,
		&revenue, &consumables, &pw, &pb, &ws, &bs,
		&hours, &wage, &guaranteed, &topUp)
	if err != nil {
		return nil, err
	}

	day, err := shift.ParseDay(dayStr)
	if err != nil {
		return nil, err
	}

	sh.ID = shift.ShiftID(id)
	sh.WorkerID = shift.WorkerID(workerID)
	sh.Day = day
	sh.Status = shift.Status(status)
	sh.OpenedAt = openedAt
	sh.ClosedAt = closedAt

	if sh.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
		return nil, err
	}
	if sh.TotalConsumables, err = decimal.NewFromString(consumables); err != nil {
		return nil, err
	}
	if sh.PercentWorker, err = decimal.NewFromString(pw); err != nil {
		return nil, err
	}
	if sh.PercentBusiness, err = decimal.NewFromString(pb); err != nil {
		return nil, err
	}
	if sh.WorkerShare, err = decimal.NewFromString(ws); err != nil {
		return nil, err
	}
	if sh.BusinessShare, err = decimal.NewFromString(bs); err != nil {
		return nil, err
	}
	if sh.HoursWorked, err = parseNullDecimal(hours); err != nil {
		return nil, err
	}
	if sh.HourlyWage, err = parseNullDecimal(wage); err != nil {
		return nil, err
	}
	if sh.GuaranteedAmount, err = parseNullDecimal(guaranteed); err != nil {
		return nil, err
	}
	if sh.TopUp, err = parseNullDecimal(topUp); err != nil {
		return nil, err
	}
	return &sh, nil
}

func nullDecimal(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	v := d.String()
	return &v
}

func parseNullDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("corrupt decimal %q: %w", *s, err)
	}
	return &d, nil
}
