/*
Package sqlite provides a SQLite-backed implementation of the shift
engine's storage ports.

PURPOSE:
  Implements shift.ShiftStore, shift.AppointmentStore, and
  shift.ConfigProvider on SQLite. The same SQL shape applies to
  PostgreSQL (see store/postgres) with only dialect differences.

ATOMIC CLOSE:
  The exactly-one-close guarantee rides on a single conditional UPDATE:

    UPDATE shifts SET status='closed', ... WHERE id=? AND status='open'

  RowsAffected==1 means this caller won the transition; 0 means the
  shift was already closed. There is no read-then-write window.

KEY TABLES:
  shifts:         One row per (worker, day), unique. Close fields are
                  written together by the conditional update.
  shift_items:    Line items, replaced wholesale at close.
  appointments:   Attendance records finalized by reconciliation.
  worker_configs: Percentage split and optional hourly wage per worker.

MONEY:
  Decimals are stored as TEXT to avoid float drift, and parsed back
  with shopspring/decimal.

WAL MODE:
  The database is opened with WAL so readers do not block the writer.

USAGE:
  st, err := sqlite.New("./data/shifts.db")   // ":memory:" for tests
  defer st.Close()

SEE ALSO:
  - shift/ports.go: Interface contracts, including CloseIfOpen
  - store/postgres: pgx implementation of the same contracts
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/shift"
)

// Store implements all storage ports using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a SQLite store at dbPath. Use ":memory:"
// for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		day TEXT NOT NULL,
		status TEXT NOT NULL,
		opened_at TEXT NOT NULL,
		closed_at TEXT,
		total_revenue TEXT NOT NULL DEFAULT '0',
		total_consumables TEXT NOT NULL DEFAULT '0',
		percent_worker TEXT NOT NULL DEFAULT '0',
		percent_business TEXT NOT NULL DEFAULT '0',
		worker_share TEXT NOT NULL DEFAULT '0',
		business_share TEXT NOT NULL DEFAULT '0',
		hours_worked TEXT,
		hourly_wage TEXT,
		guaranteed_amount TEXT,
		top_up TEXT
	);

	-- One shift per worker per calendar day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_worker_day
		ON shifts(worker_id, day);

	CREATE TABLE IF NOT EXISTS shift_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		shift_id TEXT NOT NULL REFERENCES shifts(id),
		client_name TEXT NOT NULL DEFAULT '',
		service_name TEXT NOT NULL,
		revenue TEXT NOT NULL,
		consumables TEXT NOT NULL,
		appointment_id TEXT,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_shift_items_shift
		ON shift_items(shift_id);

	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		day TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appointments_worker_day
		ON appointments(worker_id, day);

	CREATE TABLE IF NOT EXISTS worker_configs (
		worker_id TEXT PRIMARY KEY,
		percent_worker TEXT NOT NULL,
		percent_business TEXT NOT NULL,
		hourly_wage TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SHIFT STORE
// =============================================================================

const shiftColumns = `id, worker_id, day, status, opened_at, closed_at,
	total_revenue, total_consumables, percent_worker, percent_business,
	worker_share, business_share, hours_worked, hourly_wage,
	guaranteed_amount, top_up`

func (s *Store) GetCurrentShift(ctx context.Context, worker shift.WorkerID, day shift.Day) (*shift.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+shiftColumns+` FROM shifts WHERE worker_id = ? AND day = ?`,
		string(worker), day.String())
	sh, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sh, err
}

func (s *Store) CreateShift(ctx context.Context, sh *shift.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shifts (id, worker_id, day, status, opened_at)
		 VALUES (?, ?, ?, ?, ?)`,
		string(sh.ID), string(sh.WorkerID), sh.Day.String(), string(sh.Status),
		sh.OpenedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// CloseIfOpen is the engine's serialization point: a single conditional
// UPDATE guarded by the current status. Exactly one concurrent caller
// observes RowsAffected()==1.
func (s *Store) CloseIfOpen(ctx context.Context, id shift.ShiftID, rec shift.CloseRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE shifts SET
			status = ?,
			closed_at = ?,
			total_revenue = ?,
			total_consumables = ?,
			percent_worker = ?,
			percent_business = ?,
			worker_share = ?,
			business_share = ?,
			hours_worked = ?,
			hourly_wage = ?,
			guaranteed_amount = ?,
			top_up = ?
		 WHERE id = ? AND status = ?`,
		string(shift.StatusClosed),
		rec.ClosedAt.UTC().Format(time.RFC3339Nano),
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
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ReplaceLineItems(ctx context.Context, id shift.ShiftID, items []shift.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM shift_items WHERE shift_id = ?`, string(id)); err != nil {
		return err
	}
	for _, it := range items {
		var apptID interface{}
		if it.AppointmentID != "" {
			apptID = string(it.AppointmentID)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO shift_items (shift_id, client_name, service_name, revenue, consumables, appointment_id, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(id), it.ClientName, it.ServiceName,
			it.Revenue.String(), it.Consumables.String(), apptID, it.Note)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListLineItems(ctx context.Context, id shift.ShiftID) ([]shift.LineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT client_name, service_name, revenue, consumables, appointment_id, note
		 FROM shift_items WHERE shift_id = ? ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []shift.LineItem
	for rows.Next() {
		var it shift.LineItem
		var revenue, consumables string
		var apptID sql.NullString
		if err := rows.Scan(&it.ClientName, &it.ServiceName, &revenue, &consumables, &apptID, &it.Note); err != nil {
			return nil, err
		}
		if it.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("corrupt revenue value %q: %w", revenue, err)
		}
		if it.Consumables, err = decimal.NewFromString(consumables); err != nil {
			return nil, fmt.Errorf("corrupt consumables value %q: %w", consumables, err)
		}
		if apptID.Valid {
			it.AppointmentID = shift.AppointmentID(apptID.String)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) ListShiftsInRange(ctx context.Context, worker shift.WorkerID, from, to shift.Day) ([]*shift.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shiftColumns+` FROM shifts
		 WHERE worker_id = ? AND day >= ? AND day <= ?
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
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, worker_id, day, status FROM appointments
		 WHERE worker_id = ? AND day = ? AND status != ?`,
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
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET status = ? WHERE id = ?`,
		string(status), string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("appointment %s not found", id)
	}
	return nil
}

// SeedAppointment inserts or replaces an appointment record. Intended
// for fixtures and the sync path mirroring the scheduling system.
func (s *Store) SeedAppointment(ctx context.Context, a shift.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (id, worker_id, day, status) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET worker_id=excluded.worker_id, day=excluded.day, status=excluded.status`,
		string(a.ID), string(a.WorkerID), a.Day.String(), string(a.Status))
	return err
}

// =============================================================================
// CONFIG PROVIDER
// =============================================================================

func (s *Store) PayConfig(ctx context.Context, worker shift.WorkerID) (shift.PayConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pw, pb string
	var wage sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT percent_worker, percent_business, hourly_wage FROM worker_configs WHERE worker_id = ?`,
		string(worker)).Scan(&pw, &pb, &wage)
	if err == sql.ErrNoRows {
		return shift.PayConfig{}, fmt.Errorf("no pay config for worker %s", worker)
	}
	if err != nil {
		return shift.PayConfig{}, err
	}

	var cfg shift.PayConfig
	if cfg.PercentWorker, err = decimal.NewFromString(pw); err != nil {
		return shift.PayConfig{}, fmt.Errorf("corrupt percent_worker %q: %w", pw, err)
	}
	if cfg.PercentBusiness, err = decimal.NewFromString(pb); err != nil {
		return shift.PayConfig{}, fmt.Errorf("corrupt percent_business %q: %w", pb, err)
	}
	if wage.Valid {
		w, err := decimal.NewFromString(wage.String)
		if err != nil {
			return shift.PayConfig{}, fmt.Errorf("corrupt hourly_wage %q: %w", wage.String, err)
		}
		cfg.HourlyWage = &w
	}
	return cfg, nil
}

// SetPayConfig upserts a worker's pay configuration.
func (s *Store) SetPayConfig(ctx context.Context, worker shift.WorkerID, cfg shift.PayConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var wage interface{}
	if cfg.HourlyWage != nil {
		wage = cfg.HourlyWage.String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO worker_configs (worker_id, percent_worker, percent_business, hourly_wage)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(worker_id) DO UPDATE SET
			percent_worker=excluded.percent_worker,
			percent_business=excluded.percent_business,
			hourly_wage=excluded.hourly_wage`,
		string(worker), cfg.PercentWorker.String(), cfg.PercentBusiness.String(), wage)
	return err
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanShift(row rowScanner) (*shift.Shift, error) {
	var sh shift.Shift
	var id, workerID, dayStr, status, openedAt string
	var closedAt sql.NullString
	var revenue, consumables, pw, pb, ws, bs string
	var hours, wage, guaranteed, topUp sql.NullString

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
	opened, err := time.Parse(time.RFC3339Nano, openedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt opened_at %q: %w", openedAt, err)
	}

	sh.ID = shift.ShiftID(id)
	sh.WorkerID = shift.WorkerID(workerID)
	sh.Day = day
	sh.Status = shift.Status(status)
	sh.OpenedAt = opened

	if closedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, closedAt.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt closed_at %q: %w", closedAt.String, err)
		}
		sh.ClosedAt = &t
	}

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
	if sh.HoursWorked, err = scanNullDecimal(hours); err != nil {
		return nil, err
	}
	if sh.HourlyWage, err = scanNullDecimal(wage); err != nil {
		return nil, err
	}
	if sh.GuaranteedAmount, err = scanNullDecimal(guaranteed); err != nil {
		return nil, err
	}
	if sh.TopUp, err = scanNullDecimal(topUp); err != nil {
		return nil, err
	}
	return &sh, nil
}

func nullDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func scanNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, fmt.Errorf("corrupt decimal %q: %w", s.String, err)
	}
	return &d, nil
}
