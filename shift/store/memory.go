// Package store provides an in-memory implementation of the shift
// engine's ports, for tests and development.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/shift-engine/shift"
)

// =============================================================================
// MEMORY STORE - Implements ShiftStore, AppointmentStore, ConfigProvider
// =============================================================================

type Memory struct {
	mu sync.RWMutex

	shifts       map[shiftKey]*shift.Shift
	byID         map[shift.ShiftID]*shift.Shift
	items        map[shift.ShiftID][]shift.LineItem
	appointments map[shift.AppointmentID]*shift.Appointment
	configs      map[shift.WorkerID]shift.PayConfig
}

type shiftKey struct {
	Worker shift.WorkerID
	Day    shift.Day
}

func NewMemory() *Memory {
	return &Memory{
		shifts:       make(map[shiftKey]*shift.Shift),
		byID:         make(map[shift.ShiftID]*shift.Shift),
		items:        make(map[shift.ShiftID][]shift.LineItem),
		appointments: make(map[shift.AppointmentID]*shift.Appointment),
		configs:      make(map[shift.WorkerID]shift.PayConfig),
	}
}

// =============================================================================
// SHIFT STORE
// =============================================================================

func (m *Memory) GetCurrentShift(_ context.Context, worker shift.WorkerID, day shift.Day) (*shift.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.shifts[shiftKey{Worker: worker, Day: day}]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) CreateShift(_ context.Context, s *shift.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := shiftKey{Worker: s.WorkerID, Day: s.Day}
	if _, exists := m.shifts[k]; exists {
		return fmt.Errorf("shift already exists for %s on %s", s.WorkerID, s.Day)
	}
	cp := *s
	m.shifts[k] = &cp
	m.byID[s.ID] = &cp
	return nil
}

// CloseIfOpen performs the conditional transition under the store lock:
// check-and-write is indivisible, so exactly one caller ever wins.
func (m *Memory) CloseIfOpen(_ context.Context, id shift.ShiftID, rec shift.CloseRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.byID[id]
	if !ok {
		return false, fmt.Errorf("shift %s not found", id)
	}
	if s.Status != shift.StatusOpen {
		return false, nil
	}

	closedAt := rec.ClosedAt
	s.Status = shift.StatusClosed
	s.ClosedAt = &closedAt
	s.TotalRevenue = rec.TotalRevenue
	s.TotalConsumables = rec.TotalConsumables
	s.PercentWorker = rec.PercentWorker
	s.PercentBusiness = rec.PercentBusiness
	s.WorkerShare = rec.WorkerShare
	s.BusinessShare = rec.BusinessShare
	s.HoursWorked = rec.HoursWorked
	s.HourlyWage = rec.HourlyWage
	s.GuaranteedAmount = rec.GuaranteedAmount
	s.TopUp = rec.TopUp
	return true, nil
}

func (m *Memory) ReplaceLineItems(_ context.Context, id shift.ShiftID, items []shift.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("shift %s not found", id)
	}
	cp := make([]shift.LineItem, len(items))
	copy(cp, items)
	m.items[id] = cp
	return nil
}

func (m *Memory) ListLineItems(_ context.Context, id shift.ShiftID) ([]shift.LineItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp := make([]shift.LineItem, len(m.items[id]))
	copy(cp, m.items[id])
	return cp, nil
}

func (m *Memory) ListShiftsInRange(_ context.Context, worker shift.WorkerID, from, to shift.Day) ([]*shift.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*shift.Shift
	for k, s := range m.shifts {
		if k.Worker != worker {
			continue
		}
		if k.Day.Before(from) || k.Day.After(to) {
			continue
		}
		cp := *s
		result = append(result, &cp)
	}
	sortShiftsByDay(result)
	return result, nil
}

func sortShiftsByDay(shifts []*shift.Shift) {
	for i := 1; i < len(shifts); i++ {
		for j := i; j > 0 && shifts[j].Day.Before(shifts[j-1].Day); j-- {
			shifts[j], shifts[j-1] = shifts[j-1], shifts[j]
		}
	}
}

// =============================================================================
// APPOINTMENT STORE
// =============================================================================

func (m *Memory) ListForWorkerDay(_ context.Context, worker shift.WorkerID, day shift.Day) ([]*shift.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*shift.Appointment
	for _, a := range m.appointments {
		if a.WorkerID != worker || !a.Day.Equal(day) {
			continue
		}
		if a.Status == shift.AppointmentCancelled {
			continue
		}
		cp := *a
		result = append(result, &cp)
	}
	return result, nil
}

func (m *Memory) MarkStatus(_ context.Context, id shift.AppointmentID, status shift.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return fmt.Errorf("appointment %s not found", id)
	}
	a.Status = status
	return nil
}

// =============================================================================
// CONFIG PROVIDER
// =============================================================================

func (m *Memory) PayConfig(_ context.Context, worker shift.WorkerID) (shift.PayConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[worker]
	if !ok {
		return shift.PayConfig{}, fmt.Errorf("no pay config for worker %s", worker)
	}
	return cfg, nil
}

// =============================================================================
// SEED HELPERS - For tests and dev fixtures
// =============================================================================

func (m *Memory) SeedAppointment(a shift.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := a
	m.appointments[a.ID] = &cp
}

func (m *Memory) SetPayConfig(worker shift.WorkerID, cfg shift.PayConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[worker] = cfg
}

func (m *Memory) AppointmentStatus(id shift.AppointmentID) (shift.AppointmentStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	if !ok {
		return "", false
	}
	return a.Status, true
}
