// Package store provides an in-memory leave.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	agents       map[leave.AgentID]leave.Agent
	leaves       map[leave.LeaveID]leave.Record
	certificates map[leave.LeaveID]leave.Certificate
	holidays     map[string]calendar.Holiday
	nextAgent    leave.AgentID
	nextLeave    leave.LeaveID
	now          func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		agents:       make(map[leave.AgentID]leave.Agent),
		leaves:       make(map[leave.LeaveID]leave.Record),
		certificates: make(map[leave.LeaveID]leave.Certificate),
		holidays:     make(map[string]calendar.Holiday),
		now:          time.Now,
	}
}

// CreateAgent adds an agent and returns its id. Reference must be unique.
func (m *Memory) CreateAgent(_ context.Context, a leave.Agent) (leave.AgentID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.agents {
		if strings.EqualFold(existing.Reference, a.Reference) {
			return 0, fmt.Errorf("reference %q: %w", a.Reference, leave.ErrReferenceConflict)
		}
	}
	if a.Balance.IsNegative() {
		return 0, fmt.Errorf("balance %s is negative", a.Balance)
	}
	m.nextAgent++
	a.ID = m.nextAgent
	m.agents[a.ID] = a
	return a.ID, nil
}

func (m *Memory) GetAgent(_ context.Context, id leave.AgentID) (*leave.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAgentLocked(id), nil
}

func (m *Memory) UpdateAgentBalance(_ context.Context, id leave.AgentID, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateBalanceLocked(id, balance)
}

func (m *Memory) GetLeave(_ context.Context, id leave.LeaveID) (*leave.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLeaveLocked(id), nil
}

func (m *Memory) ListLeaves(_ context.Context, agentID leave.AgentID) ([]leave.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filterLocked(func(r leave.Record) bool { return r.AgentID == agentID }), nil
}

func (m *Memory) InsertLeave(_ context.Context, rec leave.Record) (leave.LeaveID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLeaveLocked(rec)
}

func (m *Memory) SetLeaveStatus(_ context.Context, id leave.LeaveID, status leave.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setStatusLocked(id, status)
}

func (m *Memory) DeleteLeave(_ context.Context, id leave.LeaveID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLeaveLocked(id)
	return nil
}

func (m *Memory) OverlappingActiveLeaves(_ context.Context, agentID leave.AgentID, r calendar.Range, exclude leave.LeaveID) ([]leave.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overlappingLocked(agentID, r, exclude), nil
}

func (m *Memory) FindSplitParent(_ context.Context, agentID leave.AgentID, r calendar.Range) (*leave.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.splitParentLocked(agentID, r), nil
}

func (m *Memory) ActiveLeavesWithin(_ context.Context, agentID leave.AgentID, r calendar.Range) ([]leave.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.withinLocked(agentID, r), nil
}

func (m *Memory) GetCertificate(_ context.Context, leaveID leave.LeaveID) (*leave.Certificate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCertificateLocked(leaveID), nil
}

func (m *Memory) SaveCertificate(_ context.Context, cert leave.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCertificateLocked(cert)
}

func (m *Memory) DeleteCertificate(_ context.Context, leaveID leave.LeaveID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.certificates, leaveID)
	return nil
}

// =============================================================================
// HOLIDAYS - calendar.HolidaySource
// =============================================================================

// SaveHoliday adds or replaces a holiday. An empty ID gets a new one.
func (m *Memory) SaveHoliday(_ context.Context, h calendar.Holiday) (calendar.Holiday, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	m.holidays[h.ID] = h
	return h, nil
}

func (m *Memory) Holidays(_ context.Context, fromYear, toYear int) ([]calendar.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []calendar.Holiday
	for _, h := range m.holidays {
		if h.Recurring || (h.Date.Year() >= fromYear && h.Date.Year() <= toYear) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// =============================================================================
// LOCKED HELPERS - Shared by Memory and the transactional view
// =============================================================================

func (m *Memory) getAgentLocked(id leave.AgentID) *leave.Agent {
	a, ok := m.agents[id]
	if !ok {
		return nil
	}
	return &a
}

func (m *Memory) updateBalanceLocked(id leave.AgentID, balance decimal.Decimal) error {
	a, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("agent %d: %w", id, leave.ErrAgentNotFound)
	}
	// Same guard as the SQL CHECK constraint.
	if balance.IsNegative() {
		return fmt.Errorf("agent %d: balance %s violates balance >= 0", id, balance)
	}
	a.Balance = balance
	m.agents[id] = a
	return nil
}

func (m *Memory) getLeaveLocked(id leave.LeaveID) *leave.Record {
	r, ok := m.leaves[id]
	if !ok {
		return nil
	}
	return &r
}

func (m *Memory) insertLeaveLocked(rec leave.Record) (leave.LeaveID, error) {
	if _, ok := m.agents[rec.AgentID]; !ok {
		return 0, fmt.Errorf("agent %d: %w", rec.AgentID, leave.ErrAgentNotFound)
	}
	if rec.End.Before(rec.Start) {
		return 0, fmt.Errorf("leave ends before it starts")
	}
	m.nextLeave++
	rec.ID = m.nextLeave
	if rec.Status == "" {
		rec.Status = leave.StatusActive
	}
	rec.CreatedAt = m.now()
	m.leaves[rec.ID] = rec
	return rec.ID, nil
}

func (m *Memory) setStatusLocked(id leave.LeaveID, status leave.Status) error {
	r, ok := m.leaves[id]
	if !ok {
		return fmt.Errorf("leave %d: %w", id, leave.ErrLeaveNotFound)
	}
	r.Status = status
	m.leaves[id] = r
	return nil
}

func (m *Memory) deleteLeaveLocked(id leave.LeaveID) {
	delete(m.leaves, id)
	delete(m.certificates, id)
}

func (m *Memory) overlappingLocked(agentID leave.AgentID, r calendar.Range, exclude leave.LeaveID) []leave.Record {
	return m.filterLocked(func(rec leave.Record) bool {
		return rec.AgentID == agentID && rec.IsActive() && rec.ID != exclude && rec.Range().Overlaps(r)
	})
}

func (m *Memory) splitParentLocked(agentID leave.AgentID, r calendar.Range) *leave.Record {
	var best *leave.Record
	for _, rec := range m.leaves {
		if rec.AgentID != agentID || rec.Status != leave.StatusCancelled || rec.Kind != leave.KindAnnual {
			continue
		}
		if !rec.Range().Covers(r) {
			continue
		}
		if best == nil || rec.ID > best.ID {
			found := rec
			best = &found
		}
	}
	return best
}

func (m *Memory) withinLocked(agentID leave.AgentID, r calendar.Range) []leave.Record {
	return m.filterLocked(func(rec leave.Record) bool {
		return rec.AgentID == agentID && rec.IsActive() && r.Covers(rec.Range())
	})
}

func (m *Memory) getCertificateLocked(leaveID leave.LeaveID) *leave.Certificate {
	c, ok := m.certificates[leaveID]
	if !ok {
		return nil
	}
	return &c
}

func (m *Memory) saveCertificateLocked(cert leave.Certificate) error {
	if _, ok := m.leaves[cert.LeaveID]; !ok {
		return fmt.Errorf("leave %d: %w", cert.LeaveID, leave.ErrLeaveNotFound)
	}
	m.certificates[cert.LeaveID] = cert
	return nil
}

// filterLocked returns matching records ordered by start date, then id.
func (m *Memory) filterLocked(keep func(leave.Record) bool) []leave.Record {
	var out []leave.Record
	for _, rec := range m.leaves {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(leave.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	agents       map[leave.AgentID]leave.Agent
	leaves       map[leave.LeaveID]leave.Record
	certificates map[leave.LeaveID]leave.Certificate
	nextLeave    leave.LeaveID
}

func (tm *TxMemory) snapshot() memorySnapshot {
	s := memorySnapshot{
		agents:       make(map[leave.AgentID]leave.Agent, len(tm.agents)),
		leaves:       make(map[leave.LeaveID]leave.Record, len(tm.leaves)),
		certificates: make(map[leave.LeaveID]leave.Certificate, len(tm.certificates)),
		nextLeave:    tm.nextLeave,
	}
	for k, v := range tm.agents {
		s.agents[k] = v
	}
	for k, v := range tm.leaves {
		s.leaves[k] = v
	}
	for k, v := range tm.certificates {
		s.certificates[k] = v
	}
	return s
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.agents = s.agents
	tm.leaves = s.leaves
	tm.certificates = s.certificates
	tm.nextLeave = s.nextLeave
}

// txMemoryView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it calls the *Locked helpers directly.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) GetAgent(_ context.Context, id leave.AgentID) (*leave.Agent, error) {
	return tv.parent.getAgentLocked(id), nil
}

func (tv *txMemoryView) UpdateAgentBalance(_ context.Context, id leave.AgentID, balance decimal.Decimal) error {
	return tv.parent.updateBalanceLocked(id, balance)
}

func (tv *txMemoryView) GetLeave(_ context.Context, id leave.LeaveID) (*leave.Record, error) {
	return tv.parent.getLeaveLocked(id), nil
}

func (tv *txMemoryView) ListLeaves(_ context.Context, agentID leave.AgentID) ([]leave.Record, error) {
	return tv.parent.filterLocked(func(r leave.Record) bool { return r.AgentID == agentID }), nil
}

func (tv *txMemoryView) InsertLeave(_ context.Context, rec leave.Record) (leave.LeaveID, error) {
	return tv.parent.insertLeaveLocked(rec)
}

func (tv *txMemoryView) SetLeaveStatus(_ context.Context, id leave.LeaveID, status leave.Status) error {
	return tv.parent.setStatusLocked(id, status)
}

func (tv *txMemoryView) DeleteLeave(_ context.Context, id leave.LeaveID) error {
	tv.parent.deleteLeaveLocked(id)
	return nil
}

func (tv *txMemoryView) OverlappingActiveLeaves(_ context.Context, agentID leave.AgentID, r calendar.Range, exclude leave.LeaveID) ([]leave.Record, error) {
	return tv.parent.overlappingLocked(agentID, r, exclude), nil
}

func (tv *txMemoryView) FindSplitParent(_ context.Context, agentID leave.AgentID, r calendar.Range) (*leave.Record, error) {
	return tv.parent.splitParentLocked(agentID, r), nil
}

func (tv *txMemoryView) ActiveLeavesWithin(_ context.Context, agentID leave.AgentID, r calendar.Range) ([]leave.Record, error) {
	return tv.parent.withinLocked(agentID, r), nil
}

func (tv *txMemoryView) GetCertificate(_ context.Context, leaveID leave.LeaveID) (*leave.Certificate, error) {
	return tv.parent.getCertificateLocked(leaveID), nil
}

func (tv *txMemoryView) SaveCertificate(_ context.Context, cert leave.Certificate) error {
	return tv.parent.saveCertificateLocked(cert)
}

func (tv *txMemoryView) DeleteCertificate(_ context.Context, leaveID leave.LeaveID) error {
	delete(tv.parent.certificates, leaveID)
	return nil
}
