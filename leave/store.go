/*
store.go - Persistence contract for the leave engine

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never opens connections; it is handed a TxStore and runs every
  multi-step mutation inside WithTx.

NOT FOUND:
  Getters return (nil, nil) when the row doesn't exist.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - leave/store/memory.go:  in-memory for tests/dev
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	GetAgent(ctx context.Context, id AgentID) (*Agent, error)
	UpdateAgentBalance(ctx context.Context, id AgentID, balance decimal.Decimal) error

	GetLeave(ctx context.Context, id LeaveID) (*Record, error)
	// ListLeaves returns every record of the agent, ordered by start date.
	ListLeaves(ctx context.Context, agentID AgentID) ([]Record, error)
	InsertLeave(ctx context.Context, rec Record) (LeaveID, error)
	SetLeaveStatus(ctx context.Context, id LeaveID, status Status) error
	// DeleteLeave physically removes the record and its certificate row.
	DeleteLeave(ctx context.Context, id LeaveID) error

	// OverlappingActiveLeaves returns Active records of the agent with
	// End >= r.Start and Start <= r.End, excluding the given id (0 = none).
	OverlappingActiveLeaves(ctx context.Context, agentID AgentID, r calendar.Range, exclude LeaveID) ([]Record, error)
	// FindSplitParent returns the most recently created Cancelled annual
	// record whose range contains r, or nil.
	FindSplitParent(ctx context.Context, agentID AgentID, r calendar.Range) (*Record, error)
	// ActiveLeavesWithin returns Active records whose range lies inside r.
	ActiveLeavesWithin(ctx context.Context, agentID AgentID, r calendar.Range) ([]Record, error)

	GetCertificate(ctx context.Context, leaveID LeaveID) (*Certificate, error)
	// SaveCertificate inserts or replaces the certificate of a leave.
	SaveCertificate(ctx context.Context, cert Certificate) error
	DeleteCertificate(ctx context.Context, leaveID LeaveID) error
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	// Inside fn only the Store passed in may be used.
	WithTx(ctx context.Context, fn func(Store) error) error
}
