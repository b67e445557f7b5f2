/*
Package sqlite provides a SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Persists agents, leave records, medical certificates and the holiday
  calendar. Every multi-step engine mutation runs through WithTx, so a
  split or a restore is committed whole or not at all.

INTERFACES IMPLEMENTED:
  leave.TxStore:          agents, leaves, certificates, transactions
  calendar.HolidaySource: holiday window loading

KEY TABLES:
  agents:       staff with a unique reference code and a day balance
  leaves:       leave periods, soft-deleted via status = 'cancelled'
  certificates: one per leave, removed with it (ON DELETE CASCADE)
  holidays:     one-off and recurring non-working days

INVARIANT BACKSTOPS:
  The engine enforces the rules; the schema refuses what slips through:
  - CHECK balance >= 0
  - CHECK days_taken > 0 and end_date >= start_date
  - UNIQUE agent reference (surfaced as leave.ErrReferenceConflict)

DATES:
  Stored as YYYY-MM-DD text, so range predicates compare lexically.

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := leave.NewEngine(store, calendar.New(store))

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// Store implements leave.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex // one write transaction at a time
}

var (
	_ leave.TxStore          = (*Store)(nil)
	_ calendar.HolidaySource = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := NewWithDB(db)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// NewWithDB wraps an open database whose schema is already in place.
func NewWithDB(db *sql.DB) *Store {
	return &Store{queries: queries{q: db}, db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		last_name TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL COLLATE NOCASE,
		grade TEXT NOT NULL DEFAULT '',
		balance TEXT NOT NULL DEFAULT '0' CHECK (CAST(balance AS REAL) >= 0),
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_agents_reference
		ON agents(reference);
	CREATE INDEX IF NOT EXISTS idx_agents_name
		ON agents(last_name, first_name);

	CREATE TABLE IF NOT EXISTS leaves (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		agent_id INTEGER NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		justification TEXT NOT NULL DEFAULT '',
		covering_agent_id INTEGER REFERENCES agents(id) ON DELETE SET NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days_taken INTEGER NOT NULL CHECK (days_taken > 0),
		status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'cancelled')),
		created_at TEXT NOT NULL,
		CHECK (end_date >= start_date)
	);

	-- Overlap and containment lookups (hot path)
	CREATE INDEX IF NOT EXISTS idx_leaves_agent_status_dates
		ON leaves(agent_id, status, start_date, end_date);

	CREATE TABLE IF NOT EXISTS certificates (
		leave_id INTEGER PRIMARY KEY REFERENCES leaves(id) ON DELETE CASCADE,
		duration_days INTEGER NOT NULL DEFAULT 0,
		doctor_name TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
// All reads inside fn go through the transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// QUERIES - leave.Store over either *sql.DB or *sql.Tx
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	q querier
}

type scanner interface {
	Scan(dest ...any) error
}

const agentColumns = "id, last_name, first_name, reference, grade, balance"

const leaveColumns = `id, agent_id, kind, justification, covering_agent_id,
	start_date, end_date, days_taken, status, created_at`

// GetAgent retrieves an agent by ID.
func (qs *queries) GetAgent(ctx context.Context, id leave.AgentID) (*leave.Agent, error) {
	row := qs.q.QueryRowContext(ctx, "SELECT "+agentColumns+" FROM agents WHERE id = ?", id)
	a, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAgentBalance overwrites the balance. The CHECK constraint rejects
// negative values.
func (qs *queries) UpdateAgentBalance(ctx context.Context, id leave.AgentID, balance decimal.Decimal) error {
	res, err := qs.q.ExecContext(ctx, "UPDATE agents SET balance = ? WHERE id = ?", balance.String(), id)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %d: %w", id, leave.ErrAgentNotFound)
	}
	return nil
}

// GetLeave retrieves a leave record by ID.
func (qs *queries) GetLeave(ctx context.Context, id leave.LeaveID) (*leave.Record, error) {
	row := qs.q.QueryRowContext(ctx, "SELECT "+leaveColumns+" FROM leaves WHERE id = ?", id)
	rec, err := scanLeave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListLeaves returns every record of the agent, ordered by start date.
func (qs *queries) ListLeaves(ctx context.Context, agentID leave.AgentID) ([]leave.Record, error) {
	return qs.queryLeaves(ctx,
		"SELECT "+leaveColumns+" FROM leaves WHERE agent_id = ? ORDER BY start_date, id",
		agentID)
}

// InsertLeave adds a leave record and returns its new ID.
func (qs *queries) InsertLeave(ctx context.Context, rec leave.Record) (leave.LeaveID, error) {
	status := rec.Status
	if status == "" {
		status = leave.StatusActive
	}
	var covering sql.NullInt64
	if rec.CoveringAgentID != nil {
		covering = sql.NullInt64{Int64: int64(*rec.CoveringAgentID), Valid: true}
	}

	res, err := qs.q.ExecContext(ctx, `
		INSERT INTO leaves
		(agent_id, kind, justification, covering_agent_id, start_date, end_date, days_taken, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.AgentID,
		string(rec.Kind),
		rec.Justification,
		covering,
		rec.Start.String(),
		rec.End.String(),
		rec.DaysTaken,
		string(status),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert leave: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read leave id: %w", err)
	}
	return leave.LeaveID(id), nil
}

// SetLeaveStatus moves a record between active and cancelled.
func (qs *queries) SetLeaveStatus(ctx context.Context, id leave.LeaveID, status leave.Status) error {
	res, err := qs.q.ExecContext(ctx, "UPDATE leaves SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("failed to set leave status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("leave %d: %w", id, leave.ErrLeaveNotFound)
	}
	return nil
}

// DeleteLeave removes the record and its certificate row.
func (qs *queries) DeleteLeave(ctx context.Context, id leave.LeaveID) error {
	if _, err := qs.q.ExecContext(ctx, "DELETE FROM certificates WHERE leave_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete certificate: %w", err)
	}
	if _, err := qs.q.ExecContext(ctx, "DELETE FROM leaves WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete leave: %w", err)
	}
	return nil
}

// OverlappingActiveLeaves returns Active records intersecting r.
func (qs *queries) OverlappingActiveLeaves(ctx context.Context, agentID leave.AgentID, r calendar.Range, exclude leave.LeaveID) ([]leave.Record, error) {
	return qs.queryLeaves(ctx, `
		SELECT `+leaveColumns+` FROM leaves
		WHERE agent_id = ? AND status = 'active'
		  AND end_date >= ? AND start_date <= ?
		  AND id != ?
		ORDER BY start_date, id
	`, agentID, r.Start.String(), r.End.String(), exclude)
}

// FindSplitParent returns the most recently created Cancelled annual record
// containing r.
func (qs *queries) FindSplitParent(ctx context.Context, agentID leave.AgentID, r calendar.Range) (*leave.Record, error) {
	row := qs.q.QueryRowContext(ctx, `
		SELECT `+leaveColumns+` FROM leaves
		WHERE agent_id = ? AND status = 'cancelled' AND kind = ?
		  AND start_date <= ? AND end_date >= ?
		ORDER BY id DESC
		LIMIT 1
	`, agentID, string(leave.KindAnnual), r.Start.String(), r.End.String())
	rec, err := scanLeave(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ActiveLeavesWithin returns Active records lying inside r.
func (qs *queries) ActiveLeavesWithin(ctx context.Context, agentID leave.AgentID, r calendar.Range) ([]leave.Record, error) {
	return qs.queryLeaves(ctx, `
		SELECT `+leaveColumns+` FROM leaves
		WHERE agent_id = ? AND status = 'active'
		  AND start_date >= ? AND end_date <= ?
		ORDER BY start_date, id
	`, agentID, r.Start.String(), r.End.String())
}

// GetCertificate returns the certificate attached to a leave, or nil.
func (qs *queries) GetCertificate(ctx context.Context, leaveID leave.LeaveID) (*leave.Certificate, error) {
	var c leave.Certificate
	err := qs.q.QueryRowContext(ctx,
		"SELECT leave_id, duration_days, doctor_name, file_path FROM certificates WHERE leave_id = ?",
		leaveID,
	).Scan(&c.LeaveID, &c.DurationDays, &c.DoctorName, &c.FilePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// SaveCertificate inserts or replaces the certificate of a leave.
func (qs *queries) SaveCertificate(ctx context.Context, cert leave.Certificate) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO certificates (leave_id, duration_days, doctor_name, file_path, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(leave_id) DO UPDATE SET
			duration_days = excluded.duration_days,
			doctor_name = excluded.doctor_name,
			file_path = excluded.file_path
	`,
		cert.LeaveID,
		cert.DurationDays,
		cert.DoctorName,
		cert.FilePath,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	return nil
}

// DeleteCertificate removes the certificate row of a leave.
func (qs *queries) DeleteCertificate(ctx context.Context, leaveID leave.LeaveID) error {
	_, err := qs.q.ExecContext(ctx, "DELETE FROM certificates WHERE leave_id = ?", leaveID)
	return err
}

func (qs *queries) queryLeaves(ctx context.Context, query string, args ...any) ([]leave.Record, error) {
	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leave.Record
	for rows.Next() {
		rec, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

func scanAgent(row scanner) (leave.Agent, error) {
	var a leave.Agent
	var balance string
	if err := row.Scan(&a.ID, &a.LastName, &a.FirstName, &a.Reference, &a.Grade, &balance); err != nil {
		return leave.Agent{}, err
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return leave.Agent{}, fmt.Errorf("agent %d: corrupt balance %q: %w", a.ID, balance, err)
	}
	a.Balance = b
	return a, nil
}

func scanLeave(row scanner) (leave.Record, error) {
	var (
		rec        leave.Record
		kind       string
		status     string
		covering   sql.NullInt64
		start, end string
		createdAt  string
	)
	err := row.Scan(&rec.ID, &rec.AgentID, &kind, &rec.Justification, &covering,
		&start, &end, &rec.DaysTaken, &status, &createdAt)
	if err != nil {
		return leave.Record{}, err
	}

	rec.Kind = leave.Kind(kind)
	rec.Status = leave.Status(status)
	if covering.Valid {
		id := leave.AgentID(covering.Int64)
		rec.CoveringAgentID = &id
	}
	if rec.Start, err = calendar.ParseDate(start); err != nil {
		return leave.Record{}, err
	}
	if rec.End, err = calendar.ParseDate(end); err != nil {
		return leave.Record{}, err
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return rec, nil
}

// Helper functions

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

func isCheckConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "CHECK constraint failed")
}
