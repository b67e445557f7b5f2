package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// AGENT DIRECTORY
// =============================================================================

// AgentFilter narrows ListAgents. Term matches names and reference code.
type AgentFilter struct {
	Term   string
	Limit  int // 0 = no limit
	Offset int
}

func (f AgentFilter) where() (string, []any) {
	term := strings.TrimSpace(f.Term)
	if term == "" {
		return "", nil
	}
	like := "%" + term + "%"
	return " WHERE last_name LIKE ? OR first_name LIKE ? OR reference LIKE ?", []any{like, like, like}
}

// CreateAgent adds an agent and returns its ID.
// A taken reference code returns leave.ErrReferenceConflict.
func (s *Store) CreateAgent(ctx context.Context, a leave.Agent) (leave.AgentID, error) {
	if err := validateAgent(a); err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (last_name, first_name, reference, grade, balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		strings.TrimSpace(a.LastName),
		strings.TrimSpace(a.FirstName),
		strings.TrimSpace(a.Reference),
		a.Grade,
		a.Balance.String(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, agentWriteError(a, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read agent id: %w", err)
	}
	return leave.AgentID(id), nil
}

// UpdateAgent overwrites every field of an existing agent, balance included.
func (s *Store) UpdateAgent(ctx context.Context, a leave.Agent) error {
	if err := validateAgent(a); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE agents
		SET last_name = ?, first_name = ?, reference = ?, grade = ?, balance = ?
		WHERE id = ?
	`,
		strings.TrimSpace(a.LastName),
		strings.TrimSpace(a.FirstName),
		strings.TrimSpace(a.Reference),
		a.Grade,
		a.Balance.String(),
		a.ID,
	)
	if err != nil {
		return agentWriteError(a, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("agent %d: %w", a.ID, leave.ErrAgentNotFound)
	}
	return nil
}

// DeleteAgent removes an agent with all their leaves and certificates.
// It returns the certificate file paths that are now orphaned.
func (s *Store) DeleteAgent(ctx context.Context, id leave.AgentID) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT c.file_path FROM certificates c
		JOIN leaves l ON l.id = c.leave_id
		WHERE l.agent_id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, stmt := range []string{
		"DELETE FROM certificates WHERE leave_id IN (SELECT id FROM leaves WHERE agent_id = ?)",
		"DELETE FROM leaves WHERE agent_id = ?",
		"UPDATE leaves SET covering_agent_id = NULL WHERE covering_agent_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return nil, err
		}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM agents WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("agent %d: %w", id, leave.ErrAgentNotFound)
	}

	return paths, tx.Commit()
}

// ListAgents returns agents ordered by name.
func (s *Store) ListAgents(ctx context.Context, f AgentFilter) ([]leave.Agent, error) {
	where, args := f.where()
	query := "SELECT " + agentColumns + " FROM agents" + where + " ORDER BY last_name, first_name, id"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []leave.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// CountAgents returns how many agents match the filter term.
func (s *Store) CountAgents(ctx context.Context, f AgentFilter) (int, error) {
	where, args := f.where()
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM agents"+where, args...).Scan(&n)
	return n, err
}

func validateAgent(a leave.Agent) error {
	switch {
	case strings.TrimSpace(a.LastName) == "":
		return &leave.ValidationError{Field: "last_name", Reason: "required"}
	case strings.TrimSpace(a.Reference) == "":
		return &leave.ValidationError{Field: "reference", Reason: "required"}
	case a.Balance.IsNegative():
		return &leave.ValidationError{Field: "balance", Reason: "must not be negative"}
	}
	return nil
}

func agentWriteError(a leave.Agent, err error) error {
	switch {
	case isUniqueConstraintError(err):
		return fmt.Errorf("reference %q: %w", a.Reference, leave.ErrReferenceConflict)
	case isCheckConstraintError(err):
		return &leave.ValidationError{Field: "agent", Reason: err.Error()}
	}
	return fmt.Errorf("failed to save agent: %w", err)
}
