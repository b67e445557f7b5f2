package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// HOLIDAY CALENDAR (calendar.HolidaySource)
// =============================================================================

// SaveHoliday inserts or updates a holiday. An empty ID gets a new UUID.
func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) (calendar.Holiday, error) {
	if h.Date.IsZero() {
		return h, fmt.Errorf("holiday date is required")
	}
	h.Name = strings.TrimSpace(h.Name)
	if h.Name == "" {
		return h, fmt.Errorf("holiday name is required")
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			name = excluded.name,
			recurring = excluded.recurring
	`,
		h.ID,
		h.Date.String(),
		h.Name,
		h.Recurring,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return h, fmt.Errorf("holiday %q on %s already exists", h.Name, h.Date)
		}
		return h, fmt.Errorf("failed to save holiday: %w", err)
	}
	return h, nil
}

// DeleteHoliday deletes a holiday by ID. Reports whether it existed.
func (s *Store) DeleteHoliday(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Holidays returns one-off holidays in [fromYear, toYear] and every
// recurring holiday.
func (s *Store) Holidays(ctx context.Context, fromYear, toYear int) ([]calendar.Holiday, error) {
	return s.queryHolidays(ctx, `
		SELECT id, date, name, recurring
		FROM holidays
		WHERE recurring = TRUE
		   OR CAST(strftime('%Y', date) AS INTEGER) BETWEEN ? AND ?
		ORDER BY date ASC
	`, fromYear, toYear)
}

// ListHolidays returns all holidays (for admin UI).
func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	return s.queryHolidays(ctx, "SELECT id, date, name, recurring FROM holidays ORDER BY date ASC")
}

// SeedDefaultHolidays inserts the fixed public holidays that are not yet
// present and returns how many were added.
func (s *Store) SeedDefaultHolidays(ctx context.Context) (int, error) {
	added := 0
	for _, h := range calendar.DefaultHolidays() {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO holidays (id, date, name, recurring, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(date, name) DO NOTHING
		`, uuid.NewString(), h.Date.String(), h.Name, h.Recurring, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return added, fmt.Errorf("failed to seed holiday %q: %w", h.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			added++
		}
	}
	return added, nil
}

func (s *Store) queryHolidays(ctx context.Context, query string, args ...any) ([]calendar.Holiday, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holidays []calendar.Holiday
	for rows.Next() {
		var h calendar.Holiday
		var dateStr string
		if err := rows.Scan(&h.ID, &dateStr, &h.Name, &h.Recurring); err != nil {
			return nil, err
		}
		if h.Date, err = calendar.ParseDate(dateStr); err != nil {
			return nil, err
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}
