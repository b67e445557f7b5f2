package leave

import (
	"context"
	"sort"

	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// OVERLAP DETECTOR
// =============================================================================

// DetectOverlaps returns the agent's Active records intersecting r, excluding
// the record being modified (0 = none), ordered by start date.
func DetectOverlaps(ctx context.Context, s Store, agentID AgentID, r calendar.Range, exclude LeaveID) ([]Record, error) {
	found, err := s.OverlappingActiveLeaves(ctx, agentID, r, exclude)
	if err != nil {
		return nil, storageErr("find overlapping leaves", err)
	}

	out := make([]Record, 0, len(found))
	for _, rec := range found {
		if exclude != 0 && rec.ID == exclude {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func sameRecords(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[LeaveID]Record, len(a))
	for _, r := range a {
		ids[r.ID] = r
	}
	for _, r := range b {
		prev, ok := ids[r.ID]
		if !ok || !prev.Start.Equal(r.Start) || !prev.End.Equal(r.End) || prev.DaysTaken != r.DaysTaken {
			return false
		}
	}
	return true
}
