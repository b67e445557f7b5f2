package leave

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// CASE - How a candidate range meets the existing annual leave
// =============================================================================

type Case int

const (
	CaseNoOverlap        Case = iota // plain insert
	CaseTotalReplacement             // new covers the annual record entirely
	CaseDivision                     // new sits strictly inside: two fragments
	CaseTrimFromStart                // new starts inside, runs past the end: head fragment
	CaseTrimFromEnd                  // new starts before, ends inside: tail fragment
	CaseMultiReplacement             // several annual records, all replaced, no fragments
)

var caseNames = map[Case]string{
	CaseNoOverlap:        "no_overlap",
	CaseTotalReplacement: "total_replacement",
	CaseDivision:         "division",
	CaseTrimFromStart:    "trim_from_start",
	CaseTrimFromEnd:      "trim_from_end",
	CaseMultiReplacement: "multi_replacement",
}

func (c Case) String() string {
	if name, ok := caseNames[c]; ok {
		return name
	}
	return fmt.Sprintf("case(%d)", int(c))
}

func (c Case) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Rewrites reports whether the case cancels existing records and therefore
// needs confirmation.
func (c Case) Rewrites() bool { return c != CaseNoOverlap }

// Classify decides the case for a candidate of the given kind over r, given
// the Active records it overlaps. Annual leave may overlap nothing, and
// non-annual leave may only replace annual leave.
func Classify(kind Kind, r calendar.Range, overlapped []Record) (Case, error) {
	if len(overlapped) == 0 {
		return CaseNoOverlap, nil
	}
	if kind == KindAnnual {
		return 0, invalid("range", "annual leave %s overlaps %s", r, overlapped[0])
	}
	for _, rec := range overlapped {
		if rec.Kind != KindAnnual {
			return 0, invalid("range", "%s leave %s overlaps %s", kind, r, rec)
		}
	}
	if len(overlapped) > 1 {
		return CaseMultiReplacement, nil
	}

	a := overlapped[0]
	switch {
	case !r.Start.After(a.Start) && !r.End.Before(a.End):
		return CaseTotalReplacement, nil
	case r.Start.After(a.Start) && r.End.Before(a.End):
		return CaseDivision, nil
	case r.Start.After(a.Start):
		return CaseTrimFromStart, nil
	default:
		return CaseTrimFromEnd, nil
	}
}

// =============================================================================
// PLAN - Classification result computed before any mutation
// =============================================================================

// Fragment is an annual segment re-created from the untouched part of a parent.
type Fragment struct {
	ParentID  LeaveID        `json:"parent_id"`
	Range     calendar.Range `json:"range"`
	DaysTaken int            `json:"days_taken"`
}

// Plan is everything the SplitExecutor needs, computed without mutating.
// Callers show it to the operator, then pass it to Engine.Execute.
type Plan struct {
	Agent      Agent
	Request    Request
	Case       Case
	Overlapped []Record
	Fragments  []Fragment // only fragments with DaysTaken > 0

	// Replaces is the record a modification removes first (nil for a new leave).
	Replaces *Record

	// ProjectedBalance is the agent balance if the plan commits unchanged.
	ProjectedBalance decimal.Decimal
}

// fragmentsFor cuts the parts of a that r leaves uncovered.
func fragmentsFor(a Record, r calendar.Range, holidays calendar.HolidaySet) []Fragment {
	var out []Fragment
	if head, ok := a.Range().Before(r.Start); ok {
		out = append(out, Fragment{ParentID: a.ID, Range: head, DaysTaken: calendar.BusinessDays(head, holidays)})
	}
	if tail, ok := a.Range().After(r.End); ok {
		out = append(out, Fragment{ParentID: a.ID, Range: tail, DaysTaken: calendar.BusinessDays(tail, holidays)})
	}

	kept := out[:0]
	for _, f := range out {
		if f.DaysTaken > 0 {
			kept = append(kept, f)
		}
	}
	return kept
}

// buildPlan classifies and computes fragments and the projected balance.
func buildPlan(agent Agent, req Request, overlapped []Record, replaces *Record, policy KindPolicy, holidays calendar.HolidaySet) (*Plan, error) {
	c, err := Classify(req.Kind, req.Range(), overlapped)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Agent:      agent,
		Request:    req,
		Case:       c,
		Overlapped: overlapped,
		Replaces:   replaces,
	}
	switch c {
	case CaseDivision, CaseTrimFromStart, CaseTrimFromEnd:
		plan.Fragments = fragmentsFor(overlapped[0], req.Range(), holidays)
	}

	balance := agent.Balance
	days := func(k Kind, n int) decimal.Decimal {
		if !policy.Decrements(k) {
			return decimal.Zero
		}
		return decimal.NewFromInt(int64(n))
	}
	if replaces != nil {
		balance = balance.Add(days(replaces.Kind, replaces.DaysTaken))
	}
	for _, rec := range overlapped {
		balance = balance.Add(days(rec.Kind, rec.DaysTaken))
	}
	for _, f := range plan.Fragments {
		balance = balance.Sub(days(KindAnnual, f.DaysTaken))
	}
	plan.ProjectedBalance = balance.Sub(days(req.Kind, req.DaysTaken))
	return plan, nil
}
