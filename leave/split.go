package leave

import (
	"context"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// SPLIT EXECUTOR - Mutations for a classified case
// =============================================================================

// SplitExecutor applies a Plan to a Store. It must be handed the Store of
// an open transaction: any error leaves the caller to roll back.
type SplitExecutor struct {
	policy KindPolicy
	log    logrus.FieldLogger
}

func NewSplitExecutor(policy KindPolicy, log logrus.FieldLogger) *SplitExecutor {
	return &SplitExecutor{policy: policy, log: orDiscard(log)}
}

// Outcome is what a committed submission or modification changed.
type Outcome struct {
	Case      Case
	Leave     Record   // the inserted record, with its id
	Cancelled []Record // annual records now Cancelled
	Fragments []Record // annual fragments inserted
	Replaced  *Record  // record removed by a modification
	Agent     Agent    // agent after the operation
}

// Execute cancels and credits every overlapped record, inserts the plan's
// fragments with a debit each, then inserts the new record.
func (x *SplitExecutor) Execute(ctx context.Context, s Store, plan *Plan) (*Outcome, error) {
	ledger := NewBalanceLedger(s, x.policy)
	out := &Outcome{Case: plan.Case}

	for _, rec := range plan.Overlapped {
		if err := s.SetLeaveStatus(ctx, rec.ID, StatusCancelled); err != nil {
			return nil, storageErr("cancel leave", err)
		}
		if err := ledger.Refund(ctx, rec); err != nil {
			return nil, err
		}
		rec.Status = StatusCancelled
		out.Cancelled = append(out.Cancelled, rec)
	}

	parents := make(map[LeaveID]Record, len(plan.Overlapped))
	for _, rec := range plan.Overlapped {
		parents[rec.ID] = rec
	}
	for _, f := range plan.Fragments {
		parent := parents[f.ParentID]
		frag := Record{
			AgentID:         plan.Request.AgentID,
			Kind:            KindAnnual,
			Justification:   parent.Justification,
			CoveringAgentID: parent.CoveringAgentID,
			Start:           f.Range.Start,
			End:             f.Range.End,
			DaysTaken:       f.DaysTaken,
			Status:          StatusActive,
		}
		inserted, err := x.insert(ctx, s, ledger, frag)
		if err != nil {
			return nil, err
		}
		out.Fragments = append(out.Fragments, inserted)
	}

	inserted, err := x.insert(ctx, s, ledger, plan.Request.record())
	if err != nil {
		return nil, err
	}
	out.Leave = inserted

	x.log.WithFields(logrus.Fields{
		"agent_id":  plan.Request.AgentID,
		"leave_id":  inserted.ID,
		"case":      plan.Case.String(),
		"cancelled": len(out.Cancelled),
		"fragments": len(out.Fragments),
	}).Info("leave recorded")
	return out, nil
}

func (x *SplitExecutor) insert(ctx context.Context, s Store, ledger *BalanceLedger, rec Record) (Record, error) {
	if err := ledger.Charge(ctx, rec); err != nil {
		return Record{}, err
	}
	id, err := s.InsertLeave(ctx, rec)
	if err != nil {
		return Record{}, storageErr("insert leave", err)
	}
	rec.ID = id
	return rec, nil
}
