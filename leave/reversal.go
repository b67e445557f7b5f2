package leave

import (
	"context"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// REVERSAL ENGINE - Delete a leave, restoring its split parent if it has one
// =============================================================================

// ReversalEngine is the inverse of SplitExecutor. Deleting any record that
// came out of a split (the new leave or one of its fragments) removes every
// Active record inside the Cancelled parent and reactivates the parent, so
// the pre-split state comes back with the same id and day count.
type ReversalEngine struct {
	policy KindPolicy
	log    logrus.FieldLogger
}

func NewReversalEngine(policy KindPolicy, log logrus.FieldLogger) *ReversalEngine {
	return &ReversalEngine{policy: policy, log: orDiscard(log)}
}

// Reversal describes a deletion, before or after it is applied.
type Reversal struct {
	Leave   *Record  // nil when the leave did not exist
	Parent  *Record  // set for a split-lineage restore
	Removed []Record // every record physically deleted

	// CertificatePaths are the files to remove once the transaction commits.
	CertificatePaths []string
	Agent            Agent
}

// SplitLineage reports whether the reversal restores a parent.
func (r *Reversal) SplitLineage() bool { return r.Parent != nil }

// Inspect works out what deleting id would do, without mutating.
func (re *ReversalEngine) Inspect(ctx context.Context, s Store, id LeaveID) (*Reversal, error) {
	rec, err := s.GetLeave(ctx, id)
	if err != nil {
		return nil, storageErr("load leave", err)
	}
	if rec == nil {
		return &Reversal{}, nil
	}

	plain := &Reversal{Leave: rec, Removed: []Record{*rec}}
	// A Cancelled record is itself a parent: removing it restores nothing.
	if !rec.IsActive() {
		return plain, nil
	}

	parent, err := s.FindSplitParent(ctx, rec.AgentID, rec.Range())
	if err != nil {
		return nil, storageErr("find split parent", err)
	}
	if parent == nil {
		return plain, nil
	}

	within, err := s.ActiveLeavesWithin(ctx, rec.AgentID, parent.Range())
	if err != nil {
		return nil, storageErr("find split children", err)
	}
	if len(within) == 0 {
		return nil, &ReversalInconsistencyError{LeaveID: id, ParentID: parent.ID}
	}

	// A child that ran past the parent (trim cases) would overlap the
	// restored parent. Then the lineage can't be undone; delete plainly.
	overlapping, err := s.OverlappingActiveLeaves(ctx, rec.AgentID, parent.Range(), 0)
	if err != nil {
		return nil, storageErr("find overlapping leaves", err)
	}
	if len(overlapping) != len(within) {
		re.log.WithFields(logrus.Fields{
			"leave_id":  id,
			"parent_id": parent.ID,
		}).Warn("split parent cannot be restored without overlap, deleting leave only")
		return plain, nil
	}

	// Fragments of the parent that were split again left their own Cancelled
	// records behind. Once the parent is back they have no lineage left.
	remainder, err := re.cancelledWithin(ctx, s, *parent)
	if err != nil {
		return nil, err
	}

	return &Reversal{Leave: rec, Parent: parent, Removed: append(within, remainder...)}, nil
}

// cancelledWithin lists the Cancelled records of parent's kind inside its
// range, parent excluded.
func (re *ReversalEngine) cancelledWithin(ctx context.Context, s Store, parent Record) ([]Record, error) {
	all, err := s.ListLeaves(ctx, parent.AgentID)
	if err != nil {
		return nil, storageErr("list leaves", err)
	}
	var out []Record
	for _, r := range all {
		if r.ID == parent.ID || r.IsActive() || r.Kind != parent.Kind {
			continue
		}
		if parent.Range().Covers(r.Range()) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Reverse deletes id inside the given transaction Store. Deleting an absent
// leave is a no-op.
func (re *ReversalEngine) Reverse(ctx context.Context, s Store, id LeaveID) (*Reversal, error) {
	rev, err := re.Inspect(ctx, s, id)
	if err != nil {
		return nil, err
	}
	if rev.Leave == nil {
		return rev, nil
	}

	ledger := NewBalanceLedger(s, re.policy)
	for _, rec := range rev.Removed {
		cert, err := s.GetCertificate(ctx, rec.ID)
		if err != nil {
			return nil, storageErr("load certificate", err)
		}
		if cert != nil && cert.FilePath != "" {
			rev.CertificatePaths = append(rev.CertificatePaths, cert.FilePath)
		}
		if err := s.DeleteLeave(ctx, rec.ID); err != nil {
			return nil, storageErr("delete leave", err)
		}
		// Cancelled records were already credited when they were cancelled.
		if rec.IsActive() {
			if err := ledger.Refund(ctx, rec); err != nil {
				return nil, err
			}
		}
	}

	if rev.Parent != nil {
		if err := s.SetLeaveStatus(ctx, rev.Parent.ID, StatusActive); err != nil {
			return nil, storageErr("restore leave", err)
		}
		if err := ledger.Charge(ctx, *rev.Parent); err != nil {
			return nil, err
		}
		rev.Parent.Status = StatusActive
	}

	agent, err := s.GetAgent(ctx, rev.Leave.AgentID)
	if err != nil {
		return nil, storageErr("load agent", err)
	}
	if agent != nil {
		rev.Agent = *agent
	}

	fields := logrus.Fields{"agent_id": rev.Leave.AgentID, "leave_id": id, "removed": len(rev.Removed)}
	if rev.Parent != nil {
		fields["parent_id"] = rev.Parent.ID
		re.log.WithFields(fields).Info("split reversed, parent restored")
	} else {
		re.log.WithFields(fields).Info("leave deleted")
	}
	return rev, nil
}
