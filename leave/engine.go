package leave

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// ENGINE - Facade over detection, classification, execution and reversal
// =============================================================================

// Engine is the entry point for leave submissions, modifications and
// deletions. Every mutation runs inside one store transaction; certificate
// files are handled after commit.
//
//	plan, err := engine.Plan(ctx, req)     // no mutation, shows the case
//	out, err := engine.Execute(ctx, plan)  // confirms, then commits
//	rev, err := engine.Delete(ctx, id)     // restores a split parent if any
type Engine struct {
	store    TxStore
	cal      *calendar.Calendar
	policy   KindPolicy
	files    CertificateFiles
	confirm  Confirmer
	log      logrus.FieldLogger
	executor *SplitExecutor
	reversal *ReversalEngine
}

type Option func(*Engine)

// WithPolicy sets the kind table. Default is DefaultPolicy().
func WithPolicy(p KindPolicy) Option { return func(e *Engine) { e.policy = p } }

func WithCertificateFiles(f CertificateFiles) Option { return func(e *Engine) { e.files = f } }

// WithConfirmer sets the default confirmer. Default is NeverConfirm.
func WithConfirmer(c Confirmer) Option { return func(e *Engine) { e.confirm = c } }

func WithLogger(l logrus.FieldLogger) Option { return func(e *Engine) { e.log = l } }

func NewEngine(store TxStore, cal *calendar.Calendar, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		cal:     cal,
		policy:  DefaultPolicy(),
		confirm: NeverConfirm,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cal == nil {
		e.cal = calendar.New(nil)
	}
	e.log = orDiscard(e.log)
	e.executor = NewSplitExecutor(e.policy, e.log)
	e.reversal = NewReversalEngine(e.policy, e.log)
	return e
}

// Confirming returns a copy of the engine answering prompts with c.
func (e *Engine) Confirming(c Confirmer) *Engine {
	cp := *e
	cp.confirm = c
	return &cp
}

func (e *Engine) Policy() KindPolicy { return e.policy }

// =============================================================================
// SUBMISSION
// =============================================================================

// Plan validates req and classifies it against the agent's Active leave.
// Nothing is written.
func (e *Engine) Plan(ctx context.Context, req Request) (*Plan, error) {
	return e.planFor(ctx, req, nil)
}

// Submit plans and executes a new leave.
func (e *Engine) Submit(ctx context.Context, req Request) (*Outcome, error) {
	plan, err := e.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

// Modify replaces leave id with req. The old record is removed plainly and
// req is classified with the old record ignored, all in one transaction.
func (e *Engine) Modify(ctx context.Context, id LeaveID, req Request) (*Outcome, error) {
	old, err := e.store.GetLeave(ctx, id)
	if err != nil {
		return nil, storageErr("load leave", err)
	}
	if old == nil {
		return nil, fmt.Errorf("leave %d: %w", id, ErrLeaveNotFound)
	}
	if !old.IsActive() {
		return nil, invalid("leave", "leave #%d is cancelled and cannot be modified", id)
	}

	req.AgentID = old.AgentID
	plan, err := e.planFor(ctx, req, old)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, plan)
}

// Execute asks for confirmation when the plan rewrites existing leave, then
// applies it in one transaction. If the overlapping records changed since
// the plan was built, it fails with ErrPlanStale and writes nothing.
//
// A non-nil Outcome with an AttachmentWarning means the leave was saved but
// the certificate step failed.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*Outcome, error) {
	if plan.Case.Rewrites() {
		prompt := Prompt{
			Kind:      PromptReplace,
			AgentID:   plan.Agent.ID,
			Case:      plan.Case,
			Affected:  plan.Overlapped,
			Fragments: plan.Fragments,
		}
		if !e.confirm.Confirm(ctx, prompt) {
			return nil, &NotConfirmedError{Prompt: prompt}
		}
	}

	var (
		out       *Outcome
		previous  *Certificate
		certMoved bool
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		var exclude LeaveID
		if plan.Replaces != nil {
			exclude = plan.Replaces.ID
		}
		current, err := DetectOverlaps(ctx, s, plan.Agent.ID, plan.Request.Range(), exclude)
		if err != nil {
			return err
		}
		if !sameRecords(current, plan.Overlapped) {
			return stale("overlapping leaves changed since the plan was made")
		}

		if plan.Replaces != nil {
			previous, err = e.removeReplaced(ctx, s, *plan.Replaces)
			if err != nil {
				return err
			}
		}

		out, err = e.executor.Execute(ctx, s, plan)
		if err != nil {
			return err
		}
		out.Replaced = plan.Replaces

		// The old certificate follows the modified leave unless a new one
		// is uploaded or the new kind takes none.
		if previous != nil && plan.Request.Certificate == nil && e.policy.TakesCertificate(plan.Request.Kind) {
			moved := *previous
			moved.LeaveID = out.Leave.ID
			if err := s.SaveCertificate(ctx, moved); err != nil {
				return storageErr("move certificate", err)
			}
			certMoved = true
		}

		agent, err := s.GetAgent(ctx, plan.Agent.ID)
		if err != nil {
			return storageErr("load agent", err)
		}
		if agent != nil {
			out.Agent = *agent
		}
		return nil
	})
	if err != nil {
		e.log.WithError(err).WithFields(logrus.Fields{
			"agent_id": plan.Agent.ID,
			"case":     plan.Case.String(),
		}).Warn("leave operation rolled back")
		return nil, storageErr("commit", err)
	}

	var previousPath string
	if previous != nil {
		previousPath = previous.FilePath
	}
	var warn error
	switch {
	case plan.Request.Certificate != nil:
		warn = e.attachCertificate(ctx, out.Agent, out.Leave.ID, plan.Request.Certificate, previousPath)
	case previous != nil && !certMoved:
		warn = e.removeFiles(previousPath)
	}
	if w, ok := warn.(*AttachmentWarning); ok {
		w.LeaveID = out.Leave.ID
		return out, w
	}
	return out, nil
}

// removeReplaced drops the record a modification replaces, crediting it
// back, and returns its certificate row if it had one.
func (e *Engine) removeReplaced(ctx context.Context, s Store, old Record) (*Certificate, error) {
	current, err := s.GetLeave(ctx, old.ID)
	if err != nil {
		return nil, storageErr("load leave", err)
	}
	if current == nil || !current.IsActive() || !sameRecords([]Record{*current}, []Record{old}) {
		return nil, stale(fmt.Sprintf("leave #%d changed since the plan was made", old.ID))
	}

	cert, err := s.GetCertificate(ctx, old.ID)
	if err != nil {
		return nil, storageErr("load certificate", err)
	}
	if err := s.DeleteLeave(ctx, old.ID); err != nil {
		return nil, storageErr("delete leave", err)
	}
	if err := NewBalanceLedger(s, e.policy).Refund(ctx, old); err != nil {
		return nil, err
	}
	return cert, nil
}

// =============================================================================
// DELETION
// =============================================================================

// PreviewDelete reports what Delete would remove and restore.
func (e *Engine) PreviewDelete(ctx context.Context, id LeaveID) (*Reversal, error) {
	return e.reversal.Inspect(ctx, e.store, id)
}

// Delete removes leave id. If it came out of a split, the whole split is
// undone (after confirmation). Deleting an absent leave is a no-op.
func (e *Engine) Delete(ctx context.Context, id LeaveID) (*Reversal, error) {
	preview, err := e.PreviewDelete(ctx, id)
	if err != nil {
		return nil, err
	}
	if preview.Leave == nil {
		return preview, nil
	}
	if preview.SplitLineage() {
		prompt := Prompt{
			Kind:     PromptRestoreSplit,
			AgentID:  preview.Leave.AgentID,
			Affected: preview.Removed,
			Parent:   preview.Parent,
		}
		if !e.confirm.Confirm(ctx, prompt) {
			return nil, &NotConfirmedError{Prompt: prompt}
		}
	}

	var rev *Reversal
	err = e.store.WithTx(ctx, func(s Store) error {
		var err error
		rev, err = e.reversal.Reverse(ctx, s, id)
		if err != nil {
			return err
		}
		if rev.SplitLineage() != preview.SplitLineage() {
			return stale(fmt.Sprintf("split lineage of leave #%d changed", id))
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("commit", err)
	}

	if warn := e.removeFiles(rev.CertificatePaths...); warn != nil {
		if w, ok := warn.(*AttachmentWarning); ok {
			w.LeaveID = id
		}
		return rev, warn
	}
	return rev, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// BusinessDays counts business days in r against the configured holidays.
func (e *Engine) BusinessDays(ctx context.Context, r calendar.Range) (int, error) {
	if !r.Valid() {
		return 0, invalid("range", "%s is not a valid range", r)
	}
	holidays, err := e.cal.HolidaysFor(ctx, r)
	if err != nil {
		return 0, storageErr("load holidays", err)
	}
	return calendar.BusinessDays(r, holidays), nil
}

func (e *Engine) planFor(ctx context.Context, req Request, replaces *Record) (*Plan, error) {
	req, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	agent, err := e.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, storageErr("load agent", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("agent %d: %w", req.AgentID, ErrAgentNotFound)
	}
	if req.CoveringAgentID != nil {
		covering, err := e.store.GetAgent(ctx, *req.CoveringAgentID)
		if err != nil {
			return nil, storageErr("load covering agent", err)
		}
		if covering == nil {
			return nil, invalid("covering_agent_id", "agent %d does not exist", *req.CoveringAgentID)
		}
	}

	var exclude LeaveID
	if replaces != nil {
		exclude = replaces.ID
	}
	overlapped, err := DetectOverlaps(ctx, e.store, agent.ID, req.Range(), exclude)
	if err != nil {
		return nil, err
	}

	ranges := []calendar.Range{req.Range()}
	for _, rec := range overlapped {
		ranges = append(ranges, rec.Range())
	}
	if replaces != nil {
		ranges = append(ranges, replaces.Range())
	}
	holidays, err := e.cal.HolidaysFor(ctx, ranges...)
	if err != nil {
		return nil, storageErr("load holidays", err)
	}

	if req.Kind == KindAnnual {
		if n := calendar.BusinessDays(req.Range(), holidays); n != req.DaysTaken {
			return nil, invalid("days_taken", "annual leave %s counts %d business days, got %d", req.Range(), n, req.DaysTaken)
		}
	}

	plan, err := buildPlan(*agent, req, overlapped, replaces, e.policy, holidays)
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"agent_id": agent.ID,
		"case":     plan.Case.String(),
		"range":    req.Range().String(),
	}).Debug("leave classified")
	return plan, nil
}

// validate checks everything that needs no store access.
func (e *Engine) validate(req Request) (Request, error) {
	req.Kind = ParseKind(string(req.Kind))
	switch {
	case req.Kind == "" || !e.policy.Known(req.Kind):
		return req, invalid("kind", "unknown leave kind %q", req.Kind)
	case req.Start.IsZero():
		return req, invalid("start_date", "required")
	case req.End.IsZero():
		return req, invalid("end_date", "required")
	case req.End.Before(req.Start):
		return req, invalid("end_date", "%s is before start %s", req.End, req.Start)
	case req.DaysTaken <= 0:
		return req, invalid("days_taken", "must be positive, got %d", req.DaysTaken)
	case req.CoveringAgentID != nil && *req.CoveringAgentID == req.AgentID:
		return req, invalid("covering_agent_id", "an agent cannot cover their own leave")
	}
	if up := req.Certificate; up != nil {
		switch {
		case !e.policy.TakesCertificate(req.Kind):
			return req, invalid("certificate", "%s leave takes no certificate", req.Kind)
		case up.SourcePath == "":
			return req, invalid("certificate.path", "required")
		case up.DurationDays < 0:
			return req, invalid("certificate.duration_days", "must not be negative")
		}
	}
	return req, nil
}

func stale(reason string) error {
	return &ValidationError{Field: "plan", Reason: reason, Err: ErrPlanStale}
}

func orDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log != nil {
		return log
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
