/*
Package leave is the overlap-resolution and balance-reconciliation engine.

PURPOSE:
  Tracks agents' leave periods and day balances, and resolves the hard case
  where a new leave (typically sick leave) lands inside, across, or over an
  existing annual-leave period. The existing annual record is kept as a
  Cancelled "parent", its untouched parts are re-created as Active
  fragments, and deleting the replacement later restores the parent exactly.

KEY CONCEPTS IN THIS FILE (types.go):
  - Agent:    an employee with a non-negative day balance
  - Record:   one leave period, Active or Cancelled
  - Request:  a candidate leave submitted for creation or modification

INVARIANTS (hold after every committed operation):
  - Agent.Balance >= 0
  - No two Active records of one agent overlap
  - A split parent is either fully replaced (fragments + new record) or
    fully restored, never partially
  - DaysTaken of an annual record equals its business-day count

SEE ALSO:
  - classify.go: geometric case classification
  - split.go:    SplitExecutor (mutations for a classified case)
  - reversal.go: ReversalEngine (split-lineage restore / plain delete)
  - engine.go:   Engine facade used by the api package
*/
package leave

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AgentID int64

type LeaveID int64

// =============================================================================
// KIND - What sort of leave a record is
// =============================================================================

type Kind string

const (
	KindAnnual      Kind = "annual"
	KindSick        Kind = "sick"
	KindExceptional Kind = "exceptional"
	KindMaternity   Kind = "maternity"
	KindPaternity   Kind = "paternity"
	KindUnpaid      Kind = "unpaid"
)

// BuiltinKinds lists the kinds every deployment understands. A KindPolicy
// may add more.
var BuiltinKinds = []Kind{KindAnnual, KindSick, KindExceptional, KindMaternity, KindPaternity, KindUnpaid}

// ParseKind normalizes user input ("Annual ", "SICK") to a Kind.
func ParseKind(s string) Kind {
	return Kind(strings.ToLower(strings.TrimSpace(s)))
}

// =============================================================================
// STATUS - Soft-delete state
// =============================================================================

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled" // replaced by a split, kept for restore
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCancelled
}

// =============================================================================
// AGENT
// =============================================================================

// Agent is an employee. Reference is the unique external code (staff number).
type Agent struct {
	ID        AgentID
	LastName  string
	FirstName string
	Reference string
	Grade     string
	Balance   decimal.Decimal // days, never negative
}

func (a Agent) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// =============================================================================
// RECORD - One leave period
// =============================================================================

type Record struct {
	ID              LeaveID
	AgentID         AgentID
	Kind            Kind
	Justification   string
	CoveringAgentID *AgentID
	Start           calendar.Date
	End             calendar.Date
	DaysTaken       int
	Status          Status
	CreatedAt       time.Time
}

func (r Record) Range() calendar.Range {
	return calendar.NewRange(r.Start, r.End)
}

func (r Record) IsActive() bool { return r.Status == StatusActive }

func (r Record) String() string {
	return fmt.Sprintf("leave #%d (%s %s, %d days, %s)", r.ID, r.Kind, r.Range(), r.DaysTaken, r.Status)
}

// Certificate is the medical certificate attached to a leave (1:1).
type Certificate struct {
	LeaveID      LeaveID
	DurationDays int
	DoctorName   string
	FilePath     string
}

// =============================================================================
// REQUEST - Candidate leave
// =============================================================================

// Request is the input to Plan, Submit and Modify.
type Request struct {
	AgentID         AgentID
	Kind            Kind
	Justification   string
	CoveringAgentID *AgentID
	Start           calendar.Date
	End             calendar.Date
	DaysTaken       int

	// Certificate, when set, is copied into the certificate store after the
	// leave is committed.
	Certificate *CertificateUpload
}

// CertificateUpload describes a certificate file to attach.
type CertificateUpload struct {
	SourcePath   string
	DurationDays int
	DoctorName   string
}

func (r Request) Range() calendar.Range {
	return calendar.NewRange(r.Start, r.End)
}

// record builds the Active record this request will insert.
func (r Request) record() Record {
	return Record{
		AgentID:         r.AgentID,
		Kind:            r.Kind,
		Justification:   r.Justification,
		CoveringAgentID: r.CoveringAgentID,
		Start:           r.Start,
		End:             r.End,
		DaysTaken:       r.DaysTaken,
		Status:          StatusActive,
	}
}
