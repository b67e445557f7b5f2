/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines JSON structures for HTTP API communication. DTOs decouple the
  API contract from the leave package's internal types.

NAMING CONVENTION:
  - *Request:  Incoming request body
  - *DTO:      Outgoing response body (Data Transfer Object)
  - *Response: Wrapper for complex responses

DATE FORMAT:
  All dates are ISO 8601 strings: "2024-03-15" (YYYY-MM-DD).
  Balances are decimal strings: "20.5".

SEE ALSO:
  - handlers.go: Uses these DTOs
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// AGENTS
// =============================================================================

// AgentRequest is the body of POST/PUT /api/agents.
type AgentRequest struct {
	LastName  string          `json:"last_name"`
	FirstName string          `json:"first_name"`
	Reference string          `json:"reference"`
	Grade     string          `json:"grade"`
	Balance   decimal.Decimal `json:"balance"`
}

// AgentDTO represents an agent.
type AgentDTO struct {
	ID        int64           `json:"id"`
	LastName  string          `json:"last_name"`
	FirstName string          `json:"first_name"`
	Reference string          `json:"reference"`
	Grade     string          `json:"grade"`
	Balance   decimal.Decimal `json:"balance"`
}

// AgentListResponse is a page of agents plus the total match count.
type AgentListResponse struct {
	Agents []AgentDTO `json:"agents"`
	Total  int        `json:"total"`
}

// =============================================================================
// LEAVES
// =============================================================================

// LeaveRequest is the body of POST /api/agents/{id}/leaves, the preview
// endpoint and PUT /api/leaves/{id}.
type LeaveRequest struct {
	Kind            string             `json:"kind"`
	Justification   string             `json:"justification,omitempty"`
	CoveringAgentID *int64             `json:"covering_agent_id,omitempty"`
	StartDate       string             `json:"start_date"`
	EndDate         string             `json:"end_date"`
	DaysTaken       int                `json:"days_taken"`
	Certificate     *CertificateUpload `json:"certificate,omitempty"`

	// Confirm approves cancelling or restoring existing leave.
	Confirm bool `json:"confirm"`
}

// CertificateUpload points at a file already on the server's filesystem.
type CertificateUpload struct {
	Path         string `json:"path"`
	DurationDays int    `json:"duration_days"`
	DoctorName   string `json:"doctor_name,omitempty"`
}

// LeaveDTO represents a leave record.
type LeaveDTO struct {
	ID              int64           `json:"id"`
	AgentID         int64           `json:"agent_id"`
	Kind            string          `json:"kind"`
	Justification   string          `json:"justification,omitempty"`
	CoveringAgentID *int64          `json:"covering_agent_id,omitempty"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	DaysTaken       int             `json:"days_taken"`
	Status          string          `json:"status"`
	Certificate     *CertificateDTO `json:"certificate,omitempty"`
}

// CertificateDTO represents a stored medical certificate.
type CertificateDTO struct {
	DurationDays int    `json:"duration_days"`
	DoctorName   string `json:"doctor_name,omitempty"`
	FilePath     string `json:"file_path"`
}

// FragmentDTO is an annual fragment a split would create.
type FragmentDTO struct {
	ParentID  int64  `json:"parent_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	DaysTaken int    `json:"days_taken"`
}

// PlanDTO is the preview of a submission.
type PlanDTO struct {
	Case             string          `json:"case"`
	RequiresConfirm  bool            `json:"requires_confirm"`
	Overlapped       []LeaveDTO      `json:"overlapped"`
	Fragments        []FragmentDTO   `json:"fragments"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	ProjectedBalance decimal.Decimal `json:"projected_balance"`
}

// OutcomeDTO is the result of a submission or modification.
type OutcomeDTO struct {
	Case      string          `json:"case"`
	Leave     LeaveDTO        `json:"leave"`
	Cancelled []LeaveDTO      `json:"cancelled"`
	Fragments []LeaveDTO      `json:"fragments"`
	Replaced  *LeaveDTO       `json:"replaced,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	Warning   string          `json:"warning,omitempty"`
}

// ReversalDTO is the result (or preview) of a deletion.
type ReversalDTO struct {
	Found    bool            `json:"found"`
	Restored *LeaveDTO       `json:"restored,omitempty"`
	Removed  []LeaveDTO      `json:"removed"`
	Balance  decimal.Decimal `json:"balance"`
	Warning  string          `json:"warning,omitempty"`
}

// PromptDTO is returned with 409 when an operation needs confirmation.
type PromptDTO struct {
	Kind      string        `json:"kind"`
	AgentID   int64         `json:"agent_id"`
	Case      string        `json:"case,omitempty"`
	Affected  []LeaveDTO    `json:"affected"`
	Fragments []FragmentDTO `json:"fragments,omitempty"`
	Parent    *LeaveDTO     `json:"parent,omitempty"`
}

// =============================================================================
// CALENDAR
// =============================================================================

// HolidayRequest is the body of POST /api/holidays.
type HolidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// HolidayDTO represents a holiday.
type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring"`
}

// BusinessDaysDTO answers GET /api/calendar/business-days.
type BusinessDaysDTO struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAgentDTO(a leave.Agent) AgentDTO {
	return AgentDTO{
		ID:        int64(a.ID),
		LastName:  a.LastName,
		FirstName: a.FirstName,
		Reference: a.Reference,
		Grade:     a.Grade,
		Balance:   a.Balance,
	}
}

func (r AgentRequest) agent(id leave.AgentID) leave.Agent {
	return leave.Agent{
		ID:        id,
		LastName:  r.LastName,
		FirstName: r.FirstName,
		Reference: r.Reference,
		Grade:     r.Grade,
		Balance:   r.Balance,
	}
}

func toLeaveDTO(rec leave.Record) LeaveDTO {
	dto := LeaveDTO{
		ID:            int64(rec.ID),
		AgentID:       int64(rec.AgentID),
		Kind:          string(rec.Kind),
		Justification: rec.Justification,
		StartDate:     rec.Start.String(),
		EndDate:       rec.End.String(),
		DaysTaken:     rec.DaysTaken,
		Status:        string(rec.Status),
	}
	if rec.CoveringAgentID != nil {
		id := int64(*rec.CoveringAgentID)
		dto.CoveringAgentID = &id
	}
	return dto
}

func toLeaveDTOs(recs []leave.Record) []LeaveDTO {
	dtos := make([]LeaveDTO, 0, len(recs))
	for _, rec := range recs {
		dtos = append(dtos, toLeaveDTO(rec))
	}
	return dtos
}

func toLeaveDTOPtr(rec *leave.Record) *LeaveDTO {
	if rec == nil {
		return nil
	}
	dto := toLeaveDTO(*rec)
	return &dto
}

func toFragmentDTOs(frags []leave.Fragment) []FragmentDTO {
	dtos := make([]FragmentDTO, 0, len(frags))
	for _, f := range frags {
		dtos = append(dtos, FragmentDTO{
			ParentID:  int64(f.ParentID),
			StartDate: f.Range.Start.String(),
			EndDate:   f.Range.End.String(),
			DaysTaken: f.DaysTaken,
		})
	}
	return dtos
}

func toPlanDTO(p *leave.Plan) PlanDTO {
	return PlanDTO{
		Case:             p.Case.String(),
		RequiresConfirm:  p.Case.Rewrites(),
		Overlapped:       toLeaveDTOs(p.Overlapped),
		Fragments:        toFragmentDTOs(p.Fragments),
		CurrentBalance:   p.Agent.Balance,
		ProjectedBalance: p.ProjectedBalance,
	}
}

func toOutcomeDTO(o *leave.Outcome) OutcomeDTO {
	return OutcomeDTO{
		Case:      o.Case.String(),
		Leave:     toLeaveDTO(o.Leave),
		Cancelled: toLeaveDTOs(o.Cancelled),
		Fragments: toLeaveDTOs(o.Fragments),
		Replaced:  toLeaveDTOPtr(o.Replaced),
		Balance:   o.Agent.Balance,
	}
}

func toReversalDTO(r *leave.Reversal) ReversalDTO {
	return ReversalDTO{
		Found:    r.Leave != nil,
		Restored: toLeaveDTOPtr(r.Parent),
		Removed:  toLeaveDTOs(r.Removed),
		Balance:  r.Agent.Balance,
	}
}

func toPromptDTO(p leave.Prompt) PromptDTO {
	dto := PromptDTO{
		Kind:      string(p.Kind),
		AgentID:   int64(p.AgentID),
		Affected:  toLeaveDTOs(p.Affected),
		Fragments: toFragmentDTOs(p.Fragments),
		Parent:    toLeaveDTOPtr(p.Parent),
	}
	if p.Kind == leave.PromptReplace {
		dto.Case = p.Case.String()
	}
	return dto
}

func toHolidayDTO(h calendar.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		Date:      h.Date.String(),
		Name:      h.Name,
		Recurring: h.Recurring,
	}
}

// request converts the body into an engine request for agentID.
func (r LeaveRequest) request(agentID leave.AgentID) (leave.Request, error) {
	start, err := calendar.ParseDate(r.StartDate)
	if err != nil {
		return leave.Request{}, &leave.ValidationError{Field: "start_date", Reason: "use YYYY-MM-DD"}
	}
	end, err := calendar.ParseDate(r.EndDate)
	if err != nil {
		return leave.Request{}, &leave.ValidationError{Field: "end_date", Reason: "use YYYY-MM-DD"}
	}

	req := leave.Request{
		AgentID:       agentID,
		Kind:          leave.ParseKind(r.Kind),
		Justification: r.Justification,
		Start:         start,
		End:           end,
		DaysTaken:     r.DaysTaken,
	}
	if r.CoveringAgentID != nil {
		id := leave.AgentID(*r.CoveringAgentID)
		req.CoveringAgentID = &id
	}
	if r.Certificate != nil {
		req.Certificate = &leave.CertificateUpload{
			SourcePath:   r.Certificate.Path,
			DurationDays: r.Certificate.DurationDays,
			DoctorName:   r.Certificate.DoctorName,
		}
	}
	return req, nil
}
