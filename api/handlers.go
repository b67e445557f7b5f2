/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine and the agent/holiday directories via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  leave package.

ENDPOINTS:
  Agents:
    GET    /api/agents?term=&limit=&offset=  Search agents
    POST   /api/agents                       Create agent
    GET    /api/agents/{id}                  Get agent
    PUT    /api/agents/{id}                  Update agent
    DELETE /api/agents/{id}                  Delete agent and their leaves

  Leaves:
    GET    /api/agents/{id}/leaves           Leave history
    POST   /api/agents/{id}/leaves/preview   Classify without writing
    POST   /api/agents/{id}/leaves           Submit leave
    GET    /api/leaves/{id}                  Get leave
    PUT    /api/leaves/{id}                  Modify leave
    GET    /api/leaves/{id}/deletion         Preview a delete
    DELETE /api/leaves/{id}?confirm=true     Delete leave

  Calendar:
    GET    /api/holidays?from=&to=           Holidays (years, optional)
    POST   /api/holidays                     Create holiday
    POST   /api/holidays/defaults            Add fixed public holidays
    DELETE /api/holidays/{id}                Delete holiday
    GET    /api/calendar/business-days       Count business days

CONFIRMATION:
  Cancelling or restoring existing leave needs "confirm": true (body) or
  ?confirm=true (delete). Without it the handler answers 409 with the
  prompt the operator must approve.

CERTIFICATES:
  certificate.path names a file already in the inbox directory (absolute,
  or relative to the inbox). Anything outside it is a 400.

ERROR HANDLING:
  - 400: Validation errors, stale plan, invalid input
  - 404: Agent or leave not found
  - 409: Confirmation required, reference conflict, reversal inconsistency
  - 422: Insufficient balance
  - 500: Storage failures
  A certificate failure after commit still answers 200/201 with "warning".

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Engine *leave.Engine
	Files  leave.CertificateFiles // optional; cleans up after agent deletion
	Log    logrus.FieldLogger

	// Inbox is the only directory certificate paths may point into.
	// Empty rejects every certificate.
	Inbox string
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, engine *leave.Engine, files leave.CertificateFiles, inbox string, log logrus.FieldLogger) *Handler {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Handler{Store: store, Engine: engine, Files: files, Log: log, Inbox: inbox}
}

// =============================================================================
// AGENT HANDLERS
// =============================================================================

// ListAgents searches agents by name or reference, paginated.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := sqlite.AgentFilter{Term: q.Get("term")}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset", err)
		return
	}

	agents, err := h.Store.ListAgents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list agents", err)
		return
	}
	total, err := h.Store.CountAgents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count agents", err)
		return
	}

	resp := AgentListResponse{Agents: make([]AgentDTO, 0, len(agents)), Total: total}
	for _, a := range agents {
		resp.Agents = append(resp.Agents, toAgentDTO(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateAgent creates a new agent.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	id, err := h.Store.CreateAgent(r.Context(), req.agent(0))
	if err != nil {
		writeDomainError(w, "Failed to create agent", err)
		return
	}
	h.respondAgent(w, r, id, http.StatusCreated)
}

// GetAgent returns a single agent.
func (h *Handler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := agentIDParam(w, r)
	if !ok {
		return
	}
	h.respondAgent(w, r, id, http.StatusOK)
}

// UpdateAgent overwrites an agent's details and balance.
func (h *Handler) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := agentIDParam(w, r)
	if !ok {
		return
	}
	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.UpdateAgent(r.Context(), req.agent(id)); err != nil {
		writeDomainError(w, "Failed to update agent", err)
		return
	}
	h.respondAgent(w, r, id, http.StatusOK)
}

// DeleteAgent removes an agent with their leaves and certificate files.
func (h *Handler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := agentIDParam(w, r)
	if !ok {
		return
	}

	paths, err := h.Store.DeleteAgent(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to delete agent", err)
		return
	}
	if h.Files != nil {
		for _, p := range paths {
			if err := h.Files.Remove(p); err != nil {
				h.Log.WithError(err).WithField("path", p).Warn("certificate file not removed")
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondAgent(w http.ResponseWriter, r *http.Request, id leave.AgentID, status int) {
	agent, err := h.Store.GetAgent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get agent", err)
		return
	}
	if agent == nil {
		writeError(w, http.StatusNotFound, "Agent not found", nil)
		return
	}
	writeJSON(w, status, toAgentDTO(*agent))
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ListLeaves returns every record of an agent, cancelled ones included.
func (h *Handler) ListLeaves(w http.ResponseWriter, r *http.Request) {
	id, ok := agentIDParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	agent, err := h.Store.GetAgent(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get agent", err)
		return
	}
	if agent == nil {
		writeError(w, http.StatusNotFound, "Agent not found", nil)
		return
	}

	recs, err := h.Store.ListLeaves(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leaves", err)
		return
	}
	dtos := toLeaveDTOs(recs)
	for i := range dtos {
		if err := h.attachCertificateDTO(r, &dtos[i]); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load certificate", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PreviewLeave classifies a submission and returns the plan without writing.
func (h *Handler) PreviewLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := agentIDParam(w, r)
	if !ok {
		return
	}
	_, req, ok := h.decodeLeaveRequest(w, r, id)
	if !ok {
		return
	}

	plan, err := h.Engine.Plan(r.Context(), req)
	if err != nil {
		writeDomainError(w, "Leave rejected", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// SubmitLeave records a new leave.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := agentIDParam(w, r)
	if !ok {
		return
	}
	body, req, ok := h.decodeLeaveRequest(w, r, id)
	if !ok {
		return
	}

	out, err := h.Engine.Confirming(leave.FixedAnswer(body.Confirm)).Submit(r.Context(), req)
	h.respondOutcome(w, http.StatusCreated, out, err)
}

// GetLeave returns one record with its certificate.
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := leaveIDParam(w, r)
	if !ok {
		return
	}

	rec, err := h.Store.GetLeave(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get leave", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Leave not found", nil)
		return
	}
	dto := toLeaveDTO(*rec)
	if err := h.attachCertificateDTO(r, &dto); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load certificate", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// ModifyLeave replaces a record with new data.
func (h *Handler) ModifyLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := leaveIDParam(w, r)
	if !ok {
		return
	}
	// The agent comes from the existing record.
	body, req, ok := h.decodeLeaveRequest(w, r, 0)
	if !ok {
		return
	}

	out, err := h.Engine.Confirming(leave.FixedAnswer(body.Confirm)).Modify(r.Context(), id, req)
	h.respondOutcome(w, http.StatusOK, out, err)
}

// PreviewDelete reports what deleting a leave would remove and restore.
func (h *Handler) PreviewDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := leaveIDParam(w, r)
	if !ok {
		return
	}

	rev, err := h.Engine.PreviewDelete(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Delete rejected", err)
		return
	}
	if rev.Leave == nil {
		writeError(w, http.StatusNotFound, "Leave not found", nil)
		return
	}
	dto := toReversalDTO(rev)
	agent, err := h.Store.GetAgent(r.Context(), rev.Leave.AgentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get agent", err)
		return
	}
	if agent != nil {
		dto.Balance = agent.Balance // current balance; the delete has not run
	}
	writeJSON(w, http.StatusOK, dto)
}

// DeleteLeave removes a leave, undoing its split when it came from one.
// Deleting an absent leave is not an error.
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	id, ok := leaveIDParam(w, r)
	if !ok {
		return
	}
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))

	rev, err := h.Engine.Confirming(leave.FixedAnswer(confirm)).Delete(r.Context(), id)
	if err != nil && !leave.IsWarning(err) {
		writeDomainError(w, "Delete rejected", err)
		return
	}
	dto := toReversalDTO(rev)
	if err != nil {
		dto.Warning = err.Error()
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) respondOutcome(w http.ResponseWriter, status int, out *leave.Outcome, err error) {
	if err != nil && !leave.IsWarning(err) {
		writeDomainError(w, "Leave rejected", err)
		return
	}
	dto := toOutcomeDTO(out)
	if err != nil {
		h.Log.WithError(err).WithField("leave_id", out.Leave.ID).Warn("leave saved without certificate")
		dto.Warning = err.Error()
	}
	writeJSON(w, status, dto)
}

func (h *Handler) attachCertificateDTO(r *http.Request, dto *LeaveDTO) error {
	cert, err := h.Store.GetCertificate(r.Context(), leave.LeaveID(dto.ID))
	if err != nil || cert == nil {
		return err
	}
	dto.Certificate = &CertificateDTO{
		DurationDays: cert.DurationDays,
		DoctorName:   cert.DoctorName,
		FilePath:     cert.FilePath,
	}
	return nil
}

func (h *Handler) decodeLeaveRequest(w http.ResponseWriter, r *http.Request, agentID leave.AgentID) (LeaveRequest, leave.Request, bool) {
	var body LeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return body, leave.Request{}, false
	}
	req, err := body.request(agentID)
	if err == nil && req.Certificate != nil {
		req.Certificate.SourcePath, err = inboxPath(h.Inbox, req.Certificate.SourcePath)
	}
	if err != nil {
		writeDomainError(w, "Invalid leave", err)
		return body, leave.Request{}, false
	}
	return body, req, true
}

// inboxPath resolves p against the inbox and rejects anything that lands
// outside it, symlinks included. Relative paths are taken from the inbox.
func inboxPath(inbox, p string) (string, error) {
	outside := &leave.ValidationError{Field: "certificate.path", Reason: "must be a file inside the certificate inbox"}
	if p == "" {
		return p, nil // the engine reports the missing path
	}
	if inbox == "" {
		return "", outside
	}
	root, err := filepath.Abs(inbox)
	if err != nil {
		return "", outside
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)
	// A missing file keeps its lexical path; copying it fails later as a warning.
	if resolved, err := filepath.EvalSymlinks(full); err == nil {
		full = resolved
	}

	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", outside
	}
	return full, nil
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListHolidays returns all holidays, or those applying to the from..to years.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		holidays []calendar.Holiday
		err      error
	)
	if q.Get("from") == "" && q.Get("to") == "" {
		holidays, err = h.Store.ListHolidays(ctx)
	} else {
		from, ferr := strconv.Atoi(q.Get("from"))
		to, terr := strconv.Atoi(q.Get("to"))
		if ferr != nil || terr != nil || to < from {
			writeError(w, http.StatusBadRequest, "from and to must be years with from <= to", nil)
			return
		}
		holidays, err = h.Store.Holidays(ctx, from, to)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}

	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a one-off or recurring holiday.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	saved, err := h.Store.SaveHoliday(r.Context(), calendar.Holiday{Date: date, Name: req.Name, Recurring: req.Recurring})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(saved))
}

// AddDefaultHolidays inserts the fixed public holidays not yet present.
func (h *Handler) AddDefaultHolidays(w http.ResponseWriter, r *http.Request) {
	added, err := h.Store.SeedDefaultHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to add default holidays", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

// DeleteHoliday removes a holiday.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	found, err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "Holiday not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BusinessDays counts business days between start and end, inclusive.
func (h *Handler) BusinessDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := calendar.ParseDate(q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use YYYY-MM-DD)", err)
		return
	}
	end, err := calendar.ParseDate(q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use YYYY-MM-DD)", err)
		return
	}

	days, err := h.Engine.BusinessDays(r.Context(), calendar.NewRange(start, end))
	if err != nil {
		writeDomainError(w, "Invalid range", err)
		return
	}
	writeJSON(w, http.StatusOK, BusinessDaysDTO{StartDate: start.String(), EndDate: end.String(), Days: days})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps leave errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var (
		notConfirmed *leave.NotConfirmedError
		validation   *leave.ValidationError
		balance      *leave.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &notConfirmed):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "Confirmation required",
			Code:    "confirmation_required",
			Details: toPromptDTO(notConfirmed.Prompt),
		})
	case errors.As(err, &validation):
		code := "validation"
		if errors.Is(err, leave.ErrPlanStale) {
			code = "plan_stale"
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   message,
			Code:    code,
			Details: map[string]string{"field": validation.Field, "reason": validation.Reason},
		})
	case errors.As(err, &balance):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: message,
			Code:  "insufficient_balance",
			Details: map[string]string{
				"available": balance.Available.String(),
				"requested": balance.Requested.String(),
			},
		})
	case leave.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: message, Code: "not_found", Details: err.Error()})
	case errors.Is(err, leave.ErrReferenceConflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: "reference_conflict", Details: err.Error()})
	case errors.Is(err, leave.ErrReversalInconsistency):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: message, Code: "reversal_inconsistency", Details: err.Error()})
	case errors.Is(err, leave.ErrValidation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "validation", Details: err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func agentIDParam(w http.ResponseWriter, r *http.Request) (leave.AgentID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid agent id", err)
		return 0, false
	}
	return leave.AgentID(id), true
}

func leaveIDParam(w http.ResponseWriter, r *http.Request) (leave.LeaveID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid leave id", err)
		return 0, false
	}
	return leave.LeaveID(id), true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("must be a non-negative integer")
	}
	return n, nil
}
