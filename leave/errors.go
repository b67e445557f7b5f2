/*
errors.go - Error taxonomy for the leave engine

ERROR CATEGORIES:
  1. Validation - raised before any mutation (bad dates, bad day counts,
     disallowed overlap geometry, stale plan)
  2. Balance - a debit would drive the balance negative
  3. Reversal - a split parent has no active children to remove
  4. Storage - the store collaborator failed; the transaction rolled back
  5. Attachment - certificate file step failed AFTER commit (non-fatal)

Everything except AttachmentWarning means "nothing happened". An
AttachmentWarning is returned alongside a valid result: the leave is saved,
only the certificate is degraded.

USAGE:
  out, err := engine.Submit(ctx, req)
  switch {
  case leave.IsWarning(err):    // out is valid, report err
  case leave.IsClientError(err): // 4xx
  case err != nil:              // 5xx
  }
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for input rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a debit would make a balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrReversalInconsistency is returned when a split parent has no active
	// records left to remove.
	ErrReversalInconsistency = errors.New("split reversal inconsistency")

	// ErrStorage is returned when the store fails mid-operation.
	ErrStorage = errors.New("storage failure")

	// ErrAttachment marks a certificate file failure after a successful commit.
	ErrAttachment = errors.New("certificate attachment failed")

	// ErrNotConfirmed is returned when the confirmer declined the operation.
	ErrNotConfirmed = errors.New("operation not confirmed")

	// ErrAgentNotFound is returned when a referenced agent doesn't exist.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrLeaveNotFound is returned when modifying a leave that doesn't exist.
	ErrLeaveNotFound = errors.New("leave not found")

	// ErrReferenceConflict is returned when an agent reference code is taken.
	ErrReferenceConflict = errors.New("agent reference already in use")

	// ErrPlanStale is returned when overlaps changed between Plan and Execute.
	ErrPlanStale = errors.New("plan is stale")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
	Err    error // optional more specific sentinel, e.g. ErrPlanStale
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	AgentID   AgentID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for agent %d: available %s, requested %s",
		e.AgentID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ReversalInconsistencyError reports a Cancelled parent with nothing under it.
type ReversalInconsistencyError struct {
	LeaveID  LeaveID
	ParentID LeaveID
}

func (e *ReversalInconsistencyError) Error() string {
	return fmt.Sprintf("cannot restore leave #%d for #%d: no active records inside its range",
		e.ParentID, e.LeaveID)
}

func (e *ReversalInconsistencyError) Unwrap() error {
	return ErrReversalInconsistency
}

// StorageError wraps a store failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// AttachmentWarning reports a certificate step that failed after commit.
type AttachmentWarning struct {
	LeaveID LeaveID
	Path    string
	Err     error
}

func (e *AttachmentWarning) Error() string {
	return fmt.Sprintf("leave #%d saved but certificate %q failed: %v", e.LeaveID, e.Path, e.Err)
}

func (e *AttachmentWarning) Unwrap() []error {
	return []error{ErrAttachment, e.Err}
}

// NotConfirmedError carries the prompt the confirmer declined.
type NotConfirmedError struct {
	Prompt Prompt
}

func (e *NotConfirmedError) Error() string {
	return fmt.Sprintf("operation not confirmed: %s", e.Prompt.Kind)
}

func (e *NotConfirmedError) Unwrap() error {
	return ErrNotConfirmed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// storageErr wraps err as a StorageError unless it is already one of the
// typed errors above.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if isTyped(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func isTyped(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrInsufficientBalance, ErrReversalInconsistency, ErrStorage,
		ErrNotConfirmed, ErrAgentNotFound, ErrLeaveNotFound, ErrReferenceConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrNotConfirmed) ||
		errors.Is(err, ErrReferenceConflict) ||
		errors.Is(err, ErrReversalInconsistency)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAgentNotFound) || errors.Is(err, ErrLeaveNotFound)
}

// IsWarning returns true if the operation succeeded with a degraded certificate.
func IsWarning(err error) bool {
	return errors.Is(err, ErrAttachment)
}
