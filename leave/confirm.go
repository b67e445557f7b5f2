package leave

import "context"

// =============================================================================
// CONFIRMATION
// =============================================================================

type PromptKind string

const (
	// PromptReplace precedes any case that cancels existing annual leave.
	PromptReplace PromptKind = "replace"
	// PromptRestoreSplit precedes a delete that restores a split parent.
	PromptRestoreSplit PromptKind = "restore_split"
)

// Prompt is what the operator is asked to approve.
type Prompt struct {
	Kind      PromptKind
	AgentID   AgentID
	Case      Case
	Affected  []Record   // records to cancel, or records to remove on restore
	Fragments []Fragment // fragments to create
	Parent    *Record    // parent to restore
}

// Confirmer approves or declines a rewrite. The engine never prompts by
// itself; UIs and the api supply one.
type Confirmer interface {
	Confirm(ctx context.Context, p Prompt) bool
}

type ConfirmFunc func(ctx context.Context, p Prompt) bool

func (f ConfirmFunc) Confirm(ctx context.Context, p Prompt) bool { return f(ctx, p) }

// FixedAnswer answers every prompt the same way.
type FixedAnswer bool

func (a FixedAnswer) Confirm(context.Context, Prompt) bool { return bool(a) }

var (
	AlwaysConfirm Confirmer = FixedAnswer(true)
	NeverConfirm  Confirmer = FixedAnswer(false)
)
