package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/constructlink/constructlink/internal/model"
)

// Kind classifies a workflow error so callers can map each case to the right
// user-facing response.
type Kind string

// Error kinds.
const (
	KindNotFound          Kind = "not_found"
	KindPermissionDenied  Kind = "permission_denied"
	KindInvalidTransition Kind = "invalid_transition"
	KindValidationFailed  Kind = "validation_failed"
	KindConflict          Kind = "conflict"
)

// Error is a business-rule violation from the workflow. Infrastructure
// failures (database unavailable) are returned as plain wrapped errors, never
// as *Error.
type Error struct {
	Kind    Kind
	Message string
	// Fields carries field-level messages for validation failures.
	Fields map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return string(e.Kind) + ": " + e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return string(e.Kind) + ": " + strings.Join(parts, "; ")
}

// NotFound builds a not-found error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// PermissionDenied builds a permission-denied error.
func PermissionDenied(format string, args ...any) *Error {
	return &Error{Kind: KindPermissionDenied, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError builds an error for an action that is illegal from
// the batch's current state.
func InvalidTransitionError(from model.WorkflowState, action model.Action) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot %s a batch in state %s", action, from),
	}
}

// ValidationError builds a validation failure carrying field-level messages.
func ValidationError(fields map[string]string) *Error {
	return &Error{Kind: KindValidationFailed, Message: "validation failed", Fields: fields}
}

// Conflict builds an optimistic-lock conflict error. The caller should reload
// the batch and retry.
func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the workflow error kind, if err is a workflow error.
func KindOf(err error) (Kind, bool) {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind, true
	}
	return "", false
}
