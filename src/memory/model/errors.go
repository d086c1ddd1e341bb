package model

import (
	"errors"
	"fmt"
	"strings"
)

// Transport-level failures. Store backends wrap connectivity errors with
// ErrStoreUnavailable; the retrieval path reports ErrSearchUnavailable so a
// consumer can degrade to "no memory" without inspecting the cause.
var (
	ErrStoreUnavailable  = errors.New("vector store unavailable")
	ErrSearchUnavailable = errors.New("memory search unavailable")
)

// FieldProblem describes one schema violation on a named field.
type FieldProblem struct {
	Field   string
	Problem string
}

func (p FieldProblem) String() string {
	return p.Field + ": " + p.Problem
}

// ValidationError aggregates every field-level problem found in a shard.
// The write never proceeds while one of these is outstanding.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "shard validation failed"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.String())
	}
	return "shard validation failed: " + strings.Join(parts, "; ")
}

// MissingSourceReference reports whether the failure includes an absent
// file:line citation on an actionable kind.
func (e *ValidationError) MissingSourceReference() bool {
	for _, p := range e.Problems {
		if strings.Contains(p.Problem, "source reference") {
			return true
		}
	}
	return false
}

// add records a problem and returns the error for chaining.
func (e *ValidationError) add(field, format string, args ...any) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Problem: fmt.Sprintf(format, args...)})
}

// DuplicateKind distinguishes the three rejection reasons of the duplicate
// detector.
type DuplicateKind string

const (
	DuplicateExact       DuplicateKind = "exact"
	DuplicateSemantic    DuplicateKind = "semantic"
	DuplicateIDCollision DuplicateKind = "id_collision"
)

// DuplicateError rejects a candidate write that collides with an existing
// shard. ExistingID and Similarity give the producer enough to decide whether
// to skip, amend, or perform an explicit update.
type DuplicateError struct {
	Kind       DuplicateKind
	ExistingID string
	Similarity float64
}

func (e *DuplicateError) Error() string {
	switch e.Kind {
	case DuplicateSemantic:
		return fmt.Sprintf("semantic duplicate of %s (similarity %.2f)", e.ExistingID, e.Similarity)
	case DuplicateIDCollision:
		return fmt.Sprintf("unique_id collision with %s (content differs; use an explicit update)", e.ExistingID)
	default:
		return fmt.Sprintf("exact duplicate of %s", e.ExistingID)
	}
}

// TokenBudgetExceededError rejects a shard whose estimated token count is
// over the per-shard ceiling. Callers split the content into multiple shards
// rather than truncate.
type TokenBudgetExceededError struct {
	Estimated int
	Limit     int
}

func (e *TokenBudgetExceededError) Error() string {
	return fmt.Sprintf("content is ~%d estimated tokens, per-shard limit is %d; split into multiple shards", e.Estimated, e.Limit)
}
