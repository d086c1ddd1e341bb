package model

import (
	"regexp"
	"strings"
)

// Content length band in characters, checked before any token accounting.
// Oversized content is a schema problem here only past the hard byte band;
// the finer token ceiling lives with the budget enforcer.
const (
	MinContentChars = 100
	MaxContentChars = 50000
)

// sourceRefPattern matches path.ext:line or path.ext:line-line citations over
// the allowed extension list.
var sourceRefPattern = regexp.MustCompile(`[a-zA-Z0-9_/\-.]+\.(?:py|go|md|yaml|yml|sql|sh|js|ts|tsx|json):\d+(?:-\d+)?`)

// createdAtPattern accepts an ISO 8601 date prefix (YYYY-MM-DD, optionally
// followed by a time part).
var createdAtPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ExtractSourceRefs returns every file:line citation found in content, in
// order of appearance.
func ExtractSourceRefs(content string) []string {
	return sourceRefPattern.FindAllString(content, -1)
}

// Validate checks the shard against the schema: required fields, enum
// membership, unique_id prefix convention, creation date shape, content
// length band, and the source-reference rule for actionable kinds. It is a
// pure function; a nil return means the shard may proceed to budgeting,
// deduplication, and embedding.
func Validate(shard MemoryShard) error {
	verr := &ValidationError{}

	if !shard.Kind.Valid() {
		verr.add("kind", "unknown kind %q", shard.Kind)
	}
	if !shard.Role.Valid() {
		verr.add("role", "unknown role %q", shard.Role)
	}
	if !shard.Importance.Valid() {
		verr.add("importance", "unknown importance %q", shard.Importance)
	}

	switch n := len(shard.Content); {
	case n == 0:
		verr.add("content", "content is required")
	case n < MinContentChars:
		verr.add("content", "content is %d chars, minimum is %d", n, MinContentChars)
	case n > MaxContentChars:
		verr.add("content", "content is %d chars, maximum is %d", n, MaxContentChars)
	}

	validateUniqueID(verr, shard)

	if shard.ScopeID == "" {
		verr.add("scope_id", "scope_id is required")
	} else if shard.Kind == KindUniversalBestPractice && shard.ScopeID != GlobalScope {
		verr.add("scope_id", "universal-best-practice shards use the reserved %q scope, got %q", GlobalScope, shard.ScopeID)
	} else if shard.Kind != KindUniversalBestPractice && shard.ScopeID == GlobalScope {
		verr.add("scope_id", "the %q scope is reserved for universal-best-practice shards", GlobalScope)
	}

	if shard.CreatedAt == "" {
		verr.add("created_at", "created_at is required")
	} else if !createdAtPattern.MatchString(shard.CreatedAt) {
		verr.add("created_at", "created_at %q is not ISO 8601 (YYYY-MM-DD)", shard.CreatedAt)
	}

	if shard.Kind.Valid() && shard.Kind.RequiresSourceRefs() {
		if len(ExtractSourceRefs(shard.Content)) == 0 {
			verr.add("content", "missing source reference: kind %q requires at least one path:line citation (e.g. src/payments.py:42-48)", shard.Kind)
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}

func validateUniqueID(verr *ValidationError, shard MemoryShard) {
	id := shard.UniqueID
	if id == "" {
		verr.add("unique_id", "unique_id is required")
		return
	}
	if len(id) < 5 {
		verr.add("unique_id", "unique_id %q too short (min 5 characters)", id)
		return
	}
	prefixes := shard.Kind.IDPrefixes()
	if len(prefixes) == 0 {
		return
	}
	for _, p := range prefixes {
		if strings.HasPrefix(id, p) {
			return
		}
	}
	verr.add("unique_id", "unique_id %q does not match the %q prefix convention (want %s)", id, shard.Kind, strings.Join(prefixes, " or "))
}
