package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Kind enumerates the closed set of memory record categories. The kind decides
// which collection a shard is routed to and whether source references are
// mandatory.
type Kind string

const (
	KindArchitectureDecision  Kind = "architecture-decision"
	KindAgentSpec             Kind = "agent-spec"
	KindTaskOutcome           Kind = "task-outcome"
	KindErrorPattern          Kind = "error-pattern"
	KindSchemaNote            Kind = "schema-note"
	KindConfigPattern         Kind = "config-pattern"
	KindCrossComponentExample Kind = "cross-component-example"
	KindUniversalBestPractice Kind = "universal-best-practice"
	KindSessionNote           Kind = "session-note"
)

// kindSpec carries per-kind validation rules: the unique_id prefixes a
// producer must use and whether file:line citations are required.
type kindSpec struct {
	prefixes     []string
	requiresRefs bool
}

var kindSpecs = map[Kind]kindSpec{
	KindArchitectureDecision:  {prefixes: []string{"arch-"}},
	KindAgentSpec:             {prefixes: []string{"agent-"}},
	KindTaskOutcome:           {prefixes: []string{"story-"}, requiresRefs: true},
	KindErrorPattern:          {prefixes: []string{"error-"}, requiresRefs: true},
	KindSchemaNote:            {prefixes: []string{"schema-"}, requiresRefs: true},
	KindConfigPattern:         {prefixes: []string{"config-"}, requiresRefs: true},
	KindCrossComponentExample: {prefixes: []string{"integration-"}, requiresRefs: true},
	KindUniversalBestPractice: {prefixes: []string{"bp-"}},
	KindSessionNote:           {prefixes: []string{"chat-"}},
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	_, ok := kindSpecs[k]
	return ok
}

// RequiresSourceRefs reports whether shards of this kind must cite at least
// one file:line location to be actionable.
func (k Kind) RequiresSourceRefs() bool {
	return kindSpecs[k].requiresRefs
}

// IDPrefixes returns the unique_id prefixes accepted for this kind.
func (k Kind) IDPrefixes() []string {
	return kindSpecs[k].prefixes
}

// Kinds returns every valid kind. The order is fixed.
func Kinds() []Kind {
	return []Kind{
		KindArchitectureDecision,
		KindAgentSpec,
		KindTaskOutcome,
		KindErrorPattern,
		KindSchemaNote,
		KindConfigPattern,
		KindCrossComponentExample,
		KindUniversalBestPractice,
		KindSessionNote,
	}
}

// Role is the producing (or consuming) agent identity. On write it records
// provenance; on read it selects the retrieval token budget.
type Role string

const (
	RoleArchitect  Role = "architect"
	RoleAnalyst    Role = "analyst"
	RolePM         Role = "pm"
	RoleDev        Role = "dev"
	RoleTEA        Role = "tea"
	RoleTechWriter Role = "tech-writer"
	RoleUXDesigner Role = "ux-designer"
	RoleSoloDev    Role = "quick-flow-solo-dev"
	RoleSM         Role = "sm"
)

var validRoles = map[Role]struct{}{
	RoleArchitect: {}, RoleAnalyst: {}, RolePM: {}, RoleDev: {}, RoleTEA: {},
	RoleTechWriter: {}, RoleUXDesigner: {}, RoleSoloDev: {}, RoleSM: {},
}

// Valid reports whether r is a member of the role set.
func (r Role) Valid() bool {
	_, ok := validRoles[r]
	return ok
}

// Importance grades how aggressively a shard should be surfaced.
type Importance string

const (
	ImportanceCritical Importance = "critical"
	ImportanceHigh     Importance = "high"
	ImportanceMedium   Importance = "medium"
	ImportanceLow      Importance = "low"
)

var validImportance = map[Importance]struct{}{
	ImportanceCritical: {}, ImportanceHigh: {}, ImportanceMedium: {}, ImportanceLow: {},
}

// Valid reports whether i is a member of the importance set.
func (i Importance) Valid() bool {
	_, ok := validImportance[i]
	return ok
}

// GlobalScope is the reserved scope_id of the cross-tenant pool. Only
// universal-best-practice shards live there.
const GlobalScope = "global"

// MemoryShard is the atomic unit of stored knowledge: one validated,
// embeddable, independently retrievable record.
type MemoryShard struct {
	Content    string     `json:"content"`
	Kind       Kind       `json:"kind"`
	UniqueID   string     `json:"unique_id"`
	ScopeID    string     `json:"scope_id"`
	Role       Role       `json:"role"`
	Importance Importance `json:"importance"`
	CreatedAt  string     `json:"created_at"` // ISO 8601 date
	SourceRefs []string   `json:"source_refs"`

	// ContentHash is filled at write time; producers leave it empty.
	ContentHash string `json:"content_hash"`
}

// Payload field names shared by every store backend.
const (
	FieldContent     = "content"
	FieldKind        = "kind"
	FieldUniqueID    = "unique_id"
	FieldScopeID     = "scope_id"
	FieldSessionID   = "session_id"
	FieldRole        = "role"
	FieldImportance  = "importance"
	FieldCreatedAt   = "created_at"
	FieldSourceRefs  = "source_refs"
	FieldContentHash = "content_hash"
)

// HashContent returns the SHA-256 hex digest of the normalized content.
// Normalization strips surrounding whitespace and unifies line endings so a
// trailing-newline resubmission still counts as an exact duplicate.
func HashContent(content string) string {
	normalized := strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Payload flattens the shard into the JSON-compatible object persisted
// alongside its vector. Session notes additionally carry their scope under
// the session_id key, which the session pool filters on.
func (s MemoryShard) Payload() map[string]any {
	refs := make([]any, 0, len(s.SourceRefs))
	for _, r := range s.SourceRefs {
		refs = append(refs, r)
	}
	p := map[string]any{
		FieldContent:     s.Content,
		FieldKind:        string(s.Kind),
		FieldUniqueID:    s.UniqueID,
		FieldScopeID:     s.ScopeID,
		FieldRole:        string(s.Role),
		FieldImportance:  string(s.Importance),
		FieldCreatedAt:   s.CreatedAt,
		FieldSourceRefs:  refs,
		FieldContentHash: s.ContentHash,
	}
	if s.Kind == KindSessionNote {
		p[FieldSessionID] = s.ScopeID
	}
	return p
}

// ShardFromPayload rebuilds a shard from a store payload. Unknown keys are
// ignored; missing keys yield zero values.
func ShardFromPayload(p map[string]any) MemoryShard {
	s := MemoryShard{
		Content:     StringFromAny(p[FieldContent]),
		Kind:        Kind(StringFromAny(p[FieldKind])),
		UniqueID:    StringFromAny(p[FieldUniqueID]),
		ScopeID:     StringFromAny(p[FieldScopeID]),
		Role:        Role(StringFromAny(p[FieldRole])),
		Importance:  Importance(StringFromAny(p[FieldImportance])),
		CreatedAt:   StringFromAny(p[FieldCreatedAt]),
		ContentHash: StringFromAny(p[FieldContentHash]),
	}
	if s.ScopeID == "" {
		s.ScopeID = StringFromAny(p[FieldSessionID])
	}
	switch refs := p[FieldSourceRefs].(type) {
	case []string:
		s.SourceRefs = append(s.SourceRefs, refs...)
	case []any:
		for _, r := range refs {
			if str := StringFromAny(r); str != "" {
				s.SourceRefs = append(s.SourceRefs, str)
			}
		}
	}
	return s
}

// StringFromAny coerces payload values decoded from JSON into strings.
func StringFromAny(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}
