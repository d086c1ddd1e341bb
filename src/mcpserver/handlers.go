package mcpserver

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/engine"
	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

// Handlers holds the engines the tool handlers run against.
type Handlers struct {
	storage   *engine.StorageEngine
	retrieval *engine.RetrievalEngine
	projectID string
}

// NewHandlers wires the handlers. projectID is the default scope when a call
// names none.
func NewHandlers(storage *engine.StorageEngine, retrieval *engine.RetrievalEngine, projectID string) *Handlers {
	return &Handlers{storage: storage, retrieval: retrieval, projectID: projectID}
}

// StoreRequest carries the memory_store arguments.
type StoreRequest struct {
	Content    string   `json:"content"`
	Kind       string   `json:"kind"`
	UniqueID   string   `json:"unique_id"`
	ScopeID    string   `json:"scope_id,omitempty"`
	Role       string   `json:"role"`
	Importance string   `json:"importance"`
	SourceRefs []string `json:"source_refs,omitempty"`
}

// SearchRequest carries the memory_search arguments.
type SearchRequest struct {
	Query      string   `json:"query"`
	Role       string   `json:"role"`
	ScopeID    string   `json:"scope_id,omitempty"`
	Kinds      []string `json:"kinds,omitempty"`
	Importance []string `json:"importance,omitempty"`
	MinScore   float64  `json:"min_score,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// HandleStore handles the memory_store tool call.
func (h *Handlers) HandleStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StoreRequest](req)
	if err != nil {
		return errorResult("invalid_request", err), nil
	}

	scope := input.ScopeID
	if scope == "" {
		scope = h.projectID
	}
	shard := model.MemoryShard{
		Content:    input.Content,
		Kind:       model.Kind(input.Kind),
		UniqueID:   input.UniqueID,
		ScopeID:    scope,
		Role:       model.Role(input.Role),
		Importance: model.Importance(input.Importance),
		SourceRefs: input.SourceRefs,
	}

	id, err := h.storage.Store(ctx, shard)
	if err != nil {
		return storeErrorResult(err), nil
	}
	return successResult(map[string]any{
		"shard_id":  id,
		"unique_id": shard.UniqueID,
	})
}

// HandleSearch handles the memory_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult("invalid_request", err), nil
	}

	scope := input.ScopeID
	if scope == "" {
		scope = h.projectID
	}
	kinds := make([]model.Kind, 0, len(input.Kinds))
	for _, k := range input.Kinds {
		kinds = append(kinds, model.Kind(k))
	}
	importance := make([]model.Importance, 0, len(input.Importance))
	for _, imp := range input.Importance {
		importance = append(importance, model.Importance(imp))
	}

	contextText, err := h.retrieval.Search(ctx, engine.SearchRequest{
		Query:      input.Query,
		Role:       model.Role(input.Role),
		ScopeID:    scope,
		Kinds:      kinds,
		Importance: importance,
		MinScore:   input.MinScore,
		Limit:      input.Limit,
	})
	if err != nil {
		if errors.Is(err, model.ErrSearchUnavailable) {
			// Degrade to "no memory": the consumer's task proceeds without
			// context rather than failing on our account.
			return successResult(map[string]any{"context": "", "degraded": true})
		}
		return errorResult("search_failed", err), nil
	}
	return successResult(map[string]any{"context": contextText})
}

// HandleHealth handles the memory_health tool call.
func (h *Handlers) HandleHealth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := h.storage.Health(ctx)
	if err != nil {
		return errorResult("store_unreachable", err), nil
	}
	return successResult(map[string]any{
		"status":      "ok",
		"collections": counts,
	})
}

// errorResult renders a typed error payload with IsError set, mapping the
// pipeline taxonomy to stable codes the calling agent can branch on.
func errorResult(code string, err error) *mcp.CallToolResult {
	obj := map[string]any{
		"code":    code,
		"message": err.Error(),
	}

	var verr *model.ValidationError
	var dup *model.DuplicateError
	var budget *model.TokenBudgetExceededError
	switch {
	case errors.As(err, &verr):
		obj["code"] = "validation_error"
		problems := make([]map[string]string, 0, len(verr.Problems))
		for _, p := range verr.Problems {
			problems = append(problems, map[string]string{"field": p.Field, "problem": p.Problem})
		}
		obj["problems"] = problems
	case errors.As(err, &dup):
		obj["code"] = "duplicate_error"
		obj["duplicate_kind"] = string(dup.Kind)
		obj["existing_id"] = dup.ExistingID
		if dup.Kind == model.DuplicateSemantic {
			obj["similarity"] = dup.Similarity
		}
	case errors.As(err, &budget):
		obj["code"] = "token_budget_exceeded"
		obj["estimated_tokens"] = budget.Estimated
		obj["limit"] = budget.Limit
	case errors.Is(err, model.ErrStoreUnavailable):
		obj["code"] = "store_unavailable"
	}

	content, _ := json.Marshal(map[string]any{"error": obj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func storeErrorResult(err error) *mcp.CallToolResult {
	return errorResult("store_failed", err)
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
