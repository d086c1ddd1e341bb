package mcpserver

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/model"
)

func kindNames() []string {
	kinds := model.Kinds()
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	return names
}

var storeToolDef = mcp.NewTool("memory_store",
	mcp.WithDescription("Store one memory shard: validated, deduplicated, embedded and persisted with synchronous confirmation. Returns the shard id."),
	mcp.WithString("content", mcp.Required(),
		mcp.Description("Shard content, 100-50000 chars, at most ~300 estimated tokens. Actionable kinds must cite at least one file:line location.")),
	mcp.WithString("kind", mcp.Required(),
		mcp.Description("One of: "+strings.Join(kindNames(), ", "))),
	mcp.WithString("unique_id", mcp.Required(),
		mcp.Description("Stable identifier with the kind's prefix (story-, error-, arch-, ...).")),
	mcp.WithString("scope_id",
		mcp.Description("Project or session scope; defaults to the configured project. Universal best practices use the reserved 'global' scope.")),
	mcp.WithString("role", mcp.Required(),
		mcp.Description("Producing agent role (architect, dev, pm, ...).")),
	mcp.WithString("importance", mcp.Required(),
		mcp.Description("critical, high, medium or low.")),
	mcp.WithArray("source_refs",
		mcp.Description("Optional file:line citations; extracted from content when omitted.")),
)

var searchToolDef = mcp.NewTool("memory_search",
	mcp.WithDescription("Search stored memory and return a context string of labeled blocks, packed into the role's token budget. Empty string means no relevant memory."),
	mcp.WithString("query", mcp.Required(),
		mcp.Description("Free-text semantic query.")),
	mcp.WithString("role", mcp.Required(),
		mcp.Description("Consuming role; selects the retrieval token budget.")),
	mcp.WithString("scope_id",
		mcp.Description("Scope to search; defaults to the configured project.")),
	mcp.WithArray("kinds",
		mcp.Description("Optional kind filter. Include session-note to search the session pool.")),
	mcp.WithArray("importance",
		mcp.Description("Optional importance filter.")),
	mcp.WithNumber("min_score",
		mcp.Description("Similarity floor, 0-1; defaults to the configured minimum.")),
	mcp.WithNumber("limit",
		mcp.Description("Max hits before budget packing; default 10.")),
)

var healthToolDef = mcp.NewTool("memory_health",
	mcp.WithDescription("Check vector store reachability and report per-collection point counts."),
)
