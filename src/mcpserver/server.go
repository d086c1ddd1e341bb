// Package mcpserver exposes the memory pipeline to agents over the Model
// Context Protocol: stdio transport, three tools, JSON results.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Protocol-Lattice/go-shardmem/src/memory/engine"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"memory_store": {
		def:     storeToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleStore },
	},
	"memory_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"memory_health": {
		def:     healthToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleHealth },
	},
}

// NewServer creates an MCP server with the memory tools registered.
func NewServer(storage *engine.StorageEngine, retrieval *engine.RetrievalEngine, projectID, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"shardmem",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	h := NewHandlers(storage, retrieval, projectID)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools over stdio until the client disconnects.
func Run(storage *engine.StorageEngine, retrieval *engine.RetrievalEngine, projectID, version string) error {
	return server.ServeStdio(NewServer(storage, retrieval, projectID, version))
}
