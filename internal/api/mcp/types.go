// Package mcp implements the Model Context Protocol (MCP) server for the
// energy services analytics core. It exposes the briefing, query, and
// regional/sectoral analyses as JSON-RPC 2.0 tools.
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/scrypster/energy-services/internal/briefing"
	"github.com/scrypster/energy-services/internal/chat"
	"github.com/scrypster/energy-services/internal/engine"
	"github.com/scrypster/energy-services/pkg/types"
)

// StringList accepts a JSON array of strings, a JSON-encoded array inside a
// string, or a comma-separated string. Some MCP clients send array arguments
// in the string forms.
type StringList []string

// UnmarshalJSON decodes any of the accepted forms. Unrecognised forms decode
// as an empty list rather than failing the call.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*l = items
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		_ = json.Unmarshal([]byte(s), &items)
		*l = items
		return nil
	}
	*l = nil
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*l = append(*l, item)
		}
	}
	return nil
}

// GetBriefingArgs contains arguments for the get_briefing tool.
type GetBriefingArgs struct {
	IncludePrompt bool `json:"include_prompt,omitempty"` // Also return the rendered assistant briefing text
}

// GetBriefingResult contains the assembled briefing.
type GetBriefingResult struct {
	Briefing    *briefing.Briefing `json:"briefing"`
	Prompt      string             `json:"prompt,omitempty"`
	Suggestions []string           `json:"suggestions"`
	Missing     []string           `json:"missing,omitempty"` // Optional datasets absent from this load
}

// QueryDataArgs contains arguments for the query_data tool.
type QueryDataArgs = briefing.QueryRequest

// QueryDataResult wraps a query answer. Found is false when the query does
// not resolve to data.
type QueryDataResult struct {
	Found  bool                  `json:"found"`
	Result *briefing.QueryResult `json:"result,omitempty"`
}

// PeriodMetricsArgs contains arguments for the period_metrics tool.
type PeriodMetricsArgs struct {
	Region  string     `json:"region,omitempty"`  // Region key; empty means the world series
	Windows StringList `json:"windows,omitempty"` // Window labels; empty means every window
}

// PeriodMetricsResult contains metrics and per-source clean growth, both in
// window order.
type PeriodMetricsResult struct {
	Entity  types.Entity                   `json:"entity"`
	Metrics []types.PeriodMetric           `json:"metrics"`
	Sources []engine.DisplacementBreakdown `json:"sources"`
}

// CompareRegionsArgs contains arguments for the compare_regions tool.
// Regions takes priority over Category; with neither, the default regions
// are compared.
type CompareRegionsArgs struct {
	Regions  StringList `json:"regions,omitempty"`
	Category string     `json:"category,omitempty"`
	Period   string     `json:"period,omitempty"` // Window label (default: 10year)
}

// CompareRegionsResult contains regions ranked by annual clean growth.
type CompareRegionsResult struct {
	Period  string               `json:"period"`
	Regions []string             `json:"regions"`
	Metrics []types.PeriodMetric `json:"metrics"`
}

// RegionTimelineArgs contains arguments for the region_timeline tool.
type RegionTimelineArgs struct {
	Regions  StringList `json:"regions,omitempty"`
	Category string     `json:"category,omitempty"`
	FromYear int        `json:"from_year,omitempty"`
}

// RegionTimelineResult contains yearly clean growth per region.
type RegionTimelineResult struct {
	Regions []string               `json:"regions"`
	Points  []engine.TimelinePoint `json:"points"`
}

// SectorBreakdownArgs contains arguments for the sector_breakdown tool.
type SectorBreakdownArgs struct{}

// SectorBreakdownResult contains the ranked sector rows.
type SectorBreakdownResult struct {
	Year          int                `json:"year"`
	TotalServices float64            `json:"total_services"`
	Rows          []engine.SectorRow `json:"rows"`
}

// SectorTimeseriesArgs contains arguments for the sector_timeseries tool.
type SectorTimeseriesArgs struct {
	Mode string `json:"mode,omitempty"` // absolute (default) or percentage
}

// SectorTimeseriesResult contains the sectoral time series.
type SectorTimeseriesResult struct {
	Mode engine.ViewMode   `json:"mode"`
	Rows types.SectorTable `json:"rows"`
}

// AskAssistantArgs contains arguments for the ask_assistant tool.
type AskAssistantArgs struct {
	Question string `json:"question"`
}

// AskAssistantResult is the assistant's reply.
type AskAssistantResult = chat.Reply

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string      `json:"jsonrpc"` // Must be "2.0"
	Method  string      `json:"method"`  // Method name
	Params  interface{} `json:"params"`  // Method parameters
	ID      interface{} `json:"id"`      // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Must be "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeInvalidRequest = -32600 // Invalid request object
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeInvalidParams  = -32602 // Invalid method parameters
	ErrCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrCodeServerError    = -32000 // Server error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPInitializeParams holds the parameters sent by an MCP client in the
// initialize request.
type MCPInitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ClientInfo      MCPClientInfo          `json:"clientInfo"`
}

// MCPClientInfo identifies the connecting MCP client.
type MCPClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via the MCP tools/list endpoint.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to the tools/list request.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a tools/call request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text" for now
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a tools/call request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}
