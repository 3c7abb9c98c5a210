package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/scrypster/energy-services/internal/briefing"
	"github.com/scrypster/energy-services/internal/chat"
	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/engine"
	"github.com/scrypster/energy-services/internal/llm"
	"github.com/scrypster/energy-services/pkg/types"
)

// chatter is the subset of chat.Service used by the ask_assistant tool.
type chatter interface {
	Send(ctx context.Context, history []llm.Message, content string) chat.Reply
}

// Server implements the Model Context Protocol (MCP) for the analytics core.
type Server struct {
	provider  datasets.Provider
	catalog   config.Catalog
	chatter   chatter
	sessionID string // unique ID generated once per MCP server lifetime
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithCatalog replaces the built-in catalog.
func WithCatalog(cat config.Catalog) ServerOption {
	return func(s *Server) {
		s.catalog = cat
	}
}

// WithChatter enables the ask_assistant tool.
func WithChatter(c chatter) ServerOption {
	return func(s *Server) {
		s.chatter = c
	}
}

// NewServer creates a new MCP server instance reading datasets from provider.
func NewServer(provider datasets.Provider, opts ...ServerOption) *Server {
	s := &Server{
		provider:  provider,
		catalog:   config.DefaultCatalog(),
		sessionID: uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Printf("energy-mcp: session ID: %s", s.sessionID)
	return s
}

// HandleRequest processes a JSON-RPC 2.0 request and returns a response.
// This is the main entry point for MCP protocol handling.
func (s *Server) HandleRequest(ctx context.Context, requestJSON []byte) ([]byte, error) {
	var req JSONRPCRequest
	if err := json.Unmarshal(requestJSON, &req); err != nil {
		return s.errorResponse(nil, ErrCodeParseError, "Parse error", err.Error())
	}

	if req.JSONRPC != "2.0" {
		return s.errorResponse(req.ID, ErrCodeInvalidRequest, "Invalid JSON-RPC version", nil)
	}

	var result interface{}
	var err error

	switch req.Method {
	case "initialize":
		result, err = s.handleInitialize(ctx, req.Params)
	case "initialized", "notifications/initialized":
		result = map[string]interface{}{}
	case "tools/list":
		result, err = s.handleToolsList(ctx, req.Params)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, req.Params)
	default:
		// Tools are also callable directly by name.
		handler, ok := s.toolHandler(req.Method)
		if !ok {
			return s.errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
		}
		if result, err = handler(ctx, req.Params); err != nil {
			log.Printf("energy-mcp: method %s failed: %v", req.Method, err)
			return s.errorResponse(req.ID, ErrCodeServerError, toolErrorMessage(err), nil)
		}
	}

	if err != nil {
		return s.errorResponse(req.ID, ErrCodeServerError, err.Error(), nil)
	}

	return s.successResponse(req.ID, result)
}

// GetBriefing assembles the briefing for the current datasets.
func (s *Server) GetBriefing(ctx context.Context, args GetBriefingArgs) (*GetBriefingResult, error) {
	bundle, err := s.provider.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	b, err := briefing.Assemble(bundle, s.catalog)
	if err != nil {
		return nil, err
	}

	result := &GetBriefingResult{
		Briefing:    b,
		Suggestions: briefing.SuggestedQuestions(b),
	}
	if args.IncludePrompt {
		result.Prompt = briefing.Render(b)
	}
	for _, d := range bundle.Missing() {
		result.Missing = append(result.Missing, string(d))
	}
	return result, nil
}

// QueryData answers a point, projection, or trend query.
func (s *Server) QueryData(ctx context.Context, args QueryDataArgs) (*QueryDataResult, error) {
	bundle, err := s.provider.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	res, err := briefing.Query(bundle, args)
	if errors.Is(err, briefing.ErrInvalidQuery) {
		return &QueryDataResult{Found: false}, nil
	}
	if err != nil {
		return nil, err
	}
	return &QueryDataResult{Found: true, Result: res}, nil
}

// PeriodMetrics computes the period metrics of the world or one region.
func (s *Server) PeriodMetrics(ctx context.Context, args PeriodMetricsArgs) (*PeriodMetricsResult, error) {
	windows, err := s.windows(args.Windows)
	if err != nil {
		return nil, err
	}
	bundle, err := s.provider.Bundle(ctx)
	if err != nil {
		return nil, err
	}

	entity, series := types.GlobalEntity, bundle.Historical.Data
	if args.Region != "" {
		regions, err := s.regions(bundle)
		if err != nil {
			return nil, err
		}
		region, ok := findRegion(regions, args.Region)
		if !ok {
			return nil, fmt.Errorf("unknown region %q", args.Region)
		}
		entity, series = region.Entity(), region.Series
	}

	byLabel := engine.ComputePeriodMetrics(entity, series, windows)
	result := &PeriodMetricsResult{
		Entity:  entity,
		Metrics: make([]types.PeriodMetric, 0, len(windows)),
		Sources: make([]engine.DisplacementBreakdown, 0, len(windows)),
	}
	for _, w := range windows {
		if m, ok := byLabel[w.Label]; ok {
			result.Metrics = append(result.Metrics, m)
		}
		if d, ok := engine.SourceDisplacement(series, s.catalog.CleanSources, w); ok {
			result.Sources = append(result.Sources, d)
		}
	}
	return result, nil
}

// CompareRegions ranks regions by annual clean growth over one window.
func (s *Server) CompareRegions(ctx context.Context, args CompareRegionsArgs) (*CompareRegionsResult, error) {
	label := args.Period
	if label == "" {
		label = types.WindowTenYear
	}
	window, ok := s.catalog.Window(label)
	if !ok {
		return nil, fmt.Errorf("unknown period %q", label)
	}

	bundle, err := s.provider.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	regions, err := s.regions(bundle)
	if err != nil {
		return nil, err
	}
	selected, err := s.selection(regions, args.Regions, args.Category)
	if err != nil {
		return nil, err
	}

	return &CompareRegionsResult{
		Period:  window.Label,
		Regions: selected,
		Metrics: engine.BuildComparison(regions, selected, window),
	}, nil
}

// RegionTimeline returns yearly clean growth per selected region.
func (s *Server) RegionTimeline(ctx context.Context, args RegionTimelineArgs) (*RegionTimelineResult, error) {
	bundle, err := s.provider.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	regions, err := s.regions(bundle)
	if err != nil {
		return nil, err
	}
	selected, err := s.selection(regions, args.Regions, args.Category)
	if err != nil {
		return nil, err
	}

	from := args.FromYear
	if from == 0 {
		from = s.catalog.TimelineFromYear
	}
	points := engine.BuildTimeline(regions, selected, from)
	if points == nil {
		points = []engine.TimelinePoint{}
	}
	return &RegionTimelineResult{Regions: selected, Points: points}, nil
}

// SectorBreakdown ranks sectors of the latest year by share.
func (s *Server) SectorBreakdown(ctx context.Context, _ SectorBreakdownArgs) (*SectorBreakdownResult, error) {
	bundle, err := s.provider.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	doc, ok := bundle.Sectoral.Get()
	if !ok {
		return nil, fmt.Errorf("sectoral breakdown: %w", datasets.ErrOptionalDataMissing)
	}
	latest, ok := bundle.Historical.Data.Latest()
	if !ok {
		return nil, fmt.Errorf("historical series is empty: %w", datasets.ErrDataUnavailable)
	}
	return &SectorBreakdownResult{
		Year:          latest.Year,
		TotalServices: latest.TotalServices,
		Rows:          engine.SectorBreakdown(datasets.Sectors(doc, s.catalog), latest.TotalServices),
	}, nil
}

// SectorTimeseries returns the sectoral time series in the requested mode.
func (s *Server) SectorTimeseries(ctx context.Context, args SectorTimeseriesArgs) (*SectorTimeseriesResult, error) {
	mode, err := engine.ParseViewMode(args.Mode)
	if err != nil {
		return nil, err
	}
	bundle, err := s.provider.Bundle(ctx)
	if err != nil {
		return nil, err
	}
	doc, ok := bundle.SectoralTimeseries.Get()
	if !ok {
		return nil, fmt.Errorf("sectoral time series: %w", datasets.ErrOptionalDataMissing)
	}
	return &SectorTimeseriesResult{
		Mode: mode,
		Rows: engine.NormalizeSectorTable(datasets.SectorTable(doc), mode),
	}, nil
}

// AskAssistant answers a single question with no prior conversation.
func (s *Server) AskAssistant(ctx context.Context, args AskAssistantArgs) (*AskAssistantResult, error) {
	if s.chatter == nil {
		return nil, errors.New("assistant is not configured")
	}
	reply := s.chatter.Send(ctx, nil, args.Question)
	if reply.Error {
		return nil, errors.New(reply.Content)
	}
	return &reply, nil
}

// ---------------------------------------------------------------------------
// Tool dispatch
// ---------------------------------------------------------------------------

type toolFunc func(ctx context.Context, params interface{}) (interface{}, error)

// bind adapts a typed tool method to the generic dispatcher.
func bind[A any, R any](s *Server, fn func(context.Context, A) (*R, error)) toolFunc {
	return func(ctx context.Context, params interface{}) (interface{}, error) {
		var args A
		if params != nil {
			if err := s.unmarshalParams(params, &args); err != nil {
				return nil, err
			}
		}
		return fn(ctx, args)
	}
}

func (s *Server) toolHandler(name string) (toolFunc, bool) {
	switch name {
	case "get_briefing":
		return bind(s, s.GetBriefing), true
	case "query_data":
		return bind(s, s.QueryData), true
	case "period_metrics":
		return bind(s, s.PeriodMetrics), true
	case "compare_regions":
		return bind(s, s.CompareRegions), true
	case "region_timeline":
		return bind(s, s.RegionTimeline), true
	case "sector_breakdown":
		return bind(s, s.SectorBreakdown), true
	case "sector_timeseries":
		return bind(s, s.SectorTimeseries), true
	case "ask_assistant":
		if s.chatter != nil {
			return bind(s, s.AskAssistant), true
		}
	}
	return nil, false
}

// ---------------------------------------------------------------------------
// Standard MCP protocol handlers
// ---------------------------------------------------------------------------

// handleInitialize handles the MCP initialize handshake.
func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPInitializeParams
	if params != nil {
		if err := s.unmarshalParams(params, &p); err != nil {
			return nil, err
		}
	}
	if p.ClientInfo.Name != "" {
		log.Printf("energy-mcp: client %s %s connected (protocol %s)", p.ClientInfo.Name, p.ClientInfo.Version, p.ProtocolVersion)
	}

	return MCPInitializeResult{
		ProtocolVersion: negotiateProtocol(p.ProtocolVersion),
		Capabilities: MCPServerCapabilities{
			Tools: &MCPToolsCapability{},
		},
		ServerInfo: MCPServerInfo{
			Name:    "energy-services",
			Version: "1.0.0",
		},
	}, nil
}

// supportedProtocols lists the MCP revisions this server speaks, newest first.
var supportedProtocols = []string{"2025-03-26", "2024-11-05"}

// negotiateProtocol echoes the client's revision when supported and offers
// the newest one otherwise.
func negotiateProtocol(requested string) string {
	for _, v := range supportedProtocols {
		if v == requested {
			return v
		}
	}
	return supportedProtocols[0]
}

// handleToolsList returns the list of all tools this server exposes.
func (s *Server) handleToolsList(ctx context.Context, params interface{}) (interface{}, error) {
	return MCPToolsListResult{Tools: s.buildToolsList()}, nil
}

// handleToolsCall dispatches a tools/call request to the appropriate handler
// and wraps the result in the MCP content envelope. Tool failures are
// reported in the envelope, not as JSON-RPC errors.
func (s *Server) handleToolsCall(ctx context.Context, params interface{}) (interface{}, error) {
	var p MCPToolCallParams
	if err := s.unmarshalParams(params, &p); err != nil {
		return nil, err
	}

	handler, ok := s.toolHandler(p.Name)
	if !ok {
		return toolError(fmt.Sprintf("unknown tool: %s", p.Name)), nil
	}

	var args interface{} = p.Arguments
	if p.Arguments == nil {
		args = map[string]interface{}{}
	}
	result, err := handler(ctx, args)
	if err != nil {
		log.Printf("energy-mcp: tool %s failed: %v", p.Name, err)
		return toolError(toolErrorMessage(err)), nil
	}

	text, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: string(text)}},
	}, nil
}

func toolError(text string) *MCPToolCallResult {
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: text}},
		IsError: true,
	}
}

// toolErrorMessage hides dataset transport detail behind a stable message.
func toolErrorMessage(err error) string {
	switch {
	case errors.Is(err, datasets.ErrOptionalDataMissing):
		return "data unavailable: optional dataset not published"
	case errors.Is(err, datasets.ErrDataUnavailable):
		return "data unavailable"
	}
	return err.Error()
}

// buildToolsList returns the canonical list of MCP tool definitions.
func (s *Server) buildToolsList() []MCPTool {
	regionSelection := map[string]interface{}{
		"regions":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Region keys, e.g. China, Europe. Takes priority over category."},
		"category": map[string]interface{}{"type": "string", "description": "Region category name, e.g. Major Economies, Continental, Economic Groups"},
	}

	tools := []MCPTool{
		{
			Name:        "get_briefing",
			Description: "Summarize the current state of the global energy-services transition: latest year, year-over-year deltas, transition phase, period metrics, per-source changes, baseline projections, and the optional regional and sectoral sections.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"include_prompt": map[string]interface{}{"type": "boolean", "description": "Also return the rendered briefing text"},
				},
			},
		},
		{
			Name: "query_data",
			Description: "Look up one data point or trend. " +
				"historical: record for a year; projection: record for a scenario (name substring) and year; " +
				"trend: absolute change, percent change, and CAGR of a source (or total, fossil, clean) between two years. " +
				"Returns found=false when the query does not resolve to data.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"type"},
				"properties": map[string]interface{}{
					"type":      map[string]interface{}{"type": "string", "enum": []string{"historical", "projection", "trend"}},
					"year":      map[string]interface{}{"type": "integer"},
					"scenario":  map[string]interface{}{"type": "string", "description": "Scenario name or substring, e.g. Baseline"},
					"source":    map[string]interface{}{"type": "string", "description": "Energy source key (coal, solar, ...) or total, fossil, clean"},
					"startYear": map[string]interface{}{"type": "integer"},
					"endYear":   map[string]interface{}{"type": "integer"},
				},
			},
		},
		{
			Name:        "period_metrics",
			Description: "Clean growth, fossil change, net change, and displacement rate over the lookback windows (current, 5year, 10year, 20year) for the world or one region, with clean growth broken down by source.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"region":  map[string]interface{}{"type": "string", "description": "Region key; omit for the world"},
					"windows": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}, "description": "Window labels; omit for all"},
				},
			},
		},
		{
			Name:        "compare_regions",
			Description: "Rank regions by annual clean growth over one window. With no regions or category, the default regions are compared.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(regionSelection, map[string]interface{}{
					"period": map[string]interface{}{"type": "string", "description": "Window label (default 10year)"},
				}),
			},
		},
		{
			Name:        "region_timeline",
			Description: "Year-by-year clean growth for the selected regions.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": withProps(regionSelection, map[string]interface{}{
					"from_year": map[string]interface{}{"type": "integer", "description": "First year (default from catalog)"},
				}),
			},
		},
		{
			Name:        "sector_breakdown",
			Description: "End-use sectors of the latest year ranked by share, with services and fossil/clean split in EJ.",
			InputSchema: map[string]interface{}{"type": "object", "properties": map[string]interface{}{}},
		},
		{
			Name:        "sector_timeseries",
			Description: "Sectoral totals per year, in EJ or as percent of each year's total.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"mode": map[string]interface{}{"type": "string", "enum": []string{"absolute", "percentage"}},
				},
			},
		},
	}

	if s.chatter != nil {
		tools = append(tools, MCPTool{
			Name:        "ask_assistant",
			Description: "Ask the energy assistant a free-form question answered from the current briefing.",
			InputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"question"},
				"properties": map[string]interface{}{
					"question": map[string]interface{}{"type": "string"},
				},
			},
		})
	}
	return tools
}

func withProps(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *Server) regions(bundle *datasets.Bundle) ([]types.Region, error) {
	doc, ok := bundle.Regional.Get()
	if !ok {
		return nil, fmt.Errorf("regional data: %w", datasets.ErrOptionalDataMissing)
	}
	return datasets.Regions(doc, s.catalog), nil
}

func (s *Server) selection(regions []types.Region, keys []string, category string) ([]string, error) {
	if len(keys) > 0 {
		return keys, nil
	}
	if category != "" {
		selected, ok := engine.SelectCategory(s.catalog, regions, category)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", category)
		}
		return selected, nil
	}
	var out []string
	for _, k := range s.catalog.DefaultRegions {
		if _, ok := findRegion(regions, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Server) windows(labels []string) ([]types.PeriodWindow, error) {
	if len(labels) == 0 {
		return s.catalog.PeriodWindows(), nil
	}
	out := make([]types.PeriodWindow, 0, len(labels))
	for _, label := range labels {
		w, ok := s.catalog.Window(label)
		if !ok {
			return nil, fmt.Errorf("unknown window %q", label)
		}
		out = append(out, w)
	}
	return out, nil
}

func findRegion(regions []types.Region, key string) (types.Region, bool) {
	for _, r := range regions {
		if r.Key == key {
			return r, true
		}
	}
	return types.Region{}, false
}

// unmarshalParams unmarshals JSON-RPC parameters into a typed struct.
func (s *Server) unmarshalParams(params interface{}, dest interface{}) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal params: %w", err)
	}

	return nil
}

// successResponse creates a JSON-RPC success response.
func (s *Server) successResponse(id interface{}, result interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
	return json.Marshal(resp)
}

// errorResponse creates a JSON-RPC error response.
func (s *Server) errorResponse(id interface{}, code int, message string, data interface{}) ([]byte, error) {
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
	return json.Marshal(resp)
}
