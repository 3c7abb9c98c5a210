package handlers

import (
	"github.com/scrypster/energy-services/internal/briefing"
	"github.com/scrypster/energy-services/internal/engine"
	"github.com/scrypster/energy-services/internal/llm"
	"github.com/scrypster/energy-services/pkg/types"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// PeriodsResponse is the response format for GET /api/global/periods.
// Metrics follow the requested window order.
type PeriodsResponse struct {
	Entity  types.Entity         `json:"entity"`
	Metrics []types.PeriodMetric `json:"metrics"`
}

// YearOverYearResponse is the response format for GET /api/global/yoy.
type YearOverYearResponse struct {
	Changes []engine.YearChange `json:"changes"`
}

// RegionInfo describes one region available for comparison.
type RegionInfo struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	FirstYear int    `json:"first_year"`
	LastYear  int    `json:"last_year"`
}

// CategoryInfo is a named region grouping.
type CategoryInfo struct {
	Name    string   `json:"name"`
	Regions []string `json:"regions"`
}

// RegionsResponse is the response format for GET /api/regions.
type RegionsResponse struct {
	Regions    []RegionInfo   `json:"regions"`
	Categories []CategoryInfo `json:"categories"`
	Defaults   []string       `json:"defaults"`
	MaxCompare int            `json:"max_compare"`
}

// ComparisonResponse is the response format for GET /api/regions/comparison.
type ComparisonResponse struct {
	Period  string               `json:"period"`
	Regions []string             `json:"regions"`
	Metrics []types.PeriodMetric `json:"metrics"`
}

// TimelineResponse is the response format for GET /api/regions/timeline.
type TimelineResponse struct {
	Regions []string               `json:"regions"`
	Points  []engine.TimelinePoint `json:"points"`
}

// SectorBreakdownResponse is the response format for GET /api/sectors/breakdown.
type SectorBreakdownResponse struct {
	Year          int                `json:"year"`
	TotalServices float64            `json:"total_services"`
	Rows          []engine.SectorRow `json:"rows"`
	Sources       []string           `json:"sources,omitempty"`
}

// SectorTimeseriesResponse is the response format for GET /api/sectors/timeseries.
type SectorTimeseriesResponse struct {
	Mode    engine.ViewMode   `json:"mode"`
	Sectors []string          `json:"sectors"`
	Rows    types.SectorTable `json:"rows"`
}

// SourcesResponse is the response format for GET /api/global/sources.
type SourcesResponse struct {
	Windows []engine.DisplacementBreakdown `json:"windows"`
}

// PeaksResponse is the response format for GET /api/projections/peaks.
type PeaksResponse struct {
	Peaks []briefing.ScenarioPeak `json:"peaks"`
}

// BriefingResponse is the response format for GET /api/briefing.
type BriefingResponse struct {
	Briefing    *briefing.Briefing `json:"briefing"`
	Prompt      string             `json:"prompt,omitempty"`
	Suggestions []string           `json:"suggestions"`
	Missing     []string           `json:"missing,omitempty"`
}

// ChatRequest is the request body for POST /api/chat and each /ws/chat message.
type ChatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history,omitempty"`
}

// SuggestionsResponse is the response format for GET /api/chat/suggestions.
type SuggestionsResponse struct {
	Questions []string `json:"questions"`
}

// HealthResponse is the response format for GET /healthz and GET /readyz.
type HealthResponse struct {
	Status  string   `json:"status"`
	Missing []string `json:"missing,omitempty"`
}
