package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/scrypster/energy-services/internal/briefing"
	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/engine"
	"github.com/scrypster/energy-services/pkg/types"
)

// maxQueryBodyBytes bounds POST /api/query bodies.
const maxQueryBodyBytes = 64 << 10

// APIHandlers contains HTTP handlers for the dashboard REST API.
type APIHandlers struct {
	provider datasets.Provider
	catalog  config.Catalog
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(provider datasets.Provider, catalog config.Catalog) *APIHandlers {
	return &APIHandlers{
		provider: provider,
		catalog:  catalog,
	}
}

// GlobalPeriods handles GET /api/global/periods.
// Query parameters: windows (comma-separated labels; default: every catalog window).
func (h *APIHandlers) GlobalPeriods(w http.ResponseWriter, r *http.Request) {
	windows, err := h.windows(r.URL.Query().Get("windows"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid windows", err)
		return
	}

	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}

	byLabel := engine.ComputePeriodMetrics(types.GlobalEntity, bundle.Historical.Data, windows)
	resp := PeriodsResponse{Entity: types.GlobalEntity, Metrics: make([]types.PeriodMetric, 0, len(windows))}
	for _, win := range windows {
		if m, ok := byLabel[win.Label]; ok {
			resp.Metrics = append(resp.Metrics, m)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// GlobalStatus handles GET /api/global/status.
func (h *APIHandlers) GlobalStatus(w http.ResponseWriter, r *http.Request) {
	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}

	snap, ok := engine.LatestStatus(bundle.Historical.Data)
	if !ok {
		respondDataUnavailable(w, errors.New("historical series needs two years"))
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GlobalYearOverYear handles GET /api/global/yoy.
func (h *APIHandlers) GlobalYearOverYear(w http.ResponseWriter, r *http.Request) {
	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}
	changes := engine.YearOverYear(bundle.Historical.Data)
	if changes == nil {
		changes = []engine.YearChange{}
	}
	respondJSON(w, http.StatusOK, YearOverYearResponse{Changes: changes})
}

// GlobalSources handles GET /api/global/sources.
// Query parameters: windows (comma-separated labels; default: every catalog window).
func (h *APIHandlers) GlobalSources(w http.ResponseWriter, r *http.Request) {
	windows, err := h.windows(r.URL.Query().Get("windows"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid windows", err)
		return
	}

	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}

	resp := SourcesResponse{Windows: make([]engine.DisplacementBreakdown, 0, len(windows))}
	for _, win := range windows {
		if d, ok := engine.SourceDisplacement(bundle.Historical.Data, h.catalog.CleanSources, win); ok {
			resp.Windows = append(resp.Windows, d)
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// ProjectionPeaks handles GET /api/projections/peaks.
func (h *APIHandlers) ProjectionPeaks(w http.ResponseWriter, r *http.Request) {
	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}
	peaks := briefing.ScenarioPeaks(bundle.Projections)
	if peaks == nil {
		peaks = []briefing.ScenarioPeak{}
	}
	respondJSON(w, http.StatusOK, PeaksResponse{Peaks: peaks})
}

// ListRegions handles GET /api/regions.
func (h *APIHandlers) ListRegions(w http.ResponseWriter, r *http.Request) {
	regions, ok := h.regions(w, r)
	if !ok {
		return
	}

	resp := RegionsResponse{
		Regions:    make([]RegionInfo, 0, len(regions)),
		Categories: make([]CategoryInfo, 0, len(h.catalog.RegionCategories)),
		Defaults:   []string{},
		MaxCompare: h.catalog.MaxCompareRegions,
	}
	for _, reg := range regions {
		first, last := reg.Series.Years()
		resp.Regions = append(resp.Regions, RegionInfo{Key: reg.Key, Name: reg.Entity().Name, FirstYear: first, LastYear: last})
	}
	for _, c := range h.catalog.RegionCategories {
		keys, _ := engine.SelectCategory(h.catalog, regions, c.Name)
		if keys == nil {
			keys = []string{}
		}
		resp.Categories = append(resp.Categories, CategoryInfo{Name: c.Name, Regions: keys})
	}
	resp.Defaults = append(resp.Defaults, h.availableDefaults(regions)...)
	respondJSON(w, http.StatusOK, resp)
}

// RegionComparison handles GET /api/regions/comparison.
// Query parameters: period (window label; default: 10year), regions
// (comma-separated keys) or category (catalog category name).
func (h *APIHandlers) RegionComparison(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("period")
	if label == "" {
		label = types.WindowTenYear
	}
	window, found := h.catalog.Window(label)
	if !found {
		respondError(w, http.StatusBadRequest, "Unknown period", errors.New(label))
		return
	}

	regions, ok := h.regions(w, r)
	if !ok {
		return
	}
	selected, ok := h.selection(w, r, regions)
	if !ok {
		return
	}

	metrics := engine.BuildComparison(regions, selected, window)
	respondJSON(w, http.StatusOK, ComparisonResponse{Period: window.Label, Regions: selected, Metrics: metrics})
}

// RegionTimeline handles GET /api/regions/timeline.
// Query parameters: regions or category as for RegionComparison, and from
// (first year; default: the catalog timeline start).
func (h *APIHandlers) RegionTimeline(w http.ResponseWriter, r *http.Request) {
	fromYear := parseInt(r.URL.Query().Get("from"), h.catalog.TimelineFromYear)

	regions, ok := h.regions(w, r)
	if !ok {
		return
	}
	selected, ok := h.selection(w, r, regions)
	if !ok {
		return
	}

	points := engine.BuildTimeline(regions, selected, fromYear)
	if points == nil {
		points = []engine.TimelinePoint{}
	}
	respondJSON(w, http.StatusOK, TimelineResponse{Regions: selected, Points: points})
}

// SectorBreakdown handles GET /api/sectors/breakdown.
func (h *APIHandlers) SectorBreakdown(w http.ResponseWriter, r *http.Request) {
	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}
	doc, present := bundle.Sectoral.Get()
	if !present {
		respondDataUnavailable(w, datasets.ErrOptionalDataMissing)
		return
	}
	latest, present := bundle.Historical.Data.Latest()
	if !present {
		respondDataUnavailable(w, errors.New("historical series is empty"))
		return
	}

	respondJSON(w, http.StatusOK, SectorBreakdownResponse{
		Year:          latest.Year,
		TotalServices: latest.TotalServices,
		Rows:          engine.SectorBreakdown(datasets.Sectors(doc, h.catalog), latest.TotalServices),
		Sources:       doc.Metadata.Sources,
	})
}

// SectorTimeseries handles GET /api/sectors/timeseries.
// Query parameters: mode (absolute or percentage; default: absolute).
func (h *APIHandlers) SectorTimeseries(w http.ResponseWriter, r *http.Request) {
	mode, err := engine.ParseViewMode(r.URL.Query().Get("mode"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid mode", err)
		return
	}

	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}
	doc, present := bundle.SectoralTimeseries.Get()
	if !present {
		respondDataUnavailable(w, datasets.ErrOptionalDataMissing)
		return
	}

	table := engine.NormalizeSectorTable(datasets.SectorTable(doc), mode)
	respondJSON(w, http.StatusOK, SectorTimeseriesResponse{
		Mode:    mode,
		Sectors: sectorKeys(table, h.catalog.Sectors),
		Rows:    table,
	})
}

// Briefing handles GET /api/briefing.
// Query parameters: prompt (true to include the rendered assistant briefing).
func (h *APIHandlers) Briefing(w http.ResponseWriter, r *http.Request) {
	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}
	b, err := briefing.Assemble(bundle, h.catalog)
	if err != nil {
		respondDataUnavailable(w, err)
		return
	}

	resp := BriefingResponse{
		Briefing:    b,
		Suggestions: briefing.SuggestedQuestions(b),
	}
	if includePrompt, _ := strconv.ParseBool(r.URL.Query().Get("prompt")); includePrompt {
		resp.Prompt = briefing.Render(b)
	}
	for _, d := range bundle.Missing() {
		resp.Missing = append(resp.Missing, string(d))
	}
	respondJSON(w, http.StatusOK, resp)
}

// Query handles POST /api/query.
// A query that resolves to no data answers 404 with a null body.
func (h *APIHandlers) Query(w http.ResponseWriter, r *http.Request) {
	var req briefing.QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	bundle, ok := h.bundle(w, r)
	if !ok {
		return
	}

	result, err := briefing.Query(bundle, req)
	switch {
	case errors.Is(err, briefing.ErrInvalidQuery):
		respondJSON(w, http.StatusNotFound, nil)
	case err != nil:
		respondDataUnavailable(w, err)
	default:
		respondJSON(w, http.StatusOK, result)
	}
}

// Health handles GET /healthz.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// Ready handles GET /readyz. The server is ready once every mandatory
// dataset loads; absent optional datasets are listed but do not fail it.
func (h *APIHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	b, err := h.provider.Bundle(r.Context())
	if err != nil {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	resp := HealthResponse{Status: "ready"}
	for _, d := range b.Missing() {
		resp.Missing = append(resp.Missing, string(d))
	}
	respondJSON(w, http.StatusOK, resp)
}

// bundle loads the dataset bundle, writing a 503 on failure.
func (h *APIHandlers) bundle(w http.ResponseWriter, r *http.Request) (*datasets.Bundle, bool) {
	b, err := h.provider.Bundle(r.Context())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("ERROR: failed to load datasets: %v", err)
		}
		respondDataUnavailable(w, err)
		return nil, false
	}
	return b, true
}

// regions loads the bundle and converts its regional document, writing a
// 503 when the regional dataset is absent.
func (h *APIHandlers) regions(w http.ResponseWriter, r *http.Request) ([]types.Region, bool) {
	b, ok := h.bundle(w, r)
	if !ok {
		return nil, false
	}
	doc, present := b.Regional.Get()
	if !present {
		respondDataUnavailable(w, datasets.ErrOptionalDataMissing)
		return nil, false
	}
	return datasets.Regions(doc, h.catalog), true
}

// selection resolves the regions or category query parameter. With neither
// set, the catalog defaults present in the data are used.
func (h *APIHandlers) selection(w http.ResponseWriter, r *http.Request, regions []types.Region) ([]string, bool) {
	q := r.URL.Query()
	if keys := splitList(q.Get("regions")); len(keys) > 0 {
		return keys, true
	}
	if category := q.Get("category"); category != "" {
		keys, found := engine.SelectCategory(h.catalog, regions, category)
		if !found {
			respondError(w, http.StatusBadRequest, "Unknown category", errors.New(category))
			return nil, false
		}
		if keys == nil {
			keys = []string{}
		}
		return keys, true
	}
	return h.availableDefaults(regions), true
}

func (h *APIHandlers) availableDefaults(regions []types.Region) []string {
	present := make(map[string]bool, len(regions))
	for _, reg := range regions {
		present[reg.Key] = true
	}
	out := []string{}
	for _, k := range h.catalog.DefaultRegions {
		if present[k] {
			out = append(out, k)
		}
	}
	return out
}

// windows resolves a comma-separated list of window labels.
func (h *APIHandlers) windows(raw string) ([]types.PeriodWindow, error) {
	labels := splitList(raw)
	if len(labels) == 0 {
		return h.catalog.PeriodWindows(), nil
	}
	out := make([]types.PeriodWindow, 0, len(labels))
	for _, label := range labels {
		win, ok := h.catalog.Window(label)
		if !ok {
			return nil, errors.New("unknown window " + strconv.Quote(label))
		}
		out = append(out, win)
	}
	return out, nil
}

// sectorKeys lists every sector present in the table, catalog order first.
func sectorKeys(table types.SectorTable, preferred []string) []string {
	seen := make(map[string]struct{})
	for _, row := range table {
		for k := range row.Values {
			seen[k] = struct{}{}
		}
	}
	return types.OrderedKeys(seen, preferred)
}

// splitList splits a comma-separated query value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent.
		log.Printf("WARNING: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}

// respondDataUnavailable writes the 503 used whenever a needed dataset is
// missing. Internal error text is not exposed.
func respondDataUnavailable(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Error: "data unavailable",
		Code:  http.StatusText(http.StatusServiceUnavailable),
	}
	if errors.Is(err, datasets.ErrOptionalDataMissing) {
		resp.Details = map[string]interface{}{"reason": "optional dataset not published"}
	}
	respondJSON(w, http.StatusServiceUnavailable, resp)
}
