// Package types defines the core data structures for the energy-services
// analytics core: yearly energy records, time series, regions, sectors, and
// the period metrics derived from them.
//
// All values are plain snapshots. Nothing in this package holds a reference
// back to the document it was decoded from.
package types

import (
	"encoding/json"
	"sort"
)

// Period window labels from the fixed lookback catalog.
const (
	WindowCurrent    = "current"
	WindowFiveYear   = "5year"
	WindowTenYear    = "10year"
	WindowTwentyYear = "20year"
)

// YearRecord is one calendar year of energy services for one entity
// (the world, a region, or a projection scenario). Values are in EJ.
type YearRecord struct {
	Year              int                `json:"year"`
	TotalServices     float64            `json:"total_services_ej"`
	FossilServices    float64            `json:"fossil_services_ej"`
	CleanServices     float64            `json:"clean_services_ej"`
	SourcesServices   map[string]float64 `json:"sources_services_ej,omitempty"`
	CleanSharePercent float64            `json:"clean_services_share_percent,omitempty"`
}

// yearRecordWire accepts both field spellings found in the datasets: the
// global and projection documents use *_services_ej while the regional
// document uses *_useful_ej.
type yearRecordWire struct {
	Year int `json:"year"`

	TotalServices     *float64           `json:"total_services_ej"`
	FossilServices    *float64           `json:"fossil_services_ej"`
	CleanServices     *float64           `json:"clean_services_ej"`
	SourcesServices   map[string]float64 `json:"sources_services_ej"`
	CleanSharePercent *float64           `json:"clean_services_share_percent"`

	TotalUseful   *float64           `json:"total_useful_ej"`
	FossilUseful  *float64           `json:"fossil_useful_ej"`
	CleanUseful   *float64           `json:"clean_useful_ej"`
	SourcesUseful map[string]float64 `json:"sources_useful_ej"`
}

// UnmarshalJSON decodes a YearRecord from either dataset spelling.
// Missing numeric fields decode as zero.
func (r *YearRecord) UnmarshalJSON(data []byte) error {
	var w yearRecordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	r.Year = w.Year
	r.TotalServices = firstOf(w.TotalServices, w.TotalUseful)
	r.FossilServices = firstOf(w.FossilServices, w.FossilUseful)
	r.CleanServices = firstOf(w.CleanServices, w.CleanUseful)
	r.CleanSharePercent = firstOf(w.CleanSharePercent)
	r.SourcesServices = w.SourcesServices
	if r.SourcesServices == nil {
		r.SourcesServices = w.SourcesUseful
	}
	return nil
}

func firstOf(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}

// Source returns the services value for an energy source, or 0 when the
// record does not carry that source.
func (r YearRecord) Source(key string) float64 {
	return r.SourcesServices[key]
}

// TimeSeries is a chronologically ordered sequence of YearRecords for one
// entity. Index-based lookups ("latest", "previous", window starts) rely on
// this ordering.
type TimeSeries []YearRecord

// Latest returns the last record of the series.
func (s TimeSeries) Latest() (YearRecord, bool) {
	if len(s) == 0 {
		return YearRecord{}, false
	}
	return s[len(s)-1], true
}

// Previous returns the second-to-last record of the series.
func (s TimeSeries) Previous() (YearRecord, bool) {
	if len(s) < 2 {
		return YearRecord{}, false
	}
	return s[len(s)-2], true
}

// Find returns the record for year, matched by equality on Year rather than
// by position.
func (s TimeSeries) Find(year int) (YearRecord, bool) {
	for _, rec := range s {
		if rec.Year == year {
			return rec, true
		}
	}
	return YearRecord{}, false
}

// Years returns the first and last year of the series.
func (s TimeSeries) Years() (first, last int) {
	if len(s) == 0 {
		return 0, 0
	}
	return s[0].Year, s[len(s)-1].Year
}

// Entity identifies whose series a metric was computed from.
type Entity struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// GlobalEntity is the entity used for world-level series.
var GlobalEntity = Entity{Key: "World", Name: "World"}

// Region is one geographic or economic grouping with its own time series.
// Regions are independent of each other; category groupings are a selection
// aid only.
type Region struct {
	Key    string     `json:"key"`
	Name   string     `json:"name"`
	Series TimeSeries `json:"-"`
}

// Entity returns the region's identity.
func (r Region) Entity() Entity {
	name := r.Name
	if name == "" {
		name = r.Key
	}
	return Entity{Key: r.Key, Name: name}
}

// Sector is one end-use sector of the static sectoral snapshot.
type Sector struct {
	Key             string  `json:"key"`
	Share           float64 `json:"share"`            // Fraction of total services (not validated to sum to 1)
	FossilIntensity float64 `json:"fossil_intensity"` // Fraction in [0,1] of the sector's services from fossil sources
	Description     string  `json:"description,omitempty"`
}

// SectorYear is one year of a sectoral time series: sector key to total EJ.
type SectorYear struct {
	Year   int                `json:"year"`
	Values map[string]float64 `json:"values"`
}

// SectorTable is a year-ordered sectoral time series.
type SectorTable []SectorYear

// PeriodWindow is a named lookback window.
type PeriodWindow struct {
	Label string `json:"label"`
	Years int    `json:"years"`
}

// DefaultWindows is the fixed window catalog.
func DefaultWindows() []PeriodWindow {
	return []PeriodWindow{
		{Label: WindowCurrent, Years: 1},
		{Label: WindowFiveYear, Years: 5},
		{Label: WindowTenYear, Years: 10},
		{Label: WindowTwentyYear, Years: 20},
	}
}

// PeriodMetric is the growth/displacement summary of one entity over one
// window. It is computed on demand and never mutated.
type PeriodMetric struct {
	Entity    Entity `json:"entity"`
	Window    string `json:"window"`
	StartYear int    `json:"start_year"`
	EndYear   int    `json:"end_year"`

	FossilStart float64 `json:"fossil_start"`
	FossilEnd   float64 `json:"fossil_end"`
	CleanStart  float64 `json:"clean_start"`
	CleanEnd    float64 `json:"clean_end"`

	CleanGrowth        float64 `json:"clean_growth"`
	AnnualCleanGrowth  float64 `json:"annual_clean_growth"`
	FossilChange       float64 `json:"fossil_change"`
	AnnualFossilChange float64 `json:"annual_fossil_change"`
	NetChange          float64 `json:"net_change"`
	AnnualNetChange    float64 `json:"annual_net_change"`
	DisplacementRate   float64 `json:"displacement_rate"` // Percent of the starting fossil base offset by clean growth
}

// ProjectionScenario is one named projection pathway.
type ProjectionScenario struct {
	Name string     `json:"name"`
	Data TimeSeries `json:"data"`
}

// FossilGrowthRecord is one row of the fossil-growth tracking dataset, which
// carries year-over-year deltas computed upstream with more precision than
// the rounded services series.
type FossilGrowthRecord struct {
	Year            int     `json:"year"`
	DeltaTotal      float64 `json:"delta_total_ej"`
	DeltaFossil     float64 `json:"delta_fossil_ej"`
	DeltaClean      float64 `json:"delta_clean_ej"`
	FossilGrowthPct float64 `json:"ff_growth_pct"`
	CleanGrowthPct  float64 `json:"clean_growth_pct"`
}

// OrderedKeys returns the keys of m ordered by the preferred list first, then
// any remaining keys in lexical order. Map iteration order is never used
// directly for output.
func OrderedKeys[V any](m map[string]V, preferred []string) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range preferred {
		if _, ok := m[k]; ok && !seen[k] {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}
