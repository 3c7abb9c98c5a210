// Package briefing assembles the data briefing handed to the assistant and
// answers point, projection, and trend queries against the raw series.
//
// A briefing is a deterministic function of one dataset bundle and the
// catalog. Sections backed by optional datasets are nil when the dataset is
// absent.
package briefing

import (
	"fmt"

	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/internal/engine"
	"github.com/scrypster/energy-services/pkg/types"
)

// Briefing is the structured context for one assistant turn.
type Briefing struct {
	ModelVersion string `json:"model_version"`

	Latest   types.YearRecord `json:"latest"`
	Previous types.YearRecord `json:"previous"`
	Deltas   Deltas           `json:"deltas"`
	Phase    Phase            `json:"phase"`

	Status       engine.TransitionSnapshot      `json:"status"`
	Periods      []types.PeriodMetric           `json:"periods"`
	Displacement []engine.DisplacementBreakdown `json:"displacement"`

	Sources     []SourceChange     `json:"sources"`
	Efficiency  []EfficiencyFactor `json:"efficiency"`
	Methodology Methodology        `json:"methodology"`
	Baseline    *ScenarioSummary   `json:"baseline,omitempty"`
	Peaks       []ScenarioPeak     `json:"peaks,omitempty"`
	History     HistoryRange       `json:"history"`

	Regional           *RegionalSummary           `json:"regional,omitempty"`
	Sectoral           *SectoralSummary           `json:"sectoral,omitempty"`
	SectoralTimeseries *SectoralTimeseriesSummary `json:"sectoral_timeseries,omitempty"`

	FossilGrowthTracking bool `json:"fossil_growth_tracking"`
}

// SourceChange is one energy source in the latest year with its change
// from the previous year.
type SourceChange struct {
	Source string  `json:"source"`
	Value  float64 `json:"value"`
	Change float64 `json:"change"`
}

// EfficiencyFactor is one system-wide conversion efficiency, as a fraction.
type EfficiencyFactor struct {
	Source string  `json:"source"`
	Factor float64 `json:"factor"`
}

// Methodology carries the projection model's notes verbatim.
type Methodology struct {
	Corrections             string `json:"corrections,omitempty"`
	DisplacementMethodology string `json:"displacement_methodology,omitempty"`
	RMIBaselineNote         string `json:"rmi_baseline_note,omitempty"`
}

// ScenarioSummary holds a scenario's records at the catalog projection years.
type ScenarioSummary struct {
	Name   string             `json:"name"`
	Points []types.YearRecord `json:"points"`
}

// ScenarioPeak is the projected fossil peak of one scenario. Year is zero
// when fossil services never enter a sustained decline.
type ScenarioPeak struct {
	Scenario string `json:"scenario"`
	Year     int    `json:"year,omitempty"`
	Peaked   bool   `json:"peaked"`
}

// HistoryRange describes the extent of the primary historical series.
type HistoryRange struct {
	FirstYear int              `json:"first_year"`
	LastYear  int              `json:"last_year"`
	Count     int              `json:"count"`
	First     types.YearRecord `json:"first"`
}

// RegionalSummary lists the leading region keys.
type RegionalSummary struct {
	Count   int      `json:"count"`
	Regions []string `json:"regions"`
	More    bool     `json:"more"`
}

// SectoralSummary is the snapshot breakdown at the latest total.
type SectoralSummary struct {
	Rows    []engine.SectorRow `json:"rows"`
	Sources []string           `json:"sources,omitempty"`
}

// SectoralTimeseriesSummary describes the sectoral time series.
type SectoralTimeseriesSummary struct {
	FirstYear   int `json:"first_year"`
	LastYear    int `json:"last_year"`
	Years       int `json:"years"`
	SectorCount int `json:"sector_count"`
}

// Assemble builds the briefing for a bundle. It fails with
// datasets.ErrDataUnavailable when the historical series has fewer than two
// records; missing optional datasets only drop their sections.
func Assemble(b *datasets.Bundle, cat config.Catalog) (*Briefing, error) {
	if b == nil {
		return nil, fmt.Errorf("briefing: no bundle: %w", datasets.ErrDataUnavailable)
	}
	series := b.Historical.Data
	latest, ok := series.Latest()
	if !ok {
		return nil, fmt.Errorf("briefing: historical series is empty: %w", datasets.ErrDataUnavailable)
	}
	previous, ok := series.Previous()
	if !ok {
		return nil, fmt.Errorf("briefing: historical series needs two years: %w", datasets.ErrDataUnavailable)
	}

	deltas := ComputeDeltas(latest, previous, b.FossilGrowth)
	meta := b.Projections.Metadata

	out := &Briefing{
		ModelVersion: meta.Version,
		Latest:       latest,
		Previous:     previous,
		Deltas:       deltas,
		Phase:        ClassifyPhase(deltas.FossilChange, deltas.CleanChange),
		Status:       engine.TransitionStatus(previous, latest),
		Periods:      orderedPeriods(series, cat),
		Displacement: SourceDisplacement(series, cat),
		Sources:      sourceChanges(latest, previous, cat),
		Efficiency:   efficiencyFactors(b.Efficiency, cat),
		Methodology: Methodology{
			Corrections:             meta.Corrections,
			DisplacementMethodology: meta.DisplacementMethodology,
			RMIBaselineNote:         meta.RMIBaselineNote,
		},
		Baseline: baselineSummary(b.Projections, cat),
		Peaks:    ScenarioPeaks(b.Projections),
		History: HistoryRange{
			FirstYear: series[0].Year,
			LastYear:  latest.Year,
			Count:     len(series),
			First:     series[0],
		},
		FossilGrowthTracking: b.FossilGrowth.Present(),
	}

	if doc, ok := b.Regional.Get(); ok {
		out.Regional = regionalSummary(doc, cat)
	}
	if doc, ok := b.Sectoral.Get(); ok {
		out.Sectoral = &SectoralSummary{
			Rows:    engine.SectorBreakdown(datasets.Sectors(doc, cat), latest.TotalServices),
			Sources: doc.Metadata.Sources,
		}
	}
	if doc, ok := b.SectoralTimeseries.Get(); ok {
		out.SectoralTimeseries = sectoralTimeseriesSummary(doc)
	}
	return out, nil
}

func orderedPeriods(series types.TimeSeries, cat config.Catalog) []types.PeriodMetric {
	windows := cat.PeriodWindows()
	metrics := engine.ComputePeriodMetrics(types.GlobalEntity, series, windows)
	out := make([]types.PeriodMetric, 0, len(metrics))
	for _, w := range windows {
		if m, ok := metrics[w.Label]; ok {
			out = append(out, m)
		}
	}
	return out
}

// SourceDisplacement breaks clean growth down by clean source for every
// catalog window, in catalog order.
func SourceDisplacement(series types.TimeSeries, cat config.Catalog) []engine.DisplacementBreakdown {
	windows := cat.PeriodWindows()
	out := make([]engine.DisplacementBreakdown, 0, len(windows))
	for _, w := range windows {
		if d, ok := engine.SourceDisplacement(series, cat.CleanSources, w); ok {
			out = append(out, d)
		}
	}
	return out
}

// ScenarioPeaks finds the fossil peak of every projection scenario, in
// document order.
func ScenarioPeaks(doc types.ProjectionsDocument) []ScenarioPeak {
	if len(doc.Scenarios) == 0 {
		return nil
	}
	out := make([]ScenarioPeak, 0, len(doc.Scenarios))
	for _, s := range doc.Scenarios {
		year, ok := engine.PeakYear(s.Data)
		out = append(out, ScenarioPeak{Scenario: s.Name, Year: year, Peaked: ok})
	}
	return out
}

func sourceChanges(latest, previous types.YearRecord, cat config.Catalog) []SourceChange {
	keys := types.OrderedKeys(latest.SourcesServices, cat.Sources)
	out := make([]SourceChange, 0, len(keys))
	for _, k := range keys {
		curr := latest.Source(k)
		out = append(out, SourceChange{Source: k, Value: curr, Change: curr - previous.Source(k)})
	}
	return out
}

func efficiencyFactors(doc types.EfficiencyDocument, cat config.Catalog) []EfficiencyFactor {
	var out []EfficiencyFactor
	for _, k := range types.OrderedKeys(doc.SystemWide, cat.Sources) {
		if cat.IsEfficiencyExcluded(k) {
			continue
		}
		out = append(out, EfficiencyFactor{Source: k, Factor: doc.SystemWide[k]})
	}
	return out
}

func baselineSummary(doc types.ProjectionsDocument, cat config.Catalog) *ScenarioSummary {
	for _, s := range doc.Scenarios {
		if s.Name != cat.BaselineScenario {
			continue
		}
		summary := &ScenarioSummary{Name: s.Name}
		for _, year := range cat.ProjectionYears {
			if rec, ok := s.Data.Find(year); ok {
				summary.Points = append(summary.Points, rec)
			}
		}
		return summary
	}
	return nil
}

func regionalSummary(doc types.RegionalDocument, cat config.Catalog) *RegionalSummary {
	keys := types.OrderedKeys(doc.Regions, cat.DefaultRegions)
	limit := cat.RegionSummaryLimit
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}
	return &RegionalSummary{
		Count:   len(keys),
		Regions: keys[:limit],
		More:    len(keys) > limit,
	}
}

func sectoralTimeseriesSummary(doc types.SectoralTimeseriesDocument) *SectoralTimeseriesSummary {
	table := datasets.SectorTable(doc)
	summary := &SectoralTimeseriesSummary{Years: len(table)}
	if len(table) == 0 {
		return summary
	}
	summary.FirstYear = table[0].Year
	summary.LastYear = table[len(table)-1].Year
	summary.SectorCount = len(table[0].Values)
	return summary
}
