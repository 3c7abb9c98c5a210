// Package engine derives period, sectoral, and regional metrics from energy
// services time series. Every function is pure: inputs are never mutated and
// every result is a fresh value.
package engine

import (
	"github.com/scrypster/energy-services/pkg/types"
)

// ComputePeriodMetrics computes one PeriodMetric per window for an entity's
// series. The window ends at the last record and starts N records earlier,
// clamped to the first record. Windows the series cannot cover are omitted.
//
// Annualized values always divide by the window's nominal length, even when
// the start was clamped. For series shorter than a window this understates
// the annual rate.
func ComputePeriodMetrics(entity types.Entity, series types.TimeSeries, windows []types.PeriodWindow) map[string]types.PeriodMetric {
	out := make(map[string]types.PeriodMetric, len(windows))
	for _, w := range windows {
		if m, ok := ComputeWindow(entity, series, w); ok {
			out[w.Label] = m
		}
	}
	return out
}

// ComputeWindow computes the metric for a single window.
func ComputeWindow(entity types.Entity, series types.TimeSeries, w types.PeriodWindow) (types.PeriodMetric, bool) {
	if w.Years <= 0 || len(series) == 0 {
		return types.PeriodMetric{}, false
	}

	endIdx := len(series) - 1
	startIdx := endIdx - w.Years
	if startIdx < 0 {
		startIdx = 0
	}
	start, end := series[startIdx], series[endIdx]
	n := float64(w.Years)

	cleanGrowth := end.CleanServices - start.CleanServices
	fossilChange := end.FossilServices - start.FossilServices
	netChange := fossilChange - cleanGrowth

	var displacement float64
	if start.FossilServices > 0 {
		displacement = cleanGrowth / start.FossilServices * 100
	}

	return types.PeriodMetric{
		Entity:             entity,
		Window:             w.Label,
		StartYear:          start.Year,
		EndYear:            end.Year,
		FossilStart:        start.FossilServices,
		FossilEnd:          end.FossilServices,
		CleanStart:         start.CleanServices,
		CleanEnd:           end.CleanServices,
		CleanGrowth:        cleanGrowth,
		AnnualCleanGrowth:  cleanGrowth / n,
		FossilChange:       fossilChange,
		AnnualFossilChange: fossilChange / n,
		NetChange:          netChange,
		AnnualNetChange:    netChange / n,
		DisplacementRate:   displacement,
	}, true
}
