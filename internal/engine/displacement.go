package engine

import (
	"math"
	"sort"

	"github.com/scrypster/energy-services/pkg/types"
)

// minDeclineRun is how many consecutive years of falling fossil services
// mark a peak.
const minDeclineRun = 3

// SourceGrowth is one clean source's growth over a window.
type SourceGrowth struct {
	Source       string  `json:"source"`
	StartValue   float64 `json:"start_value"`
	EndValue     float64 `json:"end_value"`
	TotalGrowth  float64 `json:"total_growth"`
	AnnualGrowth float64 `json:"annual_growth"`
	GrowthRate   float64 `json:"growth_rate"` // Percent per year of the starting value; 0 without a base
}

// Share returns the source's share of total displacement in percent.
// Shrinking sources contribute nothing.
func (g SourceGrowth) Share(total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Max(0, g.TotalGrowth) / total * 100
}

// DisplacementBreakdown attributes a window's clean growth to sources.
type DisplacementBreakdown struct {
	Window            string         `json:"window"`
	StartYear         int            `json:"start_year"`
	EndYear           int            `json:"end_year"`
	Sources           []SourceGrowth `json:"sources"`
	TotalDisplacement float64        `json:"total_displacement"`
	TotalAnnual       float64        `json:"total_annual"`
}

// SourceDisplacement splits clean growth over window w by source, largest
// total growth first. The window is resolved the same way as ComputeWindow.
// Totals count only growing sources.
func SourceDisplacement(series types.TimeSeries, sources []string, w types.PeriodWindow) (DisplacementBreakdown, bool) {
	if w.Years <= 0 || len(series) == 0 {
		return DisplacementBreakdown{}, false
	}

	endIdx := len(series) - 1
	startIdx := endIdx - w.Years
	if startIdx < 0 {
		startIdx = 0
	}
	start, end := series[startIdx], series[endIdx]
	n := float64(w.Years)

	out := DisplacementBreakdown{
		Window:    w.Label,
		StartYear: start.Year,
		EndYear:   end.Year,
		Sources:   make([]SourceGrowth, 0, len(sources)),
	}
	for _, src := range sources {
		sv, ev := start.Source(src), end.Source(src)
		g := SourceGrowth{
			Source:       src,
			StartValue:   sv,
			EndValue:     ev,
			TotalGrowth:  ev - sv,
			AnnualGrowth: (ev - sv) / n,
		}
		if sv > 0 {
			g.GrowthRate = (ev/sv - 1) * 100 / n
		}
		out.Sources = append(out.Sources, g)
		out.TotalDisplacement += math.Max(0, g.TotalGrowth)
		out.TotalAnnual += math.Max(0, g.AnnualGrowth)
	}

	sort.SliceStable(out.Sources, func(i, j int) bool {
		return out.Sources[i].TotalGrowth > out.Sources[j].TotalGrowth
	})
	return out, true
}

// PeakYear returns the first year of the earliest run of at least three
// consecutive years in which fossil services fell. It reports false when
// no such run exists.
func PeakYear(data types.TimeSeries) (int, bool) {
	run, first := 0, 0
	for i := 1; i < len(data); i++ {
		if data[i].FossilServices-data[i-1].FossilServices >= 0 {
			run = 0
			continue
		}
		if run == 0 {
			first = data[i].Year
		}
		run++
		if run >= minDeclineRun {
			return first, true
		}
	}
	return 0, false
}
