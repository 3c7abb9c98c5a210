package engine

import (
	"math"

	"github.com/scrypster/energy-services/pkg/types"
)

// Status is the displacement status between two consecutive years.
type Status string

const (
	// StatusRecarbonization means clean services shrank.
	StatusRecarbonization Status = "recarbonization"
	// StatusRising means displacement did not cover fossil growth.
	StatusRising Status = "rising"
	// StatusPeak means displacement matched fossil growth to within 0.01 EJ.
	StatusPeak Status = "peak"
	// StatusDeclining means displacement exceeded fossil growth.
	StatusDeclining Status = "declining"
)

// peakTolerance is the EJ band treated as a plateau.
const peakTolerance = 0.01

// TransitionSnapshot is the displacement picture for one year against the
// year before.
type TransitionSnapshot struct {
	Year         int     `json:"year"`
	PreviousYear int     `json:"previous_year"`
	FossilGrowth float64 `json:"fossil_growth"`
	CleanGrowth  float64 `json:"clean_growth"`
	Displacement float64 `json:"displacement"`
	NetChange    float64 `json:"net_change"`
	Status       Status  `json:"status"`
}

// TransitionStatus compares two records. Displacement is clean growth
// floored at zero.
func TransitionStatus(prev, curr types.YearRecord) TransitionSnapshot {
	fossilGrowth := curr.FossilServices - prev.FossilServices
	cleanGrowth := curr.CleanServices - prev.CleanServices
	displacement := math.Max(0, cleanGrowth)

	var status Status
	switch {
	case cleanGrowth < 0:
		status = StatusRecarbonization
	case displacement < fossilGrowth:
		status = StatusRising
	case math.Abs(displacement-fossilGrowth) < peakTolerance:
		status = StatusPeak
	default:
		status = StatusDeclining
	}

	return TransitionSnapshot{
		Year:         curr.Year,
		PreviousYear: prev.Year,
		FossilGrowth: fossilGrowth,
		CleanGrowth:  cleanGrowth,
		Displacement: displacement,
		NetChange:    fossilGrowth - displacement,
		Status:       status,
	}
}

// LatestStatus returns the status of the last two records of a series.
func LatestStatus(series types.TimeSeries) (TransitionSnapshot, bool) {
	curr, ok := series.Latest()
	if !ok {
		return TransitionSnapshot{}, false
	}
	prev, ok := series.Previous()
	if !ok {
		return TransitionSnapshot{}, false
	}
	return TransitionStatus(prev, curr), true
}

// YearChange is one year of the net change timeline.
type YearChange struct {
	Year            int     `json:"year"`
	FossilGrowth    float64 `json:"fossil_growth"`
	CleanGrowth     float64 `json:"clean_growth"`
	Displacement    float64 `json:"displacement"`
	NetChange       float64 `json:"net_change"`
	FossilGrowthPct float64 `json:"fossil_growth_pct"`
	CleanGrowthPct  float64 `json:"clean_growth_pct"`
	DisplacementPct float64 `json:"displacement_pct"`
	NetChangePct    float64 `json:"net_change_pct"`
}

// YearOverYear returns the change of every record against its predecessor.
// Net change is fossil growth minus displacement. Clean growth percentages
// use the previous clean base; the others use the previous fossil base. A
// zero base yields 0.
func YearOverYear(series types.TimeSeries) []YearChange {
	if len(series) < 2 {
		return nil
	}
	out := make([]YearChange, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		prev, curr := series[i-1], series[i]
		fossil := curr.FossilServices - prev.FossilServices
		clean := curr.CleanServices - prev.CleanServices
		displacement := math.Max(0, clean)
		net := fossil - displacement
		out = append(out, YearChange{
			Year:            curr.Year,
			FossilGrowth:    fossil,
			CleanGrowth:     clean,
			Displacement:    displacement,
			NetChange:       net,
			FossilGrowthPct: percentOf(fossil, prev.FossilServices),
			CleanGrowthPct:  percentOf(clean, prev.CleanServices),
			DisplacementPct: percentOf(displacement, prev.FossilServices),
			NetChangePct:    percentOf(net, prev.FossilServices),
		})
	}
	return out
}

func percentOf(delta, base float64) float64 {
	if base == 0 {
		return 0
	}
	return delta / base * 100
}
