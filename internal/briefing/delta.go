package briefing

import (
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/pkg/types"
)

// DeltaStrategy names where the year-over-year fossil and clean deltas
// came from.
type DeltaStrategy string

const (
	// PreciseSource takes the deltas from the fossil-growth tracking dataset.
	PreciseSource DeltaStrategy = "precise_source"
	// DerivedFallback subtracts the previous record from the latest one.
	DerivedFallback DeltaStrategy = "derived_fallback"
)

// Deltas are the year-over-year changes reported in a briefing, in EJ.
type Deltas struct {
	Strategy DeltaStrategy `json:"strategy"`

	FossilChange float64 `json:"fossil_change"`
	CleanChange  float64 `json:"clean_change"`
	TotalChange  float64 `json:"total_change"`

	// FossilGrowthPct is fossil change as a percentage of total change. The
	// precise row's ff_growth_pct is used when non-zero; otherwise the ratio
	// is derived from the deltas, and is 0 when total change is 0.
	FossilGrowthPct float64 `json:"fossil_growth_pct"`
}

// SelectDeltaStrategy picks PreciseSource when the fossil-growth dataset is
// present with at least one row, returning that row.
func SelectDeltaStrategy(fg datasets.Optional[types.FossilGrowthDocument]) (DeltaStrategy, types.FossilGrowthRecord) {
	doc, ok := fg.Get()
	if !ok {
		return DerivedFallback, types.FossilGrowthRecord{}
	}
	row, ok := doc.Latest()
	if !ok {
		return DerivedFallback, types.FossilGrowthRecord{}
	}
	return PreciseSource, row
}

// ComputeDeltas derives the briefing deltas. Total change always comes from
// the primary series. A precise row without ff_growth_pct decodes to 0 and
// gets the derived ratio like the fallback does.
func ComputeDeltas(latest, previous types.YearRecord, fg datasets.Optional[types.FossilGrowthDocument]) Deltas {
	strategy, row := SelectDeltaStrategy(fg)
	d := Deltas{
		Strategy:    strategy,
		TotalChange: latest.TotalServices - previous.TotalServices,
	}

	switch strategy {
	case PreciseSource:
		d.FossilChange = row.DeltaFossil
		d.CleanChange = row.DeltaClean
		d.FossilGrowthPct = row.FossilGrowthPct
	default:
		d.FossilChange = latest.FossilServices - previous.FossilServices
		d.CleanChange = latest.CleanServices - previous.CleanServices
	}
	if d.FossilGrowthPct == 0 && d.TotalChange != 0 {
		d.FossilGrowthPct = d.FossilChange / d.TotalChange * 100
	}
	return d
}

// Phase classifies the current displacement phase.
type Phase string

const (
	PhaseFossilRising    Phase = "fossil still rising net of displacement"
	PhaseFossilDeclining Phase = "fossil declining net of displacement"
	PhaseBalanced        Phase = "balanced"
)

// ClassifyPhase compares the fossil change with the clean change.
func ClassifyPhase(fossilChange, cleanChange float64) Phase {
	switch {
	case fossilChange > cleanChange:
		return PhaseFossilRising
	case cleanChange > fossilChange:
		return PhaseFossilDeclining
	default:
		return PhaseBalanced
	}
}

// Label is the phase as worded for the assistant.
func (p Phase) Label() string {
	switch p {
	case PhaseFossilRising:
		return "Displacement < Fossil Growth (fossil consumption still rising)"
	case PhaseFossilDeclining:
		return "Displacement > Fossil Growth (fossil consumption declining)"
	default:
		return "Balanced (fossil consumption stable)"
	}
}
