package engine_test

import (
	"testing"

	"github.com/scrypster/energy-services/internal/engine"
	"github.com/scrypster/energy-services/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cleanSources = []string{"nuclear", "hydro", "wind", "solar", "geothermal", "biomass"}

func sourceYear(year int, sources map[string]float64) types.YearRecord {
	return types.YearRecord{Year: year, SourcesServices: sources}
}

func TestSourceDisplacement(t *testing.T) {
	s := types.TimeSeries{
		sourceYear(2019, map[string]float64{"wind": 4, "solar": 2, "nuclear": 9, "hydro": 14}),
		sourceYear(2020, map[string]float64{"wind": 4.5, "solar": 2.6, "nuclear": 8.8, "hydro": 14.2}),
		sourceYear(2021, map[string]float64{"wind": 5.2, "solar": 3.3, "nuclear": 8.7, "hydro": 14.1}),
		sourceYear(2022, map[string]float64{"wind": 6, "solar": 4, "nuclear": 8.5, "hydro": 14.3, "geothermal": 0.4}),
	}

	tests := []struct {
		name      string
		window    types.PeriodWindow
		startYear int
		order     []string
		total     float64
		annual    float64
	}{
		{
			name:      "single year",
			window:    types.PeriodWindow{Label: "current", Years: 1},
			startYear: 2021,
			order:     []string{"wind", "solar", "geothermal", "hydro", "biomass", "nuclear"},
			total:     0.7 + 0.8 + 0.4 + 0.2,
			annual:    0.7 + 0.8 + 0.4 + 0.2,
		},
		{
			name:      "three years",
			window:    types.PeriodWindow{Label: "3year", Years: 3},
			startYear: 2019,
			order:     []string{"wind", "solar", "geothermal", "hydro", "biomass", "nuclear"},
			total:     2 + 2 + 0.4 + 0.3,
			annual:    (2 + 2 + 0.4 + 0.3) / 3,
		},
		{
			name:      "window longer than the series is clamped but divides by its nominal length",
			window:    types.PeriodWindow{Label: "10year", Years: 10},
			startYear: 2019,
			order:     []string{"wind", "solar", "geothermal", "hydro", "biomass", "nuclear"},
			total:     2 + 2 + 0.4 + 0.3,
			annual:    (2 + 2 + 0.4 + 0.3) / 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := engine.SourceDisplacement(s, cleanSources, tt.window)
			require.True(t, ok)
			assert.Equal(t, tt.window.Label, got.Window)
			assert.Equal(t, tt.startYear, got.StartYear)
			assert.Equal(t, 2022, got.EndYear)

			order := make([]string, 0, len(got.Sources))
			for _, g := range got.Sources {
				order = append(order, g.Source)
			}
			assert.Equal(t, tt.order, order)
			assert.InDelta(t, tt.total, got.TotalDisplacement, 1e-9)
			assert.InDelta(t, tt.annual, got.TotalAnnual, 1e-9)
		})
	}
}

func TestSourceDisplacement_GrowthRate(t *testing.T) {
	s := types.TimeSeries{
		sourceYear(2020, map[string]float64{"solar": 2, "nuclear": 10}),
		sourceYear(2022, map[string]float64{"solar": 3, "nuclear": 9, "geothermal": 0.5}),
	}

	got, ok := engine.SourceDisplacement(s, []string{"solar", "nuclear", "geothermal"}, types.PeriodWindow{Label: "2year", Years: 2})
	require.True(t, ok)

	bySource := make(map[string]engine.SourceGrowth)
	for _, g := range got.Sources {
		bySource[g.Source] = g
	}
	assert.InDelta(t, 25.0, bySource["solar"].GrowthRate, 1e-9)
	assert.InDelta(t, -5.0, bySource["nuclear"].GrowthRate, 1e-9)
	assert.Zero(t, bySource["geothermal"].GrowthRate, "no starting base")
	assert.InDelta(t, 0.25, bySource["geothermal"].AnnualGrowth, 1e-9)

	assert.InDelta(t, 1.5, got.TotalDisplacement, 1e-9)
	assert.InDelta(t, 1.0/1.5*100, bySource["solar"].Share(got.TotalDisplacement), 1e-9)
	assert.Zero(t, bySource["nuclear"].Share(got.TotalDisplacement))
}

func TestSourceDisplacement_Unavailable(t *testing.T) {
	_, ok := engine.SourceDisplacement(nil, cleanSources, types.PeriodWindow{Label: "current", Years: 1})
	assert.False(t, ok)

	s := types.TimeSeries{sourceYear(2024, map[string]float64{"wind": 1})}
	_, ok = engine.SourceDisplacement(s, cleanSources, types.PeriodWindow{Label: "bad", Years: 0})
	assert.False(t, ok)
}

func fossilPath(start int, values ...float64) types.TimeSeries {
	s := make(types.TimeSeries, 0, len(values))
	for i, v := range values {
		s = append(s, types.YearRecord{Year: start + i, FossilServices: v})
	}
	return s
}

func TestPeakYear(t *testing.T) {
	tests := []struct {
		name   string
		data   types.TimeSeries
		want   int
		wantOK bool
	}{
		{
			name:   "three falling years",
			data:   fossilPath(2025, 190, 191, 190.5, 189, 188),
			want:   2027,
			wantOK: true,
		},
		{
			name:   "short dips are ignored",
			data:   fossilPath(2025, 190, 189, 188, 189, 188, 187, 186),
			want:   2029,
			wantOK: true,
		},
		{
			name:   "first qualifying run wins",
			data:   fossilPath(2030, 200, 199, 198, 197, 198, 197, 196, 195),
			want:   2031,
			wantOK: true,
		},
		{
			name: "flat year breaks a run",
			data: fossilPath(2030, 200, 199, 199, 198, 197),
		},
		{
			name: "still rising",
			data: fossilPath(2025, 180, 182, 184, 186),
		},
		{
			name: "too short",
			data: fossilPath(2025, 180),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := engine.PeakYear(tt.data)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
