package engine_test

import (
	"testing"

	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/internal/engine"
	"github.com/scrypster/energy-services/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegions() []types.Region {
	return []types.Region{
		{Key: "China", Series: types.TimeSeries{
			{Year: 2022, FossilServices: 58, CleanServices: 12},
			{Year: 2023, FossilServices: 59.5, CleanServices: 13.5},
			{Year: 2024, FossilServices: 60.5, CleanServices: 15.5},
		}},
		{Key: "Europe", Series: types.TimeSeries{
			{Year: 2021, FossilServices: 22, CleanServices: 8.5},
			{Year: 2023, FossilServices: 21, CleanServices: 9},
			{Year: 2024, FossilServices: 20.2, CleanServices: 9.6},
		}},
		{Key: "India", Series: types.TimeSeries{
			{Year: 2023, FossilServices: 20, CleanServices: 3},
			{Year: 2024, FossilServices: 21.5, CleanServices: 3.4},
		}},
		{Key: "Brazil", Series: types.TimeSeries{
			{Year: 2024, FossilServices: 4, CleanServices: 4},
		}},
	}
}

func TestBuildComparison_RanksByAnnualCleanGrowth(t *testing.T) {
	window := types.PeriodWindow{Label: "current", Years: 1}

	got := engine.BuildComparison(testRegions(), []string{"India", "Europe", "China", "Atlantis"}, window)
	require.Len(t, got, 3)

	assert.Equal(t, "China", got[0].Entity.Key)
	assert.Equal(t, "Europe", got[1].Entity.Key)
	assert.Equal(t, "India", got[2].Entity.Key)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].AnnualCleanGrowth, got[i].AnnualCleanGrowth)
	}
}

func TestBuildComparison_NoHardCap(t *testing.T) {
	var regions []types.Region
	var selected []string
	for i := 0; i < 12; i++ {
		key := string(rune('A' + i))
		selected = append(selected, key)
		regions = append(regions, types.Region{Key: key, Series: types.TimeSeries{
			{Year: 2023, CleanServices: 1},
			{Year: 2024, CleanServices: 1 + float64(i)},
		}})
	}

	got := engine.BuildComparison(regions, selected, types.PeriodWindow{Label: "current", Years: 1})
	assert.Len(t, got, 12)
	assert.Equal(t, "L", got[0].Entity.Key)
}

func TestBuildTimeline_FirstRegionDrivesYears(t *testing.T) {
	got := engine.BuildTimeline(testRegions(), []string{"Europe", "China"}, 2000)

	years := make([]int, len(got))
	for i, p := range got {
		years[i] = p.Year
	}
	// Europe has no 2022 record, so no 2022 point is emitted even though China has one.
	assert.Equal(t, []int{2021, 2023, 2024}, years)

	// 2023: Europe lacks 2022 so its value is omitted rather than zero-filled.
	_, ok := got[1].Values["Europe"]
	assert.False(t, ok)
	assert.InDelta(t, 1.5, got[1].Values["China"], 1e-9)

	assert.InDelta(t, 0.6, got[2].Values["Europe"], 1e-9)
	assert.InDelta(t, 2.0, got[2].Values["China"], 1e-9)
}

func TestBuildTimeline_FromYearAndUnknown(t *testing.T) {
	got := engine.BuildTimeline(testRegions(), []string{"China"}, 2024)
	require.Len(t, got, 1)
	assert.Equal(t, 2024, got[0].Year)

	assert.Nil(t, engine.BuildTimeline(testRegions(), []string{"Atlantis", "China"}, 2000))
	assert.Nil(t, engine.BuildTimeline(testRegions(), nil, 2000))
}

func TestSelectCategory(t *testing.T) {
	cat := config.DefaultCatalog()
	cat.MaxCompareRegions = 2

	got, ok := engine.SelectCategory(cat, testRegions(), "Major Economies")
	require.True(t, ok)
	assert.Equal(t, []string{"China", "India"}, got)

	_, ok = engine.SelectCategory(cat, testRegions(), "Nowhere")
	assert.False(t, ok)
}
