package types_test

import (
	"encoding/json"
	"testing"

	"github.com/scrypster/energy-services/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYearRecord_DecodesServicesSpelling(t *testing.T) {
	raw := `{"year":2024,"total_services_ej":240.5,"fossil_services_ej":186.8,"clean_services_ej":53.7,
		"sources_services_ej":{"coal":60.1,"solar":4.2},"clean_services_share_percent":22.3}`

	var rec types.YearRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	assert.Equal(t, 2024, rec.Year)
	assert.Equal(t, 240.5, rec.TotalServices)
	assert.Equal(t, 186.8, rec.FossilServices)
	assert.Equal(t, 53.7, rec.CleanServices)
	assert.Equal(t, 22.3, rec.CleanSharePercent)
	assert.Equal(t, 4.2, rec.Source("solar"))
	assert.Equal(t, 0.0, rec.Source("wind"))
}

func TestYearRecord_DecodesUsefulSpelling(t *testing.T) {
	raw := `{"year":2010,"total_useful_ej":80,"fossil_useful_ej":70,"clean_useful_ej":10,"sources_useful_ej":{"hydro":6}}`

	var rec types.YearRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &rec))

	assert.Equal(t, 80.0, rec.TotalServices)
	assert.Equal(t, 70.0, rec.FossilServices)
	assert.Equal(t, 10.0, rec.CleanServices)
	assert.Equal(t, 6.0, rec.Source("hydro"))
}

func TestYearRecord_MissingCleanDecodesAsZero(t *testing.T) {
	var rec types.YearRecord
	require.NoError(t, json.Unmarshal([]byte(`{"year":1990,"fossil_useful_ej":12}`), &rec))

	assert.Equal(t, 12.0, rec.FossilServices)
	assert.Equal(t, 0.0, rec.CleanServices)
}

func TestTimeSeries_LatestPreviousFind(t *testing.T) {
	series := types.TimeSeries{{Year: 2022}, {Year: 2023}, {Year: 2024}}

	latest, ok := series.Latest()
	require.True(t, ok)
	assert.Equal(t, 2024, latest.Year)

	prev, ok := series.Previous()
	require.True(t, ok)
	assert.Equal(t, 2023, prev.Year)

	_, ok = series.Find(2019)
	assert.False(t, ok)

	first, last := series.Years()
	assert.Equal(t, 2022, first)
	assert.Equal(t, 2024, last)
}

func TestTimeSeries_ShortSeries(t *testing.T) {
	var empty types.TimeSeries
	_, ok := empty.Latest()
	assert.False(t, ok)

	single := types.TimeSeries{{Year: 2024}}
	_, ok = single.Previous()
	assert.False(t, ok)
}

func TestOrderedKeys_PreferredThenLexical(t *testing.T) {
	m := map[string]float64{"solar": 1, "zeta": 2, "coal": 3, "alpha": 4}

	keys := types.OrderedKeys(m, []string{"coal", "oil", "solar"})

	assert.Equal(t, []string{"coal", "solar", "alpha", "zeta"}, keys)
}

func TestEfficiencyDocument_SplitsNotes(t *testing.T) {
	raw := `{"system_wide_efficiency":{"coal":0.32,"nuclear":0.25,"notes":"thermal accounting"}}`

	var doc types.EfficiencyDocument
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	assert.Equal(t, map[string]float64{"coal": 0.32, "nuclear": 0.25}, doc.SystemWide)
	assert.Equal(t, "thermal accounting", doc.Notes["notes"])
}

func TestFossilGrowthDocument_Latest(t *testing.T) {
	doc := types.FossilGrowthDocument{Data: []types.FossilGrowthRecord{
		{Year: 2023, DeltaFossil: 1.0},
		{Year: 2024, DeltaFossil: 3.13},
	}}

	latest, ok := doc.Latest()
	require.True(t, ok)
	assert.Equal(t, 3.13, latest.DeltaFossil)

	_, ok = types.FossilGrowthDocument{}.Latest()
	assert.False(t, ok)
}
