package briefing_test

import (
	"errors"
	"testing"

	"github.com/scrypster/energy-services/internal/briefing"
	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trendBundle() *datasets.Bundle {
	b := testBundle()
	b.Historical.Data = types.TimeSeries{
		{Year: 2000, TotalServices: 160, FossilServices: 140, CleanServices: 20, SourcesServices: map[string]float64{"solar": 100, "wind": 0}},
		{Year: 2010, TotalServices: 190, FossilServices: 160, CleanServices: 30, SourcesServices: map[string]float64{"solar": 140}},
		{Year: 2020, TotalServices: 220, FossilServices: 175, CleanServices: 45, SourcesServices: map[string]float64{"solar": 200, "wind": 5}},
	}
	return b
}

func TestQuery_TrendCAGR(t *testing.T) {
	res, err := briefing.Query(trendBundle(), briefing.QueryRequest{
		Type: briefing.QueryTrend, Source: "solar", StartYear: 2000, EndYear: 2020,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Trend)

	tr := res.Trend
	assert.Equal(t, 100.0, tr.StartValue)
	assert.Equal(t, 200.0, tr.EndValue)
	assert.Equal(t, 100.0, tr.AbsoluteChange)
	assert.InDelta(t, 100.0, tr.PercentChange, 1e-9)
	assert.InDelta(t, 0.03526, tr.CAGR, 1e-5)
	assert.InDelta(t, 3.526, tr.CAGRPercent, 1e-3)
}

func TestQuery_TrendAggregateSeries(t *testing.T) {
	res, err := briefing.Query(trendBundle(), briefing.QueryRequest{
		Type: briefing.QueryTrend, Source: briefing.SeriesClean, StartYear: 2000, EndYear: 2010,
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Trend.StartValue)
	assert.Equal(t, 30.0, res.Trend.EndValue)
}

func TestQuery_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  briefing.QueryRequest
	}{
		{"unknown type", briefing.QueryRequest{Type: "forecast"}},
		{"missing historical year", briefing.QueryRequest{Type: briefing.QueryHistorical, Year: 1900}},
		{"unknown scenario", briefing.QueryRequest{Type: briefing.QueryProjection, Scenario: "Fantasy", Year: 2030}},
		{"empty scenario", briefing.QueryRequest{Type: briefing.QueryProjection, Year: 2030}},
		{"scenario without year", briefing.QueryRequest{Type: briefing.QueryProjection, Scenario: "STEPS", Year: 2031}},
		{"zero start value", briefing.QueryRequest{Type: briefing.QueryTrend, Source: "wind", StartYear: 2000, EndYear: 2020}},
		{"zero length", briefing.QueryRequest{Type: briefing.QueryTrend, Source: "solar", StartYear: 2010, EndYear: 2010}},
		{"unknown source", briefing.QueryRequest{Type: briefing.QueryTrend, Source: "fusion", StartYear: 2000, EndYear: 2020}},
		{"missing end year", briefing.QueryRequest{Type: briefing.QueryTrend, Source: "solar", StartYear: 2000, EndYear: 2030}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := briefing.Query(trendBundle(), tt.req)
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, briefing.ErrInvalidQuery), "got %v", err)
		})
	}
}

func TestQuery_Historical(t *testing.T) {
	res, err := briefing.Query(trendBundle(), briefing.QueryRequest{Type: briefing.QueryHistorical, Year: 2010})
	require.NoError(t, err)
	require.NotNil(t, res.Record)
	assert.Equal(t, 190.0, res.Record.TotalServices)
}

func TestQuery_ProjectionBySubstring(t *testing.T) {
	res, err := briefing.Query(trendBundle(), briefing.QueryRequest{Type: briefing.QueryProjection, Scenario: "STEPS", Year: 2040})
	require.NoError(t, err)
	assert.Equal(t, "Baseline (STEPS)", res.Scenario)
	assert.Equal(t, 150.0, res.Record.FossilServices)
}
