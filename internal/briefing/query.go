package briefing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/scrypster/energy-services/internal/datasets"
	"github.com/scrypster/energy-services/pkg/types"
)

// ErrInvalidQuery means the query parameters do not resolve to data.
// Callers report it as an absent result.
var ErrInvalidQuery = errors.New("invalid query")

// QueryType selects what a query looks up.
type QueryType string

const (
	QueryHistorical QueryType = "historical"
	QueryProjection QueryType = "projection"
	QueryTrend      QueryType = "trend"
)

// Aggregate series usable as a trend source besides the per-source keys.
const (
	SeriesTotal  = "total"
	SeriesFossil = "fossil"
	SeriesClean  = "clean"
)

// QueryRequest is one point or trend query.
type QueryRequest struct {
	Type      QueryType `json:"type"`
	Year      int       `json:"year,omitempty"`
	Scenario  string    `json:"scenario,omitempty"`
	Source    string    `json:"source,omitempty"`
	StartYear int       `json:"startYear,omitempty"`
	EndYear   int       `json:"endYear,omitempty"`
}

// QueryResult holds either a record or a trend.
type QueryResult struct {
	Type     QueryType         `json:"type"`
	Scenario string            `json:"scenario,omitempty"`
	Record   *types.YearRecord `json:"record,omitempty"`
	Trend    *Trend            `json:"trend,omitempty"`
}

// Trend is the change of one series between two years.
type Trend struct {
	Source         string  `json:"source"`
	StartYear      int     `json:"startYear"`
	EndYear        int     `json:"endYear"`
	StartValue     float64 `json:"startValue"`
	EndValue       float64 `json:"endValue"`
	AbsoluteChange float64 `json:"absoluteChange"`
	PercentChange  float64 `json:"percentChange"`
	CAGR           float64 `json:"cagr"`
	CAGRPercent    float64 `json:"cagrPercent"`
}

// Query answers req against the bundle's historical and projection series.
func Query(b *datasets.Bundle, req QueryRequest) (*QueryResult, error) {
	if b == nil {
		return nil, datasets.ErrDataUnavailable
	}

	switch req.Type {
	case QueryHistorical:
		rec, ok := b.Historical.Data.Find(req.Year)
		if !ok {
			return nil, fmt.Errorf("no historical record for %d: %w", req.Year, ErrInvalidQuery)
		}
		return &QueryResult{Type: req.Type, Record: &rec}, nil

	case QueryProjection:
		if req.Scenario == "" {
			return nil, fmt.Errorf("projection query needs a scenario: %w", ErrInvalidQuery)
		}
		for _, s := range b.Projections.Scenarios {
			if !strings.Contains(s.Name, req.Scenario) {
				continue
			}
			rec, ok := s.Data.Find(req.Year)
			if !ok {
				return nil, fmt.Errorf("scenario %q has no %d: %w", s.Name, req.Year, ErrInvalidQuery)
			}
			return &QueryResult{Type: req.Type, Scenario: s.Name, Record: &rec}, nil
		}
		return nil, fmt.Errorf("unknown scenario %q: %w", req.Scenario, ErrInvalidQuery)

	case QueryTrend:
		t, err := trend(b.Historical.Data, req)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Type: req.Type, Trend: t}, nil
	}
	return nil, fmt.Errorf("unknown query type %q: %w", req.Type, ErrInvalidQuery)
}

func trend(series types.TimeSeries, req QueryRequest) (*Trend, error) {
	if req.Source == "" {
		return nil, fmt.Errorf("trend query needs a source: %w", ErrInvalidQuery)
	}
	start, ok := series.Find(req.StartYear)
	if !ok {
		return nil, fmt.Errorf("no historical record for %d: %w", req.StartYear, ErrInvalidQuery)
	}
	end, ok := series.Find(req.EndYear)
	if !ok {
		return nil, fmt.Errorf("no historical record for %d: %w", req.EndYear, ErrInvalidQuery)
	}

	years := req.EndYear - req.StartYear
	startValue, endValue := seriesValue(start, req.Source), seriesValue(end, req.Source)
	if years == 0 {
		return nil, fmt.Errorf("trend interval is empty: %w", ErrInvalidQuery)
	}
	if startValue == 0 {
		return nil, fmt.Errorf("%s is zero in %d: %w", req.Source, req.StartYear, ErrInvalidQuery)
	}

	ratio := endValue / startValue
	cagr := math.Pow(ratio, 1/float64(years)) - 1
	if math.IsNaN(cagr) || math.IsInf(cagr, 0) {
		return nil, fmt.Errorf("growth rate undefined for %s: %w", req.Source, ErrInvalidQuery)
	}

	return &Trend{
		Source:         req.Source,
		StartYear:      req.StartYear,
		EndYear:        req.EndYear,
		StartValue:     startValue,
		EndValue:       endValue,
		AbsoluteChange: endValue - startValue,
		PercentChange:  (ratio - 1) * 100,
		CAGR:           cagr,
		CAGRPercent:    cagr * 100,
	}, nil
}

func seriesValue(rec types.YearRecord, source string) float64 {
	switch source {
	case SeriesTotal:
		return rec.TotalServices
	case SeriesFossil:
		return rec.FossilServices
	case SeriesClean:
		return rec.CleanServices
	}
	return rec.Source(source)
}
