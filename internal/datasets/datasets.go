// Package datasets fetches and decodes the published energy datasets.
//
// A Source returns raw bytes for a file name; the Loader decodes them into
// the document types of pkg/types without transforming any value. Mandatory
// datasets fail the whole load; optional ones are carried as Optional values
// so their absence only removes the sections that depend on them.
package datasets

import (
	"errors"
	"path/filepath"
)

var (
	// ErrDataUnavailable wraps failures of a mandatory dataset. The operation
	// that needed it cannot proceed.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrOptionalDataMissing wraps failures of an optional dataset. It is
	// reported for logging only and never returned from a bundle load.
	ErrOptionalDataMissing = errors.New("optional data missing")

	// ErrNotFound is returned by a Source when the requested file does not exist.
	ErrNotFound = errors.New("dataset not found")
)

// Dataset names one published dataset.
type Dataset string

// Known datasets.
const (
	Historical         Dataset = "historical"
	Projections        Dataset = "projections"
	Efficiency         Dataset = "efficiency"
	Regional           Dataset = "regional"
	Sectoral           Dataset = "sectoral"
	SectoralTimeseries Dataset = "sectoral_timeseries"
	FossilGrowth       Dataset = "fossil_growth"
)

// datasetFiles lists candidate files per dataset in preference order.
var datasetFiles = map[Dataset][]string{
	Historical:         {"exergy_services_timeseries.json"},
	Projections:        {"demand_growth_projections.json"},
	Efficiency:         {"efficiency_factors_corrected.json"},
	Regional:           {"regional_energy_timeseries.json"},
	Sectoral:           {"sectoral_energy_breakdown_v2.json", "sectoral_energy_breakdown.json"},
	SectoralTimeseries: {"sectoral_energy_timeseries_2004_2024.json"},
	FossilGrowth:       {"ff_growth_timeseries.json"},
}

// Files returns the candidate file names for d, most preferred first.
func (d Dataset) Files() []string {
	return datasetFiles[d]
}

// IsDatasetFile reports whether name (a path or bare file name) is one of
// the published dataset files.
func IsDatasetFile(name string) bool {
	base := filepath.Base(name)
	for _, files := range datasetFiles {
		for _, f := range files {
			if f == base {
				return true
			}
		}
	}
	return false
}

// Mandatory reports whether a failure of d must abort the operation that
// requested it.
func (d Dataset) Mandatory() bool {
	switch d {
	case Historical, Projections, Efficiency:
		return true
	}
	return false
}

// Optional holds a value that may be absent.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Present reports whether a value is held.
func (o Optional[T]) Present() bool {
	return o.ok
}
