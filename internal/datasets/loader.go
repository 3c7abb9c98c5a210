package datasets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/scrypster/energy-services/internal/metrics"
	"github.com/scrypster/energy-services/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Bundle is one complete, immutable snapshot of every dataset a briefing or
// dashboard request may need. Callers must treat it as read-only; a cached
// bundle is shared between requests.
type Bundle struct {
	Historical  types.HistoricalDocument
	Projections types.ProjectionsDocument
	Efficiency  types.EfficiencyDocument

	Regional           Optional[types.RegionalDocument]
	Sectoral           Optional[types.SectoralDocument]
	SectoralTimeseries Optional[types.SectoralTimeseriesDocument]
	FossilGrowth       Optional[types.FossilGrowthDocument]
}

// Missing lists the optional datasets absent from the bundle.
func (b *Bundle) Missing() []Dataset {
	var missing []Dataset
	if !b.Regional.Present() {
		missing = append(missing, Regional)
	}
	if !b.Sectoral.Present() {
		missing = append(missing, Sectoral)
	}
	if !b.SectoralTimeseries.Present() {
		missing = append(missing, SectoralTimeseries)
	}
	if !b.FossilGrowth.Present() {
		missing = append(missing, FossilGrowth)
	}
	return missing
}

// Provider returns a dataset bundle.
type Provider interface {
	Bundle(ctx context.Context) (*Bundle, error)
}

// Loader decodes datasets read from a Source.
type Loader struct {
	source  Source
	metrics *metrics.Metrics
}

// NewLoader creates a loader. m may be nil.
func NewLoader(source Source, m *metrics.Metrics) *Loader {
	return &Loader{source: source, metrics: m}
}

// Bundle fetches every dataset in parallel and joins the results. The three
// mandatory datasets are fail-fast: the first failure cancels the remaining
// fetches and is returned wrapped in ErrDataUnavailable. Optional datasets
// that fail are left absent.
func (l *Loader) Bundle(ctx context.Context) (*Bundle, error) {
	var b Bundle
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return loadMandatory(gctx, l, Historical, &b.Historical)
	})
	g.Go(func() error {
		return loadMandatory(gctx, l, Projections, &b.Projections)
	})
	g.Go(func() error {
		return loadMandatory(gctx, l, Efficiency, &b.Efficiency)
	})
	g.Go(func() error {
		b.Regional = loadOptional[types.RegionalDocument](gctx, l, Regional)
		return nil
	})
	g.Go(func() error {
		b.Sectoral = loadOptional[types.SectoralDocument](gctx, l, Sectoral)
		return nil
	})
	g.Go(func() error {
		b.SectoralTimeseries = loadOptional[types.SectoralTimeseriesDocument](gctx, l, SectoralTimeseries)
		return nil
	})
	g.Go(func() error {
		b.FossilGrowth = loadOptional[types.FossilGrowthDocument](gctx, l, FossilGrowth)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &b, nil
}

func loadMandatory[T any](ctx context.Context, l *Loader, d Dataset, dest *T) error {
	if err := l.load(ctx, d, dest); err != nil {
		return fmt.Errorf("%s: %w: %w", d, ErrDataUnavailable, err)
	}
	return nil
}

func loadOptional[T any](ctx context.Context, l *Loader, d Dataset) Optional[T] {
	var doc T
	if err := l.load(ctx, d, &doc); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("WARNING: %v", fmt.Errorf("%s: %w: %w", d, ErrOptionalDataMissing, err))
		}
		return None[T]()
	}
	return Some(doc)
}

// load tries each candidate file of d in preference order. A missing file
// falls through to the next candidate; any other failure stops the search.
func (l *Loader) load(ctx context.Context, d Dataset, dest interface{}) error {
	files := d.Files()
	if len(files) == 0 {
		return fmt.Errorf("unknown dataset %q", d)
	}

	var lastErr error
	for _, file := range files {
		data, err := l.source.Fetch(ctx, file)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrNotFound) {
				continue
			}
			break
		}
		if err := json.Unmarshal(data, dest); err != nil {
			l.metrics.DatasetLoad(string(d), "error")
			return fmt.Errorf("failed to decode %s: %w", file, err)
		}
		l.metrics.DatasetLoad(string(d), "ok")
		return nil
	}

	if errors.Is(lastErr, ErrNotFound) {
		l.metrics.DatasetLoad(string(d), "missing")
	} else {
		l.metrics.DatasetLoad(string(d), "error")
	}
	return lastErr
}

var _ Provider = (*Loader)(nil)
