package engine

import (
	"sort"

	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/pkg/types"
)

// TimelinePoint is one year of regional clean growth, keyed by region.
// Regions without both this year and the previous one are absent.
type TimelinePoint struct {
	Year   int                `json:"year"`
	Values map[string]float64 `json:"values"`
}

// BuildComparison computes the window's metrics for each selected region
// and ranks them by annual clean growth, highest first. Unknown regions and
// regions whose series cannot cover the window are skipped. There is no cap
// on the number of regions.
func BuildComparison(regions []types.Region, selected []string, window types.PeriodWindow) []types.PeriodMetric {
	byKey := indexRegions(regions)

	out := make([]types.PeriodMetric, 0, len(selected))
	for _, key := range selected {
		r, ok := byKey[key]
		if !ok {
			continue
		}
		m, ok := ComputeWindow(r.Entity(), r.Series, window)
		if !ok {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AnnualCleanGrowth > out[j].AnnualCleanGrowth
	})
	return out
}

// BuildTimeline emits one point per year of the first selected region's
// series from fromYear on. Each selected region contributes its own
// clean(year) - clean(year-1), looked up by year rather than position.
// Years the first region lacks produce no point, whatever the other regions
// hold.
func BuildTimeline(regions []types.Region, selected []string, fromYear int) []TimelinePoint {
	if len(selected) == 0 {
		return nil
	}
	byKey := indexRegions(regions)
	first, ok := byKey[selected[0]]
	if !ok {
		return nil
	}

	var out []TimelinePoint
	for _, rec := range first.Series {
		if rec.Year < fromYear {
			continue
		}
		point := TimelinePoint{Year: rec.Year, Values: make(map[string]float64, len(selected))}
		for _, key := range selected {
			r, ok := byKey[key]
			if !ok {
				continue
			}
			curr, ok := r.Series.Find(rec.Year)
			if !ok {
				continue
			}
			prev, ok := r.Series.Find(rec.Year - 1)
			if !ok {
				continue
			}
			point.Values[key] = curr.CleanServices - prev.CleanServices
		}
		out = append(out, point)
	}
	return out
}

// SelectCategory returns the regions of a catalog category that exist in
// regions, in category order, truncated to the catalog's comparison cap.
func SelectCategory(cat config.Catalog, regions []types.Region, category string) ([]string, bool) {
	keys, ok := cat.Category(category)
	if !ok {
		return nil, false
	}
	byKey := indexRegions(regions)

	var out []string
	for _, k := range keys {
		if _, ok := byKey[k]; !ok {
			continue
		}
		out = append(out, k)
		if cat.MaxCompareRegions > 0 && len(out) == cat.MaxCompareRegions {
			break
		}
	}
	return out, true
}

func indexRegions(regions []types.Region) map[string]types.Region {
	byKey := make(map[string]types.Region, len(regions))
	for _, r := range regions {
		byKey[r.Key] = r
	}
	return byKey
}
