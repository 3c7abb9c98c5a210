package engine

import (
	"fmt"
	"sort"

	"github.com/scrypster/energy-services/pkg/types"
)

// SectorRow is one sector of the snapshot breakdown, in EJ.
type SectorRow struct {
	Key             string  `json:"key"`
	SharePercent    float64 `json:"share_percent"`
	ServicesEJ      float64 `json:"services_ej"`
	FossilEJ        float64 `json:"fossil_ej"`
	CleanEJ         float64 `json:"clean_ej"`
	FossilIntensity float64 `json:"fossil_intensity"`
	Description     string  `json:"description,omitempty"`
}

// SectorBreakdown splits totalServices across sectors by share, then each
// sector into fossil and clean by its fossil intensity. Rows are sorted by
// services descending; ties keep input order.
func SectorBreakdown(sectors []types.Sector, totalServices float64) []SectorRow {
	rows := make([]SectorRow, 0, len(sectors))
	for _, s := range sectors {
		services := s.Share * totalServices
		rows = append(rows, SectorRow{
			Key:             s.Key,
			SharePercent:    s.Share * 100,
			ServicesEJ:      services,
			FossilEJ:        services * s.FossilIntensity,
			CleanEJ:         services * (1 - s.FossilIntensity),
			FossilIntensity: s.FossilIntensity,
			Description:     s.Description,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ServicesEJ > rows[j].ServicesEJ
	})
	return rows
}

// ViewMode selects how a sectoral time series is presented.
type ViewMode string

const (
	// ViewAbsolute keeps values in EJ.
	ViewAbsolute ViewMode = "absolute"
	// ViewPercentage rescales each year to percent of that year's total.
	ViewPercentage ViewMode = "percentage"
)

// ParseViewMode validates a view mode. An empty string selects absolute.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case "", ViewAbsolute:
		return ViewAbsolute, nil
	case ViewPercentage:
		return ViewPercentage, nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// NormalizeSectorTable returns a copy of table in the requested mode.
// Percentages are computed per year across sectors. A year whose total is
// zero yields 0 for every sector.
func NormalizeSectorTable(table types.SectorTable, mode ViewMode) types.SectorTable {
	out := make(types.SectorTable, 0, len(table))
	for _, row := range table {
		values := make(map[string]float64, len(row.Values))
		if mode == ViewPercentage {
			var total float64
			for _, v := range row.Values {
				total += v
			}
			for k, v := range row.Values {
				if total == 0 {
					values[k] = 0
					continue
				}
				values[k] = v / total * 100
			}
		} else {
			for k, v := range row.Values {
				values[k] = v
			}
		}
		out = append(out, types.SectorYear{Year: row.Year, Values: values})
	}
	return out
}
