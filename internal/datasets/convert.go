package datasets

import (
	"sort"

	"github.com/scrypster/energy-services/internal/config"
	"github.com/scrypster/energy-services/pkg/types"
)

// Regions converts the regional document into regions ordered by the
// catalog's default regions first, then the remaining keys lexically.
func Regions(doc types.RegionalDocument, cat config.Catalog) []types.Region {
	keys := types.OrderedKeys(doc.Regions, cat.DefaultRegions)
	regions := make([]types.Region, 0, len(keys))
	for _, key := range keys {
		entry := doc.Regions[key]
		name := entry.Name
		if name == "" {
			name = cat.RegionName(key)
		}
		regions = append(regions, types.Region{Key: key, Name: name, Series: entry.Data})
	}
	return regions
}

// Sectors converts the sectoral snapshot into sectors in catalog order.
func Sectors(doc types.SectoralDocument, cat config.Catalog) []types.Sector {
	keys := types.OrderedKeys(doc.Sectors, cat.Sectors)
	sectors := make([]types.Sector, 0, len(keys))
	for _, key := range keys {
		entry := doc.Sectors[key]
		sectors = append(sectors, types.Sector{
			Key:             key,
			Share:           entry.Share,
			FossilIntensity: entry.FossilIntensity,
			Description:     entry.Description,
		})
	}
	return sectors
}

// SectorTable converts the sectoral time series document into a year-ordered
// table of sector totals.
func SectorTable(doc types.SectoralTimeseriesDocument) types.SectorTable {
	table := make(types.SectorTable, 0, len(doc.Data))
	for _, entry := range doc.Data {
		values := make(map[string]float64, len(entry.Sectors))
		for key, total := range entry.Sectors {
			values[key] = total.TotalEJ
		}
		table = append(table, types.SectorYear{Year: entry.Year, Values: values})
	}
	sort.SliceStable(table, func(i, j int) bool { return table[i].Year < table[j].Year })
	return table
}
