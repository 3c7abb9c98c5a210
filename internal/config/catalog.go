package config

import (
	"fmt"
	"os"

	"github.com/scrypster/energy-services/pkg/types"
	"gopkg.in/yaml.v3"
)

// Catalog is the explicit, ordered list of known keys and analysis defaults.
// Every per-source or per-sector output is produced in catalog order so that
// map iteration order never decides what the caller sees.
type Catalog struct {
	Sources            []string          `yaml:"sources"`
	CleanSources       []string          `yaml:"clean_sources"`
	Sectors            []string          `yaml:"sectors"`
	Windows            []WindowSpec      `yaml:"windows"`
	BaselineScenario   string            `yaml:"baseline_scenario"`
	ProjectionYears    []int             `yaml:"projection_years"`
	TimelineFromYear   int               `yaml:"timeline_from_year"`
	MaxCompareRegions  int               `yaml:"max_compare_regions"`
	RegionSummaryLimit int               `yaml:"region_summary_limit"`
	DefaultRegions     []string          `yaml:"default_regions"`
	RegionCategories   []RegionCategory  `yaml:"region_categories"`
	EfficiencyExcluded []string          `yaml:"efficiency_excluded"`
	RegionNames        map[string]string `yaml:"region_names"`
}

// WindowSpec is the YAML form of a period window.
type WindowSpec struct {
	Label string `yaml:"label"`
	Years int    `yaml:"years"`
}

// RegionCategory is a named group of region keys used for selection only.
type RegionCategory struct {
	Name    string   `yaml:"name"`
	Regions []string `yaml:"regions"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() Catalog {
	return Catalog{
		Sources:      []string{"coal", "oil", "gas", "nuclear", "hydro", "wind", "solar", "biomass", "geothermal", "other"},
		CleanSources: []string{"nuclear", "hydro", "wind", "solar", "geothermal", "biomass"},
		Sectors: []string{
			"transport_road",
			"industry_iron_steel",
			"residential_heating",
			"industry_chemicals",
			"commercial_buildings",
			"residential_appliances",
			"industry_cement",
			"transport_aviation",
			"agriculture",
			"industry_aluminum",
			"transport_shipping",
			"industry_pulp_paper",
			"residential_cooling",
			"transport_rail",
			"other_industry",
		},
		Windows: []WindowSpec{
			{Label: types.WindowCurrent, Years: 1},
			{Label: types.WindowFiveYear, Years: 5},
			{Label: types.WindowTenYear, Years: 10},
			{Label: types.WindowTwentyYear, Years: 20},
		},
		BaselineScenario:   "Baseline (STEPS)",
		ProjectionYears:    []int{2030, 2040, 2050},
		TimelineFromYear:   2000,
		MaxCompareRegions:  8,
		RegionSummaryLimit: 10,
		DefaultRegions:     []string{"China", "United States", "Europe", "India", "Japan"},
		RegionCategories: []RegionCategory{
			{Name: "Major Economies", Regions: []string{"China", "United States", "India", "Japan", "Germany", "United Kingdom", "France", "Brazil", "Canada", "South Korea", "Russia", "Indonesia", "Mexico", "Saudi Arabia", "Australia", "Spain", "South Africa"}},
			{Name: "Continental", Regions: []string{"Africa", "Asia", "Europe", "North America", "South America", "Oceania"}},
			{Name: "Economic Groups", Regions: []string{"European Union", "OECD", "Non-OECD"}},
		},
		EfficiencyExcluded: []string{"notes", "other"},
	}
}

// LoadCatalog returns the default catalog overlaid with the YAML file at
// path. An empty path returns the defaults. Fields absent from the file keep
// their default values.
func LoadCatalog(path string) (Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("config: failed to read catalog %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("config: failed to parse catalog %s: %w", path, err)
	}
	if err := cat.Validate(); err != nil {
		return Catalog{}, err
	}
	return cat, nil
}

// Validate checks that every window has a positive length and a unique label.
func (c Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Windows))
	for _, w := range c.Windows {
		if w.Label == "" {
			return fmt.Errorf("config: catalog window with empty label")
		}
		if w.Years <= 0 {
			return fmt.Errorf("config: catalog window %q must span at least one year", w.Label)
		}
		if seen[w.Label] {
			return fmt.Errorf("config: duplicate catalog window %q", w.Label)
		}
		seen[w.Label] = true
	}
	return nil
}

// PeriodWindows returns the catalog windows as domain values.
func (c Catalog) PeriodWindows() []types.PeriodWindow {
	windows := make([]types.PeriodWindow, 0, len(c.Windows))
	for _, w := range c.Windows {
		windows = append(windows, types.PeriodWindow{Label: w.Label, Years: w.Years})
	}
	return windows
}

// Window looks up a window by label.
func (c Catalog) Window(label string) (types.PeriodWindow, bool) {
	for _, w := range c.Windows {
		if w.Label == label {
			return types.PeriodWindow{Label: w.Label, Years: w.Years}, true
		}
	}
	return types.PeriodWindow{}, false
}

// Category returns the region keys of a named category.
func (c Catalog) Category(name string) ([]string, bool) {
	for _, cat := range c.RegionCategories {
		if cat.Name == name {
			return cat.Regions, true
		}
	}
	return nil, false
}

// RegionName returns the display name for a region key, falling back to the key.
func (c Catalog) RegionName(key string) string {
	if name, ok := c.RegionNames[key]; ok && name != "" {
		return name
	}
	return key
}

// IsEfficiencyExcluded reports whether an efficiency key is omitted from summaries.
func (c Catalog) IsEfficiencyExcluded(key string) bool {
	for _, k := range c.EfficiencyExcluded {
		if k == key {
			return true
		}
	}
	return false
}
