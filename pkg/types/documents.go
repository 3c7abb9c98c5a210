package types

import "encoding/json"

// Dataset documents as published by the data pipeline. Field names follow the
// JSON files; decoding never transforms values.

// HistoricalMetadata describes the primary historical series.
type HistoricalMetadata struct {
	Version     string `json:"version,omitempty"`
	GeneratedAt string `json:"generated_at,omitempty"`
	Description string `json:"description,omitempty"`
}

// HistoricalDocument is the global historical services series.
type HistoricalDocument struct {
	Metadata HistoricalMetadata `json:"metadata"`
	Data     TimeSeries         `json:"data"`
}

// RegionalEntry is one region inside the regional document.
type RegionalEntry struct {
	Name string     `json:"name,omitempty"`
	Data TimeSeries `json:"data"`
}

// RegionalDocument holds per-region series keyed by canonical region key.
type RegionalDocument struct {
	Regions map[string]RegionalEntry `json:"regions"`
}

// SectoralMetadata lists the upstream sources of the sectoral snapshot.
type SectoralMetadata struct {
	Sources []string `json:"sources,omitempty"`
}

// SectorSpec is one sector entry in the sectoral snapshot document.
type SectorSpec struct {
	Share           float64 `json:"share"`
	FossilIntensity float64 `json:"fossil_intensity"`
	Description     string  `json:"description,omitempty"`
}

// SectoralDocument is the static sectoral breakdown snapshot.
type SectoralDocument struct {
	Sectors  map[string]SectorSpec `json:"sectors"`
	Metadata SectoralMetadata      `json:"metadata"`
}

// SectorTotal is one sector's total for one year in the sectoral time series.
type SectorTotal struct {
	TotalEJ float64 `json:"total_ej"`
}

// SectoralYearEntry is one year of the sectoral time series document.
type SectoralYearEntry struct {
	Year    int                    `json:"year"`
	Sectors map[string]SectorTotal `json:"sectors"`
}

// SectoralTimeseriesDocument is the sectoral time series.
type SectoralTimeseriesDocument struct {
	Data []SectoralYearEntry `json:"data"`
}

// ProjectionsMetadata carries the model's methodology notes.
type ProjectionsMetadata struct {
	Version                 string `json:"version,omitempty"`
	Corrections             string `json:"corrections,omitempty"`
	DisplacementMethodology string `json:"displacement_methodology,omitempty"`
	RMIBaselineNote         string `json:"rmi_baseline_note,omitempty"`
}

// ProjectionsDocument holds the scenario projections.
type ProjectionsDocument struct {
	Metadata  ProjectionsMetadata  `json:"metadata"`
	Scenarios []ProjectionScenario `json:"scenarios"`
}

// EfficiencyDocument holds system-wide conversion efficiency per source.
// Non-numeric entries (e.g. "notes") are kept aside in Notes.
type EfficiencyDocument struct {
	SystemWide map[string]float64 `json:"-"`
	Notes      map[string]string  `json:"-"`
}

// UnmarshalJSON splits system_wide_efficiency into numeric factors and text notes.
func (d *EfficiencyDocument) UnmarshalJSON(data []byte) error {
	var raw struct {
		SystemWide map[string]json.RawMessage `json:"system_wide_efficiency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.SystemWide = make(map[string]float64, len(raw.SystemWide))
	d.Notes = make(map[string]string)
	for key, value := range raw.SystemWide {
		var f float64
		if err := json.Unmarshal(value, &f); err == nil {
			d.SystemWide[key] = f
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			d.Notes[key] = s
		}
	}
	return nil
}

// MarshalJSON writes the document back in its published shape.
func (d EfficiencyDocument) MarshalJSON() ([]byte, error) {
	merged := make(map[string]interface{}, len(d.SystemWide)+len(d.Notes))
	for k, v := range d.SystemWide {
		merged[k] = v
	}
	for k, v := range d.Notes {
		merged[k] = v
	}
	return json.Marshal(map[string]interface{}{"system_wide_efficiency": merged})
}

// FossilGrowthDocument is the fossil-growth tracking dataset.
type FossilGrowthDocument struct {
	Data []FossilGrowthRecord `json:"data"`
}

// Latest returns the last fossil-growth row.
func (d FossilGrowthDocument) Latest() (FossilGrowthRecord, bool) {
	if len(d.Data) == 0 {
		return FossilGrowthRecord{}, false
	}
	return d.Data[len(d.Data)-1], true
}
