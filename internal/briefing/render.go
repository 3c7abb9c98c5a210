package briefing

import (
	"fmt"
	"strings"
)

// signed formats v with an explicit plus sign for positive values.
func signed(v float64, prec int) string {
	s := fmt.Sprintf("%.*f", prec, v)
	if v > 0 {
		return "+" + s
	}
	return s
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Render produces the assistant system prompt for a briefing. The output is
// a pure function of b.
func Render(b *Briefing) string {
	var sb strings.Builder
	latest, prev, d := b.Latest, b.Previous, b.Deltas

	fmt.Fprintf(&sb, "You are an expert energy analyst with access to a comprehensive fossil displacement tracking model (v%s).\n\n", b.ModelVersion)
	sb.WriteString("# YOUR PRIMARY DATA SOURCE (ALWAYS PRIORITIZE THIS)\n\n")

	fmt.Fprintf(&sb, "## Current Status (%d)\n", latest.Year)
	fmt.Fprintf(&sb, "Total Energy Services: %.1f EJ (%s EJ from %d)\n", latest.TotalServices, signed(d.TotalChange, 1), prev.Year)
	fmt.Fprintf(&sb, "Fossil Energy Services: %.1f EJ (%s EJ from %d)\n", latest.FossilServices, signed(d.FossilChange, 2), prev.Year)
	fmt.Fprintf(&sb, "Clean Energy Services: %.1f EJ (%s EJ from %d)\n\n", latest.CleanServices, signed(d.CleanChange, 2), prev.Year)

	fmt.Fprintf(&sb, "## Year-over-Year Changes (%d to %d)\n", prev.Year, latest.Year)
	fmt.Fprintf(&sb, "Fossil Fuel Growth: %s EJ\n", signed(d.FossilChange, 2))
	fmt.Fprintf(&sb, "Clean Energy Growth (Displacement): %s EJ\n", signed(d.CleanChange, 2))
	fmt.Fprintf(&sb, "Total Demand Growth: %s EJ\n", signed(d.TotalChange, 2))
	fmt.Fprintf(&sb, "Net Change in Fossil Consumption: %s EJ\n", signed(d.FossilChange, 2))
	fmt.Fprintf(&sb, "Displacement Phase: %s\n", b.Phase.Label())
	fmt.Fprintf(&sb, "Fossil Growth as %% of Total Growth: %.1f%%\n\n", d.FossilGrowthPct)

	if len(b.Periods) > 0 {
		sb.WriteString("## Period Averages\n")
		for _, m := range b.Periods {
			fmt.Fprintf(&sb, "%s (%d to %d): clean %s EJ/yr, fossil %s EJ/yr, displacement rate %.1f%%\n",
				m.Window, m.StartYear, m.EndYear, signed(m.AnnualCleanGrowth, 2), signed(m.AnnualFossilChange, 2), m.DisplacementRate)
		}
		sb.WriteString("\n")
	}

	for _, d := range b.Displacement {
		if d.TotalDisplacement <= 0 {
			continue
		}
		fmt.Fprintf(&sb, "## Displacement by Source, %s (%d to %d)\n", d.Window, d.StartYear, d.EndYear)
		for _, g := range d.Sources {
			fmt.Fprintf(&sb, "%s: %s EJ (%s EJ/yr, %.1f%% of displacement)\n",
				g.Source, signed(g.TotalGrowth, 2), signed(g.AnnualGrowth, 2), g.Share(d.TotalDisplacement))
		}
		fmt.Fprintf(&sb, "Total displacement: %.2f EJ (%.2f EJ/yr)\n\n", d.TotalDisplacement, d.TotalAnnual)
	}

	fmt.Fprintf(&sb, "## Energy by Source (%d)\n", latest.Year)
	for _, s := range b.Sources {
		fmt.Fprintf(&sb, "%s: %.2f EJ (%s EJ change from %d)\n", s.Source, s.Value, signed(s.Change, 2), prev.Year)
	}
	sb.WriteString("\n")

	sb.WriteString("## Model Methodology\n")
	sb.WriteString(b.Methodology.Corrections)
	sb.WriteString("\n\n### Key Efficiency Factors (Thermal Accounting Method):\n")
	for _, e := range b.Efficiency {
		fmt.Fprintf(&sb, "- %s: %.0f%%\n", titleCase(e.Source), e.Factor*100)
	}
	fmt.Fprintf(&sb, "\n### Displacement Methodology:\n%s\n\n", b.Methodology.DisplacementMethodology)
	fmt.Fprintf(&sb, "### RMI Baseline Reconciliation:\n%s\n\n", b.Methodology.RMIBaselineNote)

	if b.Baseline != nil {
		fmt.Fprintf(&sb, "## %s Key Projections:\n", b.Baseline.Name)
		for _, p := range b.Baseline.Points {
			fmt.Fprintf(&sb, "- %d: %.1f EJ total (%.1f fossil, %.1f clean)\n", p.Year, p.TotalServices, p.FossilServices, p.CleanServices)
		}
		sb.WriteString("\n")
	}

	if len(b.Peaks) > 0 {
		sb.WriteString("## Projected Fossil Peaks:\n")
		for _, p := range b.Peaks {
			if p.Peaked {
				fmt.Fprintf(&sb, "- %s: fossil services peak in %d\n", p.Scenario, p.Year)
			} else {
				fmt.Fprintf(&sb, "- %s: no sustained fossil decline in the projection\n", p.Scenario)
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Historical Trends Available:\n")
	fmt.Fprintf(&sb, "- Years: %d - %d (%d years)\n", b.History.FirstYear, b.History.LastYear, b.History.Count)
	sb.WriteString("- All data uses consistent efficiency factors\n\n")

	if r := b.Regional; r != nil {
		sb.WriteString("## Regional Data Available:\n")
		fmt.Fprintf(&sb, "You have access to detailed regional breakdowns for %d regions covering the historical period to %d:\n", r.Count, latest.Year)
		fmt.Fprintf(&sb, "- Regions tracked: %s", strings.Join(r.Regions, ", "))
		if r.More {
			sb.WriteString(", and more")
		}
		sb.WriteString("\n- Each region includes: total energy services, fossil/clean split, source breakdown\n\n")
	}

	if b.Sectoral != nil || b.SectoralTimeseries != nil {
		sb.WriteString("## Sectoral Energy Data Available:\n")
		if s := b.Sectoral; s != nil {
			fmt.Fprintf(&sb, "Current sectoral split (%d): %d sectors with fossil/clean breakdown\n", latest.Year, len(s.Rows))
			for _, row := range s.Rows {
				fmt.Fprintf(&sb, "- %s: %.1f EJ (%.1f fossil, %.1f clean, %.0f%% fossil intensity)\n",
					row.Key, row.ServicesEJ, row.FossilEJ, row.CleanEJ, row.FossilIntensity*100)
			}
		}
		if ts := b.SectoralTimeseries; ts != nil {
			fmt.Fprintf(&sb, "Historical sectoral time series (%d-%d): %d years, %d sectors tracked annually\n",
				ts.FirstYear, ts.LastYear, ts.Years, ts.SectorCount)
		}
		sb.WriteString("\n")
	}

	if b.FossilGrowthTracking {
		sb.WriteString("## Fossil Fuel Growth Tracking Available:\n")
		sb.WriteString("- Year-by-year fossil fuel consumption changes\n")
		sb.WriteString("- Displacement effectiveness metrics\n")
		sb.WriteString("- Phase analysis (growth vs. decline)\n\n")
	}

	sb.WriteString("# RESPONSE GUIDELINES (CRITICAL - FOLLOW EXACTLY)\n\n")
	sb.WriteString("1. ALWAYS use the exact numbers from the dataset provided above. Do NOT make up numbers or estimates.\n")
	sb.WriteString("2. If asked about year-over-year changes, use the Year-over-Year Changes section.\n")
	fmt.Fprintf(&sb, "3. When asked about fossil fuel changes, use the Fossil Fuel Growth value (%.2f EJ in %d).\n", d.FossilChange, latest.Year)
	fmt.Fprintf(&sb, "4. When asked about displacement, use the Clean Energy Growth (Displacement) value (%.2f EJ in %d).\n", d.CleanChange, latest.Year)
	fmt.Fprintf(&sb, "5. The current displacement phase is: %s\n", b.Phase.Label())
	sb.WriteString("6. A positive number means increase, negative means decrease.\n")
	fmt.Fprintf(&sb, "7. Be precise: fossil grew by %.2f EJ, not an approximation.\n", d.FossilChange)
	sb.WriteString("8. Explain thermal accounting when relevant.\n")
	sb.WriteString("9. Always specify which scenario when discussing projections.\n")
	sb.WriteString("10. Explain concepts clearly for non-experts, but maintain technical accuracy.\n\n")

	fmt.Fprintf(&sb, "## Historical Data Queries (%d-%d):\n", b.History.FirstYear, latest.Year)
	fmt.Fprintf(&sb, "In %d, total energy services was %.1f EJ with %.1f%% clean.\n\n",
		b.History.First.Year, b.History.First.TotalServices, b.History.First.CleanSharePercent)

	sb.WriteString("## When Dataset Cannot Answer:\n")
	fmt.Fprintf(&sb, "For policy, specific companies, events after %d, or anything beyond the 2050 projection horizon, say the question is outside the scope of the energy services dataset before answering from general knowledge.\n", latest.Year)
	sb.WriteString("NEVER claim to have data you don't have.\n\n")

	sb.WriteString("# FORMATTING RULES (CRITICAL - FOLLOW EXACTLY)\n\n")
	sb.WriteString("DO NOT use asterisks, em dashes, emojis, markdown formatting, or bullet symbols.\n")
	sb.WriteString("Answer the question directly in the first paragraph, then add context in following paragraphs separated by line breaks.\n")
	return sb.String()
}
