package briefing

import "fmt"

// SuggestedQuestions returns starter questions for the assistant. A nil
// briefing falls back to the latest dataset year 2024.
func SuggestedQuestions(b *Briefing) []string {
	year := 2024
	if b != nil && b.Latest.Year != 0 {
		year = b.Latest.Year
	}
	return []string{
		fmt.Sprintf("What is the current state of the energy transition in %d?", year),
		"When will fossil fuels peak according to the model?",
		"How fast is clean energy growing year-over-year?",
		"What is the displacement rate and what does it mean?",
		"Compare the three scenarios: Baseline, Accelerated, and Net-Zero",
		"Explain the efficiency factors - why is nuclear only 25%?",
		`What is "energy services" and why does it matter?`,
		"How much has renewable energy grown in the last decade?",
		"What would it take to reach Net-Zero by 2050?",
		"Show me the year-over-year change in fossil consumption",
	}
}
