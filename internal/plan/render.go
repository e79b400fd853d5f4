package plan

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/autodev/internal/models"
)

const systemPrompt = `You are a senior engineer writing delivery plans.
Reply with a single JSON object with these fields:
"title", "short_description", "long_description", "acceptance_criteria" (array of strings),
"plan" (array of steps, each a string or {"title", "description"}), "estimate",
"dependencies" (array), "risks" (array), "notes".`

func buildPrompt(req *models.Requirements, snap *models.Snapshot) string {
	var b strings.Builder
	b.WriteString(req.Render())
	b.WriteString("\nRepository context:\n")
	b.WriteString(snap.Render())
	b.WriteString("\nProduce the delivery plan JSON object.")
	return b.String()
}

// Render formats a plan as plain text for prompts and the terminal.
func Render(p *models.DeliveryPlan) string {
	if p == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	if p.ShortDescription != "" {
		fmt.Fprintf(&b, "Summary: %s\n", p.ShortDescription)
	}
	if p.LongDescription != "" {
		fmt.Fprintf(&b, "\n%s\n", p.LongDescription)
	}
	writeList(&b, "Acceptance criteria", p.AcceptanceCriteria)
	if len(p.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for i, st := range p.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, st.Title)
			if st.Description != "" {
				fmt.Fprintf(&b, "   %s\n", st.Description)
			}
		}
	}
	if p.Estimate != "" {
		fmt.Fprintf(&b, "\nEstimate: %s\n", p.Estimate)
	}
	writeList(&b, "Dependencies", p.Dependencies)
	writeList(&b, "Risks", p.Risks)
	if p.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", p.Notes)
	}
	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}
