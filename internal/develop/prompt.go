package develop

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/autodev/internal/models"
	"github.com/p-blackswan/autodev/internal/plan"
)

// NoDescription stands in for a change summary the oracle did not give.
const NoDescription = "No description provided."

const changeSystemPrompt = `You are a software engineer implementing a delivery plan in an existing repository.
Reply with a single JSON object mapping relative file paths to the complete new content of each file.
Only include files you change or create. Never return partial files or diffs.`

const summarySystemPrompt = `You write short, factual descriptions of code changes.
Reply with two or three sentences of plain text.`

func discoveryTask(in Input, prev *models.IterationRecord) string {
	var b strings.Builder
	b.WriteString("Implement this delivery plan:\n")
	b.WriteString(plan.Render(in.Plan))
	if prev != nil && !prev.Outcome.Passed && prev.Outcome.Details != "" {
		b.WriteString("\nThe last attempt failed its tests. Include any files needed to fix that.\n")
	}
	return b.String()
}

func changePrompt(in Input, snap *models.Snapshot, prev *models.IterationRecord) string {
	var b strings.Builder
	b.WriteString(in.Requirements.Render())
	b.WriteString("\nDelivery plan:\n")
	b.WriteString(plan.Render(in.Plan))
	b.WriteString("\nCurrent repository context:\n")
	b.WriteString(snap.Render())
	if prev != nil {
		fmt.Fprintf(&b, "\nPrevious attempt (iteration %d):\n", prev.Iteration)
		switch {
		case prev.Skipped:
			b.WriteString("Your previous reply had no usable JSON object. Reply with the JSON object only.\n")
		default:
			fmt.Fprintf(&b, "Changes: %s\n", prev.Description)
			if !prev.Outcome.Passed {
				b.WriteString("Its tests failed; the output is under the latest test failure above.\n")
			}
		}
	}
	b.WriteString("\nReturn the JSON object of file changes.")
	return b.String()
}

func summaryPrompt(cs models.ChangeSet) string {
	var b strings.Builder
	b.WriteString("Describe what these file changes do.\n\n")
	for _, p := range cs.Paths() {
		fmt.Fprintf(&b, "--- %s ---\n%s\n", p, cs[p])
	}
	return b.String()
}
