package discovery

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/autodev/internal/models"
)

const systemPrompt = `You select which repository files must be read before a task can be done.
Reply with a JSON array of file paths taken from the list you are given.
When you already have everything you need, reply with "No more files".`

func buildPrompt(req Request, snap *models.Snapshot) string {
	var b strings.Builder
	if req.Task != "" {
		fmt.Fprintf(&b, "%s\n\n", req.Task)
	}
	b.WriteString("Files in the repository:\n")
	for _, id := range req.Catalog {
		fmt.Fprintf(&b, "- %s\n", id)
	}

	requested := snap.RequestedList()
	b.WriteString("\nFiles already requested:\n")
	if len(requested) == 0 {
		b.WriteString("(none)\n")
	}
	for _, id := range requested {
		fmt.Fprintf(&b, "- %s\n", id)
	}

	b.WriteString("\nContent gathered so far:\n")
	b.WriteString(snap.Render())
	b.WriteString("\nWhich additional files do you need? Answer with a JSON array, or \"No more files\".")
	return b.String()
}
