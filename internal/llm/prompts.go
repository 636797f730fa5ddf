package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/latticehq/lattice/pkg/types"
)

// maxSourceContextChars bounds how much of the original document is quoted
// in arbitration prompts; long emails blow the context window of small
// local models.
const maxSourceContextChars = 1200

// ArbitrationPrompt builds a strict JSON-only prompt asking the model to pick
// which candidate (if any) the mention refers to. Candidates are numbered
// from 1; 0 means none of the above.
func ArbitrationPrompt(mention types.ExtractedMention, candidates []ArbitrationCandidate, sourceText string) string {
	var b strings.Builder

	b.WriteString("TASK: Decide which known entity a mentioned name refers to.\n")
	b.WriteString("OUTPUT: ONLY valid JSON. NO markdown. NO code blocks. NO extra text.\n\n")

	fmt.Fprintf(&b, "MENTION: %q (type: %s)\n", mention.Name, mention.Type)
	if len(mention.Facts) > 0 {
		b.WriteString("NEW OBSERVATIONS ABOUT THE MENTION:\n")
		for _, f := range mention.Facts {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if sourceText != "" {
		excerpt := sourceText
		if len(excerpt) > maxSourceContextChars {
			excerpt = excerpt[:maxSourceContextChars] + "…"
		}
		fmt.Fprintf(&b, "\nSOURCE CONTEXT:\n%s\n", excerpt)
	}

	b.WriteString("\nKNOWN ENTITIES:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s (accessed %s, %d times)\n",
			i+1, c.Name, describeRecency(c.LastAccessed), c.AccessCount)
		for _, f := range c.Facts {
			fmt.Fprintf(&b, "   - %s\n", f)
		}
	}
	fmt.Fprintf(&b, "0. None of the above (the mention is a new entity)\n")

	b.WriteString(`
REQUIRED JSON STRUCTURE:
{"match": <number from the list above, 0 for none>, "confidence": <0.0-1.0>, "reason": "<one sentence>"}

Respond with the JSON object only.`)

	return b.String()
}

// SummaryPrompt builds a prompt asking for a short prose summary of an
// entity from its active facts.
func SummaryPrompt(name string, entityType types.EntityType, facts []string) string {
	var b strings.Builder

	b.WriteString("TASK: Write a concise knowledge summary.\n")
	b.WriteString("OUTPUT: 2-3 plain sentences. NO lists. NO preamble.\n\n")
	fmt.Fprintf(&b, "SUBJECT: %s (%s)\n", name, entityType)
	b.WriteString("KNOWN FACTS:\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\nSummarize what is currently known about the subject.")

	return b.String()
}

func describeRecency(lastAccessed *time.Time) string {
	if lastAccessed == nil || lastAccessed.IsZero() {
		return "never"
	}
	elapsed := time.Since(*lastAccessed)
	switch {
	case elapsed < time.Hour:
		return "within the last hour"
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(elapsed.Hours()))
	default:
		return fmt.Sprintf("%d days ago", int(elapsed.Hours()/24))
	}
}
