package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Arbitration responses come back from small local models with every kind of
// JSON malformation: markdown fences, prose before and after the object,
// trailing commas, unquoted keys. Parsing is therefore layered — extract,
// then repair, then pattern-match — and only gives up when no match number
// can be recovered at all.

// extractJSON extracts the first complete JSON object from a string that may
// contain extra text around it.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text
}

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

	matchPatternRe      = regexp.MustCompile(`(?i)"?match"?\s*[:=]\s*(-?\d+)`)
	confidencePatternRe = regexp.MustCompile(`(?i)"?confidence"?\s*[:=]\s*([0-9]*\.?[0-9]+)`)
	reasonPatternRe     = regexp.MustCompile(`(?i)"?reason"?\s*[:=]\s*"([^"]*)"`)
)

// repairJSON fixes the malformed-JSON patterns models commonly produce:
// trailing commas before a closing brace or bracket, and unquoted keys.
func repairJSON(text string) string {
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	text = unquotedKeyRe.ReplaceAllString(text, `$1"$2":`)
	return text
}

// ParseArbitrationDecision parses an arbitration response defensively.
// candidateCount is the number of candidates that were presented; a valid
// match is in [0, candidateCount] where 0 means none of the above.
//
// Parsing order: strict JSON on the extracted object, repaired JSON, then
// best-effort pattern extraction. An error is returned only when no match
// number can be recovered.
func ParseArbitrationDecision(raw string, candidateCount int) (*ArbitrationDecision, error) {
	cleaned := extractJSON(raw)

	var decision ArbitrationDecision
	if err := json.Unmarshal([]byte(cleaned), &decision); err != nil {
		if err := json.Unmarshal([]byte(repairJSON(cleaned)), &decision); err != nil {
			recovered, ok := extractDecisionPatterns(raw)
			if !ok {
				return nil, fmt.Errorf("failed to parse arbitration response: %q", truncate(raw, 200))
			}
			decision = *recovered
		}
	}

	if decision.Match < 0 || decision.Match > candidateCount {
		return nil, fmt.Errorf("arbitration match %d out of range [0,%d]", decision.Match, candidateCount)
	}
	if decision.Confidence < 0 {
		decision.Confidence = 0
	}
	if decision.Confidence > 1 {
		decision.Confidence = 1
	}

	return &decision, nil
}

// extractDecisionPatterns recovers decision fields by regexp when the
// response never contained parseable JSON. The match number is required;
// confidence defaults to 0.5 and reason to a placeholder.
func extractDecisionPatterns(raw string) (*ArbitrationDecision, bool) {
	m := matchPatternRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	match, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, false
	}

	decision := &ArbitrationDecision{
		Match:      match,
		Confidence: 0.5,
		Reason:     "recovered from malformed arbitration response",
	}
	if c := confidencePatternRe.FindStringSubmatch(raw); c != nil {
		if v, err := strconv.ParseFloat(c[1], 64); err == nil {
			decision.Confidence = v
		}
	}
	if r := reasonPatternRe.FindStringSubmatch(raw); r != nil && r[1] != "" {
		decision.Reason = r[1]
	}
	return decision, true
}

// CleanSummary normalizes a summarization response: fences and surrounding
// whitespace stripped, surrounding quotes removed.
func CleanSummary(raw string) string {
	s := strings.ReplaceAll(raw, "```", "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
