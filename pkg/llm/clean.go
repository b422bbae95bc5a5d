package llm

import (
	"regexp"
	"strings"
)

// thinkTagPattern matches <think>...</think> tags that some models emit at
// the start of a response.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// fencePattern matches a fenced code block with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```(?:sql|SQL)?\\s*(.*?)```")

// CleanSQL extracts a bare SQL statement from a model response. Models
// wrap SQL in markdown fences, prefix it with prose, or emit reasoning
// tags; execution needs only the statement itself.
func CleanSQL(response string) string {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	if m := fencePattern.FindStringSubmatch(cleaned); len(m) >= 2 {
		cleaned = m[1]
	}

	cleaned = strings.TrimSpace(cleaned)

	// A leading "sql" line survives when the fence tag sat on its own line.
	if rest, ok := strings.CutPrefix(cleaned, "sql\n"); ok {
		cleaned = rest
	}

	// Drop prose before the statement: keep from the first SQL keyword.
	upper := strings.ToUpper(cleaned)
	for _, kw := range []string{"SELECT", "WITH"} {
		if idx := strings.Index(upper, kw); idx > 0 {
			// Only trim when the prefix is clearly not SQL.
			prefix := strings.TrimSpace(cleaned[:idx])
			if prefix != "" && !strings.ContainsAny(prefix, "()") {
				cleaned = cleaned[idx:]
			}
			break
		} else if idx == 0 {
			break
		}
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cleaned), ";"))
}
