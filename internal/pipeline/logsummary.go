package pipeline

import "strings"

const summaryLines = 5

// SummarizeLog picks the compile log lines worth showing: the first lines
// mentioning an error or failure, otherwise the last non-empty lines.
func SummarizeLog(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")

	var hits []string
	for _, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed") {
			hits = append(hits, strings.TrimSpace(line))
			if len(hits) == summaryLines {
				return hits
			}
		}
	}
	if len(hits) > 0 {
		return hits
	}

	start := max(len(lines)-summaryLines, 0)
	var tail []string
	for _, line := range lines[start:] {
		if s := strings.TrimSpace(line); s != "" {
			tail = append(tail, s)
		}
	}
	return tail
}
