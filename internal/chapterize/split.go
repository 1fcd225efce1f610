package chapterize

import (
	"fmt"
	"regexp"
	"strings"
)

// CompilePattern compiles a chapter boundary expression. Boundaries are
// matched against single trimmed lines.
func CompilePattern(expr string) (*regexp.Regexp, error) {
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("chapter pattern %q: %w", expr, err)
	}
	return pattern, nil
}

// Split divides text into chapters. Lines are trimmed and blank lines
// dropped; a line matching pattern starts a new chapter and becomes its first
// line. Lines before the first boundary form their own leading chapter. When
// nothing matches, the whole text is one chapter. Each chapter is returned as
// its lines joined by "\n"; an empty text yields no chapters.
func Split(text string, pattern *regexp.Regexp) []string {
	var chapters [][]string
	var current []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if pattern != nil && pattern.MatchString(trimmed) && len(current) > 0 {
			chapters = append(chapters, current)
			current = nil
		}
		current = append(current, trimmed)
	}
	if len(current) > 0 {
		chapters = append(chapters, current)
	}

	out := make([]string, 0, len(chapters))
	for _, lines := range chapters {
		out = append(out, strings.Join(lines, "\n"))
	}
	return out
}
