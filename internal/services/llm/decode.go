package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformed is returned when a payload still fails to decode after the
// repair pass.
var ErrMalformed = errors.New("malformed llm json")

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// DecodeLLMJSON decodes JSON from an LLM response. It strips code fences and
// surrounding prose, then applies at most one repair pass (trailing commas
// before a closing bracket, single quotes used as string delimiters) before
// giving up.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	sanitized := sanitizeJSONPayload(trimmed)
	if sanitized == "" {
		return fmt.Errorf("%w: no json object (payload snippet: %s)", ErrMalformed, summarizePayloadSnippet(trimmed))
	}
	firstErr := json.Unmarshal([]byte(sanitized), target)
	if firstErr == nil {
		return nil
	}

	repaired := RepairJSON(sanitized)
	if repaired == sanitized {
		return fmt.Errorf("%w: %v (payload snippet: %s)", ErrMalformed, firstErr, summarizePayloadSnippet(sanitized))
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("%w: %v (repaired payload snippet: %s)", ErrMalformed, err, summarizePayloadSnippet(repaired))
	}
	return nil
}

// RepairJSON applies the single bounded repair used by DecodeLLMJSON.
func RepairJSON(payload string) string {
	fixed := trailingCommaPattern.ReplaceAllString(payload, "$1")
	return strings.ReplaceAll(fixed, "'", `"`)
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFenceBlock(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	if start := strings.Index(trimmed, "["); start >= 0 {
		if end := strings.LastIndex(trimmed, "]"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return trimmed
}

func stripCodeFenceBlock(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}
	body := trimmed[start+3:]
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.Index(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	replacer := strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")
	clean := strings.Join(strings.Fields(replacer.Replace(trimmed)), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
