package narration

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidScript marks a script that violates the {lines:[{role,text}]} shape.
var ErrInvalidScript = errors.New("invalid script")

// Line is one utterance of a script.
type Line struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Script is the ordered list of lines for one chapter.
type Script struct {
	Lines []Line `json:"lines"`
}

// ScriptFromObject validates a decoded JSON object. It must carry a "lines"
// array whose elements are objects with string "role" and "text" fields. The
// role must be non-blank and the text must contain something to speak.
func ScriptFromObject(obj map[string]json.RawMessage) (Script, error) {
	rawLines, ok := obj["lines"]
	if !ok {
		return Script{}, fmt.Errorf("%w: missing \"lines\" field", ErrInvalidScript)
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(rawLines, &elements); err != nil || elements == nil {
		return Script{}, fmt.Errorf("%w: \"lines\" is not an array", ErrInvalidScript)
	}
	if len(elements) == 0 {
		return Script{}, fmt.Errorf("%w: \"lines\" is empty", ErrInvalidScript)
	}
	lines := make([]Line, 0, len(elements))
	for i, element := range elements {
		line, err := lineFromElement(element)
		if err != nil {
			return Script{}, fmt.Errorf("%w: line %d: %v", ErrInvalidScript, i, err)
		}
		lines = append(lines, line)
	}
	return Script{Lines: lines}, nil
}

func lineFromElement(raw json.RawMessage) (Line, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Line{}, errors.New("not an object")
	}
	role, err := stringField(fields, "role")
	if err != nil {
		return Line{}, err
	}
	text, err := stringField(fields, "text")
	if err != nil {
		return Line{}, err
	}
	role = strings.TrimSpace(role)
	if role == "" {
		return Line{}, errors.New("blank role")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Line{}, errors.New("blank text")
	}
	return Line{Role: role, Text: text}, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("missing %q", name)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("%q is not a string", name)
	}
	return value, nil
}

// ParseScript loads a stored script with the same validation as
// ScriptFromObject.
func ParseScript(data []byte) (Script, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Script{}, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return ScriptFromObject(obj)
}

// DistinctRoles returns the roles of lines in first-occurrence order.
func DistinctRoles(lines []Line) []string {
	seen := make(map[string]struct{}, len(lines))
	roles := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.Role]; ok {
			continue
		}
		seen[line.Role] = struct{}{}
		roles = append(roles, line.Role)
	}
	return roles
}

// SegmentName is the file name of the audio clip for line index.
func SegmentName(index int) string {
	return fmt.Sprintf("segment_%03d.wav", index)
}
