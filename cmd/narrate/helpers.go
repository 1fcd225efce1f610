package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseChapter converts a chapter argument into a 1-based ordinal.
func parseChapter(arg string) (int, error) {
	value := strings.TrimSpace(arg)
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid chapter %q: expected a number", arg)
	}
	if n < 1 {
		return 0, fmt.Errorf("invalid chapter %d: ordinals start at 1", n)
	}
	return n, nil
}

func parseWork(arg string) (string, error) {
	work := strings.TrimSpace(arg)
	if work == "" {
		return "", fmt.Errorf("work name is required")
	}
	return work, nil
}
