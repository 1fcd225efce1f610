package textutil

import (
	"path/filepath"
	"strings"
)

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// WorkName derives a storage-safe work name. Leading dots are stripped so the
// result can never name the current or parent directory.
func WorkName(name string) string {
	return strings.TrimLeft(SanitizeFileName(name), ".")
}

// WorkNameFromPath derives a work name from a source file path by dropping
// the directory and extension.
func WorkNameFromPath(path string) string {
	base := filepath.Base(path)
	return WorkName(strings.TrimSuffix(base, filepath.Ext(base)))
}
