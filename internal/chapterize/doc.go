// Package chapterize turns a source text into an initialized work: it decodes
// the source, splits it on chapter boundary lines, and seeds the character
// registry and voice bindings with the narrator.
package chapterize
