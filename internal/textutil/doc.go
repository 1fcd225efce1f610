// Package textutil provides source-text handling shared by the chapterizer and
// the CLI: charset detection and decoding, HTML text extraction, and work name
// sanitization.
package textutil
