// Package concat joins PCM WAV segments into one file with a fixed silence
// gap between consecutive segments.
package concat
