// Package voicedesign talks to a MiniMax-style voice design endpoint that
// turns a character description into a short hex encoded reference clip.
package voicedesign
