// Package assembly turns a chapter script into one narrated audio file. It
// resolves each role's voice sample, hands the ordered lines to the speech
// synthesizer as a single batch, verifies every segment, and concatenates
// them with a fixed silence gap.
//
// assembly.json next to the audio records a digest of the script, resolved
// samples, and silence gap; matching inputs reuse the existing audio.
//
// Export packs the assembled audio of a chapter range into one ZIP archive.
package assembly
