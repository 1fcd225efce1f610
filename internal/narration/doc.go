// Package narration defines the artifacts passed between pipeline stages.
//
// # Key Types
//
// Script: ordered dialogue lines of one chapter (role + text). Line order is
// narration order and audio segment order. Persisted as script.json.
//
// Character: registry entry (role, descript, id). The Registry is the
// ordered list persisted as characters.json; ids are assigned once and never
// reused.
//
// Bindings: role to voice sample mapping persisted as role_to_voice.json.
//
// VoiceMetadata: the voice library index persisted as voices/metadata.json.
//
// Manifest: assembly inputs digest and output facts persisted next to the
// chapter audio.
//
// # Entry Points
//
// ScriptFromObject: strictly validate a decoded generator payload.
// ParseScript: load a stored script.
// DistinctRoles: first-occurrence role order for a script.
// Registry.NextID / Registry.Append: monotonic id assignment.
package narration
