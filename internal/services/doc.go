// Package services defines shared utilities consumed by the pipeline stages
// and the external capability clients.
//
// Key responsibilities:
//   - Context helpers that stamp work names, chapter ordinals, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so every failure carries
//     its stage and operation, and can be classified by Kind for the ledger.
//
// Capability clients live in subpackages: llm (text generation), voicedesign
// (voice sample generation), and indextts (batch speech synthesis).
package services
