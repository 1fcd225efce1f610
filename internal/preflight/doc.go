// Package preflight provides readiness checks for the external capabilities
// and filesystem paths narrate depends on.
//
// The CLI "narrate check" command runs RunAll and prints one line per check.
// Credential checks never call billed endpoints: text generation is probed
// with a tiny JSON completion only when network checks are requested, and
// voice design is only checked for configuration.
package preflight
