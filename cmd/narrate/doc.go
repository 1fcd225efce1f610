// Package main hosts the narrate CLI entrypoint and command graph.
//
// Each pipeline operation has its own command (init, script, characters,
// voices, assemble) and run drives them in sequence for a chapter or range.
// status, works, check, and config report on the installation; watch turns
// files dropped into the upload inbox into works. bind installs a custom
// voice sample for a role and export packs a chapter range into a ZIP.
//
// Commands resolve configuration once, build the capability clients from it,
// and print the artifact path they produced or confirmed. With --json every
// command prints a structured result instead.
package main
