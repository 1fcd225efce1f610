// Package store persists pipeline artifacts as files addressed by scope and
// key.
//
// Every write goes through a temporary file and a rename, so readers see
// either the previous artifact or the new one. Read-modify-write sequences
// (character registry, voice bindings, voice metadata) run inside Update,
// which holds an exclusive lock for the work or the voice library.
package store
