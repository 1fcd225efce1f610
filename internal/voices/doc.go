// Package voices binds each registered character of a work to a reference
// voice sample. Missing samples are generated through the voice design
// endpoint; Bind installs a user-supplied recording instead. Every sample is
// catalogued in the shared voice library.
package voices
