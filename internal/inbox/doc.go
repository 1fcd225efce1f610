// Package inbox watches the upload directory and hands settled source files
// to a handler, which initializes them as works.
//
// Writes are debounced per file: a file is handled once no create or write
// event has arrived for the settle interval, so partially copied uploads are
// not split. Handling is sequential.
package inbox
