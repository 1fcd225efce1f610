// Package script derives a chapter's ordered, role-attributed script from its
// raw text using the text generation endpoint.
//
// The generated payload must be a single object with a non-empty "lines"
// array whose elements carry a string role and text. Malformed payloads get
// one repair pass; anything still invalid is a structural-format failure and
// leaves the previously stored script untouched.
package script
