// Package characters maintains a work's character registry. Roles first seen
// in a chapter's script are profiled by the text generation endpoint and
// appended with consecutive ids; known roles are never touched.
package characters
