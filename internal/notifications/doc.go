// Package notifications pushes pipeline milestones to an ntfy topic.
//
// Commands notify when a watched upload becomes a work, when a chapter range
// finishes, and when a range stops on errors. Without a configured topic the
// service is a no-op.
package notifications
