// Package workflow advances chapters through the narration pipeline.
//
// The Manager runs the linear stage sequence script → characters → voices →
// assemble for one chapter or a range of chapters. Each stage is executed
// through stageexec, which logs it and records the outcome in the stage
// ledger. Stages reuse current artifacts, so re-running a finished chapter is
// cheap: the existing script is kept unless Options.Rederive is set, and the
// registry diff, binding diff, and assembly digest skip work that is already
// done.
//
// Ranges treat every chapter independently. A failure stops that chapter at
// the failing stage and the range continues with the next chapter; the caller
// receives one Outcome per chapter.
package workflow
