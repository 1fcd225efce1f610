// Package ledger persists pipeline progress in SQLite: an append-only log of
// stage executions and a per-chapter summary of the furthest status reached
// and the most recent failure. The ledger is informational; artifact presence
// in the store remains the source of truth for what must be recomputed.
package ledger
