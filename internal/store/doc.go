// Package store holds the triage system's durable state: dashboard
// records, the human review queue, per-thread message history, open
// proposals, confirmed events, and sent history.
//
// All collections live behind one mutex. Mutators respect ownership:
// review items are removed exactly once, proposals are popped exactly
// once, dashboard records are append-only except for status updates on
// human decisions. State is persisted as a wholesale bbolt snapshot, one
// bucket per collection, rewritten on every save; loading tolerates
// malformed entries by skipping them.
package store
