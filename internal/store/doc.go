// Package store provides persistent conversation storage for the gateway.
//
// # Architecture
//
// The Store interface covers conversation records, the append-only
// activity log, and webhook secret records. Two implementations exist:
//
//   - SQLiteStore: durable storage via modernc.org/sqlite in WAL mode,
//     schema created on open.
//   - MemoryStore: map-backed storage for tests and zero-config runs.
//
// # Sequence Integrity
//
// Each conversation carries a watermark: the sequence number of the most
// recently appended activity. Appends are serialized per conversation
// through a keyed mutex arena, so concurrent appends to one conversation
// produce strictly increasing sequence numbers with no gaps or
// duplicates, while appends to distinct conversations proceed in
// parallel. Attachment validation runs before any mutation; a rejected
// activity consumes no sequence number.
//
// # Fetch Semantics
//
// ActivitiesSince returns activities after a caller-supplied watermark in
// ascending order. An empty result echoes the requested watermark so a
// poller never loses its position; a negative watermark reads from the
// beginning.
package store
