// Package store provides SQLite-backed durable storage for calendar
// events, their raw source payloads, and cache freshness metadata.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: raw_events.source_id references events.source_id
//
// # Transaction boundary
//
// StoreEvents, StoreRawEvents, and UpdateMetadata each run inside a
// single transaction, retried up to a bounded budget on lock
// contention. Reads go through a separate read-only connection so
// concurrent readers never block on the writer.
package store
