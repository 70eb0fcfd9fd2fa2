// Package sqlite provides a SQLite-based MetadataStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Documents are rows in the documents table, ordered by an autoincrement
// sequence, and are never updated. live_documents points at the current
// record per program and document type; a record is superseded when a later
// record names it in supersedes. Exposed facts are rows in the facts table so lookups by kind
// are served by an index.
//
// # Data Location
//
// By default, the database is stored at ~/.acqgen/data/metadata.db
//
// # Thread Safety
//
// All operations are thread-safe. Commits are serialised in-process and run
// in a single transaction, so a cancelled commit leaves no partial record.
package sqlite
