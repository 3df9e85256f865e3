// Package database manages the agent's local SQLite store.
//
// The store backs the offline media cache and the device preference table.
// It is opened in WAL mode with a busy timeout so the sync worker can write
// while the rotation loop reads, and schema changes are applied through
// embedded, versioned migrations.
package database
