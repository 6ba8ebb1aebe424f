// Package database provides the SQLite persistence layer for VentSync Core.
//
// It wraps database/sql with connection setup (WAL mode, busy timeout,
// single-writer pool) and an embedded-migration runner. Migration files are
// registered by the top-level migrations package via go:embed, so the
// binary carries its own schema.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: "./data/ventsync.db", WALMode: true, BusyTimeout: 5})
//	if err != nil { ... }
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil { ... }
package database
