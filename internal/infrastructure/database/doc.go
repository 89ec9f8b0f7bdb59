// Package database provides SQLite database connectivity for Telemetry Core.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Embedded versioned schema migrations
//   - Connection pooling and lifecycle management
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are embedded via the migrations package and applied in
// version order, each in its own transaction. Every migration file has
// both .up.sql and .down.sql variants.
package database
