// Package sqlite stores run history and schedule state in SQLite.
//
// It uses modernc.org/sqlite, a pure Go driver, so the binary needs no CGO.
// One database backs two port interfaces:
//
//   - RunStore: job reports for the history command and web page
//   - SchedulerStore: per-task schedule state and execution results
//
// # Schema
//
// The schema is managed through versioned migrations in migrations/. Each
// applied version is recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.cmsync/data/cmsync.db
package sqlite
