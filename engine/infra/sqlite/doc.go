// Package sqlite provides the modernc.org/sqlite backed storage driver.
//
// The package mirrors the postgres driver layout while supplying SQLite specific
// connection management, migrations, and repositories. Timestamps are stored as
// fixed-width UTC text so lexical order matches chronological order.
package sqlite
