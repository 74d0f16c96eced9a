// Package sqlite provides the modernc.org/sqlite backed infrastructure driver.
//
// The package mirrors the postgres driver layout while supplying SQLite specific
// connection management, migrations, and the auth repository.
package sqlite
