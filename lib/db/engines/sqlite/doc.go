// Package sqlite implements db.KVDB as a single key/value table in SQLite
// (mattn/go-sqlite3, requires cgo).
//
// The database lives in <location>/kv.sqlite and runs in WAL mode with
// synchronous=FULL. Flush checkpoints the WAL into the main file.
package sqlite
