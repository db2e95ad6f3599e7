// Package pebble implements db.KVDB on top of CockroachDB's pebble LSM engine.
//
// It is the default engine of aKV: pure Go, crash safe and with synchronous
// writes by default (every Put waits for the WAL to be synced). pebble's own
// log output is forwarded to the "db" logger.
package pebble
