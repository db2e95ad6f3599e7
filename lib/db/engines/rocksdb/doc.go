// Package rocksdb implements db.KVDB on top of RocksDB (through grocksdb).
//
// RocksDB needs cgo and the native library, so the engine is only compiled
// with the rocksdb build tag:
//
//	go build -tags rocksdb ./...
//
// Without the tag the package is empty and db.Open(db.ImplRocksDB, ...) reports
// an unknown implementation.
package rocksdb
