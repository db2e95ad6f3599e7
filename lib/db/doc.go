// Package db defines the storage engine contract used by the aKV stores.
//
// The contract is deliberately small: the coordinator in lib/store/lstore only ever issues
// point writes and point reads against a single engine handle, one operation at a time.
//
// Key Components:
//
//   - KVDB Interface: Put, Get, Flush and Close over opaque byte keys and values, plus
//     feature discovery (SupportsFeature) and metadata reporting (GetInfo).
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     advertise through SupportsFeature. FeaturePersistent tells callers whether data
//     survives reopening the same location.
//
//   - Registry: engines register a Factory for their Implementation name in their init
//     function. Open(impl, location) looks the factory up, so choosing a backend is a
//     configuration decision (and a build decision for cgo engines) rather than a code change.
//
// Available engines (see lib/db/engines):
//
//   - pebble:  LSM engine from CockroachDB, pure Go, the default
//   - rocksdb: RocksDB through grocksdb, only compiled with -tags rocksdb (cgo)
//   - sqlite:  a single key/value table in SQLite (cgo)
//   - maple:   sharded in-memory map with an optional snapshot file
//
// The testing package (github.com/ValentinKolb/aKV/lib/db/testing) provides a conformance
// suite (RunKVDBTests) and benchmarks (RunKVDBBenchmarks) every engine runs.
package db
