// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - testing: A conformance suite for the KVDB contract (point writes and reads,
//     byte-wise keys, buffer ownership, flushing and persistence across reopen)
//   - benchmark: Performance tests for measuring throughput of common database operations
//
// Tests that need a feature the implementation does not advertise are skipped,
// e.g. Reopen is only run for implementations supporting db.FeaturePersistent.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(location string) (db.KVDB, error) {
//		return NewMyDatabase(location)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
