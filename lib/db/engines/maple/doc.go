// Package maple implements a simple key-value database (KVDB) on top of a
// concurrent hash map (xsync.MapOf). It is the engine with the lowest latency
// and is mostly used for tests, caches and small deployments.
//
// Modes:
//
//   - In-memory: NewMapleDB("", nil) keeps everything in the map. Nothing survives Close.
//
//   - Persistent: NewMapleDB(dir, nil) keeps two files in dir:
//     1. maple.db: a snapshot of the whole map
//     2. maple.log: an append log with every Put since the last snapshot
//     Put appends a checksummed record to the log (and fsyncs it unless
//     DBOptions.SyncWrites is false) before the value becomes visible. Flush and
//     Close write a new snapshot to a temporary file, rename it over maple.db and
//     truncate the log.
//
// On open the snapshot is loaded and the log is replayed on top of it. A torn
// record at the end of the log (a crash in the middle of a write) is discarded,
// a corrupt snapshot is reported as an error.
//
// Snapshot format (little endian):
//  1. Magic number "MAPLEDB\x00" to identify the file format
//  2. Version number (currently 4)
//  3. Number of entries
//  4. For each entry: key length, key bytes, value length, value bytes
//  5. CRC32-C checksum over 3. and 4.
package maple
