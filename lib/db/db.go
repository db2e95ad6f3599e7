package db

import (
	"sort"
	"strings"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplPebble  Implementation = "pebble"
	ImplRocksDB Implementation = "rocksdb"
	ImplSQLite  Implementation = "sqlite"
	ImplMaple   Implementation = "maple"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeaturePut        Feature = 1 << iota // Support for Put operations
	FeatureGet                            // Support for Get operations
	FeatureFlush                          // Support for explicit Flush operations
	FeaturePersistent                     // Data survives a Close/Open cycle at the same location
)

func (f Feature) String() string {
	switch f {
	case FeaturePut:
		return "Put"
	case FeatureGet:
		return "Get"
	case FeatureFlush:
		return "Flush"
	case FeaturePersistent:
		return "Persistent"
	default:
		return "Unknown"
	}
}

// Features splits a combined feature mask into its single flags (ascending order).
func (f Feature) Features() []Feature {
	var features []Feature
	for bit := FeaturePut; bit <= FeaturePersistent; bit <<= 1 {
		if f&bit == bit {
			features = append(features, bit)
		}
	}
	return features
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	DbType            Implementation `json:"db_type"`
	Location          string         `json:"location"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB is the minimal, synchronous contract a storage engine has to provide.
// Keys and values are opaque byte slices, compared byte-wise.
//
// Implementations only need point writes and point reads, each independently atomic.
// A KVDB is owned by exactly one coordinator, so implementations are not required to
// be safe for concurrent use (most of them are anyway).
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or updates the value for key.
	// For persistent implementations the write must be durable when Put returns.
	// The implementation must not retain key or value after returning.
	Put(key, value []byte) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	// A missing key is not an error. The returned slice is owned by the caller.
	Get(key []byte) (value []byte, loaded bool, err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Flush forces buffered state to stable storage.
	Flush() (err error)

	// Close performs a final flush and releases the engine. The KVDB must not be used afterwards.
	Close() (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)
}

// ParseImplementation converts a backend name (case-insensitive) into an Implementation.
func ParseImplementation(name string) (Implementation, bool) {
	impl := Implementation(strings.ToLower(strings.TrimSpace(name)))
	switch impl {
	case ImplPebble, ImplRocksDB, ImplSQLite, ImplMaple:
		return impl, true
	default:
		return "", false
	}
}

// sortedImplementations returns the keys of m in lexical order
func sortedImplementations[V any](m map[Implementation]V) []Implementation {
	impls := make([]Implementation, 0, len(m))
	for impl := range m {
		impls = append(impls, impl)
	}
	sort.Slice(impls, func(i, j int) bool { return impls[i] < impls[j] })
	return impls
}
