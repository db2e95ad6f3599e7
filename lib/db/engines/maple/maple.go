package maple

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/cockroachdb/errors"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	snapshotFile = "maple.db"  // Snapshot of the whole map
	logFile      = "maple.log" // Writes applied after the last snapshot
)

var log = logger.GetLogger("db")

func init() {
	db.Register(db.ImplMaple, func(location string) (db.KVDB, error) {
		return NewMapleDB(location, nil)
	})
}

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl keeps all entries in a concurrent map. With a location it
// persists every write to an append log and compacts the log into a snapshot on Flush.
type mapleImpl struct {
	data     *xsync.MapOf[string, []byte]
	location string // empty = in-memory only
	sync     bool

	// persistence, guarded by mu
	mu      sync.Mutex
	wal     *os.File
	walSize atomic.Int64
	closed  bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	SyncWrites bool // fsync the append log after every Put (default true)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		SyncWrites: true,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB opens a MapleDB. An empty location creates a purely in-memory
// database, otherwise location is a directory that holds the snapshot and the append log.
// An existing snapshot is loaded and the append log is replayed on top of it.
func NewMapleDB(location string, opts *DBOptions) (db.KVDB, error) {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}

	maple := &mapleImpl{
		data:     xsync.NewMapOf[string, []byte](),
		location: location,
		sync:     opts.SyncWrites,
	}

	if location == "" {
		return maple, nil
	}

	if err := os.MkdirAll(location, 0o755); err != nil {
		return nil, errors.Wrapf(err, "maple: create directory %s", location)
	}

	if err := maple.loadSnapshot(); err != nil {
		return nil, err
	}

	replayed, err := maple.replayLog()
	if err != nil {
		return nil, err
	}

	wal, err := os.OpenFile(maple.logPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "maple: open log %s", maple.logPath())
	}
	info, err := wal.Stat()
	if err != nil {
		_ = wal.Close()
		return nil, errors.Wrap(err, "maple: stat log")
	}
	maple.wal = wal
	maple.walSize.Store(info.Size())

	log.Infof("maple: opened %s (%d entries, %d replayed from log)", location, maple.data.Size(), replayed)
	return maple, nil
}

func (maple *mapleImpl) snapshotPath() string {
	return filepath.Join(maple.location, snapshotFile)
}

func (maple *mapleImpl) logPath() string {
	return filepath.Join(maple.location, logFile)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods
// --------------------------------------------------------------------------

// Put inserts or updates the value for key.
// With a location, the write is appended to the log before it becomes visible.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Put(key, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	if maple.location == "" {
		maple.data.Store(string(key), stored)
		return nil
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	if maple.closed {
		return errors.New("maple: database is closed")
	}

	n, err := appendRecord(maple.wal, key, stored)
	if err != nil {
		// cut a partially written record so later appends stay replayable
		_ = maple.wal.Truncate(maple.walSize.Load())
		return errors.Wrap(err, "maple: append to log")
	}
	maple.walSize.Add(int64(n))
	if maple.sync {
		if err := maple.wal.Sync(); err != nil {
			return errors.Wrap(err, "maple: sync log")
		}
	}

	maple.data.Store(string(key), stored)
	return nil
}

// Get returns a copy of the value for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key []byte) ([]byte, bool, error) {
	value, ok := maple.data.Load(string(key))
	if !ok {
		return nil, false, nil
	}
	result := make([]byte, len(value))
	copy(result, value)
	return result, true, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Flush writes a new snapshot and truncates the append log.
// For an in-memory database this is a no-op.
func (maple *mapleImpl) Flush() error {
	if maple.location == "" {
		return nil
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	if maple.closed {
		return errors.New("maple: database is closed")
	}
	return maple.compactLocked()
}

// compactLocked writes the snapshot and empties the log. mu must be held.
func (maple *mapleImpl) compactLocked() error {
	if err := maple.writeSnapshot(); err != nil {
		return err
	}
	if err := maple.wal.Truncate(0); err != nil {
		return errors.Wrap(err, "maple: truncate log")
	}
	if err := maple.wal.Sync(); err != nil {
		return errors.Wrap(err, "maple: sync log")
	}
	maple.walSize.Store(0)
	return nil
}

// Close compacts the log into a final snapshot and releases the files.
func (maple *mapleImpl) Close() error {
	if maple.location == "" {
		return nil
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	if maple.closed {
		return nil
	}
	maple.closed = true

	err := maple.compactLocked()
	if closeErr := maple.wal.Close(); closeErr != nil && err == nil {
		err = errors.Wrap(closeErr, "maple: close log")
	}
	return err
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	entries := 0
	sizeBytes := 0
	maple.data.Range(func(key string, value []byte) bool {
		entries++
		sizeBytes += len(key) + len(value)
		return true
	})

	// Metadata for this specific database implementation
	meta := &struct {
		Entries   int   `json:"entries"`
		InMemory  bool  `json:"in_memory"`
		LogBytes  int64 `json:"log_bytes"`
		SyncWrite bool  `json:"sync_writes"`
	}{
		Entries:   entries,
		InMemory:  maple.location == "",
		LogBytes:  maple.walSize.Load(),
		SyncWrite: maple.sync,
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		DbType:            db.ImplMaple,
		Location:          maple.location,
		SupportedFeatures: maple.features().Features(),
		Metadata:          meta,
	}
}

func (maple *mapleImpl) features() db.Feature {
	features := db.FeaturePut | db.FeatureGet | db.FeatureFlush
	if maple.location != "" {
		features |= db.FeaturePersistent
	}
	return features
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	return maple.features()&feature == feature
}
