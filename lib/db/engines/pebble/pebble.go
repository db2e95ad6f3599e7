package pebble

import (
	"fmt"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("db")

func init() {
	db.Register(db.ImplPebble, func(location string) (db.KVDB, error) {
		return NewPebbleDB(location, nil)
	})
}

// DBOptions configures the pebble engine
type DBOptions struct {
	SyncWrites bool // wait for the WAL to be synced before Put returns (default true)
	ReadOnly   bool // open the database read only
}

// DefaultOptions returns the default pebble options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		SyncWrites: true,
	}
}

type pebbleImpl struct {
	db        *pebble.DB
	location  string
	writeOpts *pebble.WriteOptions
	readOnly  bool
}

// NewPebbleDB opens (or creates) a pebble database in the directory location.
func NewPebbleDB(location string, opts *DBOptions) (db.KVDB, error) {
	if location == "" {
		return nil, errors.New("pebble: location must not be empty")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	pdb, err := pebble.Open(location, &pebble.Options{
		Logger:   pebbleLogger{},
		ReadOnly: opts.ReadOnly,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "pebble: open %s", location)
	}

	writeOpts := pebble.NoSync
	if opts.SyncWrites {
		writeOpts = pebble.Sync
	}

	return &pebbleImpl{
		db:        pdb,
		location:  location,
		writeOpts: writeOpts,
		readOnly:  opts.ReadOnly,
	}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation
// --------------------------------------------------------------------------

func (p *pebbleImpl) Put(key, value []byte) error {
	// pebble copies key and value into its memtable
	if err := p.db.Set(key, value, p.writeOpts); err != nil {
		return errors.Wrap(err, "pebble: set")
	}
	return nil
}

func (p *pebbleImpl) Get(key []byte) ([]byte, bool, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "pebble: get")
	}
	defer closer.Close()

	// value is only valid until closer is closed
	result := make([]byte, len(value))
	copy(result, value)
	return result, true, nil
}

func (p *pebbleImpl) Flush() error {
	if p.readOnly {
		return nil
	}
	if err := p.db.Flush(); err != nil {
		return errors.Wrap(err, "pebble: flush")
	}
	return nil
}

func (p *pebbleImpl) Close() error {
	if err := p.Flush(); err != nil {
		log.Warningf("pebble: final flush of %s failed: %v", p.location, err)
	}
	if err := p.db.Close(); err != nil {
		return errors.Wrap(err, "pebble: close")
	}
	return nil
}

func (p *pebbleImpl) features() db.Feature {
	features := db.FeatureGet | db.FeatureFlush | db.FeaturePersistent
	if !p.readOnly {
		features |= db.FeaturePut
	}
	return features
}

func (p *pebbleImpl) SupportsFeature(feature db.Feature) bool {
	return p.features()&feature == feature
}

func (p *pebbleImpl) GetInfo() db.DatabaseInfo {
	m := p.db.Metrics()
	total := m.Total()

	meta := &struct {
		ReadAmp     int    `json:"read_amp"`
		Tables      int64  `json:"tables"`
		MemtableLen int64  `json:"memtable_count"`
		WALBytes    uint64 `json:"wal_bytes"`
		SyncWrites  bool   `json:"sync_writes"`
		Summary     string `json:"summary"`
	}{
		ReadAmp:     m.ReadAmp(),
		Tables:      total.NumFiles,
		MemtableLen: m.MemTable.Count,
		WALBytes:    m.WAL.Size,
		SyncWrites:  p.writeOpts.Sync,
		Summary:     fmt.Sprintf("%d tables, read amplification %d", total.NumFiles, m.ReadAmp()),
	}

	return db.DatabaseInfo{
		SizeBytes:         int(m.DiskSpaceUsage()),
		DbType:            db.ImplPebble,
		Location:          p.location,
		SupportedFeatures: p.features().Features(),
		Metadata:          meta,
	}
}

// --------------------------------------------------------------------------
// Logger
// --------------------------------------------------------------------------

// pebbleLogger forwards pebble's log output to the "db" logger
type pebbleLogger struct{}

func (pebbleLogger) Infof(format string, args ...interface{}) {
	log.Debugf("pebble: "+format, args...)
}

func (pebbleLogger) Fatalf(format string, args ...interface{}) {
	log.Panicf("pebble: "+format, args...)
}
