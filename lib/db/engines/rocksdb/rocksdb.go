//go:build rocksdb
// +build rocksdb

package rocksdb

import (
	"strconv"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/cockroachdb/errors"
	"github.com/linxGnu/grocksdb"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("db")

func init() {
	db.Register(db.ImplRocksDB, func(location string) (db.KVDB, error) {
		return NewRocksDB(location, nil)
	})
}

// DBOptions configures the rocksdb engine
type DBOptions struct {
	SyncWrites bool // fsync the WAL before Put returns (default true)
}

// DefaultOptions returns the default rocksdb options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		SyncWrites: true,
	}
}

type rocksImpl struct {
	db       *grocksdb.DB
	opts     *grocksdb.Options
	wo       *grocksdb.WriteOptions
	ro       *grocksdb.ReadOptions
	fo       *grocksdb.FlushOptions
	location string
	sync     bool
}

// NewRocksDB opens (or creates) a RocksDB database in the directory location.
func NewRocksDB(location string, opts *DBOptions) (db.KVDB, error) {
	if location == "" {
		return nil, errors.New("rocksdb: location must not be empty")
	}
	if opts == nil {
		opts = DefaultOptions()
	}

	dbOpts := grocksdb.NewDefaultOptions()
	dbOpts.SetCreateIfMissing(true)

	rdb, err := grocksdb.OpenDb(dbOpts, location)
	if err != nil {
		dbOpts.Destroy()
		return nil, errors.Wrapf(err, "rocksdb: open %s", location)
	}

	wo := grocksdb.NewDefaultWriteOptions()
	wo.SetSync(opts.SyncWrites)

	fo := grocksdb.NewDefaultFlushOptions()
	fo.SetWait(true)

	return &rocksImpl{
		db:       rdb,
		opts:     dbOpts,
		wo:       wo,
		ro:       grocksdb.NewDefaultReadOptions(),
		fo:       fo,
		location: location,
		sync:     opts.SyncWrites,
	}, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation
// --------------------------------------------------------------------------

func (r *rocksImpl) Put(key, value []byte) error {
	if err := r.db.Put(r.wo, key, value); err != nil {
		return errors.Wrap(err, "rocksdb: put")
	}
	return nil
}

func (r *rocksImpl) Get(key []byte) ([]byte, bool, error) {
	data, err := r.db.Get(r.ro, key)
	if err != nil {
		return nil, false, errors.Wrap(err, "rocksdb: get")
	}
	defer data.Free()

	if !data.Exists() {
		return nil, false, nil
	}

	// data is owned by rocksdb until Free
	result := make([]byte, data.Size())
	copy(result, data.Data())
	return result, true, nil
}

func (r *rocksImpl) Flush() error {
	if err := r.db.Flush(r.fo); err != nil {
		return errors.Wrap(err, "rocksdb: flush")
	}
	return nil
}

func (r *rocksImpl) Close() error {
	if err := r.Flush(); err != nil {
		log.Warningf("rocksdb: final flush of %s failed: %v", r.location, err)
	}
	r.db.Close()
	r.wo.Destroy()
	r.ro.Destroy()
	r.fo.Destroy()
	r.opts.Destroy()
	return nil
}

const supportedFeatures = db.FeaturePut | db.FeatureGet | db.FeatureFlush | db.FeaturePersistent

func (r *rocksImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (r *rocksImpl) GetInfo() db.DatabaseInfo {
	property := func(name string) int {
		v, err := strconv.Atoi(r.db.GetProperty(name))
		if err != nil {
			return 0
		}
		return v
	}

	meta := &struct {
		EstimatedKeys int  `json:"estimated_keys"`
		MemtableBytes int  `json:"memtable_bytes"`
		SyncWrites    bool `json:"sync_writes"`
	}{
		EstimatedKeys: property("rocksdb.estimate-num-keys"),
		MemtableBytes: property("rocksdb.cur-size-all-mem-tables"),
		SyncWrites:    r.sync,
	}

	return db.DatabaseInfo{
		SizeBytes:         property("rocksdb.total-sst-files-size") + meta.MemtableBytes,
		DbType:            db.ImplRocksDB,
		Location:          r.location,
		SupportedFeatures: supportedFeatures.Features(),
		Metadata:          meta,
	}
}
