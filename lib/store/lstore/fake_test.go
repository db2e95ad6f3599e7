package lstore

import (
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/aKV/lib/db"
)

// fakeDB is a scripted in-memory db.KVDB used to inject failures, panics and blocking.
type fakeDB struct {
	mu   sync.Mutex
	data map[string][]byte

	features db.Feature

	// hooks, called by the coordinator goroutine (may block or panic)
	onPut func(key []byte) error
	onGet func(key []byte) error

	puts    atomic.Int64
	flushed atomic.Bool
	closed  atomic.Bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		data:     make(map[string][]byte),
		features: db.FeaturePut | db.FeatureGet | db.FeatureFlush,
	}
}

func (f *fakeDB) factory() (db.KVDB, error) {
	return f, nil
}

func (f *fakeDB) Put(key, value []byte) error {
	if f.onPut != nil {
		if err := f.onPut(key); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[string(key)] = append([]byte(nil), value...)
	f.puts.Add(1)
	return nil
}

func (f *fakeDB) Get(key []byte) ([]byte, bool, error) {
	if f.onGet != nil {
		if err := f.onGet(key); err != nil {
			return nil, false, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (f *fakeDB) Flush() error {
	f.flushed.Store(true)
	return nil
}

func (f *fakeDB) Close() error {
	f.closed.Store(true)
	return nil
}

func (f *fakeDB) SupportsFeature(feature db.Feature) bool {
	return f.features&feature == feature
}

func (f *fakeDB) GetInfo() db.DatabaseInfo {
	return db.DatabaseInfo{
		DbType:            db.ImplMaple,
		SupportedFeatures: f.features.Features(),
		Metadata:          "fake",
	}
}
