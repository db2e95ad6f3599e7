package maple

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ValentinKolb/aKV/lib/db"
	dbtesting "github.com/ValentinKolb/aKV/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "MapleDB", func(location string) (db.KVDB, error) {
		return NewMapleDB(location, nil)
	})

	dbtesting.RunKVDBTests(t, "MapleDB(in-memory)", func(string) (db.KVDB, error) {
		return NewMapleDB("", nil)
	})
}

func Benchmark(t *testing.B) {
	dbtesting.RunKVDBBenchmarks(t, "MapleDB", func(location string) (db.KVDB, error) {
		return NewMapleDB(location, &DBOptions{SyncWrites: false})
	})
}

func TestInMemoryIsNotPersistent(t *testing.T) {
	database, _ := NewMapleDB("", nil)
	defer database.Close()

	if database.SupportsFeature(db.FeaturePersistent) {
		t.Errorf("In-memory maple must not advertise FeaturePersistent")
	}
}

func TestReplayWithoutSnapshot(t *testing.T) {
	dir := t.TempDir()

	database, err := NewMapleDB(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := database.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := database.Put([]byte("k"), []byte("v2")); err != nil {
		t.Fatal(err)
	}

	// simulate a crash: no Close, so no snapshot is written
	impl := database.(*mapleImpl)
	_ = impl.wal.Close()

	if _, err := os.Stat(filepath.Join(dir, snapshotFile)); !os.IsNotExist(err) {
		t.Fatalf("Expected no snapshot before Flush/Close, got err=%v", err)
	}

	reopened, err := NewMapleDB(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	value, ok, _ := reopened.Get([]byte("k"))
	if !ok || !bytes.Equal(value, []byte("v2")) {
		t.Errorf("Expected v2 after replay, got %s (ok=%v)", value, ok)
	}
}

func TestTornLogTail(t *testing.T) {
	dir := t.TempDir()

	database, err := NewMapleDB(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = database.Put([]byte("a"), []byte("1"))
	_ = database.Put([]byte("b"), []byte("2"))
	_ = database.(*mapleImpl).wal.Close()

	// cut the last record in half
	path := filepath.Join(dir, logFile)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-3); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewMapleDB(dir, nil)
	if err != nil {
		t.Fatalf("Torn log tail must not prevent opening: %v", err)
	}

	if v, ok, _ := reopened.Get([]byte("a")); !ok || string(v) != "1" {
		t.Errorf("Expected a=1 to survive, got %s (ok=%v)", v, ok)
	}
	if _, ok, _ := reopened.Get([]byte("b")); ok {
		t.Errorf("Expected torn record b to be discarded")
	}

	// later writes must be readable after another reopen
	if err := reopened.Put([]byte("c"), []byte("3")); err != nil {
		t.Fatal(err)
	}
	_ = reopened.(*mapleImpl).wal.Close()

	again, err := NewMapleDB(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if v, ok, _ := again.Get([]byte("c")); !ok || string(v) != "3" {
		t.Errorf("Expected c=3 after second reopen, got %s (ok=%v)", v, ok)
	}
}

func TestCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()

	database, err := NewMapleDB(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = database.Put([]byte("key"), []byte("value"))
	if err := database.Close(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, snapshotFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-6] ^= 0xff // flip a byte inside the value
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewMapleDB(dir, nil); err == nil {
		t.Errorf("Expected an error for a corrupt snapshot")
	}
}

func TestRegistered(t *testing.T) {
	database, err := db.Open(db.ImplMaple, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer database.Close()

	if info := database.GetInfo(); info.DbType != db.ImplMaple {
		t.Errorf("Expected maple, got %s", info.DbType)
	}
}
