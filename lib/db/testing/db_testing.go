package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/aKV/lib/db"
)

// DBFactory opens a KVDB implementation at the given location
type DBFactory func(location string) (db.KVDB, error)

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, open(t, factory, t.TempDir()))
		})

		t.Run("Missing", func(t *testing.T) {
			testMissing(t, open(t, factory, t.TempDir()))
		})

		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, open(t, factory, t.TempDir()))
		})

		t.Run("Ownership", func(t *testing.T) {
			testOwnership(t, open(t, factory, t.TempDir()))
		})

		t.Run("BinaryKeys", func(t *testing.T) {
			testBinaryKeys(t, open(t, factory, t.TempDir()))
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, open(t, factory, t.TempDir()))
		})

		t.Run("Flush", func(t *testing.T) {
			testFlush(t, open(t, factory, t.TempDir()))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, factory)
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, open(t, factory, t.TempDir()))
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, open(t, factory, t.TempDir()))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// open creates a database or fails the test
func open(t testing.TB, factory DBFactory, location string) db.KVDB {
	database, err := factory(location)
	if err != nil {
		t.Fatalf("Failed to open database at %s: %v", location, err)
	}
	return database
}

func mustPut(t testing.TB, database db.KVDB, key, value []byte) {
	if err := database.Put(key, value); err != nil {
		t.Fatalf("Unexpected error during Put(%q): %v", key, err)
	}
}

func mustGet(t testing.TB, database db.KVDB, key []byte) ([]byte, bool) {
	value, loaded, err := database.Get(key)
	if err != nil {
		t.Fatalf("Unexpected error during Get(%q): %v", key, err)
	}
	return value, loaded
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	testKey := []byte("test-key")
	testValue := []byte("test-value")

	mustPut(t, database, testKey, testValue)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Put", testKey)
	}
	if !bytes.Equal(result, testValue) {
		t.Errorf("Expected value %s, got %s", testValue, result)
	}
}

func testMissing(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureGet)

	result, exists := mustGet(t, database, []byte("nonexistent-key"))
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
	if len(result) != 0 {
		t.Errorf("Expected no value for nonexistent key, got %s", result)
	}
}

func testOverwrite(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	testKey := []byte("test-key")
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2-longer")

	mustPut(t, database, testKey, testValue1)
	mustPut(t, database, testKey, testValue2)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Put", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	// shorter value after a longer one must not leave a tail behind
	mustPut(t, database, testKey, testValue1)
	result, _ = mustGet(t, database, testKey)
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}
}

func testOwnership(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	key := []byte("owned-key")
	value := []byte("owned-value")

	mustPut(t, database, key, value)

	// mutating the caller's buffers after Put must not change the stored data
	key[0] = 'X'
	value[0] = 'X'

	result, exists := mustGet(t, database, []byte("owned-key"))
	if !exists {
		t.Fatalf("Expected key to exist after mutating the caller's buffer")
	}
	if !bytes.Equal(result, []byte("owned-value")) {
		t.Errorf("Stored value changed after mutating the caller's buffer: %s", result)
	}

	// mutating a returned value must not change the stored data
	result[0] = 'Y'
	again, _ := mustGet(t, database, []byte("owned-key"))
	if !bytes.Equal(again, []byte("owned-value")) {
		t.Errorf("Stored value changed after mutating a returned value: %s", again)
	}
}

func testBinaryKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	keys := [][]byte{
		{0x00},
		{0x00, 0x00},
		{0xff, 0x00, 0xfe},
		{0x01, 0x02, 0x03, 0x00},
		[]byte("a\x00b"),
	}

	for i, key := range keys {
		mustPut(t, database, key, []byte(fmt.Sprintf("value-%d", i)))
	}

	for i, key := range keys {
		result, exists := mustGet(t, database, key)
		if !exists {
			t.Errorf("Binary key %x not found", key)
			continue
		}
		if expected := []byte(fmt.Sprintf("value-%d", i)); !bytes.Equal(result, expected) {
			t.Errorf("Binary key %x: expected %s, got %s", key, expected, result)
		}
	}

	// keys are compared byte-wise, a prefix is a different key
	if _, exists := mustGet(t, database, []byte{0xff, 0x00}); exists {
		t.Errorf("Prefix of a stored key must not be found")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	emptyValueKey := []byte("empty-value-key")
	mustPut(t, database, emptyValueKey, []byte{})

	result, exists := mustGet(t, database, emptyValueKey)
	if !exists {
		t.Errorf("Key for empty value not found after Put")
	} else if len(result) != 0 {
		t.Errorf("Empty value resulted in non-empty value: %v", result)
	}

	nilValueKey := []byte("nil-value-key")
	mustPut(t, database, nilValueKey, nil)

	result, exists = mustGet(t, database, nilValueKey)
	if !exists {
		t.Errorf("Key for nil value not found after Put")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	if !t.Failed() {

		largeKey := bytes.Repeat([]byte{'k'}, 1000)
		largeKeyValue := []byte("value for large key")

		mustPut(t, database, largeKey, largeKeyValue)

		result, exists = mustGet(t, database, largeKey)
		if !exists {
			t.Errorf("Large key not found after Put")
		} else if !bytes.Equal(result, largeKeyValue) {
			t.Errorf("Value mismatch for large key")
		}

		largeValueKey := []byte("large-value-key")
		largeValue := make([]byte, 4*1024*1024)

		for i := range largeValue {
			largeValue[i] = byte(i % 256)
		}

		mustPut(t, database, largeValueKey, largeValue)

		result, exists = mustGet(t, database, largeValueKey)
		if !exists {
			t.Errorf("Key for large value not found after Put")
		} else if !bytes.Equal(result, largeValue) {
			t.Errorf("Large value mismatch: got %d bytes, expected %d", len(result), len(largeValue))
		}
	}
}

func testFlush(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureFlush)

	mustPut(t, database, []byte("flush-key"), []byte("flush-value"))

	if err := database.Flush(); err != nil {
		t.Fatalf("Unexpected error during Flush: %v", err)
	}

	// flushing twice is allowed
	if err := database.Flush(); err != nil {
		t.Fatalf("Unexpected error during second Flush: %v", err)
	}

	result, exists := mustGet(t, database, []byte("flush-key"))
	if !exists || !bytes.Equal(result, []byte("flush-value")) {
		t.Errorf("Expected flush-value after Flush, got %s (exists=%v)", result, exists)
	}
}

func testReopen(t *testing.T, factory DBFactory) {
	location := t.TempDir()
	database := open(t, factory, location)

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeaturePersistent)

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		key := []byte(fmt.Sprintf("reopen-test-key-%d", i))
		value := []byte(fmt.Sprintf("reopen-test-value-%d", i))
		mustPut(t, database, key, value)
	}

	if err := database.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}

	database2 := open(t, factory, location)
	defer database2.Close()

	for i := 0; i < numEntries; i++ {
		key := []byte(fmt.Sprintf("reopen-test-key-%d", i))
		expectedValue := []byte(fmt.Sprintf("reopen-test-value-%d", i))

		actualValue, exists := mustGet(t, database2, key)
		if !exists {
			t.Errorf("Key %s not found after reopen", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	info := database.GetInfo()

	if _, ok := db.ParseImplementation(string(info.DbType)); !ok {
		t.Errorf("GetInfo reported unknown implementation %q", info.DbType)
	}
	if info.SizeBytes < 0 {
		t.Errorf("GetInfo reported negative size %d", info.SizeBytes)
	}

	for _, feature := range info.SupportedFeatures {
		if !database.SupportsFeature(feature) {
			t.Errorf("GetInfo lists %s but SupportsFeature denies it", feature)
		}
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	// a KVDB is driven by a single coordinator, but the engines must not
	// corrupt data if several goroutines use them with a lock held
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	numWorkers := 8
	numKeys := 200

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < numKeys; i++ {
				key := []byte(fmt.Sprintf("worker-%d-key-%d", worker, i))
				value := []byte(fmt.Sprintf("worker-%d-value-%d", worker, i))

				mu.Lock()
				err := database.Put(key, value)
				mu.Unlock()

				if err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < numWorkers; w++ {
		for i := 0; i < numKeys; i++ {
			key := []byte(fmt.Sprintf("worker-%d-key-%d", w, i))
			expected := []byte(fmt.Sprintf("worker-%d-value-%d", w, i))

			result, exists := mustGet(t, database, key)
			if !exists || !bytes.Equal(result, expected) {
				t.Errorf("Key %s: expected %s, got %s (exists=%v)", key, expected, result, exists)
			}
		}
	}
}
