package testing

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ValentinKolb/aKV/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, open(b, factory, b.TempDir()))
	})

	b.Run("PutExisting", func(b *testing.B) {
		benchmarkPutExisting(b, open(b, factory, b.TempDir()))
	})

	b.Run("PutLargeValue", func(b *testing.B) {
		benchmarkPutLargeValue(b, open(b, factory, b.TempDir()))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, open(b, factory, b.TempDir()))
	})

	b.Run("Get(not)", func(b *testing.B) {
		benchmarkGetNot(b, open(b, factory, b.TempDir()))
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, open(b, factory, b.TempDir()))
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Put operation
func benchmarkPut(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := []byte(fmt.Sprintf("test-key-%d", i))
		value := []byte(fmt.Sprintf("test-value-%d", i))
		if err := database.Put(key, value); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for Put operation with existing keys
func benchmarkPutExisting(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	// Prepare data
	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		mustPut(b, database, []byte(fmt.Sprintf("test-key-%d", i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := []byte(fmt.Sprintf("test-key-%d", i%numKeys))
		value := []byte(fmt.Sprintf("test-value-%d", i))
		if err := database.Put(key, value); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for Put operation with large values
func benchmarkPutLargeValue(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	largeValue := make([]byte, 64*1024) // 64KB
	b.SetBytes(int64(len(largeValue)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := database.Put([]byte(fmt.Sprintf("test-key-%d", i)), largeValue); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for Get operation on present keys
func benchmarkGet(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)

	// Prepare data
	numKeys := 10000
	for i := 0; i < numKeys; i++ {
		mustPut(b, database, []byte(fmt.Sprintf("test-key-%d", i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := database.Get([]byte(fmt.Sprintf("test-key-%d", i%numKeys))); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for Get operation on absent keys
func benchmarkGetNot(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureGet)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := database.Get([]byte(fmt.Sprintf("missing-key-%d", i))); err != nil {
			b.Fatal(err)
		}
	}
}

// Benchmark for mixed operations, 80% reads and 20% writes
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)

	numKeys := 1000
	for i := 0; i < numKeys; i++ {
		mustPut(b, database, []byte(fmt.Sprintf("test-key-%d", i)), []byte(fmt.Sprintf("test-value-%d", i)))
	}

	r := rand.New(rand.NewSource(42))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := []byte(fmt.Sprintf("test-key-%d", r.Intn(numKeys)))
		if r.Intn(100) < 80 {
			if _, _, err := database.Get(key); err != nil {
				b.Fatal(err)
			}
		} else {
			if err := database.Put(key, []byte(fmt.Sprintf("test-value-%d", i))); err != nil {
				b.Fatal(err)
			}
		}
	}
}
