package lstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/aKV/lib/db"
	_ "github.com/ValentinKolb/aKV/lib/db/engines/maple"
	_ "github.com/ValentinKolb/aKV/lib/db/engines/pebble"
	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/lib/store/lstore/internal"
	"github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func openTestStore(t *testing.T, impl db.Implementation) store.IStore {
	t.Helper()
	s, err := Open(impl, t.TempDir(), &Options{Name: t.Name()})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func openFakeStore(t *testing.T, fake *fakeDB, opts *Options) store.IStore {
	t.Helper()
	s, err := NewLocalStore(fake.factory, opts)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// pendingWaiters asks the coordinator how many AwaitRead calls are parked
func pendingWaiters(t *testing.T, s store.IStore) int {
	t.Helper()
	info, err := s.GetDBInfo(testCtx(t))
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	meta, ok := info.Metadata.(map[string]interface{})
	if !ok {
		t.Fatalf("Unexpected metadata type %T", info.Metadata)
	}
	return meta["pending_waiters"].(int)
}

// waitForPending blocks until the store has n parked waiters
func waitForPending(t *testing.T, s store.IStore, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if pendingWaiters(t, s) == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timeout waiting for %d pending waiters (have %d)", n, pendingWaiters(t, s))
}

type awaitResult struct {
	value []byte
	err   error
}

// startAwait runs AwaitRead in the background
func startAwait(ctx context.Context, s store.IStore, key string) <-chan awaitResult {
	ch := make(chan awaitResult, 1)
	go func() {
		v, err := s.AwaitRead(ctx, []byte(key))
		ch <- awaitResult{v, err}
	}()
	return ch
}

func receive(t *testing.T, ch <-chan awaitResult) awaitResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("Timeout waiting for AwaitRead to return")
		return awaitResult{}
	}
}

func assertPending(t *testing.T, ch <-chan awaitResult) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("AwaitRead returned unexpectedly: %s, %v", r.value, r.err)
	case <-time.After(50 * time.Millisecond):
	}
}

// --------------------------------------------------------------------------
// Behaviour on real engines
// --------------------------------------------------------------------------

func TestStore(t *testing.T) {
	for _, impl := range []db.Implementation{db.ImplPebble, db.ImplMaple} {
		t.Run(string(impl), func(t *testing.T) {
			t.Run("WriteThenRead", func(t *testing.T) {
				testWriteThenRead(t, openTestStore(t, impl))
			})
			t.Run("ReadBeforeWrite", func(t *testing.T) {
				testReadBeforeWrite(t, openTestStore(t, impl))
			})
			t.Run("AwaitResolvesOnWrite", func(t *testing.T) {
				testAwaitResolvesOnWrite(t, openTestStore(t, impl))
			})
			t.Run("AwaitPresentKey", func(t *testing.T) {
				testAwaitPresentKey(t, openTestStore(t, impl))
			})
			t.Run("ManyWaitersOneKey", func(t *testing.T) {
				testManyWaitersOneKey(t, openTestStore(t, impl))
			})
			t.Run("NoCrossKeyLeakage", func(t *testing.T) {
				testNoCrossKeyLeakage(t, openTestStore(t, impl))
			})
			t.Run("Rewrite", func(t *testing.T) {
				testRewrite(t, openTestStore(t, impl))
			})
			t.Run("Scenario", func(t *testing.T) {
				testScenario(t, openTestStore(t, impl))
			})
			t.Run("Concurrent", func(t *testing.T) {
				testConcurrent(t, openTestStore(t, impl))
			})
		})
	}
}

func testWriteThenRead(t *testing.T, s store.IStore) {
	ctx := testCtx(t)

	if err := s.Write(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// a read submitted after the write always observes it
	value, found, err := s.Read(ctx, []byte("k"))
	if err != nil || !found || !bytes.Equal(value, []byte("v")) {
		t.Errorf("Expected v, got %s (found=%v, err=%v)", value, found, err)
	}
}

func testReadBeforeWrite(t *testing.T, s store.IStore) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	value, found, err := s.Read(ctx, []byte("missing"))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if found || value != nil {
		t.Errorf("Expected not found, got %s (found=%v)", value, found)
	}
	if n := pendingWaiters(t, s); n != 0 {
		t.Errorf("Read must not register a waiter, have %d", n)
	}
}

func testAwaitResolvesOnWrite(t *testing.T, s store.IStore) {
	ctx := testCtx(t)

	ch := startAwait(ctx, s, "x")
	waitForPending(t, s, 1)
	assertPending(t, ch)

	if err := s.Write(ctx, []byte("x"), []byte("1")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	r := receive(t, ch)
	if r.err != nil || !bytes.Equal(r.value, []byte("1")) {
		t.Errorf("Expected 1, got %s (err=%v)", r.value, r.err)
	}
	if n := pendingWaiters(t, s); n != 0 {
		t.Errorf("Expected no pending waiters after the write, have %d", n)
	}
}

func testAwaitPresentKey(t *testing.T, s store.IStore) {
	ctx := testCtx(t)

	if err := s.WriteSync(ctx, []byte("present"), []byte("here")); err != nil {
		t.Fatalf("WriteSync failed: %v", err)
	}

	value, err := s.AwaitRead(ctx, []byte("present"))
	if err != nil || !bytes.Equal(value, []byte("here")) {
		t.Errorf("Expected here, got %s (err=%v)", value, err)
	}
}

func testManyWaitersOneKey(t *testing.T, s store.IStore) {
	ctx := testCtx(t)

	numWaiters := 10
	chans := make([]<-chan awaitResult, numWaiters)
	for i := range chans {
		chans[i] = startAwait(ctx, s, "shared")
		waitForPending(t, s, i+1)
	}

	if err := s.Write(ctx, []byte("shared"), []byte("value")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	for i, ch := range chans {
		r := receive(t, ch)
		if r.err != nil || !bytes.Equal(r.value, []byte("value")) {
			t.Errorf("Waiter %d: expected value, got %s (err=%v)", i, r.value, r.err)
		}
	}
}

func testNoCrossKeyLeakage(t *testing.T, s store.IStore) {
	ctx := testCtx(t)

	chA := startAwait(ctx, s, "a")
	waitForPending(t, s, 1)

	if err := s.WriteSync(ctx, []byte("b"), []byte("for-b")); err != nil {
		t.Fatalf("WriteSync failed: %v", err)
	}
	assertPending(t, chA)
	if n := pendingWaiters(t, s); n != 1 {
		t.Errorf("Write of b must not touch the waiter of a, have %d waiters", n)
	}

	if err := s.Write(ctx, []byte("a"), []byte("for-a")); err != nil {
		t.Fatal(err)
	}
	if r := receive(t, chA); !bytes.Equal(r.value, []byte("for-a")) {
		t.Errorf("Expected for-a, got %s (err=%v)", r.value, r.err)
	}
}

func testRewrite(t *testing.T, s store.IStore) {
	ctx := testCtx(t)

	ch := startAwait(ctx, s, "k")
	waitForPending(t, s, 1)

	_ = s.Write(ctx, []byte("k"), []byte("first"))
	_ = s.Write(ctx, []byte("k"), []byte("second"))

	// the waiter is resolved by the first write only
	if r := receive(t, ch); !bytes.Equal(r.value, []byte("first")) {
		t.Errorf("Expected first, got %s (err=%v)", r.value, r.err)
	}

	value, found, err := s.Read(ctx, []byte("k"))
	if err != nil || !found || !bytes.Equal(value, []byte("second")) {
		t.Errorf("Expected second, got %s (found=%v, err=%v)", value, found, err)
	}

	// a waiter registered after the first write resolves immediately with the latest value
	value, err = s.AwaitRead(ctx, []byte("k"))
	if err != nil || !bytes.Equal(value, []byte("second")) {
		t.Errorf("Expected second, got %s (err=%v)", value, err)
	}
}

func testScenario(t *testing.T, s store.IStore) {
	ctx := testCtx(t)

	ch := startAwait(ctx, s, "x")
	waitForPending(t, s, 1)

	if err := s.Write(ctx, []byte("x"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if r := receive(t, ch); r.err != nil || string(r.value) != "1" {
		t.Fatalf("await(x): expected 1, got %s (err=%v)", r.value, r.err)
	}

	if v, found, err := s.Read(ctx, []byte("x")); err != nil || !found || string(v) != "1" {
		t.Errorf("read(x): expected Some(1), got %s (found=%v, err=%v)", v, found, err)
	}
	if v, found, err := s.Read(ctx, []byte("y")); err != nil || found {
		t.Errorf("read(y): expected None, got %s (found=%v, err=%v)", v, found, err)
	}
}

func testConcurrent(t *testing.T, s store.IStore) {
	ctx := testCtx(t)

	numKeys := 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*numKeys)

	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("key-%d", i))
		expected := []byte(fmt.Sprintf("value-%d", i))

		wg.Add(2)
		go func() {
			defer wg.Done()
			v, err := s.AwaitRead(ctx, key)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(v, expected) {
				errs <- fmt.Errorf("key %s: expected %s, got %s", key, expected, v)
			}
		}()
		go func() {
			defer wg.Done()
			if err := s.Write(ctx, key, expected); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

// --------------------------------------------------------------------------
// Ordering, failures and lifecycle (scripted engine)
// --------------------------------------------------------------------------

func TestWaitersResolvedInArrivalOrder(t *testing.T) {
	fake := newFakeDB()

	// drive a coordinator directly to observe the delivery order
	st := &storeImpl{
		name: "order",
		reqs: make(chan *internal.Command, 1),
		done: make(chan struct{}),
	}
	c := &coordinator{
		store:   st,
		db:      fake,
		waiters: newWaiterTable(),
		metrics: newStoreMetrics(metrics.NewSet(), "order", st),
	}

	var waiters []*internal.Command
	for i := 0; i < 5; i++ {
		w := internal.NewCommand(internal.CommandTAwaitRead, []byte("k"), nil, nil)
		c.dispatch(w)
		waiters = append(waiters, w)
	}
	if c.waiters.len() != 5 || st.pendingWaiters.Load() != 5 {
		t.Fatalf("Expected 5 parked waiters, got %d", c.waiters.len())
	}

	list := c.waiters.waiters["k"]
	for i, w := range waiters {
		if list[i] != w {
			t.Fatalf("Waiter %d is not at position %d", i, i)
		}
	}

	write := internal.NewCommand(internal.CommandTWriteSync, []byte("k"), []byte("v"), nil)
	c.dispatch(write)

	values := make([][]byte, len(waiters))
	for i, w := range waiters {
		select {
		case r := <-w.Reply:
			if string(r.Value) != "v" {
				t.Errorf("Waiter %d: expected v, got %s", i, r.Value)
			}
			values[i] = r.Value
		default:
			t.Fatalf("Waiter %d was not resolved", i)
		}
	}
	if r := <-write.Reply; r.Err != nil {
		t.Errorf("Write failed: %v", r.Err)
	}
	if c.waiters.len() != 0 || c.waiters.keys() != 0 || st.pendingWaiters.Load() != 0 {
		t.Errorf("Expected an empty waiter table")
	}

	// each waiter owns its copy of the value
	values[0][0] = 'X'
	if string(values[1]) != "v" {
		t.Errorf("Waiters share the value buffer")
	}
}

func TestWriteFailureKeepsWaiters(t *testing.T) {
	fake := newFakeDB()
	errDisk := errors.New("disk full")
	var failing atomic.Bool
	failing.Store(true)
	fake.onPut = func([]byte) error {
		if failing.Load() {
			return errDisk
		}
		return nil
	}

	s := openFakeStore(t, fake, nil)
	ctx := testCtx(t)

	ch := startAwait(ctx, s, "k")
	waitForPending(t, s, 1)

	err := s.WriteSync(ctx, []byte("k"), []byte("lost"))
	if !errors.Is(err, store.ErrWrite) {
		t.Fatalf("Expected a write error, got %v", err)
	}
	if !errors.Is(err, errDisk) {
		t.Errorf("Write error must wrap the database cause, got %v", err)
	}

	// fire-and-forget writes fail silently
	if err := s.Write(ctx, []byte("k"), []byte("lost too")); err != nil {
		t.Errorf("Write must resolve on submission, got %v", err)
	}

	assertPending(t, ch)
	if n := pendingWaiters(t, s); n != 1 {
		t.Errorf("Failed writes must keep the waiters, have %d", n)
	}

	failing.Store(false)
	if err := s.WriteSync(ctx, []byte("k"), []byte("stored")); err != nil {
		t.Fatalf("WriteSync failed: %v", err)
	}
	if r := receive(t, ch); string(r.value) != "stored" {
		t.Errorf("Expected stored, got %s (err=%v)", r.value, r.err)
	}
}

func TestReadError(t *testing.T) {
	fake := newFakeDB()
	errIO := errors.New("io error")
	fake.onGet = func([]byte) error { return errIO }

	s := openFakeStore(t, fake, nil)
	ctx := testCtx(t)

	if _, _, err := s.Read(ctx, []byte("k")); !errors.Is(err, store.ErrRead) || !errors.Is(err, errIO) {
		t.Errorf("Expected a read error wrapping io error, got %v", err)
	}
	if _, err := s.AwaitRead(ctx, []byte("k")); !errors.Is(err, store.ErrRead) {
		t.Errorf("Expected a read error from AwaitRead, got %v", err)
	}
	if n := pendingWaiters(t, s); n != 0 {
		t.Errorf("A failed AwaitRead must not register a waiter, have %d", n)
	}
}

func TestUnsupportedOperation(t *testing.T) {
	fake := newFakeDB()
	fake.features = db.FeatureGet

	s := openFakeStore(t, fake, nil)

	if err := s.WriteSync(testCtx(t), []byte("k"), []byte("v")); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("Expected unsupported operation, got %v", err)
	}
	if fake.puts.Load() != 0 {
		t.Errorf("Put must not be called on a database without FeaturePut")
	}
}

func TestPanicTerminatesCoordinator(t *testing.T) {
	fake := newFakeDB()
	fake.onPut = func(key []byte) error {
		if string(key) == "boom" {
			panic("corrupted engine")
		}
		return nil
	}

	s := openFakeStore(t, fake, nil)
	ctx := testCtx(t)

	ch := startAwait(ctx, s, "waiting")
	waitForPending(t, s, 1)

	if err := s.WriteSync(ctx, []byte("boom"), []byte("v")); !errors.Is(err, store.ErrInternal) {
		t.Fatalf("Expected an internal error, got %v", err)
	}

	if r := receive(t, ch); !errors.Is(r.err, store.ErrInternal) {
		t.Errorf("Pending waiter must fail with an internal error, got %v", r.err)
	}
	if _, _, err := s.Read(ctx, []byte("k")); !errors.Is(err, store.ErrInternal) {
		t.Errorf("Later submissions must fail with an internal error, got %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close after a panic failed: %v", err)
	}
	if !fake.closed.Load() {
		t.Errorf("The database must be closed after the coordinator terminated")
	}
}

func TestPanicFailsQueuedCommands(t *testing.T) {
	fake := newFakeDB()
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.onPut = func(key []byte) error {
		if string(key) == "boom" {
			close(entered)
			<-release
			panic("corrupted engine")
		}
		return nil
	}

	s := openFakeStore(t, fake, &Options{QueueSize: 10})
	ctx := testCtx(t)

	_ = s.Write(ctx, []byte("boom"), []byte("v"))
	<-entered

	// queued behind the panicking write
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, _, err := s.Read(ctx, []byte("k"))
			results <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 3; i++ {
		select {
		case err := <-results:
			if !errors.Is(err, store.ErrInternal) {
				t.Errorf("Queued command: expected an internal error, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Queued command was never answered")
		}
	}
}

func TestCloseFailsWaitersAndFlushes(t *testing.T) {
	fake := newFakeDB()
	s, err := NewLocalStore(fake.factory, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := testCtx(t)

	ch := startAwait(ctx, s, "never")
	waitForPending(t, s, 1)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if r := receive(t, ch); !errors.Is(r.err, store.ErrSubmission) {
		t.Errorf("Pending waiter must fail with a submission error, got %v", r.err)
	}
	if !fake.flushed.Load() || !fake.closed.Load() {
		t.Errorf("Close must flush and close the database (flushed=%v, closed=%v)", fake.flushed.Load(), fake.closed.Load())
	}

	if err := s.Write(ctx, []byte("k"), []byte("v")); !errors.Is(err, store.ErrSubmission) {
		t.Errorf("Write after Close: expected a submission error, got %v", err)
	}
	if _, err := s.AwaitRead(ctx, []byte("k")); !errors.Is(err, store.ErrSubmission) {
		t.Errorf("AwaitRead after Close: expected a submission error, got %v", err)
	}

	// closing twice is allowed
	if err := s.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestCloseAppliesQueuedWrites(t *testing.T) {
	dir := t.TempDir()
	ctx := testCtx(t)

	s, err := Open(db.ImplPebble, dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	numWrites := 200
	for i := 0; i < numWrites; i++ {
		if err := s.Write(ctx, []byte(fmt.Sprintf("k-%d", i)), []byte(fmt.Sprintf("v-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(db.ImplPebble, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	for i := 0; i < numWrites; i++ {
		v, found, err := reopened.Read(ctx, []byte(fmt.Sprintf("k-%d", i)))
		if err != nil || !found || string(v) != fmt.Sprintf("v-%d", i) {
			t.Fatalf("k-%d: got %s (found=%v, err=%v)", i, v, found, err)
		}
	}
}

func TestAwaitContextCancelled(t *testing.T) {
	fake := newFakeDB()
	set := metrics.NewSet()
	s := openFakeStore(t, fake, &Options{Name: "cancel", Metrics: set})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if _, err := s.AwaitRead(ctx, []byte("k")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}

	// the abandoned waiter is dropped when the next waiter for the key arrives
	ch := startAwait(testCtx(t), s, "k")
	pruned := set.GetOrCreateCounter(`akv_waiters_pruned_total{store="cancel"}`)
	deadline := time.Now().Add(2 * time.Second)
	for pruned.Get() != 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if pruned.Get() != 1 {
		t.Fatalf("Expected 1 pruned waiter, got %d", pruned.Get())
	}
	if n := pendingWaiters(t, s); n != 1 {
		t.Errorf("Expected 1 pending waiter, have %d", n)
	}

	// the coordinator keeps working
	if err := s.WriteSync(testCtx(t), []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if r := receive(t, ch); string(r.value) != "v" {
		t.Errorf("Expected v, got %s (err=%v)", r.value, r.err)
	}
}

func TestBackpressure(t *testing.T) {
	fake := newFakeDB()
	entered := make(chan struct{}, 10)
	release := make(chan struct{})
	fake.onPut = func([]byte) error {
		entered <- struct{}{}
		<-release
		return nil
	}

	s := openFakeStore(t, fake, &Options{QueueSize: 1})
	ctx := testCtx(t)

	// first write is taken by the coordinator and blocks inside Put
	if err := s.Write(ctx, []byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	<-entered

	// second write fills the queue
	if err := s.Write(ctx, []byte("b"), []byte("2")); err != nil {
		t.Fatal(err)
	}

	// third write has to wait for space
	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := s.Write(short, []byte("c"), []byte("3")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected the full queue to block the caller, got %v", err)
	}

	close(release)
	if err := s.WriteSync(ctx, []byte("d"), []byte("4")); err != nil {
		t.Fatalf("WriteSync after release failed: %v", err)
	}
	if fake.puts.Load() != 3 {
		t.Errorf("Expected 3 applied writes (a, b, d), got %d", fake.puts.Load())
	}
}

func TestOpenError(t *testing.T) {
	errLocked := errors.New("locked")
	_, err := NewLocalStore(func() (db.KVDB, error) { return nil, errLocked }, nil)
	if !errors.Is(err, store.ErrOpen) || !errors.Is(err, errLocked) {
		t.Errorf("Expected an open error wrapping the cause, got %v", err)
	}

	if _, err := Open("unknown-engine", t.TempDir(), nil); !errors.Is(err, store.ErrOpen) {
		t.Errorf("Expected an open error for an unknown engine, got %v", err)
	}
}

func TestInfo(t *testing.T) {
	s := openFakeStore(t, newFakeDB(), &Options{Name: "info", QueueSize: 7})
	ctx := testCtx(t)

	_ = startAwait(ctx, s, "a")
	_ = startAwait(ctx, s, "b")
	waitForPending(t, s, 2)

	info, err := s.GetDBInfo(ctx)
	if err != nil {
		t.Fatal(err)
	}
	meta := info.Metadata.(map[string]interface{})

	if meta["store"] != "info" || meta["waited_keys"] != 2 || meta["queue_capacity"] != 7 {
		t.Errorf("Unexpected metadata %v", meta)
	}
	if meta["database"] != "fake" {
		t.Errorf("Database metadata must be passed through, got %v", meta["database"])
	}
}

func TestWriteKeyBufferReuse(t *testing.T) {
	fake := newFakeDB()
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.onPut = func(key []byte) error {
		if string(key) == "block" {
			close(entered)
			<-release
		}
		return nil
	}

	s := openFakeStore(t, fake, nil)
	ctx := testCtx(t)

	chA := startAwait(ctx, s, "key-a")
	waitForPending(t, s, 1)

	// keep the coordinator busy, so the next write stays queued
	if err := s.Write(ctx, []byte("block"), []byte("x")); err != nil {
		t.Fatal(err)
	}
	<-entered

	buf := []byte("key-a")
	if err := s.Write(ctx, buf, []byte("A")); err != nil {
		t.Fatal(err)
	}
	copy(buf, "key-b")
	close(release)

	if r := receive(t, chA); r.err != nil || string(r.value) != "A" {
		t.Errorf("Expected the waiter of key-a to get A, got %q (err=%v)", r.value, r.err)
	}
	if v, ok, err := s.Read(ctx, []byte("key-a")); err != nil || !ok || string(v) != "A" {
		t.Errorf("Expected key-a=A, got %q found=%v err=%v", v, ok, err)
	}
	if _, ok, err := s.Read(ctx, []byte("key-b")); err != nil || ok {
		t.Errorf("key-b was never written, got found=%v err=%v", ok, err)
	}
}

func TestReopenWithSharedMetrics(t *testing.T) {
	set := metrics.NewSet()
	opts := &Options{Name: "reopen", Metrics: set}
	ctx := testCtx(t)

	gauge := func() string {
		var b bytes.Buffer
		set.WritePrometheus(&b)
		for _, line := range strings.Split(b.String(), "\n") {
			if strings.HasPrefix(line, `akv_pending_waiters{store="reopen"}`) {
				return line
			}
		}
		return ""
	}

	first, err := NewLocalStore(newFakeDB().factory, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.WriteSync(ctx, []byte("k"), []byte("v")); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	if line := gauge(); line != "" {
		t.Errorf("Gauge of a closed store is still exported: %s", line)
	}

	second := openFakeStore(t, newFakeDB(), opts)
	_ = startAwait(ctx, second, "never")
	waitForPending(t, second, 1)

	if line := gauge(); line != `akv_pending_waiters{store="reopen"} 1` {
		t.Errorf("Expected the gauge to read the reopened store, got %q", line)
	}

	// counters keep counting across reopens
	var b bytes.Buffer
	set.WritePrometheus(&b)
	if !strings.Contains(b.String(), `akv_commands_total{store="reopen",type="writesync"} 1`) {
		t.Errorf("Counter of the first store is missing:\n%s", b.String())
	}
}
