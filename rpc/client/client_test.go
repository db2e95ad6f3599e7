package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/serializer"
	"github.com/ValentinKolb/aKV/rpc/server"
	"github.com/ValentinKolb/aKV/rpc/transport/http"
)

// freeEndpoint returns a local address that is currently not in use
func freeEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find a free port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

// startServer runs an aKV server with a maple shard (1) and a pebble shard (2) and
// returns its endpoint
func startServer(t *testing.T) (*server.RPCServer, string) {
	t.Helper()
	endpoint := freeEndpoint(t)

	srv := server.NewRPCServer(common.ServerConfig{
		Shards: []common.ServerShard{
			{ShardID: 1, Backend: db.ImplMaple},
			{ShardID: 2, Backend: db.ImplPebble},
		},
		QueueSize:     16,
		DataDir:       t.TempDir(),
		TimeoutSecond: 5,
		Endpoint:      endpoint,
		LogLevel:      "error",
	}, http.NewHttpServerTransport(), serializer.NewBinarySerializer())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve() }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		if err := <-errCh; err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	})

	// wait until the server answers
	probe := newClient(t, endpoint, 1)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, _, err := probe.Read(context.Background(), []byte("probe")); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Server did not start")
		}
		time.Sleep(20 * time.Millisecond)
	}

	return srv, endpoint
}

func newClient(t *testing.T, endpoint string, shard uint64) store.IStore {
	t.Helper()
	c, err := NewRPCStore(shard, common.ClientConfig{
		Endpoints:     []string{endpoint},
		TimeoutSecond: 5,
		RetryCount:    1,
	}, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRemoteStore(t *testing.T) {
	_, endpoint := startServer(t)

	for _, shard := range []uint64{1, 2} {
		c := newClient(t, endpoint, shard)
		ctx := context.Background()

		if _, ok, err := c.Read(ctx, []byte("y")); err != nil || ok {
			t.Errorf("Shard %d: expected y to be missing, got ok=%v err=%v", shard, ok, err)
		}

		result := make(chan []byte, 1)
		go func() {
			v, err := c.AwaitRead(ctx, []byte("x"))
			if err != nil {
				t.Errorf("Shard %d: await failed: %v", shard, err)
			}
			result <- v
		}()

		time.Sleep(50 * time.Millisecond)
		if err := c.Write(ctx, []byte("x"), []byte("1")); err != nil {
			t.Fatalf("Shard %d: write failed: %v", shard, err)
		}

		select {
		case v := <-result:
			if string(v) != "1" {
				t.Errorf("Shard %d: expected await to return 1, got %q", shard, v)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("Shard %d: await was not resolved", shard)
		}

		if v, ok, err := c.Read(ctx, []byte("x")); err != nil || !ok || string(v) != "1" {
			t.Errorf("Shard %d: expected x=1, got %q ok=%v err=%v", shard, v, ok, err)
		}

		if err := c.WriteSync(ctx, []byte("empty"), []byte{}); err != nil {
			t.Fatalf("Shard %d: write sync failed: %v", shard, err)
		}
		if v, ok, err := c.Read(ctx, []byte("empty")); err != nil || !ok || v == nil || len(v) != 0 {
			t.Errorf("Shard %d: expected an empty value, got %v ok=%v err=%v", shard, v, ok, err)
		}

		info, err := c.GetDBInfo(ctx)
		if err != nil {
			t.Fatalf("Shard %d: info failed: %v", shard, err)
		}
		if shard == 2 && info.DbType != db.ImplPebble {
			t.Errorf("Expected pebble for shard 2, got %s", info.DbType)
		}
	}
}

func TestRemoteConcurrentAwaits(t *testing.T) {
	_, endpoint := startServer(t)
	c := newClient(t, endpoint, 1)

	const waiters = 10
	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.AwaitRead(context.Background(), []byte("shared"))
			if err == nil && string(v) != "go" {
				err = errors.New("unexpected value " + string(v))
			}
			errs <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	if err := c.WriteSync(context.Background(), []byte("shared"), []byte("go")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not all waiters were resolved")
	}
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestRemoteAwaitTimeout(t *testing.T) {
	_, endpoint := startServer(t)
	c := newClient(t, endpoint, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := c.AwaitRead(ctx, []byte("never")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRemoteShutdownReleasesAwait(t *testing.T) {
	srv, endpoint := startServer(t)
	c := newClient(t, endpoint, 1)

	result := make(chan error, 1)
	go func() {
		_, err := c.AwaitRead(context.Background(), []byte("never"))
		result <- err
	}()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, store.ErrSubmission) {
			t.Errorf("Expected a submission error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("await was not released by the shutdown")
	}
}

func TestUnknownShard(t *testing.T) {
	_, endpoint := startServer(t)
	c := newClient(t, endpoint, 42)

	if _, _, err := c.Read(context.Background(), []byte("k")); err == nil {
		t.Errorf("Expected an error for an unknown shard")
	}
}

func TestUnreachableServer(t *testing.T) {
	c := newClient(t, freeEndpoint(t), 1)

	err := c.Write(context.Background(), []byte("k"), []byte("v"))
	if !errors.Is(err, store.ErrSubmission) {
		t.Errorf("Expected a submission error, got %v", err)
	}
}

func TestClosedClient(t *testing.T) {
	c := newClient(t, freeEndpoint(t), 1)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
	if _, err := c.AwaitRead(context.Background(), []byte("k")); !errors.Is(err, store.ErrSubmission) {
		t.Errorf("Expected a submission error after close, got %v", err)
	}
}
