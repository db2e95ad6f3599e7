// Package client implements store.IStore against a remote aKV server.
//
// Key Components:
//
//   - NewRPCStore: creates a client for one shard. Every IStore method is sent as a
//     message over the configured transport and serializer.
//
// Errors:
//
//   - Errors of the remote store keep their store.RetCode, so errors.Is(err, store.ErrRead)
//     and store.CodeOf work the same as with a local store.
//   - A request that could not be delivered (server down, connection lost) fails with
//     RetCSubmissionError ("lost connection").
//   - Context errors are returned unchanged.
//
// Timeouts:
//
//	ClientConfig.TimeoutSecond bounds every call except AwaitRead, which waits until the key
//	is written or its context is done. Cancelling the context of an AwaitRead aborts the HTTP
//	request and the server drops the waiter.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	s, _ := client.NewRPCStore(100, config, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//	defer s.Close()
//
//	go func() {
//	  value, err := s.AwaitRead(ctx, []byte("config"))
//	  // ...
//	}()
//	_ = s.WriteSync(ctx, []byte("config"), []byte("v1"))
//
// Thread Safety:
//
//	The client is safe for concurrent use. Close only closes the client, the remote store
//	keeps running.
package client
