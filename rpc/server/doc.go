// Package server implements the aKV RPC server: one local store (lstore) per configured
// shard, reachable over a pluggable transport and serializer.
//
// Key Components:
//
//   - IRPCServerAdapter: translates a request message into a store.IStore call and the
//     result back into a response message. NewIStoreServerAdapter handles write,
//     writeSync, read, awaitRead and info.
//
//   - RPCServer: opens the store of every shard (backend and location from the
//     ServerConfig), routes requests by shard ID and serves the VictoriaMetrics metrics of
//     all stores plus process metrics on /metrics if a metrics endpoint is configured.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Backend: db.ImplPebble, Location: "data/100"},
//	    {ShardID: 200, Backend: db.ImplMaple},
//	  },
//	  QueueSize: 100,
//	  Endpoint: "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(config, http.NewHttpServerTransport(), serializer.NewBinarySerializer())
//	go func() {
//	  <-ctx.Done()
//	  _ = s.Shutdown(context.Background())
//	}()
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Timeouts:
//
//	Every request except awaitRead is bounded by TimeoutSecond. An awaitRead waits until
//	the key is written, the client gives up or the server shuts down.
//
// Shutdown:
//
//	Shutdown closes all stores first: queued writes are applied and flushed, waiting awaitRead
//	requests are answered with RetCSubmissionError. Then the transport is stopped.
package server
