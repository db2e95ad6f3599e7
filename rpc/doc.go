// Package rpc makes aKV stores available over the network.
//
// The package is organized into several subpackages:
//
//   - common: the Message protocol, server and client configuration and the logger setup.
//
//   - transport: network abstractions with an HTTP implementation that passes the
//     request context through, so long polling awaitRead requests end with the client.
//
//   - serializer: Message serialization (Binary, JSON, GOB).
//
//   - client: store.IStore implementation talking to a remote server.
//
//   - server: serves one local store per shard and exposes the store metrics.
package rpc
