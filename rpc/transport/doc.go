// Package transport defines the interfaces for moving serialized RPC messages between
// aKV clients and servers.
//
// Key Components:
//
//   - IRPCClientTransport: client side, sends a request for a shard and returns the
//     response. Every request carries a context, an awaitRead long poll is cancelled
//     with it.
//
//   - IRPCServerTransport: server side, receives requests and passes them (with a
//     context bound to the client connection) to the registered ServerHandleFunc.
//
// The HTTP implementation lives in the http subpackage.
package transport
