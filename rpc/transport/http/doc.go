// Package http implements the RPC transports over HTTP.
//
// Every request is a POST to /{shardId} with the serialized message as body, the
// response body is the serialized reply. Errors of the store travel inside the reply,
// non 200 status codes are only used for malformed requests.
//
// Key Components:
//
//   - httpServerTransport: an http.Server routing requests to the registered handler.
//     The request context is passed on, so a handler waiting for a key (awaitRead)
//     is released when the client disconnects. Shutdown stops the server gracefully.
//
//   - httpClientTransport: sends requests round-robin over the configured endpoints and
//     retries failed requests on the next endpoint. The client has no timeout of its own,
//     every request is bounded by its context.
//
// Thread Safety:
//
//	The client transport is safe for concurrent use. It uses an atomic counter for the
//	round-robin endpoint selection.
package http
