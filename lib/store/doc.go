// Package store provides the interface of an asynchronous key-value store
// on top of a synchronous db.KVDB, together with its error model.
//
// The one capability a store adds over the raw database is AwaitRead: a caller can
// ask for a key and have the call suspend until the key's value becomes available,
// instead of only seeing "not found".
//
// Key Components:
//
//   - IStore Interface: Write, WriteSync, Read, AwaitRead, GetDBInfo and Close over
//     byte keys and values. Every blocking method takes a context.Context.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     (RetCode) and descriptive messages. *Error unwraps to the database cause and
//     matches the exported templates (ErrRead, ErrSubmission, ...) with errors.Is
//     by code, so callers can tell a failed read from a closed store.
//
//   - DBFactory: A function type that abstracts the creation of the underlying db.KVDB.
//
// Implementations:
//
//   - Local Store (lstore): a single coordinator goroutine owns the database and
//     serializes all requests. Available in "github.com/ValentinKolb/aKV/lib/store/lstore".
//
//   - RPC Client (rpc/client): implements IStore against a remote aKV server.
package store
