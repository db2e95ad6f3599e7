// Package internal defines the requests exchanged between the lstore client
// handles and the coordinator goroutine.
//
// A Command carries the operation, the key, an owned copy of the value and a
// one-shot reply channel with capacity 1. The coordinator answers every command
// that has a reply channel exactly once (AwaitRead possibly much later) and
// never blocks on the send.
//
// This package is intended for internal use by the lstore implementation and should
// not be imported directly by external code.
package internal
