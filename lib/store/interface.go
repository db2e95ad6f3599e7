package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/aKV/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() (db.KVDB, error)

// IStore is the generic interface for interacting with a key–value store.
// Keys and values are opaque byte slices. All methods are safe for concurrent use.
// Errors returned by the store are of type *Error (see RetCode), except context
// errors which are returned unchanged.
type IStore interface {
	// Write inserts or updates a key–value pair.
	// It returns as soon as the write has been accepted by the store, not when it was applied.
	// A write that fails later is logged and does not resolve pending AwaitRead calls for the key.
	// The context only bounds the time spent waiting for the store to accept the write.
	Write(ctx context.Context, key, value []byte) (err error)
	// WriteSync inserts or updates a key–value pair and waits until the write was applied.
	// A nil error means the value is durable (for persistent backends) and visible to every later read.
	WriteSync(ctx context.Context, key, value []byte) (err error)
	// Read returns the value for a key. The boolean return value indicates whether a value for the key was found.
	// Read never waits for a key to appear.
	Read(ctx context.Context, key []byte) (value []byte, loaded bool, err error)
	// AwaitRead returns the value for a key. If the key has no value yet, the call waits until
	// the first successful write of the key. It never reports "not found".
	// The context is the only timeout: when it is done the call returns ctx.Err().
	AwaitRead(ctx context.Context, key []byte) (value []byte, err error)
	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo(ctx context.Context) (info db.DatabaseInfo, err error)
	// Close stops the store. Already accepted writes are applied and the database is flushed and closed.
	// Pending AwaitRead calls fail with RetCSubmissionError. Calling Close more than once is allowed.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The cause (optional).
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("StoreError (code %s): %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
// This allows errors.Is(err, store.ErrSubmission) regardless of the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new store error with the given code and message wrapping cause.
func WrapError(code RetCode, msg string, cause error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  cause,
	}
}

// CodeOf returns the RetCode of err. A nil error is RetCSuccess and an error
// that is not a *Error is reported as RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return RetCInternalError
}

// Templates for errors.Is
var (
	ErrInternal    = NewError(RetCInternalError, "internal error")
	ErrUnsupported = NewError(RetCUnsupportedOperation, "unsupported operation")
	ErrOpen        = NewError(RetCOpenError, "database could not be opened")
	ErrRead        = NewError(RetCReadError, "database read failed")
	ErrWrite       = NewError(RetCWriteError, "database write failed")
	ErrSubmission  = NewError(RetCSubmissionError, "store is not accepting requests")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error, the store must be reopened.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCOpenError                           // 3: The database could not be opened.
	RetCReadError                           // 4: The database failed to read a key.
	RetCWriteError                          // 5: The database failed to write a key.
	RetCSubmissionError                     // 6: The store is closed or terminated (lost connection).
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCOpenError:
		return "OpenError"
	case RetCReadError:
		return "ReadError"
	case RetCWriteError:
		return "WriteError"
	case RetCSubmissionError:
		return "SubmissionError"
	default:
		return fmt.Sprintf("Unknown(%d)", uint64(c))
	}
}
