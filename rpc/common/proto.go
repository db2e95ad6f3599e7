package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Key   []byte `json:"key,omitempty"`   // Used for: Write, WriteSync, Read, AwaitRead
	Value []byte `json:"value,omitempty"` // Used for: Write, WriteSync (request), Read, AwaitRead (response)

	// Response only fields
	Ok   bool          `json:"ok,omitempty"`   // Used for: Read responses
	Code store.RetCode `json:"code,omitempty"` // RetCSuccess if no error, otherwise the store error code
	Err  string        `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Info (response, JSON encoded db.DatabaseInfo)
}

// Error rebuilds the error carried by a response. It returns nil if the message carries no error.
// Store errors keep their code so that errors.Is(err, store.ErrSubmission) works across the wire.
func (m *Message) Error() error {
	if m.Err == "" && m.Code == store.RetCSuccess && m.MsgType != MsgTError {
		return nil
	}
	if m.Code == store.RetCSuccess {
		switch m.Err {
		case context.DeadlineExceeded.Error():
			return context.DeadlineExceeded
		case context.Canceled.Error():
			return context.Canceled
		}
		return fmt.Errorf("rpc: %s", m.Err)
	}
	return store.NewError(m.Code, m.Err)
}

// setError stores err in the message. Store errors keep their code, context errors are
// sent without a code and every other error is reported as an internal error.
func (m *Message) setError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		m.Code = store.RetCSuccess
		if errors.Is(err, context.DeadlineExceeded) {
			m.Err = context.DeadlineExceeded.Error()
		} else {
			m.Err = context.Canceled.Error()
		}
		return
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		m.Code = storeErr.Code
		m.Err = storeErr.Msg
		if storeErr.Err != nil {
			m.Err = fmt.Sprintf("%s: %v", storeErr.Msg, storeErr.Err)
		}
		return
	}
	m.Code = store.RetCInternalError
	m.Err = err.Error()
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewWriteRequest creates a new Write request
func NewWriteRequest(key, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVWrite,
		Key:     key,
		Value:   value,
	}
}

// NewWriteResponse creates a new Write response
func NewWriteResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVWrite,
	}
	msg.setError(err)
	return msg
}

// NewWriteSyncRequest creates a new WriteSync request
func NewWriteSyncRequest(key, value []byte) *Message {
	return &Message{
		MsgType: MsgTKVWriteSync,
		Key:     key,
		Value:   value,
	}
}

// NewWriteSyncResponse creates a new WriteSync response
func NewWriteSyncResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTKVWriteSync,
	}
	msg.setError(err)
	return msg
}

// NewReadRequest creates a new Read request
func NewReadRequest(key []byte) *Message {
	return &Message{
		MsgType: MsgTKVRead,
		Key:     key,
	}
}

// NewReadResponse creates a new Read response
func NewReadResponse(value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVRead,
		Ok:      ok,
		Value:   value,
	}
	msg.setError(err)
	return msg
}

// NewAwaitReadRequest creates a new AwaitRead request
func NewAwaitReadRequest(key []byte) *Message {
	return &Message{
		MsgType: MsgTKVAwaitRead,
		Key:     key,
	}
}

// NewAwaitReadResponse creates a new AwaitRead response
func NewAwaitReadResponse(value []byte, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVAwaitRead,
		Ok:      err == nil,
		Value:   value,
	}
	msg.setError(err)
	return msg
}

// NewInfoRequest creates a new Info request
func NewInfoRequest() *Message {
	return &Message{
		MsgType: MsgTKVInfo,
	}
}

// NewInfoResponse creates a new Info response, the info is transported as JSON in Meta
func NewInfoResponse(info db.DatabaseInfo, err error) *Message {
	msg := &Message{
		MsgType: MsgTKVInfo,
	}
	if err != nil {
		msg.setError(err)
		return msg
	}
	meta, err := json.Marshal(info)
	if err != nil {
		msg.setError(fmt.Errorf("failed to encode database info: %w", err))
		return msg
	}
	msg.Meta = meta
	return msg
}

// DecodeInfo decodes the db.DatabaseInfo of an Info response.
// Metadata is decoded into generic JSON values (maps, float64, strings).
func DecodeInfo(msg *Message) (db.DatabaseInfo, error) {
	var info db.DatabaseInfo
	if len(msg.Meta) == 0 {
		return info, fmt.Errorf("info response carries no metadata")
	}
	if err := json.Unmarshal(msg.Meta, &info); err != nil {
		return info, fmt.Errorf("failed to decode database info: %w", err)
	}
	return info, nil
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    code,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTKVWrite:
		return "write"
	case MsgTKVWriteSync:
		return "writeSync"
	case MsgTKVRead:
		return "read"
	case MsgTKVAwaitRead:
		return "awaitRead"
	case MsgTKVInfo:
		return "info"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "write":
		*t = MsgTKVWrite
	case "writeSync":
		*t = MsgTKVWriteSync
	case "read":
		*t = MsgTKVRead
	case "awaitRead":
		*t = MsgTKVAwaitRead
	case "info":
		*t = MsgTKVInfo
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// IStore operations

	MsgTKVWrite     // Write a key-value pair, resolves when accepted
	MsgTKVWriteSync // Write a key-value pair, resolves when applied
	MsgTKVRead      // Read a value by key
	MsgTKVAwaitRead // Read a value by key, wait until it is written
	MsgTKVInfo      // Database information
)
