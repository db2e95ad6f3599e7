package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format:
//
//	MsgType (1) | flags (1) | [key] | [value] | [ok (1)] | [code (8)] | [err] | [meta]
//
// Byte fields are encoded as uint32 length + data (big endian). A field is only written
// if its flag is set, so nil and empty byte slices are distinguished.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasKey   byte = 1 << 0
	hasValue byte = 1 << 1
	hasOk    byte = 1 << 2
	hasCode  byte = 1 << 3
	hasErr   byte = 1 << 4
	hasMeta  byte = 1 << 5
)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	result := make([]byte, 2, b.sizeBytes(msg))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags byte = 0

	if msg.Key != nil {
		flags |= hasKey
		result = appendField(result, msg.Key)
	}

	if msg.Value != nil {
		flags |= hasValue
		result = appendField(result, msg.Value)
	}

	if msg.Ok {
		flags |= hasOk
		result = append(result, 1)
	}

	if msg.Code != store.RetCSuccess {
		flags |= hasCode
		result = binary.BigEndian.AppendUint64(result, uint64(msg.Code))
	}

	if msg.Err != "" {
		flags |= hasErr
		result = appendField(result, []byte(msg.Err))
	}

	if msg.Meta != nil {
		flags |= hasMeta
		result = appendField(result, msg.Meta)
	}

	// Set flags byte after knowing which fields are present
	result[1] = flags

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	flags := data[1]
	pos := 2

	var err error

	// Key
	msg.Key = nil
	if flags&hasKey != 0 {
		if msg.Key, pos, err = readField(data, pos, "key"); err != nil {
			return err
		}
	}

	// Value
	msg.Value = nil
	if flags&hasValue != 0 {
		if msg.Value, pos, err = readField(data, pos, "value"); err != nil {
			return err
		}
	}

	// Ok
	msg.Ok = false
	if flags&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}
		msg.Ok = data[pos] != 0
		pos += 1
	}

	// Code
	msg.Code = store.RetCSuccess
	if flags&hasCode != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for code")
		}
		msg.Code = store.RetCode(binary.BigEndian.Uint64(data[pos : pos+8]))
		pos += 8
	}

	// Err
	msg.Err = ""
	if flags&hasErr != 0 {
		var errBytes []byte
		if errBytes, pos, err = readField(data, pos, "error"); err != nil {
			return err
		}
		msg.Err = string(errBytes)
	}

	// Meta
	msg.Meta = nil
	if flags&hasMeta != 0 {
		if msg.Meta, pos, err = readField(data, pos, "meta"); err != nil {
			return err
		}
	}

	if pos != len(data) {
		return fmt.Errorf("%d trailing bytes after message", len(data)-pos)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// appendField appends a length prefixed byte field
func appendField(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	return append(buf, field...)
}

// readField reads a length prefixed byte field at pos and returns a copy (never nil)
// and the position after the field
func readField(data []byte, pos int, name string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s length", name)
	}
	n := int(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 4

	if n < 0 || pos+n > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s data", name)
	}

	field := make([]byte, n)
	copy(field, data[pos:pos+n])
	return field, pos + n, nil
}

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 1 byte for flags
	size := 2

	if msg.Key != nil {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Ok {
		size += 1
	}
	if msg.Code != store.RetCSuccess {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}
