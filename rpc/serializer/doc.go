// Package serializer converts common.Message values to bytes and back for the RPC layer.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//     ByName selects an implementation by its flag name (json, gob, binary).
//
//   - binarySerializerImpl: Custom binary format. A flags byte marks which fields are
//     present, byte fields are length prefixed. Keys and values are arbitrary bytes and
//     an empty key is distinct from a missing one.
//
//   - gobSerializerImpl: Go's gob encoding. Empty byte slices are decoded as nil.
//
//   - jsonSerializerImpl: JSON encoding (keys and values base64 encoded), useful for
//     debugging with curl.
//
// Performance Characteristics:
//
//   - Binary: smallest payloads and fastest, recommended for production use.
//   - JSON: moderate, human-readable.
//   - GOB: slowest with the largest payloads for single messages.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use.
//
// Usage:
//
//	serializer := serializer.NewBinarySerializer()
//	data, err := serializer.Serialize(*common.NewAwaitReadRequest([]byte("config")))
//	// ... send data ...
//	var resp common.Message
//	err = serializer.Deserialize(receivedData, &resp)
package serializer
