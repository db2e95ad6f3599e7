// Package common provides the data structures shared by the aKV RPC client and server:
// the wire message, configuration structures and the logging setup.
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Requests carry a key
//     and (for writes) a value, responses carry the value, an Ok flag and a store.RetCode
//     plus message if the operation failed. Message.Error rebuilds the *store.Error on
//     the client side. Info responses carry the JSON encoded db.DatabaseInfo in Meta.
//
//   - MessageType: Enumeration of the supported operations (write, writeSync, read,
//     awaitRead, info) and the control messages (success, error).
//
//   - ServerConfig: Shards (ID, backend, location), queue size, endpoints, timeout and
//     log level of an RPC server. ParseShards reads the ID=BACKEND[:LOCATION] list
//     accepted by "akv serve --shards".
//
//   - ClientConfig: Endpoints, timeout and retry behavior of a client.
//
//   - Logger: dragonboat logger.ILogger implementation printing "LEVEL | name | message".
//     InitLoggers installs it and sets the level of the store, db, rpc and transport/rpc loggers.
package common
