// Package cmd implements the command-line interface for the aKV key-value store.
// It provides a hierarchical command structure with operations for running the
// server and interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - kv: Commands for key-value store operations (write, read, await, info, bench)
//   - serve: Commands for starting and configuring the aKV server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as an environment variable AKV_<FLAG> (e.g. AKV_QUEUE_SIZE=200),
// .env and .env.local in the working directory are loaded on start.
//
// See akv -help for a list of all commands.
package cmd
