package common

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ValentinKolb/aKV/lib/db"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerShard configures one store served by the RPC server
type ServerShard struct {
	// ShardID is the ID of the shard (the path segment clients send requests to)
	ShardID uint64
	// Backend is the database implementation of the shard's store
	Backend db.Implementation
	// Location is the storage location passed to the backend ("" = backend default / in memory)
	Location string
}

// String returns the shard in the same ID=BACKEND[:LOCATION] format ParseShards reads
func (s ServerShard) String() string {
	if s.Location == "" {
		return fmt.Sprintf("%d=%s", s.ShardID, s.Backend)
	}
	return fmt.Sprintf("%d=%s:%s", s.ShardID, s.Backend, s.Location)
}

// ServerConfig holds all configuration parameters for the RPC server.
type ServerConfig struct {
	// Shards served by this server
	Shards []ServerShard

	// QueueSize is the request queue capacity of every store
	QueueSize int

	// DataDir is the parent directory of shards of a persistent backend without a location
	DataDir string

	// TimeoutSecond bounds every request except awaitRead, whose only bound is the client
	TimeoutSecond int64

	// HTTP api settings
	Endpoint        string
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// ParseShards parses a comma separated list of shards in the format ID=BACKEND[:LOCATION],
// e.g. "100=pebble:data/100,200=maple".
func ParseShards(value string) ([]ServerShard, error) {
	var shards []ServerShard
	seen := make(map[uint64]struct{})

	for _, shardConfig := range strings.Split(value, ",") {
		shardConfig = strings.TrimSpace(shardConfig)
		if shardConfig == "" {
			continue
		}

		id, backend, found := strings.Cut(shardConfig, "=")
		if !found {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=BACKEND[:LOCATION])", shardConfig)
		}

		// Parse shard ID
		shardID, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %w", id, err)
		}
		if _, ok := seen[shardID]; ok {
			return nil, fmt.Errorf("duplicate shard ID %d", shardID)
		}
		seen[shardID] = struct{}{}

		// Parse backend and optional location
		name, location, _ := strings.Cut(strings.TrimSpace(backend), ":")
		impl, ok := db.ParseImplementation(name)
		if !ok {
			return nil, fmt.Errorf("invalid backend %q for shard %d", name, shardID)
		}

		shards = append(shards, ServerShard{
			ShardID:  shardID,
			Backend:  impl,
			Location: location,
		})
	}

	if len(shards) == 0 {
		return nil, fmt.Errorf("no shards configured")
	}
	return shards, nil
}

// ShardLocation returns the storage location of a shard. A persistent backend without an
// explicit location is stored in DataDir/<backend>-<id>, maple without a location stays in memory.
func (c *ServerConfig) ShardLocation(shard ServerShard) string {
	if shard.Location != "" || shard.Backend == db.ImplMaple {
		return shard.Location
	}
	dir := c.DataDir
	if dir == "" {
		dir = "data"
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%d", shard.Backend, shard.ShardID))
}

// Validate checks the configuration for values the server cannot run with
func (c *ServerConfig) Validate() error {
	if len(c.Shards) == 0 {
		return fmt.Errorf("no shards configured")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("no endpoint configured")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	} else {
		addField("Metrics Endpoint", "disabled")
	}

	// Store settings
	addSection("Store")
	addField("Queue Size", strconv.Itoa(c.QueueSize))
	addField("Data Directory", c.DataDir)

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		location := c.ShardLocation(shard)
		if location == "" {
			location = "memory"
		}
		addField(strconv.FormatUint(shard.ShardID, 10), fmt.Sprintf("%s at %s", shard.Backend, location))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
