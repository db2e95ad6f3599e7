package internal

import (
	"fmt"

	"github.com/ValentinKolb/aKV/lib/db"
)

// CommandType defines the possible operations of the coordinator.
type CommandType uint8

const (
	CommandTWrite     CommandType = iota // Insert or update an entry, no reply.
	CommandTWriteSync                    // Insert or update an entry and report the outcome.
	CommandTRead                         // Look up an entry once.
	CommandTAwaitRead                    // Look up an entry, wait for the first write if it is absent.
	CommandTInfo                         // Report database and coordinator metadata.
)

// CommandTypes lists all command types (used for per-type metrics).
var CommandTypes = []CommandType{CommandTWrite, CommandTWriteSync, CommandTRead, CommandTAwaitRead, CommandTInfo}

func (ct CommandType) String() string {
	switch ct {
	case CommandTWrite:
		return "Write"
	case CommandTWriteSync:
		return "WriteSync"
	case CommandTRead:
		return "Read"
	case CommandTAwaitRead:
		return "AwaitRead"
	case CommandTInfo:
		return "Info"
	default:
		return fmt.Sprintf("Unknown(%d)", ct)
	}
}

// ToDBFeature converts a CommandType to the db.Feature it needs.
// This can be used for checking if the database supports a certain operation.
func (ct CommandType) ToDBFeature() (db.Feature, error) {
	switch ct {
	case CommandTWrite, CommandTWriteSync:
		return db.FeaturePut, nil
	case CommandTRead, CommandTAwaitRead:
		return db.FeatureGet, nil
	case CommandTInfo:
		return 0, nil
	default:
		return 0, fmt.Errorf("unknown command type %d", ct)
	}
}

// Result is the single reply to a command.
type Result struct {
	Value []byte
	Found bool
	Info  db.DatabaseInfo
	Err   error
}

// Command is a request to the coordinator. It is not modified after it was submitted.
type Command struct {
	Type  CommandType
	Key   []byte
	Value []byte

	// Reply receives exactly one Result. It must have a capacity of at least 1,
	// the coordinator never blocks on it. nil for CommandTWrite.
	Reply chan Result

	// Done is the caller's ctx.Done(). The coordinator uses it to detect
	// waiters whose caller gave up. nil means never abandoned.
	Done <-chan struct{}
}

// NewCommand creates a command with a buffered reply channel (if the type replies).
// Key and value are copied so the caller can reuse its buffers once the command is queued.
func NewCommand(ct CommandType, key, value []byte, done <-chan struct{}) *Command {
	cmd := &Command{
		Type:  ct,
		Key:   clone(key),
		Value: clone(value),
		Done:  done,
	}
	if ct != CommandTWrite {
		cmd.Reply = make(chan Result, 1)
	}
	return cmd
}

// clone copies b, nil stays nil
func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// Respond delivers the result without blocking. It reports whether the result was delivered.
func (c *Command) Respond(r Result) bool {
	if c.Reply == nil {
		return false
	}
	select {
	case c.Reply <- r:
		return true
	default:
		return false
	}
}

// Abandoned reports whether the caller stopped waiting for the reply.
func (c *Command) Abandoned() bool {
	if c.Done == nil {
		return false
	}
	select {
	case <-c.Done:
		return true
	default:
		return false
	}
}

func (c *Command) String() string {
	return fmt.Sprintf("Command{Type: %s, Key: %q, ValueLen: %d}", c.Type, c.Key, len(c.Value))
}
