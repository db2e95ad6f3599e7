package lstore

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/lib/store/lstore/internal"
)

// coordinator is the single owner of the database handle and the waiter table.
// All of its fields are only touched by the goroutine running run.
type coordinator struct {
	store   *storeImpl
	db      db.KVDB
	waiters *waiterTable
	metrics *storeMetrics
	current *internal.Command // command being dispatched (answered if the coordinator panics)
}

// run processes commands in submission order until the queue is closed.
func (c *coordinator) run() {
	defer close(c.store.done)
	defer c.metrics.unregister()

	defer func() {
		if r := recover(); r != nil {
			c.fail(r)
		}
	}()

	for cmd := range c.store.reqs {
		c.current = cmd
		c.dispatch(cmd)
		c.current = nil
	}

	c.shutdown()
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

func (c *coordinator) dispatch(cmd *internal.Command) {
	start := time.Now()
	defer c.metrics.observe(cmd.Type, start)

	feature, err := cmd.Type.ToDBFeature()
	if err != nil {
		cmd.Respond(internal.Result{Err: store.WrapError(store.RetCInternalError, "invalid command", err)})
		return
	}
	if !c.db.SupportsFeature(feature) {
		log.Warningf("store %s: %s is not supported by the database", c.store.name, cmd.Type)
		cmd.Respond(internal.Result{Err: store.NewError(store.RetCUnsupportedOperation,
			fmt.Sprintf("%s operation is not supported", cmd.Type))})
		return
	}

	switch cmd.Type {
	case internal.CommandTWrite, internal.CommandTWriteSync:
		c.write(cmd)
	case internal.CommandTRead:
		c.read(cmd)
	case internal.CommandTAwaitRead:
		c.awaitRead(cmd)
	case internal.CommandTInfo:
		c.info(cmd)
	}
}

// write applies the put and, on success, resolves all waiters of the key.
// A failed put leaves the waiters pending.
func (c *coordinator) write(cmd *internal.Command) {
	if err := c.db.Put(cmd.Key, cmd.Value); err != nil {
		c.metrics.writeErrors.Inc()
		log.Errorf("store %s: write of key %q failed: %v", c.store.name, cmd.Key, err)
		cmd.Respond(internal.Result{Err: store.WrapError(store.RetCWriteError,
			fmt.Sprintf("write of key %q failed", cmd.Key), err)})
		return
	}

	waiters := c.waiters.take(cmd.Key)
	if len(waiters) > 0 {
		c.store.pendingWaiters.Store(int64(c.waiters.len()))
		for _, w := range waiters {
			value := make([]byte, len(cmd.Value))
			copy(value, cmd.Value)
			if w.Respond(internal.Result{Value: value, Found: true}) {
				c.metrics.resolved.Inc()
			}
		}
		log.Debugf("store %s: write of key %q resolved %d waiter(s)", c.store.name, cmd.Key, len(waiters))
	}

	cmd.Respond(internal.Result{})
}

func (c *coordinator) read(cmd *internal.Command) {
	value, found, err := c.db.Get(cmd.Key)
	if err != nil {
		c.metrics.readErrors.Inc()
		cmd.Respond(internal.Result{Err: store.WrapError(store.RetCReadError,
			fmt.Sprintf("read of key %q failed", cmd.Key), err)})
		return
	}
	cmd.Respond(internal.Result{Value: value, Found: found})
}

// awaitRead answers immediately if the key has a value, otherwise the command
// is parked in the waiter table until the key is written.
func (c *coordinator) awaitRead(cmd *internal.Command) {
	value, found, err := c.db.Get(cmd.Key)
	if err != nil {
		c.metrics.readErrors.Inc()
		cmd.Respond(internal.Result{Err: store.WrapError(store.RetCReadError,
			fmt.Sprintf("read of key %q failed", cmd.Key), err)})
		return
	}
	if found {
		cmd.Respond(internal.Result{Value: value, Found: true})
		return
	}
	if cmd.Abandoned() {
		return
	}

	if pruned := c.waiters.add(cmd.Key, cmd); pruned > 0 {
		c.metrics.pruned.Add(pruned)
	}
	c.store.pendingWaiters.Store(int64(c.waiters.len()))
}

func (c *coordinator) info(cmd *internal.Command) {
	info := c.db.GetInfo()
	info.Metadata = map[string]interface{}{
		"store":           c.store.name,
		"pending_waiters": c.waiters.len(),
		"waited_keys":     c.waiters.keys(),
		"queue_length":    len(c.store.reqs),
		"queue_capacity":  cap(c.store.reqs),
		"database":        info.Metadata,
	}
	cmd.Respond(internal.Result{Info: info})
}

// --------------------------------------------------------------------------
// Termination
// --------------------------------------------------------------------------

// shutdown runs after the queue was closed and drained.
func (c *coordinator) shutdown() {
	log.Infof("store %s: the database is shutting down", c.store.name)

	c.failWaiters(store.NewError(store.RetCSubmissionError, "store closed while waiting for the key"))

	if c.db.SupportsFeature(db.FeatureFlush) {
		if err := c.db.Flush(); err != nil {
			log.Errorf("store %s: flush failed: %v", c.store.name, err)
		}
	}
	if err := c.db.Close(); err != nil {
		log.Errorf("store %s: closing the database failed: %v", c.store.name, err)
		c.store.closeErr = store.WrapError(store.RetCInternalError, "closing the database failed", err)
	}
}

// fail terminates the coordinator after a panic. Every pending and every
// still queued command is answered with an internal error and the database is closed.
func (c *coordinator) fail(r interface{}) {
	err := store.NewError(store.RetCInternalError, fmt.Sprintf("coordinator terminated: %v", r))
	c.store.failure.Store(err)
	log.Errorf("store %s: coordinator panicked: %v\n%s", c.store.name, r, debug.Stack())

	if c.current != nil {
		c.current.Respond(internal.Result{Err: err})
		c.current = nil
	}
	c.failWaiters(err)

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("store %s: closing the database panicked: %v", c.store.name, r)
			}
		}()
		if closeErr := c.db.Close(); closeErr != nil {
			log.Errorf("store %s: closing the database failed: %v", c.store.name, closeErr)
		}
	}()

	// answer everything that is (or will be) queued until the store is closed
	go func(reqs <-chan *internal.Command) {
		for cmd := range reqs {
			cmd.Respond(internal.Result{Err: err})
		}
	}(c.store.reqs)
}

func (c *coordinator) failWaiters(err error) {
	waiters := c.waiters.drain()
	c.store.pendingWaiters.Store(0)
	for _, w := range waiters {
		w.Respond(internal.Result{Err: err})
	}
}
