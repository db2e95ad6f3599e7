// Package lstore implements store.IStore with a single coordinator goroutine
// that owns a db.KVDB and serializes every request against it.
//
// Key Features:
//   - Any number of concurrent callers, exactly one goroutine touching the database
//   - AwaitRead: wait for a key to be written instead of getting "not found"
//   - Bounded request queue as the only admission control (backpressure)
//   - Graceful shutdown: queued writes are applied, the database is flushed and closed
//
// Implementation Details:
//
//   - Request Queue: Client handles only build a Command (with an owned copy of the
//     value and a reply channel of capacity 1) and send it on a buffered channel. When the
//     channel is full the caller blocks until there is space or its context is done.
//     The coordinator takes commands in submission order, so a read submitted after a
//     write always observes that write.
//
//   - Waiter Table: an AwaitRead for an absent key is parked in a map from key to the
//     list of waiting commands (in arrival order). The first successful write of the key
//     removes the whole list and answers every waiter with the written value. Failed
//     writes leave the waiters in place. Waiters whose caller gave up are dropped when
//     the next waiter for the same key arrives.
//
//   - Replies: the coordinator never blocks on a reply. A caller that stopped waiting
//     simply never reads its (buffered) reply.
//
//   - Write vs. WriteSync: Write returns once the command is queued. WriteSync also
//     waits for the outcome of the put and reports database errors.
//
//   - Failure: if the database panics, the coordinator recovers, answers the current
//     command, all waiters and everything still queued with RetCInternalError, and closes
//     the database. Every later call fails with RetCInternalError. The store must be reopened.
//
//   - Shutdown: Close closes the queue. The coordinator applies what is already queued,
//     fails the remaining waiters with RetCSubmissionError, flushes and closes the database.
//
// Usage Example:
//
//	import _ "github.com/ValentinKolb/aKV/lib/db/engines"
//
//	s, err := lstore.Open(db.ImplPebble, "data/kv", nil)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	go func() {
//		value, err := s.AwaitRead(ctx, []byte("config"))
//		// value is the first value written to "config"
//	}()
//
//	err = s.Write(ctx, []byte("config"), []byte("v1"))
//
// Metrics:
//
//	Every store registers VictoriaMetrics counters, histograms and gauges (commands,
//	durations, database errors, resolved and pending waiters, queue length) in the
//	metrics.Set passed with Options, labelled with the store name.
package lstore
