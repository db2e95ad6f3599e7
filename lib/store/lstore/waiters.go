package lstore

import (
	"github.com/ValentinKolb/aKV/lib/store/lstore/internal"
)

// waiterTable holds the pending AwaitRead commands per key.
//
// A key is present iff it has at least one waiter and the waiters of a key
// are kept in arrival order. The table is owned by the coordinator goroutine
// and is not safe for concurrent use.
type waiterTable struct {
	waiters map[string][]*internal.Command
	count   int
}

func newWaiterTable() *waiterTable {
	return &waiterTable{
		waiters: make(map[string][]*internal.Command),
	}
}

// add appends cmd to the waiters of key. Waiters of the same key whose caller
// already gave up are dropped on the way, the number of dropped waiters is returned.
func (wt *waiterTable) add(key []byte, cmd *internal.Command) (pruned int) {
	list := wt.waiters[string(key)]

	kept := list[:0]
	for _, w := range list {
		if w.Abandoned() {
			pruned++
			continue
		}
		kept = append(kept, w)
	}
	// release references held by the tail of the reused backing array
	for i := len(kept); i < len(list); i++ {
		list[i] = nil
	}

	wt.waiters[string(key)] = append(kept, cmd)
	wt.count += 1 - pruned
	return pruned
}

// take removes all waiters of key and returns them in arrival order.
func (wt *waiterTable) take(key []byte) []*internal.Command {
	list, ok := wt.waiters[string(key)]
	if !ok {
		return nil
	}
	delete(wt.waiters, string(key))
	wt.count -= len(list)
	return list
}

// drain removes and returns all waiters of all keys.
func (wt *waiterTable) drain() []*internal.Command {
	all := make([]*internal.Command, 0, wt.count)
	for _, list := range wt.waiters {
		all = append(all, list...)
	}
	wt.waiters = make(map[string][]*internal.Command)
	wt.count = 0
	return all
}

// len returns the number of pending waiters over all keys.
func (wt *waiterTable) len() int {
	return wt.count
}

// keys returns the number of keys with at least one waiter.
func (wt *waiterTable) keys() int {
	return len(wt.waiters)
}
