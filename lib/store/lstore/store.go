package lstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/lib/store/lstore/internal"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// DefaultQueueSize is the capacity of the request queue if none is configured.
const DefaultQueueSize = 100

// Options configures a local store.
type Options struct {
	QueueSize int          // Capacity of the request queue (<= 0 = DefaultQueueSize)
	Name      string       // Name used in logs and metric labels ("" = database type)
	Metrics   *metrics.Set // Set the store registers its metrics in (nil = private set)
}

type storeImpl struct {
	name string
	reqs chan *internal.Command
	done chan struct{} // closed when the coordinator has terminated

	mu     sync.RWMutex // guards closed and sending on reqs against close(reqs)
	closed bool

	failure        atomic.Pointer[store.Error] // set if the coordinator panicked
	closeErr       error                       // written by the coordinator before done is closed
	pendingWaiters atomic.Int64
}

// Open opens the database impl at location and starts a local store on top of it.
// The engine has to be registered (see lib/db/engines).
func Open(impl db.Implementation, location string, opts *Options) (store.IStore, error) {
	return NewLocalStore(func() (db.KVDB, error) {
		return db.Open(impl, location)
	}, opts)
}

// NewLocalStore creates the database with factory and starts the coordinator goroutine.
// If the database can not be created a *store.Error with RetCOpenError is returned.
func NewLocalStore(factory store.DBFactory, opts *Options) (store.IStore, error) {
	if opts == nil {
		opts = &Options{}
	}

	database, err := factory()
	if err != nil {
		log.Errorf("failed to open database: %v", err)
		return nil, store.WrapError(store.RetCOpenError, "failed to open database", err)
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	name := opts.Name
	if name == "" {
		name = string(database.GetInfo().DbType)
	}
	set := opts.Metrics
	if set == nil {
		set = metrics.NewSet()
	}

	s := &storeImpl{
		name: name,
		reqs: make(chan *internal.Command, queueSize),
		done: make(chan struct{}),
	}

	c := &coordinator{
		store:   s,
		db:      database,
		waiters: newWaiterTable(),
		metrics: newStoreMetrics(set, name, s),
	}
	go c.run()

	log.Infof("store %s: started (queue size %d)", name, queueSize)
	return s, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Write(ctx context.Context, key, value []byte) error {
	return s.submit(ctx, internal.NewCommand(internal.CommandTWrite, key, value, nil))
}

func (s *storeImpl) WriteSync(ctx context.Context, key, value []byte) error {
	cmd := internal.NewCommand(internal.CommandTWriteSync, key, value, nil)
	if err := s.submit(ctx, cmd); err != nil {
		return err
	}
	res, err := s.await(ctx, cmd)
	if err != nil {
		return err
	}
	return res.Err
}

func (s *storeImpl) Read(ctx context.Context, key []byte) ([]byte, bool, error) {
	cmd := internal.NewCommand(internal.CommandTRead, key, nil, nil)
	if err := s.submit(ctx, cmd); err != nil {
		return nil, false, err
	}
	res, err := s.await(ctx, cmd)
	if err != nil {
		return nil, false, err
	}
	if res.Err != nil {
		return nil, false, res.Err
	}
	return res.Value, res.Found, nil
}

func (s *storeImpl) AwaitRead(ctx context.Context, key []byte) ([]byte, error) {
	cmd := internal.NewCommand(internal.CommandTAwaitRead, key, nil, ctx.Done())
	if err := s.submit(ctx, cmd); err != nil {
		return nil, err
	}
	res, err := s.await(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Value, nil
}

func (s *storeImpl) GetDBInfo(ctx context.Context) (db.DatabaseInfo, error) {
	cmd := internal.NewCommand(internal.CommandTInfo, nil, nil, nil)
	if err := s.submit(ctx, cmd); err != nil {
		return db.DatabaseInfo{}, err
	}
	res, err := s.await(ctx, cmd)
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	return res.Info, res.Err
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.reqs)
	}
	s.mu.Unlock()

	<-s.done
	return s.closeErr
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// submit enqueues cmd. It blocks while the queue is full (backpressure) until
// ctx is done.
func (s *storeImpl) submit(ctx context.Context, cmd *internal.Command) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failure.Load(); err != nil {
		return err
	}
	if s.closed {
		return store.NewError(store.RetCSubmissionError, "store is closed")
	}

	select {
	case s.reqs <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await waits for the reply of cmd. The returned error is only set if no
// reply was received (ctx done or coordinator gone).
func (s *storeImpl) await(ctx context.Context, cmd *internal.Command) (internal.Result, error) {
	select {
	case res := <-cmd.Reply:
		return res, nil
	case <-ctx.Done():
		return internal.Result{}, ctx.Err()
	case <-s.done:
		// the reply may have been sent right before the coordinator stopped
		select {
		case res := <-cmd.Reply:
			return res, nil
		default:
		}
		if err := s.failure.Load(); err != nil {
			// still queued commands are answered by the drainer
			select {
			case res := <-cmd.Reply:
				return res, nil
			case <-ctx.Done():
				return internal.Result{}, ctx.Err()
			}
		}
		return internal.Result{}, store.NewError(store.RetCSubmissionError, "store terminated (lost connection)")
	}
}
