package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/lib/store/lstore"
	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/serializer"
	"github.com/ValentinKolb/aKV/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"

	// register the default database engines
	_ "github.com/ValentinKolb/aKV/lib/db/engines"
)

var Logger = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates and the adapter that handles requests for the store
type serverShard struct {
	Store   store.IStore
	Adapter IRPCServerAdapter
}

// RPCServer serves one local store per configured shard over a transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	metrics    *metrics.Set

	mu            sync.Mutex
	metricsServer *http.Server
	shutdown      bool
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
		metrics:    metrics.NewSet(),
	}
}

// Serve opens the stores of all shards and starts the transport layer (and the metrics endpoint
// if configured). It blocks until the transport fails or Shutdown is called.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		s.closeShards()
		return err
	}

	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics()
	}

	return s.transport.Listen(s.config)
}

// Shutdown stops the server. All stores are closed first (queued writes are applied, waiting
// awaitRead requests fail with RetCSubmissionError), then the transport waits for running
// requests until ctx is done.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	metricsServer := s.metricsServer
	s.mu.Unlock()

	Logger.Infof("shutting down aKV server")

	err := s.closeShards()

	if tErr := s.transport.Shutdown(ctx); tErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to shut down transport: %w", tErr))
	}

	if metricsServer != nil {
		if mErr := metricsServer.Shutdown(ctx); mErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to shut down metrics endpoint: %w", mErr))
		}
	}

	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// init initializes the loggers, creates a store for every shard and registers the request handler
func (s *RPCServer) init() error {
	if err := common.InitLoggers(s.config.LogLevel); err != nil {
		return err
	}
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", s.config.String())

	for _, shardConfig := range s.config.Shards {
		location := s.config.ShardLocation(shardConfig)

		st, err := lstore.Open(shardConfig.Backend, location, &lstore.Options{
			QueueSize: s.config.QueueSize,
			Name:      fmt.Sprintf("shard-%d", shardConfig.ShardID),
			Metrics:   s.metrics,
		})
		if err != nil {
			return fmt.Errorf("failed to open shard %d (%s at %q): %w", shardConfig.ShardID, shardConfig.Backend, location, err)
		}

		s.mu.Lock()
		if s.shutdown {
			s.mu.Unlock()
			_ = st.Close()
			return fmt.Errorf("server is shutting down")
		}
		s.shards.Store(shardConfig.ShardID, serverShard{
			Store:   st,
			Adapter: NewIStoreServerAdapter(),
		})
		s.mu.Unlock()
		Logger.Infof("created %s store for shard %d", shardConfig.Backend, shardConfig.ShardID)
	}

	Logger.Infof("aKV setup completed successfully")

	s.transport.RegisterHandler(s.handle)
	return nil
}

// handle is the transport.ServerHandleFunc of the server
func (s *RPCServer) handle(ctx context.Context, shardId uint64, req []byte) []byte {
	var respMsg *common.Message
	var msg common.Message

	if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = common.NewErrorResponse(store.RetCSuccess, fmt.Sprintf("shard %d not found", shardId))
	} else if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(store.RetCSuccess, fmt.Sprintf("failed to deserialize request: %s", err))
	} else {
		// awaitRead is only bounded by the client
		if msg.MsgType != common.MsgTKVAwaitRead && s.config.TimeoutSecond > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.TimeoutSecond)*time.Second)
			defer cancel()
		}
		respMsg = shard.Adapter.Handle(ctx, &msg, shard.Store)
	}

	resp, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		Logger.Errorf("failed to serialize response for shard %d: %v", shardId, err)
		resp, _ = s.serializer.Serialize(*common.NewErrorResponse(store.RetCSuccess, fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return resp
}

// closeShards closes the stores of all shards and removes them
func (s *RPCServer) closeShards() error {
	var err error
	s.shards.Range(func(id uint64, shard serverShard) bool {
		if cErr := shard.Store.Close(); cErr != nil {
			Logger.Errorf("failed to close shard %d: %v", id, cErr)
			err = errors.Join(err, fmt.Errorf("shard %d: %w", id, cErr))
		} else {
			Logger.Infof("closed shard %d", id)
		}
		s.shards.Delete(id)
		return true
	})
	return err
}

// serveMetrics serves the store metrics and process metrics in Prometheus format on /metrics
func (s *RPCServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.writeMetrics)

	server := &http.Server{
		Addr:              s.config.MetricsEndpoint,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return
	}
	s.metricsServer = server
	s.mu.Unlock()

	Logger.Infof("Starting metrics endpoint on %s", s.config.MetricsEndpoint)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		Logger.Errorf("metrics endpoint failed: %v", err)
	}
}

func (s *RPCServer) writeMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	s.metrics.WritePrometheus(w)
	metrics.WriteProcessMetrics(w)
}
