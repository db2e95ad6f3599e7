package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/serializer"
	"github.com/ValentinKolb/aKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
	closed     atomic.Bool
}

// withTimeout bounds ctx by the configured client timeout (if any)
func (a *rpcClientAdapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.TimeoutSecond <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(a.config.TimeoutSecond)*time.Second)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests.
// Errors of the remote store are returned as *store.Error with the original code,
// a request that could not be delivered fails with RetCSubmissionError and context
// errors are returned unchanged.
// This method also checks if the type of the response is the expected type.
func (a *rpcClientAdapter) invokeRPCRequest(ctx context.Context, req *common.Message) (*common.Message, error) {
	if a.closed.Load() {
		return nil, store.NewError(store.RetCSubmissionError, "client is closed")
	}

	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("RPC client - failed to serialize request: %w", err)
	}

	respBytes, err := a.transport.Send(ctx, a.shardId, reqBytes)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		Logger.Debugf("%s request to shard %d failed: %v", req.MsgType, a.shardId, err)
		return nil, store.WrapError(store.RetCSubmissionError, "lost connection", err)
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC client - failed to deserialize response: %w", err)
	}

	if err := resp.Error(); err != nil {
		return nil, err
	}

	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC client - unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
