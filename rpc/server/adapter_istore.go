package server

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(ctx context.Context, req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTKVWrite:
		err := s.Write(ctx, req.Key, req.Value)
		return common.NewWriteResponse(err)
	case common.MsgTKVWriteSync:
		err := s.WriteSync(ctx, req.Key, req.Value)
		return common.NewWriteSyncResponse(err)
	case common.MsgTKVRead:
		val, ok, err := s.Read(ctx, req.Key)
		return common.NewReadResponse(val, ok, err)
	case common.MsgTKVAwaitRead:
		val, err := s.AwaitRead(ctx, req.Key)
		return common.NewAwaitReadResponse(val, err)
	case common.MsgTKVInfo:
		info, err := s.GetDBInfo(ctx)
		return common.NewInfoResponse(info, err)
	default:
		return common.NewErrorResponse(
			store.RetCUnsupportedOperation,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
