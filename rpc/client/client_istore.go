package client

import (
	"context"

	"github.com/ValentinKolb/aKV/lib/db"
	"github.com/ValentinKolb/aKV/lib/store"
	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/serializer"
	"github.com/ValentinKolb/aKV/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	s := &rpcStore{
		rpcClientAdapter: rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	return s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Write(ctx context.Context, key, value []byte) (err error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	_, err = i.invokeRPCRequest(ctx, common.NewWriteRequest(key, value))
	return err
}

func (i *rpcStore) WriteSync(ctx context.Context, key, value []byte) (err error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	_, err = i.invokeRPCRequest(ctx, common.NewWriteSyncRequest(key, value))
	return err
}

func (i *rpcStore) Read(ctx context.Context, key []byte) (value []byte, loaded bool, err error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	resp, err := i.invokeRPCRequest(ctx, common.NewReadRequest(key))
	if err != nil {
		return nil, false, err
	}
	if resp.Ok && resp.Value == nil {
		// gob and JSON drop empty values
		return []byte{}, true, nil
	}
	return resp.Value, resp.Ok, nil
}

// AwaitRead is not bounded by the client timeout, only by ctx
func (i *rpcStore) AwaitRead(ctx context.Context, key []byte) (value []byte, err error) {
	resp, err := i.invokeRPCRequest(ctx, common.NewAwaitReadRequest(key))
	if err != nil {
		return nil, err
	}
	if resp.Value == nil {
		return []byte{}, nil
	}
	return resp.Value, nil
}

func (i *rpcStore) GetDBInfo(ctx context.Context) (info db.DatabaseInfo, err error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	resp, err := i.invokeRPCRequest(ctx, common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	return common.DecodeInfo(resp)
}

// Close closes the connection of the client, the remote store keeps running
func (i *rpcStore) Close() (err error) {
	if i.closed.Swap(true) {
		return nil
	}
	return i.transport.Close()
}
