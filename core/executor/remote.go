package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
)

// jsonCodecName registers a minimal grpc codec so RemoteExecutor can
// call a remote executor service without protoc-generated stubs — the
// VM/blockifier protocol itself is an external collaborator; this
// client only needs to speak *a* wire format compatible with whatever
// service implements that contract.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                               { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

const (
	estimateMethod = "/starkfull.executor.v1.Executor/Estimate"
	traceMethod    = "/starkfull.executor.v1.Executor/Trace"
)

type estimateRequest struct {
	ChainId      string            `json:"chain_id"`
	Header       p2p.BlockHeader   `json:"header"`
	Transactions []p2p.Transaction `json:"transactions"`
	SkipValidate bool              `json:"skip_validate"`
}

type estimateResponse struct {
	Estimates []Estimate `json:"estimates"`
}

type traceRequest struct {
	ChainId      string            `json:"chain_id"`
	Header       p2p.BlockHeader   `json:"header"`
	BlockHash    string            `json:"block_hash"`
	Transactions []p2p.Transaction `json:"transactions"`
}

type traceResponse struct {
	Entries []TraceEntry `json:"entries"`
}

// RemoteExecutor delegates Estimate/Trace to an out-of-process
// executor service over gRPC, for deployments where the VM runs as a
// separate process or on separate hardware from the sync node.
type RemoteExecutor struct {
	conn *grpc.ClientConn
}

// NewRemoteExecutor dials target and wraps the resulting connection.
// Callers own the connection's lifecycle via Close.
func NewRemoteExecutor(ctx context.Context, target string, opts ...grpc.DialOption) (*RemoteExecutor, error) {
	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("executor: dialing remote executor %s: %w", target, err)
	}
	return &RemoteExecutor{conn: conn}, nil
}

func (r *RemoteExecutor) Close() error { return r.conn.Close() }

func (r *RemoteExecutor) Estimate(state ExecutionState, txs []p2p.Transaction, skipValidate bool) ([]Estimate, error) {
	req := estimateRequest{
		ChainId:      state.ChainId.Hex(),
		Header:       state.Header,
		Transactions: txs,
		SkipValidate: skipValidate,
	}
	var resp estimateResponse
	if err := r.conn.Invoke(context.Background(), estimateMethod, &req, &resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, &ExecutionError{Kind: ErrorKindInternal, Err: err}
	}
	return resp.Estimates, nil
}

func (r *RemoteExecutor) Trace(state ExecutionState, blockHash felt.Felt, txs []p2p.Transaction) ([]TraceEntry, error) {
	req := traceRequest{
		ChainId:      state.ChainId.Hex(),
		Header:       state.Header,
		BlockHash:    blockHash.Hex(),
		Transactions: txs,
	}
	var resp traceResponse
	if err := r.conn.Invoke(context.Background(), traceMethod, &req, &resp, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, &ExecutionError{Kind: ErrorKindInternal, Err: err}
	}
	return resp.Entries, nil
}
