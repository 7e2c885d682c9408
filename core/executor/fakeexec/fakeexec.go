// Package fakeexec provides an in-memory Executor test double, since
// the real VM/blockifier is an external collaborator out of scope for
// this repo.
package fakeexec

import (
	"sync"

	"github.com/starkfull/node/core/executor"
	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
)

// Executor is a programmable fake: GasFor (if set) computes the
// "estimated" gas per transaction hash, defaulting to a fixed value.
// TraceFor similarly stubs trace bodies. Every Trace call is recorded
// so tests can assert coalescing.
type Executor struct {
	GasFor   func(tx p2p.Transaction) uint64
	TraceFor func(tx p2p.Transaction) []byte

	mu         sync.Mutex
	TraceCalls int
}

const defaultGas = 1000

func (e *Executor) Estimate(state executor.ExecutionState, txs []p2p.Transaction, skipValidate bool) ([]executor.Estimate, error) {
	out := make([]executor.Estimate, len(txs))
	for i, tx := range txs {
		gas := uint64(defaultGas)
		if e.GasFor != nil {
			gas = e.GasFor(tx)
		}
		out[i] = executor.Estimate{GasConsumed: gas, OverallFee: gas}
	}
	return out, nil
}

func (e *Executor) Trace(state executor.ExecutionState, blockHash felt.Felt, txs []p2p.Transaction) ([]executor.TraceEntry, error) {
	e.mu.Lock()
	e.TraceCalls++
	e.mu.Unlock()

	out := make([]executor.TraceEntry, len(txs))
	for i, tx := range txs {
		var body []byte
		if e.TraceFor != nil {
			body = e.TraceFor(tx)
		}
		out[i] = executor.TraceEntry{TransactionHash: tx.Hash, Trace: body}
	}
	return out, nil
}
