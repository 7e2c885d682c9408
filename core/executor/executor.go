// Package executor defines the re-execution worker pool and the
// Executor collaborator contract it drives. The VM / blockifier that
// actually executes transactions is an external collaborator and is
// not implemented here — only its contract.
package executor

import (
	"fmt"

	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
)

// ExecutionState binds a re-execution attempt to a historical block:
// the chain id, the header being replayed, and an opaque storage
// transaction handle the Executor uses to read prior state.
type ExecutionState struct {
	ChainId felt.Felt
	Header  p2p.BlockHeader
	Tx      interface{}
}

// Estimate is the per-transaction result of a gas/fee estimation pass.
type Estimate struct {
	GasConsumed uint64
	OverallFee  uint64
}

// TraceEntry pairs a transaction hash with its execution trace. The
// trace body itself is opaque here — its shape belongs to the VM
// collaborator.
type TraceEntry struct {
	TransactionHash felt.Felt
	Trace           []byte
}

// ErrorKind classifies why an Executor call failed.
type ErrorKind int

const (
	// ErrorKindTransaction is a per-transaction execution failure: the
	// VM ran but rejected this specific transaction.
	ErrorKindTransaction ErrorKind = iota
	// ErrorKindInternal is a failure of the executor itself (crashed,
	// lost its backing process, corrupted state).
	ErrorKindInternal
	// ErrorKindCustom is any other collaborator-defined failure.
	ErrorKindCustom
)

// ExecutionError is the typed error taxonomy an Executor call can
// return.
type ExecutionError struct {
	Kind             ErrorKind
	TransactionIndex int // valid only when Kind == ErrorKindTransaction
	Err              error
	ErrorStack       []string
}

func (e *ExecutionError) Error() string {
	switch e.Kind {
	case ErrorKindTransaction:
		return fmt.Sprintf("executor: transaction %d failed: %v", e.TransactionIndex, e.Err)
	case ErrorKindInternal:
		return fmt.Sprintf("executor: internal error: %v", e.Err)
	default:
		return fmt.Sprintf("executor: %v", e.Err)
	}
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor is the collaborator contract for transaction execution.
// Implementations may run the VM in-process, shell out, or delegate
// to a remote service (see remote.go).
type Executor interface {
	// Estimate runs txs against state and returns one Estimate per
	// transaction, in order. skipValidate disables the validation
	// sub-invocation; the re-execution pool passes false, so validation
	// runs as part of every estimate.
	Estimate(state ExecutionState, txs []p2p.Transaction, skipValidate bool) ([]Estimate, error)

	// Trace computes the full execution trace for every transaction in
	// a block. Implementations do not coalesce calls themselves;
	// wrapping one in a TraceCache makes concurrent calls for the same
	// block share one computation.
	Trace(state ExecutionState, blockHash felt.Felt, txs []p2p.Transaction) ([]TraceEntry, error)
}
