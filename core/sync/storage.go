package sync

import (
	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
)

// BlockRef selects a block by number or by hash, for the storage
// contract methods that accept either.
type BlockRef struct {
	byHash bool
	number p2p.BlockNumber
	hash   felt.Felt
}

func BlockRefNumber(n p2p.BlockNumber) BlockRef { return BlockRef{number: n} }
func BlockRefHash(h felt.Felt) BlockRef         { return BlockRef{byHash: true, hash: h} }

func (r BlockRef) IsHash() bool            { return r.byHash }
func (r BlockRef) Number() p2p.BlockNumber { return r.number }
func (r BlockRef) Hash() felt.Felt         { return r.hash }

// Reader is the read-only database transaction contract every sync
// handler is built against. Every lookup returns (nil, nil) for
// "unknown block / class" rather than an error — absence is a normal
// outcome here, not a failure.
//
// The concrete SQLite-backed implementation is an external storage
// collaborator out of scope for this repo; core/sync/memstore
// provides an in-memory implementation for tests and the CLI demo mode.
type Reader interface {
	BlockHeader(id BlockRef) (*p2p.BlockHeader, error)
	BlockId(id BlockRef) (*p2p.BlockId, error)
	Signature(id BlockRef) (*p2p.ConsensusSignature, error)
	StateUpdate(id BlockRef) (*p2p.StateDiff, error)
	TransactionDataForBlock(id BlockRef) ([]TxWithReceipt, error)
	ClassDefinitionAt(block p2p.BlockNumber, classHash felt.Felt) ([]byte, error)
	CasmDefinition(classHash felt.Felt) ([]byte, error)
}

// TxWithReceipt pairs a transaction with its receipt, positionally
// matched: one receipt per transaction, same order.
type TxWithReceipt struct {
	Transaction p2p.Transaction
	Receipt     p2p.Receipt
}
