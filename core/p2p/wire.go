// Package p2p implements the sync-protocol transport: the request/
// streaming-response behaviour, its stream upgrades, and the
// length-delimited frame codec with Fin terminal markers. It is built
// directly on libp2p (github.com/libp2p/go-libp2p).
package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/starkfull/node/core/felt"
)

// Protocol IDs for the five sync request/streaming-response protocols.
const (
	ProtoHeaders      = "/starkfull/sync/headers/1"
	ProtoBodies       = "/starkfull/sync/bodies/1"
	ProtoTransactions = "/starkfull/sync/transactions/1"
	ProtoReceipts     = "/starkfull/sync/receipts/1"
	ProtoEvents       = "/starkfull/sync/events/1"

	// ProtoBlockAnnounce is the advisory gossip topic. It is not a sync
	// protocol and carries no Fin-delimited response stream.
	ProtoBlockAnnounce = "/starkfull/gossip/block-announce/1"
)

// MaxHeadersPerMessage is the wire ceiling: no handler may ever be
// asked, nor may ever emit, more payload groups than this in a single
// response stream. MAX_BLOCKS_COUNT (see core/sync) must never exceed
// it.
const MaxHeadersPerMessage = 2000

// BlockNumber is a dense, monotonic block index. Genesis is 0.
type BlockNumber uint64

// BlockHash is a 251-bit field element identifying a block.
type BlockHash = felt.Felt

// BlockId carries both a block's number and hash, redundantly, for
// client convenience.
type BlockId struct {
	Number BlockNumber
	Hash   BlockHash
}

// BlockNumberOrHash is the tagged union used to express the start of an
// Iteration: either a BlockNumber or a BlockHash, never both.
type BlockNumberOrHash struct {
	byHash bool
	number BlockNumber
	hash   BlockHash
}

// BlockNumberStart builds a BlockNumberOrHash from a dense number.
func BlockNumberStart(n BlockNumber) BlockNumberOrHash {
	return BlockNumberOrHash{number: n}
}

// BlockHashStart builds a BlockNumberOrHash from a block hash.
func BlockHashStart(h BlockHash) BlockNumberOrHash {
	return BlockNumberOrHash{byHash: true, hash: h}
}

// IsHash reports whether the start was given as a hash rather than a
// number.
func (b BlockNumberOrHash) IsHash() bool { return b.byHash }

// Number returns the wrapped number. Valid only if !IsHash().
func (b BlockNumberOrHash) Number() BlockNumber { return b.number }

// Hash returns the wrapped hash. Valid only if IsHash().
func (b BlockNumberOrHash) Hash() BlockHash { return b.hash }

// blockNumberOrHashWire is the on-wire shape of a BlockNumberOrHash:
// exactly one of the two fields is present, matching the byHash tag.
type blockNumberOrHashWire struct {
	Number *BlockNumber `json:"number,omitempty"`
	Hash   *BlockHash   `json:"hash,omitempty"`
}

// MarshalJSON encodes the tagged union explicitly, since byHash/number
// /hash are unexported and would otherwise vanish (round-tripping as
// an empty object) on every peer request/response.
func (b BlockNumberOrHash) MarshalJSON() ([]byte, error) {
	if b.byHash {
		return json.Marshal(blockNumberOrHashWire{Hash: &b.hash})
	}
	return json.Marshal(blockNumberOrHashWire{Number: &b.number})
}

// UnmarshalJSON decodes the tagged union produced by MarshalJSON.
func (b *BlockNumberOrHash) UnmarshalJSON(data []byte) error {
	var wire blockNumberOrHashWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("p2p: decoding block start: %w", err)
	}
	switch {
	case wire.Hash != nil:
		*b = BlockHashStart(*wire.Hash)
	case wire.Number != nil:
		*b = BlockNumberStart(*wire.Number)
	default:
		return fmt.Errorf("p2p: block start carries neither number nor hash")
	}
	return nil
}

// Direction is the walk direction of an Iteration.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Iteration is the four-field descriptor driving the iteration engine:
// visit start, start±step, start±2·step, ... for up to limit entries.
type Iteration struct {
	Start     BlockNumberOrHash
	Direction Direction
	Limit     uint64
	Step      uint64
}

// Validate rejects ill-formed iterations. step = 0 is the only
// structurally invalid value; everything else (including limit = 0)
// is well-formed and handled by the iteration engine itself.
func (it Iteration) Validate() error {
	if it.Step == 0 {
		return fmt.Errorf("p2p: iteration step must be >= 1")
	}
	return nil
}
