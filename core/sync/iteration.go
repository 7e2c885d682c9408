// Package sync implements the iteration engine and block-data handlers
// that turn a peer's Iteration request into a bounded, Fin-delimited
// sequence of response frames.
package sync

import (
	"github.com/starkfull/node/core/p2p"
)

// MaxBlocksCount is the implementation ceiling on how many blocks a
// single Iteration may walk, clipped regardless of the caller's
// requested limit. Production default is 100; test builds use a
// smaller ceiling so truncation paths are exercised without huge
// fixtures. It must never exceed p2p.MaxHeadersPerMessage.
var MaxBlocksCount uint64 = 100

func init() {
	if MaxBlocksCount > p2p.MaxHeadersPerMessage {
		panic("sync: MaxBlocksCount exceeds MaxHeadersPerMessage")
	}
}

// BlockHandler appends the response frames for one block to out and
// reports whether the block existed. It is solely responsible for
// delimiting its own output with a closing Fin::ok(); the iteration
// engine never appends a per-block Fin itself.
type BlockHandler[T any] func(tx Reader, n p2p.BlockNumber, out *[]p2p.Part[T]) (bool, error)

// Iterate walks a peer's Iteration request against tx, calling handle
// once per visited block number and returning the accumulated response
// frames.
func Iterate[T any](tx Reader, it p2p.Iteration, handle BlockHandler[T]) ([]p2p.Part[T], error) {
	if err := it.Validate(); err != nil {
		return nil, err
	}

	if it.Limit == 0 {
		return []p2p.Part[T]{p2p.FinPart[T](nil, p2p.FinOk())}, nil
	}

	blockNumber, ok, err := startBlockNumber(tx, it.Start)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []p2p.Part[T]{p2p.FinPart[T](nil, p2p.FinUnknown())}, nil
	}

	limit := it.Limit
	var pendingTerminal *p2p.Fin
	if limit > MaxBlocksCount {
		limit = MaxBlocksCount
		f := p2p.FinTooMuch()
		pendingTerminal = &f
	}

	var responses []p2p.Part[T]

	for i := uint64(0); i < limit; i++ {
		existed, err := handle(tx, blockNumber, &responses)
		if err != nil {
			return nil, err
		}
		if !existed {
			f := p2p.FinUnknown()
			pendingTerminal = &f
			break
		}

		if i < limit-1 {
			next, ok := nextBlockNumber(blockNumber, it.Step, it.Direction)
			if !ok {
				f := p2p.FinUnknown()
				pendingTerminal = &f
				break
			}
			blockNumber = next
		}
	}

	if pendingTerminal != nil {
		responses = append(responses, p2p.FinPart[T](nil, *pendingTerminal))
	}

	return responses, nil
}

func startBlockNumber(tx Reader, start p2p.BlockNumberOrHash) (p2p.BlockNumber, bool, error) {
	if !start.IsHash() {
		return start.Number(), true, nil
	}
	id, err := tx.BlockId(BlockRefHash(start.Hash()))
	if err != nil {
		return 0, false, err
	}
	if id == nil {
		return 0, false, nil
	}
	return id.Number, true, nil
}

// nextBlockNumber computes the next block number in the walk, guarded
// against under/overflow.
func nextBlockNumber(current p2p.BlockNumber, step uint64, dir p2p.Direction) (p2p.BlockNumber, bool) {
	switch dir {
	case p2p.Forward:
		n := uint64(current) + step
		if n < uint64(current) { // overflow
			return 0, false
		}
		return p2p.BlockNumber(n), true
	default: // Backward
		if step > uint64(current) {
			return 0, false
		}
		return p2p.BlockNumber(uint64(current) - step), true
	}
}
