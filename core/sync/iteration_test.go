package sync_test

import (
	"testing"

	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
	"github.com/starkfull/node/core/sync"
	"github.com/starkfull/node/core/sync/memstore"
)

// seedChain populates blocks [0, n] with a trivial deterministic header
// chain, linked by parent hash.
func seedChain(store *memstore.Store, n uint64) {
	var parent felt.Felt
	for i := uint64(0); i <= n; i++ {
		h := p2p.BlockHeader{
			Number:     p2p.BlockNumber(i),
			Hash:       felt.FromUint64(i + 1000),
			ParentHash: parent,
		}
		store.PutBlock(h)
		parent = h.Hash
	}
}

// collectNumbers extracts the block numbers carried by Header payload
// parts, in order, ignoring Fin parts.
func collectNumbers(t *testing.T, parts []p2p.Part[p2p.HeaderPayload]) []uint64 {
	t.Helper()
	var out []uint64
	for _, p := range parts {
		if v, ok := p.PayloadValue(); ok && v.Header != nil {
			out = append(out, uint64(v.Header.Number))
		}
	}
	return out
}

func finsOf(t *testing.T, parts []p2p.Part[p2p.HeaderPayload]) []p2p.FinKind {
	t.Helper()
	var out []p2p.FinKind
	for _, p := range parts {
		if f, ok := p.FinValue(); ok {
			out = append(out, f.Kind)
		}
	}
	return out
}

// TestIterationEmptyRequestLaw is property 3: limit=0 yields exactly
// [Fin::ok()].
func TestIterationEmptyRequestLaw(t *testing.T) {
	store := memstore.New()
	seedChain(store, 10)

	it := p2p.Iteration{Start: p2p.BlockNumberStart(0), Direction: p2p.Forward, Limit: 0, Step: 1}
	parts, err := sync.Iterate(store, it, sync.HeaderHandler)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1", len(parts))
	}
	fin, ok := parts[0].FinValue()
	if !ok || fin.Kind != p2p.FinKindOk {
		t.Fatalf("parts[0] = %+v, want Fin::ok", parts[0])
	}
}

// TestIterationStartNotFound is property 4.
func TestIterationStartNotFound(t *testing.T) {
	store := memstore.New()
	seedChain(store, 10)

	it := p2p.Iteration{Start: p2p.BlockHashStart(felt.FromUint64(999999)), Direction: p2p.Forward, Limit: 3, Step: 1}
	parts, err := sync.Iterate(store, it, sync.HeaderHandler)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("len(parts) = %d, want 1", len(parts))
	}
	fin, ok := parts[0].FinValue()
	if !ok || fin.Kind != p2p.FinKindUnknown {
		t.Fatalf("parts[0] = %+v, want Fin::unknown", parts[0])
	}
}

// TestIterationCeilingEnforcement is property 2.
func TestIterationCeilingEnforcement(t *testing.T) {
	store := memstore.New()
	seedChain(store, 200)

	old := sync.MaxBlocksCount
	sync.MaxBlocksCount = 10
	defer func() { sync.MaxBlocksCount = old }()

	it := p2p.Iteration{Start: p2p.BlockNumberStart(0), Direction: p2p.Forward, Limit: 50, Step: 1}
	parts, err := sync.Iterate(store, it, sync.HeaderHandler)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	numbers := collectNumbers(t, parts)
	if len(numbers) != 10 {
		t.Fatalf("payload count = %d, want 10", len(numbers))
	}

	fins := finsOf(t, parts)
	if fins[len(fins)-1] != p2p.FinKindTooMuch {
		t.Fatalf("terminal fin = %v, want too_much", fins[len(fins)-1])
	}
	// every payload but the truncation's own terminal Fin is Fin::ok
	for _, f := range fins[:len(fins)-1] {
		if f != p2p.FinKindOk {
			t.Fatalf("expected only trailing Fin to be too_much, got %v mid-stream", f)
		}
	}
}

// TestE2E1ForwardWalk walks forward within the limit, never touching the chain tip.
func TestE2E1ForwardWalk(t *testing.T) {
	store := memstore.New()
	seedChain(store, 10)

	it := p2p.Iteration{Start: p2p.BlockNumberStart(5), Direction: p2p.Forward, Limit: 3, Step: 1}
	parts, err := sync.Iterate(store, it, sync.HeaderHandler)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	numbers := collectNumbers(t, parts)
	if want := []uint64{5, 6, 7}; !equalUint64(numbers, want) {
		t.Fatalf("numbers = %v, want %v", numbers, want)
	}
	fins := finsOf(t, parts)
	for _, f := range fins {
		if f != p2p.FinKindOk {
			t.Fatalf("fins = %v, want all ok (full run relies on last block's own Fin::ok)", fins)
		}
	}
}

// TestE2E2RunsOffTheEnd walks forward past the chain tip.
func TestE2E2RunsOffTheEnd(t *testing.T) {
	store := memstore.New()
	seedChain(store, 10)

	it := p2p.Iteration{Start: p2p.BlockNumberStart(9), Direction: p2p.Forward, Limit: 5, Step: 1}
	parts, err := sync.Iterate(store, it, sync.HeaderHandler)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	numbers := collectNumbers(t, parts)
	if want := []uint64{9, 10}; !equalUint64(numbers, want) {
		t.Fatalf("numbers = %v, want %v", numbers, want)
	}
	fins := finsOf(t, parts)
	if fins[len(fins)-1] != p2p.FinKindUnknown {
		t.Fatalf("terminal fin = %v, want unknown", fins[len(fins)-1])
	}
}

// TestE2E3BackwardWalkUnderflows walks backward until the step underflows past genesis.
func TestE2E3BackwardWalkUnderflows(t *testing.T) {
	store := memstore.New()
	seedChain(store, 10)

	old := sync.MaxBlocksCount
	sync.MaxBlocksCount = 10
	defer func() { sync.MaxBlocksCount = old }()

	it := p2p.Iteration{Start: p2p.BlockNumberStart(2), Direction: p2p.Backward, Limit: 10, Step: 1}
	parts, err := sync.Iterate(store, it, sync.HeaderHandler)
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}

	numbers := collectNumbers(t, parts)
	if want := []uint64{2, 1, 0}; !equalUint64(numbers, want) {
		t.Fatalf("numbers = %v, want %v", numbers, want)
	}
	fins := finsOf(t, parts)
	if fins[len(fins)-1] != p2p.FinKindUnknown {
		t.Fatalf("terminal fin = %v, want unknown (4th step underflows)", fins[len(fins)-1])
	}
}

func equalUint64(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
