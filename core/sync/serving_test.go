package sync_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
	"github.com/starkfull/node/core/sync"
	"github.com/starkfull/node/core/sync/memstore"
)

func TestDispatchForServesAnIterationRequest(t *testing.T) {
	store := memstore.New()
	store.PutBlock(p2p.BlockHeader{Number: 0, Hash: felt.FromUint64(1)})
	store.PutBlock(p2p.BlockHeader{Number: 1, Hash: felt.FromUint64(2)})

	server := sync.NewServer(store, 2, 4, nil)
	defer server.Close()

	dispatch := sync.DispatchFor(server, "headers", sync.HeaderHandler)

	reqBytes, err := json.Marshal(p2p.Iteration{
		Start: p2p.BlockNumberStart(0), Direction: p2p.Forward, Limit: 2, Step: 1,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	var buf bytes.Buffer
	fw := p2p.NewFrameWriter(&buf)

	if err := dispatch(context.Background(), peer.ID(""), p2p.ProtoHeaders, reqBytes, fw); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	fr := p2p.NewFrameReader(&buf)
	var frames []p2p.DecodedFrame
	for {
		f, err := fr.ReadFrame()
		if err != nil {
			break
		}
		frames = append(frames, f)
	}

	// header(0), fin::ok, header(1), fin::ok — no terminal fin since the
	// full run completed.
	if len(frames) != 4 {
		t.Fatalf("len(frames) = %d, want 4", len(frames))
	}
	if frames[0].IsFin || frames[2].IsFin {
		t.Fatal("expected payload frames at positions 0 and 2")
	}
	if !frames[1].IsFin || frames[1].Fin.Kind != p2p.FinKindOk {
		t.Fatalf("frames[1] = %+v, want Fin::ok", frames[1])
	}
	if !frames[3].IsFin || frames[3].Fin.Kind != p2p.FinKindOk {
		t.Fatalf("frames[3] = %+v, want Fin::ok", frames[3])
	}
}

// TestDispatchForHonoursNonZeroStart guards against Iteration.Start
// silently decoding to block 0 regardless of what was requested — a
// BlockNumberOrHash with unexported fields round-trips as an empty
// JSON object unless it carries its own marshaler.
func TestDispatchForHonoursNonZeroStart(t *testing.T) {
	store := memstore.New()
	store.PutBlock(p2p.BlockHeader{Number: 0, Hash: felt.FromUint64(1)})
	store.PutBlock(p2p.BlockHeader{Number: 1, Hash: felt.FromUint64(2)})
	store.PutBlock(p2p.BlockHeader{Number: 2, Hash: felt.FromUint64(3)})

	server := sync.NewServer(store, 2, 4, nil)
	defer server.Close()

	dispatch := sync.DispatchFor(server, "headers", sync.HeaderHandler)

	reqBytes, err := json.Marshal(p2p.Iteration{
		Start: p2p.BlockNumberStart(2), Direction: p2p.Backward, Limit: 1, Step: 1,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	var buf bytes.Buffer
	fw := p2p.NewFrameWriter(&buf)

	if err := dispatch(context.Background(), peer.ID(""), p2p.ProtoHeaders, reqBytes, fw); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	fr := p2p.NewFrameReader(&buf)
	var frames []p2p.DecodedFrame
	for {
		f, err := fr.ReadFrame()
		if err != nil {
			break
		}
		frames = append(frames, f)
	}

	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
	if frames[0].IsFin {
		t.Fatal("expected a payload frame at position 0")
	}
	if frames[0].ID == nil || frames[0].ID.Number != 2 {
		t.Fatalf("frames[0].ID = %+v, want block 2 (start must not decode to block 0)", frames[0].ID)
	}

	var payload p2p.HeaderPayload
	if err := json.Unmarshal(frames[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal header payload: %v", err)
	}
	if payload.Header == nil || payload.Header.Number != 2 {
		t.Fatalf("payload.Header = %+v, want block 2", payload.Header)
	}
	if !frames[1].IsFin || frames[1].Fin.Kind != p2p.FinKindOk {
		t.Fatalf("frames[1] = %+v, want Fin::ok", frames[1])
	}
}
