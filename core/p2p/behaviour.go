package p2p

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-msgio"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// reqState is the outbound request's position in its state machine:
//
//	Pending → Writing → Streaming → Done
//	            │          │
//	            └─fail─────┴──► Failed(reason)
type reqState int

const (
	statePending reqState = iota
	stateWriting
	stateStreaming
	stateDone
	stateFailed
)

// outboundRequest is one entry in the per-peer request arena.
type outboundRequest struct {
	id       RequestId
	peer     peer.ID
	protocol string

	mu    sync.Mutex
	state reqState
	err   error

	respCh chan DecodedFrame
	cancel context.CancelFunc
}

func (r *outboundRequest) setState(s reqState) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *outboundRequest) fail(err error) {
	r.mu.Lock()
	r.state = stateFailed
	r.err = err
	r.mu.Unlock()
}

// Dispatcher handles one inbound request: it reads the already-decoded
// request bytes and streams response frames through fw, finishing with
// exactly one terminal Fin (the iteration engine in core/sync enforces
// that invariant). Returning an error here is treated as an internal
// error; the request is aborted but the peer connection stays open.
type Dispatcher func(ctx context.Context, from peer.ID, protocolID string, request []byte, fw *FrameWriter) error

// Behaviour is the per-peer-connection state machine: it correlates
// requests to response streams, bounds per-peer concurrency, and fans
// inbound requests out to a Dispatcher.
type Behaviour struct {
	upgrader *Upgrader
	log      *logrus.Entry

	perPeerLimit int64

	mu    sync.Mutex
	sems  map[peer.ID]*semaphore.Weighted
	arena map[RequestId]*outboundRequest
}

// NewBehaviour wires a Behaviour on top of an Upgrader. perPeerLimit
// bounds the number of concurrent outbound requests to any one peer;
// requests beyond the limit queue (block) in the Pending state.
func NewBehaviour(u *Upgrader, perPeerLimit int64, log *logrus.Entry) *Behaviour {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Behaviour{
		upgrader:     u,
		log:          log,
		perPeerLimit: perPeerLimit,
		sems:         make(map[peer.ID]*semaphore.Weighted),
		arena:        make(map[RequestId]*outboundRequest),
	}
}

func (b *Behaviour) semaphoreFor(p peer.ID) *semaphore.Weighted {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sems[p]
	if !ok {
		s = semaphore.NewWeighted(b.perPeerLimit)
		b.sems[p] = s
	}
	return s
}

// ListenAndServe registers fn as the handler for every inbound request
// on any protocol the Upgrader negotiates. Each accepted substream is
// served on its own goroutine; fn is expected to offload actual
// blocking work (e.g. database reads) itself — see core/sync/serving.go.
func (b *Behaviour) ListenAndServe(ctx context.Context, fn Dispatcher) {
	b.upgrader.ListenInbound(func(o Opened) {
		go b.serveInbound(ctx, o, fn)
	})
}

func (b *Behaviour) serveInbound(ctx context.Context, o Opened, fn Dispatcher) {
	defer o.Stream.Close()

	reqReader := msgio.NewVarintReader(o.Stream)
	reqBytes, err := reqReader.ReadMsg()
	if err != nil {
		b.log.WithError(err).WithField("protocol", o.Protocol).Warn("reading inbound request")
		_ = o.Stream.Reset()
		return
	}
	defer reqReader.ReleaseMsg(reqBytes)

	fw := NewFrameWriter(o.Stream)
	remote := o.Stream.Conn().RemotePeer()
	if err := fn(ctx, remote, string(o.Protocol), append([]byte(nil), reqBytes...), fw); err != nil {
		b.log.WithError(err).WithFields(logrus.Fields{
			"protocol": o.Protocol,
			"peer":     remote,
		}).Warn("inbound request handler failed")
		_ = o.Stream.Reset()
	}
}

// SendRequest opens (or queues for) a substream to p on protocolID,
// writes payload, and returns a channel of response frames. Per-block
// Fin::ok frames are forwarded like payloads; the channel ends after a
// Fin of kind unknown or too_much, or is closed when the peer closes
// the substream.
//
// The returned cancel func aborts the request: it closes the
// substream and discards in-flight state.
func (b *Behaviour) SendRequest(ctx context.Context, p peer.ID, protocolID string, payload []byte) (<-chan DecodedFrame, func(), error) {
	sem := b.semaphoreFor(p)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, nil, fmt.Errorf("p2p: acquiring per-peer concurrency slot: %w", err)
	}

	reqCtx, cancelCtx := context.WithCancel(ctx)
	req := &outboundRequest{
		id:       newRequestId(),
		peer:     p,
		protocol: protocolID,
		state:    statePending,
		respCh:   make(chan DecodedFrame, 16),
		cancel:   cancelCtx,
	}

	b.mu.Lock()
	b.arena[req.id] = req
	b.mu.Unlock()

	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			cancelCtx()
			sem.Release(1)
			b.mu.Lock()
			delete(b.arena, req.id)
			b.mu.Unlock()
		})
	}

	opened, err := b.upgrader.OpenOutbound(reqCtx, p, protocolID)
	if err != nil {
		req.fail(err)
		cleanup()
		return nil, nil, err
	}
	req.setState(stateWriting)

	writer := msgio.NewVarintWriter(opened.Stream)
	if err := writer.WriteMsg(payload); err != nil {
		req.fail(err)
		_ = opened.Stream.Reset()
		cleanup()
		return nil, nil, fmt.Errorf("p2p: writing request: %w", err)
	}
	req.setState(stateStreaming)

	go b.readResponses(reqCtx, req, opened, cleanup)

	return req.respCh, func() { _ = opened.Stream.Reset(); cleanup() }, nil
}

func (b *Behaviour) readResponses(ctx context.Context, req *outboundRequest, o Opened, cleanup func()) {
	defer close(req.respCh)
	defer cleanup()
	defer o.Stream.Close()

	fr := NewFrameReader(o.Stream)
	seen := false
	for {
		select {
		case <-ctx.Done():
			req.fail(ctx.Err())
			return
		default:
		}

		frame, err := fr.ReadFrame()
		if err != nil {
			// Peer closing the substream after a clean response is
			// indistinguishable from EOF here; treat it as Done rather
			// than Failed unless we've seen nothing at all.
			if !seen {
				req.fail(err)
				return
			}
			req.setState(stateDone)
			return
		}
		seen = true

		select {
		case req.respCh <- frame:
		case <-ctx.Done():
			req.fail(ctx.Err())
			return
		}

		// Fin::ok delimits a block mid-stream; only unknown/too_much
		// terminate the response.
		if frame.IsFin && frame.Fin.Kind != FinKindOk {
			req.setState(stateDone)
			return
		}
	}
}
