package p2p

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// Opened is the shared output of both the inbound and outbound stream
// upgrades: the underlying bidirectional stream plus the protocol name
// that was negotiated. Routing tables are keyed by protocol name, not
// by direction, so both upgrade paths yield this one shape.
type Opened struct {
	Stream   network.Stream
	Protocol protocol.ID
}

// Upgrader negotiates one of a fixed set of named sub-protocols per
// opened substream. It wraps libp2p's own multistream negotiation
// (host.SetStreamHandler / host.NewStream), which cannot itself fail in
// user code — negotiation failure means the substream is never handed
// to us at all.
type Upgrader struct {
	host      host.Host
	protocols []protocol.ID
}

func NewUpgrader(h host.Host, protocols ...string) *Upgrader {
	ids := make([]protocol.ID, len(protocols))
	for i, p := range protocols {
		ids[i] = protocol.ID(p)
	}
	return &Upgrader{host: h, protocols: ids}
}

// InboundHandler is invoked once per accepted substream on any of the
// Upgrader's protocols.
type InboundHandler func(Opened)

// ListenInbound registers fn to be called for every inbound substream
// negotiated on any of u's protocols.
func (u *Upgrader) ListenInbound(fn InboundHandler) {
	for _, id := range u.protocols {
		id := id
		u.host.SetStreamHandler(id, func(s network.Stream) {
			fn(Opened{Stream: s, Protocol: id})
		})
	}
}

// Unregister removes the inbound stream handlers.
func (u *Upgrader) Unregister() {
	for _, id := range u.protocols {
		u.host.RemoveStreamHandler(id)
	}
}

// OpenOutbound opens a new substream to p on the caller's requested
// protocol, which must be one of u's protocols; otherwise it returns an
// error without opening anything.
func (u *Upgrader) OpenOutbound(ctx context.Context, p peer.ID, want string) (Opened, error) {
	id := protocol.ID(want)
	found := false
	for _, candidate := range u.protocols {
		if candidate == id {
			found = true
			break
		}
	}
	if !found {
		return Opened{}, fmt.Errorf("p2p: protocol %q not in upgrader's set", want)
	}
	s, err := u.host.NewStream(ctx, p, id)
	if err != nil {
		return Opened{}, fmt.Errorf("p2p: open stream to %s on %s: %w", p, want, err)
	}
	return Opened{Stream: s, Protocol: protocol.ID(want)}, nil
}
