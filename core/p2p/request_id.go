package p2p

import "github.com/google/uuid"

// RequestId is an opaque handle into the behaviour's request arena.
// Using an opaque id instead of direct peer<->request pointers avoids
// the cyclic reference a naive design would create (a peer knows its
// requests, a request knows its peer).
type RequestId uuid.UUID

func newRequestId() RequestId { return RequestId(uuid.New()) }

func (id RequestId) String() string { return uuid.UUID(id).String() }
