package p2p

// partKind distinguishes a payload-carrying Part from a Fin-carrying
// one in memory; the frame codec uses its own wire kinds.
type partKind uint8

const (
	partPayload partKind = iota
	partFin
)

// Part is a single frame of a response stream: either a payload of type
// T or a Fin. ID carries the block this frame pertains to; it is nil on
// the terminal Fin of an iteration.
type Part[T any] struct {
	ID      *BlockId
	kind    partKind
	payload T
	fin     Fin
}

// Payload builds a payload-carrying Part, optionally tagged with the
// block it pertains to.
func Payload[T any](id *BlockId, v T) Part[T] {
	return Part[T]{ID: id, kind: partPayload, payload: v}
}

// PayloadValue returns the carried payload and whether this Part
// actually carries one (as opposed to a Fin).
func (p Part[T]) PayloadValue() (T, bool) {
	return p.payload, p.kind == partPayload
}

// FinPart builds a Fin-carrying Part. id is nil for an iteration's
// terminal Fin and carries the block's id for a per-block FinOk that
// closes that block's payload Parts.
func FinPart[T any](id *BlockId, f Fin) Part[T] {
	return Part[T]{ID: id, kind: partFin, fin: f}
}

// FinValue returns the carried Fin and whether this Part actually
// carries one.
func (p Part[T]) FinValue() (Fin, bool) {
	return p.fin, p.kind == partFin
}
