package p2p

// FinKind distinguishes the three terminal conditions a response stream
// can end with. Modeled as a dedicated tag (rather than a nullable
// status) so decoders switch on the variant instead of inferring
// end-of-stream from channel closure — the end condition is first-class
// protocol state.
type FinKind uint8

const (
	// finNone marks a Part that carries a payload, not a Fin.
	finNone FinKind = iota
	FinKindOk
	FinKindUnknown
	FinKindTooMuch
)

func (k FinKind) String() string {
	switch k {
	case FinKindOk:
		return "ok"
	case FinKindUnknown:
		return "unknown"
	case FinKindTooMuch:
		return "too_much"
	default:
		return "none"
	}
}

// Fin is a terminal response frame. Exactly one of these ends an
// iteration's response stream; many more of kind Ok may appear
// mid-stream, one per completed block.
type Fin struct {
	Kind FinKind
}

// FinOk reports a block (or, as the final frame, the whole iteration)
// completed successfully.
func FinOk() Fin { return Fin{Kind: FinKindOk} }

// FinUnknown reports the requested block/start does not exist, or the
// iteration walked off the end of the chain.
func FinUnknown() Fin { return Fin{Kind: FinKindUnknown} }

// FinTooMuch reports the request was truncated: the caller asked for
// more blocks than MaxBlocksCount permits.
func FinTooMuch() Fin { return Fin{Kind: FinKindTooMuch} }

// IsTerminal reports whether this Fin kind may end a response stream.
// Ok is not terminal when it appears as a per-block delimiter, but the
// wire representation is identical — "terminal" is a property of
// position, enforced by the iteration engine, not of the Fin value
// itself.
func (f Fin) IsTerminal() bool { return f.Kind != finNone }
