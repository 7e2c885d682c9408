package p2p

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/libp2p/go-msgio"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/starkfull/node/core/felt"
)

// envelope kinds on the wire. These are the frame codec's tag byte,
// kept separate from partKind/FinKind so the wire encoding is
// independent of in-memory representation choices.
const (
	wireKindPayload  = uint64(0)
	wireKindFinOk    = uint64(1)
	wireKindFinUnknown = uint64(2)
	wireKindFinTooMuch = uint64(3)
)

func finToWireKind(f Fin) (uint64, error) {
	switch f.Kind {
	case FinKindOk:
		return wireKindFinOk, nil
	case FinKindUnknown:
		return wireKindFinUnknown, nil
	case FinKindTooMuch:
		return wireKindFinTooMuch, nil
	default:
		return 0, fmt.Errorf("p2p: fin with no kind cannot be encoded")
	}
}

func wireKindToFin(k uint64) (Fin, error) {
	switch k {
	case wireKindFinOk:
		return FinOk(), nil
	case wireKindFinUnknown:
		return FinUnknown(), nil
	case wireKindFinTooMuch:
		return FinTooMuch(), nil
	default:
		return Fin{}, fmt.Errorf("p2p: unknown fin wire kind %d", k)
	}
}

// FrameWriter streams Parts onto a length-delimited byte stream. Each
// WritePayload or WriteFin call is one msgio message: varint length prefix (from
// go-msgio) wrapping a small protowire-tagged envelope plus a
// JSON-encoded payload body.
//
// Exact payload body serialization (e.g. the binary layout of on-wire
// class definitions) is left to the payload type itself — only the
// envelope (kind, block id, Fin variant) is load-bearing and is fully
// specified here.
type FrameWriter struct {
	w msgio.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: msgio.NewVarintWriter(w)}
}

// WritePayload writes a single payload frame carrying v, optionally
// tagged with the block id it pertains to.
func WritePayload[T any](fw *FrameWriter, id *BlockId, v T) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("p2p: marshal payload: %w", err)
	}
	buf := appendEnvelope(nil, wireKindPayload, id, body)
	return fw.w.WriteMsg(buf)
}

// WriteFin writes a terminal or per-block Fin frame.
func WriteFin(fw *FrameWriter, id *BlockId, f Fin) error {
	kind, err := finToWireKind(f)
	if err != nil {
		return err
	}
	buf := appendEnvelope(nil, kind, id, nil)
	return fw.w.WriteMsg(buf)
}

func (fw *FrameWriter) Close() error { return fw.w.Close() }

func appendEnvelope(buf []byte, kind uint64, id *BlockId, body []byte) []byte {
	buf = protowire.AppendVarint(buf, kind)
	if id == nil {
		buf = protowire.AppendVarint(buf, 0)
	} else {
		buf = protowire.AppendVarint(buf, 1)
		buf = protowire.AppendVarint(buf, uint64(id.Number))
		hashBytes := id.Hash.Bytes()
		buf = protowire.AppendBytes(buf, hashBytes[:])
	}
	if body != nil {
		buf = protowire.AppendBytes(buf, body)
	}
	return buf
}

// DecodedFrame is the parsed form of one wire frame: either a payload
// body (still JSON-encoded — the caller knows which protocol it is
// reading and unmarshals accordingly) or a Fin.
type DecodedFrame struct {
	ID      *BlockId
	IsFin   bool
	Fin     Fin
	Payload []byte
}

// FrameReader reads length-delimited frames off a byte stream.
type FrameReader struct {
	r msgio.Reader
}

func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: msgio.NewVarintReader(r)}
}

// ReadFrame reads and decodes the next frame, or returns io.EOF when
// the peer has closed the stream — itself a valid way to discover the
// response is complete even without an explicit Fin.
func (fr *FrameReader) ReadFrame() (DecodedFrame, error) {
	msg, err := fr.r.ReadMsg()
	if err != nil {
		return DecodedFrame{}, err
	}
	defer fr.r.ReleaseMsg(msg)

	kind, n := protowire.ConsumeVarint(msg)
	if n < 0 {
		return DecodedFrame{}, fmt.Errorf("p2p: malformed frame: bad kind varint")
	}
	msg = msg[n:]

	idPresent, n := protowire.ConsumeVarint(msg)
	if n < 0 {
		return DecodedFrame{}, fmt.Errorf("p2p: malformed frame: bad id-present varint")
	}
	msg = msg[n:]

	var id *BlockId
	if idPresent == 1 {
		number, n := protowire.ConsumeVarint(msg)
		if n < 0 {
			return DecodedFrame{}, fmt.Errorf("p2p: malformed frame: bad block number varint")
		}
		msg = msg[n:]

		hashBytes, n := protowire.ConsumeBytes(msg)
		if n < 0 {
			return DecodedFrame{}, fmt.Errorf("p2p: malformed frame: bad block hash bytes")
		}
		msg = msg[n:]

		hash, err := felt.FromBigEndian(hashBytes)
		if err != nil {
			return DecodedFrame{}, fmt.Errorf("p2p: malformed frame: %w", err)
		}
		id = &BlockId{Number: BlockNumber(number), Hash: hash}
	}

	if kind == wireKindPayload {
		payload, n := protowire.ConsumeBytes(msg)
		if n < 0 {
			return DecodedFrame{}, fmt.Errorf("p2p: malformed frame: bad payload bytes")
		}
		return DecodedFrame{ID: id, Payload: append([]byte(nil), payload...)}, nil
	}

	fin, err := wireKindToFin(kind)
	if err != nil {
		return DecodedFrame{}, err
	}
	return DecodedFrame{ID: id, IsFin: true, Fin: fin}, nil
}
