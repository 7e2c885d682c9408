// Package felt implements the 251-bit field element used to identify
// blocks, classes and hashes throughout the node.
//
// The actual field arithmetic (multiplication, inversion, Pedersen
// hashing) belongs to the cryptography collaborator and is deliberately
// not implemented here — Felt is a carrier type: construction,
// comparison, and big-endian byte conversion only.
package felt

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// Bits is the number of significant bits in a Felt. The top 5 bits of
// the underlying 256-bit word are always zero.
const Bits = 251

// Felt is a 251-bit unsigned field element.
type Felt struct {
	w uint256.Int
}

// Zero is the additive identity.
var Zero = Felt{}

// FromUint64 builds a Felt from a small unsigned integer, e.g. an
// iteration count or a block number being folded into a hash chain.
func FromUint64(v uint64) Felt {
	var f Felt
	f.w.SetUint64(v)
	return f
}

// FromBigEndian constructs a Felt from a big-endian byte slice. The
// slice must be at most 32 bytes; it is an error (not a panic) if the
// value does not fit in Bits significant bits.
func FromBigEndian(b []byte) (Felt, error) {
	if len(b) > 32 {
		return Felt{}, fmt.Errorf("felt: %d bytes exceeds 32-byte word", len(b))
	}
	var f Felt
	f.w.SetBytes(b)
	if f.w.BitLen() > Bits {
		return Felt{}, fmt.Errorf("felt: value exceeds %d significant bits", Bits)
	}
	return f, nil
}

// FromHex parses a "0x"-prefixed hexadecimal string.
func FromHex(s string) (Felt, error) {
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return Felt{}, fmt.Errorf("felt: invalid hex %q: %w", s, err)
	}
	return FromBigEndian(b)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return s
}

// Bytes returns the big-endian 32-byte representation.
func (f Felt) Bytes() [32]byte {
	return f.w.Bytes32()
}

// Hex returns a "0x"-prefixed lowercase hex string with no leading zero
// padding beyond one digit.
func (f Felt) Hex() string {
	return f.w.Hex()
}

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool { return f.w.IsZero() }

// Equal reports whether f and other carry the same value.
func (f Felt) Equal(other Felt) bool { return f.w.Eq(&other.w) }

// Cmp returns -1, 0 or 1 comparing f to other.
func (f Felt) Cmp(other Felt) int { return f.w.Cmp(&other.w) }

func (f Felt) String() string { return f.Hex() }

// MarshalJSON encodes f as a quoted "0x"-prefixed hex string, the same
// idiom go-ethereum's common.Hash uses for on-wire hashes: the
// underlying word is never exposed, only its canonical text form.
func (f Felt) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Hex())
}

// UnmarshalJSON parses a quoted "0x"-prefixed hex string produced by
// MarshalJSON.
func (f *Felt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("felt: decoding JSON string: %w", err)
	}
	parsed, err := FromHex(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// MarshalText encodes f as its "0x"-prefixed hex string, so a Felt can
// key a map in a JSON-encoded payload (e.g. StateDiff).
func (f Felt) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

// UnmarshalText parses the hex form produced by MarshalText.
func (f *Felt) UnmarshalText(text []byte) error {
	parsed, err := FromHex(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
