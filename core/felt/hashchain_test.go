package felt

import "testing"

// additiveHash is a stand-in for the real Pedersen hash, used only to
// exercise the HashChain algebra. It is not cryptographically
// meaningful — the real primitive lives with the cryptography
// collaborator (see package doc).
func additiveHash(a, b Felt) Felt {
	return FromUint64(sumLow64(a) + sumLow64(b)*31 + 1)
}

// sumLow64 extracts a cheap 64-bit projection of a Felt for the fake
// hash above; real Felts in these tests are always small.
func sumLow64(f Felt) uint64 {
	b := f.Bytes()
	var v uint64
	for _, x := range b[24:] {
		v = v<<8 | uint64(x)
	}
	return v
}

func TestHashChainSingleMatchesOneUpdate(t *testing.T) {
	v := FromUint64(7)

	got := Single(additiveHash, v)

	chain := NewHashChain(additiveHash)
	chain.Update(v)
	want := chain.Finalize()

	if !got.Equal(want) {
		t.Fatalf("Single(v) = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestHashChainEmptyFinalizesToHashOfZeroAndZero(t *testing.T) {
	chain := NewHashChain(additiveHash)
	got := chain.Finalize()
	want := additiveHash(Zero, FromUint64(0))
	if !got.Equal(want) {
		t.Fatalf("empty chain finalize = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestHashChainCountsEachUpdate(t *testing.T) {
	chain := NewHashChain(additiveHash)
	for i := uint64(1); i <= 4; i++ {
		chain.Update(FromUint64(i))
	}
	if chain.count != 4 {
		t.Fatalf("count = %d, want 4", chain.count)
	}
}

func TestFromHexRoundTrip(t *testing.T) {
	const s = "0x66bd4335902683054d08a0572747ea78ebd9e531536fb43125424ca9f902084"
	f, err := FromHex(s)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if f.IsZero() {
		t.Fatal("expected non-zero felt")
	}
	if f.Hex() != s {
		t.Fatalf("Hex() = %s, want %s", f.Hex(), s)
	}
}

func TestFromBigEndianRejectsOversizedValue(t *testing.T) {
	oversized := make([]byte, 32)
	for i := range oversized {
		oversized[i] = 0xff
	}
	if _, err := FromBigEndian(oversized); err == nil {
		t.Fatal("expected error for value exceeding 251 bits")
	}
}
