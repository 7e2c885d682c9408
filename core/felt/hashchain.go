package felt

// HashFunc combines two field elements into one. In production this is
// the Pedersen hash; that primitive is the cryptography collaborator
// named in the system overview and is injected rather than implemented
// here.
type HashFunc func(a, b Felt) Felt

// HashChain is the accumulator construction used for class hashing:
// each Update folds a new value in with the hash function, and Finalize
// folds in the running count.
//
// A chain from NewHashChain with no updates finalizes to `H(0, 0)`. The
// zero-value HashChain has no hash function and must not be used.
type HashChain struct {
	hash  HashFunc
	acc   Felt
	count uint64
}

// NewHashChain returns an empty chain that will use h to combine
// values.
func NewHashChain(h HashFunc) *HashChain {
	return &HashChain{hash: h}
}

// Update folds value into the running accumulator.
func (c *HashChain) Update(value Felt) {
	c.acc = c.hash(c.acc, value)
	c.count++
}

// Finalize folds the element count into the accumulator and returns the
// resulting Felt. The chain is left usable but should normally not be
// updated again after finalization.
func (c *HashChain) Finalize() Felt {
	return c.hash(c.acc, FromUint64(c.count))
}

// Single computes the hash chain of exactly one value:
// Single(h, v) == H(H(0, v), 1).
func Single(h HashFunc, value Felt) Felt {
	c := NewHashChain(h)
	c.Update(value)
	return c.Finalize()
}
