// Package memstore provides an in-memory sync.Reader, standing in for
// the SQLite-backed storage engine that is out of scope for this
// repo, for use in tests and the full-node daemon's demo mode.
package memstore

import (
	"sync"

	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
	syncpkg "github.com/starkfull/node/core/sync"
)

type classEntry struct {
	sierra     bool
	definition []byte
	casm       []byte
}

// Store is a goroutine-safe, in-memory implementation of
// syncpkg.Reader, indexed by block number with a secondary hash index.
type Store struct {
	mu sync.RWMutex

	headers    map[p2p.BlockNumber]p2p.BlockHeader
	hashIndex  map[felt.Felt]p2p.BlockNumber
	signatures map[p2p.BlockNumber]p2p.ConsensusSignature
	diffs      map[p2p.BlockNumber]p2p.StateDiff
	txData     map[p2p.BlockNumber][]syncpkg.TxWithReceipt
	classes    map[felt.Felt]classEntry
}

func New() *Store {
	return &Store{
		headers:    make(map[p2p.BlockNumber]p2p.BlockHeader),
		hashIndex:  make(map[felt.Felt]p2p.BlockNumber),
		signatures: make(map[p2p.BlockNumber]p2p.ConsensusSignature),
		diffs:      make(map[p2p.BlockNumber]p2p.StateDiff),
		txData:     make(map[p2p.BlockNumber][]syncpkg.TxWithReceipt),
		classes:    make(map[felt.Felt]classEntry),
	}
}

// PutBlock registers a block's header (and indexes it by hash).
func (s *Store) PutBlock(h p2p.BlockHeader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers[h.Number] = h
	s.hashIndex[h.Hash] = h.Number
}

func (s *Store) PutSignature(n p2p.BlockNumber, sig p2p.ConsensusSignature) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signatures[n] = sig
}

func (s *Store) PutStateDiff(n p2p.BlockNumber, diff p2p.StateDiff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diffs[n] = diff
}

func (s *Store) PutTransactionData(n p2p.BlockNumber, data []syncpkg.TxWithReceipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txData[n] = data
}

func (s *Store) PutCairoClass(classHash felt.Felt, definition []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[classHash] = classEntry{definition: definition}
}

func (s *Store) PutSierraClass(sierraHash felt.Felt, program, casm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classes[sierraHash] = classEntry{sierra: true, definition: program, casm: casm}
}

func (s *Store) resolve(id syncpkg.BlockRef) (p2p.BlockNumber, bool) {
	if id.IsHash() {
		n, ok := s.hashIndex[id.Hash()]
		return n, ok
	}
	return id.Number(), true
}

func (s *Store) BlockHeader(id syncpkg.BlockRef) (*p2p.BlockHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.resolve(id)
	if !ok {
		return nil, nil
	}
	h, ok := s.headers[n]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Store) BlockId(id syncpkg.BlockRef) (*p2p.BlockId, error) {
	h, err := s.BlockHeader(id)
	if err != nil || h == nil {
		return nil, err
	}
	return &p2p.BlockId{Number: h.Number, Hash: h.Hash}, nil
}

func (s *Store) Signature(id syncpkg.BlockRef) (*p2p.ConsensusSignature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.resolve(id)
	if !ok {
		return nil, nil
	}
	sig, ok := s.signatures[n]
	if !ok {
		return nil, nil
	}
	return &sig, nil
}

func (s *Store) StateUpdate(id syncpkg.BlockRef) (*p2p.StateDiff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.resolve(id)
	if !ok {
		return nil, nil
	}
	d, ok := s.diffs[n]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *Store) TransactionDataForBlock(id syncpkg.BlockRef) ([]syncpkg.TxWithReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.resolve(id)
	if !ok {
		return nil, nil
	}
	data, ok := s.txData[n]
	if !ok {
		return nil, nil
	}
	out := make([]syncpkg.TxWithReceipt, len(data))
	copy(out, data)
	return out, nil
}

func (s *Store) ClassDefinitionAt(block p2p.BlockNumber, classHash felt.Felt) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[classHash]
	if !ok {
		return nil, nil
	}
	return c.definition, nil
}

func (s *Store) CasmDefinition(classHash felt.Felt) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[classHash]
	if !ok || !c.sierra {
		return nil, nil
	}
	return c.casm, nil
}

var _ syncpkg.Reader = (*Store)(nil)
