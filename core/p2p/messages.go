package p2p

import "github.com/starkfull/node/core/felt"

// BlockHeader is the metadata identifying a block: number, hash,
// parent, timestamp, gas prices and commitments (glossary).
type BlockHeader struct {
	Number           BlockNumber
	Hash             BlockHash
	ParentHash       BlockHash
	Timestamp        uint64
	SequencerAddress felt.Felt
	StateCommitment  felt.Felt
	L1GasPriceWei    uint64
	L1GasPriceFri    uint64
	TransactionCount uint32
	EventCount       uint32
}

// ConsensusSignature is the sequencer's signature over a block header.
type ConsensusSignature struct {
	R felt.Felt
	S felt.Felt
}

// Signatures pairs a block with the signature(s) stored for it.
type Signatures struct {
	Block      BlockId
	Signatures []ConsensusSignature
}

// headerPayloadKind distinguishes the two payload shapes a headers
// response can carry before its Fin.
type headerPayloadKind uint8

const (
	headerPayloadHeader headerPayloadKind = iota
	headerPayloadSignatures
)

// HeaderPayload is the tagged union of what a single Part in a headers
// response stream can carry: either the header itself or its stored
// signatures.
type HeaderPayload struct {
	kind       headerPayloadKind
	Header     *BlockHeader
	Signatures *Signatures
}

func HeaderOf(h BlockHeader) HeaderPayload {
	return HeaderPayload{kind: headerPayloadHeader, Header: &h}
}

func SignaturesOf(s Signatures) HeaderPayload {
	return HeaderPayload{kind: headerPayloadSignatures, Signatures: &s}
}

// StorageDiff is one contract's storage writes in a block.
type StorageDiff struct {
	Contract felt.Felt
	Writes   map[felt.Felt]felt.Felt
}

// StateDiff is the set of storage writes, declared classes, deployed
// contracts and nonce updates produced by a block.
type StateDiff struct {
	StorageDiffs      []StorageDiff
	DeclaredCairo     []felt.Felt            // class hashes
	DeclaredSierra    map[felt.Felt]felt.Felt // sierra hash -> casm hash
	DeployedContracts map[felt.Felt]felt.Felt // address -> class hash
	Nonces            map[felt.Felt]felt.Felt // address -> new nonce
}

// ClassId identifies a class definition, either the legacy Cairo form
// or the modern Sierra+CASM form.
type ClassId struct {
	sierra    bool
	classHash felt.Felt // valid when !sierra
	sierraH   felt.Felt // valid when sierra
	casmH     felt.Felt // valid when sierra
}

func CairoClassId(classHash felt.Felt) ClassId {
	return ClassId{classHash: classHash}
}

func SierraClassId(sierraHash, casmHash felt.Felt) ClassId {
	return ClassId{sierra: true, sierraH: sierraHash, casmH: casmHash}
}

func (c ClassId) IsSierra() bool { return c.sierra }

// ClassHash projects the class's identifying hash: its own hash for
// Cairo, or the Sierra hash for Sierra.
func (c ClassId) ClassHash() felt.Felt {
	if c.sierra {
		return c.sierraH
	}
	return c.classHash
}

func (c ClassId) CasmHash() felt.Felt { return c.casmH }

// Class is a resolved class definition ready to be shipped on the
// wire. The two byte blobs are opaque here — their exact binary shape
// belongs to the class-compilation collaborator, not this package.
type Class struct {
	Id         ClassId
	Definition []byte // Cairo: the single JSON blob. Sierra: the program blob.
	Casm       []byte // only set for Sierra
}

// Classes is the domain-tagged list of newly declared classes for a
// block. Domain is currently always 0 — the protocol semantics for
// non-zero domain are an open question upstream (see DESIGN.md).
type Classes struct {
	Domain  uint32
	Classes []Class
}

// bodyPayloadKind distinguishes the two payload shapes a bodies
// response can carry before its Fin.
type bodyPayloadKind uint8

const (
	bodyPayloadDiff bodyPayloadKind = iota
	bodyPayloadClasses
)

// BodyPayload is the tagged union for the bodies protocol.
type BodyPayload struct {
	kind    bodyPayloadKind
	Diff    *StateDiff
	Classes *Classes
}

func DiffOf(d StateDiff) BodyPayload {
	return BodyPayload{kind: bodyPayloadDiff, Diff: &d}
}

func ClassesOf(c Classes) BodyPayload {
	return BodyPayload{kind: bodyPayloadClasses, Classes: &c}
}

// Transaction is a minimal stand-in for the rich on-chain transaction
// type; full transaction encoding is delegated to an external
// serialization collaborator.
type Transaction struct {
	Hash        felt.Felt
	IsL1Handler bool
	Raw         []byte
}

// TransactionsMsg is the single payload carried by a transactions
// response before its Fin.
type TransactionsMsg struct {
	Items []Transaction
}

// Event is a single emitted event.
type Event struct {
	FromAddress felt.Felt
	Keys        []felt.Felt
	Data        []felt.Felt
}

// Receipt pairs a transaction hash with its execution outcome.
type Receipt struct {
	TransactionHash felt.Felt
	ActualFee       uint64
	IsL1Handler     bool
	Events          []Event
}

// ReceiptsMsg is the single payload carried by a receipts response
// before its Fin.
type ReceiptsMsg struct {
	Items []Receipt
}

// EventWithTxHash pairs a flattened event with the hash of the
// transaction that emitted it, preserving per-receipt order.
type EventWithTxHash struct {
	TransactionHash felt.Felt
	Event           Event
}

// EventsMsg is the single payload carried by an events response before
// its Fin.
type EventsMsg struct {
	Items []EventWithTxHash
}
