package sync

import (
	"fmt"

	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
)

// HeaderHandler looks up the header; absent ⇒ false. Otherwise
// appends Header, optionally Signatures, then Fin::ok.
func HeaderHandler(tx Reader, n p2p.BlockNumber, out *[]p2p.Part[p2p.HeaderPayload]) (bool, error) {
	header, err := tx.BlockHeader(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: block header lookup: %w", err)
	}
	if header == nil {
		return false, nil
	}

	id := &p2p.BlockId{Number: header.Number, Hash: header.Hash}
	*out = append(*out, p2p.Payload(id, p2p.HeaderOf(*header)))

	if sig, err := tx.Signature(BlockRefNumber(n)); err != nil {
		return false, fmt.Errorf("sync: signature lookup: %w", err)
	} else if sig != nil {
		*out = append(*out, p2p.Payload(id, p2p.SignaturesOf(p2p.Signatures{
			Block:      *id,
			Signatures: []p2p.ConsensusSignature{*sig},
		})))
	}

	*out = append(*out, p2p.FinPart[p2p.HeaderPayload](id, p2p.FinOk()))
	return true, nil
}

// classDefinition is the resolved, kind-tagged class blob fetched from
// storage before it is shipped as a p2p.Class.
type classDefinition struct {
	sierra        bool
	cairo         []byte
	sierraProgram []byte
	casm          []byte
}

func fetchClassDefinition(tx Reader, block p2p.BlockNumber, classHash felt.Felt) (classDefinition, error) {
	definition, err := tx.ClassDefinitionAt(block, classHash)
	if err != nil {
		return classDefinition{}, fmt.Errorf("sync: class definition lookup: %w", err)
	}
	if definition == nil {
		return classDefinition{}, fmt.Errorf("sync: class definition %s not found at block %d", classHash.Hex(), block)
	}
	casm, err := tx.CasmDefinition(classHash)
	if err != nil {
		return classDefinition{}, fmt.Errorf("sync: casm definition lookup: %w", err)
	}
	if casm != nil {
		return classDefinition{sierra: true, sierraProgram: definition, casm: casm}, nil
	}
	return classDefinition{cairo: definition}, nil
}

// resolveClasses matches each requested ClassId against its stored
// definition kind, building the wire Class list. A kind mismatch is
// fatal and aborts the whole body handler.
func resolveClasses(tx Reader, block p2p.BlockNumber, ids []p2p.ClassId) ([]p2p.Class, error) {
	classes := make([]p2p.Class, 0, len(ids))
	for _, id := range ids {
		def, err := fetchClassDefinition(tx, block, id.ClassHash())
		if err != nil {
			return nil, err
		}
		if def.sierra != id.IsSierra() {
			return nil, fmt.Errorf("sync: class definition type mismatch for %s", id.ClassHash().Hex())
		}
		if def.sierra {
			classes = append(classes, p2p.Class{Id: id, Definition: def.sierraProgram, Casm: def.casm})
		} else {
			classes = append(classes, p2p.Class{Id: id, Definition: def.cairo})
		}
	}
	return classes, nil
}

// classIdsFromDiff collects the ClassIds newly declared in a state
// diff: Cairo classes first, then Sierra.
func classIdsFromDiff(diff *p2p.StateDiff) []p2p.ClassId {
	ids := make([]p2p.ClassId, 0, len(diff.DeclaredCairo)+len(diff.DeclaredSierra))
	for _, h := range diff.DeclaredCairo {
		ids = append(ids, p2p.CairoClassId(h))
	}
	for sierraHash, casmHash := range diff.DeclaredSierra {
		ids = append(ids, p2p.SierraClassId(sierraHash, casmHash))
	}
	return ids
}

// BodyHandler looks up the state update; absent ⇒ false. Otherwise
// appends Diff, then a single Classes frame for the newly declared
// classes, then Fin::ok.
func BodyHandler(tx Reader, n p2p.BlockNumber, out *[]p2p.Part[p2p.BodyPayload]) (bool, error) {
	diff, err := tx.StateUpdate(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: state update lookup: %w", err)
	}
	if diff == nil {
		return false, nil
	}

	blockId, err := tx.BlockId(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: block id lookup: %w", err)
	}
	if blockId == nil {
		return false, nil
	}

	*out = append(*out, p2p.Payload(blockId, p2p.DiffOf(*diff)))

	classIds := classIdsFromDiff(diff)
	classes, err := resolveClasses(tx, n, classIds)
	if err != nil {
		return false, err
	}
	// Domain is hard-coded to 0; semantics for non-zero domain are an
	// open question upstream (see DESIGN.md).
	*out = append(*out, p2p.Payload(blockId, p2p.ClassesOf(p2p.Classes{Domain: 0, Classes: classes})))

	*out = append(*out, p2p.FinPart[p2p.BodyPayload](blockId, p2p.FinOk()))
	return true, nil
}

// TransactionsHandler looks up the block's transactions; absent ⇒
// false. Otherwise appends one Transactions frame, then Fin::ok.
func TransactionsHandler(tx Reader, n p2p.BlockNumber, out *[]p2p.Part[p2p.TransactionsMsg]) (bool, error) {
	blockId, err := tx.BlockId(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: block id lookup: %w", err)
	}
	if blockId == nil {
		return false, nil
	}

	data, err := tx.TransactionDataForBlock(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: transaction data lookup: %w", err)
	}
	if data == nil {
		return false, nil
	}

	items := make([]p2p.Transaction, len(data))
	for i, d := range data {
		items[i] = d.Transaction
	}

	*out = append(*out, p2p.Payload(blockId, p2p.TransactionsMsg{Items: items}))
	*out = append(*out, p2p.FinPart[p2p.TransactionsMsg](blockId, p2p.FinOk()))
	return true, nil
}

// ReceiptsHandler looks up the block's receipts; absent ⇒ false.
// Otherwise appends one Receipts frame, then Fin::ok.
func ReceiptsHandler(tx Reader, n p2p.BlockNumber, out *[]p2p.Part[p2p.ReceiptsMsg]) (bool, error) {
	blockId, err := tx.BlockId(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: block id lookup: %w", err)
	}
	if blockId == nil {
		return false, nil
	}

	data, err := tx.TransactionDataForBlock(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: transaction data lookup: %w", err)
	}
	if data == nil {
		return false, nil
	}

	items := make([]p2p.Receipt, len(data))
	for i, d := range data {
		items[i] = d.Receipt
	}

	*out = append(*out, p2p.Payload(blockId, p2p.ReceiptsMsg{Items: items}))
	*out = append(*out, p2p.FinPart[p2p.ReceiptsMsg](blockId, p2p.FinOk()))
	return true, nil
}

// EventsHandler flattens receipts into (tx_hash, event) pairs,
// preserving per-receipt order.
func EventsHandler(tx Reader, n p2p.BlockNumber, out *[]p2p.Part[p2p.EventsMsg]) (bool, error) {
	blockId, err := tx.BlockId(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: block id lookup: %w", err)
	}
	if blockId == nil {
		return false, nil
	}

	data, err := tx.TransactionDataForBlock(BlockRefNumber(n))
	if err != nil {
		return false, fmt.Errorf("sync: transaction data lookup: %w", err)
	}
	if data == nil {
		return false, nil
	}

	var items []p2p.EventWithTxHash
	for _, d := range data {
		for _, ev := range d.Receipt.Events {
			items = append(items, p2p.EventWithTxHash{
				TransactionHash: d.Receipt.TransactionHash,
				Event:           ev,
			})
		}
	}

	*out = append(*out, p2p.Payload(blockId, p2p.EventsMsg{Items: items}))
	*out = append(*out, p2p.FinPart[p2p.EventsMsg](blockId, p2p.FinOk()))
	return true, nil
}
