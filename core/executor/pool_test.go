package executor_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starkfull/node/core/executor"
	"github.com/starkfull/node/core/executor/fakeexec"
	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
	"github.com/starkfull/node/core/sync"
	"github.com/starkfull/node/core/sync/memstore"
)

func seedBlock(store *memstore.Store, n p2p.BlockNumber, gasPrice uint64, txs []p2p.Transaction, receipts []p2p.Receipt) {
	store.PutBlock(p2p.BlockHeader{Number: n, Hash: felt.FromUint64(uint64(n) + 1), L1GasPriceWei: gasPrice})
	data := make([]sync.TxWithReceipt, len(txs))
	for i := range txs {
		data[i] = sync.TxWithReceipt{Transaction: txs[i], Receipt: receipts[i]}
	}
	store.PutTransactionData(n, data)
}

const (
	gasMismatchesMetric   = "starkfull_reexecute_gas_mismatches_total"
	blocksProcessedMetric = "starkfull_reexecute_blocks_processed_total"
)

// counterValue reads a counter registered on the default prometheus
// registry by its fully-qualified name.
func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

// TestPoolWithinToleranceNoMismatch is property 6's happy path: gas
// within 20% of actual never reports a mismatch.
func TestPoolWithinToleranceNoMismatch(t *testing.T) {
	store := memstore.New()
	tx := p2p.Transaction{Hash: felt.FromUint64(1)}
	seedBlock(store, 0, 1, []p2p.Transaction{tx}, []p2p.Receipt{{TransactionHash: tx.Hash, ActualFee: 1000}})

	exec := &fakeexec.Executor{GasFor: func(p2p.Transaction) uint64 { return 950 }} // within 20% of 1000
	pool := executor.NewPool(store, exec, felt.Zero, nil)

	before := counterValue(t, gasMismatchesMetric)
	if err := pool.Run(context.Background(), 0, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := counterValue(t, gasMismatchesMetric) - before; got != 0 {
		t.Fatalf("gas mismatches = %v, want 0", got)
	}
}

// TestPoolSkipsL1HandlerTransactions: L1-handler transactions carry no
// fee and must never enter the gas cross-check.
func TestPoolSkipsL1HandlerTransactions(t *testing.T) {
	store := memstore.New()
	tx := p2p.Transaction{Hash: felt.FromUint64(1), IsL1Handler: true}
	seedBlock(store, 0, 1, []p2p.Transaction{tx}, []p2p.Receipt{{TransactionHash: tx.Hash, IsL1Handler: true, ActualFee: 0}})

	// A wildly wrong estimate would normally be a mismatch, but the
	// L1-handler skip should make GasFor irrelevant here.
	exec := &fakeexec.Executor{GasFor: func(p2p.Transaction) uint64 { return 999999 }}
	pool := executor.NewPool(store, exec, felt.Zero, nil)

	before := counterValue(t, gasMismatchesMetric)
	if err := pool.Run(context.Background(), 0, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := counterValue(t, gasMismatchesMetric) - before; got != 0 {
		t.Fatalf("gas mismatches = %v, want 0 (L1 handler must be skipped)", got)
	}
}

// TestPoolProcessesEachBlockOnceWithoutRetrying sanity-checks the
// multi-block range path: every block is processed exactly once
// (at-most-once, no retries).
func TestPoolProcessesEachBlockOnceWithoutRetrying(t *testing.T) {
	store := memstore.New()
	for i := p2p.BlockNumber(0); i <= 4; i++ {
		tx := p2p.Transaction{Hash: felt.FromUint64(uint64(i))}
		seedBlock(store, i, 1, []p2p.Transaction{tx}, []p2p.Receipt{{TransactionHash: tx.Hash, ActualFee: 100}})
	}

	exec := &fakeexec.Executor{GasFor: func(p2p.Transaction) uint64 { return 100 }}
	pool := executor.NewPool(store, exec, felt.Zero, nil)

	before := counterValue(t, blocksProcessedMetric)
	if err := pool.Run(context.Background(), 0, 4); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := counterValue(t, blocksProcessedMetric) - before; got != 5 {
		t.Fatalf("blocks processed = %v, want 5", got)
	}
}

func TestPoolRejectsInvertedRange(t *testing.T) {
	store := memstore.New()
	pool := executor.NewPool(store, &fakeexec.Executor{}, felt.Zero, nil)
	if err := pool.Run(context.Background(), 5, 1); err == nil {
		t.Fatal("expected error for last < first")
	}
}
