package executor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
	syncpkg "github.com/starkfull/node/core/sync"
)

// workQueueCapacity is the bounded channel size connecting the
// producer to the worker pool.
const workQueueCapacity = 10

// toleranceFraction is the maximum allowed relative deviation between
// estimated gas and the gas implied by the recorded actual fee before
// a mismatch is logged.
const toleranceFraction = 0.2

var (
	blocksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "starkfull",
		Subsystem: "reexecute",
		Name:      "blocks_processed_total",
		Help:      "Blocks successfully re-executed.",
	})
	blocksSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "starkfull",
		Subsystem: "reexecute",
		Name:      "blocks_skipped_total",
		Help:      "Blocks skipped after a conversion or execution failure.",
	})
	gasMismatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "starkfull",
		Subsystem: "reexecute",
		Name:      "gas_mismatches_total",
		Help:      "Transactions whose estimated gas deviated from recorded fee beyond tolerance.",
	})
)

func init() {
	prometheus.MustRegister(blocksProcessed, blocksSkipped, gasMismatches)
}

// Work is one block's worth of re-execution input, produced from
// storage and consumed by a worker.
type Work struct {
	Header       p2p.BlockHeader
	Transactions []p2p.Transaction
	Receipts     []p2p.Receipt
}

// Pool re-executes a contiguous block range with fixed parallelism,
// cross-checking recorded fees against freshly estimated gas. It is
// at-most-once, non-retrying: a failure skips the block and logs,
// never stopping the pool.
type Pool struct {
	tx       syncpkg.Reader
	exec     Executor
	chainId  felt.Felt
	log      *logrus.Entry
	workers  int
	progress *bitset.BitSet
	progMu   sync.Mutex
}

// NewPool builds a pool with N = runtime.NumCPU() workers.
func NewPool(tx syncpkg.Reader, exec Executor, chainId felt.Felt, log *logrus.Entry) *Pool {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pool{
		tx:      tx,
		exec:    exec,
		chainId: chainId,
		log:     log,
		workers: runtime.NumCPU(),
	}
}

// Run re-executes [firstBlock, lastBlock] inclusive, blocking until
// every block has been produced and every worker has drained the
// queue.
func (p *Pool) Run(ctx context.Context, firstBlock, lastBlock p2p.BlockNumber) error {
	if lastBlock < firstBlock {
		return fmt.Errorf("executor: last block %d precedes first block %d", lastBlock, firstBlock)
	}
	total := uint(lastBlock-firstBlock) + 1
	p.progress = bitset.New(total)

	work := make(chan indexedWork, workQueueCapacity)

	var wg sync.WaitGroup
	wg.Add(p.workers)
	for i := 0; i < p.workers; i++ {
		go func() {
			defer wg.Done()
			p.runWorker(ctx, work)
		}()
	}

	p.produce(ctx, firstBlock, lastBlock, work)
	wg.Wait()

	p.log.WithFields(logrus.Fields{
		"first": firstBlock,
		"last":  lastBlock,
		"done":  p.progress.Count(),
		"total": total,
	}).Info("re-execution pool finished")
	return nil
}

type indexedWork struct {
	offset uint
	block  p2p.BlockNumber
	work   Work
}

// produce walks the requested range in ascending order, loading each
// block's transactions and receipts from storage, and sends them to
// the worker pool. Conversion failures (a block that cannot be
// assembled at all) are logged and skipped, never stopping the walk.
func (p *Pool) produce(ctx context.Context, first, last p2p.BlockNumber, work chan<- indexedWork) {
	defer close(work)

	for n, offset := first, uint(0); n <= last; n, offset = n+1, offset+1 {
		header, err := p.tx.BlockHeader(syncpkg.BlockRefNumber(n))
		if err != nil || header == nil {
			p.log.WithError(err).WithField("block", n).Warn("re-execute: loading header, skipping block")
			blocksSkipped.Inc()
			continue
		}

		data, err := p.tx.TransactionDataForBlock(syncpkg.BlockRefNumber(n))
		if err != nil || data == nil {
			p.log.WithError(err).WithField("block", n).Warn("re-execute: loading transactions, skipping block")
			blocksSkipped.Inc()
			continue
		}

		txs := make([]p2p.Transaction, len(data))
		receipts := make([]p2p.Receipt, len(data))
		for i, d := range data {
			txs[i] = d.Transaction
			receipts[i] = d.Receipt
		}

		item := indexedWork{offset: offset, block: n, work: Work{Header: *header, Transactions: txs, Receipts: receipts}}
		select {
		case work <- item:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) runWorker(ctx context.Context, work <-chan indexedWork) {
	for item := range work {
		p.reexecuteOne(ctx, item)
	}
}

// reexecuteOne re-executes a single block: estimates gas for every
// transaction and cross-checks it against the recorded fee.
// L1-handler transactions carry no fee and are skipped from the
// cross-check.
func (p *Pool) reexecuteOne(ctx context.Context, item indexedWork) {
	state := ExecutionState{ChainId: p.chainId, Header: item.work.Header}

	estimates, err := p.exec.Estimate(state, item.work.Transactions, false)
	if err != nil {
		p.log.WithError(err).WithField("block", item.block).Warn("re-execute: estimate failed, skipping block")
		blocksSkipped.Inc()
		return
	}
	if len(estimates) != len(item.work.Receipts) {
		p.log.WithField("block", item.block).Warn("re-execute: estimate/receipt count mismatch, skipping block")
		blocksSkipped.Inc()
		return
	}

	for i, receipt := range item.work.Receipts {
		if receipt.IsL1Handler || receipt.ActualFee == 0 {
			continue
		}
		gasPrice := item.work.Header.L1GasPriceWei
		if gasPrice == 0 {
			gasPrice = 1
		}
		actualGas := receipt.ActualFee / gasPrice
		estimatedGas := estimates[i].GasConsumed

		diff := estimatedGas - actualGas
		if estimatedGas < actualGas {
			diff = actualGas - estimatedGas
		}
		if float64(diff) > float64(actualGas)*toleranceFraction {
			p.log.WithFields(logrus.Fields{
				"block":         item.block,
				"tx":            receipt.TransactionHash.Hex(),
				"estimated_gas": estimatedGas,
				"actual_gas":    actualGas,
			}).Warn("re-execute: gas estimate outside tolerance")
			gasMismatches.Inc()
		}
	}

	p.progMu.Lock()
	p.progress.Set(item.offset)
	p.progMu.Unlock()
	blocksProcessed.Inc()
}
