package indexer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/datasources"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
)

// DefaultPollingInterval is the default polling interval for the indexer polling worker
const DefaultPollingInterval = 15 * time.Second

// ErrChainReorganized is returned when a fetched block does not extend the indexed chain.
// Reverting indexed data is not supported, the operator has to resolve it.
var ErrChainReorganized = errors.Wrap(errs.Unsupported, "chain reorganization detected")

// IndexerWorker is a long-running module worker started by the run command.
type IndexerWorker interface {
	Run(ctx context.Context) error
}

type Processor interface {
	Name() string

	// Process indexes blocks in the given order. Blocks are continuous and ascending.
	Process(ctx context.Context, blocks []*types.Block) error

	// CurrentBlock returns the latest indexed block. Before anything is indexed it returns the block
	// below the first one to index, with an empty hash.
	CurrentBlock(ctx context.Context) (types.BlockIdentifier, error)

	Shutdown(ctx context.Context) error
}

// Indexer polls blocks from a datasource and feeds them to a processor.
type Indexer struct {
	Processor       Processor
	Datasource      datasources.Datasource[*types.Block]
	PollingInterval time.Duration

	currentBlock types.BlockIdentifier

	running  atomic.Bool
	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

var _ IndexerWorker = (*Indexer)(nil)

func New(processor Processor, datasource datasources.Datasource[*types.Block]) *Indexer {
	return &Indexer{
		Processor:       processor,
		Datasource:      datasource,
		PollingInterval: DefaultPollingInterval,

		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (i *Indexer) Shutdown() error {
	return i.ShutdownWithContext(context.Background())
}

func (i *Indexer) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return i.ShutdownWithContext(ctx)
}

func (i *Indexer) ShutdownWithContext(ctx context.Context) (err error) {
	i.quitOnce.Do(func() {
		close(i.quit)
		if !i.running.Load() {
			// API-only mode never starts the worker
			return
		}
		select {
		case <-i.done:
		case <-time.After(180 * time.Second):
			err = errors.Wrap(errs.Timeout, "indexer shutdown timeout")
		case <-ctx.Done():
			err = errors.Wrap(ctx.Err(), "indexer shutdown context canceled")
		}
	})
	return
}

// Run polls until ctx is done, Shutdown is called or a block fails to be indexed.
func (i *Indexer) Run(ctx context.Context) (err error) {
	i.running.Store(true)
	defer close(i.done)

	ctx = logger.WithContext(ctx,
		slog.String("package", "indexer"),
		slog.String("processor", i.Processor.Name()),
		slog.String("datasource", i.Datasource.Name()),
	)

	i.currentBlock, err = i.Processor.CurrentBlock(ctx)
	if err != nil {
		return errors.Wrap(err, "can't init state, failed to get indexer current block")
	}
	logger.InfoContext(ctx, "Indexer started", slogx.Uint64("current_block", i.currentBlock.Index))

	interval := i.PollingInterval
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := i.process(ctx); err != nil {
			logger.ErrorContext(ctx, "Indexer failed while processing", slogx.Error(err))
			return errors.Wrap(err, "process failed")
		}
		logger.DebugContext(ctx, "Waiting for next polling interval")

		select {
		case <-i.quit:
			logger.InfoContext(ctx, "Got quit signal, stopping indexer")
			if err := i.Processor.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown processor", slogx.Error(err))
				return errors.Wrap(err, "processor shutdown failed")
			}
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (i *Indexer) process(ctx context.Context) (err error) {
	// height range to fetch data
	from, to := int64(i.currentBlock.Index)+1, int64(-1)

	logger.InfoContext(ctx, "Start fetching blocks", slog.Int64("from", from))
	ch := make(chan []*types.Block)
	subscription, err := i.Datasource.FetchAsync(ctx, from, to, ch)
	if err != nil {
		return errors.Wrap(err, "failed to fetch blocks")
	}
	defer subscription.Unsubscribe()

	for {
		select {
		case <-i.quit:
			return nil
		case blocks := <-ch:
			if len(blocks) == 0 {
				continue
			}

			startAt := time.Now()
			ctx := logger.WithContext(ctx,
				slogx.Uint64("from", blocks[0].Height()),
				slogx.Uint64("to", blocks[len(blocks)-1].Height()),
			)

			if err := i.validate(ctx, blocks); err != nil {
				return errors.WithStack(err)
			}

			logger.InfoContext(ctx, "Processing blocks", slog.Int("total_blocks", len(blocks)))
			if err := i.Processor.Process(ctx, blocks); err != nil {
				return errors.WithStack(err)
			}

			// Update current state
			i.currentBlock = blocks[len(blocks)-1].BlockIdentifier

			logger.InfoContext(ctx, "Processed blocks successfully",
				slogx.String("event", "processed_blocks"),
				slogx.Uint64("current_block", i.currentBlock.Index),
				slogx.Duration("duration", time.Since(startAt)),
			)
		case <-subscription.Done():
			// a failed fetch delivers its error before the subscription finishes
			select {
			case err := <-subscription.Err():
				if err != nil {
					return errors.Wrap(err, "got error while fetch async")
				}
			default:
			}
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "context done")
			}
			// end current round
			return nil
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case err := <-subscription.Err():
			if err != nil {
				return errors.Wrap(err, "got error while fetch async")
			}
		}
	}
}

// validate checks that blocks continue the indexed chain without gaps.
func (i *Indexer) validate(ctx context.Context, blocks []*types.Block) error {
	prev := i.currentBlock
	for n, block := range blocks {
		if block.Height() != prev.Index+1 {
			return errors.Wrapf(errs.InternalError, "blocks are not continuous, expected block %d, got %d", prev.Index+1, block.Height())
		}
		// the cursor carries no hash before the first indexed block
		if prev.Hash != "" && block.ParentBlockIdentifier.Hash != prev.Hash {
			logger.WarnContext(ctx, "Detected chain reorganization",
				slogx.String("event", "reorg_detected"),
				slogx.Int("batch_index", n),
				slogx.Uint64("height", block.Height()),
				slogx.String("current_hash", prev.Hash),
				slogx.String("expected_hash", block.ParentBlockIdentifier.Hash),
			)
			return errors.Wrapf(ErrChainReorganized, "block %d does not extend block %s", block.Height(), prev.Hash)
		}
		prev = block.BlockIdentifier
	}
	return nil
}
