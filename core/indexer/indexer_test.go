package indexer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/gaze-network/runes-ledger/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockHash(height uint64) string {
	return fmt.Sprintf("0x%064x", height)
}

func chain(from, to uint64) []*types.Block {
	blocks := make([]*types.Block, 0, to-from+1)
	for height := from; height <= to; height++ {
		blocks = append(blocks, &types.Block{
			BlockIdentifier:       types.BlockIdentifier{Index: height, Hash: blockHash(height)},
			ParentBlockIdentifier: types.BlockIdentifier{Index: height - 1, Hash: blockHash(height - 1)},
		})
	}
	return blocks
}

type fakeDatasource struct {
	blocks    []*types.Block
	batchSize int
	err       error
}

func (fakeDatasource) Name() string { return "fake" }

func (d *fakeDatasource) Fetch(ctx context.Context, from, to int64) ([]*types.Block, error) {
	return nil, errors.New("not implemented")
}

func (d *fakeDatasource) FetchAsync(ctx context.Context, from, to int64, ch chan<- []*types.Block) (*subscription.ClientSubscription[[]*types.Block], error) {
	sub := subscription.NewSubscription(ch)
	var pending []*types.Block
	for _, block := range d.blocks {
		if int64(block.Height()) >= from {
			pending = append(pending, block)
		}
	}
	go func() {
		defer sub.Close()
		for len(pending) > 0 {
			n := min(d.batchSize, len(pending))
			if err := sub.Send(ctx, pending[:n]); err != nil {
				return
			}
			pending = pending[n:]
		}
		if d.err != nil {
			_ = sub.SendError(ctx, d.err)
		}
	}()
	return sub.Client(), nil
}

type fakeProcessor struct {
	mu       sync.Mutex
	current  types.BlockIdentifier
	indexed  []uint64
	failAt   uint64
	shutdown bool
}

func (p *fakeProcessor) Name() string { return "fake" }

func (p *fakeProcessor) Process(ctx context.Context, blocks []*types.Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, block := range blocks {
		if block.Height() == p.failAt {
			return errors.Newf("block %d is broken", block.Height())
		}
		p.indexed = append(p.indexed, block.Height())
		p.current = block.BlockIdentifier
	}
	return nil
}

func (p *fakeProcessor) CurrentBlock(ctx context.Context) (types.BlockIdentifier, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, nil
}

func (p *fakeProcessor) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdown = true
	return nil
}

func (p *fakeProcessor) Indexed() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.indexed...)
}

func heights(from, to uint64) []uint64 {
	result := make([]uint64, 0, to-from+1)
	for height := from; height <= to; height++ {
		result = append(result, height)
	}
	return result
}

func TestIndexerStartsAfterCursor(t *testing.T) {
	processor := &fakeProcessor{current: types.BlockIdentifier{Index: 839_999}}
	datasource := &fakeDatasource{blocks: chain(839_990, 840_010), batchSize: 4}

	indexer := New(processor, datasource)
	indexer.PollingInterval = 10 * time.Millisecond

	errCh := make(chan error, 1)
	go func() { errCh <- indexer.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(processor.Indexed()) == 11
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, indexer.Shutdown())
	require.NoError(t, <-errCh)

	assert.Equal(t, heights(840_000, 840_010), processor.Indexed())
	assert.True(t, processor.shutdown)
}

func TestIndexerStopsOnFailedBlock(t *testing.T) {
	processor := &fakeProcessor{current: types.BlockIdentifier{Index: 99, Hash: blockHash(99)}, failAt: 103}
	datasource := &fakeDatasource{blocks: chain(100, 110), batchSize: 1}

	indexer := New(processor, datasource)
	err := indexer.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, heights(100, 102), processor.Indexed())
	current, _ := processor.CurrentBlock(context.Background())
	assert.Equal(t, uint64(102), current.Index)
}

func TestIndexerStopsOnDatasourceError(t *testing.T) {
	processor := &fakeProcessor{current: types.BlockIdentifier{Index: 99}}
	datasource := &fakeDatasource{blocks: chain(100, 101), batchSize: 2, err: errors.New("rpc unavailable")}

	err := New(processor, datasource).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rpc unavailable")
}

func TestIndexerDetectsReorg(t *testing.T) {
	processor := &fakeProcessor{current: types.BlockIdentifier{Index: 99, Hash: "0xdead"}}
	datasource := &fakeDatasource{blocks: chain(100, 101), batchSize: 2}

	err := New(processor, datasource).Run(context.Background())
	assert.ErrorIs(t, err, ErrChainReorganized)
	assert.Empty(t, processor.Indexed())
}

func TestIndexerRejectsGap(t *testing.T) {
	blocks := chain(100, 103)
	blocks = append(blocks[:2], blocks[3:]...)
	processor := &fakeProcessor{current: types.BlockIdentifier{Index: 99}}
	datasource := &fakeDatasource{blocks: blocks, batchSize: 3}

	err := New(processor, datasource).Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, processor.Indexed())
}

func TestIndexerShutdownWithoutRun(t *testing.T) {
	processor := &fakeProcessor{current: types.BlockIdentifier{Index: 99}}
	indexer := New(processor, &fakeDatasource{})

	done := make(chan error, 1)
	go func() { done <- indexer.Shutdown() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("shutdown blocked on a worker that never ran")
	}
	assert.False(t, processor.shutdown)
}
