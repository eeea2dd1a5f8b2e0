package runes

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/gaze-network/runes-ledger/modules/runes/repository/memory"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessorUnsupportedNetwork(t *testing.T) {
	_, err := NewProcessor(memory.NewRepository(), runes.NewDecipherer(), common.NetworkTestnet, nil)
	assert.ErrorIs(t, err, errs.Unsupported)
}

func TestProcessorVerifyStatesCreatesGenesisRune(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	processor, err := NewProcessor(repo, runes.NewDecipherer(), common.NetworkMainnet, nil)
	require.NoError(t, err)

	require.NoError(t, processor.VerifyStates(ctx))
	require.NoError(t, processor.VerifyStates(ctx))

	count, err := repo.CountRuneEntries(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	entry, err := repo.GetRuneEntryByRuneId(ctx, genesisRuneId)
	require.NoError(t, err)
	assert.Equal(t, "UNCOMMON•GOODS", entry.SpacedRune.String())
	assert.EqualValues(t, 0, entry.Number)
	assert.True(t, entry.Turbo)
	assert.True(t, entry.IsMintStarted(840000))
	assert.True(t, entry.IsMintEnded(1050000))
}

func TestProcessorCursor(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	processor, err := NewProcessor(repo, runes.NewDecipherer(), common.NetworkMainnet, nil)
	require.NoError(t, err)

	current, err := processor.CurrentBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.BlockIdentifier{Index: 839999, Hash: startingBlockHash[common.NetworkMainnet]}, current)

	blocks := []*types.Block{newTestBlock(840000, 2), newTestBlock(840001, 1)}
	require.NoError(t, processor.Process(ctx, blocks))

	current, err = processor.CurrentBlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, blocks[1].BlockIdentifier, current)
}

func TestProcessorShutdownRunsEveryCleanup(t *testing.T) {
	var calls int
	cleanupErr := errors.New("close failed")
	processor, err := NewProcessor(memory.NewRepository(), runes.NewDecipherer(), common.NetworkMainnet, []func(context.Context) error{
		func(context.Context) error { calls++; return cleanupErr },
		func(context.Context) error { calls++; return nil },
	})
	require.NoError(t, err)

	err = processor.Shutdown(context.Background())
	assert.ErrorIs(t, err, cleanupErr)
	assert.Equal(t, 2, calls)
}
