package datasources

import (
	"context"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/gaze-network/runes-ledger/internal/subscription"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	cstream "github.com/planxnx/concurrent-stream"
	"github.com/samber/lo"
)

const (
	// blocks fetched by one stream task
	bitcoinNodeChunkSize = 10

	bitcoinNodeConcurrency = 8
)

// BitcoinNodeClient is the subset of the btcd rpcclient.Client used by BitcoinNodeDatasource.
type BitcoinNodeClient interface {
	GetBlockCount() (int64, error)
	GetBlockHash(blockHeight int64) (*chainhash.Hash, error)
	GetBlockHeader(blockHash *chainhash.Hash) (*wire.BlockHeader, error)
	GetBlockVerboseTx(blockHash *chainhash.Hash) (*btcjson.GetBlockVerboseTxResult, error)
}

// Make sure to implement the Datasource interface
var _ Datasource[*types.Block] = (*BitcoinNodeDatasource)(nil)

// BitcoinNodeDatasource fetches blocks from a Bitcoin Core compatible RPC node.
type BitcoinNodeDatasource struct {
	btcclient BitcoinNodeClient
}

func NewBitcoinNode(btcclient BitcoinNodeClient) *BitcoinNodeDatasource {
	return &BitcoinNodeDatasource{
		btcclient: btcclient,
	}
}

func (BitcoinNodeDatasource) Name() string {
	return "bitcoin_node"
}

// Fetch polling blocks from Bitcoin node
func (d *BitcoinNodeDatasource) Fetch(ctx context.Context, from, to int64) ([]*types.Block, error) {
	blocks, err := fetch[*types.Block](ctx, d, from, to)
	return blocks, errors.WithStack(err)
}

// FetchAsync polling blocks from Bitcoin node asynchronously (non-blocking)
func (d *BitcoinNodeDatasource) FetchAsync(ctx context.Context, from, to int64, ch chan<- []*types.Block) (*subscription.ClientSubscription[[]*types.Block], error) {
	ctx = logger.WithContext(ctx,
		slogx.String("package", "datasources"),
		slogx.String("datasource", d.Name()),
	)

	from, to, skip, err := d.prepareRange(from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare fetch range")
	}

	subscription := subscription.NewSubscription(ch)
	if skip {
		subscription.Close()
		return subscription.Client(), nil
	}

	go d.stream(ctx, from, to, subscription)
	return subscription.Client(), nil
}

// stream fetches [from, to] concurrently and sends the blocks to subscription in height order.
// The subscription is closed when every block was sent or fetching failed.
func (d *BitcoinNodeDatasource) stream(ctx context.Context, from, to int64, subscription *subscription.Subscription[[]*types.Block]) {
	defer subscription.Close()

	out := make(chan []*types.Block)
	stream := cstream.NewStream(ctx, bitcoinNodeConcurrency, out)

	heights := make([]int64, 0, to-from+1)
	for height := from; height <= to; height++ {
		heights = append(heights, height)
	}

	// Wait for stream to finish and close out channel
	go func() {
		defer close(out)
		_ = stream.Wait()
	}()

	go func() {
		defer stream.Close()
		done := subscription.Done()
		for _, chunk := range lo.Chunk(heights, bitcoinNodeChunkSize) {
			chunk := chunk
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			default:
			}
			stream.Go(func() []*types.Block {
				blocks := make([]*types.Block, 0, len(chunk))
				for _, height := range chunk {
					block, err := d.GetBlock(ctx, height)
					if err != nil {
						logger.ErrorContext(ctx, "Failed to get block from bitcoin node", slogx.Error(err), slogx.Int64("height", height))
						if err := subscription.SendError(ctx, errors.Wrapf(err, "failed to get block %d", height)); err != nil {
							logger.WarnContext(ctx, "Failed to send datasource error to subscription client", slogx.Error(err))
						}
						return nil
					}
					blocks = append(blocks, block)
				}
				return blocks
			})
		}
	}()

	failed := false
	for {
		select {
		case blocks, ok := <-out:
			if !ok {
				return
			}
			// a failed chunk leaves a gap, nothing after it may be sent
			if failed || len(blocks) == 0 {
				failed = true
				continue
			}
			if err := subscription.Send(ctx, blocks); err != nil {
				logger.WarnContext(ctx, "Failed to send bitcoin blocks to subscription client",
					slogx.Uint64("start", blocks[0].Height()),
					slogx.Uint64("end", blocks[len(blocks)-1].Height()),
					slogx.Error(err),
				)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// GetBlock fetches the block at height with every transaction.
func (d *BitcoinNodeDatasource) GetBlock(ctx context.Context, height int64) (*types.Block, error) {
	hash, err := d.btcclient.GetBlockHash(height)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get block hash")
	}
	result, err := d.btcclient.GetBlockVerboseTx(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get block %s", hash)
	}
	block, err := ParseVerboseBlock(result)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse block %s", hash)
	}
	return block, nil
}

// GetBlockHeader fetches the header of the block at height.
func (d *BitcoinNodeDatasource) GetBlockHeader(ctx context.Context, height int64) (*wire.BlockHeader, error) {
	hash, err := d.btcclient.GetBlockHash(height)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get block hash")
	}
	header, err := d.btcclient.GetBlockHeader(hash)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get block header %s", hash)
	}
	return header, nil
}

func (d *BitcoinNodeDatasource) prepareRange(fromHeight, toHeight int64) (start, end int64, skip bool, err error) {
	start = fromHeight
	end = toHeight

	// get current bitcoin block height
	latestBlockHeight, err := d.btcclient.GetBlockCount()
	if err != nil {
		return -1, -1, false, errors.Wrap(err, "failed to get block count")
	}

	if start < 0 {
		start = 0
	}
	if end < 0 || end > latestBlockHeight {
		end = latestBlockHeight
	}
	if start > end {
		return -1, -1, true, nil
	}
	return start, end, false, nil
}

// ParseVerboseBlock maps a verbosity 2 getblock result into a provider block.
// Coinbase inputs get a zero previous txid and vout 0xffffffff.
func ParseVerboseBlock(src *btcjson.GetBlockVerboseTxResult) (*types.Block, error) {
	if src.Height < 0 {
		return nil, errors.Wrapf(errs.InvalidArgument, "negative block height %d", src.Height)
	}
	height := uint64(src.Height)

	block := &types.Block{
		BlockIdentifier: types.BlockIdentifier{
			Index: height,
			Hash:  types.HexPrefix + src.Hash,
		},
		Timestamp:    uint32(src.Time),
		Transactions: make([]*types.Transaction, 0, len(src.Tx)),
	}
	if src.PreviousHash != "" {
		block.ParentBlockIdentifier = types.BlockIdentifier{
			Index: height - 1,
			Hash:  types.HexPrefix + src.PreviousHash,
		}
	}

	for i, tx := range src.Tx {
		inputs := make([]*types.TxIn, 0, len(tx.Vin))
		for _, vin := range tx.Vin {
			if vin.IsCoinBase() {
				inputs = append(inputs, &types.TxIn{
					PreviousOutput: types.PreviousOutput{
						Txid: types.TransactionIdentifier{Hash: types.HexPrefix + chainhash.Hash{}.String()},
						Vout: wire.MaxPrevOutIndex,
					},
					ScriptSig: types.HexPrefix + vin.Coinbase,
					Sequence:  vin.Sequence,
				})
				continue
			}
			var scriptSig string
			if vin.ScriptSig != nil {
				scriptSig = vin.ScriptSig.Hex
			}
			inputs = append(inputs, &types.TxIn{
				PreviousOutput: types.PreviousOutput{
					Txid: types.TransactionIdentifier{Hash: types.HexPrefix + vin.Txid},
					Vout: vin.Vout,
				},
				ScriptSig: types.HexPrefix + scriptSig,
				Sequence:  vin.Sequence,
			})
		}

		outputs := make([]*types.TxOut, 0, len(tx.Vout))
		for _, vout := range tx.Vout {
			amount, err := btcutil.NewAmount(vout.Value)
			if err != nil {
				return nil, errors.Wrapf(errors.Join(err, errs.InvalidArgument), "tx %s output %d: invalid value", tx.Txid, vout.N)
			}
			if amount < 0 {
				return nil, errors.Wrapf(errs.InvalidArgument, "tx %s output %d: negative value", tx.Txid, vout.N)
			}
			outputs = append(outputs, &types.TxOut{
				Value:        uint64(amount),
				ScriptPubKey: types.HexPrefix + vout.ScriptPubKey.Hex,
			})
		}

		block.Transactions = append(block.Transactions, &types.Transaction{
			TransactionIdentifier: types.TransactionIdentifier{Hash: types.HexPrefix + tx.Txid},
			Metadata: types.TransactionMetadata{
				Index:   uint32(i),
				Inputs:  inputs,
				Outputs: outputs,
			},
		})
	}
	return block, nil
}
