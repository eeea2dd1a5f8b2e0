// AWS Public Blockchain Datasource
// - https://registry.opendata.aws/aws-public-blockchain
// - https://github.com/aws-solutions-library-samples/guidance-for-digital-assets-on-aws
//
// To setup your own data source, see: https://github.com/aws-solutions-library-samples/guidance-for-digital-assets-on-aws/blob/main/analytics/producer/README.md
package datasources

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/gaze-network/runes-ledger/internal/subscription"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/gaze-network/runes-ledger/pkg/parquetutils"
	"github.com/samber/lo"
	parquettypes "github.com/xitongsys/parquet-go/types"
)

const (
	awsPublicDataS3Region = "us-east-2"
	awsPublicDataS3Bucket = "aws-public-blockchain"
)

var firstBitcoinTimestamp = time.Date(2009, time.January, 3, 18, 15, 5, 0, time.UTC)

// Make sure to implement the Datasource interface
var _ Datasource[*types.Block] = (*AWSPublicDataDatasource)(nil)

// AWSPublicDataDatasource reads daily block and transaction parquet exports from S3. Heights the
// export does not cover yet are fetched from the bitcoin node.
type AWSPublicDataDatasource struct {
	s3Client *s3.Client
	s3Bucket string
	node     *BitcoinNodeDatasource
}

func NewAWSPublicData(ctx context.Context, node *BitcoinNodeDatasource) (*AWSPublicDataDatasource, error) {
	sdkConfig, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "can't load aws user config")
	}

	s3client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		o.Region = awsPublicDataS3Region
		o.Credentials = aws.AnonymousCredentials{}
	})

	return &AWSPublicDataDatasource{
		s3Client: s3client,
		s3Bucket: awsPublicDataS3Bucket,
		node:     node,
	}, nil
}

func (AWSPublicDataDatasource) Name() string {
	return "aws_public_data"
}

func (d *AWSPublicDataDatasource) Fetch(ctx context.Context, from, to int64) ([]*types.Block, error) {
	blocks, err := fetch[*types.Block](ctx, d, from, to)
	return blocks, errors.WithStack(err)
}

func (d *AWSPublicDataDatasource) FetchAsync(ctx context.Context, from, to int64, ch chan<- []*types.Block) (*subscription.ClientSubscription[[]*types.Block], error) {
	ctx = logger.WithContext(ctx,
		slogx.String("package", "datasources"),
		slogx.String("datasource", d.Name()),
	)

	from, to, skip, err := d.node.prepareRange(from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare fetch range")
	}

	subscription := subscription.NewSubscription(ch)
	if skip {
		subscription.Close()
		return subscription.Client(), nil
	}

	fromHeader, err := d.node.GetBlockHeader(ctx, from)
	if err != nil {
		subscription.Close()
		return nil, errors.Wrapf(err, "failed to get block header for %v", from)
	}

	go func() {
		next, err := d.streamFromS3(ctx, fromHeader.Timestamp, from, to, subscription)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to fetch blocks from aws s3", slogx.Error(err))
			if err := subscription.SendError(ctx, errors.WithStack(err)); err != nil {
				logger.WarnContext(ctx, "Failed to send datasource error to subscription client", slogx.Error(err))
			}
			subscription.Close()
			return
		}
		if next > to {
			subscription.Close()
			return
		}
		logger.InfoContext(ctx, "AWS public data exhausted, continue with bitcoin node", slogx.Int64("from", next))
		d.node.stream(ctx, next, to, subscription)
	}()

	return subscription.Client(), nil
}

// streamFromS3 sends blocks from the daily exports starting at the day of fromTime and returns
// the first height it did not send.
func (d *AWSPublicDataDatasource) streamFromS3(ctx context.Context, fromTime time.Time, from, to int64, subscription *subscription.Subscription[[]*types.Block]) (int64, error) {
	next := from
	date := fromTime.UTC().Truncate(24 * time.Hour)
	for next <= to && !date.After(time.Now()) {
		ctx := logger.WithContext(ctx, slogx.Time("file_date", date))

		blocks, ok, err := d.readBlocksByDate(ctx, date)
		if err != nil {
			return next, errors.WithStack(err)
		}
		// reach the end of supported data
		if !ok {
			return next, nil
		}

		blocks = lo.Filter(blocks, func(block *types.Block, _ int) bool {
			return int64(block.Height()) >= next && int64(block.Height()) <= to
		})
		if len(blocks) > 0 {
			if first := int64(blocks[0].Height()); first != next {
				return next, errors.Wrapf(errs.InternalError, "aws public data has a gap, expected block %d, got %d", next, first)
			}
			if err := subscription.Send(ctx, blocks); err != nil {
				return next, errors.Wrap(err, "failed to send blocks to subscription")
			}
			next = int64(blocks[len(blocks)-1].Height()) + 1
		}

		date = date.Add(24 * time.Hour)
	}
	return next, nil
}

// readBlocksByDate returns the blocks mined on date in height order, or false if the export of date does not exist.
func (d *AWSPublicDataDatasource) readBlocksByDate(ctx context.Context, date time.Time) ([]*types.Block, bool, error) {
	blocksFiles, err := d.listFilesByDate(ctx, "blocks", date)
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	txsFiles, err := d.listFilesByDate(ctx, "transactions", date)
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	if len(blocksFiles) == 0 || len(txsFiles) == 0 {
		return nil, false, nil
	}
	if len(blocksFiles) != 1 || len(txsFiles) != 1 {
		return nil, false, errors.Wrapf(errs.InternalError, "unexpected files count, blocks: %d, transactions: %d", len(blocksFiles), len(txsFiles))
	}

	blocksData, err := d.downloadFile(ctx, blocksFiles[0])
	if err != nil {
		return nil, false, errors.Wrap(err, "can't download blocks file")
	}
	rawBlocks, err := parquetutils.ReadBytes[awsBlock](blocksData)
	if err != nil {
		return nil, false, errors.Wrap(err, "can't read parquet blocks data")
	}

	txsData, err := d.downloadFile(ctx, txsFiles[0])
	if err != nil {
		return nil, false, errors.Wrap(err, "can't download transactions file")
	}
	rawTxs, err := parquetutils.ReadBytes[awsTransaction](txsData)
	if err != nil {
		return nil, false, errors.Wrap(err, "can't read parquet transactions data")
	}

	blocks, err := buildAWSBlocks(rawBlocks, rawTxs)
	if err != nil {
		return nil, false, errors.WithStack(err)
	}
	return blocks, true, nil
}

func (d *AWSPublicDataDatasource) listFiles(ctx context.Context, prefix string) ([]string, error) {
	result, err := d.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.s3Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "can't list s3 bucket objects for bucket %q and prefix %q", d.s3Bucket, prefix)
	}

	// filter empty keys
	objs := lo.Filter(result.Contents, func(item s3types.Object, _ int) bool { return item.Key != nil })

	return lo.Map(objs, func(item s3types.Object, _ int) string {
		return *item.Key
	}), nil
}

// listFilesByDate lists the merged export files of kind ("blocks" or "transactions") for date.
func (d *AWSPublicDataDatasource) listFilesByDate(ctx context.Context, kind string, date time.Time) ([]string, error) {
	if date.Before(firstBitcoinTimestamp.Truncate(24 * time.Hour)) {
		return nil, errors.Wrapf(errs.InvalidArgument, "date %v is before first bitcoin timestamp %v", date, firstBitcoinTimestamp)
	}
	files, err := d.listFiles(ctx, "v1.0/btc/"+kind+"/date="+date.Format(time.DateOnly))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list %s files by date", kind)
	}
	return lo.Filter(files, func(key string, _ int) bool {
		return strings.Contains(key, "part-")
	}), nil
}

func (d *AWSPublicDataDatasource) downloadFile(ctx context.Context, key string) ([]byte, error) {
	downloader := manager.NewDownloader(d.s3Client, func(d *manager.Downloader) {
		d.Concurrency = 16
		d.PartSize = 10 * 1024 * 1024
	})

	buffer := manager.NewWriteAtBuffer([]byte{})
	numBytes, err := downloader.Download(ctx, buffer, &s3.GetObjectInput{
		Bucket: aws.String(d.s3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to download file for bucket %q and key %q", d.s3Bucket, key)
	}
	if numBytes < 1 {
		return nil, errors.Wrap(errs.NotFound, "got empty file")
	}
	return buffer.Bytes(), nil
}

type (
	awsBlock struct {
		Hash              string `parquet:"name=hash, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
		PreviousBlockHash string `parquet:"name=previousblockhash, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
		CoinbaseParam     string `parquet:"name=coinbase_param, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
		Number            int64  `parquet:"name=number, type=INT64, repetitiontype=OPTIONAL"`
		TransactionCount  int64  `parquet:"name=transaction_count, type=INT64, repetitiontype=OPTIONAL"`
		Timestamp         string `parquet:"name=timestamp, type=INT96, repetitiontype=OPTIONAL"`
	}
	awsTxOutput struct {
		Index     int64   `parquet:"name=index, type=INT64, repetitiontype=OPTIONAL"`
		ScriptHex string  `parquet:"name=script_hex, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
		Value     float64 `parquet:"name=value, type=DOUBLE, repetitiontype=OPTIONAL"`
	}
	awsTxInput struct {
		Index                int64  `parquet:"name=index, type=INT64, repetitiontype=OPTIONAL"`
		ScriptHex            string `parquet:"name=script_hex, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
		Sequence             int64  `parquet:"name=sequence, type=INT64, repetitiontype=OPTIONAL"`
		SpentOutputIndex     int64  `parquet:"name=spent_output_index, type=INT64, repetitiontype=OPTIONAL"`
		SpentTransactionHash string `parquet:"name=spent_transaction_hash, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	}
	awsTransaction struct {
		Hash        string         `parquet:"name=hash, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
		BlockNumber int64          `parquet:"name=block_number, type=INT64, repetitiontype=OPTIONAL"`
		Index       int64          `parquet:"name=index, type=INT64, repetitiontype=OPTIONAL"`
		IsCoinbase  bool           `parquet:"name=is_coinbase, type=BOOLEAN, repetitiontype=OPTIONAL"`
		Outputs     []*awsTxOutput `parquet:"name=outputs, type=LIST, repetitiontype=OPTIONAL, valuetype=STRUCT"`
		Inputs      []*awsTxInput  `parquet:"name=inputs, type=LIST, repetitiontype=OPTIONAL, valuetype=STRUCT"`
	}
)

// buildAWSBlocks joins the rows of one day's exports into provider blocks sorted by height.
func buildAWSBlocks(rawBlocks []awsBlock, rawTxs []awsTransaction) ([]*types.Block, error) {
	txsByBlock := lo.GroupBy(rawTxs, func(tx awsTransaction) int64 { return tx.BlockNumber })

	slices.SortFunc(rawBlocks, func(i, j awsBlock) int {
		return cmp.Compare(i.Number, j.Number)
	})

	blocks := make([]*types.Block, 0, len(rawBlocks))
	for _, rawBlock := range rawBlocks {
		rawBlockTxs := txsByBlock[rawBlock.Number]
		if int64(len(rawBlockTxs)) != rawBlock.TransactionCount {
			return nil, errors.Wrapf(errs.InternalError, "block %d has %d transactions in export, expected %d", rawBlock.Number, len(rawBlockTxs), rawBlock.TransactionCount)
		}
		block, err := rawBlock.toBlock(rawBlockTxs)
		if err != nil {
			return nil, errors.Wrapf(err, "can't convert aws block %d", rawBlock.Number)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func (a awsBlock) toBlock(rawTxs []awsTransaction) (*types.Block, error) {
	if a.Number < 0 {
		return nil, errors.Wrapf(errs.InvalidArgument, "negative block number %d", a.Number)
	}
	height := uint64(a.Number)
	block := &types.Block{
		BlockIdentifier: types.BlockIdentifier{
			Index: height,
			Hash:  types.HexPrefix + a.Hash,
		},
		Timestamp:    uint32(parquettypes.INT96ToTime(a.Timestamp).Unix()),
		Transactions: make([]*types.Transaction, 0, len(rawTxs)),
	}
	if a.PreviousBlockHash != "" && height > 0 {
		block.ParentBlockIdentifier = types.BlockIdentifier{
			Index: height - 1,
			Hash:  types.HexPrefix + a.PreviousBlockHash,
		}
	}

	slices.SortFunc(rawTxs, func(i, j awsTransaction) int {
		return cmp.Compare(i.Index, j.Index)
	})
	for _, rawTx := range rawTxs {
		tx, err := rawTx.toTransaction(a.CoinbaseParam)
		if err != nil {
			return nil, errors.Wrapf(err, "can't convert aws transaction %s", rawTx.Hash)
		}
		block.Transactions = append(block.Transactions, tx)
	}
	return block, nil
}

func (a awsTransaction) toTransaction(coinbaseParam string) (*types.Transaction, error) {
	tx := &types.Transaction{
		TransactionIdentifier: types.TransactionIdentifier{Hash: types.HexPrefix + a.Hash},
		Metadata: types.TransactionMetadata{
			Index: uint32(a.Index),
		},
	}

	if a.IsCoinbase {
		tx.Metadata.Inputs = []*types.TxIn{{
			PreviousOutput: types.PreviousOutput{
				Txid: types.TransactionIdentifier{Hash: types.HexPrefix + chainhash.Hash{}.String()},
				Vout: wire.MaxPrevOutIndex,
			},
			ScriptSig: types.HexPrefix + coinbaseParam,
			Sequence:  wire.MaxTxInSequenceNum,
		}}
	} else {
		inputs := lo.Compact(a.Inputs)
		slices.SortFunc(inputs, func(i, j *awsTxInput) int { return cmp.Compare(i.Index, j.Index) })
		tx.Metadata.Inputs = lo.Map(inputs, func(input *awsTxInput, _ int) *types.TxIn {
			return &types.TxIn{
				PreviousOutput: types.PreviousOutput{
					Txid: types.TransactionIdentifier{Hash: types.HexPrefix + input.SpentTransactionHash},
					Vout: uint32(input.SpentOutputIndex),
				},
				ScriptSig: types.HexPrefix + input.ScriptHex,
				Sequence:  uint32(input.Sequence),
			}
		})
	}

	outputs := lo.Compact(a.Outputs)
	slices.SortFunc(outputs, func(i, j *awsTxOutput) int { return cmp.Compare(i.Index, j.Index) })
	for _, output := range outputs {
		amount, err := btcutil.NewAmount(output.Value)
		if err != nil || amount < 0 {
			return nil, errors.Wrapf(errs.InvalidArgument, "output %d: invalid value %v", output.Index, output.Value)
		}
		tx.Metadata.Outputs = append(tx.Metadata.Outputs, &types.TxOut{
			Value:        uint64(amount),
			ScriptPubKey: types.HexPrefix + output.ScriptHex,
		})
	}
	return tx, nil
}
