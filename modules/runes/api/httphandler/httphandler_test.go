package httphandler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/repository/memory"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/runes-ledger/modules/runes/usecase"
	"github.com/gaze-network/runes-ledger/pkg/errorhandler"
	"github.com/gaze-network/uint128"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRuneId   = runes.RuneId{BlockHeight: 840000, TxIndex: 7}
	testTxHash   = chainhash.Hash{0xab, 0xcd}
	testOutPoint = wire.OutPoint{Hash: testTxHash, Index: 1}
	// P2WPKH
	testPkScript = append([]byte{0x00, 0x14}, make([]byte, 20)...)
	testEtchedAt = time.Unix(1713571767, 0).UTC()
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	ctx := context.Background()

	spacedRune, err := runes.NewSpacedRuneFromString("TEST•RUNE")
	require.NoError(t, err)

	repo := memory.NewRepository()
	tx, err := repo.BeginLedgerTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.WriteLedgerOps(ctx, []entity.LedgerOp{
		entity.CreateRuneEntryOp{Entry: &runes.RuneEntry{
			RuneId:       testRuneId,
			Number:       1,
			Divisibility: 2,
			Premine:      uint128.From64(12345),
			SpacedRune:   spacedRune,
			Symbol:       'T',
			Terms: &runes.Terms{
				Amount: lo.ToPtr(uint128.From64(100)),
				Cap:    lo.ToPtr(uint128.From64(10)),
			},
			EtchingBlock: testRuneId.BlockHeight,
			EtchingTxId:  testTxHash,
			EtchedAt:     testEtchedAt,
		}},
		entity.CreateOutPointBalanceOp{Balance: &entity.OutPointBalance{
			RuneId:      testRuneId,
			PkScript:    testPkScript,
			OutPoint:    testOutPoint,
			Amount:      uint128.From64(12345),
			BlockHeight: testRuneId.BlockHeight,
		}},
		entity.CreateLedgerEntryOp{Entry: &entity.LedgerEntry{
			RuneId:      testRuneId,
			BlockHeight: testRuneId.BlockHeight,
			TxIndex:     testRuneId.TxIndex,
			TxId:        testTxHash,
			Amount:      uint128.From64(12345),
			Operation:   entity.LedgerOperationEtching,
			EventIndex:  0,
			Timestamp:   testEtchedAt,
		}},
		entity.CreateLedgerEntryOp{Entry: &entity.LedgerEntry{
			RuneId:      testRuneId,
			BlockHeight: testRuneId.BlockHeight,
			TxIndex:     testRuneId.TxIndex,
			TxId:        testTxHash,
			Output:      lo.ToPtr(testOutPoint.Index),
			PkScript:    testPkScript,
			Amount:      uint128.From64(12345),
			Operation:   entity.LedgerOperationReceive,
			EventIndex:  1,
			Timestamp:   testEtchedAt,
		}},
	}))
	require.NoError(t, tx.CreateIndexedBlock(ctx, &entity.IndexedBlock{
		Height:    testRuneId.BlockHeight,
		Hash:      chainhash.Hash{0x01},
		Timestamp: testEtchedAt,
	}))
	require.NoError(t, tx.Commit(ctx))

	app := fiber.New(fiber.Config{ErrorHandler: errorhandler.NewHTTPErrorHandler()})
	require.NoError(t, New(common.NetworkMainnet, usecase.New(repo)).Mount(app))
	return app
}

func doGet(t *testing.T, app *fiber.App, path string, result any) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if result != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(raw, result), string(raw))
	}
	return resp.StatusCode
}

func TestGetCurrentBlock(t *testing.T) {
	app := newTestApp(t)

	var resp getCurrentBlockResponse
	require.Equal(t, http.StatusOK, doGet(t, app, "/v1/runes/block", &resp))
	require.NotNil(t, resp.Result)
	assert.Equal(t, testRuneId.BlockHeight, resp.Result.Height)
	assert.Equal(t, chainhash.Hash{0x01}.String(), resp.Result.Hash)
	assert.Equal(t, testEtchedAt.Unix(), resp.Result.Timestamp)
}

func TestGetTokenInfo(t *testing.T) {
	app := newTestApp(t)

	for _, id := range []string{testRuneId.String(), url.PathEscape("TEST•RUNE")} {
		t.Run(id, func(t *testing.T) {
			var resp getTokenInfoResponse
			require.Equal(t, http.StatusOK, doGet(t, app, "/v1/runes/info/"+id, &resp))
			require.NotNil(t, resp.Result)
			assert.Equal(t, testRuneId, resp.Result.Id)
			assert.Equal(t, "TEST•RUNE", resp.Result.Name)
			assert.Equal(t, "T", resp.Result.Symbol)
			assert.Equal(t, "123.45", resp.Result.Premine.Display)
			// premine + cap * amount
			assert.Equal(t, "133.45", resp.Result.TotalSupply.Display)
			require.NotNil(t, resp.Result.Terms)
			require.NotNil(t, resp.Result.Terms.Amount)
			assert.Equal(t, "1", resp.Result.Terms.Amount.Display)
			assert.Equal(t, lo.ToPtr("10"), resp.Result.Terms.Cap)
		})
	}

	t.Run("not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, doGet(t, app, "/v1/runes/info/840000:8", nil))
	})
	t.Run("invalid id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, doGet(t, app, "/v1/runes/info/not-a-rune", nil))
	})
}

func TestGetTokenList(t *testing.T) {
	app := newTestApp(t)

	var resp getTokenListResponse
	require.Equal(t, http.StatusOK, doGet(t, app, "/v1/runes/tokens?limit=10", &resp))
	require.NotNil(t, resp.Result)
	assert.EqualValues(t, 1, resp.Result.Total)
	require.Len(t, resp.Result.List, 1)
	assert.Equal(t, testRuneId, resp.Result.List[0].Id)

	assert.Equal(t, http.StatusBadRequest, doGet(t, app, "/v1/runes/tokens?limit=-1", nil))
}

func TestGetBalancesByAddress(t *testing.T) {
	app := newTestApp(t)

	var resp getBalancesByAddressResponse
	require.Equal(t, http.StatusOK, doGet(t, app, "/v1/runes/balances/wallet/"+hex.EncodeToString(testPkScript), &resp))
	require.NotNil(t, resp.Result)
	assert.NotEmpty(t, resp.Result.Address)
	require.Len(t, resp.Result.List, 1)
	assert.Equal(t, testRuneId, resp.Result.List[0].Id)
	assert.Equal(t, "123.45", resp.Result.List[0].Amount.Display)
	assert.EqualValues(t, 2, resp.Result.List[0].Decimals)

	// the same script resolved from its address
	var byAddress getBalancesByAddressResponse
	require.Equal(t, http.StatusOK, doGet(t, app, "/v1/runes/balances/wallet/"+resp.Result.Address, &byAddress))
	require.NotNil(t, byAddress.Result)
	assert.Equal(t, resp.Result.List, byAddress.Result.List)

	assert.Equal(t, http.StatusBadRequest, doGet(t, app, "/v1/runes/balances/wallet/zz", nil))
}

func TestGetOutPointBalances(t *testing.T) {
	app := newTestApp(t)

	var resp getOutPointBalancesResponse
	require.Equal(t, http.StatusOK, doGet(t, app, "/v1/runes/outpoint/"+testTxHash.String()+"/1", &resp))
	require.NotNil(t, resp.Result)
	assert.Equal(t, hex.EncodeToString(testPkScript), resp.Result.PkScript)
	require.Len(t, resp.Result.List, 1)
	assert.Equal(t, "123.45", resp.Result.List[0].Amount.Display)

	var empty getOutPointBalancesResponse
	require.Equal(t, http.StatusOK, doGet(t, app, "/v1/runes/outpoint/"+testTxHash.String()+"/0", &empty))
	require.NotNil(t, empty.Result)
	assert.Empty(t, empty.Result.List)

	assert.Equal(t, http.StatusBadRequest, doGet(t, app, "/v1/runes/outpoint/1234/0", nil))
}

func TestGetTransactionByHash(t *testing.T) {
	app := newTestApp(t)

	var resp getTransactionByHashResponse
	require.Equal(t, http.StatusOK, doGet(t, app, "/v1/runes/transactions/"+testTxHash.String(), &resp))
	require.NotNil(t, resp.Result)
	assert.Equal(t, testRuneId.BlockHeight, resp.Result.BlockHeight)
	require.Len(t, resp.Result.Entries, 2)
	assert.Equal(t, entity.LedgerOperationEtching, resp.Result.Entries[0].Operation)
	assert.Nil(t, resp.Result.Entries[0].PkScript)
	assert.Equal(t, entity.LedgerOperationReceive, resp.Result.Entries[1].Operation)
	assert.Equal(t, lo.ToPtr(uint32(1)), resp.Result.Entries[1].Output)

	assert.Equal(t, http.StatusNotFound, doGet(t, app, "/v1/runes/transactions/"+chainhash.Hash{0xff}.String(), nil))
}
