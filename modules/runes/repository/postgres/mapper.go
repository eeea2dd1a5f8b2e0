package postgres

import (
	"encoding/hex"
	"slices"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/uint128"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/samber/lo"
)

type (
	indexedBlockModel struct {
		Height    int32
		Hash      string
		PrevHash  string
		Timestamp time.Time
	}
	runeEntryModel struct {
		RuneID           string
		Number           int64
		Rune             string
		Spacers          int32
		Premine          pgtype.Numeric
		Symbol           int32
		Divisibility     int16
		Terms            bool
		TermsAmount      pgtype.Numeric
		TermsCap         pgtype.Numeric
		TermsHeightStart pgtype.Int8
		TermsHeightEnd   pgtype.Int8
		TermsOffsetStart pgtype.Int8
		TermsOffsetEnd   pgtype.Int8
		Turbo            bool
		Cenotaph         bool
		Mints            pgtype.Numeric
		BurnedAmount     pgtype.Numeric
		EtchingBlock     int32
		EtchingTxHash    string
		EtchedAt         time.Time
	}
	outPointBalanceModel struct {
		RuneID      string
		Pkscript    string
		TxHash      string
		TxIdx       int32
		Amount      pgtype.Numeric
		BlockHeight int32
		SpentHeight pgtype.Int4
	}
	balanceModel struct {
		RuneID string
		Amount pgtype.Numeric
	}
	ledgerEntryModel struct {
		RuneID      string
		BlockHeight int32
		TxIndex     int32
		TxHash      string
		Output      pgtype.Int4
		Pkscript    pgtype.Text
		Amount      pgtype.Numeric
		Operation   string
		EventIndex  int32
		Timestamp   time.Time
	}
)

func uint128FromNumeric(src pgtype.Numeric) (*uint128.Uint128, error) {
	if !src.Valid {
		return nil, nil
	}
	bytes, err := src.MarshalJSON()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	result, err := uint128.FromString(string(bytes))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &result, nil
}

func numericFromUint128(src *uint128.Uint128) (pgtype.Numeric, error) {
	if src == nil {
		return pgtype.Numeric{}, nil
	}
	bytes := []byte(src.String())
	var result pgtype.Numeric
	err := result.UnmarshalJSON(bytes)
	if err != nil {
		return pgtype.Numeric{}, errors.WithStack(err)
	}
	return result, nil
}

func int8FromUint64(src *uint64) pgtype.Int8 {
	if src == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: int64(*src), Valid: true}
}

func uint64FromInt8(src pgtype.Int8) *uint64 {
	if !src.Valid {
		return nil
	}
	return lo.ToPtr(uint64(src.Int64))
}

func mapIndexedBlockModelToType(src indexedBlockModel) (*entity.IndexedBlock, error) {
	hash, err := chainhash.NewHashFromStr(src.Hash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse block hash")
	}
	prevHash, err := chainhash.NewHashFromStr(src.PrevHash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse prev block hash")
	}
	return &entity.IndexedBlock{
		Height:    uint64(src.Height),
		Hash:      *hash,
		PrevHash:  *prevHash,
		Timestamp: src.Timestamp.UTC(),
	}, nil
}

func scanRuneEntryModel(row pgx.Row, model *runeEntryModel) error {
	return errors.WithStack(row.Scan(
		&model.RuneID,
		&model.Number,
		&model.Rune,
		&model.Spacers,
		&model.Premine,
		&model.Symbol,
		&model.Divisibility,
		&model.Terms,
		&model.TermsAmount,
		&model.TermsCap,
		&model.TermsHeightStart,
		&model.TermsHeightEnd,
		&model.TermsOffsetStart,
		&model.TermsOffsetEnd,
		&model.Turbo,
		&model.Cenotaph,
		&model.Mints,
		&model.BurnedAmount,
		&model.EtchingBlock,
		&model.EtchingTxHash,
		&model.EtchedAt,
	))
}

func mapRuneEntryModelToType(src runeEntryModel) (*runes.RuneEntry, error) {
	runeId, err := runes.NewRuneIdFromString(src.RuneID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse rune id")
	}
	name, err := runes.NewRuneFromString(src.Rune)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse rune")
	}
	premine, err := uint128FromNumeric(src.Premine)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse premine")
	}
	mints, err := uint128FromNumeric(src.Mints)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse mints")
	}
	burnedAmount, err := uint128FromNumeric(src.BurnedAmount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse burned amount")
	}
	var terms *runes.Terms
	if src.Terms {
		terms = &runes.Terms{
			HeightStart: uint64FromInt8(src.TermsHeightStart),
			HeightEnd:   uint64FromInt8(src.TermsHeightEnd),
			OffsetStart: uint64FromInt8(src.TermsOffsetStart),
			OffsetEnd:   uint64FromInt8(src.TermsOffsetEnd),
		}
		if terms.Amount, err = uint128FromNumeric(src.TermsAmount); err != nil {
			return nil, errors.Wrap(err, "failed to parse terms amount")
		}
		if terms.Cap, err = uint128FromNumeric(src.TermsCap); err != nil {
			return nil, errors.Wrap(err, "failed to parse terms cap")
		}
	}
	etchingTxHash, err := chainhash.NewHashFromStr(src.EtchingTxHash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse etching tx hash")
	}
	return &runes.RuneEntry{
		RuneId:       runeId,
		Number:       uint64(src.Number),
		Divisibility: uint8(src.Divisibility),
		Premine:      lo.FromPtr(premine),
		SpacedRune:   runes.NewSpacedRune(name, uint32(src.Spacers)),
		Symbol:       src.Symbol,
		Terms:        terms,
		Turbo:        src.Turbo,
		Mints:        lo.FromPtr(mints),
		BurnedAmount: lo.FromPtr(burnedAmount),
		EtchingBlock: uint64(src.EtchingBlock),
		EtchingTxId:  *etchingTxHash,
		EtchedAt:     src.EtchedAt.UTC(),
		Cenotaph:     src.Cenotaph,
	}, nil
}

// mapRuneEntryTypeToArgs returns the insert arguments in runeEntryColumns order.
func mapRuneEntryTypeToArgs(src *runes.RuneEntry) ([]any, error) {
	premine, err := numericFromUint128(&src.Premine)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse premine")
	}
	mints, err := numericFromUint128(&src.Mints)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse mints")
	}
	burnedAmount, err := numericFromUint128(&src.BurnedAmount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse burned amount")
	}
	var (
		termsAmount, termsCap                                              pgtype.Numeric
		termsHeightStart, termsHeightEnd, termsOffsetStart, termsOffsetEnd pgtype.Int8
	)
	if src.Terms != nil {
		if termsAmount, err = numericFromUint128(src.Terms.Amount); err != nil {
			return nil, errors.Wrap(err, "failed to parse terms amount")
		}
		if termsCap, err = numericFromUint128(src.Terms.Cap); err != nil {
			return nil, errors.Wrap(err, "failed to parse terms cap")
		}
		termsHeightStart = int8FromUint64(src.Terms.HeightStart)
		termsHeightEnd = int8FromUint64(src.Terms.HeightEnd)
		termsOffsetStart = int8FromUint64(src.Terms.OffsetStart)
		termsOffsetEnd = int8FromUint64(src.Terms.OffsetEnd)
	}
	return []any{
		src.RuneId.String(),
		int64(src.Number),
		src.SpacedRune.Rune.String(),
		int32(src.SpacedRune.Spacers),
		premine,
		src.Symbol,
		int16(src.Divisibility),
		src.Terms != nil,
		termsAmount,
		termsCap,
		termsHeightStart,
		termsHeightEnd,
		termsOffsetStart,
		termsOffsetEnd,
		src.Turbo,
		src.Cenotaph,
		mints,
		burnedAmount,
		int32(src.EtchingBlock),
		src.EtchingTxId.String(),
		src.EtchedAt.UTC(),
	}, nil
}

func mapOutPointBalanceModelToType(src outPointBalanceModel) (*entity.OutPointBalance, error) {
	runeId, err := runes.NewRuneIdFromString(src.RuneID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse rune id")
	}
	pkScript, err := hex.DecodeString(src.Pkscript)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse pkscript")
	}
	txHash, err := chainhash.NewHashFromStr(src.TxHash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tx hash")
	}
	amount, err := uint128FromNumeric(src.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse amount")
	}
	var spentHeight *uint64
	if src.SpentHeight.Valid {
		spentHeight = lo.ToPtr(uint64(src.SpentHeight.Int32))
	}
	return &entity.OutPointBalance{
		RuneId:      runeId,
		PkScript:    pkScript,
		OutPoint:    *wire.NewOutPoint(txHash, uint32(src.TxIdx)),
		Amount:      lo.FromPtr(amount),
		BlockHeight: uint64(src.BlockHeight),
		SpentHeight: spentHeight,
	}, nil
}

func mapOutPointBalanceTypeToArgs(src *entity.OutPointBalance) ([]any, error) {
	amount, err := numericFromUint128(&src.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse amount")
	}
	var spentHeight pgtype.Int4
	if src.SpentHeight != nil {
		spentHeight = pgtype.Int4{Int32: int32(*src.SpentHeight), Valid: true}
	}
	return []any{
		src.RuneId.String(),
		hex.EncodeToString(src.PkScript),
		src.OutPoint.Hash.String(),
		int32(src.OutPoint.Index),
		amount,
		int32(src.BlockHeight),
		spentHeight,
	}, nil
}

func mapBalanceModelToType(src balanceModel, pkScript []byte) (*entity.Balance, error) {
	runeId, err := runes.NewRuneIdFromString(src.RuneID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse rune id")
	}
	amount, err := uint128FromNumeric(src.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse amount")
	}
	return &entity.Balance{
		PkScript: slices.Clone(pkScript),
		RuneId:   runeId,
		Amount:   lo.FromPtr(amount),
	}, nil
}

func sortBalances(balances []*entity.Balance) {
	slices.SortFunc(balances, func(a, b *entity.Balance) int {
		return a.RuneId.Cmp(b.RuneId)
	})
}

func mapLedgerEntryModelToType(src ledgerEntryModel) (*entity.LedgerEntry, error) {
	runeId, err := runes.NewRuneIdFromString(src.RuneID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse rune id")
	}
	txHash, err := chainhash.NewHashFromStr(src.TxHash)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse tx hash")
	}
	amount, err := uint128FromNumeric(src.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse amount")
	}
	operation := entity.LedgerOperation(src.Operation)
	if !operation.IsValid() {
		return nil, errors.Errorf("invalid ledger operation %q", src.Operation)
	}
	entry := &entity.LedgerEntry{
		RuneId:      runeId,
		BlockHeight: uint64(src.BlockHeight),
		TxIndex:     uint32(src.TxIndex),
		TxId:        *txHash,
		Amount:      lo.FromPtr(amount),
		Operation:   operation,
		EventIndex:  uint32(src.EventIndex),
		Timestamp:   src.Timestamp.UTC(),
	}
	if src.Output.Valid {
		entry.Output = lo.ToPtr(uint32(src.Output.Int32))
	}
	if src.Pkscript.Valid {
		pkScript, err := hex.DecodeString(src.Pkscript.String)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse pkscript")
		}
		entry.PkScript = pkScript
	}
	return entry, nil
}

func mapLedgerEntryTypeToArgs(src *entity.LedgerEntry) ([]any, error) {
	amount, err := numericFromUint128(&src.Amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse amount")
	}
	var (
		output   pgtype.Int4
		pkScript pgtype.Text
	)
	if src.Output != nil {
		output = pgtype.Int4{Int32: int32(*src.Output), Valid: true}
	}
	if src.PkScript != nil {
		pkScript = pgtype.Text{String: hex.EncodeToString(src.PkScript), Valid: true}
	}
	return []any{
		src.TxId.String(),
		int32(src.EventIndex),
		src.RuneId.String(),
		int32(src.BlockHeight),
		int32(src.TxIndex),
		output,
		pkScript,
		amount,
		string(src.Operation),
		src.Timestamp.UTC(),
	}, nil
}
