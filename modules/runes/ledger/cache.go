package ledger

import (
	"context"
	"log/slog"
	"slices"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/datagateway"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
)

// defaultSymbol is displayed for runes etched without a symbol.
const defaultSymbol = '¤'

var _ LedgerCache = (*Cache)(nil)

// Cache is a write-back LedgerCache. Reads go to state staged since the last Flush first, then to the store.
type Cache struct {
	activationHeight uint64

	ops []entity.LedgerOp

	entries   map[runes.RuneId]*runes.RuneEntry
	runeToId  map[runes.Rune]runes.RuneId
	runeCount *uint64

	// unspent outputs created since the last flush
	balances map[wire.OutPoint][]*entity.OutPointBalance
	spent    map[wire.OutPoint]struct{}

	tx *txContext
}

type txContext struct {
	loc     TxLocation
	inputs  []*wire.TxIn
	outputs []*wire.TxOut

	resolved    bool
	cenotaph    bool
	pointer     *uint32
	etched      *runes.RuneId
	unallocated map[runes.RuneId]uint128.Uint128
	allocated   []map[runes.RuneId]uint128.Uint128
	burned      map[runes.RuneId]uint128.Uint128
	touched     map[runes.RuneId]struct{}
	eventIndex  uint32
}

// NewCache creates a Cache for a network whose rune names unlock from activationHeight.
func NewCache(activationHeight uint64) *Cache {
	c := &Cache{activationHeight: activationHeight}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.ops = nil
	c.entries = make(map[runes.RuneId]*runes.RuneEntry)
	c.runeToId = make(map[runes.Rune]runes.RuneId)
	c.runeCount = nil
	c.balances = make(map[wire.OutPoint][]*entity.OutPointBalance)
	c.spent = make(map[wire.OutPoint]struct{})
	c.tx = nil
}

// Pending returns the number of staged ops not yet flushed.
func (c *Cache) Pending() int {
	return len(c.ops)
}

func (c *Cache) BeginTransaction(ctx context.Context, loc TxLocation, inputs []*wire.TxIn, outputs []*wire.TxOut) error {
	if c.tx != nil {
		return errors.Wrapf(ErrTransactionAlreadyOpen, "cannot begin tx %s, tx %s is open", loc.TxId, c.tx.loc.TxId)
	}
	c.tx = &txContext{
		loc:         loc,
		inputs:      inputs,
		outputs:     outputs,
		unallocated: make(map[runes.RuneId]uint128.Uint128),
		allocated:   make([]map[runes.RuneId]uint128.Uint128, len(outputs)),
		burned:      make(map[runes.RuneId]uint128.Uint128),
		touched:     make(map[runes.RuneId]struct{}),
	}
	return nil
}

func (c *Cache) current() (*txContext, error) {
	if c.tx == nil {
		return nil, errors.WithStack(ErrNoOpenTransaction)
	}
	return c.tx, nil
}

func (c *Cache) ApplyRunestone(ctx context.Context, db datagateway.LedgerReader, runestone *runes.Runestone, inputs []*wire.TxIn, outputs []*wire.TxOut) error {
	tx, err := c.current()
	if err != nil {
		return err
	}
	tx.setOutputs(inputs, outputs)
	tx.pointer = runestone.Pointer
	return errors.WithStack(c.resolveInputs(ctx, db))
}

func (c *Cache) ApplyEtching(ctx context.Context, db datagateway.LedgerReader, etching *runes.Etching) error {
	tx, err := c.current()
	if err != nil {
		return err
	}
	if err := c.resolveInputs(ctx, db); err != nil {
		return errors.WithStack(err)
	}

	name, ok, err := c.etchableRune(ctx, db, etching.Rune)
	if err != nil {
		return errors.WithStack(err)
	}
	if !ok {
		return nil
	}

	entry, err := c.createRuneEntry(ctx, db, name)
	if err != nil {
		return errors.WithStack(err)
	}
	entry.Divisibility = lo.FromPtr(etching.Divisibility)
	entry.Premine = lo.FromPtr(etching.Premine)
	entry.SpacedRune.Spacers = lo.FromPtr(etching.Spacers)
	entry.Symbol = lo.FromPtrOr(etching.Symbol, defaultSymbol)
	entry.Terms = etching.Terms
	entry.Turbo = etching.Turbo
	c.stageRuneEntry(entry)

	c.stageLedgerEntry(entry.RuneId, entity.LedgerOperationEtching, entry.Premine, nil, nil)
	if !entry.Premine.IsZero() {
		if err := addAmount(tx.unallocated, entry.RuneId, entry.Premine); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func (c *Cache) ApplyMint(ctx context.Context, db datagateway.LedgerReader, runeId runes.RuneId) error {
	tx, err := c.current()
	if err != nil {
		return err
	}
	amount, ok, err := c.mint(ctx, db, runeId)
	if err != nil || !ok {
		return errors.WithStack(err)
	}
	return errors.WithStack(addAmount(tx.unallocated, runeId, amount))
}

func (c *Cache) ApplyEdict(ctx context.Context, db datagateway.LedgerReader, edict runes.Edict) error {
	tx, err := c.current()
	if err != nil {
		return err
	}
	if int(edict.Output) > len(tx.outputs) {
		return errors.Wrapf(errs.InvalidArgument, "edict output %d is greater than output count %d", edict.Output, len(tx.outputs))
	}

	id := edict.Id
	if id.IsZero() {
		if tx.etched == nil {
			return nil
		}
		id = *tx.etched
	}
	if _, ok := tx.unallocated[id]; !ok {
		return nil
	}

	allocate := func(amount uint128.Uint128, output int) {
		if amount.IsZero() {
			return
		}
		tx.unallocated[id] = tx.unallocated[id].Sub(amount)
		if tx.allocated[output] == nil {
			tx.allocated[output] = make(map[runes.RuneId]uint128.Uint128)
		}
		// allocated amounts never exceed the unallocated balance they came from
		tx.allocated[output][id] = tx.allocated[output][id].Add(amount)
	}

	if int(edict.Output) == len(tx.outputs) {
		destinations := make([]int, 0, len(tx.outputs))
		for i, output := range tx.outputs {
			if !isOpReturn(output.PkScript) {
				destinations = append(destinations, i)
			}
		}
		if len(destinations) == 0 {
			return nil
		}
		if edict.Amount.IsZero() {
			amount, remainder := tx.unallocated[id].QuoRem64(uint64(len(destinations)))
			for i, output := range destinations {
				if uint64(i) < remainder {
					allocate(amount.Add64(1), output)
				} else {
					allocate(amount, output)
				}
			}
			return nil
		}
		for _, output := range destinations {
			allocate(minAmount(edict.Amount, tx.unallocated[id]), output)
		}
		return nil
	}

	amount := tx.unallocated[id]
	if !edict.Amount.IsZero() {
		amount = minAmount(edict.Amount, amount)
	}
	allocate(amount, int(edict.Output))
	return nil
}

func (c *Cache) ApplyCenotaph(ctx context.Context, db datagateway.LedgerReader, cenotaph *runes.Cenotaph, inputs []*wire.TxIn) error {
	tx, err := c.current()
	if err != nil {
		return err
	}
	tx.setOutputs(inputs, tx.outputs)
	tx.cenotaph = true
	logger.DebugContext(ctx, "Transaction carries a cenotaph, input runes are burned",
		slog.String("tx_id", tx.loc.TxId.String()),
		slog.Any("flaws", cenotaph.Flaws.CollectAsString()),
	)
	return errors.WithStack(c.resolveInputs(ctx, db))
}

func (c *Cache) ApplyCenotaphEtching(ctx context.Context, db datagateway.LedgerReader, name *runes.Rune) error {
	if _, err := c.current(); err != nil {
		return err
	}
	if name == nil {
		return nil
	}
	if err := c.resolveInputs(ctx, db); err != nil {
		return errors.WithStack(err)
	}

	etched, ok, err := c.etchableRune(ctx, db, name)
	if err != nil {
		return errors.WithStack(err)
	}
	if !ok {
		return nil
	}
	entry, err := c.createRuneEntry(ctx, db, etched)
	if err != nil {
		return errors.WithStack(err)
	}
	entry.Symbol = defaultSymbol
	entry.Cenotaph = true
	c.stageRuneEntry(entry)
	c.stageLedgerEntry(entry.RuneId, entity.LedgerOperationEtching, uint128.Zero, nil, nil)
	return nil
}

// ApplyCenotaphMint counts the mint against the rune's cap. The minted amount is burned at EndTransaction.
func (c *Cache) ApplyCenotaphMint(ctx context.Context, db datagateway.LedgerReader, runeId runes.RuneId) error {
	return c.ApplyMint(ctx, db, runeId)
}

func (c *Cache) EndTransaction(ctx context.Context, db datagateway.LedgerReader) error {
	tx, err := c.current()
	if err != nil {
		return err
	}
	if err := c.resolveInputs(ctx, db); err != nil {
		return errors.WithStack(err)
	}

	if tx.cenotaph {
		for _, id := range sortedRuneIds(tx.unallocated) {
			if err := addAmount(tx.burned, id, tx.unallocated[id]); err != nil {
				return errors.WithStack(err)
			}
		}
	} else {
		vout, ok := tx.leftoverOutput()
		for _, id := range sortedRuneIds(tx.unallocated) {
			balance := tx.unallocated[id]
			if balance.IsZero() {
				continue
			}
			if ok {
				if tx.allocated[vout] == nil {
					tx.allocated[vout] = make(map[runes.RuneId]uint128.Uint128)
				}
				if err := addAmount(tx.allocated[vout], id, balance); err != nil {
					return errors.WithStack(err)
				}
			} else if err := addAmount(tx.burned, id, balance); err != nil {
				return errors.WithStack(err)
			}
		}
	}

	for vout, balances := range tx.allocated {
		if len(balances) == 0 {
			continue
		}
		pkScript := tx.outputs[vout].PkScript
		if isOpReturn(pkScript) {
			for _, id := range sortedRuneIds(balances) {
				if err := addAmount(tx.burned, id, balances[id]); err != nil {
					return errors.WithStack(err)
				}
			}
			continue
		}
		outPoint := wire.OutPoint{Hash: tx.loc.TxId, Index: uint32(vout)}
		for _, id := range sortedRuneIds(balances) {
			balance := &entity.OutPointBalance{
				RuneId:      id,
				PkScript:    pkScript,
				OutPoint:    outPoint,
				Amount:      balances[id],
				BlockHeight: tx.loc.BlockHeight,
			}
			c.balances[outPoint] = append(c.balances[outPoint], balance)
			c.ops = append(c.ops, entity.CreateOutPointBalanceOp{Balance: balance})
			c.stageLedgerEntry(id, entity.LedgerOperationReceive, balance.Amount, lo.ToPtr(uint32(vout)), pkScript)
		}
	}

	for _, id := range sortedRuneIds(tx.burned) {
		amount := tx.burned[id]
		if amount.IsZero() {
			continue
		}
		entry, err := c.getRuneEntry(ctx, db, id)
		if err != nil {
			return errors.WithStack(err)
		}
		if entry == nil {
			return errors.Wrapf(errs.InternalError, "burned rune %s has no entry", id)
		}
		burned, overflow := entry.BurnedAmount.AddOverflow(amount)
		if overflow {
			return errors.Wrapf(errs.OverflowUint128, "burned amount of rune %s", id)
		}
		entry.BurnedAmount = burned
		tx.touched[id] = struct{}{}
		c.stageLedgerEntry(id, entity.LedgerOperationBurn, amount, nil, nil)
	}

	for _, id := range sortedKeys(tx.touched) {
		entry := c.entries[id]
		c.ops = append(c.ops, entity.UpdateRuneEntryOp{
			RuneId:       id,
			Mints:        entry.Mints,
			BurnedAmount: entry.BurnedAmount,
		})
	}

	c.tx = nil
	return nil
}

func (c *Cache) Flush(ctx context.Context, db datagateway.LedgerWriter) error {
	if c.tx != nil {
		return errors.Wrap(ErrTransactionAlreadyOpen, "cannot flush while a transaction is open")
	}
	if len(c.ops) == 0 {
		return nil
	}
	if err := db.WriteLedgerOps(ctx, c.ops); err != nil {
		return errors.Wrap(err, "failed to write ledger ops")
	}
	logger.DebugContext(ctx, "Flushed ledger cache", slog.Int("ops", len(c.ops)))
	c.reset()
	return nil
}

func (tx *txContext) setOutputs(inputs []*wire.TxIn, outputs []*wire.TxOut) {
	tx.inputs = inputs
	if len(outputs) != len(tx.outputs) {
		tx.allocated = make([]map[runes.RuneId]uint128.Uint128, len(outputs))
	}
	tx.outputs = outputs
}

// leftoverOutput is the pointer output, else the first non-OP_RETURN output.
func (tx *txContext) leftoverOutput() (int, bool) {
	if tx.pointer != nil && int(*tx.pointer) < len(tx.outputs) {
		return int(*tx.pointer), true
	}
	for i, output := range tx.outputs {
		if !isOpReturn(output.PkScript) {
			return i, true
		}
	}
	return 0, false
}

// resolveInputs moves the balances held by the transaction's inputs into unallocated and spends them.
func (c *Cache) resolveInputs(ctx context.Context, db datagateway.LedgerReader) error {
	tx := c.tx
	if tx.resolved {
		return nil
	}
	tx.resolved = true

	for _, input := range tx.inputs {
		outPoint := input.PreviousOutPoint
		if isNullOutPoint(outPoint) {
			continue
		}
		balances, err := c.getOutPointBalances(ctx, db, outPoint)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(balances) == 0 {
			continue
		}
		for _, balance := range balances {
			if err := addAmount(tx.unallocated, balance.RuneId, balance.Amount); err != nil {
				return errors.WithStack(err)
			}
			c.stageLedgerEntry(balance.RuneId, entity.LedgerOperationSend, balance.Amount, nil, balance.PkScript)
		}
		delete(c.balances, outPoint)
		c.spent[outPoint] = struct{}{}
		c.ops = append(c.ops, entity.SpendOutPointOp{OutPoint: outPoint, SpentHeight: tx.loc.BlockHeight})
	}
	return nil
}

func (c *Cache) getOutPointBalances(ctx context.Context, db datagateway.LedgerReader, outPoint wire.OutPoint) ([]*entity.OutPointBalance, error) {
	if _, ok := c.spent[outPoint]; ok {
		return nil, nil
	}
	if balances, ok := c.balances[outPoint]; ok {
		return balances, nil
	}
	balances, err := db.GetOutPointBalances(ctx, outPoint)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get balances of outpoint %s", outPoint)
	}
	return balances, nil
}

// getRuneEntry returns nil if the entry does not exist.
func (c *Cache) getRuneEntry(ctx context.Context, db datagateway.LedgerReader, runeId runes.RuneId) (*runes.RuneEntry, error) {
	if entry, ok := c.entries[runeId]; ok {
		return entry, nil
	}
	entry, err := db.GetRuneEntryByRuneId(ctx, runeId)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to get rune entry %s", runeId)
	}
	c.entries[runeId] = entry
	c.runeToId[entry.SpacedRune.Rune] = runeId
	return entry, nil
}

// etchableRune returns the rune to etch, or false if the etching must be ignored.
func (c *Cache) etchableRune(ctx context.Context, db datagateway.LedgerReader, name *runes.Rune) (runes.Rune, bool, error) {
	tx := c.tx
	if name == nil {
		return runes.GetReservedRune(tx.loc.BlockHeight, tx.loc.TxIndex), true, nil
	}

	logger := logger.FromContext(ctx).With(slog.String("rune", name.String()), slog.String("tx_id", tx.loc.TxId.String()))
	if minimum := runes.MinimumRuneAtHeight(c.activationHeight, tx.loc.BlockHeight); name.Cmp(minimum) < 0 {
		logger.DebugContext(ctx, "Ignored etching, rune is below the minimum", slog.String("minimum", minimum.String()))
		return runes.Rune{}, false, nil
	}
	if name.IsReserved() {
		logger.DebugContext(ctx, "Ignored etching, rune is reserved")
		return runes.Rune{}, false, nil
	}
	if _, ok := c.runeToId[*name]; ok {
		logger.DebugContext(ctx, "Ignored etching, rune already exists")
		return runes.Rune{}, false, nil
	}
	if _, err := db.GetRuneEntryByRune(ctx, *name); err == nil {
		logger.DebugContext(ctx, "Ignored etching, rune already exists")
		return runes.Rune{}, false, nil
	} else if !errors.Is(err, errs.NotFound) {
		return runes.Rune{}, false, errors.Wrap(err, "failed to get rune entry by rune")
	}
	return *name, true, nil
}

func (c *Cache) createRuneEntry(ctx context.Context, db datagateway.LedgerReader, name runes.Rune) (*runes.RuneEntry, error) {
	tx := c.tx
	if c.runeCount == nil {
		count, err := db.CountRuneEntries(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to count rune entries")
		}
		c.runeCount = &count
	}
	number := *c.runeCount
	*c.runeCount++

	runeId := runes.RuneId{BlockHeight: tx.loc.BlockHeight, TxIndex: tx.loc.TxIndex}
	tx.etched = &runeId
	return &runes.RuneEntry{
		RuneId:       runeId,
		Number:       number,
		SpacedRune:   runes.NewSpacedRune(name, 0),
		EtchingBlock: tx.loc.BlockHeight,
		EtchingTxId:  tx.loc.TxId,
		EtchedAt:     tx.loc.Timestamp,
	}, nil
}

func (c *Cache) stageRuneEntry(entry *runes.RuneEntry) {
	c.entries[entry.RuneId] = entry
	c.runeToId[entry.SpacedRune.Rune] = entry.RuneId
	snapshot := *entry
	c.ops = append(c.ops, entity.CreateRuneEntryOp{Entry: &snapshot})
}

// mint returns false if runeId cannot be minted at the current height. A rune cannot be minted by
// the transaction that etches it.
func (c *Cache) mint(ctx context.Context, db datagateway.LedgerReader, runeId runes.RuneId) (uint128.Uint128, bool, error) {
	tx := c.tx
	if tx.etched != nil && *tx.etched == runeId {
		return uint128.Zero, false, nil
	}
	entry, err := c.getRuneEntry(ctx, db, runeId)
	if err != nil {
		return uint128.Zero, false, errors.WithStack(err)
	}
	if entry == nil {
		logger.DebugContext(ctx, "Ignored mint, rune does not exist", slog.String("rune_id", runeId.String()))
		return uint128.Zero, false, nil
	}
	amount, err := entry.GetMintableAmount(tx.loc.BlockHeight)
	if err != nil {
		logger.DebugContext(ctx, "Ignored mint", slog.String("rune_id", runeId.String()), slog.String("reason", err.Error()))
		return uint128.Zero, false, nil
	}
	entry.Mints = entry.Mints.Add64(1)
	tx.touched[runeId] = struct{}{}
	c.stageLedgerEntry(runeId, entity.LedgerOperationMint, amount, nil, nil)
	return amount, true, nil
}

func (c *Cache) stageLedgerEntry(runeId runes.RuneId, operation entity.LedgerOperation, amount uint128.Uint128, output *uint32, pkScript []byte) {
	tx := c.tx
	c.ops = append(c.ops, entity.CreateLedgerEntryOp{Entry: &entity.LedgerEntry{
		RuneId:      runeId,
		BlockHeight: tx.loc.BlockHeight,
		TxIndex:     tx.loc.TxIndex,
		TxId:        tx.loc.TxId,
		Output:      output,
		PkScript:    pkScript,
		Amount:      amount,
		Operation:   operation,
		EventIndex:  tx.eventIndex,
		Timestamp:   tx.loc.Timestamp,
	}})
	tx.eventIndex++
}

func addAmount(balances map[runes.RuneId]uint128.Uint128, runeId runes.RuneId, amount uint128.Uint128) error {
	sum, overflow := balances[runeId].AddOverflow(amount)
	if overflow {
		return errors.Wrapf(errs.OverflowUint128, "balance of rune %s", runeId)
	}
	balances[runeId] = sum
	return nil
}

func minAmount(a, b uint128.Uint128) uint128.Uint128 {
	if a.Cmp(b) < 0 {
		return a
	}
	return b
}

func sortedRuneIds(balances map[runes.RuneId]uint128.Uint128) []runes.RuneId {
	return sortedKeys(balances)
}

func sortedKeys[V any](m map[runes.RuneId]V) []runes.RuneId {
	ids := lo.Keys(m)
	slices.SortFunc(ids, func(a, b runes.RuneId) int { return a.Cmp(b) })
	return ids
}

func isOpReturn(pkScript []byte) bool {
	return len(pkScript) > 0 && pkScript[0] == txscript.OP_RETURN
}

func isNullOutPoint(outPoint wire.OutPoint) bool {
	return outPoint.Index == wire.MaxPrevOutIndex && outPoint.Hash == (chainhash.Hash{})
}
