// Package memory is an in-process RunesDataGateway. Ledger transactions work on a private copy of the
// committed state which replaces it on Commit.
package memory

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/datagateway"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
)

var ErrTxClosed = errors.New("ledger transaction is already closed")

var _ datagateway.RunesDataGateway = (*Repository)(nil)

type Repository struct {
	mu    sync.RWMutex
	state *state

	// holds a token while a ledger transaction is open
	writeSem chan struct{}
}

func NewRepository() *Repository {
	return &Repository{
		state:    newState(),
		writeSem: make(chan struct{}, 1),
	}
}

func (r *Repository) committed() *state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// BeginLedgerTx waits for the open ledger transaction, if any, to finish or for ctx to be done.
func (r *Repository) BeginLedgerTx(ctx context.Context) (datagateway.LedgerTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "can't begin ledger transaction")
	}
	select {
	case r.writeSem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "can't begin ledger transaction")
	}
	return &ledgerTx{repo: r, state: r.committed().clone()}, nil
}

func (r *Repository) GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error) {
	return r.committed().GetLatestIndexedBlock(ctx)
}

func (r *Repository) GetRuneEntryByRuneId(ctx context.Context, runeId runes.RuneId) (*runes.RuneEntry, error) {
	return r.committed().GetRuneEntryByRuneId(ctx, runeId)
}

func (r *Repository) GetRuneEntryByRune(ctx context.Context, rune runes.Rune) (*runes.RuneEntry, error) {
	return r.committed().GetRuneEntryByRune(ctx, rune)
}

func (r *Repository) GetRuneEntryByRuneIdBatch(ctx context.Context, runeIds []runes.RuneId) (map[runes.RuneId]*runes.RuneEntry, error) {
	s := r.committed()
	result := make(map[runes.RuneId]*runes.RuneEntry, len(runeIds))
	for _, runeId := range runeIds {
		if entry, ok := s.entries[runeId]; ok {
			result[runeId] = copyEntry(entry)
		}
	}
	return result, nil
}

func (r *Repository) GetRuneEntries(ctx context.Context, limit int32, offset int32) ([]*runes.RuneEntry, error) {
	s := r.committed()
	if offset < 0 || limit < 0 {
		return nil, errors.Wrap(errs.InvalidArgument, "limit and offset must not be negative")
	}
	if int(offset) >= len(s.order) {
		return []*runes.RuneEntry{}, nil
	}
	ids := s.order[offset:min(int(offset)+int(limit), len(s.order))]
	return lo.Map(ids, func(id runes.RuneId, _ int) *runes.RuneEntry {
		return copyEntry(s.entries[id])
	}), nil
}

func (r *Repository) CountRuneEntries(ctx context.Context) (uint64, error) {
	return uint64(len(r.committed().order)), nil
}

func (r *Repository) GetBalancesByPkScript(ctx context.Context, pkScript []byte) ([]*entity.Balance, error) {
	s := r.committed()
	totals := make(map[runes.RuneId]uint128.Uint128)
	for _, balances := range s.balances {
		for _, balance := range balances {
			if balance.SpentHeight != nil || !bytes.Equal(balance.PkScript, pkScript) {
				continue
			}
			sum, overflow := totals[balance.RuneId].AddOverflow(balance.Amount)
			if overflow {
				return nil, errors.Wrapf(errs.OverflowUint128, "balance of rune %s", balance.RuneId)
			}
			totals[balance.RuneId] = sum
		}
	}
	ids := lo.Keys(totals)
	slices.SortFunc(ids, func(a, b runes.RuneId) int { return a.Cmp(b) })
	return lo.Map(ids, func(id runes.RuneId, _ int) *entity.Balance {
		return &entity.Balance{PkScript: slices.Clone(pkScript), RuneId: id, Amount: totals[id]}
	}), nil
}

func (r *Repository) GetOutPointBalances(ctx context.Context, outPoint wire.OutPoint) ([]*entity.OutPointBalance, error) {
	return r.committed().GetOutPointBalances(ctx, outPoint)
}

func (r *Repository) GetLedgerEntriesByTxId(ctx context.Context, txId chainhash.Hash) ([]*entity.LedgerEntry, error) {
	s := r.committed()
	result := make([]*entity.LedgerEntry, 0)
	for _, entry := range s.ledger {
		if entry.TxId == txId {
			copied := *entry
			result = append(result, &copied)
		}
	}
	return result, nil
}

type ledgerTx struct {
	repo   *Repository
	state  *state
	closed bool
}

var _ datagateway.LedgerTx = (*ledgerTx)(nil)

func (tx *ledgerTx) GetRuneEntryByRuneId(ctx context.Context, runeId runes.RuneId) (*runes.RuneEntry, error) {
	return tx.state.GetRuneEntryByRuneId(ctx, runeId)
}

func (tx *ledgerTx) GetRuneEntryByRune(ctx context.Context, rune runes.Rune) (*runes.RuneEntry, error) {
	return tx.state.GetRuneEntryByRune(ctx, rune)
}

func (tx *ledgerTx) CountRuneEntries(ctx context.Context) (uint64, error) {
	return uint64(len(tx.state.order)), nil
}

func (tx *ledgerTx) GetOutPointBalances(ctx context.Context, outPoint wire.OutPoint) ([]*entity.OutPointBalance, error) {
	return tx.state.GetOutPointBalances(ctx, outPoint)
}

func (tx *ledgerTx) GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error) {
	return tx.state.GetLatestIndexedBlock(ctx)
}

func (tx *ledgerTx) WriteLedgerOps(ctx context.Context, ops []entity.LedgerOp) error {
	if tx.closed {
		return errors.WithStack(ErrTxClosed)
	}
	for i, op := range ops {
		if err := tx.state.apply(op); err != nil {
			return errors.Wrapf(err, "failed to apply ledger op %d", i)
		}
	}
	return nil
}

func (tx *ledgerTx) CreateIndexedBlock(ctx context.Context, block *entity.IndexedBlock) error {
	if tx.closed {
		return errors.WithStack(ErrTxClosed)
	}
	copied := *block
	tx.state.blocks = append(tx.state.blocks, &copied)
	return nil
}

func (tx *ledgerTx) Commit(ctx context.Context) error {
	if tx.closed {
		return errors.WithStack(ErrTxClosed)
	}
	tx.closed = true
	tx.repo.mu.Lock()
	tx.repo.state = tx.state
	tx.repo.mu.Unlock()
	<-tx.repo.writeSem
	return nil
}

// Rollback discards the transaction's writes. Rolling back a closed transaction is a no-op.
func (tx *ledgerTx) Rollback(ctx context.Context) error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	<-tx.repo.writeSem
	return nil
}
