package memory

import (
	"context"
	"slices"

	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/samber/lo"
)

type state struct {
	entries  map[runes.RuneId]*runes.RuneEntry
	runeToId map[runes.Rune]runes.RuneId
	// rune ids in etching order
	order    []runes.RuneId
	balances map[wire.OutPoint][]*entity.OutPointBalance
	ledger   []*entity.LedgerEntry
	blocks   []*entity.IndexedBlock
}

func newState() *state {
	return &state{
		entries:  make(map[runes.RuneId]*runes.RuneEntry),
		runeToId: make(map[runes.Rune]runes.RuneId),
		balances: make(map[wire.OutPoint][]*entity.OutPointBalance),
	}
}

// clone deep copies every mutable record. Ledger entries and blocks are append-only and shared.
func (s *state) clone() *state {
	c := &state{
		entries:  make(map[runes.RuneId]*runes.RuneEntry, len(s.entries)),
		runeToId: make(map[runes.Rune]runes.RuneId, len(s.runeToId)),
		order:    slices.Clone(s.order),
		balances: make(map[wire.OutPoint][]*entity.OutPointBalance, len(s.balances)),
		ledger:   slices.Clip(s.ledger),
		blocks:   slices.Clip(s.blocks),
	}
	for id, entry := range s.entries {
		c.entries[id] = copyEntry(entry)
	}
	for name, id := range s.runeToId {
		c.runeToId[name] = id
	}
	for outPoint, balances := range s.balances {
		c.balances[outPoint] = lo.Map(balances, func(b *entity.OutPointBalance, _ int) *entity.OutPointBalance {
			return copyBalance(b)
		})
	}
	return c
}

func (s *state) apply(op entity.LedgerOp) error {
	switch op := op.(type) {
	case entity.CreateRuneEntryOp:
		entry := op.Entry
		if _, ok := s.entries[entry.RuneId]; ok {
			return errors.Wrapf(errs.InternalError, "rune entry %s already exists", entry.RuneId)
		}
		if _, ok := s.runeToId[entry.SpacedRune.Rune]; ok {
			return errors.Wrapf(errs.InternalError, "rune %s already exists", entry.SpacedRune.Rune)
		}
		s.entries[entry.RuneId] = copyEntry(entry)
		s.runeToId[entry.SpacedRune.Rune] = entry.RuneId
		s.order = append(s.order, entry.RuneId)
	case entity.UpdateRuneEntryOp:
		entry, ok := s.entries[op.RuneId]
		if !ok {
			return errors.Wrapf(errs.NotFound, "rune entry %s", op.RuneId)
		}
		entry.Mints = op.Mints
		entry.BurnedAmount = op.BurnedAmount
	case entity.CreateOutPointBalanceOp:
		s.balances[op.Balance.OutPoint] = append(s.balances[op.Balance.OutPoint], copyBalance(op.Balance))
	case entity.SpendOutPointOp:
		for _, balance := range s.balances[op.OutPoint] {
			if balance.SpentHeight == nil {
				balance.SpentHeight = lo.ToPtr(op.SpentHeight)
			}
		}
	case entity.CreateLedgerEntryOp:
		copied := *op.Entry
		s.ledger = append(s.ledger, &copied)
	default:
		return errors.Wrapf(errs.Unsupported, "ledger op %T", op)
	}
	return nil
}

func (s *state) GetRuneEntryByRuneId(ctx context.Context, runeId runes.RuneId) (*runes.RuneEntry, error) {
	entry, ok := s.entries[runeId]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return copyEntry(entry), nil
}

func (s *state) GetRuneEntryByRune(ctx context.Context, rune runes.Rune) (*runes.RuneEntry, error) {
	id, ok := s.runeToId[rune]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return s.GetRuneEntryByRuneId(ctx, id)
}

func (s *state) GetOutPointBalances(ctx context.Context, outPoint wire.OutPoint) ([]*entity.OutPointBalance, error) {
	result := make([]*entity.OutPointBalance, 0)
	for _, balance := range s.balances[outPoint] {
		if balance.SpentHeight == nil {
			result = append(result, copyBalance(balance))
		}
	}
	return result, nil
}

func (s *state) GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error) {
	if len(s.blocks) == 0 {
		return nil, errors.WithStack(errs.NotFound)
	}
	copied := *s.blocks[len(s.blocks)-1]
	return &copied, nil
}

func copyEntry(entry *runes.RuneEntry) *runes.RuneEntry {
	copied := *entry
	return &copied
}

func copyBalance(balance *entity.OutPointBalance) *entity.OutPointBalance {
	copied := *balance
	copied.PkScript = slices.Clone(balance.PkScript)
	if balance.SpentHeight != nil {
		copied.SpentHeight = lo.ToPtr(*balance.SpentHeight)
	}
	return &copied
}
