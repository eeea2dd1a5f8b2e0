package runes

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/datagateway"
	"github.com/gaze-network/runes-ledger/modules/runes/ledger"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
)

type CommandKind int

const (
	CommandKindRunestone CommandKind = iota + 1
	CommandKindEtching
	CommandKindMint
	CommandKindEdict
	CommandKindCenotaph
	CommandKindCenotaphEtching
	CommandKindCenotaphMint
)

func (k CommandKind) String() string {
	switch k {
	case CommandKindRunestone:
		return "runestone"
	case CommandKindEtching:
		return "etching"
	case CommandKindMint:
		return "mint"
	case CommandKindEdict:
		return "edict"
	case CommandKindCenotaph:
		return "cenotaph"
	case CommandKindCenotaphEtching:
		return "cenotaph_etching"
	case CommandKindCenotaphMint:
		return "cenotaph_mint"
	}
	return "unknown"
}

// Command is one ledger cache call derived from a transaction's artifact.
// Only the fields relevant to Kind are set.
type Command struct {
	Kind CommandKind

	Runestone    *runes.Runestone
	Cenotaph     *runes.Cenotaph
	Etching      *runes.Etching
	CenotaphRune *runes.Rune
	RuneId       runes.RuneId
	Edict        runes.Edict

	Inputs  []*wire.TxIn
	Outputs []*wire.TxOut
}

// PlanCommands returns the ledger cache calls for artifact in application order.
// A runestone yields runestone, [etching], [mint], then its edicts in order. A cenotaph yields
// cenotaph, [cenotaph etching], [cenotaph mint] and never edicts. No artifact yields no commands.
func PlanCommands(artifact runes.Artifact, tx *wire.MsgTx) []Command {
	switch artifact := artifact.(type) {
	case *runes.Runestone:
		commands := make([]Command, 0, 3+len(artifact.Edicts))
		commands = append(commands, Command{
			Kind:      CommandKindRunestone,
			Runestone: artifact,
			Inputs:    tx.TxIn,
			Outputs:   tx.TxOut,
		})
		if artifact.Etching != nil {
			commands = append(commands, Command{Kind: CommandKindEtching, Etching: artifact.Etching})
		}
		if artifact.Mint != nil {
			commands = append(commands, Command{Kind: CommandKindMint, RuneId: *artifact.Mint})
		}
		for _, edict := range artifact.Edicts {
			commands = append(commands, Command{Kind: CommandKindEdict, Edict: edict})
		}
		return commands
	case *runes.Cenotaph:
		commands := []Command{{
			Kind:     CommandKindCenotaph,
			Cenotaph: artifact,
			Inputs:   tx.TxIn,
		}}
		if artifact.Etching != nil {
			commands = append(commands, Command{Kind: CommandKindCenotaphEtching, CenotaphRune: artifact.Etching})
		}
		if artifact.Mint != nil {
			commands = append(commands, Command{Kind: CommandKindCenotaphMint, RuneId: *artifact.Mint})
		}
		return commands
	}
	return nil
}

// Apply runs the command against cache within the open transaction context.
func (c Command) Apply(ctx context.Context, cache ledger.LedgerCache, db datagateway.LedgerTx) error {
	var err error
	switch c.Kind {
	case CommandKindRunestone:
		err = cache.ApplyRunestone(ctx, db, c.Runestone, c.Inputs, c.Outputs)
	case CommandKindEtching:
		err = cache.ApplyEtching(ctx, db, c.Etching)
	case CommandKindMint:
		err = cache.ApplyMint(ctx, db, c.RuneId)
	case CommandKindEdict:
		err = cache.ApplyEdict(ctx, db, c.Edict)
	case CommandKindCenotaph:
		err = cache.ApplyCenotaph(ctx, db, c.Cenotaph, c.Inputs)
	case CommandKindCenotaphEtching:
		err = cache.ApplyCenotaphEtching(ctx, db, c.CenotaphRune)
	case CommandKindCenotaphMint:
		err = cache.ApplyCenotaphMint(ctx, db, c.RuneId)
	default:
		return errors.Wrapf(errs.InternalError, "unknown command kind %d", c.Kind)
	}
	return errors.Wrapf(err, "failed to apply %s", c.Kind)
}
