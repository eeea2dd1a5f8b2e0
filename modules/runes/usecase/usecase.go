package usecase

import (
	"github.com/gaze-network/runes-ledger/modules/runes/datagateway"
)

type Usecase struct {
	runesDg datagateway.RunesReaderDataGateway
}

func New(runesDg datagateway.RunesReaderDataGateway) *Usecase {
	return &Usecase{
		runesDg: runesDg,
	}
}
