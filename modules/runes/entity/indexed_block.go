package entity

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// IndexedBlock is the persisted cursor of the indexer.
type IndexedBlock struct {
	Height    uint64
	Hash      chainhash.Hash
	PrevHash  chainhash.Hash
	Timestamp time.Time
}
