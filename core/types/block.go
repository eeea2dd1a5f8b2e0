package types

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/samber/lo"
)

// HexPrefix prefixes every hash and script string supplied by the block-data provider.
const HexPrefix = "0x"

type BlockIdentifier struct {
	Index uint64
	Hash  string
}

// Block is a confirmed block as supplied by the block-data provider.
type Block struct {
	BlockIdentifier       BlockIdentifier
	ParentBlockIdentifier BlockIdentifier
	// Timestamp is the block time in unix seconds.
	Timestamp    uint32
	Transactions []*Transaction
}

func (b *Block) Height() uint64 {
	return b.BlockIdentifier.Index
}

// ParseMsgBlock converts a btcd/wire.MsgBlock into a provider Block at the given height.
func ParseMsgBlock(src *wire.MsgBlock, height uint64) *Block {
	parent := BlockIdentifier{Hash: HexPrefix + src.Header.PrevBlock.String()}
	if height > 0 {
		parent.Index = height - 1
	}
	return &Block{
		BlockIdentifier: BlockIdentifier{
			Index: height,
			Hash:  HexPrefix + src.Header.BlockHash().String(),
		},
		ParentBlockIdentifier: parent,
		Timestamp:             uint32(src.Header.Timestamp.Unix()),
		Transactions: lo.Map(src.Transactions, func(item *wire.MsgTx, index int) *Transaction {
			return ParseMsgTx(item, uint32(index))
		}),
	}
}

// EncodeHex renders bytes in the provider's "0x" hex form.
func EncodeHex(data []byte) string {
	return HexPrefix + hex.EncodeToString(data)
}

// TrimHexPrefix reports false if s does not carry the "0x" prefix.
func TrimHexPrefix(s string) (string, bool) {
	if !strings.HasPrefix(s, HexPrefix) {
		return "", false
	}
	return s[len(HexPrefix):], true
}
