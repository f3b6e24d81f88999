package blockchain

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// BlockData is the hashed payload of a block besides the previous hash and
// the nonce.
type BlockData struct {
	Index        uint64
	Transactions []Transaction
}

// Block is a hash linked batch of committed transactions.
type Block struct {
	// Index of the block in the chain. Index = 0 -> genesis-block.
	Index uint64
	// Time the block was created, in unix nanoseconds.
	Timestamp int64
	// Transactions committed by this block, in submission order.
	Transactions []Transaction
	// Nonce found by the proof-of-work search.
	Nonce uint64
	// Hash of the previous block in the block chain.
	PrevBlock BlockID
	// Hash of PrevBlock, Data() and Nonce.
	Hash BlockID
	// Sealer is the hex public key of the node that sealed the block.
	Sealer string
	// Signature is the Schnorr signature of Sealer over Hash.
	Signature []byte
}

// Data returns the hashed payload of the block.
func (b *Block) Data() BlockData {
	return BlockData{
		Index:        b.Index,
		Transactions: b.Transactions,
	}
}

// CalculateHash recomputes the hash of the block from its fields.
func (b *Block) CalculateHash() (BlockID, error) {
	return CalculateHash(b.PrevBlock, b.Data(), b.Nonce)
}

// CalculateHash hashes the previous hash, the canonical protobuf encoding of
// data and the little endian nonce.
func CalculateHash(prev BlockID, data BlockData, nonce uint64) (BlockID, error) {
	payload, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	return hashPayload(prev, payload, nonce)
}

func encodeData(data BlockData) ([]byte, error) {
	payload, err := protobuf.Encode(&data)
	if err != nil {
		return nil, xerrors.Errorf("encoding block data: %w", err)
	}
	return payload, nil
}

func hashPayload(prev BlockID, payload []byte, nonce uint64) (BlockID, error) {
	hash := sha256.New()
	hash.Write(prev)
	hash.Write(payload)
	if err := binary.Write(hash, binary.LittleEndian, nonce); err != nil {
		return nil, xerrors.Errorf("error writing to hash: %w", err)
	}
	return hash.Sum(nil), nil
}

// Time returns the block timestamp.
func (b *Block) Time() time.Time {
	return time.Unix(0, b.Timestamp)
}

// Copy makes a deep copy of the Block
func (b *Block) Copy() *Block {
	if b == nil {
		return nil
	}
	block := &Block{
		Index:        b.Index,
		Timestamp:    b.Timestamp,
		Transactions: copyTransactions(b.Transactions),
		Nonce:        b.Nonce,
		PrevBlock:    b.PrevBlock.Copy(),
		Hash:         b.Hash.Copy(),
		Sealer:       b.Sealer,
	}
	if b.Signature != nil {
		block.Signature = make([]byte, len(b.Signature))
		copy(block.Signature, b.Signature)
	}
	return block
}

func (b *Block) String() string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Block %d", b.Index))
	builder.WriteString(fmt.Sprintf("\n\tTimestamp: %s", b.Time().Format("2006-01-02 15:04:05")))
	builder.WriteString(fmt.Sprintf("\n\tNonce: %d", b.Nonce))
	builder.WriteString(fmt.Sprintf("\n\tPrevBlock: %s", b.PrevBlock))
	builder.WriteString(fmt.Sprintf("\n\tHash: %s", b.Hash))
	if b.Sealer != "" {
		builder.WriteString(fmt.Sprintf("\n\tSealer: %s", b.Sealer))
	}
	builder.WriteString(fmt.Sprintf("\n\tTransactions: %d", len(b.Transactions)))
	for _, tx := range b.Transactions {
		builder.WriteString(fmt.Sprintf("\n\t\t%s %s by %s", tx.Subject, tx.RecordedValue, tx.Actor))
	}
	return builder.String()
}
