package blockchain

import (
	"encoding/hex"

	"golang.org/x/xerrors"
)

// HashSize is the length in bytes of a block hash.
const HashSize = 32

// DefaultDifficulty is the number of leading '0' hex characters a mined
// block hash must carry.
const DefaultDifficulty = 4

// MaxDifficulty is the length of a hex encoded hash.
const MaxDifficulty = HashSize * 2

var (
	// ErrEmptySubject is returned when a transaction has no subject.
	ErrEmptySubject = xerrors.New("transaction subject is empty")
	// ErrInvalidDifficulty is returned for a difficulty outside [0, MaxDifficulty].
	ErrInvalidDifficulty = xerrors.New("invalid difficulty")
	// ErrNothingToMine is returned by MineNext when the pending pool is empty.
	ErrNothingToMine = xerrors.New("no pending transactions")
	// ErrIntegrity marks every failure of the chain's tamper evidence. The
	// audit trail can not be trusted once it shows up.
	ErrIntegrity = xerrors.New("chain integrity violated")
)

// BlockID represents the Hash of the Block
type BlockID []byte

// String returns the lower case hex digest.
func (id BlockID) String() string {
	return hex.EncodeToString(id)
}

// Equal compares two ids byte by byte.
func (id BlockID) Equal(other BlockID) bool {
	if len(id) != len(other) {
		return false
	}
	for i := range id {
		if id[i] != other[i] {
			return false
		}
	}
	return true
}

// Copy returns an independent copy of the id.
func (id BlockID) Copy() BlockID {
	if id == nil {
		return nil
	}
	c := make(BlockID, len(id))
	copy(c, id)
	return c
}

// ParseBlockID decodes a hex digest, with or without a 0x prefix.
func ParseBlockID(s string) (BlockID, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode %s: %w", s, err)
	}
	if len(buf) != HashSize {
		return nil, xerrors.Errorf("block id must be %d bytes, got %d", HashSize, len(buf))
	}
	return BlockID(buf), nil
}

// sentinelHash is the previous hash of the genesis block.
var sentinelHash = make(BlockID, HashSize)

// SentinelHash returns the all-zero previous hash carried by genesis.
func SentinelHash() BlockID {
	return sentinelHash.Copy()
}
