package blockchain

import (
	"context"
	"math"

	"golang.org/x/xerrors"
)

// checkInterval is how many nonces are tried between two looks at the
// context.
const checkInterval = 1 << 10

// ValidDifficulty reports whether difficulty can be used by the miner.
func ValidDifficulty(difficulty int) bool {
	return difficulty >= 0 && difficulty <= MaxDifficulty
}

// MeetsDifficulty reports whether the hex digest of hash starts with
// difficulty '0' characters.
func MeetsDifficulty(hash BlockID, difficulty int) bool {
	if !ValidDifficulty(difficulty) || difficulty > len(hash)*2 {
		return false
	}
	for i := 0; i < difficulty; i++ {
		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		}
		if nibble&0x0f != 0 {
			return false
		}
	}
	return true
}

// Mine searches the nonce space upward from 0 and returns the first nonce
// whose hash over (prev, data, nonce) meets the difficulty. The search only
// stops early when ctx is done.
func Mine(ctx context.Context, prev BlockID, data BlockData, difficulty int) (uint64, BlockID, error) {
	if !ValidDifficulty(difficulty) {
		return 0, nil, xerrors.Errorf("difficulty %d: %w", difficulty, ErrInvalidDifficulty)
	}
	payload, err := encodeData(data)
	if err != nil {
		return 0, nil, err
	}
	for nonce := uint64(0); ; nonce++ {
		if nonce%checkInterval == 0 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			default:
				// Non-blocking select to fall through
			}
		}
		hash, err := hashPayload(prev, payload, nonce)
		if err != nil {
			return 0, nil, err
		}
		if MeetsDifficulty(hash, difficulty) {
			return nonce, hash, nil
		}
		if nonce == math.MaxUint64 {
			return 0, nil, xerrors.New("nonce space exhausted")
		}
	}
}
