package blockchain

import (
	"golang.org/x/xerrors"
)

// VerifyBlocks checks a sequence of blocks starting at genesis: every hash is
// recomputed, every block links to its predecessor with the next index,
// meets the difficulty, does not go back in time and carries a valid seal.
func VerifyBlocks(blocks []*Block, difficulty int) error {
	if len(blocks) == 0 {
		return xerrors.Errorf("empty chain: %w", ErrIntegrity)
	}
	if err := verifyGenesis(blocks[0]); err != nil {
		return err
	}
	for i := 1; i < len(blocks); i++ {
		if err := verifyBlock(blocks[i-1], blocks[i], difficulty); err != nil {
			return err
		}
	}
	return nil
}

// verifyBlock checks b as the successor of prev.
func verifyBlock(prev, b *Block, difficulty int) error {
	if err := verifyLink(prev, b); err != nil {
		return err
	}
	if err := verifyHash(b); err != nil {
		return err
	}
	if !MeetsDifficulty(b.Hash, difficulty) {
		return xerrors.Errorf("block %d hash %s misses difficulty %d: %w", b.Index, b.Hash, difficulty, ErrIntegrity)
	}
	if b.Timestamp < prev.Timestamp {
		return xerrors.Errorf("block %d is older than its parent: %w", b.Index, ErrIntegrity)
	}
	if err := VerifySeal(b); err != nil {
		return xerrors.Errorf("%v: %w", err, ErrIntegrity)
	}
	return nil
}

func verifyGenesis(b *Block) error {
	if b.Index != 0 || len(b.Transactions) != 0 || b.Nonce != 0 ||
		!b.PrevBlock.Equal(sentinelHash) || b.Timestamp != genesisBlock.Timestamp {
		return xerrors.Errorf("invalid genesis block: %w", ErrIntegrity)
	}
	if err := verifyHash(b); err != nil {
		return err
	}
	if !b.Hash.Equal(genesisBlock.Hash) {
		return xerrors.Errorf("unknown genesis hash %s: %w", b.Hash, ErrIntegrity)
	}
	return nil
}

func verifyLink(prev, b *Block) error {
	if b.Index != prev.Index+1 {
		return xerrors.Errorf("block index %d does not follow %d: %w", b.Index, prev.Index, ErrIntegrity)
	}
	if !b.PrevBlock.Equal(prev.Hash) {
		return xerrors.Errorf("block %d does not link to block %d: %w", b.Index, prev.Index, ErrIntegrity)
	}
	return nil
}

func verifyHash(b *Block) error {
	hash, err := b.CalculateHash()
	if err != nil {
		return xerrors.Errorf("block %d: %v: %w", b.Index, err, ErrIntegrity)
	}
	if !hash.Equal(b.Hash) {
		return xerrors.Errorf("block %d hash mismatch: %w", b.Index, ErrIntegrity)
	}
	return nil
}
