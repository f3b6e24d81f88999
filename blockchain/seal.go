package blockchain

import (
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

// Sealer signs the hash of every block mined by this process, attributing the
// audit trail to one node key.
type Sealer struct {
	pair   *key.Pair
	public string
}

// NewSealer creates a sealer with a fresh Ed25519 key pair.
func NewSealer() (*Sealer, error) {
	return NewSealerFromPair(key.NewKeyPair(cothority.Suite))
}

// NewSealerFromPair wraps an existing key pair.
func NewSealerFromPair(pair *key.Pair) (*Sealer, error) {
	public, err := encoding.PointToStringHex(cothority.Suite, pair.Public)
	if err != nil {
		return nil, xerrors.Errorf("encoding public key: %w", err)
	}
	return &Sealer{pair: pair, public: public}, nil
}

// PublicKey returns the hex encoded public key.
func (s *Sealer) PublicKey() string {
	return s.public
}

// Seal signs the block hash and records the sealer on the block.
func (s *Sealer) Seal(b *Block) error {
	sig, err := schnorr.Sign(cothority.Suite, s.pair.Private, b.Hash)
	if err != nil {
		return xerrors.Errorf("signing block %d: %w", b.Index, err)
	}
	b.Sealer = s.public
	b.Signature = sig
	return nil
}

// VerifySeal checks the signature of a sealed block. Unsealed blocks pass.
func VerifySeal(b *Block) error {
	if b.Sealer == "" && len(b.Signature) == 0 {
		return nil
	}
	public, err := encoding.StringHexToPoint(cothority.Suite, b.Sealer)
	if err != nil {
		return xerrors.Errorf("parsing public key error: %w", err)
	}
	if err := schnorr.Verify(cothority.Suite, public, b.Hash, b.Signature); err != nil {
		return xerrors.Errorf("block %d seal: %w", b.Index, err)
	}
	return nil
}
