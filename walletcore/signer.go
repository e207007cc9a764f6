// Package walletcore implements wallet signing: an Ed25519 secret key
// that signs per-input over a transaction's no-sigs hash, with an LRU
// cache of hash -> signature since that hash is a pure function of a
// transaction's non-signature fields and signing is therefore
// deterministic and idempotent.
package walletcore

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/decred/melwalletd/types"
)

// sigCacheSize bounds the per-signer LRU of hash-no-sigs -> signature.
const sigCacheSize = 500

// Signer is the capability the transaction preparer (txprep) invokes to
// authorize a candidate transaction's inputs: it produces per-input
// signatures and declares the covenant bytes whose hash is its address.
//
// The only concrete implementation today is Ed25519Signer; future
// HSM/hardware implementations can sit behind the same interface, so
// callers must program against Signer, not Ed25519Signer.
type Signer interface {
	// SignTx returns a copy of tx with a fresh signature placed at
	// inputIdx, extending Sigs with empty entries as needed.
	SignTx(tx *types.Transaction, inputIdx int) (*types.Transaction, error)

	// Covenant returns the canonical covenant bytes this signer
	// satisfies; its hash is the signer's wallet address.
	Covenant() []byte
}

// Ed25519Signer signs with a single Ed25519 secret key. It is safe for
// concurrent use: the signature cache is internally synchronized.
type Ed25519Signer struct {
	sk       ed25519.PrivateKey
	pub      ed25519.PublicKey
	covenant []byte

	cache *lru.Cache
}

// ErrInvalidSeed is returned by NewEd25519Signer when the seed is not
// exactly ed25519.SeedSize bytes.
var ErrInvalidSeed = errors.New("walletcore: invalid ed25519 seed length")

// NewEd25519Signer derives an Ed25519 key pair from a 32-byte seed and
// wraps it with a signature cache.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidSeed
	}
	sk := ed25519.NewKeyFromSeed(seed)
	pub := sk.Public().(ed25519.PublicKey)

	cache, err := lru.New(sigCacheSize)
	if err != nil {
		return nil, err
	}

	return &Ed25519Signer{
		sk:       sk,
		pub:      pub,
		covenant: ed25519Covenant(pub),
		cache:    cache,
	}, nil
}

// ed25519Covenant builds the canonical "signature checks against this
// pubkey" covenant. The encoding is a one-byte tag distinguishing it from
// other covenant forms, followed by the raw 32-byte public key.
func ed25519Covenant(pub ed25519.PublicKey) []byte {
	out := make([]byte, 1+len(pub))
	out[0] = 0x00
	copy(out[1:], pub)
	return out
}

// Covenant implements Signer.
func (s *Ed25519Signer) Covenant() []byte {
	return append([]byte(nil), s.covenant...)
}

// PublicKey returns the raw Ed25519 public key backing this signer.
func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), s.pub...)
}

// SignTx implements Signer. The *i*-th signature corresponds to the
// *i*-th input; since HashNoSigs is independent of Sigs, signing twice
// over the same candidate yields a byte-identical result, which is what
// makes the fee binary search's repeated re-signing safe and cheap.
func (s *Ed25519Signer) SignTx(tx *types.Transaction, inputIdx int) (*types.Transaction, error) {
	if inputIdx < 0 || inputIdx >= len(tx.Inputs) {
		return nil, fmt.Errorf("walletcore: input index %d out of range (%d inputs)",
			inputIdx, len(tx.Inputs))
	}

	h := tx.HashNoSigs()

	var sig []byte
	if cached, ok := s.cache.Get(h); ok {
		sig = cached.([]byte)
	} else {
		sig = ed25519.Sign(s.sk, h[:])
		s.cache.Add(h, sig)
	}

	out := tx.Clone()
	for len(out.Sigs) <= inputIdx {
		out.Sigs = append(out.Sigs, nil)
	}
	out.Sigs[inputIdx] = sig

	signLog.Tracef("signed input %d of tx %s", inputIdx, h)
	return out, nil
}

// VerifyCovenant reports whether sig is a valid Ed25519 signature over
// hash by the key whose covenant is pub's ed25519Covenant encoding. Used
// by tests.
func VerifyCovenant(covenant []byte, hash types.TxHash, sig []byte) bool {
	if len(covenant) != 1+ed25519.PublicKeySize || covenant[0] != 0x00 {
		return false
	}
	pub := ed25519.PublicKey(covenant[1:])
	return ed25519.Verify(pub, hash[:], sig)
}

var _ Signer = (*Ed25519Signer)(nil)
