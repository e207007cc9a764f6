package types

import "crypto/sha256"

// Wallet is the in-memory identity of a registered wallet: its name, its
// address (the hash of its covenant), and the covenant bytes themselves.
// The set of coins a wallet "controls" is every coin whose Covhash equals
// Address.
type Wallet struct {
	Name          string
	Address       Address
	CovenantBytes []byte
}

// AddressFromCovenant computes the covhash of a covenant: its address.
func AddressFromCovenant(covenant []byte) Address {
	return sha256.Sum256(covenant)
}

// BaseFee computes the chain-defined minimum fee for a serialized
// transaction: a per-byte multiplier times the sum of the no-sigs wire
// size, a fixed ballast the caller supplies to account for signature
// bytes not yet present on the candidate being fee-estimated, and the
// length of every covenant (which the no-sigs encoding already contains,
// so covenant bytes are weighted twice).
func (tx *Transaction) BaseFee(feeMultiplier uint64, ballast uint64) Amount {
	size := uint64(len(tx.NoSigsBytes())) + ballast
	for _, cov := range tx.Covenants {
		size += uint64(len(cov))
	}
	return NewAmount(feeMultiplier).Mul(size)
}

// WellFormed performs the cheap, chain-independent structural checks the
// preparer runs before invoking the caller's signer: no duplicate inputs
// and a non-empty input set. This is deliberately not a full consensus
// re-validation, which is the connected node's job; it only catches
// malformed candidates before they're signed.
func (tx *Transaction) WellFormed() bool {
	if len(tx.Inputs) == 0 {
		return false
	}
	seen := make(map[CoinID]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, dup := seen[in]; dup {
			return false
		}
		seen[in] = struct{}{}
	}
	return true
}
