package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// TxHash is the stable "no-sigs hash" of a transaction: a hash of every
// field except Sigs. Two transactions that differ only in their
// signatures share a TxHash.
type TxHash [32]byte

// String renders the hash as lowercase hex, matching the chain's JSON-RPC
// convention for txhash/covhash display.
func (h TxHash) String() string { return hex.EncodeToString(h[:]) }

// MarshalJSON renders the hash as a hex JSON string.
func (h TxHash) MarshalJSON() ([]byte, error) { return []byte(`"` + h.String() + `"`), nil }

// UnmarshalJSON parses a hex JSON string into the hash.
func (h *TxHash) UnmarshalJSON(b []byte) error {
	raw, err := unmarshalHexArray(b, len(h))
	if err != nil {
		return fmt.Errorf("txhash: %w", err)
	}
	copy(h[:], raw)
	return nil
}

// Address is a covhash: the hash of a covenant, and the field on a coin
// that attributes ownership to a wallet.
type Address [32]byte

// String renders the address as lowercase hex.
func (a Address) String() string { return hex.EncodeToString(a[:]) }

// MarshalJSON renders the address as a hex JSON string.
func (a Address) MarshalJSON() ([]byte, error) { return []byte(`"` + a.String() + `"`), nil }

// UnmarshalJSON parses a hex JSON string into the address.
func (a *Address) UnmarshalJSON(b []byte) error {
	raw, err := unmarshalHexArray(b, len(a))
	if err != nil {
		return fmt.Errorf("address: %w", err)
	}
	copy(a[:], raw)
	return nil
}

func unmarshalHexArray(b []byte, n int) ([]byte, error) {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(raw))
	}
	return raw, nil
}

// CoinID identifies an output by the transaction that created it and its
// index among that transaction's outputs.
type CoinID struct {
	TxHash TxHash
	Index  uint8
}

// String renders a CoinID the way the chain's wallet CLI and JSON-RPC
// surface do: "<txhash>-<index>".
func (c CoinID) String() string {
	return fmt.Sprintf("%s-%d", c.TxHash, c.Index)
}

// MarshalJSON renders the coin id as its "<txhash>-<index>" string form.
func (c CoinID) MarshalJSON() ([]byte, error) { return []byte(`"` + c.String() + `"`), nil }

// UnmarshalJSON parses the "<txhash>-<index>" string form back into a
// CoinID.
func (c *CoinID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("coinid: %w", err)
	}
	parsed, err := ParseCoinID(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCoinID parses the "<txhash>-<index>" string form produced by
// CoinID.String.
func ParseCoinID(s string) (CoinID, error) {
	if len(s) < 66 || s[64] != '-' {
		return CoinID{}, fmt.Errorf("malformed coinid %q", s)
	}
	raw, err := hex.DecodeString(s[:64])
	if err != nil || len(raw) != 32 {
		return CoinID{}, fmt.Errorf("malformed coinid %q", s)
	}
	var idx int
	if _, err := fmt.Sscanf(s[65:], "%d", &idx); err != nil || idx < 0 || idx > 255 {
		return CoinID{}, fmt.Errorf("malformed coinid %q", s)
	}
	var h TxHash
	copy(h[:], raw)
	return CoinID{TxHash: h, Index: uint8(idx)}, nil
}

// ProposerRewardCoinID returns the canonical coin id of the proposer
// reward output at the given height. GetTransactionHistory excludes
// these from a wallet's history.
func ProposerRewardCoinID(height uint64) CoinID {
	var h TxHash
	for i := 0; i < 8; i++ {
		h[i] = byte(height >> (8 * i))
	}
	return CoinID{TxHash: h, Index: 0xff}
}

// CoinData describes the content of a coin: who can spend it, how much,
// and in what denomination.
type CoinData struct {
	Covhash        Address
	Value          Amount
	Denom          Denom
	AdditionalData []byte
}

// CoinDataHeight pairs a coin's data with the height at which it was
// confirmed on chain.
type CoinDataHeight struct {
	CoinData
	Height uint64
}
