package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
)

// Denom identifies the currency of a coin. The chain has exactly two
// builtin denominations (Mel, the fee/gas currency, and Sym, the staking
// currency) plus two custom-token forms: NewCustom is a sentinel that only
// ever appears in the outputs of a minting transaction, and Custom(TxHash)
// is the addressable form a minted token takes once its defining
// transaction has a hash.
type Denom struct {
	// kind is 0 for Mel, 1 for Sym, 2 for NewCustom, 3 for Custom.
	kind  uint8
	token TxHash
}

var (
	// DenomMel is the chain's native fee-paying currency.
	DenomMel = Denom{kind: 0}

	// DenomSym is the chain's staking currency.
	DenomSym = Denom{kind: 1}

	// DenomNewCustom is the sentinel denomination used in the outputs of
	// a minting transaction, before the mint's txhash is known.
	DenomNewCustom = Denom{kind: 2}
)

// DenomCustom returns the addressable denomination for a token minted by
// the transaction whose no-sigs hash is txhash.
func DenomCustom(txhash TxHash) Denom {
	return Denom{kind: 3, token: txhash}
}

// IsMel reports whether d is the Mel denomination.
func (d Denom) IsMel() bool { return d.kind == 0 }

// IsNewCustom reports whether d is the mint sentinel.
func (d Denom) IsNewCustom() bool { return d.kind == 2 }

// String renders the denomination the way the chain's wire format does:
// "MEL", "SYM", "NEWCUSTOM", or the hex txhash for a custom token.
func (d Denom) String() string {
	switch d.kind {
	case 0:
		return "MEL"
	case 1:
		return "SYM"
	case 2:
		return "NEWCUSTOM"
	case 3:
		return hex.EncodeToString(d.token[:])
	default:
		return "UNKNOWN"
	}
}

// Bytes returns the canonical wire encoding of the denomination, as stored
// in the coins table.
func (d Denom) Bytes() []byte {
	switch d.kind {
	case 0:
		return []byte{0x00}
	case 1:
		return []byte{0x01}
	case 2:
		return []byte{0xff}
	case 3:
		out := make([]byte, 1+len(d.token))
		out[0] = 0x02
		copy(out[1:], d.token[:])
		return out
	default:
		return nil
	}
}

// MarshalJSON renders the denomination as the hex encoding of Bytes,
// since Denom's fields are unexported and would otherwise marshal to an
// empty object.
func (d Denom) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(d.Bytes()) + `"`), nil
}

// UnmarshalJSON parses the hex encoding produced by MarshalJSON.
func (d *Denom) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	parsed, err := ParseDenom(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ErrMalformedDenom is returned by ParseDenom when the byte encoding is the
// wrong length or tag.
var ErrMalformedDenom = errors.New("malformed denomination encoding")

// ParseDenom decodes the wire encoding produced by Denom.Bytes.
func ParseDenom(b []byte) (Denom, error) {
	if len(b) == 0 {
		return Denom{}, ErrMalformedDenom
	}
	switch b[0] {
	case 0x00:
		return DenomMel, nil
	case 0x01:
		return DenomSym, nil
	case 0xff:
		return DenomNewCustom, nil
	case 0x02:
		if len(b) != 1+len(TxHash{}) {
			return Denom{}, ErrMalformedDenom
		}
		var h TxHash
		copy(h[:], b[1:])
		return DenomCustom(h), nil
	default:
		return Denom{}, ErrMalformedDenom
	}
}
