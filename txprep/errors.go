package txprep

import (
	"errors"
	"fmt"

	"github.com/decred/melwalletd/types"
)

// ErrInputNotFound is returned when a mandatory input resolves to
// neither a locally confirmed coin nor one the connected node knows
// about.
var ErrInputNotFound = errors.New("txprep: mandatory input not found")

// ErrTooManyInputs is returned when a candidate needs more than 5000
// inputs to balance.
var ErrTooManyInputs = errors.New("txprep: candidate needs too many inputs")

// ErrNotWellFormed is returned when a candidate fails the cheap
// structural well-formedness check before signing.
var ErrNotWellFormed = errors.New("txprep: candidate is not well formed")

// ErrNoFeeFound is returned when the fee binary search never produces a
// valid signed candidate at any trial fee.
var ErrNoFeeFound = errors.New("txprep: no fee satisfies the candidate")

// InsufficientFundsError reports that the wallet's confirmed-unspent
// coins in Denom fall short of what a candidate's outputs require.
type InsufficientFundsError struct {
	Denom types.Denom
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("txprep: insufficient funds in denomination %s", e.Denom)
}
