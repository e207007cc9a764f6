package rpc

import (
	"fmt"

	"github.com/decred/melwalletd"
	"github.com/decred/melwalletd/types"
)

// prepareTxArgsWire is the wire shape of prepare_tx's PrepareTxArgs:
// nobalance denoms travel as hex strings since types.Denom has no stable
// numeric wire convention a client can be expected to hardcode; the
// optional tx kind travels as a plain JSON number.
type prepareTxArgsWire struct {
	Kind           *uint8           `json:"kind,omitempty"`
	Inputs         []types.CoinID   `json:"inputs"`
	Outputs        []types.CoinData `json:"outputs"`
	Covenants      [][]byte         `json:"covenants"`
	Data           []byte           `json:"data,omitempty"`
	NoBalance      []string         `json:"nobalance"`
	FeeBallast     uint64           `json:"fee_ballast"`
	SigningKeySeed *string          `json:"signing_key,omitempty"`
}

func (w prepareTxArgsWire) toDaemonArgs() (melwalletd.PrepareTxArgs, error) {
	args := melwalletd.PrepareTxArgs{
		Inputs:     w.Inputs,
		Outputs:    w.Outputs,
		Covenants:  w.Covenants,
		Data:       w.Data,
		FeeBallast: w.FeeBallast,
	}

	if w.Kind != nil {
		kind := types.TxKind(*w.Kind)
		args.Kind = &kind
	}

	for _, s := range w.NoBalance {
		d, err := parseHexDenom(s)
		if err != nil {
			return melwalletd.PrepareTxArgs{}, fmt.Errorf("nobalance: %w", err)
		}
		args.NoBalance = append(args.NoBalance, d)
	}

	if w.SigningKeySeed != nil {
		seed, err := melwalletd.DecodeSeedCrockford(*w.SigningKeySeed)
		if err != nil {
			return melwalletd.PrepareTxArgs{}, fmt.Errorf("signing_key: %w", err)
		}
		args.SigningKeySeed = seed
	}

	return args, nil
}
