package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
)

// TxKind distinguishes Normal transactions (whose outputs become ordinary
// spendable coins once confirmed) from chain-native transmutation kinds
// (stake delegation, mint, swap, ...) whose outputs must never be
// speculatively recorded in the coins/pending_coins tables, because the
// chain may rewrite their identity during application.
type TxKind uint8

const (
	// TxKindNormal is an ordinary value-transfer transaction.
	TxKindNormal TxKind = iota
	// TxKindStake delegates Sym to a staker.
	TxKindStake
	// TxKindDoscMint mints Mel against proof-of-space-and-time.
	TxKindDoscMint
	// TxKindSwapCreate opens a constant-product AMM pool.
	TxKindSwapCreate
	// TxKindSwapFill executes a trade against an existing pool.
	TxKindSwapFill
)

// Transaction is the chain's fundamental unit of state transition: a set
// of inputs it consumes, outputs it creates, and the fee it pays.
type Transaction struct {
	Kind      TxKind
	Inputs    []CoinID
	Outputs   []CoinData
	Fee       Amount
	Covenants [][]byte
	Data      []byte
	Sigs      [][]byte
}

// nosigsEncode writes every field of tx except Sigs into w, in a stable
// field order. This is deliberately simple fixed-width/length-prefixed
// encoding rather than a general wire codec: its only job is to be a
// stable preimage for HashNoSigs, not to round-trip through the network.
func (tx *Transaction) nosigsEncode(buf *bytes.Buffer) {
	buf.WriteByte(byte(tx.Kind))

	writeUvarint(buf, uint64(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf.Write(in.TxHash[:])
		buf.WriteByte(in.Index)
	}

	writeUvarint(buf, uint64(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf.Write(out.Covhash[:])
		amt := out.Value.v.Bytes()
		writeUvarint(buf, uint64(len(amt)))
		buf.Write(amt)
		denom := out.Denom.Bytes()
		writeUvarint(buf, uint64(len(denom)))
		buf.Write(denom)
		writeUvarint(buf, uint64(len(out.AdditionalData)))
		buf.Write(out.AdditionalData)
	}

	feeBytes := tx.Fee.v.Bytes()
	writeUvarint(buf, uint64(len(feeBytes)))
	buf.Write(feeBytes)

	writeUvarint(buf, uint64(len(tx.Covenants)))
	for _, c := range tx.Covenants {
		writeUvarint(buf, uint64(len(c)))
		buf.Write(c)
	}

	writeUvarint(buf, uint64(len(tx.Data)))
	buf.Write(tx.Data)
}

func writeUvarint(buf *bytes.Buffer, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(tmp[:], n)
	buf.Write(tmp[:l])
}

// NoSigsBytes returns the canonical serialization of tx excluding Sigs.
// This is what commit_sent caches in the transactions table.
func (tx *Transaction) NoSigsBytes() []byte {
	var buf bytes.Buffer
	tx.nosigsEncode(&buf)
	return buf.Bytes()
}

// HashNoSigs returns the stable hash of tx's non-signature fields. Two
// transactions differing only in Sigs share this hash; signatures are
// keyed on it.
func (tx *Transaction) HashNoSigs() TxHash {
	return sha256.Sum256(tx.NoSigsBytes())
}

// Clone returns a deep copy of tx, safe to mutate (e.g. to append a
// signature) without aliasing the original's slices.
func (tx *Transaction) Clone() *Transaction {
	out := &Transaction{
		Kind: tx.Kind,
		Fee:  tx.Fee,
		Data: append([]byte(nil), tx.Data...),
	}
	out.Inputs = append([]CoinID(nil), tx.Inputs...)
	out.Outputs = append([]CoinData(nil), tx.Outputs...)
	out.Covenants = make([][]byte, len(tx.Covenants))
	for i, c := range tx.Covenants {
		out.Covenants[i] = append([]byte(nil), c...)
	}
	out.Sigs = make([][]byte, len(tx.Sigs))
	for i, s := range tx.Sigs {
		out.Sigs[i] = append([]byte(nil), s...)
	}
	return out
}

// DecodeNoSigs reconstructs a Transaction from the bytes written by
// NoSigsBytes. The result's Sigs holds one empty entry per input, since
// Sigs is never part of that encoding; callers needing a signed
// transaction must re-sign it.
func DecodeNoSigs(blob []byte) (*Transaction, error) {
	r := bytes.NewReader(blob)
	tx := &Transaction{}

	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("types: decode tx kind: %w", err)
	}
	tx.Kind = TxKind(kindByte)

	numInputs, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("types: decode tx input count: %w", err)
	}
	tx.Inputs = make([]CoinID, numInputs)
	for i := range tx.Inputs {
		var h TxHash
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return nil, fmt.Errorf("types: decode input %d txhash: %w", i, err)
		}
		idx, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("types: decode input %d index: %w", i, err)
		}
		tx.Inputs[i] = CoinID{TxHash: h, Index: idx}
	}

	numOutputs, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("types: decode tx output count: %w", err)
	}
	tx.Outputs = make([]CoinData, numOutputs)
	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		if _, err := io.ReadFull(r, out.Covhash[:]); err != nil {
			return nil, fmt.Errorf("types: decode output %d covhash: %w", i, err)
		}
		amtBytes, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("types: decode output %d value: %w", i, err)
		}
		out.Value = Amount{v: *new(big.Int).SetBytes(amtBytes)}
		denomBytes, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("types: decode output %d denom: %w", i, err)
		}
		denom, err := ParseDenom(denomBytes)
		if err != nil {
			return nil, fmt.Errorf("types: decode output %d denom: %w", i, err)
		}
		out.Denom = denom
		addlData, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("types: decode output %d additional data: %w", i, err)
		}
		out.AdditionalData = addlData
	}

	feeBytes, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("types: decode tx fee: %w", err)
	}
	tx.Fee = Amount{v: *new(big.Int).SetBytes(feeBytes)}

	numCovenants, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("types: decode tx covenant count: %w", err)
	}
	tx.Covenants = make([][]byte, numCovenants)
	for i := range tx.Covenants {
		c, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("types: decode covenant %d: %w", i, err)
		}
		tx.Covenants[i] = c
	}

	data, err := readLenPrefixed(r)
	if err != nil {
		return nil, fmt.Errorf("types: decode tx data: %w", err)
	}
	tx.Data = data

	tx.Sigs = make([][]byte, len(tx.Inputs))
	return tx, nil
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// OutputSum returns the per-denomination sum of tx's outputs.
func (tx *Transaction) OutputSum() map[Denom]Amount {
	sums := make(map[Denom]Amount)
	for _, out := range tx.Outputs {
		sums[out.Denom] = sums[out.Denom].Add(out.Value)
	}
	return sums
}
