// Package txprep builds balanced, minimum-fee transactions: it selects
// confirmed-unspent inputs to cover a set of desired outputs, emits
// change, and converges on the smallest viable fee by binary search over
// a caller-supplied signing closure. Shaped after a chanfunding-style
// coin-selection loop (select until the target is met, then decide on a
// change output), adapted here to additionally drive a fee search since
// this chain's fee depends on the final signed size.
package txprep

import (
	"context"
	"fmt"
	"sort"

	"github.com/decred/melwalletd/node"
	"github.com/decred/melwalletd/types"
	"github.com/decred/melwalletd/walletdb"
)

// maxInputs is the hard cap on a candidate's input count (step 7 of
// candidate generation).
const maxInputs = 5000

// SignFunc is a pure function from an unsigned candidate to its signed
// form. It is invoked up to O(log maxFee) times per Prepare call, so it
// must be fast and side-effect free; Ed25519Signer.SignTx combined with
// its signature LRU satisfies this.
type SignFunc func(tx *types.Transaction) (*types.Transaction, error)

// Args bundles prepare's inputs per the wallet daemon's PrepareTxArgs
// shape.
type Args struct {
	MandatoryInputs []types.CoinID
	Outputs         []types.CoinData
	FeeMultiplier   uint64
	FeeBallast      uint64
	NoBalance       []types.Denom
	Sign            SignFunc
}

// mandatoryInput pairs a caller-requested coin id with its resolved
// data, so a candidate can both list the id as an input and account for
// its value.
type mandatoryInput struct {
	id   types.CoinID
	data types.CoinDataHeight
}

// Prepare builds, balances, and fee-searches a transaction spending from
// wallet, using store for the confirmed-unspent coin set and snap as the
// node fallback for mandatory inputs the store hasn't seen.
func Prepare(ctx context.Context, store *walletdb.Store, wallet *types.Wallet, snap node.Snapshot, args Args) (*types.Transaction, error) {
	mandatory, err := resolveMandatoryInputs(ctx, store, snap, args.MandatoryInputs)
	if err != nil {
		return nil, err
	}

	nobalance := map[types.Denom]bool{types.DenomNewCustom: true}
	for _, d := range args.NoBalance {
		nobalance[d] = true
	}

	pool, err := store.GetCoinMapping(ctx, wallet.Address, true, false)
	if err != nil {
		return nil, fmt.Errorf("txprep: load confirmed-unspent coins: %w", err)
	}
	poolIDs := sortedCoinIDs(pool)

	var maxFeeMel types.Amount
	for _, id := range poolIDs {
		if cd := pool[id]; cd.Denom.IsMel() {
			maxFeeMel = maxFeeMel.Add(cd.Value)
		}
	}

	gen := func(fee uint64) genResult {
		return generateCandidate(wallet, mandatory, args.Outputs, pool, poolIDs, nobalance,
			args.FeeMultiplier, args.FeeBallast, fee, args.Sign)
	}

	probe := gen(0)
	maxFee := maxFeeMel
	if probe.tx != nil {
		maxFee = probe.tx.BaseFee(args.FeeMultiplier, args.FeeBallast).Mul(3).Add(types.NewAmount(100))
	}

	tx, err := binarySearchFee(maxFee.Uint64(), probe, gen)
	if err != nil {
		txprLog.Debugf("prepare for %s failed: %v", wallet.Address, err)
		return nil, err
	}
	txprLog.Debugf("prepared tx for %s: %d inputs, %d outputs, fee %s", wallet.Address,
		len(tx.Inputs), len(tx.Outputs), tx.Fee)
	return tx, nil
}

func resolveMandatoryInputs(ctx context.Context, store *walletdb.Store, snap node.Snapshot, ids []types.CoinID) ([]mandatoryInput, error) {
	resolved := make([]mandatoryInput, 0, len(ids))

	for _, id := range ids {
		cdh, err := store.GetCoinConfirmation(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("txprep: resolve mandatory input %s: %w", id, err)
		}
		if cdh == nil {
			cdh, err = snap.GetCoin(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("txprep: node lookup for mandatory input %s: %w", id, err)
			}
		}
		if cdh == nil {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, id)
		}
		resolved = append(resolved, mandatoryInput{id: id, data: *cdh})
	}
	return resolved, nil
}

func sortedCoinIDs(m map[types.CoinID]types.CoinData) []types.CoinID {
	ids := make([]types.CoinID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// outcomeDir is which side of the fee-search boundary a trial landed
// on: dirLow means the trial fee is at or under the adequate band
// (base_fee * 21/20), so the boundary lies above it; dirHigh means the
// trial overshot the band, could not be funded, or produced a
// structurally invalid candidate, so the boundary lies at or below it.
type outcomeDir int

const (
	dirLow outcomeDir = iota
	dirHigh
)

// genResult is the outcome of one candidate-generation trial. Only
// dirLow with a non-nil tx is a valid candidate worth remembering; every
// other combination only drives the search direction.
type genResult struct {
	dir outcomeDir
	tx  *types.Transaction
	err error
}

// generateCandidate runs the ten-step candidate construction for a
// single trial fee: seed the candidate with outputs and mandatory
// inputs, select further confirmed-unspent coins until every
// non-nobalance denom balances (Mel additionally covering the trial
// fee), emit change, and invoke sign.
func generateCandidate(
	wallet *types.Wallet,
	mandatory []mandatoryInput,
	outputs []types.CoinData,
	pool map[types.CoinID]types.CoinData,
	poolIDs []types.CoinID,
	nobalance map[types.Denom]bool,
	feeMultiplier, feeBallast, fee uint64,
	sign SignFunc,
) genResult {
	txn := &types.Transaction{
		Kind:      types.TxKindNormal,
		Outputs:   append([]types.CoinData(nil), outputs...),
		Fee:       types.NewAmount(fee),
		Covenants: [][]byte{wallet.CovenantBytes},
	}

	outputSum := make(map[types.Denom]types.Amount)
	for _, out := range outputs {
		outputSum[out.Denom] = outputSum[out.Denom].Add(out.Value)
	}
	// The transaction's own fee is paid in Mel and must be covered by
	// inputs exactly like any other Mel output, or the fundamental
	// balance invariant (inputs = outputs + fee) can never hold.
	outputSum[types.DenomMel] = outputSum[types.DenomMel].Add(txn.Fee)

	inputSum := make(map[types.Denom]types.Amount)
	mandatorySet := make(map[types.CoinID]bool, len(mandatory))
	for _, m := range mandatory {
		txn.Inputs = append(txn.Inputs, m.id)
		inputSum[m.data.Denom] = inputSum[m.data.Denom].Add(m.data.Value)
		mandatorySet[m.id] = true
	}

	for d := range nobalance {
		delete(outputSum, d)
		delete(inputSum, d)
	}

	for _, id := range poolIDs {
		if mandatorySet[id] {
			continue
		}
		cd := pool[id]
		if nobalance[cd.Denom] {
			continue
		}
		need, wanted := outputSum[cd.Denom]
		if !wanted {
			continue
		}
		have := inputSum[cd.Denom]
		if have.Cmp(need) >= 0 {
			continue
		}
		txn.Inputs = append(txn.Inputs, id)
		inputSum[cd.Denom] = have.Add(cd.Value)
	}

	for denom, need := range outputSum {
		have := inputSum[denom]
		if have.Cmp(need) < 0 {
			return genResult{dir: dirHigh, err: &InsufficientFundsError{Denom: denom}}
		}
		diff := have.Sub(need)
		switch {
		case diff.Cmp(types.NewAmount(2)) >= 0:
			half1, half2 := diff.Half()
			txn.Outputs = append(txn.Outputs,
				changeOutput(wallet.Address, half1, denom),
				changeOutput(wallet.Address, half2, denom))
		case diff.Cmp(types.NewAmount(1)) == 0:
			txn.Outputs = append(txn.Outputs, changeOutput(wallet.Address, diff, denom))
		case diff.IsZero() && denom.IsMel():
			txn.Outputs = append(txn.Outputs, changeOutput(wallet.Address, types.NewAmount(0), denom))
		}
	}

	if len(txn.Inputs) > maxInputs {
		return genResult{dir: dirHigh, err: ErrTooManyInputs}
	}
	if !txn.WellFormed() {
		return genResult{dir: dirHigh, err: ErrNotWellFormed}
	}

	signed, err := sign(txn)
	if err != nil {
		// A signing failure says nothing about fee adequacy, so it
		// must not shrink the search range the way an overshoot
		// (dirHigh) does.
		return genResult{dir: dirLow, err: err}
	}

	required := signed.BaseFee(feeMultiplier, feeBallast)
	threshold := required.MulDivFloor(21, 20)
	if signed.Fee.Cmp(threshold) <= 0 {
		return genResult{dir: dirLow, tx: signed}
	}
	return genResult{dir: dirHigh, tx: signed}
}

func changeOutput(addr types.Address, value types.Amount, denom types.Denom) types.CoinData {
	return types.CoinData{Covhash: addr, Value: value, Denom: denom}
}

// binarySearchFee bisects integer trial fees in [0, maxFee] toward the
// boundary between the dirLow region (small fees, at or under the
// adequate band) and the dirHigh region above it, returning the
// largest dirLow candidate observed -- the biggest fee still within
// base_fee * 21/20, which is the minimum-viable fee the search is
// after. probe is gen(0), already evaluated by the caller to bound
// maxFee, so fee 0 is never re-tried. If no trial (probe included)
// ever yields a dirLow candidate, the last error observed is returned.
func binarySearchFee(maxFee uint64, probe genResult, gen func(uint64) genResult) (*types.Transaction, error) {
	var best *types.Transaction
	lastErr := ErrNoFeeFound

	if probe.err != nil {
		lastErr = probe.err
	}
	if probe.dir == dirLow && probe.tx != nil {
		best = probe.tx
	}

	// Invariant: lo is in the dirLow region (fee 0 always is, unless
	// the wallet cannot fund the outputs at all) and hi is presumed
	// dirHigh; each trial at the midpoint tightens one side.
	lo, hi := uint64(0), maxFee
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		res := gen(mid)
		if res.err != nil {
			lastErr = res.err
		}
		if res.dir == dirLow {
			if res.tx != nil {
				best = res.tx
			}
			lo = mid
		} else {
			hi = mid
		}
	}

	if best == nil {
		return nil, lastErr
	}
	return best, nil
}
