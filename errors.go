package melwalletd

import (
	"fmt"

	"github.com/decred/melwalletd/types"
)

// ErrorKind classifies a daemon error for the RPC layer's JSON-RPC error
// code mapping, translating typed Go errors into wire error codes
// without the RPC layer needing to know about every concrete error type
// itself.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindWalletNotFound
	KindWalletLocked
	KindNetworkTransient
	KindNetworkFatal
	KindInvalidPassword
	KindCreateWalletSecretKey
	KindCreateWalletOther
	KindPrepareTxInvalidSignature
	KindPrepareTxFailedUnlock
	KindPrepareTxInsufficientFunds
	KindPrepareTxTooManyInputs
	KindPrepareTxNotWellFormed
	KindPrepareTxNetwork
	KindTransactionNotFound
	KindTransactionLost
	KindTransactionInvalidFaucet
	KindTransactionSendFailed
)

// DaemonError is every error the daemon returns to an RPC caller,
// carrying a Kind the RPC dispatcher switches on to pick a JSON-RPC
// error code.
type DaemonError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *DaemonError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *DaemonError) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, reason string, err error) *DaemonError {
	return &DaemonError{Kind: kind, Reason: reason, Err: err}
}

// ErrWalletNotFound is returned when an RPC call names a wallet that is
// not registered.
func ErrWalletNotFound(name string) *DaemonError {
	return newErr(KindWalletNotFound, fmt.Sprintf("wallet %q not found", name), nil)
}

// ErrWalletLocked is returned when an operation needs a signer but the
// named wallet has none unlocked.
func ErrWalletLocked(name string) *DaemonError {
	return newErr(KindWalletLocked, fmt.Sprintf("wallet %q is locked", name), nil)
}

// ErrNetworkTransient wraps a node-client failure the sync loop should
// retry rather than treat as fatal.
func ErrNetworkTransient(err error) *DaemonError {
	return newErr(KindNetworkTransient, "transient network error", err)
}

// ErrNetworkFatal wraps a node-client failure (submission rejected, bad
// gateway data) that will not resolve on retry.
func ErrNetworkFatal(err error) *DaemonError {
	return newErr(KindNetworkFatal, "fatal network error", err)
}

// ErrInvalidPassword is returned by unlock_wallet/export_sk on a decrypt
// failure.
func ErrInvalidPassword() *DaemonError {
	return newErr(KindInvalidPassword, "invalid password", nil)
}

// ErrCreateWalletSecretKey is returned by create_wallet on a malformed
// seed.
func ErrCreateWalletSecretKey(err error) *DaemonError {
	return newErr(KindCreateWalletSecretKey, "malformed secret key", err)
}

// ErrCreateWalletOther is returned by create_wallet for a name collision
// or an I/O failure persisting the secret.
func ErrCreateWalletOther(err error) *DaemonError {
	return newErr(KindCreateWalletOther, "create wallet failed", err)
}

// ErrPrepareTxInvalidSignature is returned when the configured signer
// rejects a candidate during the fee search.
func ErrPrepareTxInvalidSignature(err error) *DaemonError {
	return newErr(KindPrepareTxInvalidSignature, "invalid signature", err)
}

// ErrPrepareTxFailedUnlock is returned when prepare_tx is called against
// a wallet with no unlocked signer and no signing_key override.
func ErrPrepareTxFailedUnlock() *DaemonError {
	return newErr(KindPrepareTxFailedUnlock, "wallet must be unlocked to prepare a transaction", nil)
}

// ErrPrepareTxInsufficientFunds is returned when the confirmed-unspent
// coin set cannot cover a candidate's outputs in denom.
func ErrPrepareTxInsufficientFunds(denom types.Denom) *DaemonError {
	return newErr(KindPrepareTxInsufficientFunds, fmt.Sprintf("insufficient funds in %s", denom), nil)
}

// ErrPrepareTxTooManyInputs is returned when a candidate needs more
// inputs than the preparer's hard cap allows.
func ErrPrepareTxTooManyInputs() *DaemonError {
	return newErr(KindPrepareTxTooManyInputs, "too many inputs required", nil)
}

// ErrPrepareTxNotWellFormed is returned when a candidate fails the
// preparer's structural check before signing.
func ErrPrepareTxNotWellFormed() *DaemonError {
	return newErr(KindPrepareTxNotWellFormed, "candidate transaction is not well formed", nil)
}

// ErrPrepareTxNetwork wraps a node-client failure encountered while
// resolving mandatory inputs during prepare_tx.
func ErrPrepareTxNetwork(err error) *DaemonError {
	return newErr(KindPrepareTxNetwork, "network error while preparing transaction", err)
}

// ErrTransactionNotFound is returned by tx_status/tx_balance when
// neither the cache nor the node has ever heard of the hash.
func ErrTransactionNotFound() *DaemonError {
	return newErr(KindTransactionNotFound, "transaction not found", nil)
}

// ErrTransactionLost is returned when a transaction was pending, its
// expiry passed, and it never confirmed.
func ErrTransactionLost() *DaemonError {
	return newErr(KindTransactionLost, "transaction expired without confirming", nil)
}

// ErrTransactionInvalidFaucet is returned by send_faucet on a network
// whose faucet is disabled (e.g. mainnet).
func ErrTransactionInvalidFaucet() *DaemonError {
	return newErr(KindTransactionInvalidFaucet, "faucet not available on this network", nil)
}

// ErrTransactionSendFailed wraps a send_tx/send_faucet submission
// rejected by the node.
func ErrTransactionSendFailed(err error) *DaemonError {
	return newErr(KindTransactionSendFailed, "send transaction failed", err)
}
