package rpc

import (
	"errors"

	"github.com/decred/melwalletd"
)

// melwalletd's typed errors occupy a private code range above the
// standard JSON-RPC 2.0 reserved block (-32768..-32000), one code per
// melwalletd.ErrorKind, so RPC clients can switch on a stable number
// instead of parsing the message string.
const errorCodeBase = -31000

func errorToRPC(err error) *rpcError {
	var derr *melwalletd.DaemonError
	if errors.As(err, &derr) {
		return &rpcError{
			Code:    errorCodeBase - int(derr.Kind),
			Message: derr.Error(),
		}
	}
	return &rpcError{Code: codeInternalError, Message: err.Error()}
}
