package melwalletd

import (
	"encoding/base32"
	"strings"
)

// crockfordEncoding is the Crockford base32 alphabet (no padding,
// case-insensitive on decode), used to encode/decode signing-key seeds
// on the RPC surface's create_wallet/export_sk methods.
var crockfordEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// EncodeSeedCrockford renders a 32-byte seed as Crockford base32, the
// encoding create_wallet/export_sk use on the wire.
func EncodeSeedCrockford(seed []byte) string {
	return crockfordEncoding.EncodeToString(seed)
}

// DecodeSeedCrockford parses a Crockford base32 string back into its raw
// bytes, accepting either case.
func DecodeSeedCrockford(s string) ([]byte, error) {
	return crockfordEncoding.DecodeString(strings.ToUpper(s))
}
