// Package hexnum parses and formats the 0x-prefixed quantities carried by transaction records.
//
// Parsing is lenient compared to hexutil: leading zeros are accepted because dapps send them.
package hexnum

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HasPrefix reports whether s starts with 0x or 0X.
func HasPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Big parses a hex quantity. A bare "0x" and any sign or non-hex digit are rejected.
func Big(s string) (*big.Int, bool) {
	if !HasPrefix(s) || !isHexDigits(s[2:]) {
		return nil, false
	}
	digits := strings.TrimLeft(s[2:], "0")
	if digits == "" {
		if len(s) == 2 {
			return nil, false
		}
		return new(big.Int), true
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, false
	}
	return v, true
}

func isHexDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}

// BigOrZero parses s and returns zero for absent or malformed values.
func BigOrZero(s string) *big.Int {
	if v, ok := Big(s); ok {
		return v
	}
	return new(big.Int)
}

// Uint64 parses a hex quantity that must fit in 64 bits.
func Uint64(s string) (uint64, bool) {
	v, ok := Big(s)
	if !ok || !v.IsUint64() {
		return 0, false
	}
	return v.Uint64(), true
}

// FromBig encodes v as minimal-width hex. Negative values are not quantities and encode as 0x0.
func FromBig(v *big.Int) string {
	if v == nil || v.Sign() <= 0 {
		return "0x0"
	}
	return hexutil.EncodeBig(v)
}

func FromUint64(v uint64) string {
	return hexutil.EncodeUint64(v)
}
