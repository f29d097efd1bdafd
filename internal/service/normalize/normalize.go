// Package normalize turns the loosely typed transaction record of a signing request
// into hex-encoded quantities.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/errno"
	"github.com/web3nomad/Rabby/pkg/utils/hexnum"
)

// RawTx is a transaction record as received from the dapp.
type RawTx map[string]interface{}

var (
	ErrNegative    = errors.New("negative quantity")
	ErrNotFinite   = errors.New("quantity is not finite")
	ErrUnsupported = errors.New("unsupported quantity type")
	ErrMalformed   = errors.New("malformed quantity")
)

var (
	decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]*)?$`)
	hexPattern     = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

// quantityFields are normalized in place when present.
var quantityFields = []string{"nonce", "gas", "gasPrice", "maxFeePerGas", "maxPriorityFeePerGas"}

// Hex encodes an integer-like value as 0x-prefixed hex.
//
// Numbers are floored. Prefixed strings pass through unchanged. Unprefixed strings made
// only of decimal digits are read as decimal numbers, any other unprefixed hex digits get a prefix.
func Hex(v interface{}) (string, error) {
	switch n := v.(type) {
	case int:
		return fromInt64(int64(n))
	case int32:
		return fromInt64(int64(n))
	case int64:
		return fromInt64(n)
	case uint:
		return hexnum.FromUint64(uint64(n)), nil
	case uint32:
		return hexnum.FromUint64(uint64(n)), nil
	case uint64:
		return hexnum.FromUint64(n), nil
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case *big.Int:
		if n == nil {
			return "", ErrUnsupported
		}
		if n.Sign() < 0 {
			return "", ErrNegative
		}
		return hexnum.FromBig(n), nil
	case json.Number:
		d, err := decimal.NewFromString(string(n))
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrMalformed, string(n))
		}
		if d.IsNegative() {
			return "", ErrNegative
		}
		return hexnum.FromBig(d.Floor().BigInt()), nil
	case string:
		return fromString(n)
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupported, v)
}

func fromInt64(n int64) (string, error) {
	if n < 0 {
		return "", ErrNegative
	}
	return hexnum.FromUint64(uint64(n)), nil
}

func fromFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", ErrNotFinite
	}
	if f < 0 {
		return "", ErrNegative
	}
	return hexnum.FromBig(decimal.NewFromFloat(f).Floor().BigInt()), nil
}

func fromString(s string) (string, error) {
	s = strings.TrimSpace(s)
	switch {
	case hexnum.HasPrefix(s):
		return s, nil
	case decimalPattern.MatchString(s):
		d, err := decimal.NewFromString(s)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrMalformed, s)
		}
		return hexnum.FromBig(d.Floor().BigInt()), nil
	case hexPattern.MatchString(s):
		return "0x" + s, nil
	}
	return "", fmt.Errorf("%w: %q", ErrMalformed, s)
}

func isQuantity(v interface{}) bool {
	switch v.(type) {
	case string, json.Number, int, int32, int64, uint, uint32, uint64, float32, float64, *big.Int:
		return true
	}
	return false
}

// TxParams returns a copy of raw with its quantity fields hex encoded and gasLimit folded into gas.
//
// It never fails as a whole: a field that cannot be encoded keeps its original value and the
// per-field errors are joined into the returned error for the caller to report.
func TxParams(raw RawTx) (RawTx, error) {
	out := make(RawTx, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	var errs []error
	for _, field := range quantityFields {
		v, ok := out[field]
		if !ok || v == nil || !isQuantity(v) || isBlank(v) {
			continue
		}
		h, err := Hex(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
			continue
		}
		out[field] = h
	}

	if v, ok := out["gasLimit"]; ok && v != nil && isQuantity(v) && !isBlank(v) {
		if h, err := Hex(v); err != nil {
			errs = append(errs, fmt.Errorf("gasLimit: %w", err))
		} else {
			out["gas"] = h
			delete(out, "gasLimit")
		}
	}

	value, ok := out["value"]
	switch {
	case !ok || !isQuantity(value):
		out["value"] = "0x0"
	case isBlank(value):
		out["value"] = "0x0"
	default:
		h, err := Hex(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("value: %w", err))
		} else {
			out["value"] = h
		}
	}

	return out, errors.Join(errs...)
}

// Intent decodes a normalized record. Unlike TxParams its errors are fatal for the review:
// the request cannot become a submittable transaction.
func Intent(raw RawTx) (model.TxIntent, model.RequestFlags, error) {
	var tx model.TxIntent
	var flags model.RequestFlags

	chainID, err := chainIDOf(raw["chainId"])
	if err != nil {
		return tx, flags, errno.Wrap(errno.ErrInvalidTransaction, err)
	}
	tx.ChainID = chainID

	tx.From = stringField(raw, "from")
	if tx.From == "" {
		return tx, flags, errno.Wrap(errno.ErrInvalidTransaction, errors.New("from is required"))
	}
	tx.To = stringField(raw, "to")
	tx.Data = stringField(raw, "data")
	if tx.Data == "" {
		tx.Data = "0x"
	}

	quantities := map[string]*string{
		"value":                &tx.Value,
		"nonce":                &tx.Nonce,
		"gas":                  &tx.Gas,
		"gasPrice":             &tx.GasPrice,
		"maxFeePerGas":         &tx.MaxFeePerGas,
		"maxPriorityFeePerGas": &tx.MaxPriorityFeePerGas,
	}
	for field, dst := range quantities {
		v, ok := raw[field]
		if !ok || v == nil || isBlank(v) {
			continue
		}
		s, isString := v.(string)
		if !isString {
			return tx, flags, errno.Wrap(errno.ErrInvalidTransaction, fmt.Errorf("%s: %w: %v", field, ErrMalformed, v))
		}
		if _, ok := hexnum.Big(s); !ok {
			return tx, flags, errno.Wrap(errno.ErrInvalidTransaction, fmt.Errorf("%s: %w: %q", field, ErrMalformed, s))
		}
		*dst = s
	}
	if tx.Value == "" {
		tx.Value = "0x0"
	}

	flags.IsSpeedUp = boolField(raw, "isSpeedUp")
	flags.IsCancel = boolField(raw, "isCancel")
	flags.IsSend = boolField(raw, "isSend")
	flags.IsSwap = boolField(raw, "isSwap")
	flags.IsViewGnosisSafe = boolField(raw, "isViewGnosisSafe")
	return tx, flags, nil
}

func chainIDOf(v interface{}) (int64, error) {
	switch c := v.(type) {
	case nil:
		return 0, errors.New("chainId is required")
	case string:
		if hexnum.HasPrefix(c) {
			n, ok := hexnum.Uint64(c)
			if !ok {
				return 0, fmt.Errorf("chainId: %w: %q", ErrMalformed, c)
			}
			return int64(n), nil
		}
		return strconv.ParseInt(c, 10, 64)
	case json.Number:
		return c.Int64()
	case float64:
		return int64(c), nil
	case int:
		return int64(c), nil
	case int64:
		return c, nil
	}
	return 0, fmt.Errorf("chainId: %w: %T", ErrUnsupported, v)
}

func isBlank(v interface{}) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func stringField(raw RawTx, key string) string {
	s, _ := raw[key].(string)
	return s
}

func boolField(raw RawTx, key string) bool {
	b, _ := raw[key].(bool)
	return b
}
