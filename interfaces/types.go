package interfaces

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// amountBits is the width of the ledger's monetary type.
const amountBits = 128

var (
	// ErrAmountOverflow is returned when an arithmetic operation on amounts would exceed
	// the ledger's 128-bit monetary range or go below zero.
	ErrAmountOverflow = errors.New("amount overflow")

	// ErrInvalidAmount is returned when an amount cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Amount is an unsigned monetary quantity in the ledger's smallest unit.
// The zero value is a zero amount. Arithmetic fails closed instead of wrapping.
type Amount struct {
	v uint256.Int
}

// NewAmount creates an amount from a uint64.
func NewAmount(v uint64) Amount {
	var a Amount
	a.v.SetUint64(v)
	return a
}

// ParseAmount parses a decimal string into an amount.
func ParseAmount(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w %q: %v", ErrInvalidAmount, s, err)
	}
	if v.BitLen() > amountBits {
		return Amount{}, fmt.Errorf("%w: %s exceeds %d bits", ErrAmountOverflow, s, amountBits)
	}
	return Amount{v: *v}, nil
}

// MustParseAmount is like ParseAmount but panics on malformed input.
// Intended for constants and tests.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b or ErrAmountOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var res Amount
	if _, overflow := res.v.AddOverflow(&a.v, &b.v); overflow || res.v.BitLen() > amountBits {
		return Amount{}, fmt.Errorf("%w: %s + %s", ErrAmountOverflow, a, b)
	}
	return res, nil
}

// Sub returns a-b or ErrAmountOverflow if b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var res Amount
	if _, underflow := res.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, fmt.Errorf("%w: %s - %s", ErrAmountOverflow, a, b)
	}
	return res, nil
}

// Mul returns a*b or ErrAmountOverflow.
func (a Amount) Mul(b Amount) (Amount, error) {
	var res Amount
	if _, overflow := res.v.MulOverflow(&a.v, &b.v); overflow || res.v.BitLen() > amountBits {
		return Amount{}, fmt.Errorf("%w: %s * %s", ErrAmountOverflow, a, b)
	}
	return res, nil
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// Equal reports whether a == b.
func (a Amount) Equal(b Amount) bool {
	return a.v.Eq(&b.v)
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.Dec())
}

// UnmarshalJSON accepts both a decimal string and a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	return a.UnmarshalText(bytes.Trim(data, `"`))
}

// Gas is the unit of execution fee budget on the ledger.
type Gas uint64

// TGas is 10^12 gas units.
const TGas Gas = 1_000_000_000_000

// String returns gas in TGas when it divides evenly.
func (g Gas) String() string {
	if g != 0 && g%TGas == 0 {
		return fmt.Sprintf("%d Tgas", uint64(g/TGas))
	}
	return fmt.Sprintf("%d gas", uint64(g))
}

// TenantID is the caller-supplied identifier of a tenant.
// It is encoded as a decimal string in JSON so it survives JavaScript clients.
type TenantID uint64

// String returns the decimal representation.
func (t TenantID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// MarshalJSON encodes the tenant id as a decimal string.
func (t TenantID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts both a decimal string and a bare JSON number.
func (t *TenantID) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseUint(string(bytes.Trim(data, `"`)), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid tenant id %s: %w", data, err)
	}
	*t = TenantID(v)
	return nil
}
