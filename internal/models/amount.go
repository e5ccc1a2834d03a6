package models

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"lukechampine.com/uint128"
)

// BalanceID uniquely identifies a balance account.
type BalanceID = uint64

// Amount is a non-negative 128-bit integer amount. Balances can never
// underflow; overflow is reported by Add.
type Amount struct {
	v uint128.Uint128
}

const amountBinaryLen = 16

func NewAmount(v uint64) Amount {
	return Amount{v: uint128.From64(v)}
}

func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// Cmp returns -1, 0 or 1 depending on whether a is less than, equal to or
// greater than b.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(b.v)
}

// Add returns a+b, or ok=false if the sum does not fit in 128 bits.
func (a Amount) Add(b Amount) (Amount, bool) {
	sum := a.v.AddWrap(b.v)
	if sum.Cmp(a.v) < 0 {
		return Amount{}, false
	}
	return Amount{v: sum}, true
}

// Sub returns a-b. The caller must ensure a >= b (Cmp); subtracting more
// than the current value panics.
func (a Amount) Sub(b Amount) Amount {
	return Amount{v: a.v.Sub(b.v)}
}

func (a Amount) String() string {
	return a.v.String()
}

// AppendBinary appends the 16-byte big-endian form used in durable records.
func (a Amount) AppendBinary(b []byte) []byte {
	b = binary.BigEndian.AppendUint64(b, a.v.Hi)
	b = binary.BigEndian.AppendUint64(b, a.v.Lo)
	return b
}

// AmountFromBinary decodes the 16-byte big-endian form.
func AmountFromBinary(b []byte) (Amount, error) {
	if len(b) < amountBinaryLen {
		return Amount{}, fmt.Errorf("amount: need %d bytes, got %d", amountBinaryLen, len(b))
	}
	return Amount{v: uint128.New(
		binary.BigEndian.Uint64(b[8:16]),
		binary.BigEndian.Uint64(b[0:8]),
	)}, nil
}

// AmountFromString parses a decimal string into an Amount.
func AmountFromString(s string) (Amount, error) {
	i, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("amount: invalid number %q", s)
	}
	if i.Sign() < 0 || i.BitLen() > 128 {
		return Amount{}, fmt.Errorf("amount: %s out of range", i)
	}
	return Amount{v: uint128.FromBig(i)}, nil
}

// MarshalJSON renders the amount as a bare JSON number, matching the wire
// encoding of the event payloads.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.v.String()), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	parsed, err := AmountFromString(string(bytes.Trim(data, `"`)))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
