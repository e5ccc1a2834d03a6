package models

import (
	"encoding/binary"
	"fmt"
)

// Balance is one ledger entry: an account id and its current amount.
type Balance struct {
	ID     BalanceID `json:"id"`
	Amount Amount    `json:"amount"`
}

const balanceBinaryLen = 8 + amountBinaryLen

// EncodeBinary returns the durable record form: 8-byte big-endian id
// followed by the 16-byte big-endian amount. The layout is stable and must
// not change for already-written records.
func (b Balance) EncodeBinary() []byte {
	buf := make([]byte, 0, balanceBinaryLen)
	buf = binary.BigEndian.AppendUint64(buf, b.ID)
	buf = b.Amount.AppendBinary(buf)
	return buf
}

func DecodeBalance(data []byte) (Balance, error) {
	if len(data) != balanceBinaryLen {
		return Balance{}, fmt.Errorf("balance record: want %d bytes, got %d", balanceBinaryLen, len(data))
	}
	amount, err := AmountFromBinary(data[8:])
	if err != nil {
		return Balance{}, err
	}
	return Balance{
		ID:     binary.BigEndian.Uint64(data[:8]),
		Amount: amount,
	}, nil
}
