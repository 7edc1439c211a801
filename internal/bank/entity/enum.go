package entity

import (
	"errors"
	"fmt"
	"strings"
)

var ErrTransactionKindUnknown = errors.New("bank: transaction kind is unknown")

type TransactionKind int16

const (
	// TransactionKindUnknown is mean kind is not known / not set.
	TransactionKindUnknown TransactionKind = 0

	// TransactionKindDeposit credits cash into an account.
	TransactionKindDeposit TransactionKind = 1

	// TransactionKindWithdrawal debits cash out of an account.
	TransactionKindWithdrawal TransactionKind = 2

	// TransactionKindTransferOut debits the sender, fee included.
	TransactionKindTransferOut TransactionKind = 3

	// TransactionKindTransferIn credits the receiver.
	TransactionKindTransferIn TransactionKind = 4

	// TransactionKindFee credits the transfer fee to the root account.
	TransactionKindFee TransactionKind = 5
)

func (k TransactionKind) String() string {
	switch k {
	case TransactionKindDeposit:
		return "deposit"
	case TransactionKindWithdrawal:
		return "withdrawal"
	case TransactionKindTransferOut:
		return "transfer-out"
	case TransactionKindTransferIn:
		return "transfer-in"
	case TransactionKindFee:
		return "fee"
	default:
		return "unknown"
	}
}

func (k TransactionKind) IsUnknown() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindTransferOut,
		TransactionKindTransferIn, TransactionKindFee:
		return false
	default:
		return true
	}
}

func ParseTransactionKind(s string) (TransactionKind, error) {
	for k := TransactionKindDeposit; k <= TransactionKindFee; k++ {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}

	return TransactionKindUnknown, fmt.Errorf("%w: %q", ErrTransactionKindUnknown, s)
}

func (k TransactionKind) MarshalText() ([]byte, error) {
	if k.IsUnknown() {
		return nil, ErrTransactionKindUnknown
	}

	return []byte(k.String()), nil
}

func (k *TransactionKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTransactionKind(string(b))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}
