package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for money.
const Scale = 2

// Account is the durable record shared by authentication and the ledger.
type Account struct {
	ID      string
	PINHash string
	// TOTPSecret is the sealed base32 secret; nil for the root account.
	TOTPSecret []byte
	Balance    decimal.Decimal
	LastAuthAt time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a Account) HasTOTP() bool {
	return len(a.TOTPSecret) > 0
}

// Clone returns a deep copy so callers of UpdateAccounts cannot alias stored state.
func (a Account) Clone() Account {
	if a.TOTPSecret != nil {
		a.TOTPSecret = append([]byte(nil), a.TOTPSecret...)
	}

	return a
}

// Transaction is an append-only ledger record. Amount is signed: credits are
// positive and debits negative.
type Transaction struct {
	ID        int64
	AccountID string
	Amount    decimal.Decimal
	Kind      TransactionKind
	CreatedAt time.Time
}

// UnixEpoch is the LastAuthAt of an account that never completed a login.
var UnixEpoch = time.Unix(0, 0).UTC()

// UpdateFunc mutates the locked accounts in place and returns the
// transactions to append with them. Ids that do not exist are absent from the
// map, and deleting an entry removes that account. Returning an error
// discards every change and is passed back to the caller unchanged.
type UpdateFunc func(accounts map[string]*Account) ([]Transaction, error)
