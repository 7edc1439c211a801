package entity

import "context"

// Store is the full account store contract. Every backend implements it and
// wraps ErrStorage in medium failures. Mutating calls are durable on return.
//
// SaveAccount, DeleteAccount and AppendTransaction are single-record helpers
// for seeding and maintenance; ledger operations go through UpdateAccounts.
type Store interface {
	LoadAccounts(ctx context.Context) (map[string]Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	Exists(ctx context.Context, id string) (bool, error)
	InsertAccount(ctx context.Context, acc Account) error
	SaveAccount(ctx context.Context, acc Account) error
	DeleteAccount(ctx context.Context, id string) error
	AppendTransaction(ctx context.Context, tx Transaction) error
	QueryTransactions(ctx context.Context, accountID string) ([]Transaction, error)
	UpdateAccounts(ctx context.Context, ids []string, fn UpdateFunc) error
}
