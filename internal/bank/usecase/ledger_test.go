package usecase

import (
	"context"
	"testing"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(s string) AmountInput {
	return AmountInput{Amount: decimal.RequireFromString(s)}
}

func TestLedger_RequiresSession(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.uc.Deposit(ctx, nil, amount("1"))
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)
	assert.Equal(t, goerror.CodeUnauthorized, goerror.CodeOf(err))

	_, err = f.uc.Withdraw(ctx, &Session{}, amount("1"))
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)

	_, err = f.uc.Balance(ctx, nil)
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)

	_, err = f.uc.History(ctx, nil, HistoryInput{})
	assert.ErrorIs(t, err, entity.ErrUnauthenticated)
}

func TestDepositWithdraw(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	secret := f.register(t, "alice", "1234")
	sess := f.login(t, "alice", "1234", secret)

	out, err := f.uc.Deposit(ctx, sess, amount("100"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", out.Balance.StringFixed(2))
	require.Len(t, out.Transactions, 1)
	assert.Equal(t, entity.TransactionKindDeposit, out.Transactions[0].Kind)

	_, err = f.uc.Withdraw(ctx, sess, amount("150"))
	assert.ErrorIs(t, err, entity.ErrInsufficientFunds)
	assert.Equal(t, goerror.CodeFailedPrecondition, goerror.CodeOf(err))
	assert.Equal(t, "100.00", f.balance(t, "alice"))

	out, err = f.uc.Withdraw(ctx, sess, amount("30.5"))
	require.NoError(t, err)
	assert.Equal(t, "69.50", out.Balance.StringFixed(2))

	out, err = f.uc.Withdraw(ctx, sess, amount("69.50"))
	require.NoError(t, err)
	assert.True(t, out.Balance.IsZero())

	bal, err := f.uc.Balance(ctx, sess)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())

	txs, err := f.uc.History(ctx, sess, HistoryInput{})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, "100.00", txs[0].Amount.StringFixed(2))
	assert.Equal(t, "-30.50", txs[1].Amount.StringFixed(2))
	assert.Equal(t, entity.TransactionKindWithdrawal, txs[2].Kind)
	assert.Less(t, txs[0].ID, txs[1].ID)
}

func TestLedger_InvalidAmount(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	secret := f.register(t, "alice", "1234")
	sess := f.login(t, "alice", "1234", secret)
	f.register(t, "bob", "1234")

	for _, a := range []string{"0", "-1", "1.005", "0.001"} {
		t.Run(a, func(t *testing.T) {
			_, err := f.uc.Deposit(ctx, sess, amount(a))
			assert.ErrorIs(t, err, entity.ErrInvalidAmount)
			assert.Equal(t, goerror.CodeInvalidInput, goerror.CodeOf(err))

			_, err = f.uc.Withdraw(ctx, sess, amount(a))
			assert.ErrorIs(t, err, entity.ErrInvalidAmount)

			_, err = f.uc.Transfer(ctx, sess, TransferInput{ReceiverID: "bob", Amount: decimal.RequireFromString(a)})
			assert.ErrorIs(t, err, entity.ErrInvalidAmount)
		})
	}

	txs, err := f.uc.History(ctx, sess, HistoryInput{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestTransfer(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	aliceSecret := f.register(t, "alice", "1234")
	bobSecret := f.register(t, "bob", "1234")

	alice := f.login(t, "alice", "1234", aliceSecret)
	bob := f.login(t, "bob", "1234", bobSecret)
	f.deposit(t, alice, "100")
	f.deposit(t, bob, "100")

	out, err := f.uc.Transfer(ctx, alice, TransferInput{ReceiverID: "bob", Amount: decimal.RequireFromString("50")})
	require.NoError(t, err)
	assert.Equal(t, "49.00", out.Balance.StringFixed(2))
	require.Len(t, out.Transactions, 3)

	assert.Equal(t, "49.00", f.balance(t, "alice"))
	assert.Equal(t, "150.00", f.balance(t, "bob"))
	assert.Equal(t, "1.00", f.balance(t, "admin"))

	want := []struct {
		account string
		amount  string
		kind    entity.TransactionKind
	}{
		{"alice", "-51.00", entity.TransactionKindTransferOut},
		{"bob", "50.00", entity.TransactionKindTransferIn},
		{"admin", "1.00", entity.TransactionKindFee},
	}
	for i, w := range want {
		assert.Equal(t, w.account, out.Transactions[i].AccountID)
		assert.Equal(t, w.amount, out.Transactions[i].Amount.StringFixed(2))
		assert.Equal(t, w.kind, out.Transactions[i].Kind)
	}

	t.Run("InsufficientFundsIncludesFee", func(t *testing.T) {
		_, err := f.uc.Transfer(ctx, alice, TransferInput{ReceiverID: "bob", Amount: decimal.RequireFromString("49")})
		assert.ErrorIs(t, err, entity.ErrInsufficientFunds)

		assert.Equal(t, "49.00", f.balance(t, "alice"))
		assert.Equal(t, "150.00", f.balance(t, "bob"))
		assert.Equal(t, "1.00", f.balance(t, "admin"))

		txs, err := f.uc.History(ctx, alice, HistoryInput{})
		require.NoError(t, err)
		assert.Len(t, txs, 2)
	})

	t.Run("ExactBalance", func(t *testing.T) {
		_, err := f.uc.Transfer(ctx, alice, TransferInput{ReceiverID: "bob", Amount: decimal.RequireFromString("48")})
		require.NoError(t, err)
		assert.Equal(t, "0.00", f.balance(t, "alice"))
		assert.Equal(t, "2.00", f.balance(t, "admin"))
	})

	t.Run("UnknownReceiver", func(t *testing.T) {
		before, err := f.store.QueryTransactions(ctx, "")
		require.NoError(t, err)

		_, err = f.uc.Transfer(ctx, bob, TransferInput{ReceiverID: "carol", Amount: decimal.RequireFromString("1")})
		assert.ErrorIs(t, err, entity.ErrReceiverNotFound)
		assert.Equal(t, goerror.CodeNotFound, goerror.CodeOf(err))
		assert.Equal(t, "198.00", f.balance(t, "bob"))
		assert.Equal(t, "0.00", f.balance(t, "alice"))
		assert.Equal(t, "2.00", f.balance(t, "admin"))

		after, err := f.store.QueryTransactions(ctx, "")
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("SelfTransfer", func(t *testing.T) {
		_, err := f.uc.Transfer(ctx, bob, TransferInput{ReceiverID: "bob", Amount: decimal.RequireFromString("1")})
		assert.ErrorIs(t, err, entity.ErrSelfTransfer)
	})

	t.Run("MissingReceiver", func(t *testing.T) {
		_, err := f.uc.Transfer(ctx, bob, TransferInput{Amount: decimal.RequireFromString("1")})
		assert.Equal(t, goerror.CodeInvalidInput, goerror.CodeOf(err))
	})

	t.Run("RootSenderPaysFeeToItself", func(t *testing.T) {
		root := f.rootSession(t)
		_, err := f.uc.Transfer(ctx, root, TransferInput{ReceiverID: "alice", Amount: decimal.RequireFromString("1")})
		require.NoError(t, err)
		assert.Equal(t, "1.00", f.balance(t, "admin"))
		assert.Equal(t, "1.00", f.balance(t, "alice"))
	})
}

func TestTransfer_ZeroFee(t *testing.T) {
	f := newFixture(t, `
    ledger:
      transfer_fee: "0"
`)
	ctx := context.Background()
	aliceSecret := f.register(t, "alice", "1234")
	f.register(t, "bob", "1234")
	alice := f.login(t, "alice", "1234", aliceSecret)
	f.deposit(t, alice, "10")

	out, err := f.uc.Transfer(ctx, alice, TransferInput{ReceiverID: "bob", Amount: decimal.RequireFromString("10")})
	require.NoError(t, err)
	assert.Len(t, out.Transactions, 2)
	assert.Equal(t, "10.00", f.balance(t, "bob"))
	assert.Equal(t, "0.00", f.balance(t, "admin"))
}

func TestHistory_Permissions(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	aliceSecret := f.register(t, "alice", "1234")
	bobSecret := f.register(t, "bob", "1234")
	alice := f.login(t, "alice", "1234", aliceSecret)
	bob := f.login(t, "bob", "1234", bobSecret)
	f.deposit(t, alice, "10")
	f.deposit(t, bob, "20")

	_, err := f.uc.History(ctx, bob, HistoryInput{AccountID: "alice"})
	assert.ErrorIs(t, err, entity.ErrForbidden)
	assert.Equal(t, goerror.CodeForbidden, goerror.CodeOf(err))

	_, err = f.uc.History(ctx, bob, HistoryInput{AccountID: AllAccounts})
	assert.ErrorIs(t, err, entity.ErrForbidden)

	root := f.rootSession(t)

	txs, err := f.uc.History(ctx, root, HistoryInput{AccountID: "alice"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "alice", txs[0].AccountID)

	txs, err = f.uc.History(ctx, root, HistoryInput{AccountID: AllAccounts})
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}
