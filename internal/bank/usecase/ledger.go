package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shopspring/decimal"
)

type AmountInput struct {
	Amount decimal.Decimal
}

type LedgerOutput struct {
	Balance      decimal.Decimal
	Transactions []entity.Transaction
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(entity.Scale)) {
		return goerror.NewBusinessCause("amount must be positive with at most 2 decimal places", entity.ErrInvalidAmount, goerror.CodeInvalidInput)
	}

	return nil
}

func errInsufficientFunds() error {
	return goerror.NewBusinessCause("insufficient funds", entity.ErrInsufficientFunds, goerror.CodeFailedPrecondition)
}

func errAccountGone() error {
	return goerror.NewBusinessCause("account no longer exists", entity.ErrAccountNotFound, goerror.CodeNotFound)
}

// storeError passes business errors raised inside an update through and turns
// everything else into a server error.
func storeError(ctx context.Context, msg string, err error, args ...any) error {
	var ge *goerror.Error
	if errors.As(err, &ge) {
		return err
	}

	slog.ErrorContext(ctx, msg, append(args, "error", err)...)

	return goerror.NewServer(err)
}

func (s *Usecase) newTransaction(accountID string, amount decimal.Decimal, kind entity.TransactionKind) entity.Transaction {
	return entity.Transaction{
		ID:        s.uid.Generate(),
		AccountID: accountID,
		Amount:    amount.Round(entity.Scale),
		Kind:      kind,
		CreatedAt: s.clock.Now(),
	}
}

func (s *Usecase) Deposit(ctx context.Context, sess *Session, in AmountInput) (*LedgerOutput, error) {
	ctx, span := s.startSpan(ctx, "Deposit")
	defer span.End()

	if err := requireSession(sess); err != nil {
		return nil, err
	}

	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}

	out := &LedgerOutput{}
	err := s.store.UpdateAccounts(ctx, []string{sess.accountID}, func(accs map[string]*entity.Account) ([]entity.Transaction, error) {
		acc, ok := accs[sess.accountID]
		if !ok {
			return nil, errAccountGone()
		}

		acc.Balance = acc.Balance.Add(in.Amount)
		acc.UpdatedAt = s.clock.Now()
		out.Balance = acc.Balance
		out.Transactions = []entity.Transaction{s.newTransaction(acc.ID, in.Amount, entity.TransactionKindDeposit)}

		return out.Transactions, nil
	})
	if err != nil {
		return nil, storeError(ctx, "failed to repo deposit", err, "account_id", sess.accountID)
	}

	s.countLedger(ctx, entity.TransactionKindDeposit)
	slog.InfoContext(ctx, "deposit committed", "account_id", sess.accountID, "amount", in.Amount.StringFixed(entity.Scale))

	return out, nil
}

func (s *Usecase) Withdraw(ctx context.Context, sess *Session, in AmountInput) (*LedgerOutput, error) {
	ctx, span := s.startSpan(ctx, "Withdraw")
	defer span.End()

	if err := requireSession(sess); err != nil {
		return nil, err
	}

	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}

	out := &LedgerOutput{}
	err := s.store.UpdateAccounts(ctx, []string{sess.accountID}, func(accs map[string]*entity.Account) ([]entity.Transaction, error) {
		acc, ok := accs[sess.accountID]
		if !ok {
			return nil, errAccountGone()
		}

		if in.Amount.GreaterThan(acc.Balance) {
			return nil, errInsufficientFunds()
		}

		acc.Balance = acc.Balance.Sub(in.Amount)
		acc.UpdatedAt = s.clock.Now()
		out.Balance = acc.Balance
		out.Transactions = []entity.Transaction{s.newTransaction(acc.ID, in.Amount.Neg(), entity.TransactionKindWithdrawal)}

		return out.Transactions, nil
	})
	if err != nil {
		return nil, storeError(ctx, "failed to repo withdraw", err, "account_id", sess.accountID)
	}

	s.countLedger(ctx, entity.TransactionKindWithdrawal)
	slog.InfoContext(ctx, "withdrawal committed", "account_id", sess.accountID, "amount", in.Amount.StringFixed(entity.Scale))

	return out, nil
}

type TransferInput struct {
	ReceiverID string `validate:"required"`
	Amount     decimal.Decimal
}

// Transfer moves amount to the receiver and charges the fee to the sender in
// favour of the root account, all in one store update.
func (s *Usecase) Transfer(ctx context.Context, sess *Session, in TransferInput) (*LedgerOutput, error) {
	ctx, span := s.startSpan(ctx, "Transfer")
	defer span.End()

	if err := requireSession(sess); err != nil {
		return nil, err
	}

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if in.ReceiverID == sess.accountID {
		return nil, goerror.NewBusinessCause("cannot transfer to the same account", entity.ErrSelfTransfer, goerror.CodeInvalidInput)
	}

	if err := validateAmount(in.Amount); err != nil {
		return nil, err
	}

	fee := s.transferFee()
	rootID := s.rootID()
	senderID := sess.accountID

	ids := []string{senderID, in.ReceiverID}
	if rootID != senderID && rootID != in.ReceiverID {
		ids = append(ids, rootID)
	}

	out := &LedgerOutput{}
	err := s.store.UpdateAccounts(ctx, ids, func(accs map[string]*entity.Account) ([]entity.Transaction, error) {
		sender, ok := accs[senderID]
		if !ok {
			return nil, errAccountGone()
		}

		receiver, ok := accs[in.ReceiverID]
		if !ok {
			return nil, goerror.NewBusinessCause("receiver not found", entity.ErrReceiverNotFound, goerror.CodeNotFound)
		}

		root, ok := accs[rootID]
		if !ok {
			return nil, goerror.NewServer(errors.New("bank: root account missing"))
		}

		debit := in.Amount.Add(fee)
		if debit.GreaterThan(sender.Balance) {
			return nil, errInsufficientFunds()
		}

		now := s.clock.Now()
		sender.Balance = sender.Balance.Sub(debit)
		receiver.Balance = receiver.Balance.Add(in.Amount)
		root.Balance = root.Balance.Add(fee)
		sender.UpdatedAt, receiver.UpdatedAt, root.UpdatedAt = now, now, now

		txs := []entity.Transaction{
			s.newTransaction(senderID, debit.Neg(), entity.TransactionKindTransferOut),
			s.newTransaction(in.ReceiverID, in.Amount, entity.TransactionKindTransferIn),
		}
		if fee.IsPositive() {
			txs = append(txs, s.newTransaction(rootID, fee, entity.TransactionKindFee))
		}

		out.Balance = sender.Balance
		out.Transactions = txs

		return txs, nil
	})
	if err != nil {
		return nil, storeError(ctx, "failed to repo transfer", err, "account_id", senderID, "receiver_id", in.ReceiverID)
	}

	s.countLedger(ctx, entity.TransactionKindTransferOut)
	slog.InfoContext(ctx, "transfer committed",
		"account_id", senderID,
		"receiver_id", in.ReceiverID,
		"amount", in.Amount.StringFixed(entity.Scale),
		"fee", fee.StringFixed(entity.Scale),
	)

	return out, nil
}

func (s *Usecase) Balance(ctx context.Context, sess *Session) (decimal.Decimal, error) {
	ctx, span := s.startSpan(ctx, "Balance")
	defer span.End()

	if err := requireSession(sess); err != nil {
		return decimal.Zero, err
	}

	acc, err := s.store.GetAccount(ctx, sess.accountID)
	if errors.Is(err, goerror.ErrNotFound) {
		return decimal.Zero, errAccountGone()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account", "account_id", sess.accountID, "error", err)
		return decimal.Zero, goerror.NewServer(err)
	}

	return acc.Balance, nil
}

// AllAccounts selects every account's history. Only root may use it.
const AllAccounts = "*"

type HistoryInput struct {
	// AccountID defaults to the session account.
	AccountID string
}

func (s *Usecase) History(ctx context.Context, sess *Session, in HistoryInput) ([]entity.Transaction, error) {
	ctx, span := s.startSpan(ctx, "History")
	defer span.End()

	if err := requireSession(sess); err != nil {
		return nil, err
	}

	target := in.AccountID
	if target == "" {
		target = sess.accountID
	}

	if target != sess.accountID && !sess.root {
		slog.WarnContext(ctx, "history of another account requested", "account_id", sess.accountID, "target", target)
		return nil, goerror.NewBusinessCause("not allowed to read this history", entity.ErrForbidden, goerror.CodeForbidden)
	}

	if target == AllAccounts {
		target = ""
	}

	txs, err := s.store.QueryTransactions(ctx, target)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo query transactions", "account_id", target, "error", err)
		return nil, goerror.NewServer(err)
	}

	return txs, nil
}
