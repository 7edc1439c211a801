package inbound

import (
	"context"
	"time"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/bank/usecase"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/console"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type uc interface {
	BeginLogin(ctx context.Context) *usecase.LoginAttempt

	StartRegistration(ctx context.Context, in usecase.StartRegistrationInput) (*usecase.StartRegistrationOutput, error)
	CompleteRegistration(ctx context.Context, in usecase.CompleteRegistrationInput) (*entity.Account, error)
	RecoverAccountID(ctx context.Context, in usecase.RecoverAccountIDInput) (string, error)
	ResetPIN(ctx context.Context, in usecase.ResetPINInput) error
	ProvisioningURI(accountID, secret string) string
	QRCode(accountID, secret string) ([]byte, error)
	DeleteAccount(ctx context.Context, sess *usecase.Session, in usecase.DeleteAccountInput) error

	Balance(ctx context.Context, sess *usecase.Session) (decimal.Decimal, error)
	Deposit(ctx context.Context, sess *usecase.Session, in usecase.AmountInput) (*usecase.LedgerOutput, error)
	Withdraw(ctx context.Context, sess *usecase.Session, in usecase.AmountInput) (*usecase.LedgerOutput, error)
	Transfer(ctx context.Context, sess *usecase.Session, in usecase.TransferInput) (*usecase.LedgerOutput, error)
	History(ctx context.Context, sess *usecase.Session, in usecase.HistoryInput) ([]entity.Transaction, error)
}

// RegisterCLICommands adds the bank commands to root. Times are shown in loc.
func RegisterCLICommands(root *cobra.Command, con *console.Console, uc uc, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}

	end := &CLIEndpoint{uc: uc, con: con, loc: loc}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return goerror.NewInvalidFormat(err.Error())
	})

	// Onboarding
	root.AddCommand(end.registerCommand())
	root.AddCommand(end.recoverIDCommand())
	root.AddCommand(end.resetPINCommand())

	// Authenticated
	root.AddCommand(end.loginCommand())
	root.AddCommand(end.balanceCommand())
	root.AddCommand(end.depositCommand())
	root.AddCommand(end.withdrawCommand())
	root.AddCommand(end.transferCommand())
	root.AddCommand(end.historyCommand())
	root.AddCommand(end.deleteAccountCommand())
}
