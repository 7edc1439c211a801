package inbound

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/bank/usecase"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/console"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/spf13/cobra"
)

const maxRegistrationTries = 3

// CLIEndpoint exposes the bank operations as cobra commands.
type CLIEndpoint struct {
	uc  uc
	con *console.Console
	loc *time.Location
}

func bindAuthFlags(cmd *cobra.Command, f *authFlags) {
	cmd.Flags().StringVarP(&f.Account, "account", "a", "", "account id (prompted when omitted)")
	cmd.Flags().StringVarP(&f.PIN, "pin", "p", "", "account PIN (prompted when omitted)")
	cmd.Flags().StringVarP(&f.Code, "code", "c", "", "TOTP code (prompted when required)")
}

// orPrompt returns value, or asks for it when empty.
func (h *CLIEndpoint) orPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}

	v, err := h.con.Prompt(label)
	if errors.Is(err, console.ErrNoInput) {
		return "", goerror.NewInvalidInput(nil, label, label+" is required")
	}

	return v, err
}

// authenticate runs one login attempt. The code prompt repeats while the
// attempt stays in the TOTP challenge.
func (h *CLIEndpoint) authenticate(ctx context.Context, f authFlags) (*usecase.Session, error) {
	account, err := h.orPrompt(f.Account, "Account ID")
	if err != nil {
		return nil, err
	}

	pin, err := h.orPrompt(f.PIN, "PIN")
	if err != nil {
		return nil, err
	}

	attempt := h.uc.BeginLogin(ctx)

	state, err := attempt.SubmitCredentials(ctx, usecase.CredentialsInput{AccountID: account, PIN: pin})
	if err != nil {
		return nil, err
	}

	code := f.Code
	for state == usecase.LoginStateTOTPChallenge {
		if code, err = h.orPrompt(code, "TOTP code"); err != nil {
			return nil, err
		}

		state, err = attempt.SubmitCode(ctx, code)
		code = ""

		if err != nil && state == usecase.LoginStateTOTPChallenge && errors.Is(err, entity.ErrInvalidTOTPCode) {
			h.con.Warning("Invalid code, %d attempt(s) left", attempt.RemainingAttempts())
			continue
		}
		if err != nil {
			return nil, err
		}
	}

	sess := attempt.Session()
	if sess == nil {
		return nil, goerror.NewBusinessCause("login did not complete", entity.ErrUnauthenticated, goerror.CodeUnauthorized)
	}

	return sess, nil
}

func (h *CLIEndpoint) loginCommand() *cobra.Command {
	var f authFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials and the TOTP code",
		Long: `Log in with an account id, PIN and TOTP code.

A successful login opens a trust window during which the TOTP code is not
asked again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := h.authenticate(cmd.Context(), f)
			if err != nil {
				return err
			}

			h.con.Success("Logged in as %s", sess.AccountID())
			h.con.Muted("Session started %s", sess.AdmittedAt().In(h.loc).Format(time.DateTime))
			switch {
			case sess.IsRoot():
				h.con.Muted("root account, no TOTP required")
			case sess.Remembered():
				h.con.Muted("TOTP skipped, inside the trust window")
			}

			return nil
		},
	}
	bindAuthFlags(cmd, &f)

	return cmd
}

func (h *CLIEndpoint) balanceCommand() *cobra.Command {
	var f authFlags

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the account balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := h.authenticate(cmd.Context(), f)
			if err != nil {
				return err
			}

			bal, err := h.uc.Balance(cmd.Context(), sess)
			if err != nil {
				return err
			}

			h.con.Success("Balance of %s: %s", sess.AccountID(), money(bal))

			return nil
		},
	}
	bindAuthFlags(cmd, &f)

	return cmd
}

func (h *CLIEndpoint) depositCommand() *cobra.Command {
	var f amountFlags

	cmd := &cobra.Command{
		Use:     "deposit",
		Short:   "Deposit cash",
		Example: "  ledgerguard deposit -a alice -p 1234 --amount 100.00",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := parseAmount(f.Amount)
			if err != nil {
				return err
			}

			sess, err := h.authenticate(cmd.Context(), f.auth)
			if err != nil {
				return err
			}

			out, err := h.uc.Deposit(cmd.Context(), sess, usecase.AmountInput{Amount: amount})
			if err != nil {
				return err
			}

			h.con.Success("Deposited %s, new balance %s", money(amount), money(out.Balance))

			return nil
		},
	}
	bindAuthFlags(cmd, &f.auth)
	cmd.Flags().StringVar(&f.Amount, "amount", "", "amount with at most 2 decimal places")

	return cmd
}

func (h *CLIEndpoint) withdrawCommand() *cobra.Command {
	var f amountFlags

	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw cash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := parseAmount(f.Amount)
			if err != nil {
				return err
			}

			sess, err := h.authenticate(cmd.Context(), f.auth)
			if err != nil {
				return err
			}

			out, err := h.uc.Withdraw(cmd.Context(), sess, usecase.AmountInput{Amount: amount})
			if err != nil {
				return err
			}

			h.con.Success("Withdrew %s, new balance %s", money(amount), money(out.Balance))

			return nil
		},
	}
	bindAuthFlags(cmd, &f.auth)
	cmd.Flags().StringVar(&f.Amount, "amount", "", "amount with at most 2 decimal places")

	return cmd
}

func (h *CLIEndpoint) transferCommand() *cobra.Command {
	var f transferFlags

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer money to another account",
		Long: `Transfer money to another account.

The sender also pays a fixed fee that is credited to the root account.`,
		Example: "  ledgerguard transfer -a alice -p 1234 --to bob --amount 50",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := parseAmount(f.Amount)
			if err != nil {
				return err
			}

			sess, err := h.authenticate(cmd.Context(), f.auth)
			if err != nil {
				return err
			}

			out, err := h.uc.Transfer(cmd.Context(), sess, usecase.TransferInput{ReceiverID: f.To, Amount: amount})
			if err != nil {
				return err
			}

			fee := out.Transactions[0].Amount.Neg().Sub(amount)
			h.con.Success("Transferred %s to %s (fee %s), new balance %s", money(amount), f.To, money(fee), money(out.Balance))

			return nil
		},
	}
	bindAuthFlags(cmd, &f.auth)
	cmd.Flags().StringVar(&f.To, "to", "", "receiver account id")
	cmd.Flags().StringVar(&f.Amount, "amount", "", "amount with at most 2 decimal places")

	return cmd
}

func (h *CLIEndpoint) historyCommand() *cobra.Command {
	var f historyFlags

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List transactions, oldest first",
		Long: `List transactions, oldest first.

Root may pass --of with another account id, or "*" for every account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := h.authenticate(cmd.Context(), f.auth)
			if err != nil {
				return err
			}

			txs, err := h.uc.History(cmd.Context(), sess, usecase.HistoryInput{AccountID: f.Of})
			if err != nil {
				return err
			}

			if len(txs) == 0 {
				h.con.Info("No transactions yet")
				return nil
			}

			rows := make([][]string, 0, len(txs))
			for _, t := range txs {
				rows = append(rows, []string{
					strconv.FormatInt(t.ID, 10),
					t.AccountID,
					t.Kind.String(),
					money(t.Amount),
					t.CreatedAt.In(h.loc).Format(time.DateTime),
				})
			}
			h.con.Table([]string{"ID", "Account", "Kind", "Amount", "Time"}, rows)

			return nil
		},
	}
	bindAuthFlags(cmd, &f.auth)
	cmd.Flags().StringVar(&f.Of, "of", "", `account to list, "*" for all (root only)`)

	return cmd
}

func (h *CLIEndpoint) deleteAccountCommand() *cobra.Command {
	var f deleteFlags

	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete an account with a zero balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := h.authenticate(cmd.Context(), f.auth)
			if err != nil {
				return err
			}

			if err := h.uc.DeleteAccount(cmd.Context(), sess, usecase.DeleteAccountInput{AccountID: f.Target}); err != nil {
				return err
			}

			target := f.Target
			if target == "" {
				target = sess.AccountID()
			}
			h.con.Success("Account %s deleted", target)

			return nil
		},
	}
	bindAuthFlags(cmd, &f.auth)
	cmd.Flags().StringVar(&f.Target, "target", "", "account to delete (root only, defaults to your own)")

	return cmd
}

func (h *CLIEndpoint) registerCommand() *cobra.Command {
	var f registerFlags

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account protected by PIN and TOTP",
		Long: `Create an account.

A new TOTP secret is printed together with its otpauth URI. Add it to an
authenticator app and enter the current code to finish. Pass --secret to
enrol an existing base32 secret instead, and --qr-file to get a scannable PNG
that is deleted once registration ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			account, err := h.orPrompt(f.Account, "Account ID")
			if err != nil {
				return err
			}

			pin, err := h.orPrompt(f.PIN, "PIN")
			if err != nil {
				return err
			}

			start, err := h.uc.StartRegistration(ctx, usecase.StartRegistrationInput{AccountID: account})
			if err != nil {
				return err
			}

			secret, uri := start.Secret, start.URI
			if f.Secret != "" {
				secret, uri = f.Secret, h.uc.ProvisioningURI(start.AccountID, f.Secret)
			}

			h.con.Section("Authenticator setup")
			h.con.Info("Secret: %s", secret)
			h.con.Info("URI:    %s", uri)

			if f.QRFile != "" {
				png, err := h.uc.QRCode(start.AccountID, secret)
				if err != nil {
					return goerror.NewServer(err)
				}
				if err := os.WriteFile(f.QRFile, png, 0o600); err != nil {
					return goerror.NewServer(err)
				}
				defer func() {
					if err := os.Remove(f.QRFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
						h.con.Warning("Could not remove %s: %v", f.QRFile, err)
					}
				}()
				h.con.Info("QR:     %s (removed when registration ends)", f.QRFile)
			}

			code := f.Code
			for try := 1; ; try++ {
				if code, err = h.orPrompt(code, "TOTP code"); err != nil {
					return err
				}

				_, err = h.uc.CompleteRegistration(ctx, usecase.CompleteRegistrationInput{
					AccountID: start.AccountID,
					PIN:       pin,
					Secret:    secret,
					Code:      code,
				})
				code = ""

				if err != nil && try < maxRegistrationTries && errors.Is(err, entity.ErrInvalidTOTPCode) {
					h.con.Warning("Invalid code, try again")
					continue
				}
				if err != nil {
					return err
				}
				break
			}

			h.con.Success("Account %s registered", start.AccountID)

			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Account, "account", "a", "", "account id (prompted when omitted)")
	cmd.Flags().StringVarP(&f.PIN, "pin", "p", "", "account PIN (prompted when omitted)")
	cmd.Flags().StringVar(&f.Secret, "secret", "", "existing base32 TOTP secret")
	cmd.Flags().StringVar(&f.QRFile, "qr-file", "", "write the setup QR code as PNG to this path while registering")
	cmd.Flags().StringVarP(&f.Code, "code", "c", "", "TOTP code for the secret (prompted when omitted)")

	return cmd
}

func (h *CLIEndpoint) recoverIDCommand() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "recover-id",
		Short: "Find a forgotten account id from a TOTP code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := h.orPrompt(code, "TOTP code")
			if err != nil {
				return err
			}

			id, err := h.uc.RecoverAccountID(cmd.Context(), usecase.RecoverAccountIDInput{Code: c})
			if err != nil {
				return err
			}

			h.con.Success("Your account id is %s", id)

			return nil
		},
	}
	cmd.Flags().StringVarP(&code, "code", "c", "", "TOTP code (prompted when omitted)")

	return cmd
}

func (h *CLIEndpoint) resetPINCommand() *cobra.Command {
	var f resetPINFlags

	cmd := &cobra.Command{
		Use:   "reset-pin",
		Short: "Set a new PIN after proving the TOTP code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			account, err := h.orPrompt(f.Account, "Account ID")
			if err != nil {
				return err
			}

			c, err := h.orPrompt(f.Code, "TOTP code")
			if err != nil {
				return err
			}

			pin, err := h.orPrompt(f.NewPIN, "New PIN")
			if err != nil {
				return err
			}

			if err := h.uc.ResetPIN(cmd.Context(), usecase.ResetPINInput{AccountID: account, Code: c, NewPIN: pin}); err != nil {
				return err
			}

			h.con.Success("PIN of %s updated", account)

			return nil
		},
	}
	cmd.Flags().StringVarP(&f.Account, "account", "a", "", "account id (prompted when omitted)")
	cmd.Flags().StringVar(&f.NewPIN, "new-pin", "", "new PIN (prompted when omitted)")
	cmd.Flags().StringVarP(&f.Code, "code", "c", "", "TOTP code (prompted when omitted)")

	return cmd
}
