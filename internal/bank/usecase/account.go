package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shopspring/decimal"
)

type CreateAccountInput struct {
	AccountID string `validate:"required,account_id"`
	PIN       string `validate:"required,pin"`
	// TOTPSecret is the base32 secret; empty only for the root account.
	TOTPSecret string
}

// CreateAccount stores a new account with a zero balance. The PIN is hashed
// and the TOTP secret sealed before anything reaches the store.
func (s *Usecase) CreateAccount(ctx context.Context, in CreateAccountInput) (*entity.Account, error) {
	ctx, span := s.startSpan(ctx, "CreateAccount")
	defer span.End()

	in.AccountID = strings.TrimSpace(in.AccountID)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	isRoot := in.AccountID == s.rootID()
	if in.TOTPSecret == "" && !isRoot {
		return nil, goerror.NewInvalidInput(nil, "totp_secret", "totp_secret is required")
	}
	if in.TOTPSecret != "" && isRoot {
		return nil, goerror.NewInvalidInput(nil, "totp_secret", "the root account has no totp secret")
	}

	pinHash, err := s.pinHash.Hash(in.PIN)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash pin", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	var sealed []byte
	if in.TOTPSecret != "" {
		sealed, err = s.sealer.Seal([]byte(in.TOTPSecret), s.sealScope(in.AccountID))
		if err != nil {
			slog.ErrorContext(ctx, "failed to seal totp secret", "account_id", in.AccountID, "error", err)
			return nil, goerror.NewServer(err)
		}
	}

	now := s.clock.Now()
	acc := entity.Account{
		ID:         in.AccountID,
		PINHash:    string(pinHash),
		TOTPSecret: sealed,
		Balance:    decimal.Zero,
		LastAuthAt: entity.UnixEpoch,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.store.InsertAccount(ctx, acc)
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "account id already taken", "account_id", in.AccountID)
		return nil, errAccountExists()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo insert account", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "account created", "account_id", acc.ID, "root", isRoot)

	return &acc, nil
}

// EnsureRootAccount seeds the root account from configuration when missing.
func (s *Usecase) EnsureRootAccount(ctx context.Context) error {
	ctx, span := s.startSpan(ctx, "EnsureRootAccount")
	defer span.End()

	rootID := s.rootID()

	ok, err := s.store.Exists(ctx, rootID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo check root account", "account_id", rootID, "error", err)
		return goerror.NewServer(err)
	}
	if ok {
		return nil
	}

	pin := s.cfg.GetString("modules.bank.root.pin")
	if pin == "" {
		pin = DefaultRootID
	}

	_, err = s.CreateAccount(ctx, CreateAccountInput{AccountID: rootID, PIN: pin})
	if errors.Is(err, entity.ErrAccountExists) {
		return nil
	}

	return err
}

type StartRegistrationInput struct {
	AccountID string `validate:"required,account_id"`
}

type StartRegistrationOutput struct {
	AccountID string
	Secret    string
	URI       string
}

// StartRegistration reserves nothing; it checks the id is free and hands out
// a fresh secret that CompleteRegistration must prove possession of.
func (s *Usecase) StartRegistration(ctx context.Context, in StartRegistrationInput) (*StartRegistrationOutput, error) {
	ctx, span := s.startSpan(ctx, "StartRegistration")
	defer span.End()

	in.AccountID = strings.TrimSpace(in.AccountID)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	if in.AccountID == s.rootID() {
		return nil, errAccountExists()
	}

	taken, err := s.store.Exists(ctx, in.AccountID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo check account", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}
	if taken {
		return nil, errAccountExists()
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewServer(err)
	}

	return &StartRegistrationOutput{
		AccountID: in.AccountID,
		Secret:    secret,
		URI:       s.totp.ProvisioningURI(secret, in.AccountID),
	}, nil
}

type CompleteRegistrationInput struct {
	AccountID string `validate:"required,account_id"`
	PIN       string `validate:"required,pin"`
	Secret    string `validate:"required"`
	Code      string `validate:"required"`
}

// CompleteRegistration creates the account once the code proves the
// authenticator app holds the secret. A wrong code stores nothing.
func (s *Usecase) CompleteRegistration(ctx context.Context, in CompleteRegistrationInput) (*entity.Account, error) {
	ctx, span := s.startSpan(ctx, "CompleteRegistration")
	defer span.End()

	in.AccountID = strings.TrimSpace(in.AccountID)
	in.Code = strings.TrimSpace(in.Code)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	secret, err := s.totp.NormalizeSecret(in.Secret)
	if err != nil {
		slog.WarnContext(ctx, "registration secret rejected", "account_id", in.AccountID, "error", err)
		return nil, goerror.NewInvalidInput(nil, "secret", "secret must be base32 encoding at least 160 bits")
	}

	if !isWellFormedCode(in.Code) || !s.totp.Verify(secret, in.Code, s.clock.Now()) {
		slog.WarnContext(ctx, "registration code rejected", "account_id", in.AccountID)
		return nil, goerror.NewBusinessCause("invalid totp code", entity.ErrInvalidTOTPCode, goerror.CodeUnauthorized)
	}

	return s.CreateAccount(ctx, CreateAccountInput{
		AccountID:  in.AccountID,
		PIN:        in.PIN,
		TOTPSecret: secret,
	})
}

type RecoverAccountIDInput struct {
	Code string `validate:"required,numeric,len=6"`
}

// RecoverAccountID finds the account whose authenticator currently shows
// code. With more than one match the oldest account wins.
func (s *Usecase) RecoverAccountID(ctx context.Context, in RecoverAccountIDInput) (string, error) {
	ctx, span := s.startSpan(ctx, "RecoverAccountID")
	defer span.End()

	in.Code = strings.TrimSpace(in.Code)
	if err := s.validator.Validate(in); err != nil {
		return "", goerror.NewInvalidInput(err)
	}

	accs, err := s.store.LoadAccounts(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo load accounts", "error", err)
		return "", goerror.NewServer(err)
	}

	now := s.clock.Now()
	var found *entity.Account
	for _, acc := range accs {
		secret, err := s.openSecret(acc)
		if err != nil {
			slog.ErrorContext(ctx, "failed to open totp secret", "account_id", acc.ID, "error", err)
			continue
		}
		if !s.totp.Verify(secret, in.Code, now) {
			continue
		}
		if found == nil || acc.CreatedAt.Before(found.CreatedAt) ||
			(acc.CreatedAt.Equal(found.CreatedAt) && acc.ID < found.ID) {
			match := acc
			found = &match
		}
	}

	if found == nil {
		slog.WarnContext(ctx, "no account matches recovery code")
		return "", goerror.NewBusinessCause("no account matches this code", entity.ErrAccountNotFound, goerror.CodeNotFound)
	}

	return found.ID, nil
}

type ResetPINInput struct {
	AccountID string `validate:"required"`
	Code      string `validate:"required"`
	NewPIN    string `validate:"required,pin"`
}

// ResetPIN replaces the PIN after a successful TOTP check.
func (s *Usecase) ResetPIN(ctx context.Context, in ResetPINInput) error {
	ctx, span := s.startSpan(ctx, "ResetPIN")
	defer span.End()

	in.AccountID = strings.TrimSpace(in.AccountID)
	in.Code = strings.TrimSpace(in.Code)
	if err := s.validator.Validate(in); err != nil {
		return goerror.NewInvalidInput(err)
	}

	if in.AccountID == s.rootID() {
		return goerror.NewBusinessCause("the root pin cannot be reset with a code", entity.ErrProtectedAccount, goerror.CodeForbidden)
	}

	if s.persistLockout() {
		locked, err := s.lockout.IsLocked(ctx, in.AccountID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo check lockout", "account_id", in.AccountID, "error", err)
			return goerror.NewServer(err)
		}
		if locked {
			return errLockedOut()
		}
	}

	pinHash, err := s.pinHash.Hash(in.NewPIN)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash pin", "account_id", in.AccountID, "error", err)
		return goerror.NewServer(err)
	}

	now := s.clock.Now()
	err = s.store.UpdateAccounts(ctx, []string{in.AccountID}, func(accs map[string]*entity.Account) ([]entity.Transaction, error) {
		acc, ok := accs[in.AccountID]
		if !ok {
			return nil, goerror.NewBusinessCause("account not found", entity.ErrAccountNotFound, goerror.CodeNotFound)
		}

		secret, err := s.openSecret(*acc)
		if err != nil {
			return nil, goerror.NewServer(err)
		}

		if !isWellFormedCode(in.Code) || !s.totp.Verify(secret, in.Code, now) {
			return nil, goerror.NewBusinessCause("invalid totp code", entity.ErrInvalidTOTPCode, goerror.CodeUnauthorized)
		}

		acc.PINHash = string(pinHash)
		acc.UpdatedAt = now

		return nil, nil
	})
	if err != nil {
		return storeError(ctx, "failed to repo reset pin", err, "account_id", in.AccountID)
	}

	slog.InfoContext(ctx, "pin reset", "account_id", in.AccountID)

	return nil
}

type DeleteAccountInput struct {
	// AccountID defaults to the session account.
	AccountID string
}

// DeleteAccount removes an account with a zero balance. Its transaction
// history is kept.
func (s *Usecase) DeleteAccount(ctx context.Context, sess *Session, in DeleteAccountInput) error {
	ctx, span := s.startSpan(ctx, "DeleteAccount")
	defer span.End()

	if err := requireSession(sess); err != nil {
		return err
	}

	target := strings.TrimSpace(in.AccountID)
	if target == "" {
		target = sess.accountID
	}

	if target == s.rootID() {
		return goerror.NewBusinessCause("the root account cannot be deleted", entity.ErrProtectedAccount, goerror.CodeForbidden)
	}

	if target != sess.accountID && !sess.root {
		return goerror.NewBusinessCause("not allowed to delete this account", entity.ErrForbidden, goerror.CodeForbidden)
	}

	err := s.store.UpdateAccounts(ctx, []string{target}, func(accs map[string]*entity.Account) ([]entity.Transaction, error) {
		acc, ok := accs[target]
		if !ok {
			return nil, goerror.NewBusinessCause("account not found", entity.ErrAccountNotFound, goerror.CodeNotFound)
		}

		if !acc.Balance.IsZero() {
			return nil, goerror.NewBusinessCause("withdraw or transfer the remaining balance first", entity.ErrBalanceNotZero, goerror.CodeFailedPrecondition)
		}

		delete(accs, target)

		return nil, nil
	})
	if errors.Is(err, entity.ErrProtectedAccount) {
		return goerror.NewBusinessCause("the root account cannot be deleted", entity.ErrProtectedAccount, goerror.CodeForbidden)
	}
	if err != nil {
		return storeError(ctx, "failed to repo delete account", err, "account_id", target)
	}

	slog.InfoContext(ctx, "account deleted", "account_id", target, "by", sess.accountID)

	return nil
}

// ProvisioningURI returns the otpauth URI for a secret.
func (s *Usecase) ProvisioningURI(accountID, secret string) string {
	return s.totp.ProvisioningURI(secret, accountID)
}

// QRCode renders the provisioning URI of secret as a PNG.
func (s *Usecase) QRCode(accountID, secret string) ([]byte, error) {
	return s.totp.QRCode(secret, accountID, qrCodeSize)
}

func errAccountExists() error {
	return goerror.NewBusinessCause("account id already taken", entity.ErrAccountExists, goerror.CodeConflict)
}
