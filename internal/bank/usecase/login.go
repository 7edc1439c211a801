package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
)

type LoginState int

const (
	LoginStateAwaitingCredentials LoginState = iota
	LoginStateCredentialsChecked
	LoginStateTOTPChallenge
	LoginStateAdmitted
	LoginStateLockedOut
)

func (ls LoginState) String() string {
	switch ls {
	case LoginStateAwaitingCredentials:
		return "AwaitingCredentials"
	case LoginStateCredentialsChecked:
		return "CredentialsChecked"
	case LoginStateTOTPChallenge:
		return "TOTPChallenge"
	case LoginStateAdmitted:
		return "Admitted"
	case LoginStateLockedOut:
		return "LockedOut"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further input is accepted.
func (ls LoginState) Terminal() bool {
	return ls == LoginStateAdmitted || ls == LoginStateLockedOut
}

type CredentialsInput struct {
	AccountID string `validate:"required"`
	PIN       string `validate:"required"`
}

// LoginAttempt is one run of the authentication state machine. It is not
// persisted and is discarded once it reaches a terminal state.
type LoginAttempt struct {
	uc *Usecase

	mu        sync.Mutex
	id        string
	state     LoginState
	remaining int
	accountID string
	secret    string
	session   *Session
}

func (s *Usecase) BeginLogin(ctx context.Context) *LoginAttempt {
	a := &LoginAttempt{
		uc:        s,
		id:        s.uuid.Generate(),
		state:     LoginStateAwaitingCredentials,
		remaining: s.maxAttempts(),
	}

	slog.DebugContext(instrument.SetCorrelationID(ctx, a.id), "login attempt started")

	return a
}

func (a *LoginAttempt) ID() string {
	return a.id
}

func (a *LoginAttempt) State() LoginState {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

func (a *LoginAttempt) RemainingAttempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.remaining
}

// Session returns the admitted session, or nil before admission.
func (a *LoginAttempt) Session() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != LoginStateAdmitted {
		return nil
	}

	return a.session
}

// SubmitCredentials checks the account id and PIN. A mismatch leaves the
// attempt awaiting credentials and does not consume an attempt.
func (a *LoginAttempt) SubmitCredentials(ctx context.Context, in CredentialsInput) (LoginState, error) {
	s := a.uc
	ctx, span := s.startSpan(ctx, "LoginAttempt.SubmitCredentials")
	defer span.End()

	ctx = instrument.SetCorrelationID(ctx, a.id)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != LoginStateAwaitingCredentials {
		return a.state, errResolvedOrOutOfOrder(a.state)
	}

	in.AccountID = strings.TrimSpace(in.AccountID)
	if err := s.validator.Validate(in); err != nil {
		return a.state, goerror.NewInvalidInput(err)
	}

	acc, err := s.store.GetAccount(ctx, in.AccountID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "login for unknown account", "account_id", in.AccountID)
		return a.state, errInvalidCredentials()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account", "account_id", in.AccountID, "error", err)
		return a.state, goerror.NewServer(err)
	}

	if !s.pinHash.Verify(acc.PINHash, in.PIN) {
		slog.WarnContext(ctx, "pin does not match", "account_id", acc.ID)
		return a.state, errInvalidCredentials()
	}

	if s.pinHash.NeedsRehash(acc.PINHash) {
		s.upgradePINHash(ctx, acc.ID, acc.PINHash, in.PIN)
	}

	isRoot := acc.ID == s.rootID()

	if !isRoot && s.persistLockout() {
		locked, err := s.lockout.IsLocked(ctx, acc.ID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo check lockout", "account_id", acc.ID, "error", err)
			return a.state, goerror.NewServer(err)
		}
		if locked {
			slog.WarnContext(ctx, "login for locked out account", "account_id", acc.ID)
			a.state = LoginStateLockedOut
			return a.state, errLockedOut()
		}
	}

	a.accountID = acc.ID
	a.state = LoginStateCredentialsChecked

	now := s.clock.Now()
	elapsed := now.Sub(acc.LastAuthAt)
	switch {
	case isRoot:
		a.admit(ctx, now, true, false)
	case elapsed >= 0 && elapsed < s.trustWindow():
		slog.InfoContext(ctx, "login inside trust window", "account_id", acc.ID, "last_auth_at", acc.LastAuthAt)
		a.admit(ctx, now, false, true)
	default:
		secret, err := s.openSecret(*acc)
		if err != nil {
			slog.ErrorContext(ctx, "failed to open totp secret", "account_id", acc.ID, "error", err)
			a.state = LoginStateAwaitingCredentials
			a.accountID = ""
			return a.state, goerror.NewServer(err)
		}
		a.secret = secret
		a.state = LoginStateTOTPChallenge
	}

	return a.state, nil
}

// SubmitCode verifies a TOTP code. A wrong code blocks for the backoff delay
// before returning, then either keeps the challenge open or locks the attempt.
func (a *LoginAttempt) SubmitCode(ctx context.Context, code string) (LoginState, error) {
	s := a.uc
	ctx, span := s.startSpan(ctx, "LoginAttempt.SubmitCode")
	defer span.End()

	ctx = instrument.SetCorrelationID(ctx, a.id)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != LoginStateTOTPChallenge {
		return a.state, errResolvedOrOutOfOrder(a.state)
	}

	code = strings.TrimSpace(code)
	now := s.clock.Now()

	if isWellFormedCode(code) && s.totp.Verify(a.secret, code, now) {
		err := s.store.UpdateAccounts(ctx, []string{a.accountID}, func(accs map[string]*entity.Account) ([]entity.Transaction, error) {
			acc, ok := accs[a.accountID]
			if !ok {
				return nil, goerror.ErrNotFound
			}
			acc.LastAuthAt = now
			acc.UpdatedAt = now
			return nil, nil
		})
		if errors.Is(err, goerror.ErrNotFound) {
			slog.WarnContext(ctx, "account removed during login", "account_id", a.accountID)
			return a.state, errInvalidCredentials()
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to repo update last auth", "account_id", a.accountID, "error", err)
			return a.state, goerror.NewServer(err)
		}

		if s.persistLockout() {
			if err := s.lockout.Clear(ctx, a.accountID); err != nil {
				slog.WarnContext(ctx, "failed to clear lockout", "account_id", a.accountID, "error", err)
			}
		}

		a.admit(ctx, now, false, false)

		return a.state, nil
	}

	a.remaining--
	delay := s.backoff(a.remaining)
	s.loginFailures.Add(ctx, 1)

	slog.WarnContext(ctx, "totp code rejected",
		"account_id", a.accountID,
		"remaining_attempts", a.remaining,
		"backoff", delay.String(),
	)

	if a.remaining <= 0 {
		a.state = LoginStateLockedOut
		a.secret = ""
		s.lockouts.Add(ctx, 1)

		if s.persistLockout() {
			if err := s.lockout.Lock(ctx, a.accountID, s.lockoutWindow()); err != nil {
				slog.ErrorContext(ctx, "failed to repo persist lockout", "account_id", a.accountID, "error", err)
			}
		}
	}

	if err := s.sleeper.Sleep(ctx, delay); err != nil {
		return a.state, goerror.NewBusinessCause("login interrupted", err, goerror.CodeTimeout)
	}

	if a.state == LoginStateLockedOut {
		return a.state, errLockedOut()
	}

	return a.state, goerror.NewBusinessCause("invalid totp code", entity.ErrInvalidTOTPCode, goerror.CodeUnauthorized)
}

// upgradePINHash replaces a hash made with outdated parameters. Failure is
// logged and leaves the old hash in place.
func (s *Usecase) upgradePINHash(ctx context.Context, accountID, oldHash, pin string) {
	fresh, err := s.pinHash.Hash(pin)
	if err != nil {
		slog.WarnContext(ctx, "failed to rehash pin", "account_id", accountID, "error", err)
		return
	}

	err = s.store.UpdateAccounts(ctx, []string{accountID}, func(accs map[string]*entity.Account) ([]entity.Transaction, error) {
		acc, ok := accs[accountID]
		if !ok || acc.PINHash != oldHash {
			return nil, nil
		}
		acc.PINHash = string(fresh)
		acc.UpdatedAt = s.clock.Now()
		return nil, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to repo upgrade pin hash", "account_id", accountID, "error", err)
		return
	}

	slog.InfoContext(ctx, "pin hash upgraded", "account_id", accountID)
}

func (a *LoginAttempt) admit(ctx context.Context, now time.Time, root, remembered bool) {
	a.state = LoginStateAdmitted
	a.secret = ""
	a.session = &Session{
		accountID:  a.accountID,
		attemptID:  a.id,
		admittedAt: now,
		root:       root,
		remembered: remembered,
	}

	a.uc.admitted.Add(ctx, 1)
	slog.InfoContext(ctx, "login admitted", slog.Any("session", a.session))
}

// backoff is base * 2^(max-1-remaining): 3s, 6s, 12s with the defaults.
func (s *Usecase) backoff(remaining int) time.Duration {
	exp := max(s.maxAttempts()-1-remaining, 0)

	return s.backoffBase() << exp
}

func isWellFormedCode(code string) bool {
	if len(code) != 6 {
		return false
	}

	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}

	return true
}

func errInvalidCredentials() error {
	return goerror.NewBusinessCause("invalid account id or pin", entity.ErrInvalidCredentials, goerror.CodeUnauthorized)
}

func errLockedOut() error {
	return goerror.NewBusinessCause("too many failed attempts, try again later", entity.ErrLockedOut, goerror.CodeTooManyRequest)
}

func errResolvedOrOutOfOrder(state LoginState) error {
	if state.Terminal() {
		return goerror.NewBusinessCause("login attempt already "+strings.ToLower(state.String()), entity.ErrAttemptResolved, goerror.CodeFailedPrecondition)
	}

	return goerror.NewBusinessCause("unexpected step in state "+state.String(), entity.ErrAttemptResolved, goerror.CodeFailedPrecondition)
}
