package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/clock"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/config"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/hash"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/uid"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/validator"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/vault"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Defaults used when the matching config key is unset.
const (
	DefaultRootID      = "admin"
	DefaultMaxAttempts = 3
	DefaultTrustWindow = 300 * time.Second
	DefaultBackoffBase = 3 * time.Second
	DefaultLockoutWin  = 15 * time.Minute
	DefaultTransferFee = "1.00"
	DefaultIssuer      = "Bank V2.0"
	qrCodeSize         = 256
	tracerName         = "bank.usecase"
	meterName          = "bank.usecase"
)

// repoStore is the subset of entity.Store the usecase needs.
type repoStore interface {
	LoadAccounts(ctx context.Context) (map[string]entity.Account, error)
	GetAccount(ctx context.Context, id string) (*entity.Account, error)
	Exists(ctx context.Context, id string) (bool, error)
	InsertAccount(ctx context.Context, acc entity.Account) error
	QueryTransactions(ctx context.Context, accountID string) ([]entity.Transaction, error)
	UpdateAccounts(ctx context.Context, ids []string, fn entity.UpdateFunc) error
}

// repoLockout remembers lockouts across login attempts.
type repoLockout interface {
	Lock(ctx context.Context, accountID string, ttl time.Duration) error
	IsLocked(ctx context.Context, accountID string) (bool, error)
	Clear(ctx context.Context, accountID string) error
}

type verifier interface {
	Verify(secret, code string, now time.Time) bool
	GenerateSecret() (string, error)
	NormalizeSecret(secret string) (string, error)
	ProvisioningURI(secret, accountID string) string
	QRCode(secret, accountID string, size int) ([]byte, error)
}

type Usecase struct {
	store     repoStore
	lockout   repoLockout
	validator validator.Validator
	cfg       config.Config
	pinHash   hash.Hash
	sealer    vault.Sealer
	totp      verifier
	uid       uid.NumberID
	uuid      uid.StringID
	clock     clock.Clocker
	sleeper   clock.Sleeper
	ins       instrument.Instrumentation

	loginFailures metric.Int64Counter
	lockouts      metric.Int64Counter
	admitted      metric.Int64Counter
	ledgerOps     metric.Int64Counter
}

type Dependency struct {
	Store      repoStore
	Lockout    repoLockout
	Validator  validator.Validator
	Config     config.Config
	PINHash    hash.Hash
	Sealer     vault.Sealer
	TOTP       verifier
	UID        uid.NumberID
	UUID       uid.StringID
	Clock      clock.Clocker
	Sleeper    clock.Sleeper
	Instrument instrument.Instrumentation
}

func New(dep Dependency) (*Usecase, error) {
	s := &Usecase{
		store:     dep.Store,
		lockout:   dep.Lockout,
		validator: dep.Validator,
		cfg:       dep.Config,
		pinHash:   dep.PINHash,
		sealer:    dep.Sealer,
		totp:      dep.TOTP,
		uid:       dep.UID,
		uuid:      dep.UUID,
		clock:     dep.Clock,
		sleeper:   dep.Sleeper,
		ins:       dep.Instrument,
	}

	if s.lockout == nil {
		s.lockout = noopLockout{}
	}

	meter := s.ins.Meter(meterName)

	var err error
	if s.loginFailures, err = meter.Int64Counter("bank.login.failures",
		metric.WithDescription("Rejected TOTP codes")); err != nil {
		return nil, err
	}
	if s.lockouts, err = meter.Int64Counter("bank.login.lockouts",
		metric.WithDescription("Login attempts that ended locked out")); err != nil {
		return nil, err
	}
	if s.admitted, err = meter.Int64Counter("bank.login.admitted",
		metric.WithDescription("Admitted sessions")); err != nil {
		return nil, err
	}
	if s.ledgerOps, err = meter.Int64Counter("bank.ledger.operations",
		metric.WithDescription("Committed ledger operations")); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer(tracerName).Start(ctx, name)
}

func (s *Usecase) countLedger(ctx context.Context, kind entity.TransactionKind) {
	s.ledgerOps.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind.String())))
}

func (s *Usecase) rootID() string {
	if id := s.cfg.GetString("modules.bank.root.id"); id != "" {
		return id
	}

	return DefaultRootID
}

func (s *Usecase) maxAttempts() int {
	if n := s.cfg.GetInt("modules.bank.auth.max_attempts"); n > 0 {
		return n
	}

	return DefaultMaxAttempts
}

func (s *Usecase) trustWindow() time.Duration {
	if s.cfg.IsSet("modules.bank.auth.trust_window_seconds") {
		return s.cfg.GetSecond("modules.bank.auth.trust_window_seconds")
	}

	return DefaultTrustWindow
}

func (s *Usecase) backoffBase() time.Duration {
	if d := s.cfg.GetSecond("modules.bank.auth.backoff_base_seconds"); d > 0 {
		return d
	}

	return DefaultBackoffBase
}

func (s *Usecase) persistLockout() bool {
	return s.cfg.GetBool("modules.bank.auth.lockout.persist")
}

func (s *Usecase) lockoutWindow() time.Duration {
	if d := s.cfg.GetSecond("modules.bank.auth.lockout.window_seconds"); d > 0 {
		return d
	}

	return DefaultLockoutWin
}

func (s *Usecase) transferFee() decimal.Decimal {
	raw := s.cfg.GetString("modules.bank.ledger.transfer_fee")
	if raw == "" {
		raw = DefaultTransferFee
	}

	fee, err := decimal.NewFromString(raw)
	if err != nil || fee.IsNegative() {
		return decimal.RequireFromString(DefaultTransferFee)
	}

	return fee.Round(entity.Scale)
}

func (s *Usecase) sealScope(accountID string) vault.Scope {
	return vault.Scope{Subject: accountID, Purpose: vault.PurposeTOTPSeed}
}

// openSecret returns the plain TOTP secret of acc, "" for accounts without one.
func (s *Usecase) openSecret(acc entity.Account) (string, error) {
	if !acc.HasTOTP() {
		return "", nil
	}

	plain, err := s.sealer.Open(acc.TOTPSecret, s.sealScope(acc.ID))
	if err != nil {
		return "", err
	}

	return string(plain), nil
}

type noopLockout struct{}

func (noopLockout) Lock(context.Context, string, time.Duration) error { return nil }
func (noopLockout) IsLocked(context.Context, string) (bool, error)    { return false, nil }
func (noopLockout) Clear(context.Context, string) error               { return nil }
