package usecase

import (
	"bytes"
	"context"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/bank/outbound/filestore"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/config"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/hash"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/otp"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/uid"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/validator"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/vault"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
modules:
  bank:
    root:
      id: admin
      pin: rootpin
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fakeSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
	err    error
}

func (s *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delays = append(s.delays, d)

	return s.err
}

func (s *fakeSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.delays)
}

type fakeLockout struct {
	mu      sync.Mutex
	locked  map[string]time.Duration
	cleared []string
}

func newFakeLockout() *fakeLockout {
	return &fakeLockout{locked: map[string]time.Duration{}}
}

func (l *fakeLockout) Lock(_ context.Context, id string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.locked[id] = ttl

	return nil
}

func (l *fakeLockout) IsLocked(_ context.Context, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.locked[id]

	return ok, nil
}

func (l *fakeLockout) Clear(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locked, id)
	l.cleared = append(l.cleared, id)

	return nil
}

type fixture struct {
	uc      *Usecase
	store   *filestore.Store
	clock   *fakeClock
	sleeper *fakeSleeper
	lockout *fakeLockout
	totp    *otp.TOTP
}

func newFixture(t *testing.T, extraConfig string) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(baseConfig+extraConfig), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cfg.Close() })

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	pinHash, err := hash.New(hash.Options{Driver: hash.DriverBcrypt, BcryptCost: 4, Pepper: "pepper"})
	require.NoError(t, err)

	sf, err := uid.NewSnowflake(1)
	require.NoError(t, err)

	sealer := vault.NewAESGCM(vault.StaticKeyProvider{KeyBytes: bytes.Repeat([]byte{9}, 32)})
	ins := instrument.NewNoop()

	f := &fixture{
		store:   filestore.New(filepath.Join(t.TempDir(), "ledger.db"), sealer, "admin", ins),
		clock:   &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		sleeper: &fakeSleeper{},
		lockout: newFakeLockout(),
		totp:    otp.NewTOTP("LedgerGuard", 30, 1),
	}

	f.uc, err = New(Dependency{
		Store:      f.store,
		Lockout:    f.lockout,
		Validator:  v,
		Config:     cfg,
		PINHash:    pinHash,
		Sealer:     sealer,
		TOTP:       f.totp,
		UID:        sf,
		UUID:       uid.NewUUID(),
		Clock:      f.clock,
		Sleeper:    f.sleeper,
		Instrument: ins,
	})
	require.NoError(t, err)
	require.NoError(t, f.uc.EnsureRootAccount(context.Background()))

	return f
}

func (f *fixture) code(t *testing.T, secret string) string {
	t.Helper()

	code, err := f.totp.GenerateCode(secret, f.clock.Now())
	require.NoError(t, err)

	return code
}

// wrongCode returns a well-formed code that no window within the skew accepts.
func (f *fixture) wrongCode(t *testing.T, secrets ...string) string {
	t.Helper()

	for _, c := range []string{"000000", "111111", "222222", "333333", "444444", "555555"} {
		if !slices.ContainsFunc(secrets, func(s string) bool { return f.totp.Verify(s, c, f.clock.Now()) }) {
			return c
		}
	}
	t.Fatal("no wrong code found")

	return ""
}

func (f *fixture) register(t *testing.T, id, pin string) string {
	t.Helper()
	ctx := context.Background()

	start, err := f.uc.StartRegistration(ctx, StartRegistrationInput{AccountID: id})
	require.NoError(t, err)

	_, err = f.uc.CompleteRegistration(ctx, CompleteRegistrationInput{
		AccountID: id,
		PIN:       pin,
		Secret:    start.Secret,
		Code:      f.code(t, start.Secret),
	})
	require.NoError(t, err)

	return start.Secret
}

func (f *fixture) login(t *testing.T, id, pin, secret string) *Session {
	t.Helper()
	ctx := context.Background()

	a := f.uc.BeginLogin(ctx)
	state, err := a.SubmitCredentials(ctx, CredentialsInput{AccountID: id, PIN: pin})
	require.NoError(t, err)

	if state == LoginStateTOTPChallenge {
		state, err = a.SubmitCode(ctx, f.code(t, secret))
		require.NoError(t, err)
	}
	require.Equal(t, LoginStateAdmitted, state)

	return a.Session()
}

func (f *fixture) rootSession(t *testing.T) *Session {
	t.Helper()

	return f.login(t, "admin", "rootpin", "")
}

func (f *fixture) balance(t *testing.T, id string) string {
	t.Helper()

	acc, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)

	return acc.Balance.StringFixed(entity.Scale)
}

func (f *fixture) deposit(t *testing.T, sess *Session, amount string) {
	t.Helper()

	_, err := f.uc.Deposit(context.Background(), sess, AmountInput{Amount: decimal.RequireFromString(amount)})
	require.NoError(t, err)
}
