package usecase

import (
	"log/slog"
	"time"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
)

// Session proves that a login attempt reached the admitted state. It can only
// be obtained from LoginAttempt.Session.
type Session struct {
	accountID  string
	attemptID  string
	admittedAt time.Time
	root       bool
	remembered bool
}

func (s *Session) AccountID() string     { return s.accountID }
func (s *Session) AttemptID() string     { return s.attemptID }
func (s *Session) AdmittedAt() time.Time { return s.admittedAt }
func (s *Session) IsRoot() bool          { return s.root }

// Remembered reports whether the TOTP step was skipped inside the trust window.
func (s *Session) Remembered() bool { return s.remembered }

func (s *Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("account_id", s.accountID),
		slog.String("attempt_id", s.attemptID),
		slog.Time("admitted_at", s.admittedAt),
		slog.Bool("root", s.root),
		slog.Bool("remembered", s.remembered),
	)
}

func requireSession(sess *Session) error {
	if sess == nil || sess.accountID == "" {
		return goerror.NewBusinessCause("authentication required", entity.ErrUnauthenticated, goerror.CodeUnauthorized)
	}

	return nil
}
