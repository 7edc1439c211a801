// Package cache keeps per-account login lockouts in Redis so that they
// survive process restarts.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidTTL = errors.New("cache: lockout ttl must be positive")

type Lockout struct {
	client *redis.Client
	prefix string
	ins    instrument.Instrumentation
}

func NewLockout(client *redis.Client, ins instrument.Instrumentation) *Lockout {
	return &Lockout{
		client: client,
		prefix: "bank:lockout:",
		ins:    ins,
	}
}

func (l *Lockout) key(accountID string) string {
	return l.prefix + accountID
}

func (l *Lockout) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return l.ins.Tracer("bank.outbound.cache").Start(ctx, name)
}

func (l *Lockout) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Lock marks accountID as locked out for ttl. Locking again extends it.
func (l *Lockout) Lock(ctx context.Context, accountID string, ttl time.Duration) (err error) {
	ctx, span := l.startSpan(ctx, "Lock")
	defer func() { l.endSpan(span, err) }()

	if ttl <= 0 {
		return ErrInvalidTTL
	}

	if err := l.client.Set(ctx, l.key(accountID), time.Now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("cache: lock %s: %w", accountID, err)
	}

	return nil
}

func (l *Lockout) IsLocked(ctx context.Context, accountID string) (_ bool, err error) {
	ctx, span := l.startSpan(ctx, "IsLocked")
	defer func() { l.endSpan(span, err) }()

	n, err := l.client.Exists(ctx, l.key(accountID)).Result()
	if err != nil {
		return false, fmt.Errorf("cache: lookup %s: %w", accountID, err)
	}

	return n > 0, nil
}

func (l *Lockout) Clear(ctx context.Context, accountID string) (err error) {
	ctx, span := l.startSpan(ctx, "Clear")
	defer func() { l.endSpan(span, err) }()

	if err := l.client.Del(ctx, l.key(accountID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache: clear %s: %w", accountID, err)
	}

	return nil
}
