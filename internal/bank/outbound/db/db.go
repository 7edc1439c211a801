package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:embed schema.sql
var schema string

type DB struct {
	conn   *pgxpool.Pool
	rootID string
	ins    instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, rootID string, ins instrument.Instrumentation) *DB {
	return &DB{
		conn:   conn,
		rootID: rootID,
		ins:    ins,
	}
}

// Migrate creates the tables when they do not exist.
func (s *DB) Migrate(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "Migrate")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, schema)

	return s.mapError(err)
}

// - 23505 unique_violation → goerror.ErrConflict
// - no rows → goerror.ErrNotFound
// - anything else, 23514 check_violation included, wraps entity.ErrStorage
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return fmt.Errorf("%w: %w", entity.ErrStorage, err)
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("bank.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && errors.Is(err, entity.ErrStorage) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *DB) rollback(ctx context.Context, tx pgx.Tx) {
	if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
		s.logRollback(ctx, rErr)
	}
}
