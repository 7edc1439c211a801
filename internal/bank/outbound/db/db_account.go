package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, pin_hash, totp_secret, balance::text, last_auth_at, created_at, updated_at`

func scanAccount(row pgx.Row) (entity.Account, error) {
	var (
		acc     entity.Account
		balance string
	)

	if err := row.Scan(&acc.ID, &acc.PINHash, &acc.TOTPSecret, &balance, &acc.LastAuthAt, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return entity.Account{}, err
	}

	b, err := decimal.NewFromString(balance)
	if err != nil {
		return entity.Account{}, err
	}
	acc.Balance = b

	return acc, nil
}

func (s *DB) logRollback(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "failed to rollback", "error", err)
}

func (s *DB) LoadAccounts(ctx context.Context) (_ map[string]entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "LoadAccounts")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `SELECT `+accountColumns+` FROM bank_accounts`)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make(map[string]entity.Account)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, s.mapError(err)
		}
		out[acc.ID] = acc
	}

	return out, s.mapError(rows.Err())
}

func (s *DB) GetAccount(ctx context.Context, id string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccount")
	defer func() { s.endSpan(span, err) }()

	acc, err := scanAccount(s.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id = $1`, id))
	if err != nil {
		return nil, s.mapError(err)
	}

	return &acc, nil
}

func (s *DB) Exists(ctx context.Context, id string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "Exists")
	defer func() { s.endSpan(span, err) }()

	var ok bool
	err = s.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bank_accounts WHERE id = $1)`, id).Scan(&ok)

	return ok, s.mapError(err)
}

func (s *DB) InsertAccount(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "InsertAccount")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO bank_accounts (id, pin_hash, totp_secret, balance, last_auth_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7)`,
		acc.ID, acc.PINHash, acc.TOTPSecret, acc.Balance.StringFixed(entity.Scale), acc.LastAuthAt, acc.CreatedAt, acc.UpdatedAt,
	)

	return s.mapError(err)
}

func (s *DB) SaveAccount(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "SaveAccount")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `
		INSERT INTO bank_accounts (id, pin_hash, totp_secret, balance, last_auth_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			pin_hash = EXCLUDED.pin_hash,
			totp_secret = EXCLUDED.totp_secret,
			balance = EXCLUDED.balance,
			last_auth_at = EXCLUDED.last_auth_at,
			updated_at = EXCLUDED.updated_at`,
		acc.ID, acc.PINHash, acc.TOTPSecret, acc.Balance.StringFixed(entity.Scale), acc.LastAuthAt, acc.CreatedAt, acc.UpdatedAt,
	)

	return s.mapError(err)
}

func (s *DB) DeleteAccount(ctx context.Context, id string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteAccount")
	defer func() { s.endSpan(span, err) }()

	if id == s.rootID {
		return entity.ErrProtectedAccount
	}

	_, err = s.conn.Exec(ctx, `DELETE FROM bank_accounts WHERE id = $1`, id)

	return s.mapError(err)
}
