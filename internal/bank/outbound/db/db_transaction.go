package db

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shopspring/decimal"
)

const insertTransaction = `
	INSERT INTO bank_transactions (id, account_id, amount, kind, created_at)
	VALUES ($1, $2, $3::text::numeric, $4, $5)`

func transactionArgs(t entity.Transaction) []any {
	return []any{t.ID, t.AccountID, t.Amount.StringFixed(entity.Scale), int16(t.Kind), t.CreatedAt}
}

func (s *DB) AppendTransaction(ctx context.Context, t entity.Transaction) (err error) {
	ctx, span := s.startSpan(ctx, "AppendTransaction")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, insertTransaction, transactionArgs(t)...)

	return s.mapError(err)
}

func (s *DB) QueryTransactions(ctx context.Context, accountID string) (_ []entity.Transaction, err error) {
	ctx, span := s.startSpan(ctx, "QueryTransactions")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT id, account_id, amount::text, kind, created_at
		FROM bank_transactions
		WHERE $1 = '' OR account_id = $1
		ORDER BY id`, accountID)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer rows.Close()

	out := make([]entity.Transaction, 0)
	for rows.Next() {
		var (
			t      entity.Transaction
			amount string
			kind   int16
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &amount, &kind, &t.CreatedAt); err != nil {
			return nil, s.mapError(err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, s.mapError(err)
		}
		t.Kind = entity.TransactionKind(kind)
		out = append(out, t)
	}

	return out, s.mapError(rows.Err())
}

// UpdateAccounts locks the listed rows in id order, runs fn and writes the
// changed accounts and new transactions in the same transaction.
func (s *DB) UpdateAccounts(ctx context.Context, ids []string, fn entity.UpdateFunc) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateAccounts")
	defer func() { s.endSpan(span, err) }()

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return s.mapError(err)
	}
	defer s.rollback(ctx, tx)

	rows, err := tx.Query(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return s.mapError(err)
	}

	locked := make(map[string]*entity.Account, len(sorted))
	present := make([]string, 0, len(sorted))
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			rows.Close()
			return s.mapError(err)
		}
		locked[acc.ID] = &acc
		present = append(present, acc.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return s.mapError(err)
	}

	txs, err := fn(locked)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, id := range present {
		acc, ok := locked[id]
		if !ok {
			if id == s.rootID {
				return entity.ErrProtectedAccount
			}
			batch.Queue(`DELETE FROM bank_accounts WHERE id = $1`, id)
			continue
		}
		if acc.ID != id {
			return fmt.Errorf("db: account id changed from %q to %q", id, acc.ID)
		}
		batch.Queue(`
			UPDATE bank_accounts
			SET pin_hash = $2, totp_secret = $3, balance = $4::text::numeric, last_auth_at = $5, updated_at = $6
			WHERE id = $1`,
			acc.ID, acc.PINHash, acc.TOTPSecret, acc.Balance.StringFixed(entity.Scale), acc.LastAuthAt, acc.UpdatedAt,
		)
	}
	for _, t := range txs {
		batch.Queue(insertTransaction, transactionArgs(t)...)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return s.mapError(err)
		}
	}

	return s.mapError(tx.Commit(ctx))
}
