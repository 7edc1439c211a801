package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var _ entity.Store = (*DB)(nil)

func setupDB(t *testing.T) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("container test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ledgerguard"),
		postgres.WithUsername("ledgerguard"),
		postgres.WithPassword("ledgerguard"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := NewDB(pool, "admin", instrument.NewNoop())
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))

	return s
}

func account(id, balance string) entity.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return entity.Account{
		ID:         id,
		PINHash:    "hash-" + id,
		TOTPSecret: []byte("sealed-" + id),
		Balance:    decimal.RequireFromString(balance),
		LastAuthAt: entity.UnixEpoch,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestDB(t *testing.T) {
	s := setupDB(t)
	ctx := context.Background()

	require.NoError(t, s.InsertAccount(ctx, account("admin", "0")))
	require.NoError(t, s.InsertAccount(ctx, account("alice", "100.00")))
	require.NoError(t, s.InsertAccount(ctx, account("bob", "50.00")))

	t.Run("InsertConflict", func(t *testing.T) {
		assert.ErrorIs(t, s.InsertAccount(ctx, account("alice", "1")), goerror.ErrConflict)
	})

	t.Run("GetAndExists", func(t *testing.T) {
		got, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, got.Balance.Equal(decimal.RequireFromString("100")))
		assert.Equal(t, []byte("sealed-alice"), got.TOTPSecret)
		assert.True(t, got.LastAuthAt.Equal(entity.UnixEpoch))

		_, err = s.GetAccount(ctx, "nobody")
		assert.ErrorIs(t, err, goerror.ErrNotFound)

		ok, err := s.Exists(ctx, "bob")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Transfer", func(t *testing.T) {
		err := s.UpdateAccounts(ctx, []string{"bob", "alice", "admin"}, func(m map[string]*entity.Account) ([]entity.Transaction, error) {
			m["alice"].Balance = m["alice"].Balance.Sub(decimal.RequireFromString("51"))
			m["bob"].Balance = m["bob"].Balance.Add(decimal.RequireFromString("50"))
			m["admin"].Balance = m["admin"].Balance.Add(decimal.NewFromInt(1))
			now := time.Now().UTC()
			return []entity.Transaction{
				{ID: 1, AccountID: "alice", Amount: decimal.RequireFromString("-51"), Kind: entity.TransactionKindTransferOut, CreatedAt: now},
				{ID: 2, AccountID: "bob", Amount: decimal.RequireFromString("50"), Kind: entity.TransactionKindTransferIn, CreatedAt: now},
				{ID: 3, AccountID: "admin", Amount: decimal.NewFromInt(1), Kind: entity.TransactionKindFee, CreatedAt: now},
			}, nil
		})
		require.NoError(t, err)

		all, err := s.LoadAccounts(ctx)
		require.NoError(t, err)
		assert.Equal(t, "49.00", all["alice"].Balance.StringFixed(2))
		assert.Equal(t, "100.00", all["bob"].Balance.StringFixed(2))
		assert.Equal(t, "1.00", all["admin"].Balance.StringFixed(2))

		txs, err := s.QueryTransactions(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, entity.TransactionKindTransferOut, txs[0].Kind)

		txs, err = s.QueryTransactions(ctx, "")
		require.NoError(t, err)
		assert.Len(t, txs, 3)
	})

	t.Run("NegativeBalanceRollsBack", func(t *testing.T) {
		err := s.UpdateAccounts(ctx, []string{"bob"}, func(m map[string]*entity.Account) ([]entity.Transaction, error) {
			m["bob"].Balance = decimal.NewFromInt(-1)
			return []entity.Transaction{{ID: 99, AccountID: "bob", Amount: decimal.NewFromInt(-101), Kind: entity.TransactionKindWithdrawal, CreatedAt: time.Now()}}, nil
		})
		assert.ErrorIs(t, err, entity.ErrStorage)

		got, err := s.GetAccount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "100.00", got.Balance.StringFixed(2))

		txs, err := s.QueryTransactions(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})

	t.Run("FnErrorUnchanged", func(t *testing.T) {
		err := s.UpdateAccounts(ctx, []string{"alice"}, func(m map[string]*entity.Account) ([]entity.Transaction, error) {
			m["alice"].Balance = decimal.Zero
			return nil, entity.ErrInsufficientFunds
		})
		assert.Equal(t, entity.ErrInsufficientFunds, err)

		got, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "49.00", got.Balance.StringFixed(2))
	})

	t.Run("ConcurrentDeposits", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := range 10 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.UpdateAccounts(ctx, []string{"alice", "bob"}, func(m map[string]*entity.Account) ([]entity.Transaction, error) {
					m["alice"].Balance = m["alice"].Balance.Add(decimal.NewFromInt(1))
					return []entity.Transaction{{ID: int64(100 + i), AccountID: "alice", Amount: decimal.NewFromInt(1), Kind: entity.TransactionKindDeposit, CreatedAt: time.Now()}}, nil
				})
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		got, err := s.GetAccount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "59.00", got.Balance.StringFixed(2))
	})

	t.Run("Delete", func(t *testing.T) {
		assert.ErrorIs(t, s.DeleteAccount(ctx, "admin"), entity.ErrProtectedAccount)

		err := s.UpdateAccounts(ctx, []string{"admin"}, func(m map[string]*entity.Account) ([]entity.Transaction, error) {
			delete(m, "admin")
			return nil, nil
		})
		assert.ErrorIs(t, err, entity.ErrProtectedAccount)

		require.NoError(t, s.SaveAccount(ctx, account("carol", "0")))
		err = s.UpdateAccounts(ctx, []string{"carol"}, func(m map[string]*entity.Account) ([]entity.Transaction, error) {
			delete(m, "carol")
			return nil, nil
		})
		require.NoError(t, err)

		ok, err := s.Exists(ctx, "carol")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, s.DeleteAccount(ctx, "bob"))
		require.NoError(t, s.DeleteAccount(ctx, "bob"))
		txs, err := s.QueryTransactions(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})
}
