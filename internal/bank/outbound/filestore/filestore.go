// Package filestore keeps every account and transaction in one JSON snapshot
// sealed with AES-256-GCM.
//
// The store assumes it is the only writer of its file. The decoded snapshot
// is cached in memory and replaced only after a write has reached the disk;
// Reload discards the cache and reads the file again.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shandysiswandi/ledgerguard/internal/bank/entity"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/goerror"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/vault"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const snapshotVersion = 1

type accountRecord struct {
	ID         string          `json:"id"`
	PINHash    string          `json:"pin_hash"`
	TOTPSecret []byte          `json:"totp_secret,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
	LastAuthAt time.Time       `json:"last_auth_at"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type transactionRecord struct {
	ID        int64                  `json:"id"`
	AccountID string                 `json:"account_id"`
	Amount    decimal.Decimal        `json:"amount"`
	Kind      entity.TransactionKind `json:"kind"`
	CreatedAt time.Time              `json:"created_at"`
}

type snapshot struct {
	Version      int                      `json:"version"`
	Accounts     map[string]accountRecord `json:"accounts"`
	Transactions []transactionRecord      `json:"transactions"`
}

func emptySnapshot() *snapshot {
	return &snapshot{Version: snapshotVersion, Accounts: map[string]accountRecord{}}
}

// clone copies the account map; transactions are shared up to len because
// they are append-only and appends go through a fresh slice.
func (s *snapshot) clone() *snapshot {
	accs := make(map[string]accountRecord, len(s.Accounts))
	for k, v := range s.Accounts {
		accs[k] = v
	}

	return &snapshot{
		Version:      s.Version,
		Accounts:     accs,
		Transactions: s.Transactions[:len(s.Transactions):len(s.Transactions)],
	}
}

type Store struct {
	mu     sync.Mutex
	path   string
	sealer vault.Sealer
	rootID string
	ins    instrument.Instrumentation
	cache  *snapshot

	syncDir func(dir string) error
}

func New(path string, sealer vault.Sealer, rootID string, ins instrument.Instrumentation) *Store {
	return &Store{
		path:    path,
		sealer:  sealer,
		rootID:  rootID,
		ins:     ins,
		syncDir: syncDir,
	}
}

func (s *Store) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("bank.outbound.filestore").Start(ctx, name)
}

func (s *Store) endSpan(span trace.Span, err error) {
	if err != nil && errors.Is(err, entity.ErrStorage) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Store) scope() vault.Scope {
	return vault.Scope{Subject: filepath.Base(s.path), Purpose: vault.PurposeSnapshot}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", entity.ErrStorage, op, err)
}

// load returns the cached snapshot, reading the file on first use. Callers
// hold s.mu and must not mutate the result.
func (s *Store) load() (*snapshot, error) {
	if s.cache != nil {
		return s.cache, nil
	}

	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.cache = emptySnapshot()
		return s.cache, nil
	}
	if err != nil {
		return nil, storageErr("read snapshot", err)
	}

	if len(raw) == 0 {
		s.cache = emptySnapshot()
		return s.cache, nil
	}

	plain, err := s.sealer.Open(raw, s.scope())
	if err != nil {
		return nil, storageErr("open snapshot", err)
	}

	snap := emptySnapshot()
	if err := json.Unmarshal(plain, snap); err != nil {
		return nil, storageErr("decode snapshot", err)
	}
	if snap.Version != snapshotVersion {
		return nil, storageErr("decode snapshot", fmt.Errorf("unsupported version %d", snap.Version))
	}
	if snap.Accounts == nil {
		snap.Accounts = map[string]accountRecord{}
	}

	s.cache = snap

	return snap, nil
}

// commit replaces the file with next and then the cache. A failed directory
// sync is reported after the cache already holds next, since the rename has
// taken effect.
func (s *Store) commit(ctx context.Context, next *snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	plain, err := json.Marshal(next)
	if err != nil {
		return storageErr("encode snapshot", err)
	}

	sealed, err := s.sealer.Seal(plain, s.scope())
	if err != nil {
		return storageErr("seal snapshot", err)
	}

	if err := writeFileAtomic(s.path, sealed); err != nil {
		return storageErr("write snapshot", err)
	}

	s.cache = next

	if err := s.syncDir(filepath.Dir(s.path)); err != nil {
		return storageErr("sync snapshot directory", err)
	}

	return nil
}

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Sync()
}

// Reload drops the in-memory snapshot so the next call reads the file.
func (s *Store) Reload(ctx context.Context) (err error) {
	_, span := s.startSpan(ctx, "Reload")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = nil
	_, err = s.load()

	return err
}

func (s *Store) LoadAccounts(ctx context.Context) (_ map[string]entity.Account, err error) {
	_, span := s.startSpan(ctx, "LoadAccounts")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make(map[string]entity.Account, len(snap.Accounts))
	for id, rec := range snap.Accounts {
		out[id] = rec.toEntity()
	}

	return out, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (_ *entity.Account, err error) {
	_, span := s.startSpan(ctx, "GetAccount")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return nil, err
	}

	rec, ok := snap.Accounts[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	acc := rec.toEntity()

	return &acc, nil
}

func (s *Store) Exists(ctx context.Context, id string) (_ bool, err error) {
	_, span := s.startSpan(ctx, "Exists")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return false, err
	}

	_, ok := snap.Accounts[id]

	return ok, nil
}

// InsertAccount stores a new account and fails with goerror.ErrConflict when
// the id is taken.
func (s *Store) InsertAccount(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "InsertAccount")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := snap.Accounts[acc.ID]; ok {
		return goerror.ErrConflict
	}

	next := snap.clone()
	next.Accounts[acc.ID] = fromAccount(acc)

	return s.commit(ctx, next)
}

// SaveAccount upserts acc by id.
func (s *Store) SaveAccount(ctx context.Context, acc entity.Account) (err error) {
	ctx, span := s.startSpan(ctx, "SaveAccount")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}

	next := snap.clone()
	next.Accounts[acc.ID] = fromAccount(acc)

	return s.commit(ctx, next)
}

// DeleteAccount removes id, keeping its transactions. Unknown ids are a no-op.
func (s *Store) DeleteAccount(ctx context.Context, id string) (err error) {
	ctx, span := s.startSpan(ctx, "DeleteAccount")
	defer func() { s.endSpan(span, err) }()

	if id == s.rootID {
		return entity.ErrProtectedAccount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := snap.Accounts[id]; !ok {
		return nil
	}

	next := snap.clone()
	delete(next.Accounts, id)

	return s.commit(ctx, next)
}

func (s *Store) AppendTransaction(ctx context.Context, tx entity.Transaction) (err error) {
	ctx, span := s.startSpan(ctx, "AppendTransaction")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}

	next := snap.clone()
	next.Transactions = append(next.Transactions, fromTransaction(tx))

	return s.commit(ctx, next)
}

// QueryTransactions returns accountID's records oldest first; an empty id
// returns every record.
func (s *Store) QueryTransactions(ctx context.Context, accountID string) (_ []entity.Transaction, err error) {
	_, span := s.startSpan(ctx, "QueryTransactions")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]entity.Transaction, 0)
	for _, rec := range snap.Transactions {
		if accountID == "" || rec.AccountID == accountID {
			out = append(out, rec.toEntity())
		}
	}

	return out, nil
}

// UpdateAccounts runs fn on copies of the listed accounts under the store
// lock and commits the result and the returned transactions as one write.
func (s *Store) UpdateAccounts(ctx context.Context, ids []string, fn entity.UpdateFunc) (err error) {
	ctx, span := s.startSpan(ctx, "UpdateAccounts")
	defer func() { s.endSpan(span, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load()
	if err != nil {
		return err
	}

	locked := make(map[string]*entity.Account, len(ids))
	for _, id := range ids {
		if rec, ok := snap.Accounts[id]; ok {
			acc := rec.toEntity()
			locked[id] = &acc
		}
	}
	present := make([]string, 0, len(locked))
	for id := range locked {
		present = append(present, id)
	}
	sort.Strings(present)

	txs, err := fn(locked)
	if err != nil {
		return err
	}

	next := snap.clone()
	for _, id := range present {
		acc, ok := locked[id]
		if !ok {
			if id == s.rootID {
				return entity.ErrProtectedAccount
			}
			delete(next.Accounts, id)
			continue
		}
		if acc.ID != id {
			return fmt.Errorf("filestore: account id changed from %q to %q", id, acc.ID)
		}
		if acc.Balance.IsNegative() {
			return fmt.Errorf("filestore: negative balance for %q", id)
		}
		next.Accounts[id] = fromAccount(*acc)
	}

	for _, tx := range txs {
		next.Transactions = append(next.Transactions, fromTransaction(tx))
	}

	return s.commit(ctx, next)
}

func (r accountRecord) toEntity() entity.Account {
	return entity.Account{
		ID:         r.ID,
		PINHash:    r.PINHash,
		TOTPSecret: r.TOTPSecret,
		Balance:    r.Balance,
		LastAuthAt: r.LastAuthAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}.Clone()
}

func fromAccount(a entity.Account) accountRecord {
	a = a.Clone()

	return accountRecord{
		ID:         a.ID,
		PINHash:    a.PINHash,
		TOTPSecret: a.TOTPSecret,
		Balance:    a.Balance.Round(entity.Scale),
		LastAuthAt: a.LastAuthAt.UTC(),
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
	}
}

func (r transactionRecord) toEntity() entity.Transaction {
	return entity.Transaction{
		ID:        r.ID,
		AccountID: r.AccountID,
		Amount:    r.Amount,
		Kind:      r.Kind,
		CreatedAt: r.CreatedAt,
	}
}

func fromTransaction(t entity.Transaction) transactionRecord {
	return transactionRecord{
		ID:        t.ID,
		AccountID: t.AccountID,
		Amount:    t.Amount.Round(entity.Scale),
		Kind:      t.Kind,
		CreatedAt: t.CreatedAt.UTC(),
	}
}
