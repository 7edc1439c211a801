package bank

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/ledgerguard/internal/bank/inbound"
	"github.com/shandysiswandi/ledgerguard/internal/bank/outbound/cache"
	"github.com/shandysiswandi/ledgerguard/internal/bank/outbound/db"
	"github.com/shandysiswandi/ledgerguard/internal/bank/outbound/filestore"
	"github.com/shandysiswandi/ledgerguard/internal/bank/usecase"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/clock"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/config"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/console"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/hash"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/instrument"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/otp"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/uid"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/validator"
	"github.com/shandysiswandi/ledgerguard/internal/pkg/vault"
	"github.com/spf13/cobra"
)

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type Dependency struct {
	// DBConn is required when storage.driver is postgres.
	DBConn *pgxpool.Pool
	// CacheConn backs persisted lockouts when set.
	CacheConn *redis.Client

	Command    *cobra.Command             `validate:"required"`
	Console    *console.Console           `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	PINHash    hash.Hash                  `validate:"required"`
	Sealer     vault.Sealer               `validate:"required"`
	Clock      *clock.TimeClocker         `validate:"required"`
	Totp       *otp.TOTP                  `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	Location   *time.Location
}

// New wires the bank store, seeds the root account and registers the CLI
// commands on dep.Command.
func New(ctx context.Context, dep Dependency) (*usecase.Usecase, error) {
	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	rootID := dep.Config.GetString("modules.bank.root.id")
	if rootID == "" {
		rootID = usecase.DefaultRootID
	}

	ucDep := usecase.Dependency{
		Validator:  dep.Validator,
		Config:     dep.Config,
		PINHash:    dep.PINHash,
		Sealer:     dep.Sealer,
		TOTP:       dep.Totp,
		UID:        dep.UID,
		UUID:       dep.UUID,
		Clock:      dep.Clock,
		Sleeper:    dep.Clock,
		Instrument: dep.Instrument,
	}

	switch driver := dep.Config.GetString("storage.driver"); driver {
	case "", StorageFile:
		path := dep.Config.GetString("storage.file.path")
		if path == "" {
			return nil, fmt.Errorf("bank: storage.file.path is empty")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("bank: create data dir: %w", err)
		}
		ucDep.Store = filestore.New(path, dep.Sealer, rootID, dep.Instrument)
	case StoragePostgres:
		if dep.DBConn == nil {
			return nil, fmt.Errorf("bank: storage driver %q needs a database connection", driver)
		}
		pg := db.NewDB(dep.DBConn, rootID, dep.Instrument)
		if err := pg.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("bank: migrate: %w", err)
		}
		ucDep.Store = pg
	default:
		return nil, fmt.Errorf("bank: unknown storage driver %q", driver)
	}

	if dep.CacheConn != nil {
		ucDep.Lockout = cache.NewLockout(dep.CacheConn, dep.Instrument)
	}

	uc, err := usecase.New(ucDep)
	if err != nil {
		return nil, err
	}

	if err := uc.EnsureRootAccount(ctx); err != nil {
		return nil, err
	}

	inbound.RegisterCLICommands(dep.Command, dep.Console, uc, dep.Location)

	return uc, nil
}
