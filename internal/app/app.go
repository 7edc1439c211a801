package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
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

// App wires dependencies and manages the process lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config   config.Config
	ins      instrument.Instrumentation
	location *time.Location

	// libraries
	validator validator.Validator
	clock     *clock.TimeClocker
	pinHash   hash.Hash
	sealer    vault.Sealer
	totp      *otp.TOTP
	uid       uid.NumberID
	uuid      uid.StringID

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client

	// terminal
	console *console.Console
	root    *cobra.Command

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initCommand()
	app.initModules()
	app.initClosers()

	return app
}
