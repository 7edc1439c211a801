package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/ledgerguard/internal/bank"
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

func defaults() map[string]any {
	return map[string]any{
		"app.tz":                                    "UTC",
		"instrument.enabled":                        false,
		"instrument.service_name":                   "ledgerguard",
		"instrument.service_version":                "dev",
		"instrument.env":                            "local",
		"instrument.trace_sample_ratio":             1.0,
		"instrument.metric_interval_seconds":        15,
		"instrument.log_mask_fields":                "pin,new_pin,code,secret,pin_hash,totp_secret",
		"instrument.log_level":                      "error",
		"hash.pin.driver":                           hash.DriverBcrypt,
		"hash.bcrypt.cost":                          12,
		"hash.argon2id.memory_kib":                  hash.DefaultArgon2Params.MemoryKiB,
		"hash.argon2id.iterations":                  hash.DefaultArgon2Params.Iterations,
		"hash.argon2id.parallelism":                 hash.DefaultArgon2Params.Parallelism,
		"mfa.totp.issuer":                           usecase.DefaultIssuer,
		"mfa.totp.period":                           30,
		"mfa.totp.skew":                             1,
		"uid.node":                                  1,
		"storage.driver":                            bank.StorageFile,
		"storage.file.path":                         "./data/ledger.db",
		"database.pool.max_conns":                   4,
		"database.pool.min_conns":                   0,
		"database.pool.max_conn_lifetime_seconds":   1800,
		"database.pool.max_conn_idle_seconds":       300,
		"database.pool.health_check_period_seconds": 60,
		"database.connect_retries":                  5,
		"modules.bank.root.id":                      usecase.DefaultRootID,
		"modules.bank.auth.max_attempts":            usecase.DefaultMaxAttempts,
		"modules.bank.auth.trust_window_seconds":    int(usecase.DefaultTrustWindow / time.Second),
		"modules.bank.auth.backoff_base_seconds":    int(usecase.DefaultBackoffBase / time.Second),
		"modules.bank.auth.lockout.persist":         false,
		"modules.bank.auth.lockout.window_seconds":  int(usecase.DefaultLockoutWin / time.Second),
		"modules.bank.ledger.transfer_fee":          usecase.DefaultTransferFee,
	}
}

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.NewViper(path, defaults())
	if err != nil {
		slog.Error("failed to init config", "path", path, "error", err)
		os.Exit(1)
	}

	loc, err := time.LoadLocation(cfg.GetString("app.tz"))
	if err != nil {
		slog.Error("failed to load app timezone", "tz", cfg.GetString("app.tz"), "error", err)
		os.Exit(1)
	}

	a.config = cfg
	a.location = loc
}

func (a *App) initInstrument() {
	ins, err := instrument.New(a.ctx, &instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("instrument.service_name"),
		ServiceVersion:   a.config.GetString("instrument.service_version"),
		Environment:      a.config.GetString("instrument.env"),
		OTLPEndpoint:     a.config.GetString("instrument.otlp_endpoint"),
		OTLPSecure:       a.config.GetBool("instrument.otlp_secure"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
		LogLevel:         a.config.GetString("instrument.log_level"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake(a.config.GetInt64("uid.node"))
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow

	driver := a.config.GetString("hash.pin.driver")
	pepper := a.config.GetString("hash.bcrypt.pepper")
	if driver == hash.DriverArgon2id {
		pepper = a.config.GetString("hash.argon2id.pepper")
	}
	pinHash, err := hash.New(hash.Options{
		Driver:     driver,
		BcryptCost: a.config.GetInt("hash.bcrypt.cost"),
		Argon2: hash.Argon2Params{
			MemoryKiB:   uint32(a.config.GetUint("hash.argon2id.memory_kib")),
			Iterations:  uint32(a.config.GetUint("hash.argon2id.iterations")),
			Parallelism: uint8(a.config.GetUint("hash.argon2id.parallelism")),
		},
		Pepper: pepper,
	})
	if err != nil {
		slog.Error("failed to init pin hash", "driver", driver, "error", err)
		os.Exit(1)
	}
	a.pinHash = pinHash

	a.totp = otp.NewTOTP(
		a.config.GetString("mfa.totp.issuer"),
		a.config.GetUint("mfa.totp.period"),
		a.config.GetUint("mfa.totp.skew"),
	)

	keys, err := vault.NewStaticKeyProvider(a.config.GetString("mfa.secret"))
	if err != nil {
		slog.Error("failed to init vault, mfa.secret must be 32 base64 encoded bytes (AES-256)", "error", err)
		os.Exit(1)
	}
	a.sealer = vault.NewAESGCM(keys)
}

func (a *App) initDatabase() {
	if a.config.GetString("storage.driver") != bank.StoragePostgres {
		return
	}

	config, err := pgxpool.ParseConfig(a.config.GetString("database.url"))
	if err != nil {
		slog.Error("failed to parse DB connection string.", "error", err)
		os.Exit(1)
	}

	config.MaxConns = int32(a.config.GetInt("database.pool.max_conns"))
	config.MinConns = int32(a.config.GetInt("database.pool.min_conns"))
	config.MaxConnLifetime = a.config.GetSecond("database.pool.max_conn_lifetime_seconds")
	config.MaxConnIdleTime = a.config.GetSecond("database.pool.max_conn_idle_seconds")
	config.HealthCheckPeriod = a.config.GetSecond("database.pool.health_check_period_seconds")

	pool, err := pgxpool.NewWithConfig(a.ctx, config)
	if err != nil {
		slog.Error("failed to create DB connection pool", "error", err)
		os.Exit(1)
	}

	b := retry.NewFibonacci(200 * time.Millisecond)
	b = retry.WithMaxRetries(uint64(a.config.GetUint("database.connect_retries")), b)
	b = retry.WithCappedDuration(2*time.Second, b)

	if err := retry.Do(a.ctx, b, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := pool.Ping(pingCtx); err != nil {
			slog.Warn("DB not reachable yet", "error", err)
			return retry.RetryableError(err)
		}

		return nil
	}); err != nil {
		slog.Error("failed to ping DB", "error", err)
		os.Exit(1)
	}

	a.dbConn = pool
}

func (a *App) initCache() {
	if !a.config.GetBool("modules.bank.auth.lockout.persist") {
		return
	}

	opt, err := redis.ParseURL(a.config.GetString("redis.url"))
	if err != nil {
		slog.Error("failed to parse redis url", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}

	a.cacheConn = rdb
}

func (a *App) initCommand() {
	a.console = console.New(os.Stdin, os.Stdout, os.Stderr)

	a.root = &cobra.Command{
		Use:   "ledgerguard",
		Short: "TOTP-gated account ledger",
		Long: `LedgerGuard keeps account balances and a transaction history behind a
PIN and a time-based one-time password.

Every account except root logs in with its PIN and the code shown by an
authenticator app. Transfers charge a fixed fee credited to root.`,
		Version:       a.config.GetString("instrument.service_version"),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}

				return a.cacheConn.Close()
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				if a.dbConn != nil {
					a.dbConn.Close()
				}

				return nil
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
