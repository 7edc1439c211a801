package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/ledgerguard/internal/bank"
)

func (a *App) initModules() {
	if _, err := bank.New(a.ctx, bank.Dependency{
		DBConn:     a.dbConn,
		CacheConn:  a.cacheConn,
		Command:    a.root,
		Console:    a.console,
		Config:     a.config,
		Instrument: a.ins,
		UID:        a.uid,
		UUID:       a.uuid,
		PINHash:    a.pinHash,
		Sealer:     a.sealer,
		Clock:      a.clock,
		Totp:       a.totp,
		Validator:  a.validator,
		Location:   a.location,
	}); err != nil {
		slog.Error("failed to init module bank", "error", err)
		os.Exit(1)
	}
}
