package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/tithe/internal/config"
	"github.com/Veraticus/tithe/internal/ledger"
	"github.com/Veraticus/tithe/internal/storage"
)

// appConfig is resolved by initConfig before any command runs.
var appConfig config.Config

// openLedger opens the database, applies migrations and loads the ledger.
// The returned cleanup closes the database.
func openLedger(ctx context.Context) (*ledger.Store, *storage.SQLiteStorage, func(), error) {
	if err := appConfig.EnsureDatabaseDir(); err != nil {
		return nil, nil, nil, err
	}
	db, err := storage.NewSQLiteStorage(appConfig.DatabasePath)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	if err := db.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := ledger.Open(ctx, db, appConfig.BaseCurrency, ledger.WithRunLogLimit(appConfig.RunLogLimit))
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return store, db, cleanup, nil
}

// parseDate reads YYYY-MM-DD flags; empty means unset.
func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", value)
	}
	return &t, nil
}

// chunk splits ids into batches of at most size.
func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]string
	for len(ids) > 0 {
		n := min(size, len(ids))
		out = append(out, ids[:n])
		ids = ids[n:]
	}
	return out
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
