package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"wacli/internal/app"
	"wacli/internal/lock"
	"wacli/internal/out"
	"wacli/internal/store"
)

// newApp wires the store (and optionally the lock and protocol client) for
// one command. Writers and anything touching the network must pass
// withLock; pure readers skip it and tolerate a concurrent writer through
// SQLite's busy timeout.
func newApp(ctx context.Context, flags *rootFlags, withLock, withWA bool) (*app.App, *lock.Lock, error) {
	var lk *lock.Lock
	if withLock {
		var err error
		lk, err = lock.Acquire(flags.storeDir)
		if err != nil {
			return nil, nil, err
		}
	}

	a, err := app.New(app.Options{
		StoreDir: flags.storeDir,
		Logger:   slog.Default(),
	})
	if err != nil {
		if lk != nil {
			_ = lk.Release()
		}
		return nil, nil, err
	}

	if withWA {
		if err := a.OpenWA(ctx); err != nil {
			_ = a.Close()
			if lk != nil {
				_ = lk.Release()
			}
			return nil, nil, err
		}
	}
	return a, lk, nil
}

// closeApp tears down in reverse order. Runs on every exit path, panics
// included, via defer at the call sites.
func closeApp(a *app.App, lk *lock.Lock) {
	if a != nil {
		_ = a.Close()
	}
	if lk != nil {
		_ = lk.Release()
	}
}

// withTimeout derives the command context. A zero timeout (sync --follow)
// means cancellation only.
func withTimeout(ctx context.Context, flags *rootFlags) (context.Context, context.CancelFunc) {
	if flags.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, flags.timeout)
}

// parseTime accepts RFC 3339 or a bare date.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, usageErrf("time value is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, usageErrf("unsupported time format %q (use RFC3339 or YYYY-MM-DD)", s)
}

// usageErrf builds an invalid-usage error (exit code 2).
func usageErrf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func writeJSON(v any) error {
	return out.WriteJSON(os.Stdout, v)
}

func writeErrorJSON(err error) error {
	return out.WriteErrorJSON(os.Stdout, err)
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// listTime renders a timestamp for human tables.
func listTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
