package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

func newAuthCmd(flags *rootFlags) *cobra.Command {
	var idleExit time.Duration
	var qrFile string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Pair this store with a phone (shows QR codes)",
		Long: `auth runs the pairing flow. Each fresh QR code is rendered to a PNG
file (human mode) or streamed as a JSON line (--json); scan it from
WhatsApp > Linked Devices. The command exits once paired, or after the
pairing stream has been idle for --idle-exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, lk, err := newApp(ctx, flags, true, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if a.WA().IsAuthed() {
				if flags.asJSON {
					return writeJSON(map[string]any{"authenticated": true})
				}
				fmt.Fprintln(os.Stdout, "Already paired.")
				return nil
			}

			if qrFile == "" {
				qrFile = filepath.Join(flags.storeDir, "qr.png")
			}

			pairCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			// The QR channel goes quiet once the code is scanned or the
			// server gives up; the idle timer bounds the whole wait.
			if idleExit <= 0 {
				idleExit = flags.cfg.IdleExit
			}
			idle := time.AfterFunc(idleExit, cancel)
			defer idle.Stop()

			var mu sync.Mutex
			var lastQR string
			onQR := func(code string) {
				idle.Reset(idleExit)
				mu.Lock()
				lastQR = code
				mu.Unlock()

				if flags.asJSON {
					_ = writeJSON(map[string]any{"qr": code})
					return
				}
				if err := qrcode.WriteFile(code, qrcode.Medium, 512, qrFile); err != nil {
					fmt.Fprintf(os.Stderr, "render QR: %v\n", err)
					return
				}
				fmt.Fprintf(os.Stdout, "QR code written to %s — scan it with your phone.\n", qrFile)
			}

			connErr := a.Connect(pairCtx, true, onQR)

			authed := a.WA().IsAuthed()
			if connErr != nil && !authed && pairCtx.Err() == nil {
				return connErr
			}

			mu.Lock()
			qr := lastQR
			mu.Unlock()

			if flags.asJSON {
				res := map[string]any{"authenticated": authed}
				if !authed && qr != "" {
					res["qr"] = qr
				}
				return writeJSON(res)
			}
			if authed {
				fmt.Fprintln(os.Stdout, "Paired.")
			} else {
				fmt.Fprintln(os.Stdout, "Not paired (pairing window closed).")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&idleExit, "idle-exit", 0, "exit after the pairing stream is idle this long (default: config idle_exit)")
	cmd.Flags().StringVar(&qrFile, "qr-file", "", "write QR PNG here (default: <store>/qr.png)")

	cmd.AddCommand(newAuthStatusCmd(flags))
	cmd.AddCommand(newAuthLogoutCmd(flags))
	return cmd
}

func newAuthStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether this store is paired",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			authed := a.WA().IsAuthed()
			if flags.asJSON {
				return writeJSON(map[string]any{"authenticated": authed})
			}
			if authed {
				fmt.Fprintln(os.Stdout, "Paired.")
			} else {
				fmt.Fprintln(os.Stdout, "Not paired.")
			}
			return nil
		},
	}
}

func newAuthLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Unpair and forget the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.WA().Logout(ctx); err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"logged_out": true})
			}
			fmt.Fprintln(os.Stdout, "Logged out.")
			return nil
		},
	}
}
