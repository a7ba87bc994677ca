package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wacli/internal/lock"
)

func newDoctorCmd(flags *rootFlags) *cobra.Command {
	var connect bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose store, lock, auth, and search state",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			storeDir, _ := filepath.Abs(flags.storeDir)

			// Probe the writer lock by taking and releasing it.
			var lockHeld bool
			var lockInfo string
			if lk, err := lock.Acquire(storeDir); err == nil {
				_ = lk.Release()
			} else {
				lockHeld = true
				if info, err := lock.ReadInfo(storeDir); err == nil {
					lockInfo = fmt.Sprintf("pid %d: %s (since %s)", info.PID, info.Command, info.AcquiredAt)
				}
			}

			a, lk, err := newApp(ctx, flags, false, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			authed := a.WA().IsAuthed()
			connected := false
			if connect && authed && !lockHeld {
				// Connecting talks to the network, so it runs under the writer lock.
				if clk, err := lock.Acquire(storeDir); err == nil {
					if err := a.Connect(ctx, true, nil); err == nil {
						connected = true
					}
					a.WA().Disconnect()
					_ = clk.Release()
				}
			}

			total, _ := a.DB().CountMessages()

			type report struct {
				StoreDir   string `json:"store_dir"`
				LockHeld   bool   `json:"lock_held"`
				LockInfo   string `json:"lock_info,omitempty"`
				Authed     bool   `json:"authenticated"`
				Connected  bool   `json:"connected"`
				FTSEnabled bool   `json:"fts_enabled"`
			}
			rep := report{
				StoreDir:   storeDir,
				LockHeld:   lockHeld,
				LockInfo:   lockInfo,
				Authed:     authed,
				Connected:  connected,
				FTSEnabled: a.DB().HasFTS(),
			}

			if flags.asJSON {
				return writeJSON(rep)
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintf(w, "STORE\t%s\n", rep.StoreDir)
			fmt.Fprintf(w, "LOCKED\t%v\n", rep.LockHeld)
			if rep.LockHeld && rep.LockInfo != "" {
				fmt.Fprintf(w, "LOCK_INFO\t%s\n", rep.LockInfo)
			}
			fmt.Fprintf(w, "AUTHENTICATED\t%v\n", rep.Authed)
			fmt.Fprintf(w, "CONNECTED\t%v\n", rep.Connected)
			fmt.Fprintf(w, "FTS5\t%v\n", rep.FTSEnabled)
			fmt.Fprintf(w, "MESSAGES\t%d\n", total)
			_ = w.Flush()

			if rep.LockHeld && isTTY() {
				fmt.Fprintln(os.Stdout, "\nTip: stop the running wacli sync before write operations.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&connect, "connect", false, "also try connecting to WhatsApp")
	return cmd
}
