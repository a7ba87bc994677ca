package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wacli/internal/app"
)

func newSyncCmd(flags *rootFlags) *cobra.Command {
	var once bool
	var follow bool
	var idleExit time.Duration
	var downloadMedia bool
	var refreshContacts bool
	var refreshGroups bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the live message stream into the store",
		Long: `sync connects with the existing session (it never shows a QR code;
pair with "wacli auth" first) and writes every inbound event into the
local database.

--once exits after the stream has been idle for --idle-exit; the default
keeps following until Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			mode := app.SyncModeFollow
			if once && follow && cmd.Flags().Changed("follow") {
				return usageErrf("--once and --follow are mutually exclusive")
			}
			if once {
				mode = app.SyncModeOnce
			}
			// A bounded context would kill follow mode mid-stream; once
			// mode is bounded by the idle detector instead.
			if mode == app.SyncModeFollow && flags.timeout > 0 && !cmd.Flags().Changed("timeout") {
				flags.timeout = 0
			}

			runCtx, cancel := withTimeout(ctx, flags)
			defer cancel()

			a, lk, err := newApp(runCtx, flags, true, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if idleExit <= 0 {
				idleExit = flags.cfg.IdleExit
			}
			res, err := a.Sync(runCtx, app.SyncOptions{
				Mode:            mode,
				IdleExit:        idleExit,
				DownloadMedia:   downloadMedia || flags.cfg.DownloadMedia,
				RefreshContacts: refreshContacts,
				RefreshGroups:   refreshGroups,
			})
			if err != nil {
				return err
			}

			if flags.asJSON {
				return writeJSON(map[string]any{
					"synced":          true,
					"messages_stored": res.MessagesStored,
				})
			}
			fmt.Fprintf(os.Stdout, "Messages stored: %d\n", res.MessagesStored)
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "sync until the stream is idle, then exit")
	cmd.Flags().BoolVar(&follow, "follow", true, "keep syncing until Ctrl-C")
	cmd.Flags().DurationVar(&idleExit, "idle-exit", 0, "idle window for --once (default: config idle_exit)")
	cmd.Flags().BoolVar(&downloadMedia, "download-media", false, "download media in the background")
	cmd.Flags().BoolVar(&refreshContacts, "refresh-contacts", false, "refresh contacts before the event loop")
	cmd.Flags().BoolVar(&refreshGroups, "refresh-groups", false, "refresh joined groups before the event loop")
	return cmd
}
