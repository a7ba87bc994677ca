// Command wacli mirrors a WhatsApp Web account into a local SQLite store
// and exposes it to other programs through a deterministic CLI.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"wacli/internal/config"
	"wacli/internal/lock"
	"wacli/internal/store"
)

// Exit codes consumed by the host agent.
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitLockHeld = 3
)

type rootFlags struct {
	storeDir string
	asJSON   bool
	timeout  time.Duration
	verbose  bool

	cfg config.Config
}

func main() {
	// A .env next to the working directory can supply WACLI_STORE and
	// friends; real environment variables always win.
	_ = godotenv.Load()

	flags := &rootFlags{}
	root := newRootCmd(flags)
	if err := root.Execute(); err != nil {
		if flags.asJSON {
			// Machine consumers read the envelope from stdout; the human
			// line still goes to stderr.
			_ = writeErrorJSON(err)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		return exitUsage
	case errors.Is(err, lock.ErrHeld):
		return exitLockHeld
	default:
		return exitError
	}
}

func newRootCmd(flags *rootFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "wacli",
		Short: "Local mirror of a WhatsApp Web account",
		Long: `wacli keeps a queryable SQLite mirror of a linked WhatsApp account:
chats, contacts, groups, messages, and downloaded media.

Pair once with "wacli auth", then run "wacli sync" to pull the stream.
Every command supports --json for machine-readable output.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if flags.verbose {
				level = slog.LevelDebug
			}
			// Logs go to stderr; stdout is reserved for command output.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			if flags.storeDir == "" {
				flags.storeDir = config.DefaultStoreDir()
			}
			cfg, err := config.Load(flags.storeDir)
			if err != nil {
				return err
			}
			flags.cfg = cfg
			if !cmd.Flags().Changed("timeout") {
				flags.timeout = cfg.Timeout
			}
			return nil
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", store.ErrInvalidArgument, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&flags.storeDir, "store", "", "store directory (default: $WACLI_STORE or ~/.wacli)")
	pf.BoolVar(&flags.asJSON, "json", false, "emit JSON on stdout")
	pf.DurationVar(&flags.timeout, "timeout", 30*time.Second, "per-command timeout")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newAuthCmd(flags))
	root.AddCommand(newSyncCmd(flags))
	root.AddCommand(newMessagesCmd(flags))
	root.AddCommand(newChatsCmd(flags))
	root.AddCommand(newContactsCmd(flags))
	root.AddCommand(newGroupsCmd(flags))
	root.AddCommand(newMediaCmd(flags))
	root.AddCommand(newDoctorCmd(flags))

	return root
}
