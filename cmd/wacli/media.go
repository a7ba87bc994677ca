package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wacli/internal/out"
)

func newMediaCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Download media for stored messages",
	}
	cmd.AddCommand(newMediaDownloadCmd(flags))
	return cmd
}

func newMediaDownloadCmd(flags *rootFlags) *cobra.Command {
	var chat, id, output string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and decrypt one message's media",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chat == "" || id == "" {
				return usageErrf("--chat and --id are required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.EnsureAuthed(); err != nil {
				return err
			}

			info, err := a.DB().GetMediaDownloadInfo(chat, id)
			if err != nil {
				return err
			}
			if info.MediaType == "" || info.DirectPath == "" || len(info.MediaKey) == 0 {
				return fmt.Errorf("message has no downloadable media metadata (run `wacli sync` first)")
			}

			target, err := a.ResolveMediaOutputPath(info, output)
			if err != nil {
				return err
			}

			if err := a.Connect(ctx, true, nil); err != nil {
				return err
			}
			n, err := a.WA().DownloadMediaToFile(ctx, info.DirectPath, info.FileEncSHA256,
				info.FileSHA256, info.MediaKey, info.FileLength, info.MediaType, info.MimeType, target)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			if err := a.DB().MarkMediaDownloaded(info.ChatJID, info.MsgID, target, now); err != nil {
				return err
			}

			if flags.asJSON {
				return writeJSON(map[string]any{
					"chat":          info.ChatJID,
					"id":            info.MsgID,
					"path":          target,
					"bytes":         n,
					"media_type":    info.MediaType,
					"mime_type":     info.MimeType,
					"downloaded_at": out.FormatTime(now),
				})
			}
			fmt.Fprintf(os.Stdout, "%s (%d bytes)\n", target, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "chat JID")
	cmd.Flags().StringVar(&id, "id", "", "message ID")
	cmd.Flags().StringVar(&output, "output", "", "output file, or a directory if it ends in a path separator (default: store media dir)")
	return cmd
}
