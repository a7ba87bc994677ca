package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"wacli/internal/app"
	"wacli/internal/out"
	"wacli/internal/store"
)

func newMessagesCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Query synced messages",
	}
	cmd.AddCommand(newMessagesListCmd(flags))
	cmd.AddCommand(newMessagesSearchCmd(flags))
	cmd.AddCommand(newMessagesShowCmd(flags))
	cmd.AddCommand(newMessagesContextCmd(flags))
	cmd.AddCommand(newMessagesBackfillCmd(flags))
	return cmd
}

func newMessagesListCmd(flags *rootFlags) *cobra.Command {
	var chat, afterStr, beforeStr string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			params := store.ListMessagesParams{ChatJID: chat, Limit: limit}
			if afterStr != "" {
				t, err := parseTime(afterStr)
				if err != nil {
					return err
				}
				params.After = &t
			}
			if beforeStr != "" {
				t, err := parseTime(beforeStr)
				if err != nil {
					return err
				}
				params.Before = &t
			}

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			msgs, err := a.DB().ListMessages(params)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"messages": msgs})
			}
			printMessageTable(msgs)
			return nil
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "restrict to one chat JID")
	cmd.Flags().StringVar(&afterStr, "after", "", "only messages after this time")
	cmd.Flags().StringVar(&beforeStr, "before", "", "only messages before this time")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func newMessagesSearchCmd(flags *rootFlags) *cobra.Command {
	var chat, from, mediaType string
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Full-text search across messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			msgs, err := a.DB().SearchMessages(store.SearchMessagesParams{
				Query:   args[0],
				ChatJID: chat,
				From:    from,
				Type:    mediaType,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"messages": msgs})
			}
			printMessageTable(msgs)
			return nil
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "restrict to one chat JID")
	cmd.Flags().StringVar(&from, "from", "", "restrict to one sender JID")
	cmd.Flags().StringVar(&mediaType, "type", "", "restrict to a media type (image, video, ...)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func newMessagesShowCmd(flags *rootFlags) *cobra.Command {
	var chat, id string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chat == "" || id == "" {
				return usageErrf("--chat and --id are required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			m, err := a.DB().GetMessage(chat, id)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(m)
			}
			printMessageDetail(m)
			return nil
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "chat JID")
	cmd.Flags().StringVar(&id, "id", "", "message ID")
	return cmd
}

func newMessagesContextCmd(flags *rootFlags) *cobra.Command {
	var chat, id string
	var before, after int

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show a message with its neighbors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if chat == "" || id == "" {
				return usageErrf("--chat and --id are required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			msgs, err := a.DB().MessageContext(chat, id, before, after)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"messages": msgs})
			}
			for _, m := range msgs {
				marker := " "
				if m.MsgID == id {
					marker = ">"
				}
				fmt.Fprintf(os.Stdout, "%s %s  %-20s  %s\n",
					marker, listTime(m.Timestamp), out.Truncate(senderLabel(m), 20), out.Truncate(m.DisplayText, 80))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "chat JID")
	cmd.Flags().StringVar(&id, "id", "", "message ID")
	cmd.Flags().IntVar(&before, "before", 5, "messages before")
	cmd.Flags().IntVar(&after, "after", 5, "messages after")
	return cmd
}

func newMessagesBackfillCmd(flags *rootFlags) *cobra.Command {
	var chat string
	var count, requests int
	var wait, idleExit time.Duration

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Request older history for a chat from the phone",
		Long: `backfill pages a chat's history backwards by asking the primary
device for messages older than the oldest one stored locally. The phone
must be online and may ignore requests; progress is best-effort.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if chat == "" {
				return usageErrf("--chat is required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, true)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			res, err := a.BackfillHistory(ctx, app.BackfillOptions{
				ChatJID:        chat,
				Count:          count,
				Requests:       requests,
				WaitPerRequest: wait,
				IdleExit:       idleExit,
			})
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(res)
			}
			fmt.Fprintf(os.Stdout, "Requests sent: %d\nMessages added: %d\nReached end: %v\n",
				res.RequestsSent, res.MessagesAdded, res.ReachedEnd)
			return nil
		},
	}

	cmd.Flags().StringVar(&chat, "chat", "", "chat JID")
	cmd.Flags().IntVar(&count, "count", 50, "messages per request")
	cmd.Flags().IntVar(&requests, "requests", 1, "maximum requests")
	cmd.Flags().DurationVar(&wait, "wait", 30*time.Second, "wait per request for the response")
	cmd.Flags().DurationVar(&idleExit, "idle-exit", 60*time.Second, "give up after this long without progress")
	return cmd
}

func senderLabel(m store.Message) string {
	if m.FromMe {
		return "me"
	}
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.SenderJID
}

func printMessageTable(msgs []store.Message) {
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tCHAT\tSENDER\tID\tTEXT")
	for _, m := range msgs {
		chat := m.ChatName
		if chat == "" {
			chat = m.ChatJID
		}
		text := m.DisplayText
		if text == "" {
			text = m.Text
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			listTime(m.Timestamp),
			out.Truncate(chat, 24),
			out.Truncate(senderLabel(m), 18),
			m.MsgID,
			out.Truncate(text, 60),
		)
	}
	_ = w.Flush()
}

func printMessageDetail(m store.Message) {
	fmt.Fprintf(os.Stdout, "Chat: %s", m.ChatJID)
	if m.ChatName != "" {
		fmt.Fprintf(os.Stdout, " (%s)", m.ChatName)
	}
	fmt.Fprintln(os.Stdout)
	fmt.Fprintf(os.Stdout, "ID: %s\n", m.MsgID)
	fmt.Fprintf(os.Stdout, "Time: %s\n", out.FormatTime(m.Timestamp))
	fmt.Fprintf(os.Stdout, "Sender: %s\n", senderLabel(m))
	if m.MediaType != "" {
		fmt.Fprintf(os.Stdout, "Media: %s\n", m.MediaType)
	}
	if m.Text != "" {
		fmt.Fprintf(os.Stdout, "\n%s\n", m.Text)
	} else if m.DisplayText != "" {
		fmt.Fprintf(os.Stdout, "\n%s\n", m.DisplayText)
	}
}
