package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wacli/internal/out"
)

func newContactsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Search contacts and manage local aliases and tags",
	}
	cmd.AddCommand(newContactsSearchCmd(flags))
	cmd.AddCommand(newContactsShowCmd(flags))
	cmd.AddCommand(newContactsRefreshCmd(flags))
	cmd.AddCommand(newContactsAliasCmd(flags))
	cmd.AddCommand(newContactsTagsCmd(flags))
	return cmd
}

func newContactsSearchCmd(flags *rootFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search contacts by name, alias, phone, or JID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			cs, err := a.DB().SearchContacts(args[0], limit)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"contacts": cs})
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ALIAS\tNAME\tPHONE\tJID")
			for _, c := range cs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					out.Truncate(c.Alias, 18), out.Truncate(c.Name, 24), c.Phone, c.JID)
			}
			_ = w.Flush()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func newContactsShowCmd(flags *rootFlags) *cobra.Command {
	var jid string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show one contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jid == "" {
				return usageErrf("--jid is required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			c, err := a.DB().GetContact(jid)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(c)
			}
			fmt.Fprintf(os.Stdout, "JID: %s\n", c.JID)
			if c.Phone != "" {
				fmt.Fprintf(os.Stdout, "Phone: %s\n", c.Phone)
			}
			if c.Name != "" {
				fmt.Fprintf(os.Stdout, "Name: %s\n", c.Name)
			}
			if c.Alias != "" {
				fmt.Fprintf(os.Stdout, "Alias: %s\n", c.Alias)
			}
			if len(c.Tags) > 0 {
				fmt.Fprintf(os.Stdout, "Tags: %s\n", strings.Join(c.Tags, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jid, "jid", "", "contact JID")
	return cmd
}

func newContactsRefreshCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Import contacts from the session store",
		RunE: func(cmd *cobra.Command, args []string) error {
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
			n, err := a.RefreshContacts(ctx)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"contacts": n})
			}
			fmt.Fprintf(os.Stdout, "Imported %d contacts.\n", n)
			return nil
		},
	}
}

func newContactsAliasCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage the local alias for a contact",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Set the alias",
		RunE: func(cmd *cobra.Command, args []string) error {
			jid, _ := cmd.Flags().GetString("jid")
			alias, _ := cmd.Flags().GetString("alias")
			if jid == "" || alias == "" {
				return usageErrf("--jid and --alias are required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.DB().SetAlias(jid, alias); err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"jid": jid, "alias": alias})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm",
		Short: "Remove the alias",
		RunE: func(cmd *cobra.Command, args []string) error {
			jid, _ := cmd.Flags().GetString("jid")
			if jid == "" {
				return usageErrf("--jid is required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if err := a.DB().RemoveAlias(jid); err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"jid": jid, "removed": true})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	})

	cmd.PersistentFlags().String("jid", "", "contact JID")
	cmd.PersistentFlags().String("alias", "", "alias to set")
	return cmd
}

func newContactsTagsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage local tags on a contact",
	}

	run := func(remove bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			jid, _ := cmd.Flags().GetString("jid")
			tag, _ := cmd.Flags().GetString("tag")
			if jid == "" || tag == "" {
				return usageErrf("--jid and --tag are required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, true, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			if remove {
				err = a.DB().RemoveTag(jid, tag)
			} else {
				err = a.DB().AddTag(jid, tag)
			}
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"jid": jid, "tag": tag, "removed": remove})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		}
	}

	cmd.AddCommand(&cobra.Command{Use: "add", Short: "Add a tag", RunE: run(false)})
	cmd.AddCommand(&cobra.Command{Use: "rm", Short: "Remove a tag", RunE: run(true)})

	cmd.PersistentFlags().String("jid", "", "contact JID")
	cmd.PersistentFlags().String("tag", "", "tag")
	return cmd
}
