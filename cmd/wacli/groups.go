package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.mau.fi/whatsmeow/types"

	"wacli/internal/app"
	"wacli/internal/out"
	"wacli/internal/wa"
)

func newGroupsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Query and manage groups",
	}
	cmd.AddCommand(newGroupsListCmd(flags))
	cmd.AddCommand(newGroupsRefreshCmd(flags))
	cmd.AddCommand(newGroupsInfoCmd(flags))
	cmd.AddCommand(newGroupsRenameCmd(flags))
	cmd.AddCommand(newGroupsLeaveCmd(flags))
	cmd.AddCommand(newGroupsParticipantsCmd(flags))
	cmd.AddCommand(newGroupsInviteCmd(flags))
	cmd.AddCommand(newGroupsJoinCmd(flags))
	return cmd
}

// liveGroupApp builds an app with the lock held and a connected session,
// the baseline for every group RPC.
func liveGroupApp(ctx context.Context, flags *rootFlags) (*app.App, func(), error) {
	a, lk, err := newApp(ctx, flags, true, true)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { closeApp(a, lk) }

	if err := a.EnsureAuthed(); err != nil {
		cleanup()
		return nil, nil, err
	}
	if err := a.Connect(ctx, true, nil); err != nil {
		cleanup()
		return nil, nil, err
	}
	return a, cleanup, nil
}

func newGroupsListCmd(flags *rootFlags) *cobra.Command {
	var query string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known groups from the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, lk, err := newApp(ctx, flags, false, false)
			if err != nil {
				return err
			}
			defer closeApp(a, lk)

			gs, err := a.DB().ListGroups(query, limit)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"groups": gs})
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tJID\tCREATED")
			for _, g := range gs {
				name := g.Name
				if name == "" {
					name = g.JID
				}
				created := "-"
				if !g.CreatedAt.IsZero() {
					created = g.CreatedAt.Local().Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", out.Truncate(name, 40), g.JID, created)
			}
			_ = w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "substring match on name or JID")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum results")
	return cmd
}

func newGroupsRefreshCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch joined groups live and update the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, cleanup, err := liveGroupApp(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := a.RefreshGroups(ctx)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"groups": n})
			}
			fmt.Fprintf(os.Stdout, "Imported %d groups.\n", n)
			return nil
		},
	}
}

func newGroupsInfoCmd(flags *rootFlags) *cobra.Command {
	var jidStr string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Fetch live group info and update the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jidStr == "" {
				return usageErrf("--jid is required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, cleanup, err := liveGroupApp(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			gjid, err := types.ParseJID(jidStr)
			if err != nil {
				return usageErrf("parse group JID: %v", err)
			}
			info, err := a.WA().GetGroupInfo(ctx, gjid)
			if err != nil {
				return err
			}
			if err := a.PersistGroupInfo(info); err != nil {
				return err
			}

			g, err := a.DB().GetGroup(gjid.String())
			if err != nil {
				return err
			}
			parts, err := a.DB().ListGroupParticipants(gjid.String())
			if err != nil {
				return err
			}

			if flags.asJSON {
				return writeJSON(map[string]any{"group": g, "participants": parts})
			}
			fmt.Fprintf(os.Stdout, "JID: %s\nName: %s\nOwner: %s\nCreated: %s\nParticipants: %d\n",
				g.JID, g.Name, g.OwnerJID, out.FormatTime(g.CreatedAt), len(parts))
			for _, p := range parts {
				fmt.Fprintf(os.Stdout, "  %-12s %s\n", p.Role, p.UserJID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&jidStr, "jid", "", "group JID (…@g.us)")
	return cmd
}

func newGroupsRenameCmd(flags *rootFlags) *cobra.Command {
	var jidStr, name string

	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jidStr == "" || name == "" {
				return usageErrf("--jid and --name are required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, cleanup, err := liveGroupApp(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			gjid, err := types.ParseJID(jidStr)
			if err != nil {
				return usageErrf("parse group JID: %v", err)
			}
			if err := a.WA().SetGroupName(ctx, gjid, name); err != nil {
				return err
			}
			if info, err := a.WA().GetGroupInfo(ctx, gjid); err == nil {
				_ = a.PersistGroupInfo(info)
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"jid": gjid.String(), "name": name})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&jidStr, "jid", "", "group JID (…@g.us)")
	cmd.Flags().StringVar(&name, "name", "", "new name")
	return cmd
}

func newGroupsLeaveCmd(flags *rootFlags) *cobra.Command {
	var jidStr string

	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Leave a group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jidStr == "" {
				return usageErrf("--jid is required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, cleanup, err := liveGroupApp(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			gjid, err := types.ParseJID(jidStr)
			if err != nil {
				return usageErrf("parse group JID: %v", err)
			}
			if err := a.WA().LeaveGroup(ctx, gjid); err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"jid": gjid.String(), "left": true})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&jidStr, "jid", "", "group JID (…@g.us)")
	return cmd
}

func newGroupsParticipantsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "participants",
		Short: "Add, remove, promote, or demote members",
	}
	for _, action := range []wa.GroupParticipantAction{
		wa.ParticipantAdd, wa.ParticipantRemove, wa.ParticipantPromote, wa.ParticipantDemote,
	} {
		cmd.AddCommand(newGroupsParticipantsActionCmd(flags, action))
	}
	return cmd
}

func newGroupsParticipantsActionCmd(flags *rootFlags, action wa.GroupParticipantAction) *cobra.Command {
	var jidStr string
	var users []string

	cmd := &cobra.Command{
		Use:   string(action),
		Short: string(action) + " group participants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jidStr == "" || len(users) == 0 {
				return usageErrf("--jid and at least one --user are required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, cleanup, err := liveGroupApp(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			gjid, err := types.ParseJID(jidStr)
			if err != nil {
				return usageErrf("parse group JID: %v", err)
			}
			jids := make([]types.JID, 0, len(users))
			for _, u := range users {
				j, err := wa.ParseUserOrJID(u)
				if err != nil {
					return usageErrf("%v", err)
				}
				jids = append(jids, j)
			}

			updated, err := a.WA().UpdateGroupParticipants(ctx, gjid, jids, action)
			if err != nil {
				return err
			}
			if info, err := a.WA().GetGroupInfo(ctx, gjid); err == nil {
				_ = a.PersistGroupInfo(info)
			}

			if flags.asJSON {
				changed := make([]string, 0, len(updated))
				for _, p := range updated {
					changed = append(changed, p.JID.String())
				}
				return writeJSON(map[string]any{"jid": gjid.String(), "action": string(action), "users": changed})
			}
			fmt.Fprintln(os.Stdout, "OK")
			return nil
		},
	}

	cmd.Flags().StringVar(&jidStr, "jid", "", "group JID (…@g.us)")
	cmd.Flags().StringSliceVar(&users, "user", nil, "user phone number or JID (repeatable)")
	return cmd
}

func newGroupsInviteCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Manage group invite links",
	}
	link := &cobra.Command{
		Use:   "link",
		Short: "Get or revoke the invite link",
	}
	link.AddCommand(newGroupsInviteLinkCmd(flags, false))
	link.AddCommand(newGroupsInviteLinkCmd(flags, true))
	cmd.AddCommand(link)
	return cmd
}

func newGroupsInviteLinkCmd(flags *rootFlags, revoke bool) *cobra.Command {
	use, short := "get", "Get the invite link"
	if revoke {
		use, short = "revoke", "Revoke and reissue the invite link"
	}
	var jidStr string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jidStr == "" {
				return usageErrf("--jid is required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, cleanup, err := liveGroupApp(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			gjid, err := types.ParseJID(jidStr)
			if err != nil {
				return usageErrf("parse group JID: %v", err)
			}
			link, err := a.WA().GetGroupInviteLink(ctx, gjid, revoke)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"jid": gjid.String(), "link": link, "revoked": revoke})
			}
			fmt.Fprintln(os.Stdout, link)
			return nil
		},
	}

	cmd.Flags().StringVar(&jidStr, "jid", "", "group JID (…@g.us)")
	return cmd
}

func newGroupsJoinCmd(flags *rootFlags) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a group via an invite code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code == "" {
				return usageErrf("--code is required")
			}
			ctx, cancel := withTimeout(context.Background(), flags)
			defer cancel()

			a, cleanup, err := liveGroupApp(ctx, flags)
			if err != nil {
				return err
			}
			defer cleanup()

			jid, err := a.WA().JoinGroupWithLink(ctx, code)
			if err != nil {
				return err
			}
			if info, err := a.WA().GetGroupInfo(ctx, jid); err == nil {
				_ = a.PersistGroupInfo(info)
			}
			if flags.asJSON {
				return writeJSON(map[string]any{"jid": jid.String(), "joined": true})
			}
			fmt.Fprintf(os.Stdout, "Joined: %s\n", jid.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "invite code from the link")
	return cmd
}
