package app

import (
	"context"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow/types"

	"wacli/internal/store"
)

// RefreshContacts imports the session store's contact list into the local
// database and returns how many contacts were written.
func (a *App) RefreshContacts(ctx context.Context) (int, error) {
	if a.wa == nil {
		return 0, fmt.Errorf("protocol client not open")
	}
	contacts, err := a.wa.GetAllContacts(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for jid, info := range contacts {
		if jid.Server != types.DefaultUserServer {
			continue
		}
		if err := a.db.UpsertContact(jid.String(), jid.User,
			info.PushName, info.FullName, info.FirstName, info.BusinessName); err != nil {
			a.log.Warn("contact upsert failed", "jid", jid.String(), "error", err)
			continue
		}
		count++
	}
	return count, nil
}

// RefreshGroups fetches the live joined-group list and persists each
// group's metadata, participant snapshot, and chat row.
func (a *App) RefreshGroups(ctx context.Context) (int, error) {
	if a.wa == nil {
		return 0, fmt.Errorf("protocol client not open")
	}
	groups, err := a.wa.GetJoinedGroups(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, g := range groups {
		if g == nil {
			continue
		}
		if err := a.PersistGroupInfo(g); err != nil {
			a.log.Warn("group persist failed", "jid", g.JID.String(), "error", err)
			continue
		}
		count++
	}
	return count, nil
}

// PersistGroupInfo writes one group snapshot: the group row, the atomically
// replaced participant set, and the chat row with kind group.
func (a *App) PersistGroupInfo(info *types.GroupInfo) error {
	if info == nil {
		return nil
	}
	jid := info.JID.String()

	if err := a.db.UpsertGroup(jid, info.GroupName.Name, info.OwnerJID.String(), info.GroupCreated); err != nil {
		return err
	}

	parts := make([]store.GroupParticipant, 0, len(info.Participants))
	for _, p := range info.Participants {
		role := store.RoleMember
		if p.IsSuperAdmin {
			role = store.RoleSuperAdmin
		} else if p.IsAdmin {
			role = store.RoleAdmin
		}
		parts = append(parts, store.GroupParticipant{
			GroupJID: jid,
			UserJID:  p.JID.String(),
			Role:     role,
		})
	}
	if err := a.db.ReplaceGroupParticipants(jid, parts); err != nil {
		return err
	}

	return a.db.UpsertChat(jid, store.ChatKindGroup, info.GroupName.Name, time.Time{})
}
