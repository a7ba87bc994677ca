package app

import (
	"context"
	"errors"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	waHistorySync "go.mau.fi/whatsmeow/proto/waHistorySync"
	waWeb "go.mau.fi/whatsmeow/proto/waWeb"

	"wacli/internal/store"
	"wacli/internal/wa"
)

// SyncMode selects how long the sync loop runs.
type SyncMode int

const (
	// SyncModeOnce runs until the event stream has been idle for IdleExit.
	SyncModeOnce SyncMode = iota
	// SyncModeFollow runs until the context is cancelled.
	SyncModeFollow
)

// SyncOptions configures one Sync run.
type SyncOptions struct {
	Mode            SyncMode
	IdleExit        time.Duration
	DownloadMedia   bool
	RefreshContacts bool
	RefreshGroups   bool
}

// SyncResult reports what a Sync run stored.
type SyncResult struct {
	MessagesStored int64 `json:"messages_stored"`
}

// Sync connects (never showing a QR), registers event handlers, and mirrors
// the live stream into the store. In once mode it exits after the stream
// has been idle for IdleExit and no media jobs are in flight; in follow
// mode it runs until cancellation.
func (a *App) Sync(ctx context.Context, opts SyncOptions) (SyncResult, error) {
	var res SyncResult
	if opts.IdleExit <= 0 {
		opts.IdleExit = 30 * time.Second
	}
	if err := a.EnsureAuthed(); err != nil {
		return res, err
	}
	if err := a.Connect(ctx, true, nil); err != nil {
		return res, err
	}

	a.mu.Lock()
	a.syncOpts = opts
	a.mu.Unlock()
	a.messagesStored.Store(0)
	a.touch()

	handlerID := a.wa.AddEventHandler(a.handleEvent)
	defer a.wa.RemoveEventHandler(handlerID)

	if opts.RefreshContacts {
		n, err := a.RefreshContacts(ctx)
		if err != nil {
			return res, err
		}
		a.log.Info("contacts refreshed", "count", n)
	}
	if opts.RefreshGroups {
		n, err := a.RefreshGroups(ctx)
		if err != nil {
			return res, err
		}
		a.log.Info("groups refreshed", "count", n)
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			res.MessagesStored = a.messagesStored.Load()
			if errors.Is(ctx.Err(), context.Canceled) {
				// Ctrl-C is the normal way out of follow mode.
				return res, nil
			}
			return res, ctx.Err()
		case <-ticker.C:
			if a.State() == StateLoggedOut {
				res.MessagesStored = a.messagesStored.Load()
				return res, ErrNotAuthenticated
			}
			if opts.Mode != SyncModeOnce {
				continue
			}
			// Exit needs both a quiet stream and an empty media pipeline.
			if a.idleFor() >= opts.IdleExit && a.mediaPending.Load() == 0 {
				res.MessagesStored = a.messagesStored.Load()
				return res, nil
			}
		}
	}
}

// handleEvent runs on library goroutines. All shared mutation goes through
// the store (its own locking), atomics, or short mu-guarded map reads —
// never back into the protocol client.
func (a *App) handleEvent(evt any) {
	a.touch()
	switch v := evt.(type) {
	case *events.Message:
		a.handleMessage(v)
	case *events.HistorySync:
		a.handleHistorySync(v)
	case *events.Contact:
		a.handleContact(v)
	case *events.PushName:
		if v.NewPushName != "" {
			jid := v.JID.String()
			if err := a.db.UpsertContact(jid, wa.PhoneFromJID(jid), v.NewPushName, "", "", ""); err != nil {
				a.log.Warn("push name upsert failed", "jid", jid, "error", err)
			}
		}
	case *events.GroupInfo:
		a.handleGroupInfo(v)
	case *events.Connected:
		a.setState(StateConnected)
		a.log.Debug("connected")
	case *events.Disconnected:
		a.setState(StateDisconnected)
		a.log.Debug("disconnected")
	case *events.LoggedOut:
		a.setState(StateLoggedOut)
		a.log.Warn("session logged out by the server")
	}
}

func (a *App) handleMessage(v *events.Message) {
	a.mu.Lock()
	downloadMedia := a.syncOpts.DownloadMedia
	a.mu.Unlock()

	info := v.Info
	chatJID := info.Chat.String()
	senderJID := info.Sender.String()
	text := wa.ExtractText(v.Message)
	media := wa.ExtractMedia(v.Message)

	if err := a.db.UpsertChat(chatJID, wa.ChatKind(chatJID), "", info.Timestamp); err != nil {
		a.log.Warn("chat upsert failed", "chat", chatJID, "error", err)
	}
	if !info.IsFromMe && info.PushName != "" {
		if err := a.db.UpsertContact(senderJID, wa.PhoneFromJID(senderJID), info.PushName, "", "", ""); err != nil {
			a.log.Warn("contact upsert failed", "jid", senderJID, "error", err)
		}
	}

	p := store.UpsertMessageParams{
		ChatJID:     chatJID,
		MsgID:       string(info.ID),
		SenderJID:   senderJID,
		SenderName:  info.PushName,
		Timestamp:   info.Timestamp,
		FromMe:      info.IsFromMe,
		Text:        text,
		DisplayText: wa.DisplayText(text, media),
	}
	applyMedia(&p, media)

	if err := a.db.UpsertMessage(p); err != nil {
		a.log.Warn("message upsert failed", "chat", chatJID, "id", info.ID, "error", err)
		return
	}
	a.messagesStored.Add(1)

	if media != nil && downloadMedia {
		a.enqueueMedia(mediaJob{chatJID: chatJID, msgID: string(info.ID)})
	}
}

// handleHistorySync persists every conversation in the batch, then resolves
// any pending on-demand backfill futures by conversation JID. Messages are
// stored before the future resolves so the waiter reads a settled store.
func (a *App) handleHistorySync(v *events.HistorySync) {
	data := v.Data
	if data == nil {
		return
	}

	for _, conv := range data.GetConversations() {
		chatJID := conv.GetID()
		if chatJID == "" {
			continue
		}
		var newest time.Time
		for _, hsMsg := range conv.GetMessages() {
			if ts, ok := a.storeWebMessage(chatJID, hsMsg.GetMessage()); ok && ts.After(newest) {
				newest = ts
			}
		}
		if err := a.db.UpsertChat(chatJID, wa.ChatKind(chatJID), conv.GetDisplayName(), newest); err != nil {
			a.log.Warn("chat upsert failed", "chat", chatJID, "error", err)
		}
	}

	if data.GetSyncType() != waHistorySync.HistorySync_ON_DEMAND {
		return
	}
	for _, conv := range data.GetConversations() {
		a.mu.Lock()
		ch := a.backfill[conv.GetID()]
		a.mu.Unlock()
		if ch == nil {
			continue
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// storeWebMessage persists one history-sync message and reports its
// timestamp on success.
func (a *App) storeWebMessage(chatJID string, webMsg *waWeb.WebMessageInfo) (time.Time, bool) {
	if webMsg == nil {
		return time.Time{}, false
	}
	key := webMsg.GetKey()
	if key == nil || key.GetID() == "" {
		return time.Time{}, false
	}

	fromMe := key.GetFromMe()
	senderJID := key.GetParticipant()
	if senderJID == "" && !fromMe && wa.ChatKind(chatJID) == store.ChatKindDM {
		senderJID = chatJID
	}

	ts := time.Unix(int64(webMsg.GetMessageTimestamp()), 0).UTC()
	text := wa.ExtractText(webMsg.GetMessage())
	media := wa.ExtractMedia(webMsg.GetMessage())

	p := store.UpsertMessageParams{
		ChatJID:     chatJID,
		MsgID:       key.GetID(),
		SenderJID:   senderJID,
		SenderName:  webMsg.GetPushName(),
		Timestamp:   ts,
		FromMe:      fromMe,
		Text:        text,
		DisplayText: wa.DisplayText(text, media),
	}
	applyMedia(&p, media)

	if err := a.db.UpsertMessage(p); err != nil {
		a.log.Warn("history message upsert failed", "chat", chatJID, "id", key.GetID(), "error", err)
		return time.Time{}, false
	}
	a.messagesStored.Add(1)
	return ts, true
}

func (a *App) handleContact(v *events.Contact) {
	jid := v.JID.String()
	var fullName, firstName string
	if v.Action != nil {
		fullName = v.Action.GetFullName()
		firstName = v.Action.GetFirstName()
	}
	if err := a.db.UpsertContact(jid, wa.PhoneFromJID(jid), "", fullName, firstName, ""); err != nil {
		a.log.Warn("contact upsert failed", "jid", jid, "error", err)
	}
}

func (a *App) handleGroupInfo(v *events.GroupInfo) {
	jid := v.JID.String()
	var name string
	if v.Name != nil {
		name = v.Name.Name
	}
	if err := a.db.UpsertGroup(jid, name, "", time.Time{}); err != nil {
		a.log.Warn("group upsert failed", "jid", jid, "error", err)
	}
	if err := a.db.UpsertChat(jid, store.ChatKindGroup, name, time.Time{}); err != nil {
		a.log.Warn("chat upsert failed", "chat", jid, "error", err)
	}
}

func applyMedia(p *store.UpsertMessageParams, media *wa.MediaInfo) {
	if media == nil {
		return
	}
	p.MediaType = media.Type
	p.MediaCaption = media.Caption
	p.Filename = media.Filename
	p.MimeType = media.MimeType
	p.DirectPath = media.DirectPath
	p.MediaKey = media.MediaKey
	p.FileSHA256 = media.FileSHA256
	p.FileEncSHA256 = media.FileEncSHA256
	p.FileLength = media.FileLength
}
