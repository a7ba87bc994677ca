package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	waHistorySync "go.mau.fi/whatsmeow/proto/waHistorySync"

	"wacli/internal/store"
)

// anchorMsgID is the placeholder anchor used when a chat has no stored
// messages yet; the primary device treats it as "from now".
const anchorMsgID = "FFFFFFFFFFFFFFFFFFFFFFFF"

// BackfillOptions configures one BackfillHistory run.
type BackfillOptions struct {
	ChatJID        string
	Count          int
	Requests       int
	WaitPerRequest time.Duration
	IdleExit       time.Duration
}

// BackfillResult reports backfill progress.
type BackfillResult struct {
	RequestsSent  int   `json:"requests_sent"`
	MessagesAdded int64 `json:"messages_added"`
	ReachedEnd    bool  `json:"reached_end"`
}

// BackfillHistory pages a chat's history backwards. Each round builds a
// history-sync request anchored at the oldest stored message, sends it to
// the primary device, and waits up to WaitPerRequest for the matching
// on-demand response. The response lands through the normal event path
// (messages stored by the handler) and resolves a per-chat future here.
// The loop ends after Requests rounds, on the server's typed end-of-history
// flag, or once IdleExit passes without progress — the phone routinely
// ignores these requests, so silence is an expected outcome.
func (a *App) BackfillHistory(ctx context.Context, opts BackfillOptions) (BackfillResult, error) {
	var res BackfillResult
	if opts.ChatJID == "" {
		return res, fmt.Errorf("%w: chat jid is required", store.ErrInvalidArgument)
	}
	if opts.Count <= 0 {
		opts.Count = 50
	}
	if opts.Requests <= 0 {
		opts.Requests = 1
	}
	if opts.WaitPerRequest <= 0 {
		opts.WaitPerRequest = 30 * time.Second
	}
	if opts.IdleExit <= 0 {
		opts.IdleExit = opts.WaitPerRequest
	}

	if err := a.EnsureAuthed(); err != nil {
		return res, err
	}
	if err := a.Connect(ctx, true, nil); err != nil {
		return res, err
	}

	responses := make(chan *events.HistorySync, 4)
	a.mu.Lock()
	a.backfill[opts.ChatJID] = responses
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.backfill, opts.ChatJID)
		a.mu.Unlock()
	}()

	handlerID := a.wa.AddEventHandler(a.handleEvent)
	defer a.wa.RemoveEventHandler(handlerID)

	base, err := a.db.CountChatMessages(opts.ChatJID)
	if err != nil {
		return res, err
	}

	lastProgress := time.Now()
	for i := 0; i < opts.Requests; i++ {
		anchor, err := a.backfillAnchor(opts.ChatJID)
		if err != nil {
			return res, err
		}

		req := a.wa.BuildHistorySyncRequest(anchor, opts.Count)
		if err := a.wa.SendHistorySyncRequest(ctx, req); err != nil {
			return res, err
		}
		res.RequestsSent++
		a.log.Debug("history request sent", "chat", opts.ChatJID,
			"anchor", anchor.ID, "count", opts.Count)

		select {
		case evt := <-responses:
			cur, err := a.db.CountChatMessages(opts.ChatJID)
			if err != nil {
				return res, err
			}
			res.MessagesAdded = cur - base
			lastProgress = time.Now()
			if conversationEnded(evt, opts.ChatJID) {
				res.ReachedEnd = true
				return res, nil
			}
		case <-time.After(opts.WaitPerRequest):
			if time.Since(lastProgress) >= opts.IdleExit {
				return res, nil
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return res, nil
			}
			return res, ctx.Err()
		}
	}
	return res, nil
}

// backfillAnchor returns the oldest stored message of the chat, or a
// placeholder anchored at the current time for an empty chat.
func (a *App) backfillAnchor(chatJID string) (*types.MessageInfo, error) {
	jid, err := types.ParseJID(chatJID)
	if err != nil {
		return nil, fmt.Errorf("parse chat jid %q: %w", chatJID, err)
	}

	info, err := a.db.GetOldestMessageInfo(chatJID)
	if errors.Is(err, store.ErrNotFound) {
		return &types.MessageInfo{
			MessageSource: types.MessageSource{Chat: jid, IsFromMe: true},
			ID:            anchorMsgID,
			Timestamp:     time.Now(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return &types.MessageInfo{
		MessageSource: types.MessageSource{Chat: jid, IsFromMe: info.FromMe},
		ID:            types.MessageID(info.MsgID),
		Timestamp:     info.Timestamp,
	}, nil
}

// conversationEnded reports whether the response carries the server's
// typed "no more history" completion for this chat.
func conversationEnded(evt *events.HistorySync, chatJID string) bool {
	if evt == nil || evt.Data == nil {
		return false
	}
	for _, conv := range evt.Data.GetConversations() {
		if conv.GetID() != chatJID {
			continue
		}
		if conv.GetEndOfHistoryTransfer() {
			return true
		}
		if conv.GetEndOfHistoryTransferType() == waHistorySync.Conversation_COMPLETE_AND_NO_MORE_MESSAGE_REMAIN_ON_PRIMARY {
			return true
		}
	}
	return false
}
