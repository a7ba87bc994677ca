// Package wa adapts the whatsmeow client to the capabilities the app layer
// needs: session management, the event stream, group RPCs, media fetch, and
// on-demand history sync requests.
package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	waStore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
)

// ErrNotAuthenticated means the session has never been paired (or was
// logged out) and the caller refused the QR flow.
var ErrNotAuthenticated = errors.New("not authenticated (run `wacli auth` to pair)")

// GroupParticipantAction selects what UpdateGroupParticipants does.
type GroupParticipantAction string

const (
	ParticipantAdd     GroupParticipantAction = "add"
	ParticipantRemove  GroupParticipantAction = "remove"
	ParticipantPromote GroupParticipantAction = "promote"
	ParticipantDemote  GroupParticipantAction = "demote"
)

// Client wraps a whatsmeow client bound to the session store under the
// wacli store directory.
//
// The mutex guards only handler bookkeeping. It is never held across a call
// into whatsmeow: the library invokes event handlers from its own
// goroutines and may re-enter during registration, so calling it under mu
// can deadlock on reconnect. A static test enforces this.
type Client struct {
	cli *whatsmeow.Client
	log *slog.Logger

	mu       sync.Mutex
	nextID   uint32
	handlers map[uint32]uint32
}

// Open initializes the session container at <storeDir>/session.db and
// builds a client for its first (only) device. No network I/O happens here.
func Open(ctx context.Context, storeDir string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(storeDir, 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dbPath := filepath.Join(storeDir, "session.db")
	container, err := sqlstore.New(ctx, "sqlite3",
		"file:"+dbPath+"?_foreign_keys=on&_busy_timeout=5000", waLog.Noop)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	waStore.SetOSInfo("wacli", [3]uint32{1, 0, 0})

	cli := whatsmeow.NewClient(device, waLog.Noop)
	// The library handles transient drops itself; sync loops rely on it.
	cli.EnableAutoReconnect = true
	cli.InitialAutoReconnect = true

	return &Client{
		cli:      cli,
		log:      logger.With("component", "wa"),
		handlers: make(map[uint32]uint32),
	}, nil
}

// IsAuthed reports whether the session is paired with a phone.
func (c *Client) IsAuthed() bool {
	return c.cli.Store.ID != nil
}

// Connect establishes the socket. An unpaired session needs onQR: each
// fresh pairing code is delivered through it until the phone scans one.
// With waitForReady the call blocks until the socket is fully up or the
// context expires.
func (c *Client) Connect(ctx context.Context, waitForReady bool, onQR func(code string)) error {
	if c.cli.IsConnected() {
		return nil
	}

	if !c.IsAuthed() {
		if onQR == nil {
			return ErrNotAuthenticated
		}
		return c.pair(ctx, onQR)
	}

	if err := c.cli.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if waitForReady {
		timeout := 15 * time.Second
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < timeout {
				timeout = rem
			}
		}
		if !c.cli.WaitForConnection(timeout) {
			return fmt.Errorf("connect: socket not ready after %s", timeout)
		}
	}
	return nil
}

// pair runs the QR login flow until success, timeout, or cancellation.
func (c *Client) pair(ctx context.Context, onQR func(code string)) error {
	qrChan, err := c.cli.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	if err := c.cli.Connect(); err != nil {
		return fmt.Errorf("connect for pairing: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return fmt.Errorf("pairing channel closed")
			}
			switch evt.Event {
			case "code":
				c.log.Info("pairing code ready, scan with the phone")
				onQR(evt.Code)
			case "success":
				c.log.Info("paired", "jid", c.cli.Store.ID.String())
				return nil
			case "timeout":
				return fmt.Errorf("pairing timed out before the code was scanned")
			default:
				if evt.Error != nil {
					return fmt.Errorf("pairing failed: %w", evt.Error)
				}
			}
		}
	}
}

// Disconnect tears down the socket. The session stays paired.
func (c *Client) Disconnect() {
	c.cli.Disconnect()
}

// IsConnected reports whether the socket is currently up.
func (c *Client) IsConnected() bool {
	return c.cli.IsConnected()
}

// Logout unpairs the session and deletes the device registration. A fresh
// QR pairing is required afterwards.
func (c *Client) Logout(ctx context.Context) error {
	if !c.IsAuthed() {
		return nil
	}
	if err := c.cli.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// AddEventHandler registers fn on the library's event stream and returns a
// handle for RemoveEventHandler. The registration call into whatsmeow
// happens outside mu.
func (c *Client) AddEventHandler(fn func(evt any)) uint32 {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	waID := c.cli.AddEventHandler(func(evt any) { fn(evt) })

	c.mu.Lock()
	c.handlers[id] = waID
	c.mu.Unlock()
	return id
}

// RemoveEventHandler deregisters a handler. Unknown ids are a no-op.
// The removal call into whatsmeow happens outside mu.
func (c *Client) RemoveEventHandler(id uint32) {
	c.mu.Lock()
	waID, ok := c.handlers[id]
	delete(c.handlers, id)
	c.mu.Unlock()

	if ok {
		c.cli.RemoveEventHandler(waID)
	}
}

// GetAllContacts returns the session store's contact list.
func (c *Client) GetAllContacts(ctx context.Context) (map[types.JID]types.ContactInfo, error) {
	contacts, err := c.cli.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("get contacts: %w", err)
	}
	return contacts, nil
}

// GetJoinedGroups fetches the live list of joined groups.
func (c *Client) GetJoinedGroups(ctx context.Context) ([]*types.GroupInfo, error) {
	groups, err := c.cli.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("get joined groups: %w", err)
	}
	return groups, nil
}

// GetGroupInfo fetches live metadata and the participant snapshot for one group.
func (c *Client) GetGroupInfo(ctx context.Context, jid types.JID) (*types.GroupInfo, error) {
	info, err := c.cli.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get group info %s: %w", jid, err)
	}
	return info, nil
}

// SetGroupName renames a group.
func (c *Client) SetGroupName(ctx context.Context, jid types.JID, name string) error {
	if err := c.cli.SetGroupName(ctx, jid, name); err != nil {
		return fmt.Errorf("set group name %s: %w", jid, err)
	}
	return nil
}

// UpdateGroupParticipants adds, removes, promotes, or demotes users.
func (c *Client) UpdateGroupParticipants(ctx context.Context, jid types.JID, users []types.JID, action GroupParticipantAction) ([]types.GroupParticipant, error) {
	var change whatsmeow.ParticipantChange
	switch action {
	case ParticipantAdd:
		change = whatsmeow.ParticipantChangeAdd
	case ParticipantRemove:
		change = whatsmeow.ParticipantChangeRemove
	case ParticipantPromote:
		change = whatsmeow.ParticipantChangePromote
	case ParticipantDemote:
		change = whatsmeow.ParticipantChangeDemote
	default:
		return nil, fmt.Errorf("unknown participant action %q", action)
	}

	updated, err := c.cli.UpdateGroupParticipants(ctx, jid, users, change)
	if err != nil {
		return nil, fmt.Errorf("%s participants in %s: %w", action, jid, err)
	}
	return updated, nil
}

// LeaveGroup leaves a group.
func (c *Client) LeaveGroup(ctx context.Context, jid types.JID) error {
	if err := c.cli.LeaveGroup(ctx, jid); err != nil {
		return fmt.Errorf("leave group %s: %w", jid, err)
	}
	return nil
}

// GetGroupInviteLink returns the group's invite link, optionally revoking
// the old one first.
func (c *Client) GetGroupInviteLink(ctx context.Context, jid types.JID, revoke bool) (string, error) {
	link, err := c.cli.GetGroupInviteLink(ctx, jid, revoke)
	if err != nil {
		return "", fmt.Errorf("invite link for %s: %w", jid, err)
	}
	return link, nil
}

// JoinGroupWithLink joins a group via an invite code.
func (c *Client) JoinGroupWithLink(ctx context.Context, code string) (types.JID, error) {
	jid, err := c.cli.JoinGroupWithLink(ctx, code)
	if err != nil {
		return types.EmptyJID, fmt.Errorf("join group: %w", err)
	}
	return jid, nil
}

// DownloadMediaToFile fetches and decrypts a media blob into targetPath.
// The blob is fully downloaded before the file appears: a temp file in the
// same directory is renamed over the target, so failures leave nothing
// behind.
func (c *Client) DownloadMediaToFile(ctx context.Context, directPath string, encSHA, fileSHA, mediaKey []byte, fileLength uint64, mediaType, mimeType, targetPath string) (int64, error) {
	mt, err := mediaTypeFor(mediaType)
	if err != nil {
		return 0, err
	}

	data, err := c.cli.DownloadMediaWithPath(ctx, directPath, encSHA, fileSHA, mediaKey, int(fileLength), mt, "")
	if err != nil {
		return 0, fmt.Errorf("download media: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0700); err != nil {
		return 0, fmt.Errorf("create media dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(targetPath), ".wacli-dl-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("close media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), targetPath); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("move media into place: %w", err)
	}
	return int64(len(data)), nil
}

func mediaTypeFor(mediaType string) (whatsmeow.MediaType, error) {
	switch mediaType {
	case "image":
		return whatsmeow.MediaImage, nil
	case "sticker":
		// Stickers ride the image media path.
		return whatsmeow.MediaImage, nil
	case "video":
		return whatsmeow.MediaVideo, nil
	case "audio":
		return whatsmeow.MediaAudio, nil
	case "document":
		return whatsmeow.MediaDocument, nil
	default:
		return "", fmt.Errorf("unsupported media type %q", mediaType)
	}
}

// BuildHistorySyncRequest builds the on-demand backfill request asking for
// count messages older than lastKnown.
func (c *Client) BuildHistorySyncRequest(lastKnown *types.MessageInfo, count int) *waE2E.Message {
	return c.cli.BuildHistorySyncRequest(lastKnown, count)
}

// SendHistorySyncRequest delivers a backfill request to the primary device.
// The response arrives later as a HistorySync event; there is no inline
// correlation, the app matches responses by conversation.
func (c *Client) SendHistorySyncRequest(ctx context.Context, msg *waE2E.Message) error {
	if _, err := c.cli.SendPeerMessage(ctx, msg); err != nil {
		return fmt.Errorf("send history sync request: %w", err)
	}
	return nil
}
