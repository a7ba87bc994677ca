// Package app orchestrates the store, the protocol client, and the
// background media worker behind the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"

	"wacli/internal/store"
	"wacli/internal/wa"
)

// ErrNotAuthenticated is returned by operations that need a paired session.
var ErrNotAuthenticated = wa.ErrNotAuthenticated

// WA is the capability surface the app needs from the protocol client.
// *wa.Client implements it; tests substitute a fake.
type WA interface {
	IsAuthed() bool
	Connect(ctx context.Context, waitForReady bool, onQR func(code string)) error
	Disconnect()
	Logout(ctx context.Context) error
	AddEventHandler(fn func(evt any)) uint32
	RemoveEventHandler(id uint32)

	GetAllContacts(ctx context.Context) (map[types.JID]types.ContactInfo, error)
	GetJoinedGroups(ctx context.Context) ([]*types.GroupInfo, error)
	GetGroupInfo(ctx context.Context, jid types.JID) (*types.GroupInfo, error)
	SetGroupName(ctx context.Context, jid types.JID, name string) error
	UpdateGroupParticipants(ctx context.Context, jid types.JID, users []types.JID, action wa.GroupParticipantAction) ([]types.GroupParticipant, error)
	LeaveGroup(ctx context.Context, jid types.JID) error
	GetGroupInviteLink(ctx context.Context, jid types.JID, revoke bool) (string, error)
	JoinGroupWithLink(ctx context.Context, code string) (types.JID, error)

	DownloadMediaToFile(ctx context.Context, directPath string, encSHA, fileSHA, mediaKey []byte, fileLength uint64, mediaType, mimeType, targetPath string) (int64, error)
	BuildHistorySyncRequest(lastKnown *types.MessageInfo, count int) *waE2E.Message
	SendHistorySyncRequest(ctx context.Context, msg *waE2E.Message) error
}

// SessionState tracks the protocol session lifecycle.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateConnecting    SessionState = "connecting"
	StateAuthenticated SessionState = "authenticated"
	StateConnected     SessionState = "connected"
	StateDisconnected  SessionState = "disconnected"
	StateLoggedOut     SessionState = "logged_out"
)

// Options configures New.
type Options struct {
	StoreDir string
	Logger   *slog.Logger

	// MediaQueueSize bounds the background download queue. Overflow drops
	// jobs (the messages themselves are already stored). Default 64.
	MediaQueueSize int
}

// App owns the store, an optional protocol client, and the media worker.
//
// mu guards bookkeeping only (session state, sync options, pending backfill
// futures). It is never held across a protocol client call or a store
// write: event handlers run on library goroutines and both sides going
// through mu would deadlock on reconnect.
type App struct {
	storeDir string
	log      *slog.Logger
	db       *store.DB
	wa       WA

	mu       sync.Mutex
	state    SessionState
	syncOpts SyncOptions
	backfill map[string]chan *events.HistorySync

	mediaJobs      chan mediaJob
	mediaPending   atomic.Int64
	mediaDropped   atomic.Int64
	messagesStored atomic.Int64
	lastEvent      atomic.Int64 // unix nanos of the last inbound event

	workerCtx    context.Context
	workerCancel context.CancelFunc
	workerDone   chan struct{}
}

// New opens the store database under opts.StoreDir and starts the media
// worker. The protocol client is opened separately (OpenWA) because
// read-only commands never need it.
func New(opts Options) (*App, error) {
	if opts.StoreDir == "" {
		return nil, fmt.Errorf("store dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := opts.MediaQueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	if err := os.MkdirAll(opts.StoreDir, 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := store.Open(filepath.Join(opts.StoreDir, "wacli.db"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		storeDir:     opts.StoreDir,
		log:          logger.With("component", "app"),
		db:           db,
		state:        StateIdle,
		backfill:     make(map[string]chan *events.HistorySync),
		mediaJobs:    make(chan mediaJob, queueSize),
		workerCtx:    ctx,
		workerCancel: cancel,
		workerDone:   make(chan struct{}),
	}
	go a.runMediaWorker()
	return a, nil
}

// Close stops the media worker (finishing the in-flight job) and closes
// the store. Safe to call once per App.
func (a *App) Close() error {
	a.workerCancel()
	<-a.workerDone
	if a.wa != nil {
		a.wa.Disconnect()
	}
	return a.db.Close()
}

// DB exposes the store to commands.
func (a *App) DB() *store.DB { return a.db }

// WA exposes the protocol client, or nil before OpenWA.
func (a *App) WA() WA { return a.wa }

// SetWA injects a protocol client (tests use a fake).
func (a *App) SetWA(client WA) { a.wa = client }

// OpenWA opens the whatsmeow session under the store dir. Idempotent.
func (a *App) OpenWA(ctx context.Context) error {
	if a.wa != nil {
		return nil
	}
	client, err := wa.Open(ctx, a.storeDir, a.log)
	if err != nil {
		return err
	}
	a.wa = client
	if client.IsAuthed() {
		a.setState(StateAuthenticated)
	}
	return nil
}

// EnsureAuthed fails unless the session is paired.
func (a *App) EnsureAuthed() error {
	if a.wa == nil || !a.wa.IsAuthed() {
		return ErrNotAuthenticated
	}
	return nil
}

// Connect brings the socket up. onQR enables the pairing flow; passing nil
// refuses QR display (the sync path always does).
func (a *App) Connect(ctx context.Context, waitForReady bool, onQR func(code string)) error {
	if a.wa == nil {
		return fmt.Errorf("protocol client not open")
	}
	a.setState(StateConnecting)
	if err := a.wa.Connect(ctx, waitForReady, onQR); err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			a.setState(StateIdle)
		} else {
			a.setState(StateDisconnected)
		}
		return err
	}
	a.setState(StateConnected)
	return nil
}

// State returns the current session state.
func (a *App) State() SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *App) setState(s SessionState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// MediaDropped reports how many media jobs were dropped on queue overflow.
func (a *App) MediaDropped() int64 { return a.mediaDropped.Load() }

func (a *App) touch() {
	a.lastEvent.Store(time.Now().UnixNano())
}

func (a *App) idleFor() time.Duration {
	return time.Since(time.Unix(0, a.lastEvent.Load()))
}
