package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"

	"wacli/internal/wa"
)

// fakeWA implements the WA capability interface in-process. History
// responses are delivered asynchronously through the registered handlers,
// the same way whatsmeow fires events from its own goroutines.
type fakeWA struct {
	mu       sync.Mutex
	authed   bool
	handlers map[uint32]func(any)
	nextID   uint32

	contacts map[types.JID]types.ContactInfo
	groups   map[types.JID]*types.GroupInfo

	onDemandHistory func(lastKnown *types.MessageInfo, count int) *events.HistorySync
	lastAnchor      *types.MessageInfo
	lastCount       int

	downloadPayload []byte
	downloadErr     error

	addCalls    int
	removeCalls int
}

func newFakeWA() *fakeWA {
	return &fakeWA{
		authed:          true,
		handlers:        make(map[uint32]func(any)),
		contacts:        make(map[types.JID]types.ContactInfo),
		groups:          make(map[types.JID]*types.GroupInfo),
		downloadPayload: []byte{0xde, 0xad, 0xbe, 0xef},
	}
}

func (f *fakeWA) IsAuthed() bool { return f.authed }

func (f *fakeWA) Connect(ctx context.Context, waitForReady bool, onQR func(code string)) error {
	if !f.authed {
		if onQR == nil {
			return wa.ErrNotAuthenticated
		}
		onQR("fake-pairing-code")
		f.authed = true
	}
	return nil
}

func (f *fakeWA) Disconnect() {}

func (f *fakeWA) Logout(ctx context.Context) error {
	f.authed = false
	return nil
}

func (f *fakeWA) AddEventHandler(fn func(evt any)) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.handlers[f.nextID] = fn
	f.addCalls++
	return f.nextID
}

func (f *fakeWA) RemoveEventHandler(id uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, id)
	f.removeCalls++
}

// emit fires an event to every registered handler, like the library does.
func (f *fakeWA) emit(evt any) {
	f.mu.Lock()
	fns := make([]func(any), 0, len(f.handlers))
	for _, fn := range f.handlers {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(evt)
	}
}

func (f *fakeWA) GetAllContacts(ctx context.Context) (map[types.JID]types.ContactInfo, error) {
	return f.contacts, nil
}

func (f *fakeWA) GetJoinedGroups(ctx context.Context) ([]*types.GroupInfo, error) {
	out := make([]*types.GroupInfo, 0, len(f.groups))
	for _, g := range f.groups {
		out = append(out, g)
	}
	return out, nil
}

func (f *fakeWA) GetGroupInfo(ctx context.Context, jid types.JID) (*types.GroupInfo, error) {
	return f.groups[jid], nil
}

func (f *fakeWA) SetGroupName(ctx context.Context, jid types.JID, name string) error { return nil }

func (f *fakeWA) UpdateGroupParticipants(ctx context.Context, jid types.JID, users []types.JID, action wa.GroupParticipantAction) ([]types.GroupParticipant, error) {
	return nil, nil
}

func (f *fakeWA) LeaveGroup(ctx context.Context, jid types.JID) error { return nil }

func (f *fakeWA) GetGroupInviteLink(ctx context.Context, jid types.JID, revoke bool) (string, error) {
	return "https://chat.whatsapp.com/fakecode", nil
}

func (f *fakeWA) JoinGroupWithLink(ctx context.Context, code string) (types.JID, error) {
	return types.EmptyJID, nil
}

func (f *fakeWA) DownloadMediaToFile(ctx context.Context, directPath string, encSHA, fileSHA, mediaKey []byte, fileLength uint64, mediaType, mimeType, targetPath string) (int64, error) {
	if f.downloadErr != nil {
		return 0, f.downloadErr
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0700); err != nil {
		return 0, err
	}
	if err := os.WriteFile(targetPath, f.downloadPayload, 0600); err != nil {
		return 0, err
	}
	return int64(len(f.downloadPayload)), nil
}

func (f *fakeWA) BuildHistorySyncRequest(lastKnown *types.MessageInfo, count int) *waE2E.Message {
	f.mu.Lock()
	f.lastAnchor = lastKnown
	f.lastCount = count
	f.mu.Unlock()
	return &waE2E.Message{}
}

func (f *fakeWA) SendHistorySyncRequest(ctx context.Context, msg *waE2E.Message) error {
	f.mu.Lock()
	anchor, count := f.lastAnchor, f.lastCount
	fn := f.onDemandHistory
	f.mu.Unlock()
	if fn == nil {
		return nil
	}
	go f.emit(fn(anchor, count))
	return nil
}
