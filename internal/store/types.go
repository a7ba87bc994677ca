package store

import "time"

// Chat kinds.
const (
	ChatKindDM        = "dm"
	ChatKindGroup     = "group"
	ChatKindBroadcast = "broadcast"
	ChatKindUnknown   = "unknown"
)

// Group participant roles.
const (
	RoleMember     = "member"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Chat is one conversation (DM, group, or broadcast list).
type Chat struct {
	JID           string    `json:"jid"`
	Kind          string    `json:"kind"`
	Name          string    `json:"name"`
	LastMessageTS time.Time `json:"last_message_ts"`
}

// Contact is a synced contact plus its local alias and tags.
// Name is the first non-empty of alias, full name, push name, business
// name, first name.
type Contact struct {
	JID       string    `json:"jid"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Alias     string    `json:"alias,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Group mirrors a group's server-side metadata.
type Group struct {
	JID       string    `json:"jid"`
	Name      string    `json:"name"`
	OwnerJID  string    `json:"owner_jid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GroupParticipant is one membership row of a group snapshot.
type GroupParticipant struct {
	GroupJID  string    `json:"group_jid"`
	UserJID   string    `json:"user_jid"`
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is the list/search projection of a stored message.
type Message struct {
	ChatJID     string    `json:"chat_jid"`
	ChatName    string    `json:"chat_name,omitempty"`
	MsgID       string    `json:"msg_id"`
	SenderJID   string    `json:"sender_jid,omitempty"`
	SenderName  string    `json:"sender_name,omitempty"`
	Timestamp   time.Time `json:"ts"`
	FromMe      bool      `json:"from_me"`
	Text        string    `json:"text,omitempty"`
	DisplayText string    `json:"display_text,omitempty"`
	MediaType   string    `json:"media_type,omitempty"`
	Snippet     string    `json:"snippet,omitempty"`
}

// MessageInfo identifies one message for backfill anchoring.
type MessageInfo struct {
	ChatJID    string    `json:"chat_jid"`
	MsgID      string    `json:"msg_id"`
	Timestamp  time.Time `json:"ts"`
	FromMe     bool      `json:"from_me"`
	SenderJID  string    `json:"sender_jid,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
}

// MediaDownloadInfo is the opaque decryption tuple plus local download
// state for one media message. Byte blobs never leave via JSON.
type MediaDownloadInfo struct {
	ChatJID       string    `json:"chat_jid"`
	ChatName      string    `json:"chat_name,omitempty"`
	MsgID         string    `json:"msg_id"`
	Timestamp     time.Time `json:"ts"`
	MediaType     string    `json:"media_type"`
	Filename      string    `json:"filename,omitempty"`
	MimeType      string    `json:"mime_type,omitempty"`
	DirectPath    string    `json:"-"`
	MediaKey      []byte    `json:"-"`
	FileSHA256    []byte    `json:"-"`
	FileEncSHA256 []byte    `json:"-"`
	FileLength    uint64    `json:"file_length,omitempty"`
	LocalPath     string    `json:"local_path,omitempty"`
	DownloadedAt  time.Time `json:"downloaded_at,omitzero"`
}

// UpsertMessageParams carries every field sync can learn about a message.
// Empty strings and empty blobs mean "no value" and never overwrite.
type UpsertMessageParams struct {
	ChatJID       string
	ChatName      string
	MsgID         string
	SenderJID     string
	SenderName    string
	Timestamp     time.Time
	FromMe        bool
	Text          string
	DisplayText   string
	MediaType     string
	MediaCaption  string
	Filename      string
	MimeType      string
	DirectPath    string
	MediaKey      []byte
	FileSHA256    []byte
	FileEncSHA256 []byte
	FileLength    uint64
}
