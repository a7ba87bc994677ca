package store

const schema = `
CREATE TABLE IF NOT EXISTS chats (
    jid TEXT PRIMARY KEY,
    kind TEXT NOT NULL DEFAULT 'unknown',
    name TEXT NOT NULL DEFAULT '',
    last_message_ts INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contacts (
    jid TEXT PRIMARY KEY,
    phone TEXT NOT NULL DEFAULT '',
    push_name TEXT NOT NULL DEFAULT '',
    full_name TEXT NOT NULL DEFAULT '',
    first_name TEXT NOT NULL DEFAULT '',
    business_name TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contact_aliases (
    jid TEXT PRIMARY KEY,
    alias TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contact_tags (
    jid TEXT NOT NULL,
    tag TEXT NOT NULL,
    updated_at INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (jid, tag)
);

CREATE TABLE IF NOT EXISTS groups (
    jid TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    owner_jid TEXT NOT NULL DEFAULT '',
    created_ts INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS group_participants (
    group_jid TEXT NOT NULL,
    user_jid TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'member',
    updated_at INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (group_jid, user_jid)
);

CREATE TABLE IF NOT EXISTS messages (
    rowid INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_jid TEXT NOT NULL,
    chat_name TEXT,
    msg_id TEXT NOT NULL,
    sender_jid TEXT,
    sender_name TEXT,
    ts INTEGER NOT NULL DEFAULT 0,
    from_me INTEGER NOT NULL DEFAULT 0,
    text TEXT,
    display_text TEXT,
    media_type TEXT,
    media_caption TEXT,
    filename TEXT,
    mime_type TEXT,
    direct_path TEXT,
    media_key BLOB,
    file_sha256 BLOB,
    file_enc_sha256 BLOB,
    file_length INTEGER,
    local_path TEXT,
    downloaded_at INTEGER,
    UNIQUE (chat_jid, msg_id)
);

CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_jid, ts);
CREATE INDEX IF NOT EXISTS idx_messages_ts ON messages(ts);
CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_jid);
`

const ftsSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    text,
    display_text,
    media_caption,
    filename,
    chat_name,
    sender_name
);
`

// The update trigger re-indexes the whole row because widening upserts may
// touch any indexed column.
const ftsTriggers = `
CREATE TRIGGER IF NOT EXISTS messages_fts_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, text, display_text, media_caption, filename, chat_name, sender_name)
    VALUES (new.rowid, COALESCE(new.text,''), COALESCE(new.display_text,''), COALESCE(new.media_caption,''),
            COALESCE(new.filename,''), COALESCE(new.chat_name,''), COALESCE(new.sender_name,''));
END;

CREATE TRIGGER IF NOT EXISTS messages_fts_ad AFTER DELETE ON messages BEGIN
    DELETE FROM messages_fts WHERE rowid = old.rowid;
END;

CREATE TRIGGER IF NOT EXISTS messages_fts_au AFTER UPDATE ON messages BEGIN
    DELETE FROM messages_fts WHERE rowid = old.rowid;
    INSERT INTO messages_fts(rowid, text, display_text, media_caption, filename, chat_name, sender_name)
    VALUES (new.rowid, COALESCE(new.text,''), COALESCE(new.display_text,''), COALESCE(new.media_caption,''),
            COALESCE(new.filename,''), COALESCE(new.chat_name,''), COALESCE(new.sender_name,''));
END;
`
