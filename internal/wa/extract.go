package wa

import (
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
)

// MediaInfo is the downloadable-media metadata carried by a message.
type MediaInfo struct {
	Type          string
	Caption       string
	Filename      string
	MimeType      string
	DirectPath    string
	MediaKey      []byte
	FileSHA256    []byte
	FileEncSHA256 []byte
	FileLength    uint64
}

// ExtractText returns the plain text body of a message (conversation or
// extended text). Media captions are reported separately by ExtractMedia.
func ExtractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

// ExtractMedia returns the media metadata of a message, or nil for
// text-only messages.
func ExtractMedia(msg *waE2E.Message) *MediaInfo {
	if msg == nil {
		return nil
	}
	switch {
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		return &MediaInfo{
			Type:          "image",
			Caption:       m.GetCaption(),
			MimeType:      m.GetMimetype(),
			DirectPath:    m.GetDirectPath(),
			MediaKey:      m.GetMediaKey(),
			FileSHA256:    m.GetFileSHA256(),
			FileEncSHA256: m.GetFileEncSHA256(),
			FileLength:    m.GetFileLength(),
		}
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		return &MediaInfo{
			Type:          "video",
			Caption:       m.GetCaption(),
			MimeType:      m.GetMimetype(),
			DirectPath:    m.GetDirectPath(),
			MediaKey:      m.GetMediaKey(),
			FileSHA256:    m.GetFileSHA256(),
			FileEncSHA256: m.GetFileEncSHA256(),
			FileLength:    m.GetFileLength(),
		}
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		return &MediaInfo{
			Type:          "audio",
			MimeType:      m.GetMimetype(),
			DirectPath:    m.GetDirectPath(),
			MediaKey:      m.GetMediaKey(),
			FileSHA256:    m.GetFileSHA256(),
			FileEncSHA256: m.GetFileEncSHA256(),
			FileLength:    m.GetFileLength(),
		}
	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		return &MediaInfo{
			Type:          "document",
			Caption:       m.GetCaption(),
			Filename:      m.GetFileName(),
			MimeType:      m.GetMimetype(),
			DirectPath:    m.GetDirectPath(),
			MediaKey:      m.GetMediaKey(),
			FileSHA256:    m.GetFileSHA256(),
			FileEncSHA256: m.GetFileEncSHA256(),
			FileLength:    m.GetFileLength(),
		}
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		return &MediaInfo{
			Type:          "sticker",
			MimeType:      m.GetMimetype(),
			DirectPath:    m.GetDirectPath(),
			MediaKey:      m.GetMediaKey(),
			FileSHA256:    m.GetFileSHA256(),
			FileEncSHA256: m.GetFileEncSHA256(),
			FileLength:    m.GetFileLength(),
		}
	default:
		return nil
	}
}

// DisplayText normalizes a message into one line for lists: the text, else
// the caption, else a media tag with the filename.
func DisplayText(text string, media *MediaInfo) string {
	if text != "" {
		return text
	}
	if media == nil {
		return ""
	}
	if media.Caption != "" {
		return media.Caption
	}
	tag := "[" + media.Type + "]"
	if media.Filename != "" {
		tag += " " + media.Filename
	}
	return tag
}
