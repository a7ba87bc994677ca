package wa

import (
	"testing"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"
)

func TestExtractText(t *testing.T) {
	if got := ExtractText(nil); got != "" {
		t.Errorf("nil message text = %q", got)
	}

	conv := &waE2E.Message{Conversation: proto.String("hello")}
	if got := ExtractText(conv); got != "hello" {
		t.Errorf("conversation text = %q", got)
	}

	ext := &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("linked")}}
	if got := ExtractText(ext); got != "linked" {
		t.Errorf("extended text = %q", got)
	}

	img := &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("cap")}}
	if got := ExtractText(img); got != "" {
		t.Errorf("caption must not leak into text, got %q", got)
	}
}

func TestExtractMedia_Image(t *testing.T) {
	msg := &waE2E.Message{ImageMessage: &waE2E.ImageMessage{
		Caption:       proto.String("sunset"),
		Mimetype:      proto.String("image/jpeg"),
		DirectPath:    proto.String("/v/t62.7118-24/x"),
		MediaKey:      []byte{1, 2, 3},
		FileSHA256:    []byte{4, 5},
		FileEncSHA256: []byte{6, 7},
		FileLength:    proto.Uint64(1234),
	}}

	m := ExtractMedia(msg)
	if m == nil {
		t.Fatal("ExtractMedia returned nil for image")
	}
	if m.Type != "image" || m.Caption != "sunset" || m.MimeType != "image/jpeg" {
		t.Errorf("media = %+v", m)
	}
	if m.DirectPath == "" || len(m.MediaKey) != 3 || m.FileLength != 1234 {
		t.Errorf("download tuple incomplete: %+v", m)
	}
}

func TestExtractMedia_DocumentFilename(t *testing.T) {
	msg := &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
		FileName: proto.String("report.pdf"),
		Mimetype: proto.String("application/pdf"),
	}}
	m := ExtractMedia(msg)
	if m == nil || m.Type != "document" || m.Filename != "report.pdf" {
		t.Errorf("media = %+v", m)
	}
}

func TestExtractMedia_TextOnly(t *testing.T) {
	if m := ExtractMedia(&waE2E.Message{Conversation: proto.String("hi")}); m != nil {
		t.Errorf("text message should have nil media, got %+v", m)
	}
	if m := ExtractMedia(nil); m != nil {
		t.Errorf("nil message should have nil media, got %+v", m)
	}
}

func TestDisplayText(t *testing.T) {
	cases := []struct {
		text  string
		media *MediaInfo
		want  string
	}{
		{"hello", nil, "hello"},
		{"", nil, ""},
		{"", &MediaInfo{Type: "image", Caption: "cap"}, "cap"},
		{"", &MediaInfo{Type: "image"}, "[image]"},
		{"", &MediaInfo{Type: "document", Filename: "a.pdf"}, "[document] a.pdf"},
		{"text wins", &MediaInfo{Type: "image", Caption: "cap"}, "text wins"},
	}
	for _, c := range cases {
		if got := DisplayText(c.text, c.media); got != c.want {
			t.Errorf("DisplayText(%q, %+v) = %q, want %q", c.text, c.media, got, c.want)
		}
	}
}
