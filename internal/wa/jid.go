package wa

import (
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// ChatKind classifies a JID string into the store's chat kinds.
func ChatKind(jid string) string {
	switch {
	case strings.HasSuffix(jid, "@"+types.GroupServer):
		return "group"
	case strings.HasSuffix(jid, "@"+types.BroadcastServer):
		return "broadcast"
	case strings.HasSuffix(jid, "@"+types.DefaultUserServer),
		strings.HasSuffix(jid, "@"+types.HiddenUserServer):
		return "dm"
	default:
		return "unknown"
	}
}

// ParseUserOrJID accepts either a full JID or a bare phone number
// (optionally with +, spaces, or dashes) and returns the user JID.
func ParseUserOrJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.EmptyJID, fmt.Errorf("user is required")
	}
	if strings.Contains(s, "@") {
		jid, err := types.ParseJID(s)
		if err != nil {
			return types.EmptyJID, fmt.Errorf("parse JID %q: %w", s, err)
		}
		return jid, nil
	}

	digits := strings.NewReplacer("+", "", " ", "", "-", "").Replace(s)
	for _, r := range digits {
		if r < '0' || r > '9' {
			return types.EmptyJID, fmt.Errorf("not a phone number or JID: %q", s)
		}
	}
	if digits == "" {
		return types.EmptyJID, fmt.Errorf("user is required")
	}
	return types.NewJID(digits, types.DefaultUserServer), nil
}

// PhoneFromJID returns the digits before the @, or an empty string for
// non-user servers (groups, broadcast lists).
func PhoneFromJID(jid string) string {
	if !strings.HasSuffix(jid, "@"+types.DefaultUserServer) {
		return ""
	}
	at := strings.Index(jid, "@")
	if at <= 0 {
		return ""
	}
	return jid[:at]
}
