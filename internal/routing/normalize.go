package routing

import (
	"strings"

	"relaydesk/pkg/domain"
	dErrors "relaydesk/pkg/domain-errors"
)

// Normalize canonicalizes a messaging-network address into a ConversationID.
// Network-suffix decoration ("15551234567@s.whatsapp.net", device suffixes
// like ":12") is stripped, as is all formatting punctuation including an
// international "+" prefix; the canonical key is digits only. "15551234567"
// and "+1 (555) 123-4567" therefore normalize to the same key, which is what
// keeps routing idempotent across decorations of the same number.
func Normalize(raw string) (domain.ConversationID, error) {
	addr := strings.TrimSpace(raw)

	// Everything after '@' is network decoration, everything after ':' is a
	// device qualifier. Neither is part of the conversation identity.
	if i := strings.IndexByte(addr, '@'); i >= 0 {
		addr = addr[:i]
	}
	if i := strings.IndexByte(addr, ':'); i >= 0 {
		addr = addr[:i]
	}

	var b strings.Builder
	for _, r := range addr {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "conversation address has no digits")
	}
	return domain.ConversationID(b.String()), nil
}

// DialAddress renders a ConversationID back into the form the messaging
// network dials: "+" followed by the digits.
func DialAddress(id domain.ConversationID) string {
	return "+" + string(id)
}
