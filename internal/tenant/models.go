// Package tenant holds the tenant registry: one messaging identity plus one
// collaboration-platform workspace per tenant, with mutable settings.
package tenant

import (
	"strings"

	"relaydesk/pkg/domain"
)

// Tenant is the identity for one workspace. Created by the registry,
// destroyed only on explicit removal.
type Tenant struct {
	ID                  domain.TenantID    `json:"tenantId"`
	WorkspaceID         domain.WorkspaceID `json:"workspaceId"`
	TicketCategoryID    string             `json:"ticketCategoryId"`
	TranscriptChannelID domain.ChannelID   `json:"transcriptChannelId,omitempty"`
	FeedbackChannelID   domain.ChannelID   `json:"feedbackChannelId,omitempty"`
	Settings            Settings           `json:"settings"`
}

// Recognized settings keys. Unrecognized keys are preserved on round-trip
// and ignored by the core.
const (
	SettingWelcomeMessage     = "welcomeMessage"
	SettingIntroMessage       = "introMessage"
	SettingReopenMessage      = "reopenMessage"
	SettingCloseMessage       = "closeMessage"
	SettingFeedbackMessage    = "feedbackMessage"
	SettingSendClosingMessage = "sendClosingMessage"
	SettingTranscriptsEnabled = "transcriptsEnabled"
	SettingFeedbackEnabled    = "feedbackEnabled"
)

// Settings is a tenant's flat key/value configuration document.
type Settings map[string]string

// DefaultSettings returns the configuration applied to newly created tenants.
func DefaultSettings() Settings {
	return Settings{
		SettingWelcomeMessage:     "Hi {name}! An agent will be with you shortly.",
		SettingCloseMessage:       "This conversation has been closed. Message us again to reopen it.",
		SettingSendClosingMessage: "true",
		SettingTranscriptsEnabled: "true",
		SettingFeedbackEnabled:    "false",
	}
}

// Get returns the raw value for a key, empty when absent.
func (s Settings) Get(key string) string {
	return s[key]
}

// Bool interprets a settings value as a boolean, falling back to def when the
// key is absent or unparseable.
func (s Settings) Bool(key string, def bool) bool {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return def
	}
}

// Render returns a key's value with {name} and {phoneNumber} placeholders
// substituted.
func (s Settings) Render(key, name, phoneNumber string) string {
	out := strings.ReplaceAll(s.Get(key), "{name}", name)
	return strings.ReplaceAll(out, "{phoneNumber}", phoneNumber)
}

// Merge overlays updates onto the settings, returning a new document. Keys
// absent from updates keep their current value; an empty update value deletes
// the key.
func (s Settings) Merge(updates Settings) Settings {
	merged := make(Settings, len(s)+len(updates))
	for k, v := range s {
		merged[k] = v
	}
	for k, v := range updates {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	return merged
}

// Clone returns an independent copy of the settings document.
func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
