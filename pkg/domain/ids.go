// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	dErrors "relaydesk/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a ConversationID where a
// ChannelID is expected. All of them are externally-assigned identifiers
// (workspace snowflakes, normalized network addresses), so they are string
// based rather than UUIDs.
type (
	// TenantID is stable per tenant and derived from the workspace ID.
	TenantID string

	// ConversationID is a normalized messaging-network address: digits only,
	// no "+" and no network-suffix decoration. routing.DialAddress restores
	// the dialable form.
	ConversationID string

	// ChannelID identifies a collaboration-platform channel.
	ChannelID string

	// WorkspaceID identifies the collaboration-platform workspace (guild).
	WorkspaceID string
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseTenantID(s string) (TenantID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "tenant ID cannot be empty")
	}
	return TenantID(s), nil
}

func ParseChannelID(s string) (ChannelID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "channel ID cannot be empty")
	}
	return ChannelID(s), nil
}

func ParseWorkspaceID(s string) (WorkspaceID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "workspace ID cannot be empty")
	}
	return WorkspaceID(s), nil
}

// TenantIDForWorkspace derives the stable tenant identifier from a workspace
// ID. Kept trivial on purpose: one workspace is one tenant, and the identity
// must survive restarts and registry rebuilds.
func TenantIDForWorkspace(workspace WorkspaceID) TenantID {
	return TenantID("tenant-" + string(workspace))
}

// String methods - for logging and debugging.

func (id TenantID) String() string       { return string(id) }
func (id ConversationID) String() string { return string(id) }
func (id ChannelID) String() string      { return string(id) }
func (id WorkspaceID) String() string    { return string(id) }

// IsNil checks - used for service-layer validation.

func (id TenantID) IsNil() bool       { return id == "" }
func (id ConversationID) IsNil() bool { return id == "" }
func (id ChannelID) IsNil() bool      { return id == "" }
func (id WorkspaceID) IsNil() bool    { return id == "" }
