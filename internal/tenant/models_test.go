package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettingsBool(t *testing.T) {
	s := Settings{
		"a": "true",
		"b": "1",
		"c": "YES",
		"d": "false",
		"e": "off",
		"f": "maybe",
	}

	assert.True(t, s.Bool("a", false))
	assert.True(t, s.Bool("b", false))
	assert.True(t, s.Bool("c", false))
	assert.False(t, s.Bool("d", true))
	assert.False(t, s.Bool("e", true))
	assert.True(t, s.Bool("f", true), "unparseable falls back to default")
	assert.False(t, s.Bool("missing", false))
	assert.True(t, s.Bool("missing", true))
}

func TestSettingsRender(t *testing.T) {
	s := Settings{SettingWelcomeMessage: "Hi {name}, we have {phoneNumber} on file"}

	got := s.Render(SettingWelcomeMessage, "Ada", "+15551234567")
	assert.Equal(t, "Hi Ada, we have +15551234567 on file", got)
	assert.Empty(t, s.Render("missing", "Ada", "+15551234567"))
}

func TestSettingsMerge(t *testing.T) {
	base := Settings{
		SettingWelcomeMessage: "old welcome",
		SettingCloseMessage:   "old close",
		"x-custom-key":        "kept",
	}

	merged := base.Merge(Settings{
		SettingWelcomeMessage:  "new welcome",
		SettingCloseMessage:    "", // empty deletes
		SettingFeedbackEnabled: "true",
	})

	assert.Equal(t, "new welcome", merged.Get(SettingWelcomeMessage))
	assert.NotContains(t, merged, SettingCloseMessage)
	assert.Equal(t, "true", merged.Get(SettingFeedbackEnabled))
	assert.Equal(t, "kept", merged.Get("x-custom-key"), "unrecognized keys survive merges")

	// The original document is untouched.
	assert.Equal(t, "old welcome", base.Get(SettingWelcomeMessage))
}

func TestSettingsClone(t *testing.T) {
	base := Settings{SettingWelcomeMessage: "hello"}
	clone := base.Clone()
	clone[SettingWelcomeMessage] = "changed"

	assert.Equal(t, "hello", base.Get(SettingWelcomeMessage))
}
