package routing

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"relaydesk/pkg/domain"
)

// NormalizeSuite tests conversation address canonicalization.
//
// Justification: every routing decision keys on the normalized address; two
// decorations of the same number mapping to different keys would duplicate
// channels.
type NormalizeSuite struct {
	suite.Suite
}

func TestNormalizeSuite(t *testing.T) {
	suite.Run(t, new(NormalizeSuite))
}

func (s *NormalizeSuite) TestDecorationsCollapseToOneKey() {
	inputs := []string{
		"15551234567",
		"+1 (555) 123-4567",
		"15551234567@s.whatsapp.net",
		"15551234567@c.us",
		"15551234567:12@s.whatsapp.net",
		"  1-555-123-4567  ",
	}
	for _, in := range inputs {
		s.Run(in, func() {
			got, err := Normalize(in)
			s.NoError(err)
			s.Equal(domain.ConversationID("15551234567"), got)
		})
	}
}

func (s *NormalizeSuite) TestNormalizationIsIdempotent() {
	once, err := Normalize("+49 160 9876543@s.whatsapp.net")
	s.NoError(err)
	twice, err := Normalize(once.String())
	s.NoError(err)
	s.Equal(once, twice)
}

func (s *NormalizeSuite) TestRejectsAddressWithoutDigits() {
	for _, in := range []string{"", "   ", "@s.whatsapp.net", "status"} {
		s.Run("input "+in, func() {
			_, err := Normalize(in)
			s.Error(err)
		})
	}
}

func (s *NormalizeSuite) TestDialAddress() {
	s.Equal("+15551234567", DialAddress("15551234567"))
}
