package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestService_MaskRedactsEmail(t *testing.T) {
	s := NewService()
	assert.Equal(t, "contact [REDACTED_EMAIL] for details", s.Mask("contact jane@example.com for details"))
}

func TestService_MaskRedactsPhone(t *testing.T) {
	s := NewService()
	masked := s.Mask("call +1 415 555 0132 now")
	assert.NotContains(t, masked, "0132")
}

func TestService_MaskEmptyStringIsNoop(t *testing.T) {
	s := NewService()
	assert.Equal(t, "", s.Mask(""))
}

func TestService_MaskFieldsAppliesToEveryValue(t *testing.T) {
	s := NewService()
	out := s.MaskFields(map[string]string{"email": "a@b.com", "note": "no pii here"})
	assert.Equal(t, "[REDACTED_EMAIL]", out["email"])
	assert.Equal(t, "no pii here", out["note"])
}
