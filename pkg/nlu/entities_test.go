package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEntities_Email(t *testing.T) {
	e := ExtractEntities("reach me at jane.doe@example.com please")
	assert.Equal(t, []string{"jane.doe@example.com"}, e.Emails)
}

func TestExtractEntities_DedupesRepeatedMatches(t *testing.T) {
	e := ExtractEntities("email me at x@y.com or just email x@y.com again")
	assert.Equal(t, []string{"x@y.com"}, e.Emails)
}

func TestExtractEntities_NationalIDRequiresValidLuhn(t *testing.T) {
	// 123456789 fails Luhn; should not be reported as a national id.
	e := ExtractEntities("my id is 123-45-6789")
	assert.Empty(t, e.NationalIDs)
}

func TestExtractEntities_PhoneLengthSanityCheck(t *testing.T) {
	e := ExtractEntities("call me at +1 415 555 0132")
	assert.NotEmpty(t, e.Phones)
}
