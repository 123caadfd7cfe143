package middleware

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("tell me about experience"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent("   \n\t "))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", 4001)))
	assert.NoError(t, ValidateMessageContent(strings.Repeat("a", 4000)))
	assert.Error(t, ValidateMessageContent(string([]byte{0xff, 0xfe})))
}

func TestValidatePortalID(t *testing.T) {
	assert.NoError(t, ValidatePortalID("018f3c6e-1111-7000-8000-000000000000"))
	assert.Error(t, ValidatePortalID("not-a-uuid"))
	assert.Error(t, ValidatePortalID(""))
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("018f3c6e-2222-7000-8000-000000000000"))
	assert.Error(t, ValidateSessionID("nope"))
}

func TestValidateDocumentID(t *testing.T) {
	assert.NoError(t, ValidateDocumentID("doc-1"))
	assert.Error(t, ValidateDocumentID(""))
	assert.Error(t, ValidateDocumentID(strings.Repeat("x", 129)))
}

func TestValidateRating(t *testing.T) {
	for rating := 1; rating <= 5; rating++ {
		assert.NoError(t, ValidateRating(rating))
	}
	assert.Error(t, ValidateRating(0))
	assert.Error(t, ValidateRating(6))
	assert.Error(t, ValidateRating(-1))
}
