package middleware

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidateMessageContent validates chat message content.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("message cannot be empty")
	}
	if len(content) > 4000 {
		return errors.New("message exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("message must be valid UTF-8")
	}
	return nil
}

// ValidatePortalID validates a portal ID.
func ValidatePortalID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid portal ID format")
	}
	return nil
}

// ValidateSessionID validates a chat session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}

// ValidateDocumentID validates a source document ID.
func ValidateDocumentID(id string) error {
	if id == "" {
		return errors.New("document ID cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("document ID exceeds maximum length")
	}
	return nil
}

// ValidateRating validates a feedback rating.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}
