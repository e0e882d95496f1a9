// Package ids provides identifier generation and validation for all
// VoltGrid entities. Public identifiers are ULIDs; internal rows are keyed
// by UUIDs.
package ids

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	ulidRegex = regexp.MustCompile(`(?i)^[0-9A-HJKMNP-TV-Z]{26}$`)

	ErrInvalidULID = errors.New("invalid ULID")
	ErrInvalidUUID = errors.New("invalid UUID")
)

// NewULID generates a new ULID string.
func NewULID() string {
	return ulid.Make().String()
}

// NewUUID generates a random UUID string.
func NewUUID() string {
	return uuid.NewString()
}

// ValidateULID checks that value is a well-formed ULID.
func ValidateULID(value string) error {
	if !ulidRegex.MatchString(strings.TrimSpace(value)) {
		return ErrInvalidULID
	}
	return nil
}

// ValidateUUID checks that value parses as a UUID.
func ValidateUUID(value string) error {
	if _, err := uuid.Parse(strings.TrimSpace(value)); err != nil {
		return ErrInvalidUUID
	}
	return nil
}
