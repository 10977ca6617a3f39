// Package uuid generates the identifiers used by the offline queue.
//
// Transaction ids are random v4 UUIDs chosen by the device so the remote
// insert can be deduplicated by primary key. Queue entry ids are v7 UUIDs:
// they only need to be unique on this device, and being time-ordered makes
// persisted queues easy to eyeball.
package uuid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var (
	v4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)
	v7Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-7[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)
)

// NewTransactionID generates a v4 UUID for a transaction header.
func NewTransactionID() string {
	return uuid.New().String()
}

// NewActionID generates a time-ordered v7 UUID for a queue entry.
// Falls back to v4 if the v7 generator fails.
func NewActionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// IsTransactionID reports whether s is a canonical v4 UUID.
func IsTransactionID(s string) bool {
	return v4Regex.MatchString(s)
}

// IsActionID reports whether s looks like an id produced by NewActionID.
func IsActionID(s string) bool {
	return v7Regex.MatchString(s) || v4Regex.MatchString(s)
}

// ValidateTransactionID returns an error if s is not a canonical v4 UUID.
func ValidateTransactionID(s string) error {
	if !IsTransactionID(s) {
		return fmt.Errorf("invalid transaction id %q: want UUID v4", s)
	}
	return nil
}
