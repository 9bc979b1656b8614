// Package id generates opaque request identifiers.
//
// Identifiers are UUIDv7 values in lowercase unpadded base32, so they sort
// by creation time in logs and the notification journal.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new time-ordered identifier of 26 characters.
func NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// Decode parses an identifier produced by NewID.
func Decode(value string) (uuid.UUID, error) {
	raw, err := encoding.DecodeString(strings.ToUpper(strings.TrimSpace(value)))
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode id: %w", err)
	}
	parsed, err := uuid.FromBytes(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("decode id: %w", err)
	}
	return parsed, nil
}
