// Package account defines the opaque caller identity recorded by the ledger.
//
// Identities are 32-byte values rendered as base58 text. The ledger only
// compares and orders them; authenticating the holder is a host concern.
package account

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Size is the byte length of an account identity.
const Size = 32

var (
	// ErrEmpty indicates a missing account identity.
	ErrEmpty = errors.New("account id is required")
	// ErrInvalid indicates account text that does not decode to a 32-byte identity.
	ErrInvalid = errors.New("account id is invalid")
)

// ID identifies an account.
type ID [Size]byte

// Parse decodes the base58 text form of an account identity.
func Parse(value string) (ID, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return ID{}, ErrEmpty
	}
	raw, err := base58.Decode(value)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if len(raw) != Size {
		return ID{}, fmt.Errorf("%w: decoded %d bytes, want %d", ErrInvalid, len(raw), Size)
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// MustParse is Parse for fixed identities in tests and seeds.
func MustParse(value string) ID {
	id, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return id
}

// FromBytes copies a raw 32-byte identity.
func FromBytes(raw []byte) (ID, error) {
	if len(raw) != Size {
		return ID{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalid, len(raw), Size)
	}
	var id ID
	copy(id[:], raw)
	return id, nil
}

// FromIndex returns a deterministic identity with index stored big-endian
// in the trailing eight bytes.
func FromIndex(index uint64) ID {
	var id ID
	binary.BigEndian.PutUint64(id[Size-8:], index)
	return id
}

// String returns the base58 text form.
func (id ID) String() string {
	return base58.Encode(id[:])
}

// Bytes returns a copy of the raw identity.
func (id ID) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id[:])
	return out
}

// IsZero reports whether id is the zero identity.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Compare orders identities by their raw bytes.
func (id ID) Compare(other ID) int {
	return bytes.Compare(id[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
