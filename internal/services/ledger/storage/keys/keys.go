// Package keys builds the byte keys of the key-value ledger layout.
//
// Account-scoped keys use a hashed-then-concatenated form: a 16-byte
// BLAKE2b digest of the account followed by the raw account. Iteration over
// a prefix is therefore uniformly distributed yet the account is still
// recoverable from the key.
package keys

import (
	"encoding/binary"
	"fmt"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
	"golang.org/x/crypto/blake2b"
)

// Store prefixes.
var (
	// GlobalCountKey holds the big-endian uint64 question counter.
	GlobalCountKey = []byte{0x01}

	// AccountRecordCountPrefix prefixes per-account record counts.
	// Key: prefix | blake2b128(account) | account -> Value: uint64.
	AccountRecordCountPrefix = []byte{0x02}

	// AccountRecordPrefix prefixes per-account question records.
	// Key: prefix | blake2b128(account) | account | be64(index) -> Value: question bytes.
	AccountRecordPrefix = []byte{0x03}

	// EventPrefix prefixes journal events.
	// Key: prefix | be64(seq) -> Value: encoded event.
	EventPrefix = []byte{0x04}

	// LastEventSeqKey holds the big-endian sequence of the newest event.
	LastEventSeqKey = []byte{0x05}
)

// HashLen is the digest length used by the hashed-concat account form.
const HashLen = 16

// HashedAccount returns blake2b128(id) | id.
func HashedAccount(id account.ID) []byte {
	hasher, err := blake2b.New(HashLen, nil)
	if err != nil {
		panic(fmt.Sprintf("blake2b-128: %v", err))
	}
	hasher.Write(id[:])
	out := make([]byte, 0, HashLen+account.Size)
	out = hasher.Sum(out)
	return append(out, id[:]...)
}

// AccountRecordCount returns the record-count key for id.
func AccountRecordCount(id account.ID) []byte {
	return concat(AccountRecordCountPrefix, HashedAccount(id))
}

// AccountRecords returns the prefix covering all of id's records.
func AccountRecords(id account.ID) []byte {
	return concat(AccountRecordPrefix, HashedAccount(id))
}

// AccountRecord returns the key of id's record at index.
func AccountRecord(id account.ID, index uint64) []byte {
	return concat(AccountRecords(id), Uint64(index))
}

// Event returns the journal key for seq.
func Event(seq uint64) []byte {
	return concat(EventPrefix, Uint64(seq))
}

// AccountFromRecordCount recovers the account from a record-count key.
func AccountFromRecordCount(key []byte) (account.ID, error) {
	want := len(AccountRecordCountPrefix) + HashLen + account.Size
	if len(key) != want {
		return account.ID{}, fmt.Errorf("record count key has %d bytes, want %d", len(key), want)
	}
	return account.FromBytes(key[len(AccountRecordCountPrefix)+HashLen:])
}

// SeqFromEvent recovers the sequence from a journal key.
func SeqFromEvent(key []byte) (uint64, error) {
	if len(key) != len(EventPrefix)+8 {
		return 0, fmt.Errorf("event key has %d bytes, want %d", len(key), len(EventPrefix)+8)
	}
	return binary.BigEndian.Uint64(key[len(EventPrefix):]), nil
}

// Uint64 encodes value big-endian so byte order matches numeric order.
func Uint64(value uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, value)
	return out
}

// ParseUint64 decodes a big-endian value; nil decodes to zero.
func ParseUint64(value []byte) (uint64, error) {
	if value == nil {
		return 0, nil
	}
	if len(value) != 8 {
		return 0, fmt.Errorf("uint64 value has %d bytes, want 8", len(value))
	}
	return binary.BigEndian.Uint64(value), nil
}

func concat(parts ...[]byte) []byte {
	size := 0
	for _, part := range parts {
		size += len(part)
	}
	out := make([]byte, 0, size)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out
}
