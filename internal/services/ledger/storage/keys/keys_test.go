package keys

import (
	"bytes"
	"testing"

	"github.com/louisbranch/divination/internal/services/ledger/domain/account"
)

func TestHashedAccountLayout(t *testing.T) {
	id := account.FromIndex(5)
	key := HashedAccount(id)
	if len(key) != HashLen+account.Size {
		t.Fatalf("len = %d, want %d", len(key), HashLen+account.Size)
	}
	if !bytes.Equal(key[HashLen:], id[:]) {
		t.Fatal("expected raw account after digest")
	}
	if bytes.Equal(key[:HashLen], HashedAccount(account.FromIndex(6))[:HashLen]) {
		t.Fatal("expected distinct digests for distinct accounts")
	}
}

func TestRecordKeysShareAccountPrefix(t *testing.T) {
	id := account.FromIndex(1)
	prefix := AccountRecords(id)
	for _, index := range []uint64{0, 1, 255, 256} {
		if !bytes.HasPrefix(AccountRecord(id, index), prefix) {
			t.Fatalf("record %d key does not share account prefix", index)
		}
	}
	if bytes.Compare(AccountRecord(id, 255), AccountRecord(id, 256)) >= 0 {
		t.Fatal("expected record keys ordered by index")
	}
	if bytes.HasPrefix(AccountRecord(account.FromIndex(2), 0), prefix) {
		t.Fatal("expected other account outside prefix")
	}
}

func TestAccountFromRecordCountRoundTrip(t *testing.T) {
	id := account.FromIndex(77)
	got, err := AccountFromRecordCount(AccountRecordCount(id))
	if err != nil {
		t.Fatalf("account from key: %v", err)
	}
	if got != id {
		t.Fatalf("account = %s, want %s", got, id)
	}
	if _, err := AccountFromRecordCount([]byte{0x02, 0x01}); err == nil {
		t.Fatal("expected error for truncated key")
	}
}

func TestEventKeysOrderBySeq(t *testing.T) {
	if bytes.Compare(Event(9), Event(10)) >= 0 {
		t.Fatal("expected event keys ordered by seq")
	}
	seq, err := SeqFromEvent(Event(1 << 40))
	if err != nil || seq != 1<<40 {
		t.Fatalf("seq = %d, err = %v", seq, err)
	}
}

func TestParseUint64(t *testing.T) {
	if v, err := ParseUint64(nil); err != nil || v != 0 {
		t.Fatalf("nil = %d, %v", v, err)
	}
	if v, err := ParseUint64(Uint64(12345)); err != nil || v != 12345 {
		t.Fatalf("value = %d, %v", v, err)
	}
	if _, err := ParseUint64([]byte{1}); err == nil {
		t.Fatal("expected error for short value")
	}
}
