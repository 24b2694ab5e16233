package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, saltSize)
	k1 := DeriveKey("correct horse", salt)
	k2 := DeriveKey("correct horse", salt)
	if !bytes.Equal(k1, k2) {
		t.Error("same passphrase and salt produced different keys")
	}
	if len(k1) != keySize {
		t.Errorf("key length = %d, want %d", len(k1), keySize)
	}
	if bytes.Equal(k1, DeriveKey("battery staple", salt)) {
		t.Error("different passphrases produced the same key")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	plaintext := []byte("SQLite format 3\x00 pretend database pages")

	sealed, err := Seal(plaintext, "secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("sealed data contains plaintext")
	}
	again, _ := Seal(plaintext, "secret")
	if bytes.Equal(sealed, again) {
		t.Error("two seals produced identical output")
	}

	got, err := Open(sealed, "secret")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("got %q, want %q", got, plaintext)
	}
}

func TestOpenWrongPassphrase(t *testing.T) {
	sealed, _ := Seal([]byte("data"), "secret")
	if _, err := Open(sealed, "guess"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
}

func TestOpenTampered(t *testing.T) {
	sealed, _ := Seal([]byte("data"), "secret")
	sealed[len(sealed)-1] ^= 0xff
	if _, err := Open(sealed, "secret"); err == nil {
		t.Error("expected error for tampered data")
	}
}

func TestSealEmpty(t *testing.T) {
	sealed, err := Seal(nil, "secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := Open(sealed, "secret")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d bytes, want 0", len(got))
	}
}

func TestOpenTooShort(t *testing.T) {
	if _, err := Open(make([]byte, saltSize+nonceSize-1), "secret"); !errors.Is(err, ErrCorrupt) {
		t.Errorf("err = %v, want ErrCorrupt", err)
	}
}
