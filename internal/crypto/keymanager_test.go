package crypto

import (
	"strings"
	"testing"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKey, "hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if got != testKey {
		t.Errorf("decrypted key mismatch: %s", got)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKey, "correct")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("expected decryption failure")
	}
}

func TestLoadKeyPrefersRaw(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKey})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != testKey {
		t.Errorf("got %s", got)
	}
}

func TestNormalizeHexKeyRejectsBadInput(t *testing.T) {
	for _, bad := range []string{"", "0xzz", testKey[:10], strings.Repeat("ab", 33)} {
		if _, err := normalizeHexKey(bad); err == nil {
			t.Errorf("normalizeHexKey(%q) should fail", bad)
		}
	}
}
