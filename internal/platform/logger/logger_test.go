package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs_RedactsCredentials(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"store_password", "hunter2",
		"Authorization", "Basic abc",
		"category_id", "65f0c0ffee0000000000abcd",
	})
	if len(out) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("password not redacted: %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("authorization not redacted: %v", out[3])
	}
	if out[5] != "65f0c0ffee0000000000abcd" {
		t.Fatalf("ids must pass through untouched: %v", out[5])
	}
}

func TestSanitizeKVs_HashesUsernames(t *testing.T) {
	out := sanitizeKVs([]interface{}{"username", "admin"})
	got, ok := out[1].(string)
	if !ok || !strings.HasPrefix(got, "hash:") {
		t.Fatalf("expected hashed username, got %v", out[1])
	}
	if again := sanitizeKVs([]interface{}{"username", "admin"}); again[1] != got {
		t.Fatalf("hash must be stable: %v != %v", again[1], got)
	}
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"op", "attach", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("unexpected output: %v", out)
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production", "test"} {
		l, err := New(mode)
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.With("service", "test").Debug("hello", "k", "v")
	}
}
