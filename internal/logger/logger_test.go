package logger

import "testing"

func TestSanitizeKVs_RedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"document_id", "abc", "api_key", "k-123", "Authorization", "Bearer x"})

	if len(out) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(out))
	}
	if out[1] != "abc" {
		t.Fatalf("expected document_id to be kept, got %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("expected api_key to be redacted, got %v", out[3])
	}
	if out[5] != "[REDACTED]" {
		t.Fatalf("expected authorization to be redacted, got %v", out[5])
	}
}

func TestSanitizeKVs_OddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"stage", "summary", "dangling"})
	if len(out) != 3 || out[2] != "dangling" {
		t.Fatalf("expected dangling key to be preserved, got %v", out)
	}
}
