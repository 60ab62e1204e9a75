package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVs(t *testing.T) {
	long := strings.Repeat("a", 200)
	out := sanitizeKVs([]interface{}{
		"api_key", "sk-123",
		"session_id", "abc",
		"user_input", long,
		"count", 3,
		"dangling",
	})
	if len(out) != 9 {
		t.Fatalf("len: want=9 got=%d", len(out))
	}
	if out[1] != "[REDACTED]" {
		t.Fatalf("api_key: got=%v", out[1])
	}
	if s, _ := out[3].(string); !strings.HasPrefix(s, "hash:") {
		t.Fatalf("session_id: got=%v", out[3])
	}
	if s, _ := out[5].(string); len([]rune(s)) != maxTextValue+1 {
		t.Fatalf("user_input: expected truncation, got %d runes", len([]rune(s)))
	}
	if out[7] != 3 {
		t.Fatalf("count: got=%v", out[7])
	}
	if out[8] != "dangling" {
		t.Fatalf("dangling key: got=%v", out[8])
	}
}

func TestSanitizeNestedMap(t *testing.T) {
	got := sanitizeValue("payload", map[string]interface{}{"Authorization": "Bearer x", "score": 4.0})
	m, ok := got.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", got)
	}
	if m["Authorization"] != "[REDACTED]" {
		t.Fatalf("nested redaction: got=%v", m["Authorization"])
	}
	if m["score"] != 4.0 {
		t.Fatalf("nested passthrough: got=%v", m["score"])
	}
}
