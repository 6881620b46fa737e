package logfields

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Server", KeyServer, "irc.example.net", Server("irc.example.net")},
		{"Channel", KeyChannel, "#files", Channel("#files")},
		{"Bot", KeyBot, "Bot1", Bot("Bot1")},
		{"File", KeyFile, "a.mkv", File("a.mkv")},
		{"Search", KeySearch, "ubuntu", Search("ubuntu")},
		{"Category", KeyCategory, "queued", Category("queued")},
		{"Intent", KeyIntent, "request_after", Intent("request_after")},
		{"Kind", KeyKind, "servers", Kind("servers")},
		{"Path", KeyPath, "/tmp/x", Path("/tmp/x")},
		{"JobName", KeyJobName, "watchdog", JobName("watchdog")},
		{"Subject", KeySubject, "xgrab.notice", Subject("xgrab.notice")},
		{"ID", KeyID, "abc", ID("abc")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

// TestNumericHelpers verifies keys for numeric & duration helpers.
func TestNumericHelpers(t *testing.T) {
	if v := Packet(5); v.Key != KeyPacket || v.Value.Int64() != 5 {
		t.Fatalf("Packet mismatch: %v", v)
	}
	if v := Count(3); v.Key != KeyCount {
		t.Fatalf("Count key mismatch: %s", v.Key)
	}
	if v := DurationMS(1.5); v.Key != KeyDurationMS {
		t.Fatalf("DurationMS key mismatch: %s", v.Key)
	}
	if v := Delay(2 * time.Second); v.Value.Duration() != 2*time.Second {
		t.Fatalf("Delay value mismatch: %v", v.Value)
	}
}

func TestErrorHelper(t *testing.T) {
	if v := Error(nil); v.Value.String() != "" {
		t.Fatalf("nil error should be empty, got %q", v.Value.String())
	}
	if v := Error(errors.New("boom")); v.Value.String() != "boom" {
		t.Fatalf("unexpected error value %q", v.Value.String())
	}
}
