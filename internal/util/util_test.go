package util

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		failUntil int // calls that fail before success; -1 never succeeds
		permanent bool
		wantCalls int
		wantErr   bool
	}{
		{"succeeds on third call", 5, 2, false, 3, false},
		{"all fail", 3, -1, false, 3, true},
		{"zero attempts still calls once", 0, -1, false, 1, true},
		{"permanent stops at once", 5, -1, true, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			cause := errors.New("upstream down")
			err := Retry(context.Background(), tt.attempts, 0, func() error {
				calls++
				if tt.failUntil >= 0 && calls > tt.failUntil {
					return nil
				}
				if tt.permanent {
					return Permanent(cause)
				}
				return cause
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("Retry() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && (err != cause || IsPermanent(err)) {
				t.Errorf("Retry() = %v, want the unwrapped cause", err)
			}
		})
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, 5, time.Hour, func() error {
		attempts++
		return errors.New("transient error")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry error = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("Retry called fn %d times, want 1", attempts)
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) != nil")
	}
	cause := errors.New("status 404")
	err := Permanent(cause)
	if !IsPermanent(err) || !errors.Is(err, cause) {
		t.Errorf("Permanent(%v) = %v, want permanent wrapping the cause", cause, err)
	}
	if IsPermanent(cause) {
		t.Error("IsPermanent on a plain error")
	}
}

func TestRateLimiterWait(t *testing.T) {
	rl := NewRateLimiter(60)
	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	// The next slot is a second away.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := rl.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("second Wait error = %v, want DeadlineExceeded", err)
	}
}

func TestRateLimiterReserve(t *testing.T) {
	now := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	rl := NewRateLimiter(120)
	rl.now = func() time.Time { return now }

	want := []time.Duration{0, 500 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := rl.reserve(); got != w {
			t.Errorf("reserve %d = %v, want %v", i, got, w)
		}
	}

	// After an idle period the schedule restarts from now.
	now = now.Add(time.Minute)
	if got := rl.reserve(); got != 0 {
		t.Errorf("reserve after idle = %v, want 0", got)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(0)
	for i := 0; i < 100; i++ {
		if d := rl.reserve(); d != 0 {
			t.Fatalf("reserve = %v, want 0 with limiting disabled", d)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "debug", "json").Debug("hello", "symbol", "SZ002958")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json output %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["symbol"] != "SZ002958" {
		t.Errorf("json record = %v", rec)
	}

	buf.Reset()
	newLogger(&buf, "warn", "text").Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info logged at warn level: %q", buf.String())
	}
	newLogger(&buf, "warn", "text").Warn("kept")
	if !strings.Contains(buf.String(), "msg=kept") {
		t.Errorf("text output = %q, want msg=kept", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
