package audit

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := New(dir, WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l, dir
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a;b", "a,b"},
		{"a,b", `"a,b"`},
		{`say "hi"`, `"say ""hi"""`},
		{"line\nbreak", "\"line\nbreak\""},
		{"semi;and,comma", `"semi,and,comma"`},
	}
	for _, tt := range tests {
		if got := escape(tt.in); got != tt.want {
			t.Errorf("escape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogWritesSystemAndUserFiles(t *testing.T) {
	l, dir := newTestLogger(t)
	ctx := context.Background()

	l.Log("U0000001X", EventMint, "1000000 points")
	l.Log("U0000001X", EventLock, "5 points")
	if err := l.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	day := time.Now().UTC().Format("2006-01-02")
	sys, err := os.ReadFile(filepath.Join(dir, "syslog_"+day+".log"))
	if err != nil {
		t.Fatalf("read system log: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(sys), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("system log has %d lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], "; U0000001X; MINT; 1000000 points;") {
		t.Errorf("system line = %q", lines[0])
	}

	user, err := os.ReadFile(filepath.Join(dir, "user-U0000001X.log"))
	if err != nil {
		t.Fatalf("read user log: %v", err)
	}
	if strings.Contains(string(user), "U0000001X;") {
		t.Error("user log lines should not repeat the subject field")
	}
	if !strings.Contains(string(user), "; MINT; 1000000 points;") {
		t.Errorf("user log = %q", user)
	}
}

func TestLogEscapesFields(t *testing.T) {
	l, dir := newTestLogger(t)
	ctx := context.Background()

	l.Log("U1", EventLogin, "from host;port")
	if err := l.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	user, err := os.ReadFile(filepath.Join(dir, "user-U1.log"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(user), "host;port") {
		t.Errorf("semicolon not escaped: %q", user)
	}
	if !strings.Contains(string(user), "host,port") {
		t.Errorf("expected comma replacement: %q", user)
	}
}

func TestUserLogsFlushesPending(t *testing.T) {
	l, _ := newTestLogger(t)
	ctx := context.Background()

	l.Log("U1", EventReward, "10 points")
	got, err := l.UserLogs(ctx, "U1")
	if err != nil {
		t.Fatalf("UserLogs() error = %v", err)
	}
	if !strings.Contains(got, EventReward) {
		t.Errorf("UserLogs() = %q, want REWARD entry", got)
	}
}

func TestUserLogsMissing(t *testing.T) {
	l, _ := newTestLogger(t)

	got, err := l.UserLogs(context.Background(), "Unobody")
	if err != nil {
		t.Fatalf("UserLogs() error = %v", err)
	}
	if got != NoLogs {
		t.Errorf("UserLogs(missing) = %q, want %q", got, NoLogs)
	}
}

func TestCloseFlushes(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	l.Log("U1", EventCreateObject, "user")
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "user-U1.log")); err != nil {
		t.Errorf("user log missing after Close: %v", err)
	}

	// logging after close is dropped, not a panic
	l.Log("U1", EventLogin)
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestEnvFallback(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvLogsDir, dir)

	l, err := New("", WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.Log("U1", EventLogin)
	if err := l.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "user-U1.log")); err != nil {
		t.Errorf("log not written under env dir: %v", err)
	}
}
