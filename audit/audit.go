// Package audit appends ledger events to flat audit files.
//
// Every event is written twice: into a daily system log named
// syslog_YYYY-MM-DD.log and into a per-subject file named
// user-<id>.log. Lines are semicolon-delimited with CSV-style
// escaping so the files load into spreadsheet tooling. Writes are
// buffered in memory and flushed on a timer, on Flush, and on Close.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event names recorded in audit trails.
const (
	EventCreateObject       = "CREATE_OBJECT"
	EventMint               = "MINT"
	EventReward             = "REWARD"
	EventLock               = "LOCK"
	EventUnlock             = "UNLOCK"
	EventTransferFrom       = "TRANSFER_AVAILABLE_FROM"
	EventTransferTo         = "TRANSFER_AVAILABLE_TO"
	EventTransferLockedFrom = "TRANSFER_LOCKED_FROM"
	EventTransferLockedTo   = "TRANSFER_LOCKED_TO"
	EventConfiscateLocked   = "CONFISCATE_LOCKED"
	EventLogin              = "LOGIN"
)

// EnvLogsDir names the environment variable overriding the log directory.
const EnvLogsDir = "LOGS_FOLDER"

// DefaultLogsDir is used when no directory is configured.
const DefaultLogsDir = "./logs/"

// DefaultFlushInterval is the buffered write-out period.
const DefaultFlushInterval = time.Second

// NoLogs is returned by UserLogs when the subject has no audit file.
const NoLogs = "No logs available"

// Logger buffers audit lines and appends them to daily and per-subject
// files. Safe for concurrent use.
type Logger struct {
	dir           string
	flushInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu       sync.Mutex
	buffer   []string
	users    map[string][]string
	stopChan chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

// WithFlushInterval sets the buffered write-out period.
func WithFlushInterval(d time.Duration) Option {
	return func(l *Logger) {
		if d > 0 {
			l.flushInterval = d
		}
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		l.now = now
	}
}

// New creates a Logger writing under dir. An empty dir falls back to the
// LOGS_FOLDER environment variable, then to DefaultLogsDir. The log
// directory is created eagerly.
func New(dir string, opts ...Option) (*Logger, error) {
	if dir == "" {
		dir = os.Getenv(EnvLogsDir)
	}
	if dir == "" {
		dir = DefaultLogsDir
	}

	l := &Logger{
		dir:           dir,
		flushInterval: DefaultFlushInterval,
		logger:        slog.Default(),
		now:           time.Now,
		users:         make(map[string][]string),
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create log dir: %w", err)
	}

	l.wg.Add(1)
	go l.flushWorker()

	return l, nil
}

// Log records an event for a subject. details are joined with spaces.
func (l *Logger) Log(subject, event string, details ...string) {
	ts := escape(l.now().UTC().Format(time.RFC3339Nano))
	subject = strings.TrimSpace(escape(subject))
	event = strings.TrimSpace(escape(event))
	detail := strings.TrimSpace(escape(strings.Join(details, " ")))

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.buffer = append(l.buffer, fmt.Sprintf("[%s]; %s; %s; %s;", ts, subject, event, detail))
	l.users[subject] = append(l.users[subject], fmt.Sprintf("[%s]; %s; %s;", ts, event, detail))
}

// Flush appends all buffered lines to their files.
func (l *Logger) Flush(ctx context.Context) error {
	l.mu.Lock()
	lines := l.buffer
	l.buffer = nil
	users := l.users
	l.users = make(map[string][]string)
	day := l.now().UTC().Format("2006-01-02")
	l.mu.Unlock()

	if len(lines) > 0 {
		name := filepath.Join(l.dir, "syslog_"+day+".log")
		if err := appendLines(name, lines); err != nil {
			return fmt.Errorf("audit: flush system log: %w", err)
		}
	}

	for subject, userLines := range users {
		name := filepath.Join(l.dir, "user-"+subject+".log")
		if err := appendLines(name, userLines); err != nil {
			return fmt.Errorf("audit: flush log for %s: %w", subject, err)
		}
	}
	return nil
}

// UserLogs returns the full audit trail of a subject, or NoLogs when the
// subject has nothing recorded. Buffered lines are flushed first.
func (l *Logger) UserLogs(ctx context.Context, subject string) (string, error) {
	if err := l.Flush(ctx); err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(l.dir, "user-"+escape(subject)+".log"))
	if err != nil {
		if os.IsNotExist(err) {
			return NoLogs, nil
		}
		return "", fmt.Errorf("audit: read logs for %s: %w", subject, err)
	}
	return string(data), nil
}

// Close stops the flush worker and writes out remaining buffered lines.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stopChan)
	l.mu.Unlock()
	l.wg.Wait()

	return l.Flush(context.Background())
}

func (l *Logger) flushWorker() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return

		case <-ticker.C:
			if err := l.Flush(context.Background()); err != nil {
				l.logger.Error("audit flush failed", "error", err)
			}
		}
	}
}

func appendLines(name string, lines []string) error {
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// escape makes a field CSV-compliant: semicolons become commas, and
// fields containing commas, quotes or newlines are quoted with doubled
// inner quotes.
func escape(s string) string {
	quote := strings.ContainsAny(s, ",\"\n")
	s = strings.ReplaceAll(s, ";", ",")
	if quote {
		s = strings.ReplaceAll(s, `"`, `""`)
		s = `"` + s + `"`
	}
	return s
}
