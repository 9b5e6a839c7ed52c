package dropbox

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pharmatrace/internal/infrastructure/messaging"
)

type stubHandler struct {
	mu       sync.Mutex
	outcomes map[string]messaging.Outcome
	seen     []string
}

func (s *stubHandler) Handle(_ context.Context, source string, body []byte) (messaging.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(string(body))
	s.seen = append(s.seen, source+":"+key)
	outcome, ok := s.outcomes[key]
	if !ok {
		return messaging.OutcomeAck, nil
	}
	switch outcome {
	case messaging.OutcomeReject:
		return outcome, errors.New("consignment.items must not be empty")
	case messaging.OutcomeRetry:
		return outcome, errors.New("database is locked")
	default:
		return outcome, nil
	}
}

func (s *stubHandler) seenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestScanSortsFilesByOutcome(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", "good")
	writeFile(t, dir, "b.json", "bad")
	writeFile(t, dir, "c.JSON", "flaky")
	writeFile(t, dir, "notes.txt", "ignored")

	handler := &stubHandler{outcomes: map[string]messaging.Outcome{
		"bad":   messaging.OutcomeReject,
		"flaky": messaging.OutcomeRetry,
	}}
	w := NewWatcher(dir, handler)

	if err := w.Scan(context.Background()); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if got := strings.Join(handler.seen, ","); got != "dropbox:good,dropbox:bad,dropbox:flaky" {
		t.Fatalf("handled = %s", got)
	}
	if !exists(filepath.Join(dir, ProcessedDir, "a.json")) || exists(filepath.Join(dir, "a.json")) {
		t.Fatal("a.json was not moved to processed")
	}
	if !exists(filepath.Join(dir, FailedDir, "b.json")) {
		t.Fatal("b.json was not moved to failed")
	}
	note, err := os.ReadFile(filepath.Join(dir, FailedDir, "b.json.err"))
	if err != nil {
		t.Fatalf("read failure note: %v", err)
	}
	if !strings.Contains(string(note), "items must not be empty") {
		t.Fatalf("failure note = %q", note)
	}
	if !exists(filepath.Join(dir, "c.JSON")) {
		t.Fatal("c.JSON should stay for the next scan")
	}
	if !exists(filepath.Join(dir, "notes.txt")) {
		t.Fatal("notes.txt should be ignored")
	}
}

func TestRunImportsNewFiles(t *testing.T) {
	dir := t.TempDir()
	handler := &stubHandler{}
	w := NewWatcher(dir, handler)
	w.Settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Wait for the watch to be in place before dropping the file.
	deadline := time.Now().Add(5 * time.Second)
	for !exists(filepath.Join(dir, FailedDir)) {
		if time.Now().After(deadline) {
			t.Fatal("watcher did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	tmp := filepath.Join(dir, ".incoming.tmp")
	if err := os.WriteFile(tmp, []byte("good"), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, "late.json")); err != nil {
		t.Fatalf("rename into drop dir: %v", err)
	}

	target := filepath.Join(dir, ProcessedDir, "late.json")
	for !exists(target) {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("late.json not processed; handled %d files", handler.seenCount())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunRequiresDirectory(t *testing.T) {
	if err := NewWatcher(" ", &stubHandler{}).Run(context.Background()); err == nil {
		t.Fatal("Run() error = nil, want error")
	}
}
