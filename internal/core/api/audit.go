package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// auditLog appends TouchContainer results to daily JSONL files.
// It is a debugging aid; write failures are logged and otherwise ignored.
type auditLog struct {
	dir string

	mu    sync.Mutex
	files map[string]*sync.Mutex
}

type auditEntry struct {
	At time.Time `json:"at"`
	touchResponse
}

// newAuditLog returns nil when dir is empty.
func newAuditLog(dir string) (*auditLog, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}
	return &auditLog{dir: dir, files: make(map[string]*sync.Mutex)}, nil
}

// fileMutex returns the mutex for filename, creating it if needed.
// The map grows by one entry per day.
func (a *auditLog) fileMutex(filename string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.files[filename]; !ok {
		a.files[filename] = &sync.Mutex{}
	}
	return a.files[filename]
}

func (a *auditLog) record(resp touchResponse, logger *slog.Logger) {
	if a == nil {
		return
	}
	now := time.Now().UTC()
	filename := filepath.Join(a.dir, now.Format("2006-01-02.jsonl"))

	m := a.fileMutex(filename)
	m.Lock()
	defer m.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.Warn("audit log unavailable", "file", filename, "error", err)
		return
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(auditEntry{At: now, touchResponse: resp}); err != nil {
		logger.Warn("audit log write failed", "file", filename, "error", err)
	}
}
