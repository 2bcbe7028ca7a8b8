// Package logsink appends timestamped status lines to a file per calendar day.
package logsink

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	stampLayout = "2006-01-02 15:04:05"
)

// Sink accepts status lines. Implementations must be safe for concurrent
// use and must never fail the caller: logging is best effort.
type Sink interface {
	Log(line string)
}

// Discard drops every line.
type Discard struct{}

func (Discard) Log(string) {}

// Daily writes "[YYYY-MM-DD HH:MM:SS] line" to <dir>/<base>_<YYYY-MM-DD>.log,
// switching files when the local date changes. The directory is created on
// first use.
type Daily struct {
	dir  string
	base string
	now  func() time.Time

	mu   sync.Mutex
	date string
	f    *os.File
}

func NewDaily(dir, base string) *Daily {
	return &Daily{dir: dir, base: base, now: time.Now}
}

// Path returns the file a line written at t lands in.
func (d *Daily) Path(t time.Time) string {
	return filepath.Join(d.dir, fmt.Sprintf("%s_%s.log", d.base, t.Format(dateLayout)))
}

// Log appends one line. Write errors are reported at debug level and
// otherwise dropped; the next call retries opening the file.
func (d *Daily) Log(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if err := d.rotateLocked(now); err != nil {
		slog.Debug("logsink: open", "err", err)
		return
	}
	if _, err := fmt.Fprintf(d.f, "[%s] %s\n", now.Format(stampLayout), line); err != nil {
		slog.Debug("logsink: write", "err", err)
		_ = d.f.Close()
		d.f, d.date = nil, ""
	}
}

// Close releases the current file.
func (d *Daily) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f, d.date = nil, ""
	return err
}

func (d *Daily) rotateLocked(now time.Time) error {
	date := now.Format(dateLayout)
	if d.f != nil && date == d.date {
		return nil
	}
	if d.f != nil {
		_ = d.f.Close()
		d.f = nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(d.Path(now), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	d.f, d.date = f, date
	return nil
}
