package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// journalTimeLayout matches the clinic's historical errors.txt format
// ("15:04:05 02/01/2006 - message").
const journalTimeLayout = "15:04:05 02/01/2006"

// Journal is the append-only plain-text error log staff read when a template
// is missing. Each line holds a local timestamp and a single message.
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewJournal returns a journal writing to path. The file is created lazily on
// the first append.
func NewJournal(path string) *Journal {
	return &Journal{path: path, now: time.Now}
}

// Path returns the journal file location.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Append writes one journal line.
func (j *Journal) Append(message string) error {
	if j == nil || j.path == "" {
		return nil
	}
	message = strings.Join(strings.Fields(message), " ")
	line := fmt.Sprintf("%s - %s\n", j.now().Local().Format(journalTimeLayout), message)

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	return f.Close()
}

// Tail returns up to n of the most recent journal lines, oldest first. A
// missing journal yields no lines.
func (j *Journal) Tail(n int) ([]string, error) {
	if j == nil || j.path == "" || n <= 0 {
		return nil, nil
	}
	f, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return ring, nil
}

// Handler returns a slog handler that appends ERROR records to the journal.
func (j *Journal) Handler() slog.Handler {
	return &journalHandler{journal: j}
}

type journalHandler struct {
	journal *Journal
	attrs   []slog.Attr
}

func (h *journalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *journalHandler) Handle(_ context.Context, record slog.Record) error {
	var (
		patient string
		folder  string
		errText string
	)
	visit := func(attr slog.Attr) bool {
		switch attr.Key {
		case FieldPatientID:
			patient = attr.Value.Resolve().String()
		case FieldFolder:
			folder = attr.Value.Resolve().String()
		case FieldError:
			errText = attrString(attr.Value)
		}
		return true
	}
	for _, attr := range h.attrs {
		visit(attr)
	}
	record.Attrs(visit)

	var b strings.Builder
	switch {
	case patient != "":
		b.WriteString("ID ")
		b.WriteString(patient)
		b.WriteString(": ")
	case folder != "":
		b.WriteString(filepath.Base(folder))
		b.WriteString(": ")
	}
	b.WriteString(record.Message)
	if errText != "" {
		b.WriteString(": ")
		b.WriteString(errText)
	}
	return h.journal.Append(b.String())
}

func (h *journalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &journalHandler{journal: h.journal, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *journalHandler) WithGroup(string) slog.Handler {
	return h
}
