package logging_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"patientboard/internal/logging"
)

func TestJournalAppendFormat(t *testing.T) {
	j := logging.NewJournal(filepath.Join(t.TempDir(), "sub", "errors.txt"))
	if err := j.Append("ID 12: upload\nfailed"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	lines, err := j.Tail(5)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %v", lines)
	}
	pattern := regexp.MustCompile(`^\d{2}:\d{2}:\d{2} \d{2}/\d{2}/\d{4} - ID 12: upload failed$`)
	if !pattern.MatchString(lines[0]) {
		t.Fatalf("unexpected journal line %q", lines[0])
	}
}

func TestJournalTailKeepsNewest(t *testing.T) {
	j := logging.NewJournal(filepath.Join(t.TempDir(), "errors.txt"))
	for i := 0; i < 6; i++ {
		if err := j.Append(fmt.Sprintf("entry %d", i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	lines, err := j.Tail(2)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if want := regexp.MustCompile(`entry 4$`); !want.MatchString(lines[0]) {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if want := regexp.MustCompile(`entry 5$`); !want.MatchString(lines[1]) {
		t.Fatalf("unexpected last line %q", lines[1])
	}
}

func TestJournalTailMissingFile(t *testing.T) {
	j := logging.NewJournal(filepath.Join(t.TempDir(), "absent.txt"))
	lines, err := j.Tail(10)
	if err != nil || len(lines) != 0 {
		t.Fatalf("expected empty tail, got %v %v", lines, err)
	}
}

func TestJournalHandlerUsesFolderWhenNoPatient(t *testing.T) {
	j := logging.NewJournal(filepath.Join(t.TempDir(), "errors.txt"))
	logger := slog.New(j.Handler()).With(logging.String(logging.FieldFolder, "/photos/abc-x"))
	logger.Warn("ignored")
	logger.Error("invalid patient id", logging.Error(errors.New("not a number")))

	lines, err := j.Tail(10)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected only the error record, got %v", lines)
	}
	if want := regexp.MustCompile(` - abc-x: invalid patient id: not a number$`); !want.MatchString(lines[0]) {
		t.Fatalf("unexpected journal line %q", lines[0])
	}
}

func TestJournalFollowStreamsNewLines(t *testing.T) {
	journal := logging.NewJournal(filepath.Join(t.TempDir(), "errors.txt"))
	if err := journal.Append("ID 1: old failure"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	offset, err := journal.Size()
	if err != nil || offset == 0 {
		t.Fatalf("Size: %d %v", offset, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- journal.Follow(ctx, offset, func(line string) { got <- line })
	}()

	if err := journal.Append("ID 2: new failure"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	select {
	case line := <-got:
		if !strings.HasSuffix(line, "ID 2: new failure") {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("follow did not report the new line")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
	select {
	case line := <-got:
		t.Fatalf("old line should not be replayed, got %q", line)
	default:
	}
}
