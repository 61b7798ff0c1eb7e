package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"
)

const followPollInterval = 250 * time.Millisecond

// Size returns the current journal length in bytes, or 0 when it does not
// exist yet. Pass it to Follow to stream only new entries.
func (j *Journal) Size() (int64, error) {
	info, err := os.Stat(j.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat journal: %w", err)
	}
	return info.Size(), nil
}

// Follow calls fn for every line appended after offset until ctx is done.
// A journal truncated below offset is read again from the start.
func (j *Journal) Follow(ctx context.Context, offset int64, fn func(string)) error {
	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()
	for {
		size, err := j.Size()
		if err != nil {
			return err
		}
		if size < offset {
			offset = 0
		}
		if size > offset {
			lines, next, err := j.readFrom(offset)
			if err != nil {
				return err
			}
			offset = next
			for _, line := range lines {
				fn(line)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// readFrom returns the complete lines after offset and the offset just past
// the last newline read. A partially written final line is left for the
// next call.
func (j *Journal) readFrom(offset int64) ([]string, int64, error) {
	f, err := os.Open(j.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek journal: %w", err)
	}

	var lines []string
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return lines, offset, nil
			}
			return lines, offset, fmt.Errorf("read journal: %w", err)
		}
		offset += int64(len(line))
		if text := strings.TrimRight(line, "\r\n"); strings.TrimSpace(text) != "" {
			lines = append(lines, text)
		}
	}
}
