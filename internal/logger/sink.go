package logger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultPollInterval is how long Follow sleeps after an empty read.
const DefaultPollInterval = 100 * time.Millisecond

// ErrNoLogFile is returned by Follow when the record has never logged.
var ErrNoLogFile = errors.New("log file does not exist")

// Sink owns the per-record output files, addressed purely by record id:
// <Dir>/<id>.log.
type Sink struct {
	Dir          string
	PollInterval time.Duration
}

// NewSink returns a Sink rooted at dir.
func NewSink(dir string) Sink { return Sink{Dir: dir, PollInterval: DefaultPollInterval} }

// Path returns the log file of record id.
func (s Sink) Path(id int) string {
	return filepath.Join(s.Dir, strconv.Itoa(id)+".log")
}

// OpenAppend opens the log file of record id for appending, creating the
// directory on first use. The same handle is meant to back both stdout and
// stderr of the child so lines land in OS write order.
func (s Sink) OpenAppend(id int) (*os.File, error) {
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	// #nosec G304 -- path is derived from the record id
	f, err := os.OpenFile(s.Path(id), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", s.Path(id), err)
	}
	return f, nil
}

// Follow streams lines appended to the log of record id after the call
// starts. It never rewinds and never stops at EOF: it returns nil when ctx is
// cancelled, or the first read error.
func (s Sink) Follow(ctx context.Context, id int, w io.Writer) error {
	path := s.Path(id)
	// #nosec G304 -- path is derived from the record id
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoLogFile, path)
		}
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek %s: %w", path, err)
	}

	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	r := bufio.NewReader(f)
	var pending []byte
	for {
		if ctx.Err() != nil {
			return nil
		}
		chunk, err := r.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err == nil {
			if _, werr := w.Write(pending); werr != nil {
				return werr
			}
			pending = pending[:0]
			continue
		}
		if !errors.Is(err, io.EOF) {
			return err
		}
		// partial lines stay pending until their newline arrives
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
