package transcript

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is how often a FileSource re-reads the file when no
// filesystem notification arrives.
const DefaultPollInterval = 500 * time.Millisecond

// FileSource follows a file and emits one event per appended line, like
// tail -f. The file may not exist yet. A truncated file is re-read from
// the start.
type FileSource struct {
	path         string
	pollInterval time.Duration

	watcher *fsnotify.Watcher
	events  chan Event
	done    chan struct{}

	offset  int64
	partial string

	closeOnce sync.Once
}

var _ Source = (*FileSource)(nil)

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithPollInterval sets the polling fallback interval.
func WithPollInterval(d time.Duration) FileOption {
	return func(s *FileSource) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// NewFileSource starts following path.
func NewFileSource(path string, opts ...FileOption) (*FileSource, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	s := &FileSource{
		path:         filepath.Clean(abs),
		pollInterval: DefaultPollInterval,
		events:       make(chan Event),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		// Watch the directory so creation and replacement are seen too.
		if err := watcher.Add(filepath.Dir(s.path)); err != nil {
			watcher.Close()
		} else {
			s.watcher = watcher
		}
	}
	// Without a watcher the poll ticker alone drives reads.

	go s.follow()
	return s, nil
}

// Path returns the followed file.
func (s *FileSource) Path() string {
	return s.path
}

func (s *FileSource) follow() {
	defer close(s.events)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var notifications <-chan fsnotify.Event
	var watchErrs <-chan error
	if s.watcher != nil {
		notifications = s.watcher.Events
		watchErrs = s.watcher.Errors
	}

	if !s.drain() {
		return
	}

	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-notifications:
			if !ok {
				notifications = nil
				continue
			}
			if filepath.Clean(ev.Name) != s.path {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && !s.drain() {
				return
			}
		case _, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
			}
		case <-ticker.C:
			if !s.drain() {
				return
			}
		}
	}
}

// drain emits every complete line appended since the last read. It returns
// false once the source is closed.
func (s *FileSource) drain() bool {
	f, err := os.Open(s.path)
	if err != nil {
		return true
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return true
	}
	if info.Size() < s.offset {
		s.offset = 0
		s.partial = ""
	}
	if info.Size() == s.offset {
		return true
	}

	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return true
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return true
	}
	s.offset += int64(len(data))

	buf := s.partial + string(data)
	lines := strings.Split(buf, "\n")
	s.partial = lines[len(lines)-1]

	for _, line := range lines[:len(lines)-1] {
		ev, ok := parseLine(line)
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return false
		}
	}
	return true
}

// Next blocks until the next appended line, Close or ctx cancellation.
func (s *FileSource) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return ev, nil
	}
}

// Close stops following the file.
func (s *FileSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
