// Package transcript delivers utterance events from text sources.
//
// A source yields Events in order. Interim events carry a partial
// transcription that later events replace; a final event closes the
// utterance. Lines prefixed with "~ " are interim, every other non-blank
// line is final.
package transcript

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// InterimPrefix marks a line as an interim transcription.
const InterimPrefix = "~ "

// Event is one transcription update.
type Event struct {
	Text    string
	IsFinal bool
}

// Source yields transcription events. Next returns io.EOF once the source
// is exhausted or closed.
type Source interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// parseLine turns one line into an event. Blank lines yield false.
func parseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	final := true
	if strings.HasPrefix(line, InterimPrefix) {
		final = false
		line = line[len(InterimPrefix):]
	}
	text := strings.TrimSpace(line)
	if text == "" {
		return Event{}, false
	}
	return Event{Text: text, IsFinal: final}, true
}

// ReaderSource reads events line by line from an io.Reader.
type ReaderSource struct {
	events chan Event
	done   chan struct{}

	// mu protects err.
	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

var _ Source = (*ReaderSource)(nil)

// NewReaderSource starts scanning r in the background.
func NewReaderSource(r io.Reader) *ReaderSource {
	s := &ReaderSource{
		events: make(chan Event),
		done:   make(chan struct{}),
	}
	go s.scan(r)
	return s
}

func (s *ReaderSource) scan(r io.Reader) {
	defer close(s.events)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		ev, ok := parseLine(scanner.Text())
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

// Next blocks until the next event, the end of input or ctx cancellation.
func (s *ReaderSource) Next(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case ev, ok := <-s.events:
		if ok {
			return ev, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Event{}, s.err
	}
	return Event{}, io.EOF
}

// Close stops scanning. It does not close the underlying reader.
func (s *ReaderSource) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
