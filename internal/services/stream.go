package services

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
)

// Event is one server-sent event.
type Event struct {
	Type string
	ID   string
	Data []byte
}

// terminal event types that end a stream without an error
var endEvents = map[string]bool{"end": true, "close": true, "done": true}

// EventReader reads server-sent events from a response body.
type EventReader struct {
	r *bufio.Reader
}

// NewEventReader wraps r for event-by-event reading.
func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{r: bufio.NewReader(r)}
}

// Read returns the next complete event, or [io.EOF] when the body ends.
func (er *EventReader) Read() (Event, error) {
	var (
		ev   Event
		data [][]byte
		seen bool
	)

	for {
		line, err := er.r.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			if seen {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			return Event{}, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if seen {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "data":
			data = append(data, append([]byte(nil), value...))
			seen = true
		case "event":
			ev.Type = string(value)
			seen = true
		case "id":
			ev.ID = string(value)
		}

		if err != nil {
			ev.Data = bytes.Join(data, []byte("\n"))
			return ev, nil
		}
	}
}

// eventStream adapts an [EventReader] over an HTTP body into a typed [Stream].
type eventStream[T any] struct {
	body   io.ReadCloser
	reader *EventReader
	decode func([]byte) (T, error)
	once   sync.Once
	closed atomic.Bool
}

func newEventStream[T any](body io.ReadCloser, decode func([]byte) (T, error)) *eventStream[T] {
	return &eventStream[T]{body: body, reader: NewEventReader(body), decode: decode}
}

func (s *eventStream[T]) Next() (T, error) {
	var zero T
	for {
		if s.closed.Load() {
			return zero, shared.ErrStreamClosed
		}

		ev, err := s.reader.Read()
		if s.closed.Load() {
			return zero, shared.ErrStreamClosed
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return zero, io.EOF
			}
			return zero, fmt.Errorf("%w: stream read: %v", shared.ErrAPIRequest, err)
		}

		if endEvents[ev.Type] {
			return zero, io.EOF
		}
		if len(bytes.TrimSpace(ev.Data)) == 0 {
			continue
		}

		v, err := s.decode(ev.Data)
		if err != nil {
			return zero, fmt.Errorf("%w: decode event: %v", shared.ErrAPIRequest, err)
		}
		return v, nil
	}
}

func (s *eventStream[T]) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		err = s.body.Close()
	})
	return err
}

// decodeLogLine accepts {"message": ...} or a bare text payload.
func decodeLogLine(data []byte) (models.LogLine, error) {
	var line models.LogLine
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := json.Unmarshal(data, &line); err == nil {
			return line, nil
		}
	}
	return models.LogLine{Message: strings.TrimSpace(string(data))}, nil
}

func decodeStatus(data []byte) (models.StatusUpdate, error) {
	var update models.StatusUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return update, err
	}
	update.Progress = models.ClampProgress(update.Progress)
	return update, nil
}
