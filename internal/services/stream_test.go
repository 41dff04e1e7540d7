package services

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/desertthunder/bookclean/internal/shared"
)

func TestEventReader(t *testing.T) {
	t.Run("Multi Line Data", func(t *testing.T) {
		er := NewEventReader(strings.NewReader("event: log\nid: 7\ndata: one\ndata: two\n\n"))
		ev, err := er.Read()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if ev.Type != "log" || ev.ID != "7" || string(ev.Data) != "one\ntwo" {
			t.Errorf("unexpected event %+v", ev)
		}
		if _, err := er.Read(); !errors.Is(err, io.EOF) {
			t.Errorf("expected EOF, got %v", err)
		}
	})

	t.Run("CRLF And Trailing Event", func(t *testing.T) {
		er := NewEventReader(strings.NewReader("data: a\r\n\r\ndata: b"))
		first, _ := er.Read()
		second, err := er.Read()
		if string(first.Data) != "a" || string(second.Data) != "b" || err != nil {
			t.Errorf("unexpected events %q %q (%v)", first.Data, second.Data, err)
		}
	})

	t.Run("Comments Skipped", func(t *testing.T) {
		er := NewEventReader(strings.NewReader(": ping\n\n: ping\ndata: x\n\n"))
		ev, err := er.Read()
		if err != nil || string(ev.Data) != "x" {
			t.Errorf("unexpected event %+v (%v)", ev, err)
		}
	})
}

func TestEventStream(t *testing.T) {
	t.Run("End Event", func(t *testing.T) {
		body := io.NopCloser(strings.NewReader("data: {\"progress\": 50, \"status\": \"processing\"}\n\nevent: end\ndata: {}\n\n"))
		s := newEventStream(body, decodeStatus)

		update, err := s.Next()
		if err != nil || update.Progress != 50 {
			t.Fatalf("unexpected update %+v (%v)", update, err)
		}
		if _, err := s.Next(); !errors.Is(err, io.EOF) {
			t.Errorf("expected EOF on end event, got %v", err)
		}
	})

	t.Run("Progress Clamped", func(t *testing.T) {
		body := io.NopCloser(strings.NewReader("data: {\"progress\": 250}\n\n"))
		update, err := newEventStream(body, decodeStatus).Next()
		if err != nil || update.Progress != 100 {
			t.Errorf("expected clamped progress, got %+v (%v)", update, err)
		}
	})

	t.Run("Decode Error", func(t *testing.T) {
		body := io.NopCloser(strings.NewReader("data: not json\n\n"))
		if _, err := newEventStream(body, decodeStatus).Next(); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("Closed Before Read", func(t *testing.T) {
		s := newEventStream(io.NopCloser(strings.NewReader("data: x\n\n")), decodeLogLine)
		s.Close()
		if _, err := s.Next(); !errors.Is(err, shared.ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed, got %v", err)
		}
	})
}
