package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/services"
	"github.com/desertthunder/bookclean/internal/shared"
	tu "github.com/desertthunder/bookclean/internal/testing"
)

func newService(url string) *services.APIService {
	return services.NewAPIService(shared.APIConfig{BaseURL: url}, nil)
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Empty BaseURL", func(t *testing.T) {
			srv := newService("")
			if srv.BaseURL() != "http://127.0.0.1:8000" {
				t.Errorf("expected default baseURL, got %s", srv.BaseURL())
			}
		})

		t.Run("Trims Trailing Slash", func(t *testing.T) {
			srv := newService("http://example.com/")
			if srv.BaseURL() != "http://example.com" {
				t.Errorf("expected trimmed baseURL, got %s", srv.BaseURL())
			}
		})

		t.Run("Credentials From Config", func(t *testing.T) {
			srv := services.NewAPIService(shared.APIConfig{Username: "u", Password: "p"}, nil)
			if srv.Credentials() != (services.Credentials{Username: "u", Password: "p"}) {
				t.Errorf("expected config credentials, got %+v", srv.Credentials())
			}
		})
	})

	t.Run("Upload", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/api/upload" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Fatalf("expected multipart file: %v", err)
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			if string(data) != "epub bytes" || header.Filename != "book.epub" {
				t.Errorf("unexpected upload %q (%s)", data, header.Filename)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"session_id": "s1", "status": "processing", "progress": 0})
		}))
		defer server.Close()

		srv := newService(server.URL)
		session, err := srv.Upload(context.Background(), "/books/book.epub", strings.NewReader("epub bytes"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session.ID != "s1" || session.Status != models.SessionProcessing {
			t.Errorf("unexpected session %+v", session)
		}
		if session.Filename != "book.epub" {
			t.Errorf("expected filename defaulted from upload, got %q", session.Filename)
		}
	})

	t.Run("StartProcessing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/sessions/s1/process" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			var body models.ProcessOptions
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if body != (models.ProcessOptions{Language: 2, Sexual: 3, Violence: 4, Model: "m"}) {
				t.Errorf("unexpected options %+v", body)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		opts := models.ProcessOptions{Language: 2, Sexual: 3, Violence: 4, Model: "m"}
		if err := newService(server.URL).StartProcessing(context.Background(), "s1", opts); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("GetSession", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status": "review", "changes": [{"id": 3, "original_text": "a", "proposed_text": "b"}]}`)
		}))
		defer server.Close()

		session, err := newService(server.URL).GetSession(context.Background(), "s9")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if session.ID != "s9" {
			t.Errorf("expected id defaulted to requested id, got %q", session.ID)
		}
		if len(session.Changes) != 1 || session.Changes[0].ID.Sequence != 3 {
			t.Errorf("unexpected changes %+v", session.Changes)
		}
	})

	t.Run("UpdateChange", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPut || r.URL.Path != "/api/sessions/s1/changes/2.5" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["status"] != "accepted" || body["proposed_text"] != "clean" {
				t.Errorf("unexpected body %v", body)
			}
		}))
		defer server.Close()

		err := newService(server.URL).UpdateChange(context.Background(), "s1", "2.5", models.StatusAccepted, "clean")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Export", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/epub+zip")
			w.Header().Set("Content-Disposition", `attachment; filename="clean.epub"`)
			w.Write([]byte("artifact"))
		}))
		defer server.Close()

		artifact, err := newService(server.URL).Export(context.Background(), "s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if artifact.Filename != "clean.epub" || string(artifact.Data) != "artifact" {
			t.Errorf("unexpected artifact %+v", artifact)
		}
	})

	t.Run("Status Mapping", func(t *testing.T) {
		cases := []struct {
			name   string
			status int
			want   error
		}{
			{"Unauthorized", http.StatusUnauthorized, shared.ErrNotAuthenticated},
			{"Forbidden", http.StatusForbidden, shared.ErrNotAuthenticated},
			{"Not Found", http.StatusNotFound, shared.ErrSessionNotFound},
			{"Server Error", http.StatusBadGateway, shared.ErrServiceUnavailable},
			{"Bad Request", http.StatusBadRequest, shared.ErrAPIRequest},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tc.status)
					fmt.Fprint(w, `{"detail": "nope"}`)
				}))
				defer server.Close()

				_, err := newService(server.URL).GetSession(context.Background(), "s1")
				if !errors.Is(err, tc.want) {
					t.Fatalf("expected %v, got %v", tc.want, err)
				}
				if !strings.Contains(err.Error(), "nope") {
					t.Errorf("expected detail in error, got %v", err)
				}
			})
		}
	})

	t.Run("Basic Auth", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "reader" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"session_id": "s1", "status": "processing"}`)
		}))
		defer server.Close()

		srv := newService(server.URL)
		if _, err := srv.GetSession(context.Background(), "s1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected auth error without credentials, got %v", err)
		}

		srv.SetCredentials(services.Credentials{Username: "reader", Password: "secret"})
		if _, err := srv.GetSession(context.Background(), "s1"); err != nil {
			t.Fatalf("expected success with credentials, got %v", err)
		}
	})

	t.Run("Failed HTTP Request", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection failed"))}
		srv := services.NewAPIService(shared.APIConfig{BaseURL: "http://example.com"}, client)

		err := srv.Cancel(context.Background(), "s1")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("With Canceled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := newService("http://example.com").AcceptAllChanges(ctx, "s1"); err == nil {
			t.Error("expected error for canceled context")
		}
	})
}

func TestAPIServiceStreams(t *testing.T) {
	t.Run("Status Stream", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/sessions/s1/status" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.Header.Get("Accept") != "text/event-stream" {
				t.Errorf("expected event-stream accept header")
			}
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"progress\": 10, \"phase\": \"rating\", \"status\": \"processing\"}\n\n")
			fmt.Fprint(w, ": keepalive\n\n")
			fmt.Fprint(w, "data: {\"progress\": 100, \"phase\": \"done\", \"status\": \"review\"}\n\n")
		}))
		defer server.Close()

		stream, err := newService(server.URL).StreamStatus(context.Background(), "s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer stream.Close()

		first, err := stream.Next()
		if err != nil || first.Phase != "rating" || first.Progress != 10 {
			t.Fatalf("unexpected first update %+v (%v)", first, err)
		}
		second, err := stream.Next()
		if err != nil || second.Status != models.SessionReview {
			t.Fatalf("unexpected second update %+v (%v)", second, err)
		}
		if _, err := stream.Next(); !errors.Is(err, io.EOF) {
			t.Errorf("expected EOF at end of body, got %v", err)
		}
	})

	t.Run("Log Stream Closes", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data: {\"message\": \"converting\"}\n\n")
			fmt.Fprint(w, "data: plain text line\n\n")
			w.(http.Flusher).Flush()
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		stream, err := newService(server.URL).StreamLogs(context.Background(), "s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		line, err := stream.Next()
		if err != nil || line.Message != "converting" {
			t.Fatalf("unexpected line %+v (%v)", line, err)
		}
		line, err = stream.Next()
		if err != nil || line.Message != "plain text line" {
			t.Fatalf("unexpected plain line %+v (%v)", line, err)
		}

		if err := stream.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if err := stream.Close(); err != nil {
			t.Errorf("second close should be a no-op, got %v", err)
		}
		if _, err := stream.Next(); !errors.Is(err, shared.ErrStreamClosed) {
			t.Errorf("expected ErrStreamClosed after close, got %v", err)
		}
	})

	t.Run("Open Fails With Auth Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		if _, err := newService(server.URL).StreamLogs(context.Background(), "s1"); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected auth error, got %v", err)
		}
	})
}

func TestAPIServiceRaw(t *testing.T) {
	t.Run("Get Returns Error Status As Response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			fmt.Fprint(w, `{"detail": "teapot"}`)
		}))
		defer server.Close()

		resp, err := newService(server.URL).Get(context.Background(), "/api/health")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.StatusCode != http.StatusTeapot || !resp.IsJSON {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("Post Sends JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON content type")
			}
			body, _ := io.ReadAll(r.Body)
			w.Write(body)
		}))
		defer server.Close()

		resp, err := newService(server.URL).Post(context.Background(), "/echo", []byte(`{"a":1}`))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(resp.Body) != `{"a":1}` {
			t.Errorf("unexpected body %s", resp.Body)
		}
	})

	t.Run("Failed Response Body Read", func(t *testing.T) {
		client := &http.Client{
			Transport: tu.NewMockRoundTripper(&http.Response{
				StatusCode: http.StatusOK,
				Body:       &tu.FCloser{},
				Header:     make(http.Header),
			}, nil),
		}
		srv := services.NewAPIService(shared.APIConfig{BaseURL: "http://example.com"}, client)

		if _, err := srv.Get(context.Background(), "/x"); err == nil {
			t.Error("expected error for failed body read")
		}
	})
}
