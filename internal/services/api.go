// API service for the book cleaning backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/desertthunder/bookclean/internal/models"
	"github.com/desertthunder/bookclean/internal/shared"
	"golang.org/x/time/rate"
)

const defaultBaseURL string = "http://127.0.0.1:8000"

// APIService implements [Backend] over HTTP.
type APIService struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	limiter      *rate.Limiter

	mu    sync.RWMutex
	creds Credentials
}

// NewAPIService creates a client for the backend described by cfg.
//
// Streams use a copy of client without its overall timeout so long subscriptions are not cut off.
func NewAPIService(cfg shared.APIConfig, client *http.Client) *APIService {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	streamClient := *client
	streamClient.Timeout = 0

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &APIService{
		baseURL:      baseURL,
		httpClient:   client,
		streamClient: &streamClient,
		limiter:      rate.NewLimiter(limit, 1),
		creds:        Credentials{Username: cfg.Username, Password: cfg.Password},
	}
}

// BaseURL returns the backend root this client talks to.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// SetCredentials attaches basic auth credentials to later requests.
func (a *APIService) SetCredentials(creds Credentials) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.creds = creds
}

// Credentials returns the credentials currently in use.
func (a *APIService) Credentials() Credentials {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.creds
}

func sessionPath(id string, parts ...string) string {
	p := "/api/sessions/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

func (a *APIService) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if creds := a.Credentials(); !creds.Empty() {
		req.SetBasicAuth(creds.Username, creds.Password)
	}
	return req, nil
}

// send waits for the limiter, performs the request and maps error statuses.
//
// On success the caller owns the response body.
func (a *APIService) send(client *http.Client, req *http.Request) (*http.Response, error) {
	if err := a.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", shared.ErrAPIRequest, err)
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := fmt.Sprintf("status %d", resp.StatusCode)
	var errResp struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errResp); err == nil && errResp.Detail != "" {
		detail = fmt.Sprintf("status %d: %s", resp.StatusCode, errResp.Detail)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, detail)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, detail)
	default:
		return fmt.Errorf("%w: %s", shared.ErrAPIRequest, detail)
	}
}

// doJSON sends an optional JSON body and decodes an optional JSON result.
func (a *APIService) doJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := a.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.send(a.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}
	return nil
}

// Upload sends the file as multipart field "file".
//
// Calls POST /api/upload.
func (a *APIService) Upload(ctx context.Context, filename string, r io.Reader) (*models.Session, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := a.newRequest(ctx, http.MethodPost, "/api/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.send(a.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var session models.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("%w: failed to decode session: %v", shared.ErrAPIRequest, err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("%w: upload returned no session id", shared.ErrAPIRequest)
	}
	if session.Filename == "" {
		session.Filename = filepath.Base(filename)
	}
	if session.Status == models.SessionUnknown {
		session.Status = models.SessionProcessing
	}
	return &session, nil
}

// StartProcessing calls POST /api/sessions/{id}/process.
func (a *APIService) StartProcessing(ctx context.Context, sessionID string, opts models.ProcessOptions) error {
	return a.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "process"), opts, nil)
}

// GetSession calls GET /api/sessions/{id}.
func (a *APIService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var session models.Session
	if err := a.doJSON(ctx, http.MethodGet, sessionPath(sessionID), nil, &session); err != nil {
		return nil, err
	}
	if session.ID == "" {
		session.ID = sessionID
	}
	return &session, nil
}

// UpdateChange calls PUT /api/sessions/{id}/changes/{changeId}.
func (a *APIService) UpdateChange(ctx context.Context, sessionID, changeID string, status models.ChangeStatus, proposed string) error {
	body := struct {
		Status       string `json:"status"`
		ProposedText string `json:"proposed_text"`
	}{status.String(), proposed}

	return a.doJSON(ctx, http.MethodPut, sessionPath(sessionID, "changes", url.PathEscape(changeID)), body, nil)
}

// AcceptAllChanges calls POST /api/sessions/{id}/changes/accept-all.
func (a *APIService) AcceptAllChanges(ctx context.Context, sessionID string) error {
	return a.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "changes", "accept-all"), nil, nil)
}

// Cancel calls POST /api/sessions/{id}/cancel.
func (a *APIService) Cancel(ctx context.Context, sessionID string) error {
	return a.doJSON(ctx, http.MethodPost, sessionPath(sessionID, "cancel"), nil, nil)
}

// Export calls GET /api/sessions/{id}/export and reads the whole artifact.
func (a *APIService) Export(ctx context.Context, sessionID string) (*Artifact, error) {
	req, err := a.newRequest(ctx, http.MethodGet, sessionPath(sessionID, "export"), nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.send(a.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read artifact: %v", shared.ErrAPIRequest, err)
	}

	artifact := &Artifact{ContentType: resp.Header.Get("Content-Type"), Data: data}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		artifact.Filename = filepath.Base(params["filename"])
	}
	return artifact, nil
}

// StreamLogs calls GET /api/sessions/{id}/logs.
func (a *APIService) StreamLogs(ctx context.Context, sessionID string) (Stream[models.LogLine], error) {
	body, err := a.openStream(ctx, sessionPath(sessionID, "logs"))
	if err != nil {
		return nil, err
	}
	return newEventStream(body, decodeLogLine), nil
}

// StreamStatus calls GET /api/sessions/{id}/status.
func (a *APIService) StreamStatus(ctx context.Context, sessionID string) (Stream[models.StatusUpdate], error) {
	body, err := a.openStream(ctx, sessionPath(sessionID, "status"))
	if err != nil {
		return nil, err
	}
	return newEventStream(body, decodeStatus), nil
}

func (a *APIService) openStream(ctx context.Context, path string) (io.ReadCloser, error) {
	req, err := a.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := a.send(a.streamClient, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET request to the specified path and returns the raw response.
//
// Error statuses are returned as responses, not errors, so they can be inspected.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := a.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return a.raw(req)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	req, err := a.newRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.raw(req)
}

func (a *APIService) raw(req *http.Request) (*APIResponse, error) {
	if err := a.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

var _ Backend = (*APIService)(nil)
