package shared

import (
	"fmt"
	"net/url"
	"strings"
)

// SessionQueryParam is the query parameter that carries a session id in shareable links.
const SessionQueryParam = "session"

// ShareURL embeds sessionID into base as the ?session= query parameter, keeping any other parameters.
func ShareURL(base, sessionID string) (string, error) {
	if sessionID == "" {
		return "", fmt.Errorf("%w: session id", ErrMissingArgument)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: share url %q: %v", ErrInvalidConfig, base, err)
	}

	q := u.Query()
	q.Set(SessionQueryParam, sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseSessionRef accepts either a bare session id or a shareable link and returns the session id.
func ParseSessionRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: session id or link", ErrMissingArgument)
	}

	if !strings.Contains(ref, "://") && !strings.Contains(ref, "?") {
		return ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a session id or link", ErrInvalidArgument, ref)
	}

	id := strings.TrimSpace(u.Query().Get(SessionQueryParam))
	if id == "" {
		return "", fmt.Errorf("%w: link %q has no %s parameter", ErrInvalidArgument, ref, SessionQueryParam)
	}

	return id, nil
}
