package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// realtimePath is the upstream realtime endpoint path.
const realtimePath = "/openai/realtime"

// dialUpstream opens the upstream realtime connection for a session,
// authenticating with the session's API key header or a freshly provided
// bearer token.
func dialUpstream(ctx context.Context, s *Session) (Conn, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("relay: invalid endpoint %q: %w", s.endpoint, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	default:
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + realtimePath

	q := u.Query()
	q.Set("api-version", s.apiVersion)
	q.Set("deployment", s.deployment)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	if s.apiKey != "" {
		headers.Set("api-key", s.apiKey)
	} else {
		token, err := s.tokenProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("relay: token provider: %w", err)
		}
		headers.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		e := &Error{
			Code:    "connection_failed",
			Message: fmt.Sprintf("dial %s: %v", u.Host, err),
		}
		if resp != nil {
			e.HTTPStatus = resp.StatusCode
		}
		return nil, e
	}
	return conn, nil
}
