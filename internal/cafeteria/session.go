package cafeteria

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Credentials identify the kiosk user on every request.
type Credentials struct {
	UserID string
	Token  string
}

// RefreshFunc obtains fresh credentials after the backend rejected the
// current ones.
type RefreshFunc func(ctx context.Context) (Credentials, error)

// Session is the request context shared by every call a Client makes. It
// replaces mutating shared default headers: credentials live here and are
// applied per request.
type Session struct {
	mu      sync.RWMutex
	creds   Credentials
	refresh RefreshFunc
	flight  singleflight.Group
}

// NewSession returns a session carrying creds. refresh may be nil, in which
// case a 401 is reported to the caller as is.
func NewSession(creds Credentials, refresh RefreshFunc) *Session {
	return &Session{creds: creds, refresh: refresh}
}

// Credentials returns the credentials currently applied to requests.
func (s *Session) Credentials() Credentials {
	if s == nil {
		return Credentials{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// CanRefresh reports whether a RefreshFunc was configured.
func (s *Session) CanRefresh() bool {
	return s != nil && s.refresh != nil
}

// Refresh runs the RefreshFunc. Concurrent callers share a single in-flight
// refresh and all receive its result.
func (s *Session) Refresh(ctx context.Context) (Credentials, error) {
	if !s.CanRefresh() {
		return Credentials{}, fmt.Errorf("session has no refresh function")
	}
	ch := s.flight.DoChan("refresh", func() (any, error) {
		creds, err := s.refresh(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.creds = creds
		s.mu.Unlock()
		return creds, nil
	})
	select {
	case <-ctx.Done():
		return Credentials{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Credentials{}, fmt.Errorf("refresh credentials: %w", res.Err)
		}
		return res.Val.(Credentials), nil
	}
}

func (s *Session) apply(req *http.Request) {
	creds := s.Credentials()
	if id := strings.TrimSpace(creds.UserID); id != "" {
		req.Header.Set("User-Id", id)
	}
	if token := strings.TrimSpace(creds.Token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
