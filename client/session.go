package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/user"
)

// ErrNoSession is returned when a call needs a session and there is none, the caller must log in again.
var ErrNoSession = &Problem{Kind: core.KindUnauthorized, Status: http.StatusUnauthorized, Message: "no active session"}

// SessionInfo is the session context of the logged in user.
type SessionInfo struct {
	Token  string    `json:"token"`
	RoleID *int      `json:"roleId"`
	Role   string    `json:"role"`
	User   user.User `json:"user"`
}

func (si SessionInfo) HasRole(roleID int) bool {
	return si.RoleID != nil && *si.RoleID == roleID
}

// Session holds the token, role and identity of the current user for the whole process.
type Session struct {
	c *Client

	mu   sync.RWMutex
	info *SessionInfo
}

// NewSession makes c send the session token with every request.
func NewSession(c *Client) *Session {
	s := &Session{c: c}
	c.token = s.Token
	return s
}

func (s *Session) Client() *Client {
	return s.c
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil {
		return ""
	}
	return s.info.Token
}

// Info returns the current session context or ErrNoSession.
func (s *Session) Info() (SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.info == nil || s.info.Token == "" {
		return SessionInfo{}, ErrNoSession
	}
	return *s.info, nil
}

// Login authenticates, then resolves the session context once.
func (s *Session) Login(ctx context.Context, username, password string) (SessionInfo, error) {
	var tok struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := s.c.Post(ctx, "/v1/auth/login", body, &tok); err != nil {
		return SessionInfo{}, err
	}

	s.set(&SessionInfo{Token: tok.Token})
	info, err := s.Refresh(ctx)
	if err != nil {
		s.clear()
		return SessionInfo{}, err
	}
	return info, nil
}

// Refresh fetches the session context again, a rejected token ends the session.
func (s *Session) Refresh(ctx context.Context) (SessionInfo, error) {
	if s.Token() == "" {
		return SessionInfo{}, ErrNoSession
	}
	var info SessionInfo
	if err := s.c.Get(ctx, "/v1/auth/session", nil, &info); err != nil {
		if AsProblem(err).Kind == core.KindUnauthorized {
			s.clear()
		}
		return SessionInfo{}, err
	}
	s.set(&info)
	return info, nil
}

// Role returns the role ID of the session user, fetching the session context if it was not resolved yet.
func (s *Session) Role(ctx context.Context) (*int, error) {
	info, err := s.Info()
	if err != nil {
		return nil, err
	}
	if info.User.ID == 0 {
		if info, err = s.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return info.RoleID, nil
}

// IsExecutive reports whether the session user is an executive.
func (s *Session) IsExecutive() bool {
	info, err := s.Info()
	return err == nil && info.HasRole(role.Executive)
}

// Logout revokes the token server-side and forgets the session, whatever the outcome of the revocation.
func (s *Session) Logout(ctx context.Context) error {
	if s.Token() == "" {
		return ErrNoSession
	}
	defer s.clear()
	err := s.c.Post(ctx, "/v1/auth/logout", nil, nil)
	if err != nil && AsProblem(err).Kind == core.KindUnauthorized {
		return nil
	}
	return err
}

func (s *Session) set(info *SessionInfo) {
	s.mu.Lock()
	s.info = info
	s.mu.Unlock()
}

func (s *Session) clear() {
	s.set(nil)
}
