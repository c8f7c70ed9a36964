package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ballotdesk.org/internal/api"
	"ballotdesk.org/internal/token"
)

// AdminRole is the only role allowed into the console.
const AdminRole = "admin"

// Step identifies the login handshake state.
type Step int

const (
	// StepRequestingLogin is the initial state: no login requested yet.
	StepRequestingLogin Step = iota
	// StepAwaitingValidation means a one-time login id and password were
	// sent out of band and the session waits for them.
	StepAwaitingValidation
)

func (s Step) String() string {
	switch s {
	case StepRequestingLogin:
		return "requesting_login"
	case StepAwaitingValidation:
		return "awaiting_validation"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidStep indicates a call issued outside its handshake step.
	ErrInvalidStep = errors.New("session: call not valid in current step")
	// ErrBusy indicates another call is already in flight.
	ErrBusy = errors.New("session: a call is already in flight")
	// ErrAccessDenied indicates validate-login succeeded on the wire but
	// the returned role is not admin. The credential is cleared.
	ErrAccessDenied = errors.New("session: access denied, admin role required")
)

// IdentityClient is the slice of the API client the session depends on.
type IdentityClient interface {
	RequestLogin(ctx context.Context, email string) error
	ValidateLogin(ctx context.Context, email, loginID, loginPassword string) (api.ValidateLoginResponse, error)
}

// Session drives the two-phase login handshake and owns the authenticated
// flag the route guard consults. Failures never advance the step, so
// repeated failures keep the user where they are. At most one call runs at
// a time.
type Session struct {
	mu            sync.Mutex
	identity      IdentityClient
	tokens        token.Store
	step          Step
	email         string
	authenticated bool
	busy          bool
	user          api.User
}

// New creates a fresh session in StepRequestingLogin. A surviving stored
// credential does not restore authentication; only a full handshake does.
func New(identity IdentityClient, tokens token.Store) *Session {
	return &Session{identity: identity, tokens: tokens}
}

// RequestLogin triggers out-of-band delivery of one-time credentials.
// On success the session advances to StepAwaitingValidation.
func (s *Session) RequestLogin(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("session: email is required")
	}

	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.step != StepRequestingLogin {
		s.mu.Unlock()
		return ErrInvalidStep
	}
	s.busy = true
	s.mu.Unlock()

	err := s.identity.RequestLogin(ctx, email)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return err
	}
	s.step = StepAwaitingValidation
	s.email = email
	return nil
}

// ValidateLogin exchanges the one-time credentials for a bearer token. The
// token is persisted first; if the returned role is not admin the stored
// credential is cleared again and ErrAccessDenied is returned, leaving the
// session unauthenticated and still awaiting validation.
func (s *Session) ValidateLogin(ctx context.Context, email, loginID, loginPassword string) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.step != StepAwaitingValidation {
		s.mu.Unlock()
		return ErrInvalidStep
	}
	s.busy = true
	s.mu.Unlock()

	resp, err := s.identity.ValidateLogin(ctx, email, loginID, loginPassword)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return err
	}
	if resp.Token != "" {
		if err := s.tokens.Put(resp.Token); err != nil {
			return err
		}
	}
	if !strings.EqualFold(resp.User.Role, AdminRole) {
		_ = s.tokens.Clear()
		return ErrAccessDenied
	}
	s.authenticated = true
	s.user = resp.User
	return nil
}

// Logout clears the credential and resets the session. Always succeeds and
// is idempotent.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.tokens.Clear()
	s.authenticated = false
	s.step = StepRequestingLogin
	s.email = ""
	s.user = api.User{}
}

// Invalidate forces a logout after the server rejected the credential.
func (s *Session) Invalidate() {
	s.Logout()
}

// Authenticated reports whether the admin handshake completed.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Step returns the current handshake step.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Email returns the address the handshake was started for.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// User returns the identity record from the last successful validation.
func (s *Session) User() api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}
