package session

import (
	"context"
	"errors"
	"testing"

	"ballotdesk.org/internal/api"
	"ballotdesk.org/internal/token"
)

type fakeIdentity struct {
	requestErr   error
	validateErr  error
	validateResp api.ValidateLoginResponse
	started      chan struct{} // closed when a blocking call enters
	release      chan struct{} // when set, calls block until it closes
}

func (f *fakeIdentity) block() {
	if f.started != nil {
		close(f.started)
		f.started = nil
	}
	if f.release != nil {
		<-f.release
	}
}

func (f *fakeIdentity) RequestLogin(ctx context.Context, email string) error {
	f.block()
	return f.requestErr
}

func (f *fakeIdentity) ValidateLogin(ctx context.Context, email, loginID, loginPassword string) (api.ValidateLoginResponse, error) {
	f.block()
	if f.validateErr != nil {
		return api.ValidateLoginResponse{}, f.validateErr
	}
	return f.validateResp, nil
}

func TestAdminHandshake(t *testing.T) {
	identity := &fakeIdentity{
		validateResp: api.ValidateLoginResponse{
			Token: "T1",
			User:  api.User{Email: "a@x.com", Role: "admin"},
		},
	}
	tokens := token.NewMemoryStore()
	s := New(identity, tokens)
	ctx := context.Background()

	if s.Step() != StepRequestingLogin {
		t.Fatalf("expected initial step, got %v", s.Step())
	}
	if err := s.RequestLogin(ctx, "a@x.com"); err != nil {
		t.Fatalf("RequestLogin: %v", err)
	}
	if s.Step() != StepAwaitingValidation {
		t.Fatalf("expected awaiting validation, got %v", s.Step())
	}
	if s.Authenticated() {
		t.Fatal("must not be authenticated before validation")
	}

	if err := s.ValidateLogin(ctx, "a@x.com", "L1", "P1"); err != nil {
		t.Fatalf("ValidateLogin: %v", err)
	}
	if !s.Authenticated() {
		t.Fatal("expected authenticated after admin validation")
	}
	got, err := tokens.Get()
	if err != nil || got != "T1" {
		t.Fatalf("expected stored token T1, got %q (%v)", got, err)
	}
}

func TestNonAdminRoleIsRejectedAndTokenCleared(t *testing.T) {
	identity := &fakeIdentity{
		validateResp: api.ValidateLoginResponse{
			Token: "T2",
			User:  api.User{Email: "a@x.com", Role: "voter"},
		},
	}
	tokens := token.NewMemoryStore()
	s := New(identity, tokens)
	ctx := context.Background()

	if err := s.RequestLogin(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	err := s.ValidateLogin(ctx, "a@x.com", "L1", "P1")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if s.Authenticated() {
		t.Fatal("must not be authenticated for non-admin role")
	}
	if _, err := tokens.Get(); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected credential cleared after rejection, got %v", err)
	}
	if s.Step() != StepAwaitingValidation {
		t.Fatalf("rejection must not change step, got %v", s.Step())
	}
}

func TestCallsOutsideTheirStepFail(t *testing.T) {
	identity := &fakeIdentity{}
	s := New(identity, token.NewMemoryStore())
	ctx := context.Background()

	if err := s.ValidateLogin(ctx, "a@x.com", "L1", "P1"); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep before request, got %v", err)
	}
	if err := s.RequestLogin(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	if err := s.RequestLogin(ctx, "a@x.com"); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("expected ErrInvalidStep for repeated request, got %v", err)
	}
}

func TestRequestFailureKeepsStep(t *testing.T) {
	identity := &fakeIdentity{requestErr: api.ErrUnavailable}
	s := New(identity, token.NewMemoryStore())
	ctx := context.Background()

	if err := s.RequestLogin(ctx, "a@x.com"); !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected request failure, got %v", err)
	}
	if s.Step() != StepRequestingLogin {
		t.Fatalf("failure must not advance step, got %v", s.Step())
	}

	// a later attempt from the same step is still valid
	identity.requestErr = nil
	if err := s.RequestLogin(ctx, "a@x.com"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestValidateFailureKeepsStepAndState(t *testing.T) {
	identity := &fakeIdentity{validateErr: api.ErrUnavailable}
	s := New(identity, token.NewMemoryStore())
	ctx := context.Background()

	if err := s.RequestLogin(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	if err := s.ValidateLogin(ctx, "a@x.com", "L1", "P1"); !errors.Is(err, api.ErrUnavailable) {
		t.Fatalf("expected validate failure, got %v", err)
	}
	if s.Step() != StepAwaitingValidation || s.Authenticated() {
		t.Fatalf("failure corrupted state: step=%v auth=%v", s.Step(), s.Authenticated())
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	identity := &fakeIdentity{
		validateResp: api.ValidateLoginResponse{
			Token: "T1",
			User:  api.User{Email: "a@x.com", Role: "admin"},
		},
	}
	tokens := token.NewMemoryStore()
	s := New(identity, tokens)
	ctx := context.Background()

	if err := s.RequestLogin(ctx, "a@x.com"); err != nil {
		t.Fatal(err)
	}
	if err := s.ValidateLogin(ctx, "a@x.com", "L1", "P1"); err != nil {
		t.Fatal(err)
	}

	s.Logout()
	s.Logout()

	if s.Authenticated() {
		t.Fatal("expected unauthenticated after logout")
	}
	if s.Step() != StepRequestingLogin {
		t.Fatalf("expected initial step after logout, got %v", s.Step())
	}
	if _, err := tokens.Get(); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected credential cleared, got %v", err)
	}
}

func TestConcurrentCallIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	identity := &fakeIdentity{started: started, release: release}
	s := New(identity, token.NewMemoryStore())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- s.RequestLogin(ctx, "a@x.com")
	}()

	<-started // first call holds the busy slot
	if err := s.RequestLogin(ctx, "b@x.com"); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first call failed: %v", err)
	}
}
