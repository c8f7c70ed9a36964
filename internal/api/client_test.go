package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ballotdesk.org/internal/token"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, tokens token.Store) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, tokens)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestBearerAttachedWhenCredentialPresent(t *testing.T) {
	tokens := token.NewMemoryStore()
	if err := tokens.Put("T1"); err != nil {
		t.Fatal(err)
	}

	var gotAuth, gotRequestID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-Id")
		_ = json.NewEncoder(w).Encode([]Election{})
	}, tokens)

	if _, err := c.Elections().List(context.Background(), ""); err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotAuth != "Bearer T1" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatal("expected request id header")
	}
}

func TestAbsentCredentialIsNotCheckedClientSide(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode([]Election{})
	}, token.NewMemoryStore())

	// the call goes out without a credential; the server decides
	if _, err := c.Elections().List(context.Background(), ""); err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no authorization header, got %q", gotAuth)
	}
}

func TestIdempotencyKeyOnMutationsOnly(t *testing.T) {
	keys := map[string]string{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys[r.Method] = r.Header.Get("Idempotency-Key")
		_ = json.NewEncoder(w).Encode(Election{ID: "E1"})
	}, token.NewMemoryStore())
	ctx := context.Background()

	var one Election
	if err := c.do(ctx, http.MethodGet, "/elections", nil, &one); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Elections().Create(ctx, "", Election{Title: "T"}); err != nil {
		t.Fatal(err)
	}

	if keys[http.MethodGet] != "" {
		t.Fatalf("GET must not carry an idempotency key, got %q", keys[http.MethodGet])
	}
	if keys[http.MethodPost] == "" {
		t.Fatal("POST must carry an idempotency key")
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrUnavailable},
		{http.StatusInternalServerError, ErrUnavailable},
	}
	for _, tc := range cases {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
		}, token.NewMemoryStore())

		_, err := c.Elections().List(context.Background(), "")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		var apiErr *Error
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: expected *Error, got %T", tc.status, err)
		}
		if apiErr.Status != tc.status || apiErr.Message != "nope" {
			t.Fatalf("status %d: unexpected error payload %+v", tc.status, apiErr)
		}
	}
}

func TestTransportFailureMapsToUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // connection refused from here on

	c, err := New(url, token.NewMemoryStore())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Elections().List(context.Background(), ""); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCandidateCallsRequireScope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should leave the client")
	}, token.NewMemoryStore())
	ctx := context.Background()

	if _, err := c.Candidates().List(ctx, ""); !errors.Is(err, ErrMissingScope) {
		t.Fatalf("expected ErrMissingScope, got %v", err)
	}
	if _, err := c.Candidates().Create(ctx, "", Candidate{Name: "Jane"}); !errors.Is(err, ErrMissingScope) {
		t.Fatalf("expected ErrMissingScope, got %v", err)
	}
	if err := c.Candidates().Remove(ctx, "", "C1"); !errors.Is(err, ErrMissingScope) {
		t.Fatalf("expected ErrMissingScope, got %v", err)
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	if _, err := New("not-a-url", token.NewMemoryStore()); err == nil {
		t.Fatal("expected error for invalid base url")
	}
}
