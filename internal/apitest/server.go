// Package apitest provides an in-memory election API server speaking the
// same HTTP/JSON contract as the production backend. Tests, the smoke
// runner and local development use it in place of a live deployment.
package apitest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ballotdesk.org/internal/api"
	"ballotdesk.org/internal/ids"
)

const (
	issuer   = "ballotdesk-apitest"
	tokenTTL = time.Hour
)

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type loginCreds struct {
	LoginID  string
	Password string
}

// Server is the fake backend. All state is in memory.
type Server struct {
	secret []byte
	router *mux.Router

	mu             sync.Mutex
	users          map[string]api.User
	pending        map[string]loginCreds
	elections      map[string]api.Election
	electionOrder  []string
	candidates     map[string]api.Candidate
	candidateOrder []string
	failStatus     int
}

// New creates an empty server with a random signing secret.
func New() *Server {
	s := &Server{
		secret:     []byte(uuid.NewString()),
		users:      make(map[string]api.User),
		pending:    make(map[string]loginCreds),
		elections:  make(map[string]api.Election),
		candidates: make(map[string]api.Candidate),
	}

	r := mux.NewRouter()
	r.HandleFunc("/login", s.handleRequestLogin).Methods(http.MethodPost)
	r.HandleFunc("/validate-login", s.handleValidateLogin).Methods(http.MethodPost)

	r.Handle("/elections", s.withAuth(s.handleListElections)).Methods(http.MethodGet)
	r.Handle("/elections", s.withAuth(s.handleCreateElection)).Methods(http.MethodPost)
	r.Handle("/elections/{id}", s.withAuth(s.handleUpdateElection)).Methods(http.MethodPut)
	r.Handle("/elections/{id}", s.withAuth(s.handleDeleteElection)).Methods(http.MethodDelete)

	r.Handle("/candidates/{electionID}", s.withAuth(s.handleListCandidates)).Methods(http.MethodGet)
	r.Handle("/candidates/{electionID}", s.withAuth(s.handleCreateCandidate)).Methods(http.MethodPost)
	r.Handle("/candidates/{electionID}/{candidateID}", s.withAuth(s.handleUpdateCandidate)).Methods(http.MethodPut)
	r.Handle("/candidates/{electionID}/{candidateID}", s.withAuth(s.handleDeleteCandidate)).Methods(http.MethodDelete)
	r.Handle("/candidate/{id}", s.withAuth(s.handleGetCandidate)).Methods(http.MethodGet)

	s.router = r
	return s
}

// Handler returns the HTTP handler, ready for httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.router }

// SeedUser registers an account that may request a login.
func (s *Server) SeedUser(email, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = api.User{ID: ids.New(), Email: email, Role: role}
}

// Issued returns the one-time credentials generated for the email. It is
// the test stand-in for the out-of-band delivery channel.
func (s *Server) Issued(email string) (loginID, password string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	creds, ok := s.pending[email]
	return creds.LoginID, creds.Password, ok
}

// FailNext makes the next authenticated resource request fail with the
// given status.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
}

// Elections returns a snapshot of stored elections in insertion order.
func (s *Server) Elections() []api.Election {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.electionsLocked()
}

// Identity ----------------------------------------------------------------

func (s *Server) handleRequestLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	s.pending[email] = loginCreds{
		LoginID:  ids.New(),
		Password: uuid.NewString(),
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "login id and password sent",
	})
}

func (s *Server) handleValidateLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email         string `json:"email"`
		LoginID       string `json:"loginId"`
		LoginPassword string `json:"loginPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(req.Email)

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	creds, pendingOK := s.pending[email]
	if !ok || !pendingOK || creds.LoginID != req.LoginID || creds.Password != req.LoginPassword {
		writeError(w, http.StatusUnauthorized, "invalid login credentials")
		return
	}
	delete(s.pending, email)

	token, err := s.mintToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token generation failed")
		return
	}
	writeJSON(w, http.StatusOK, api.ValidateLoginResponse{Token: token, User: user})
}

func (s *Server) mintToken(user api.User) (string, error) {
	now := time.Now().UTC()
	c := claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

func (s *Server) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		})
		if err != nil || !parsed.Valid {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		c, ok := parsed.Claims.(*claims)
		if !ok || c.Issuer != issuer {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		s.mu.Lock()
		fail := s.failStatus
		s.failStatus = 0
		s.mu.Unlock()
		if fail != 0 {
			writeError(w, fail, "injected failure")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// Elections ---------------------------------------------------------------

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.electionsLocked())
}

func (s *Server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var draft api.Election
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(draft.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	draft.ID = ids.New()
	s.elections[draft.ID] = draft
	s.electionOrder = append(s.electionOrder, draft.ID)
	writeJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleUpdateElection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var draft api.Election
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[id]; !ok {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	draft.ID = id
	s.elections[id] = draft
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleDeleteElection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[id]; !ok {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	delete(s.elections, id)
	s.electionOrder = remove(s.electionOrder, id)
	// candidates cannot outlive their parent election
	for cid, cand := range s.candidates {
		if cand.ElectionID == id {
			delete(s.candidates, cid)
			s.candidateOrder = remove(s.candidateOrder, cid)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *Server) electionsLocked() []api.Election {
	out := make([]api.Election, 0, len(s.electionOrder))
	for _, id := range s.electionOrder {
		out = append(out, s.elections[id])
	}
	return out
}

// Candidates --------------------------------------------------------------

func (s *Server) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["electionID"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[electionID]; !ok {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	out := make([]api.Candidate, 0)
	for _, id := range s.candidateOrder {
		if cand := s.candidates[id]; cand.ElectionID == electionID {
			out = append(out, cand)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	electionID := mux.Vars(r)["electionID"]
	var draft api.Candidate
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(draft.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[electionID]; !ok {
		writeError(w, http.StatusNotFound, "election not found")
		return
	}
	draft.ID = ids.New()
	draft.ElectionID = electionID
	s.candidates[draft.ID] = draft
	s.candidateOrder = append(s.candidateOrder, draft.ID)
	writeJSON(w, http.StatusCreated, draft)
}

func (s *Server) handleUpdateCandidate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	electionID, candidateID := vars["electionID"], vars["candidateID"]
	var draft api.Candidate
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.candidates[candidateID]
	if !ok || existing.ElectionID != electionID {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	draft.ID = candidateID
	draft.ElectionID = electionID
	s.candidates[candidateID] = draft
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	electionID, candidateID := vars["electionID"], vars["candidateID"]

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.candidates[candidateID]
	if !ok || existing.ElectionID != electionID {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	delete(s.candidates, candidateID)
	s.candidateOrder = remove(s.candidateOrder, candidateID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": candidateID})
}

func (s *Server) handleGetCandidate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	cand, ok := s.candidates[id]
	if !ok {
		writeError(w, http.StatusNotFound, "candidate not found")
		return
	}
	writeJSON(w, http.StatusOK, cand)
}

// Helpers -----------------------------------------------------------------

func remove(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}
