// Command smoke-console runs the full admin workflow against an in-process
// fake backend: two-phase login, election and candidate CRUD through the
// list controllers, and logout. It exits non-zero on the first violation.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http/httptest"
	"time"

	"ballotdesk.org/internal/api"
	"ballotdesk.org/internal/apitest"
	"ballotdesk.org/internal/audit"
	"ballotdesk.org/internal/console"
	"ballotdesk.org/internal/obs"
	"ballotdesk.org/internal/route"
	"ballotdesk.org/internal/session"
	"ballotdesk.org/internal/token"
)

func main() {
	obs.Init()

	backend := apitest.New()
	backend.SeedUser("admin@ballotdesk.org", "admin")
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	tokens := token.NewMemoryStore()
	client, err := api.New(srv.URL, tokens, api.WithTimeout(5*time.Second))
	if err != nil {
		log.Fatalf("create client: %v", err)
	}
	sess := session.New(client, tokens)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Two-phase handshake.
	if err := sess.RequestLogin(ctx, "admin@ballotdesk.org"); err != nil {
		log.Fatalf("request login: %v", err)
	}
	loginID, password, ok := backend.Issued("admin@ballotdesk.org")
	if !ok {
		log.Fatal("no one-time credentials issued")
	}
	if err := sess.ValidateLogin(ctx, "admin@ballotdesk.org", loginID, password); err != nil {
		log.Fatalf("validate login: %v", err)
	}
	if d := route.Resolve(sess.Authenticated(), route.ElectionsPath); !d.Allow {
		log.Fatalf("navigation denied after login: %+v", d)
	}
	ctx = audit.WithActor(ctx, sess.Email())

	// Election CRUD through the controller.
	elections := console.NewController[api.Election](client.Elections(), "election", "")
	if err := elections.OpenDialog(console.ModeCreate, api.Election{
		Title:     "Municipal 2026",
		StartDate: "2026-09-01T08:00:00Z",
		EndDate:   "2026-09-01T20:00:00Z",
	}); err != nil {
		log.Fatalf("open dialog: %v", err)
	}
	if err := elections.Submit(ctx); err != nil {
		log.Fatalf("create election: %v", err)
	}
	list := elections.Collection()
	if len(list) != 1 {
		log.Fatalf("expected 1 election after create, got %d", len(list))
	}
	electionID := list[0].ID

	// Candidate CRUD scoped to the election.
	candidates := console.NewController[api.Candidate](client.Candidates(), "candidate", electionID)
	if err := candidates.OpenDialog(console.ModeCreate, api.Candidate{Name: "Jane", Party: "Green"}); err != nil {
		log.Fatalf("open dialog: %v", err)
	}
	if err := candidates.Submit(ctx); err != nil {
		log.Fatalf("create candidate: %v", err)
	}
	cands := candidates.Collection()
	if len(cands) != 1 || cands[0].Name != "Jane" || cands[0].Party != "Green" || cands[0].ID == "" {
		log.Fatalf("unexpected candidates after create: %+v", cands)
	}

	// Staged deletion.
	if err := candidates.RequestDelete(cands[0].ID); err != nil {
		log.Fatalf("request delete: %v", err)
	}
	if err := candidates.ConfirmDelete(ctx); err != nil {
		log.Fatalf("confirm delete: %v", err)
	}
	if got := candidates.Collection(); len(got) != 0 {
		log.Fatalf("expected empty candidate list, got %d", len(got))
	}
	if candidates.PendingDeleteID() != "" {
		log.Fatal("pending delete id not cleared")
	}

	// Logout closes the door.
	sess.Logout()
	if d := route.Resolve(sess.Authenticated(), route.ElectionsPath); d.RedirectTo != route.LoginPath {
		log.Fatalf("expected redirect to login after logout, got %+v", d)
	}

	fmt.Printf("✅ console smoke test passed: election=%s\n", electionID)
}
