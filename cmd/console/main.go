package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"ballotdesk.org/internal/api"
	"ballotdesk.org/internal/audit"
	"ballotdesk.org/internal/config"
	"ballotdesk.org/internal/console"
	"ballotdesk.org/internal/obs"
	"ballotdesk.org/internal/route"
	"ballotdesk.org/internal/session"
	"ballotdesk.org/internal/stream"
	"ballotdesk.org/internal/token"
)

var version = "0.1.0"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, "dev")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if cfg.MetricsAddr != "" {
		go func() {
			m := http.NewServeMux()
			m.Handle("/metrics", obs.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, m); err != nil {
				log.Printf("metrics listener: %v", err)
			}
		}()
	}

	tokens := token.NewFileStore(cfg.TokenPath)
	client, err := api.New(cfg.BaseURL, tokens,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithRateLimit(cfg.RatePerSecond, cfg.RateBurst),
	)
	if err != nil {
		log.Fatalf("create client: %v", err)
	}
	sess := session.New(client, tokens)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// the session only knows the actor within a single process run
	ctx := audit.WithActor(context.Background(), sess.Email())
	a := &app{cfg: cfg, client: client, sess: sess, events: stream.New()}

	switch os.Args[1] {
	case "login":
		err = a.login(ctx, os.Args[2:])
	case "logout":
		sess.Logout()
		fmt.Println("logged out")
	case "status":
		a.status()
	case "dashboard":
		err = a.dashboard(ctx)
	case "elections":
		err = a.elections(ctx, os.Args[2:])
	case "candidates":
		err = a.candidates(ctx, os.Args[2:])
	case "watch":
		err = a.watch(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: console <command>

  login <email>           two-phase admin login
  logout                  clear the stored credential
  status                  show session and navigation state
  dashboard               resource counts overview
  elections <subcommand>  list | create | update | delete
  candidates <subcommand> list | create | update | delete (requires -election)
  watch                   poll for election changes and print events`)
}

type app struct {
	cfg    config.Config
	client *api.Client
	sess   *session.Session
	events *stream.Stream
}

// login runs the full two-phase handshake interactively: request the
// one-time credentials, then read them from stdin and validate.
func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: console login <email>")
	}
	email := args[0]

	if err := a.sess.RequestLogin(ctx, email); err != nil {
		return fmt.Errorf("request login: %w", err)
	}
	fmt.Println("Login ID and password sent to your email.")

	reader := bufio.NewReader(os.Stdin)
	loginID, err := prompt(reader, "Login ID: ")
	if err != nil {
		return err
	}
	password, err := prompt(reader, "Password: ")
	if err != nil {
		return err
	}

	if err := a.sess.ValidateLogin(ctx, email, loginID, password); err != nil {
		return fmt.Errorf("validate login: %w", err)
	}

	decision := route.Resolve(a.sess.Authenticated(), route.DashboardPath)
	if !decision.Allow {
		return fmt.Errorf("login succeeded but navigation denied")
	}
	_ = audit.LogEvent(audit.WithActor(ctx, email), "session.login", map[string]any{"email": email})
	fmt.Printf("Login successful. -> %s\n", route.DashboardPath)
	return nil
}

func (a *app) status() {
	decision := route.Resolve(a.sess.Authenticated(), route.DashboardPath)
	fmt.Printf("step:          %s\n", a.sess.Step())
	fmt.Printf("authenticated: %v\n", a.sess.Authenticated())
	if decision.Allow {
		fmt.Printf("navigation:    %s allowed\n", route.DashboardPath)
	} else {
		fmt.Printf("navigation:    redirect to %s\n", decision.RedirectTo)
	}
}

func (a *app) dashboard(ctx context.Context) error {
	ctl := a.electionController("")
	defer ctl.Close()
	if err := ctl.Load(ctx); err != nil {
		return notifErr(ctl.Notification(), err)
	}
	elections := ctl.Collection()
	fmt.Printf("elections: %d\n", len(elections))
	for _, e := range elections {
		cands, err := a.client.Candidates().List(ctx, e.ID)
		if err != nil {
			return err
		}
		fmt.Printf("  %s  %-30s candidates: %d\n", e.ID, e.Title, len(cands))
	}
	return nil
}

func (a *app) elections(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: console elections list|create|update|delete")
	}
	ctl := a.electionController("")
	defer ctl.Close()

	switch args[0] {
	case "list":
		if err := ctl.Load(ctx); err != nil {
			return notifErr(ctl.Notification(), err)
		}
		for _, e := range ctl.Collection() {
			fmt.Printf("%s  %-30s %s .. %s\n", e.ID, e.Title, e.StartDate, e.EndDate)
		}
		return nil

	case "create", "update":
		fs := flag.NewFlagSet("elections "+args[0], flag.ContinueOnError)
		id := fs.String("id", "", "election id (update only)")
		title := fs.String("title", "", "title")
		description := fs.String("description", "", "description")
		start := fs.String("start", "", "start date (RFC 3339)")
		end := fs.String("end", "", "end date (RFC 3339)")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		draft := api.Election{
			ID:          *id,
			Title:       *title,
			Description: *description,
			StartDate:   *start,
			EndDate:     *end,
		}
		mode := console.ModeCreate
		if args[0] == "update" {
			if *id == "" {
				return fmt.Errorf("-id is required for update")
			}
			mode = console.ModeUpdate
		}
		if err := ctl.OpenDialog(mode, draft); err != nil {
			return err
		}
		if err := ctl.Submit(ctx); err != nil {
			return notifErr(ctl.Notification(), err)
		}
		fmt.Println(ctl.Notification().Message)
		return nil

	case "delete":
		fs := flag.NewFlagSet("elections delete", flag.ContinueOnError)
		id := fs.String("id", "", "election id")
		yes := fs.Bool("yes", false, "skip confirmation")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("-id is required")
		}
		return confirmAndDelete(ctx, ctl, *id, *yes, "election")

	default:
		return fmt.Errorf("unknown elections subcommand %q", args[0])
	}
}

func (a *app) candidates(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("candidates", flag.ContinueOnError)
	electionID := fs.String("election", "", "parent election id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if *electionID == "" {
		return fmt.Errorf("-election is required")
	}
	if len(rest) < 1 {
		return fmt.Errorf("usage: console candidates -election <id> list|create|update|delete")
	}

	ctl := console.NewController[api.Candidate](a.client.Candidates(), "candidate", *electionID,
		console.WithEvents[api.Candidate](a.events),
		console.WithOnUnauthorized[api.Candidate](a.sess.Invalidate),
	)
	defer ctl.Close()

	switch rest[0] {
	case "list":
		if err := ctl.Load(ctx); err != nil {
			return notifErr(ctl.Notification(), err)
		}
		for _, c := range ctl.Collection() {
			fmt.Printf("%s  %-24s %s\n", c.ID, c.Name, c.Party)
		}
		return nil

	case "create", "update":
		sub := flag.NewFlagSet("candidates "+rest[0], flag.ContinueOnError)
		id := sub.String("id", "", "candidate id (update only)")
		name := sub.String("name", "", "name")
		party := sub.String("party", "", "party")
		if err := sub.Parse(rest[1:]); err != nil {
			return err
		}
		draft := api.Candidate{ID: *id, Name: *name, Party: *party}
		mode := console.ModeCreate
		if rest[0] == "update" {
			if *id == "" {
				return fmt.Errorf("-id is required for update")
			}
			mode = console.ModeUpdate
		}
		if err := ctl.OpenDialog(mode, draft); err != nil {
			return err
		}
		if err := ctl.Submit(ctx); err != nil {
			return notifErr(ctl.Notification(), err)
		}
		fmt.Println(ctl.Notification().Message)
		return nil

	case "delete":
		sub := flag.NewFlagSet("candidates delete", flag.ContinueOnError)
		id := sub.String("id", "", "candidate id")
		yes := sub.Bool("yes", false, "skip confirmation")
		if err := sub.Parse(rest[1:]); err != nil {
			return err
		}
		if *id == "" {
			return fmt.Errorf("-id is required")
		}
		return confirmAndDelete(ctx, ctl, *id, *yes, "candidate")

	default:
		return fmt.Errorf("unknown candidates subcommand %q", rest[0])
	}
}

// watch polls the election list and prints a change event for every
// difference between consecutive snapshots.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	interval := fs.Duration("interval", 2*time.Second, "poll interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	events, cancel := a.events.Subscribe(64)
	defer cancel()
	go func() {
		for ev := range events {
			fmt.Printf("%s %s %s %s\n", ev.Timestamp.Format(time.RFC3339), ev.Resource, ev.Action, ev.ID)
		}
	}()

	known := make(map[string]api.Election)
	first := true
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		items, err := a.client.Elections().List(ctx, "")
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(items))
		for _, e := range items {
			seen[e.ID] = true
			prev, ok := known[e.ID]
			switch {
			case !ok && !first:
				a.events.Publish(stream.Event{Resource: "election", Action: stream.ActionCreate, ID: e.ID})
			case ok && prev != e:
				a.events.Publish(stream.Event{Resource: "election", Action: stream.ActionUpdate, ID: e.ID})
			}
			known[e.ID] = e
		}
		for id := range known {
			if !seen[id] {
				a.events.Publish(stream.Event{Resource: "election", Action: stream.ActionDelete, ID: id})
				delete(known, id)
			}
		}
		first = false
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *app) electionController(scope string) *console.Controller[api.Election] {
	return console.NewController[api.Election](a.client.Elections(), "election", scope,
		console.WithEvents[api.Election](a.events),
		console.WithOnUnauthorized[api.Election](a.sess.Invalidate),
	)
}

func confirmAndDelete[T api.Resource](ctx context.Context, ctl *console.Controller[T], id string, yes bool, kind string) error {
	if err := ctl.RequestDelete(id); err != nil {
		return err
	}
	if !yes {
		reader := bufio.NewReader(os.Stdin)
		answer, err := prompt(reader, fmt.Sprintf("Delete %s %s? [y/N] ", kind, id))
		if err != nil {
			return err
		}
		if !strings.EqualFold(answer, "y") {
			ctl.CancelDelete()
			fmt.Println("cancelled")
			return nil
		}
	}
	if err := ctl.ConfirmDelete(ctx); err != nil {
		return notifErr(ctl.Notification(), err)
	}
	fmt.Println(ctl.Notification().Message)
	return nil
}

func prompt(r *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func notifErr(n console.Notification, err error) error {
	if n.Visible && n.Severity == console.SeverityError {
		return fmt.Errorf("%s (%w)", strings.TrimSuffix(n.Message, "."), err)
	}
	return err
}
