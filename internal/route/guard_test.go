package route

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		name          string
		authenticated bool
		path          string
		allow         bool
		redirectTo    string
	}{
		{"login always allowed", false, LoginPath, true, ""},
		{"login allowed when authenticated", true, LoginPath, true, ""},
		{"root redirects to login", true, "/", false, LoginPath},
		{"unknown path redirects to login", true, "/settings", false, LoginPath},
		{"dashboard denied unauthenticated", false, DashboardPath, false, LoginPath},
		{"dashboard allowed authenticated", true, DashboardPath, true, ""},
		{"elections denied unauthenticated", false, ElectionsPath, false, LoginPath},
		{"elections allowed authenticated", true, ElectionsPath, true, ""},
		{"candidates denied unauthenticated", false, CandidatesPath, false, LoginPath},
		{"candidates allowed authenticated", true, CandidatesPath, true, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Resolve(tc.authenticated, tc.path)
			if d.Allow != tc.allow {
				t.Fatalf("allow = %v, want %v", d.Allow, tc.allow)
			}
			if d.RedirectTo != tc.redirectTo {
				t.Fatalf("redirectTo = %q, want %q", d.RedirectTo, tc.redirectTo)
			}
		})
	}
}

func TestResolveRecomputesAfterLogout(t *testing.T) {
	// Guard state is derived, never stored: the same call with a flipped
	// flag must flip the decision deterministically.
	if d := Resolve(true, ElectionsPath); !d.Allow {
		t.Fatalf("expected allow while authenticated, got %+v", d)
	}
	if d := Resolve(false, ElectionsPath); d.Allow || d.RedirectTo != LoginPath {
		t.Fatalf("expected redirect to login after logout, got %+v", d)
	}
}
