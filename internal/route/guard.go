package route

// Console paths.
const (
	LoginPath      = "/login"
	DashboardPath  = "/dashboard"
	ElectionsPath  = "/elections"
	CandidatesPath = "/candidates"
)

// Decision is the outcome of a navigation request.
type Decision struct {
	Allow      bool
	RedirectTo string
}

var protected = map[string]bool{
	DashboardPath:  true,
	ElectionsPath:  true,
	CandidatesPath: true,
}

// Resolve maps the authentication state and requested path to a navigation
// decision. It is a pure function: guard state is derived from the session
// on every navigation, never stored, so it can not go stale after logout.
// The root path and unknown paths always redirect to login.
func Resolve(authenticated bool, path string) Decision {
	if path == LoginPath {
		return Decision{Allow: true}
	}
	if protected[path] {
		if authenticated {
			return Decision{Allow: true}
		}
		return Decision{RedirectTo: LoginPath}
	}
	return Decision{RedirectTo: LoginPath}
}
