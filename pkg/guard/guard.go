// Package guard decides whether a session may open a route.
package guard

import (
	"strings"

	"github.com/aiodash/aiodash/pkg/session"
)

// Redirect targets.
const (
	LoginPath = "/auth/login"
	HomePath  = "/"
)

// Access is the requirement a route places on the session.
type Access int

const (
	// Public routes are open to everyone.
	Public Access = iota
	// Guest routes are the sign-in pages; signed-in users are sent home.
	Guest
	// Protected routes need a signed-in user.
	Protected
	// Admin routes need a signed-in admin.
	Admin
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Guest:
		return "guest"
	case Protected:
		return "protected"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Route is a named path pattern. Segments starting with ':' match any
// single path segment.
type Route struct {
	Name    string
	Pattern string
	Access  Access
}

// Decision is the outcome of a guard check.
type Decision struct {
	Allow    bool
	Redirect string
	Reason   string
	Params   map[string]string
}

// Evaluate checks s against route. It reads nothing but its arguments.
func Evaluate(s session.Session, route Route) Decision {
	signedIn := s.IsAuthenticated && s.User != nil && s.Token != ""

	switch route.Access {
	case Guest:
		if signedIn {
			return Decision{Redirect: HomePath, Reason: "already signed in"}
		}
	case Protected:
		if !signedIn {
			return Decision{Redirect: LoginPath, Reason: "sign in required"}
		}
	case Admin:
		if !signedIn {
			return Decision{Redirect: LoginPath, Reason: "sign in required"}
		}
		if !s.User.IsAdmin() {
			return Decision{Redirect: HomePath, Reason: "admin role required"}
		}
	}
	return Decision{Allow: true}
}

// Match reports whether path matches the route pattern and returns the
// captured parameters.
func (r Route) Match(path string) (map[string]string, bool) {
	want := splitPath(r.Pattern)
	got := splitPath(path)
	if len(want) != len(got) {
		return nil, false
	}
	var params map[string]string
	for i, seg := range want {
		if name, ok := strings.CutPrefix(seg, ":"); ok {
			if got[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = got[i]
			continue
		}
		if seg != got[i] {
			return nil, false
		}
	}
	return params, true
}

func splitPath(p string) []string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Table is an ordered set of routes.
type Table []Route

// Match returns the first route matching path.
func (t Table) Match(path string) (Route, map[string]string, bool) {
	for _, r := range t {
		if params, ok := r.Match(path); ok {
			return r, params, true
		}
	}
	return Route{}, nil, false
}

// Lookup returns the route with the given name.
func (t Table) Lookup(name string) (Route, bool) {
	for _, r := range t {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

// Resolve matches path and evaluates its guard. Unknown paths redirect home
// for signed-in sessions and to the login page otherwise.
func (t Table) Resolve(s session.Session, path string) Decision {
	route, params, ok := t.Match(path)
	if !ok {
		if s.IsAuthenticated && s.User != nil && s.Token != "" {
			return Decision{Redirect: HomePath, Reason: "unknown route"}
		}
		return Decision{Redirect: LoginPath, Reason: "unknown route"}
	}
	d := Evaluate(s, route)
	d.Params = params
	return d
}

// DefaultRoutes is the dashboard route table.
func DefaultRoutes() Table {
	return Table{
		{Name: "login", Pattern: "/auth/login", Access: Guest},
		{Name: "register", Pattern: "/auth/register", Access: Guest},
		{Name: "forgot-password", Pattern: "/auth/forgot-password", Access: Guest},
		{Name: "reset-password", Pattern: "/auth/reset-password", Access: Public},

		{Name: "dashboard", Pattern: "/", Access: Protected},
		{Name: "brands", Pattern: "/brands", Access: Protected},
		{Name: "brand-detail", Pattern: "/brands/:brandId", Access: Protected},
		{Name: "analysis", Pattern: "/analysis", Access: Protected},
		{Name: "analysis-result", Pattern: "/analysis/result/:analysisId", Access: Protected},
		{Name: "log-analysis", Pattern: "/log-analysis", Access: Protected},
		{Name: "settings", Pattern: "/settings", Access: Protected},

		{Name: "admin", Pattern: "/admin", Access: Admin},
		{Name: "admin-users", Pattern: "/admin/users", Access: Admin},
		{Name: "admin-subscriptions", Pattern: "/admin/subscriptions", Access: Admin},
		{Name: "admin-errors", Pattern: "/admin/errors", Access: Admin},
		{Name: "admin-activity", Pattern: "/admin/activity", Access: Admin},
		{Name: "admin-improvements", Pattern: "/admin/improvements", Access: Admin},
	}
}
