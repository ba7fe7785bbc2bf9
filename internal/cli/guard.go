package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aiodash/aiodash/pkg/guard"
)

// DeniedError is returned when the session may not run a command.
type DeniedError struct {
	Command  string
	Route    guard.Route
	Decision guard.Decision
}

func (e *DeniedError) Error() string {
	switch e.Decision.Redirect {
	case guard.LoginPath:
		return fmt.Sprintf("%s: %s; run 'dashboard login' first", e.Command, e.Decision.Reason)
	default:
		return fmt.Sprintf("%s: %s (redirected to %s)", e.Command, e.Decision.Reason, e.Decision.Redirect)
	}
}

// guarded runs fn only if the session passes the guard of the named route.
func (a *app) guarded(route string, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		r, ok := a.routes.Lookup(route)
		if !ok {
			return fmt.Errorf("unknown route %q", route)
		}
		d := guard.Evaluate(a.store.Snapshot(), r)
		if !d.Allow {
			a.log.Debug("command denied by guard")
			return &DeniedError{Command: cmd.CommandPath(), Route: r, Decision: d}
		}
		return fn(cmd, args)
	}
}
