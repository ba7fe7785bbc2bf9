package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/aiodash/aiodash/pkg/protocol"
)

func (a *app) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin console (admin role required)",
	}
	cmd.AddCommand(
		a.adminUsersCmd(),
		a.adminToggleStatusCmd(),
		a.adminSetRoleCmd(),
		a.adminSubscriptionsCmd(),
		a.adminSubscriptionCmd(),
		a.adminOverviewCmd(),
		a.adminAPIUsageCmd(),
		a.adminErrorsCmd(),
		a.adminResolveErrorCmd(),
		a.adminActivityCmd(),
		a.adminImprovementsCmd(),
		a.adminUpdateImprovementCmd(),
	)
	return cmd
}

func (a *app) adminUsersCmd() *cobra.Command {
	var f protocol.UserFilter
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&f.Role, "role", "", "only users with this role")
	cmd.Flags().StringVar(&f.Status, "status", "", "active or inactive")
	cmd.Flags().StringVar(&f.Search, "search", "", "match email or name")
	cmd.RunE = a.guarded("admin-users", func(cmd *cobra.Command, args []string) error {
		list, err := a.svc.AdminUsers(cmd.Context(), f)
		if err != nil {
			return failed(err, "Could not load users")
		}
		return a.render(list, func() rows {
			r := rows{headers: []string{"ID", "Email", "Name", "Role", "Active", "Plan", "Last login"}}
			for _, u := range list.Users {
				r.add(u.ID, u.Email, orDash(u.FullName), u.Role, yesNo(u.IsActive), orDash(u.SubscriptionPlan), orDash(u.LastLogin))
			}
			return r
		})
	})
	return cmd
}

func (a *app) adminToggleStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle-status USER_ID",
		Short: "Activate or deactivate a user",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.guarded("admin-users", func(cmd *cobra.Command, args []string) error {
		if err := a.svc.ToggleUserStatus(cmd.Context(), args[0]); err != nil {
			return failed(err, "Failed to update user status")
		}
		a.success("User status updated")
		return nil
	})
	return cmd
}

func (a *app) adminSetRoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "set-role USER_ID ROLE",
		Short:     "Change a user's role (client or admin)",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{protocol.RoleClient, protocol.RoleAdmin},
	}
	cmd.RunE = a.guarded("admin-users", func(cmd *cobra.Command, args []string) error {
		if err := a.svc.UpdateUserRole(cmd.Context(), args[0], args[1]); err != nil {
			return failed(err, "Failed to update user role")
		}
		a.success("User role set to %s", args[1])
		return nil
	})
	return cmd
}

func (a *app) adminSubscriptionsCmd() *cobra.Command {
	var f protocol.SubscriptionFilter
	cmd := &cobra.Command{
		Use:   "subscriptions",
		Short: "List subscriptions",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&f.Plan, "plan", "", "only this plan")
	cmd.Flags().StringVar(&f.Status, "status", "", "only this status")
	cmd.RunE = a.guarded("admin-subscriptions", func(cmd *cobra.Command, args []string) error {
		list, err := a.svc.AdminSubscriptions(cmd.Context(), f)
		if err != nil {
			return failed(err, "Could not load subscriptions")
		}
		return a.render(list, func() rows {
			r := rows{headers: []string{"ID", "User", "Plan", "Status", "Monthly price", "Analyses used"}}
			for _, s := range list.Subscriptions {
				r.add(s.ID, s.UserID, s.Plan, s.Status, ftoa(s.MonthlyPrice), itoa(s.AnalysesUsedThisMonth))
			}
			return r
		})
	})
	return cmd
}

func (a *app) adminSubscriptionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription ID",
		Short: "Show one subscription",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.guarded("admin-subscriptions", func(cmd *cobra.Command, args []string) error {
		s, err := a.svc.AdminSubscription(cmd.Context(), args[0])
		if err != nil {
			return failed(err, "Could not load subscription")
		}
		return a.render(s, keyValues(
			"ID", s.ID,
			"User", s.UserID,
			"Plan", s.Plan,
			"Status", s.Status,
			"Billing cycle", orDash(s.BillingCycle),
			"Monthly price", ftoa(s.MonthlyPrice),
			"Analyses used", itoa(s.AnalysesUsedThisMonth),
			"Brands limit", itoa(s.BrandsLimit),
			"Period end", orDash(s.CurrentPeriodEnd),
		))
	})
	return cmd
}

func (a *app) adminOverviewCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Show the system overview",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling every 60s")
	cmd.RunE = a.guarded("admin", func(cmd *cobra.Command, args []string) error {
		if watch {
			return watchUntilDone(cmd.Context(), a, a.svc.WatchSystemOverview, a.showSystemOverview)
		}
		o, err := a.svc.SystemOverview(cmd.Context())
		if err != nil {
			return failed(err, "Could not load the system overview")
		}
		return a.showSystemOverview(o)
	})
	return cmd
}

func (a *app) showSystemOverview(o *protocol.SystemOverview) error {
	return a.render(o, keyValues(
		"Users", itoa(o.Users.Total),
		"Active users", itoa(o.Users.Active),
		"Admins", itoa(o.Users.Admins),
		"Active subscriptions", itoa(o.Subscriptions.TotalActive),
		"Analyses (30d)", ftoa(o.Usage.Analyses30d),
		"API calls (30d)", ftoa(o.Usage.APICalls30d),
		"API cost (30d)", ftoa(o.Usage.APICost30d),
		"Errors (24h)", itoa(o.Health.Errors24h),
		"Health", orDash(o.Health.Status),
	))
}

func (a *app) adminAPIUsageCmd() *cobra.Command {
	var (
		days     int
		provider string
	)
	cmd := &cobra.Command{
		Use:   "api-usage",
		Short: "Show LLM API usage and cost",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVar(&days, "days", 7, "period in days")
	cmd.Flags().StringVar(&provider, "provider", "", "only this provider")
	cmd.RunE = a.guarded("admin", func(cmd *cobra.Command, args []string) error {
		m, err := a.svc.APIUsage(cmd.Context(), days, provider)
		if err != nil {
			return failed(err, "Could not load API usage")
		}
		return a.render(m, func() rows {
			r := rows{headers: []string{"Provider", "Calls", "Input tokens", "Output tokens", "Cost"}}
			names := make([]string, 0, len(m.ByProvider))
			for name := range m.ByProvider {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				p := m.ByProvider[name]
				r.add(name, itoa(p.Calls), itoa(p.TokensInput), itoa(p.TokensOutput), ftoa(p.Cost))
			}
			r.add("total", itoa(m.TotalAPICalls), "", "", ftoa(m.TotalCost))
			return r
		})
	})
	return cmd
}

func (a *app) adminErrorsCmd() *cobra.Command {
	var f protocol.ErrorFilter
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List backend error logs",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&f.Severity, "severity", "", "only this severity")
	cmd.Flags().BoolVar(&f.UnresolvedOnly, "unresolved", false, "only unresolved errors")
	cmd.RunE = a.guarded("admin-errors", func(cmd *cobra.Command, args []string) error {
		list, err := a.svc.ErrorLogs(cmd.Context(), f)
		if err != nil {
			return failed(err, "Could not load error logs")
		}
		return a.render(list, func() rows {
			r := rows{headers: []string{"ID", "Severity", "Type", "Message", "Endpoint", "Resolved", "Created"}}
			for _, e := range list.Errors {
				r.add(e.ID, e.Severity, e.ErrorType, e.ErrorMessage, orDash(e.Endpoint), yesNo(e.IsResolved), e.CreatedAt)
			}
			return r
		})
	})
	return cmd
}

func (a *app) adminResolveErrorCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "resolve-error ID",
		Short: "Mark an error as resolved",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes")
	cmd.RunE = a.guarded("admin-errors", func(cmd *cobra.Command, args []string) error {
		if err := a.svc.ResolveError(cmd.Context(), args[0], notes); err != nil {
			return failed(err, "Failed to resolve error")
		}
		a.success("Error %s resolved", args[0])
		return nil
	})
	return cmd
}

func (a *app) adminActivityCmd() *cobra.Command {
	var f protocol.ActivityFilter
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "List admin activity",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&f.AdminEmail, "admin-email", "", "only actions by this admin")
	cmd.Flags().StringVar(&f.Action, "action", "", "only this action")
	cmd.Flags().StringVar(&f.ResourceType, "resource-type", "", "only this resource type")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum entries")
	cmd.RunE = a.guarded("admin-activity", func(cmd *cobra.Command, args []string) error {
		list, err := a.svc.ActivityLogs(cmd.Context(), f)
		if err != nil {
			return failed(err, "Could not load activity logs")
		}
		return a.render(list, func() rows {
			r := rows{headers: []string{"When", "Admin", "Action", "Resource", "Notes"}}
			for _, l := range list.Logs {
				resource := l.ResourceType
				if l.ResourceID != "" {
					resource += " " + l.ResourceID
				}
				r.add(l.CreatedAt, l.AdminEmail, l.Action, resource, orDash(l.Notes))
			}
			return r
		})
	})
	return cmd
}

func (a *app) adminImprovementsCmd() *cobra.Command {
	var f protocol.ImprovementFilter
	cmd := &cobra.Command{
		Use:   "improvements",
		Short: "List user improvement requests",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "only this status")
	cmd.Flags().StringVar(&f.Category, "category", "", "only this category")
	cmd.RunE = a.guarded("admin-improvements", func(cmd *cobra.Command, args []string) error {
		list, err := a.svc.Improvements(cmd.Context(), f)
		if err != nil {
			return failed(err, "Could not load improvements")
		}
		return a.render(list, func() rows {
			r := rows{headers: []string{"ID", "Title", "Status", "Priority", "Votes", "From"}}
			for _, im := range list.Improvements {
				r.add(im.ID, im.Title, im.Status, orDash(im.Priority), itoa(im.Upvotes-im.Downvotes), im.UserEmail)
			}
			return r
		})
	})
	return cmd
}

func (a *app) adminUpdateImprovementCmd() *cobra.Command {
	var u protocol.ImprovementUpdate
	cmd := &cobra.Command{
		Use:   "update-improvement ID",
		Short: "Review an improvement request",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&u.Status, "status", "", "new status")
	cmd.Flags().StringVar(&u.Priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&u.AdminNotes, "notes", "", "admin notes")
	cmd.RunE = a.guarded("admin-improvements", func(cmd *cobra.Command, args []string) error {
		if u.Status == "" && u.Priority == "" && u.AdminNotes == "" {
			return userErrorf("nothing to update: pass --status, --priority or --notes")
		}
		if err := a.svc.UpdateImprovement(cmd.Context(), args[0], u); err != nil {
			return failed(err, "Failed to update improvement")
		}
		a.success("Improvement %s updated", args[0])
		return nil
	})
	return cmd
}
