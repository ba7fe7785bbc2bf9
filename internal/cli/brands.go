package cli

import (
	"context"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/aiodash/aiodash/pkg/client"
	"github.com/aiodash/aiodash/pkg/protocol"
	"github.com/aiodash/aiodash/pkg/query"
	"github.com/aiodash/aiodash/pkg/validate"
)

// watchUntilDone shows every result of a subscription until ctx ends.
func watchUntilDone[T any](ctx context.Context, a *app, subscribe func(func(T, query.Result)) *query.Subscription, show func(T) error) error {
	sub := subscribe(func(v T, r query.Result) {
		if r.Err != nil {
			a.hint("refresh failed: %s", client.Message(r.Err, ""))
			return
		}
		if err := show(v); err != nil {
			a.hint("render failed: %v", err)
		}
	})
	defer sub.Close()
	<-ctx.Done()
	return nil
}

func (a *app) healthCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show backend health",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling every 30s")
	cmd.RunE = a.guarded("dashboard", func(cmd *cobra.Command, args []string) error {
		if watch {
			return watchUntilDone(cmd.Context(), a, a.svc.WatchHealth, a.showHealth)
		}
		h, err := a.svc.Health(cmd.Context())
		if err != nil {
			return failed(err, "Health check failed")
		}
		return a.showHealth(h)
	})
	return cmd
}

func (a *app) showHealth(h *protocol.Health) error {
	return a.render(h, func() rows {
		r := rows{headers: []string{"Component", "Status"}}
		r.add("backend", h.Status)
		names := make([]string, 0, len(h.Services))
		for name := range h.Services {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			status := "down"
			if h.Services[name] {
				status = "up"
			}
			r.add(name, status)
		}
		return r
	})
}

func (a *app) overviewCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Show the dashboard overview",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep polling every 30s")
	cmd.RunE = a.guarded("dashboard", func(cmd *cobra.Command, args []string) error {
		if watch {
			return watchUntilDone(cmd.Context(), a, a.svc.WatchDashboardMetrics, a.showOverview)
		}
		m, err := a.svc.DashboardMetrics(cmd.Context())
		if err != nil {
			return failed(err, "Could not load the dashboard")
		}
		return a.showOverview(m)
	})
	return cmd
}

func (a *app) showOverview(m *protocol.DashboardMetrics) error {
	return a.render(m, func() rows {
		r := rows{headers: []string{"Metric", "Value"}}
		r.add("Total brands", itoa(m.TotalBrands))
		r.add("Active brands", itoa(m.ActiveBrands))
		r.add("System status", m.SystemStatus)
		for _, b := range m.RecentBrands {
			r.add("Recent", b.Name)
		}
		return r
	})
}

func (a *app) brandsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brands",
		Short: "List tracked brands",
	}

	list := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List brands",
		Args:    cobra.NoArgs,
	}
	list.RunE = a.guarded("brands", func(cmd *cobra.Command, args []string) error {
		brands, err := a.svc.Brands(cmd.Context())
		if err != nil {
			return failed(err, "Could not load brands")
		}
		return a.render(brands, func() rows {
			r := rows{headers: []string{"ID", "Name", "Website", "Tracking", "Last analysis"}}
			for _, b := range brands.Brands {
				r.add(b.ID, b.Name, orDash(b.WebsiteURL), yesNo(b.TrackingEnabled), orDash(b.LastAnalysis))
			}
			return r
		})
	})

	history := &cobra.Command{
		Use:   "history NAME",
		Short: "Show the analysis history of a brand",
		Args:  cobra.ExactArgs(1),
	}
	history.RunE = a.guarded("brand-detail", func(cmd *cobra.Command, args []string) error {
		h, err := a.svc.BrandHistory(cmd.Context(), args[0])
		if err != nil {
			return failed(err, "Could not load brand history")
		}
		return a.render(h, func() rows {
			r := rows{headers: []string{"ID", "Type", "Status", "Citation frequency", "Created"}}
			for _, an := range h.AnalysisHistory {
				r.add(an.ID, an.AnalysisType, an.Status, ftoa(an.CitationFrequency), an.CreatedAt)
			}
			return r
		})
	})

	cmd.AddCommand(list, history)
	return cmd
}

func (a *app) analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run brand analyses",
	}

	var (
		form        validate.AnalysisForm
		categories  string
		competitors string
		contentFile string
	)
	brand := &cobra.Command{
		Use:   "brand",
		Short: "Analyze a brand's AI visibility",
		Args:  cobra.NoArgs,
	}
	brand.Flags().StringVar(&form.BrandName, "name", "", "brand name")
	brand.Flags().StringVar(&form.WebsiteURL, "url", "", "brand website")
	brand.Flags().StringVar(&categories, "categories", "", "comma-separated product categories")
	brand.Flags().StringVar(&competitors, "competitors", "", "comma-separated competitor names (max 5)")
	brand.Flags().StringVar(&contentFile, "content-file", "", "file with a content sample")
	brand.RunE = a.guarded("analysis", func(cmd *cobra.Command, args []string) error {
		form.ProductCategories = validate.SplitList(categories)
		form.CompetitorNames = validate.SplitList(competitors)
		if contentFile != "" {
			data, err := os.ReadFile(contentFile)
			if err != nil {
				return err
			}
			form.ContentSample = string(data)
		}
		if err := form.Validate(); err != nil {
			return err
		}
		doc, err := a.svc.AnalyzeBrand(cmd.Context(), form.Request())
		if err != nil {
			return failed(err, "Analysis failed")
		}
		return a.render(doc, nil)
	})

	var (
		metricsReq     protocol.OptimizationMetricsRequest
		metricsContent string
	)
	metrics := &cobra.Command{
		Use:   "metrics",
		Short: "Calculate optimization metrics for a brand",
		Args:  cobra.NoArgs,
	}
	metrics.Flags().StringVar(&metricsReq.BrandName, "name", "", "brand name")
	metrics.Flags().StringVar(&metricsReq.WebsiteURL, "url", "", "brand website")
	metrics.Flags().StringVar(&metricsContent, "content-file", "", "file with a content sample")
	metrics.RunE = a.guarded("analysis", func(cmd *cobra.Command, args []string) error {
		if metricsReq.BrandName == "" {
			return validate.Errors{{Field: "brand_name", Message: "Brand name is required"}}
		}
		if metricsContent != "" {
			data, err := os.ReadFile(metricsContent)
			if err != nil {
				return err
			}
			metricsReq.ContentSample = string(data)
		}
		doc, err := a.svc.OptimizationMetrics(cmd.Context(), metricsReq)
		if err != nil {
			return failed(err, "Metrics calculation failed")
		}
		return a.render(doc, nil)
	})

	var (
		queriesBrand      string
		queriesCategories string
	)
	queries := &cobra.Command{
		Use:   "queries",
		Short: "Analyze the search queries a brand appears in",
		Args:  cobra.NoArgs,
	}
	queries.Flags().StringVar(&queriesBrand, "name", "", "brand name")
	queries.Flags().StringVar(&queriesCategories, "categories", "", "comma-separated product categories")
	queries.RunE = a.guarded("analysis", func(cmd *cobra.Command, args []string) error {
		req := protocol.QueryAnalysisRequest{
			BrandName:         queriesBrand,
			ProductCategories: validate.SplitList(queriesCategories),
		}
		var errs validate.Errors
		if req.BrandName == "" {
			errs = append(errs, validate.FieldError{Field: "brand_name", Message: "Brand name is required"})
		}
		if len(req.ProductCategories) == 0 {
			errs = append(errs, validate.FieldError{Field: "product_categories", Message: "At least one category is required"})
		}
		if len(errs) > 0 {
			return errs
		}
		doc, err := a.svc.AnalyzeQueries(cmd.Context(), req)
		if err != nil {
			return failed(err, "Query analysis failed")
		}
		return a.render(doc, nil)
	})

	cmd.AddCommand(brand, metrics, queries)
	return cmd
}
