// Package dashboard binds backend endpoints to query cache keys. Each query
// method reads through the cache; each mutation invalidates the keys whose
// data it changes, and only when it succeeds.
package dashboard

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aiodash/aiodash/internal/logging"
	"github.com/aiodash/aiodash/pkg/client"
	"github.com/aiodash/aiodash/pkg/protocol"
	"github.com/aiodash/aiodash/pkg/query"
)

// Poll intervals and query defaults.
const (
	DefaultHealthInterval     = 30 * time.Second
	DefaultMetricsInterval    = 30 * time.Second
	DefaultOverviewInterval   = 60 * time.Second
	DefaultUploadPollInterval = 2 * time.Second
	DefaultUploadTimeout      = 10 * time.Minute
	DefaultLogAnalysisDays    = 30
	DefaultBotActivityDays    = 7
	DefaultAPIUsageDays       = 7
	recentBrands              = 5
)

// API is the HTTP surface the service needs; *client.Client satisfies it.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any, opts ...client.Option) error
	Post(ctx context.Context, path string, query url.Values, body, out any, opts ...client.Option) error
	Put(ctx context.Context, path string, query url.Values, body, out any, opts ...client.Option) error
	Upload(ctx context.Context, path string, form *client.Form, out any, opts ...client.Option) error
}

// Options configures a Service. Zero fields take the defaults above.
type Options struct {
	APIVersion         string
	HealthInterval     time.Duration
	MetricsInterval    time.Duration
	OverviewInterval   time.Duration
	UploadPollInterval time.Duration
	UploadTimeout      time.Duration
}

func (o *Options) setDefaults() {
	if o.APIVersion == "" {
		o.APIVersion = protocol.DefaultAPIVersion
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = DefaultHealthInterval
	}
	if o.MetricsInterval <= 0 {
		o.MetricsInterval = DefaultMetricsInterval
	}
	if o.OverviewInterval <= 0 {
		o.OverviewInterval = DefaultOverviewInterval
	}
	if o.UploadPollInterval <= 0 {
		o.UploadPollInterval = DefaultUploadPollInterval
	}
	if o.UploadTimeout <= 0 {
		o.UploadTimeout = DefaultUploadTimeout
	}
}

// Service exposes the dashboard queries and mutations.
type Service struct {
	api   API
	cache *query.Cache
	ep    protocol.Endpoints
	opts  Options
	log   *zap.Logger
}

// New creates a Service reading through cache.
func New(api API, cache *query.Cache, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		api:   api,
		cache: cache,
		ep:    protocol.NewEndpoints(opts.APIVersion),
		opts:  opts,
		log:   logging.Named("dashboard"),
	}
}

// Cache returns the underlying query cache.
func (s *Service) Cache() *query.Cache {
	return s.cache
}

// get builds a fetch function for a GET endpoint decoding into T. route
// labels the request in metrics.
func get[T any](s *Service, route, path string, params url.Values) func(context.Context) (*T, error) {
	return func(ctx context.Context) (*T, error) {
		var out T
		if err := s.api.Get(ctx, path, params, &out, client.WithRoute(route)); err != nil {
			return nil, err
		}
		return &out, nil
	}
}

func (s *Service) Health(ctx context.Context) (*protocol.Health, error) {
	return query.Query(ctx, s.cache, HealthKey(), s.fetchHealth())
}

func (s *Service) fetchHealth() func(context.Context) (*protocol.Health, error) {
	return get[protocol.Health](s, "health", protocol.PathHealth, nil)
}

func (s *Service) Brands(ctx context.Context) (*protocol.BrandList, error) {
	return query.Query(ctx, s.cache, BrandsKey(), s.fetchBrands())
}

func (s *Service) fetchBrands() func(context.Context) (*protocol.BrandList, error) {
	return get[protocol.BrandList](s, "brands", protocol.PathBrands, nil)
}

// BrandHistory returns the analysis history of a brand. An empty name
// returns query.ErrDisabled without a request.
func (s *Service) BrandHistory(ctx context.Context, name string) (*protocol.BrandHistory, error) {
	return query.Query(ctx, s.cache, BrandHistoryKey(name),
		get[protocol.BrandHistory](s, "brands.history", protocol.BrandHistoryPath(name), nil),
		query.Enabled(name != ""))
}

// DashboardMetrics is the overview combining /brands and /health, fetched
// concurrently.
func (s *Service) DashboardMetrics(ctx context.Context) (*protocol.DashboardMetrics, error) {
	return query.Query(ctx, s.cache, DashboardMetricsKey(), s.fetchDashboardMetrics)
}

func (s *Service) fetchDashboardMetrics(ctx context.Context) (*protocol.DashboardMetrics, error) {
	var (
		brands *protocol.BrandList
		health *protocol.Health
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		brands, err = s.fetchBrands()(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		health, err = s.fetchHealth()(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summarize(brands, health), nil
}

func summarize(brands *protocol.BrandList, health *protocol.Health) *protocol.DashboardMetrics {
	m := &protocol.DashboardMetrics{
		TotalBrands:  brands.TotalCount,
		SystemStatus: health.Status,
		RecentBrands: []protocol.Brand{},
	}
	for _, b := range brands.Brands {
		if b.TrackingEnabled {
			m.ActiveBrands++
		}
	}
	n := min(len(brands.Brands), recentBrands)
	m.RecentBrands = append(m.RecentBrands, brands.Brands[:n]...)
	return m
}

func (s *Service) AdminUsers(ctx context.Context, f protocol.UserFilter) (*protocol.UserList, error) {
	return query.Query(ctx, s.cache, AdminUsersKey(f),
		get[protocol.UserList](s, "admin.users", s.ep.AdminUsers(), f.Values()))
}

func (s *Service) AdminSubscriptions(ctx context.Context, f protocol.SubscriptionFilter) (*protocol.SubscriptionList, error) {
	return query.Query(ctx, s.cache, AdminSubscriptionsKey(f),
		get[protocol.SubscriptionList](s, "admin.subscriptions", s.ep.AdminSubscriptions(), f.Values()))
}

func (s *Service) AdminSubscription(ctx context.Context, id string) (*protocol.Subscription, error) {
	return query.Query(ctx, s.cache, AdminSubscriptionKey(id),
		get[protocol.Subscription](s, "admin.subscription", s.ep.AdminSubscription(id), nil),
		query.Enabled(id != ""))
}

func (s *Service) SystemOverview(ctx context.Context) (*protocol.SystemOverview, error) {
	return query.Query(ctx, s.cache, SystemOverviewKey(), s.fetchSystemOverview())
}

func (s *Service) fetchSystemOverview() func(context.Context) (*protocol.SystemOverview, error) {
	return get[protocol.SystemOverview](s, "admin.overview", s.ep.AdminMetricsOverview(), nil)
}

// APIUsage returns provider usage over the last days (7 when days <= 0),
// optionally for a single provider.
func (s *Service) APIUsage(ctx context.Context, days int, provider string) (*protocol.APIUsageMetrics, error) {
	if days <= 0 {
		days = DefaultAPIUsageDays
	}
	params := url.Values{"days": {strconv.Itoa(days)}}
	if provider != "" {
		params.Set("provider", provider)
	}
	return query.Query(ctx, s.cache, APIUsageKey(days, provider),
		get[protocol.APIUsageMetrics](s, "admin.api_usage", s.ep.AdminAPIUsage(), params))
}

func (s *Service) ErrorLogs(ctx context.Context, f protocol.ErrorFilter) (*protocol.ErrorLogList, error) {
	return query.Query(ctx, s.cache, AdminErrorsKey(f),
		get[protocol.ErrorLogList](s, "admin.errors", s.ep.AdminErrors(), f.Values()))
}

func (s *Service) ActivityLogs(ctx context.Context, f protocol.ActivityFilter) (*protocol.ActivityLogList, error) {
	return query.Query(ctx, s.cache, ActivityLogsKey(f),
		get[protocol.ActivityLogList](s, "admin.activity", s.ep.AdminActivityLogs(), f.Values()))
}

func (s *Service) Improvements(ctx context.Context, f protocol.ImprovementFilter) (*protocol.ImprovementList, error) {
	return query.Query(ctx, s.cache, AdminImprovementsKey(f),
		get[protocol.ImprovementList](s, "admin.improvements", s.ep.AdminImprovements(), f.Values()))
}

// LogAnalysis returns the server log report for a brand over the last days
// (30 when days <= 0). An empty brand ID returns query.ErrDisabled.
func (s *Service) LogAnalysis(ctx context.Context, brandID string, days int) (protocol.Document, error) {
	if days <= 0 {
		days = DefaultLogAnalysisDays
	}
	params := url.Values{"days": {strconv.Itoa(days)}}
	doc, err := query.Query(ctx, s.cache, LogAnalysisKey(brandID, days),
		get[protocol.Document](s, "logs.analysis", s.ep.LogAnalysis(brandID), params),
		query.Enabled(brandID != ""))
	if doc == nil {
		return nil, err
	}
	return *doc, err
}

// BotActivity returns AI crawler activity for a brand over the last days
// (7 when days <= 0), optionally for one platform.
func (s *Service) BotActivity(ctx context.Context, brandID string, days int, platform string) (*protocol.BotActivityData, error) {
	if days <= 0 {
		days = DefaultBotActivityDays
	}
	params := url.Values{"days": {strconv.Itoa(days)}}
	if platform != "" {
		params.Set("platform", platform)
	}
	return query.Query(ctx, s.cache, BotActivityKey(brandID, days, platform),
		get[protocol.BotActivityData](s, "logs.bot_activity", s.ep.BotActivity(brandID), params),
		query.Enabled(brandID != ""))
}

// UploadStatus returns the processing state of an upload.
func (s *Service) UploadStatus(ctx context.Context, uploadID string) (*protocol.ServerLogUpload, error) {
	return query.Query(ctx, s.cache, UploadStatusKey(uploadID), s.fetchUploadStatus(uploadID),
		query.Enabled(uploadID != ""))
}

func (s *Service) fetchUploadStatus(uploadID string) func(context.Context) (*protocol.ServerLogUpload, error) {
	return get[protocol.ServerLogUpload](s, "logs.upload_status", s.ep.LogUploadStatus(uploadID), nil)
}
