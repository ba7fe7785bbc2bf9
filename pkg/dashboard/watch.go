package dashboard

import (
	"time"

	"github.com/aiodash/aiodash/pkg/protocol"
	"github.com/aiodash/aiodash/pkg/query"
)

// WatchHealth polls /health until the subscription is closed.
func (s *Service) WatchHealth(fn func(*protocol.Health, query.Result)) *query.Subscription {
	return query.Watch(s.cache, HealthKey(), s.fetchHealth(), fn, query.Every(s.opts.HealthInterval))
}

// WatchDashboardMetrics polls the dashboard overview.
func (s *Service) WatchDashboardMetrics(fn func(*protocol.DashboardMetrics, query.Result)) *query.Subscription {
	return query.Watch(s.cache, DashboardMetricsKey(), s.fetchDashboardMetrics, fn,
		query.Every(s.opts.MetricsInterval))
}

// WatchSystemOverview polls the admin system overview.
func (s *Service) WatchSystemOverview(fn func(*protocol.SystemOverview, query.Result)) *query.Subscription {
	return query.Watch(s.cache, SystemOverviewKey(), s.fetchSystemOverview(), fn,
		query.Every(s.opts.OverviewInterval))
}

// WatchUploadStatus polls an upload while the backend is still working on
// it and stops once it completes or fails.
func (s *Service) WatchUploadStatus(uploadID string, fn func(*protocol.ServerLogUpload, query.Result)) *query.Subscription {
	return query.Watch(s.cache, UploadStatusKey(uploadID), s.fetchUploadStatus(uploadID), fn,
		query.Enabled(uploadID != ""),
		query.RefetchWhen(UploadStatusInterval(s.opts.UploadPollInterval)))
}

// UploadStatusInterval returns a refetch policy polling every interval while
// the last known status is pending or processing.
func UploadStatusInterval(interval time.Duration) func(*protocol.ServerLogUpload, error) time.Duration {
	return func(u *protocol.ServerLogUpload, _ error) time.Duration {
		if u == nil || u.Terminal() {
			return 0
		}
		return interval
	}
}
