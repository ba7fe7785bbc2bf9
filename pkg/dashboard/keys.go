package dashboard

import (
	"github.com/aiodash/aiodash/pkg/protocol"
	"github.com/aiodash/aiodash/pkg/query"
)

// Cache keys. Keys sharing a leading prefix are invalidated together, so a
// mutation on admin users refreshes every filtered user list at once.

func HealthKey() query.Key { return query.Key{"health"} }

func BrandsKey() query.Key { return query.Key{"brands"} }

func BrandHistoryKey(name string) query.Key { return query.Key{"brands", name, "history"} }

func AnalysesKey() query.Key { return query.Key{"analyses"} }

func DashboardMetricsKey() query.Key { return query.Key{"dashboard", "metrics"} }

// AdminUsersPrefix covers every admin user list regardless of filter.
func AdminUsersPrefix() query.Key { return query.Key{"admin", "users"} }

func AdminUsersKey(f protocol.UserFilter) query.Key {
	return append(AdminUsersPrefix(), f)
}

func AdminSubscriptionsPrefix() query.Key { return query.Key{"admin", "subscriptions"} }

func AdminSubscriptionsKey(f protocol.SubscriptionFilter) query.Key {
	return append(AdminSubscriptionsPrefix(), f)
}

func AdminSubscriptionKey(id string) query.Key {
	return append(AdminSubscriptionsPrefix(), "id", id)
}

func SystemOverviewKey() query.Key { return query.Key{"admin", "system", "overview"} }

func APIUsageKey(days int, provider string) query.Key {
	return query.Key{"admin", "api-usage", days, provider}
}

func AdminErrorsPrefix() query.Key { return query.Key{"admin", "errors"} }

func AdminErrorsKey(f protocol.ErrorFilter) query.Key {
	return append(AdminErrorsPrefix(), f)
}

func ActivityLogsKey(f protocol.ActivityFilter) query.Key {
	return query.Key{"admin", "activity-logs", f}
}

func AdminImprovementsPrefix() query.Key { return query.Key{"admin", "improvements"} }

func AdminImprovementsKey(f protocol.ImprovementFilter) query.Key {
	return append(AdminImprovementsPrefix(), f)
}

func LogUploadsKey() query.Key { return query.Key{"log-uploads"} }

func UploadStatusKey(uploadID string) query.Key {
	return query.Key{"log-uploads", uploadID, "status"}
}

func LogAnalysisKey(brandID string, days int) query.Key {
	return query.Key{"log-analysis", brandID, days}
}

func BotActivityKey(brandID string, days int, platform string) query.Key {
	return query.Key{"bot-activity", brandID, days, platform}
}
