package protocol

import (
	"net/url"
	"strings"
)

// Unversioned endpoints.
const (
	PathLogin                = "/login"
	PathRegister             = "/register"
	PathPasswordReset        = "/password-reset"
	PathPasswordResetConfirm = "/password-reset/confirm"
	PathHealth               = "/health"
	PathAnalyzeBrand         = "/analyze-brand"
	PathOptimizationMetrics  = "/optimization-metrics"
	PathAnalyzeQueries       = "/analyze-queries"
	PathBrands               = "/brands"
)

// DefaultAPIVersion is the version segment used for admin and log endpoints.
const DefaultAPIVersion = "v2"

// BrandHistoryPath returns GET /brands/{name}/history.
func BrandHistoryPath(brandName string) string {
	return PathBrands + "/" + url.PathEscape(brandName) + "/history"
}

// Endpoints builds the versioned admin and log analysis paths.
type Endpoints struct {
	prefix string
}

// NewEndpoints returns endpoints under /api/{version}.
func NewEndpoints(version string) Endpoints {
	version = strings.Trim(version, "/")
	if version == "" {
		version = DefaultAPIVersion
	}
	return Endpoints{prefix: "/api/" + version}
}

func (e Endpoints) join(parts ...string) string {
	var b strings.Builder
	b.WriteString(e.prefix)
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(p)
	}
	return b.String()
}

func (e Endpoints) AdminUsers() string { return e.join("admin", "users") }

func (e Endpoints) AdminUserToggleStatus(userID string) string {
	return e.join("admin", "users", url.PathEscape(userID), "toggle-status")
}

func (e Endpoints) AdminUserRole(userID string) string {
	return e.join("admin", "users", url.PathEscape(userID), "role")
}

func (e Endpoints) AdminSubscriptions() string { return e.join("admin", "subscriptions") }

func (e Endpoints) AdminSubscription(subscriptionID string) string {
	return e.join("admin", "subscriptions", url.PathEscape(subscriptionID))
}

func (e Endpoints) AdminMetricsOverview() string { return e.join("admin", "metrics", "overview") }

func (e Endpoints) AdminAPIUsage() string { return e.join("admin", "metrics", "api-usage") }

func (e Endpoints) AdminErrors() string { return e.join("admin", "errors") }

func (e Endpoints) AdminResolveError(errorID string) string {
	return e.join("admin", "errors", url.PathEscape(errorID), "resolve")
}

func (e Endpoints) AdminActivityLogs() string { return e.join("admin", "activity-logs") }

func (e Endpoints) AdminImprovements() string { return e.join("admin", "improvements") }

func (e Endpoints) AdminImprovement(improvementID string) string {
	return e.join("admin", "improvements", url.PathEscape(improvementID))
}

func (e Endpoints) LogUpload() string { return e.join("logs", "upload") }

func (e Endpoints) LogUploadStatus(uploadID string) string {
	return e.join("logs", "upload", url.PathEscape(uploadID), "status")
}

func (e Endpoints) LogAnalysis(brandID string) string {
	return e.join("logs", "analysis", url.PathEscape(brandID))
}

func (e Endpoints) BotActivity(brandID string) string {
	return e.join("logs", "bot-activity", url.PathEscape(brandID))
}

func (e Endpoints) AnalyzeSample() string { return e.join("logs", "analyze-sample") }
