// Package protocol defines the dashboard API request/response types.
//
// Timestamps are kept as the ISO-8601 strings the backend sends; the
// backend emits naive local times that time.Time cannot unmarshal.
package protocol

import "encoding/json"

// Roles.
const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Upload and analysis statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// StandardResponse is the envelope wrapped around most backend responses.
type StandardResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// User is an account as returned by the backend.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FullName         string `json:"full_name,omitempty"`
	Company          string `json:"company,omitempty"`
	Role             string `json:"role"`
	IsActive         bool   `json:"is_active"`
	IsVerified       bool   `json:"is_verified"`
	CreatedAt        string `json:"created_at"`
	LastLogin        string `json:"last_login,omitempty"`
	SubscriptionPlan string `json:"subscription_plan,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// DisplayName returns the full name, falling back to the email.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// AuthResponse is the data payload of /login and /register.
type AuthResponse struct {
	User        *User  `json:"user"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Brand is a tracked brand.
type Brand struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	WebsiteURL              string `json:"website_url,omitempty"`
	Industry                string `json:"industry,omitempty"`
	TrackingEnabled         bool   `json:"tracking_enabled"`
	TrackingScriptInstalled bool   `json:"tracking_script_installed"`
	CreatedAt               string `json:"created_at"`
	LastAnalysis            string `json:"last_analysis,omitempty"`
}

// BrandList is returned by GET /brands.
type BrandList struct {
	Brands     []Brand `json:"brands"`
	TotalCount int     `json:"total_count"`
}

// BrandHistory is returned by GET /brands/{name}/history.
type BrandHistory struct {
	BrandName       string     `json:"brand_name"`
	AnalysisHistory []Analysis `json:"analysis_history"`
	TotalAnalyses   int        `json:"total_analyses"`
}

// Analysis is one backend analysis run.
type Analysis struct {
	ID                     string               `json:"id"`
	BrandID                string               `json:"brand_id,omitempty"`
	Status                 string               `json:"status"`
	AnalysisType           string               `json:"analysis_type"`
	DataSource             string               `json:"data_source,omitempty"`
	Metrics                *OptimizationMetrics `json:"metrics,omitempty"`
	Recommendations        []Recommendation     `json:"recommendations,omitempty"`
	TotalBotVisitsAnalyzed int                  `json:"total_bot_visits_analyzed"`
	CitationFrequency      float64              `json:"citation_frequency"`
	ProcessingTime         float64              `json:"processing_time,omitempty"`
	CreatedAt              string               `json:"created_at"`
	StartedAt              string               `json:"started_at,omitempty"`
	CompletedAt            string               `json:"completed_at,omitempty"`
}

// OptimizationMetrics holds the backend-computed visibility scores.
type OptimizationMetrics struct {
	ChunkRetrievalFrequency   float64 `json:"chunk_retrieval_frequency"`
	EmbeddingRelevanceScore   float64 `json:"embedding_relevance_score"`
	AttributionRate           float64 `json:"attribution_rate"`
	AICitationCount           float64 `json:"ai_citation_count"`
	VectorIndexPresenceRate   float64 `json:"vector_index_presence_rate"`
	RetrievalConfidenceScore  float64 `json:"retrieval_confidence_score"`
	RRFRankContribution       float64 `json:"rrf_rank_contribution"`
	LLMAnswerCoverage         float64 `json:"llm_answer_coverage"`
	AIModelCrawlSuccessRate   float64 `json:"ai_model_crawl_success_rate"`
	SemanticDensityScore      float64 `json:"semantic_density_score"`
	ZeroClickSurfacePresence  float64 `json:"zero_click_surface_presence"`
	MachineValidatedAuthority float64 `json:"machine_validated_authority"`
	OverallScore              float64 `json:"overall_score,omitempty"`
	PerformanceGrade          string  `json:"performance_grade,omitempty"`
}

// Recommendation is a single improvement suggestion.
type Recommendation struct {
	Priority    string   `json:"priority"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	ActionItems []string `json:"action_items"`
	Impact      string   `json:"impact"`
	Effort      string   `json:"effort"`
	Timeline    string   `json:"timeline"`
}

// Subscription is a user's billing plan.
type Subscription struct {
	ID                    string  `json:"id"`
	UserID                string  `json:"user_id"`
	Plan                  string  `json:"plan"`
	Status                string  `json:"status"`
	MonthlyPrice          float64 `json:"monthly_price"`
	YearlyPrice           float64 `json:"yearly_price,omitempty"`
	BillingCycle          string  `json:"billing_cycle"`
	MonthlyAnalysesLimit  int     `json:"monthly_analyses_limit,omitempty"`
	AnalysesUsedThisMonth int     `json:"analyses_used_this_month"`
	UserSeats             int     `json:"user_seats"`
	BrandsLimit           int     `json:"brands_limit"`
	HasRecommendations    bool    `json:"has_recommendations"`
	HasDetailedMetrics    bool    `json:"has_detailed_metrics"`
	HasExportFeatures     bool    `json:"has_export_features"`
	HasAPIAccess          bool    `json:"has_api_access"`
	CurrentPeriodEnd      string  `json:"current_period_end,omitempty"`
	StartedAt             string  `json:"started_at"`
}

// BotVisit is one crawler hit attributed to a brand.
type BotVisit struct {
	ID             string  `json:"id"`
	BrandID        string  `json:"brand_id"`
	BotName        string  `json:"bot_name"`
	Platform       string  `json:"platform"`
	UserAgent      string  `json:"user_agent"`
	Timestamp      string  `json:"timestamp"`
	IPAddress      string  `json:"ip_address,omitempty"`
	Path           string  `json:"path"`
	StatusCode     int     `json:"status_code"`
	ResponseTime   float64 `json:"response_time,omitempty"`
	BrandMentioned bool    `json:"brand_mentioned"`
	ContentType    string  `json:"content_type,omitempty"`
}

// ErrorLog is a backend error record shown to admins.
type ErrorLog struct {
	ID           string `json:"id"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	Severity     string `json:"severity"`
	Category     string `json:"category,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	IsResolved   bool   `json:"is_resolved"`
	CreatedAt    string `json:"created_at"`
}

// ErrorLogList is returned by GET /api/v2/admin/errors.
type ErrorLogList struct {
	Errors []ErrorLog `json:"errors"`
	Total  int        `json:"total"`
}

// AdminActivityLog records an admin action.
type AdminActivityLog struct {
	ID           string `json:"id"`
	AdminEmail   string `json:"admin_email"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id,omitempty"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// ActivityLogList is returned by GET /api/v2/admin/activity-logs.
type ActivityLogList struct {
	Logs  []AdminActivityLog `json:"logs"`
	Count int                `json:"count"`
}

// UserImprovement is a user-submitted improvement request.
type UserImprovement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status"`
	Priority    string `json:"priority,omitempty"`
	Upvotes     int    `json:"upvotes"`
	Downvotes   int    `json:"downvotes"`
	UserEmail   string `json:"user_email"`
	CreatedAt   string `json:"created_at"`
	ReviewedBy  string `json:"reviewed_by,omitempty"`
}

// ImprovementList is returned by GET /api/v2/admin/improvements.
type ImprovementList struct {
	Improvements []UserImprovement `json:"improvements"`
	Total        int               `json:"total"`
}

// UserList is returned by GET /api/v2/admin/users.
type UserList struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
}

// SubscriptionList is returned by GET /api/v2/admin/subscriptions.
type SubscriptionList struct {
	Subscriptions []Subscription `json:"subscriptions"`
	Total         int            `json:"total"`
}

// ServerLogUpload tracks an uploaded server log.
type ServerLogUpload struct {
	ID             string  `json:"id"`
	Filename       string  `json:"filename"`
	FileSizeMB     float64 `json:"file_size_mb"`
	FileFormat     string  `json:"file_format"`
	Status         string  `json:"status"`
	UploadedAt     string  `json:"uploaded_at"`
	TotalRequests  int     `json:"total_requests,omitempty"`
	BotRequests    int     `json:"bot_requests,omitempty"`
	UniqueBots     int     `json:"unique_bots,omitempty"`
	ProcessingTime float64 `json:"processing_time,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// Terminal reports whether the upload has stopped processing.
func (u *ServerLogUpload) Terminal() bool {
	return u != nil && u.Status != StatusProcessing && u.Status != StatusPending
}

// UploadAccepted is returned by POST /api/v2/logs/upload.
type UploadAccepted struct {
	UploadID string `json:"upload_id"`
	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Health is returned by GET /health.
type Health struct {
	Status       string          `json:"status"`
	Services     map[string]bool `json:"services,omitempty"`
	ResponseTime string          `json:"response_time,omitempty"`
	Timestamp    string          `json:"timestamp,omitempty"`
	Version      string          `json:"version,omitempty"`
}

// SystemOverview is returned by GET /api/v2/admin/metrics/overview.
type SystemOverview struct {
	Users struct {
		Total  int `json:"total"`
		Active int `json:"active"`
		Admins int `json:"admins"`
	} `json:"users"`
	Subscriptions struct {
		TotalActive int            `json:"total_active"`
		Breakdown   map[string]int `json:"breakdown"`
	} `json:"subscriptions"`
	Usage struct {
		Analyses30d float64 `json:"analyses_30d"`
		APICalls30d float64 `json:"api_calls_30d"`
		APICost30d  float64 `json:"api_cost_30d"`
	} `json:"usage"`
	Health struct {
		Errors24h int    `json:"errors_24h"`
		Status    string `json:"status"`
	} `json:"health"`
}

// ModelUsage is per-model usage within a provider.
type ModelUsage struct {
	Calls  int     `json:"calls"`
	Tokens int     `json:"tokens"`
	Cost   float64 `json:"cost"`
}

// ProviderUsage is per-provider usage.
type ProviderUsage struct {
	Calls        int                   `json:"calls"`
	TokensInput  int                   `json:"tokens_input"`
	TokensOutput int                   `json:"tokens_output"`
	Cost         float64               `json:"cost"`
	Models       map[string]ModelUsage `json:"models"`
}

// APIUsageMetrics is returned by GET /api/v2/admin/metrics/api-usage.
type APIUsageMetrics struct {
	PeriodDays    int                      `json:"period_days"`
	TotalAPICalls int                      `json:"total_api_calls"`
	TotalTokens   int                      `json:"total_tokens"`
	TotalCost     float64                  `json:"total_cost"`
	ByProvider    map[string]ProviderUsage `json:"by_provider"`
	DailyAverage  struct {
		Calls float64 `json:"calls"`
		Cost  float64 `json:"cost"`
	} `json:"daily_average"`
}

// PlatformActivity is bot activity for one AI platform.
type PlatformActivity struct {
	TotalVisits   int     `json:"total_visits"`
	BrandMentions int     `json:"brand_mentions"`
	CitationRate  float64 `json:"citation_rate"`
	UniquePaths   int     `json:"unique_paths"`
	SuccessRate   float64 `json:"success_rate"`
}

// PathActivity is bot activity for one site path.
type PathActivity struct {
	Path          string  `json:"path"`
	Visits        int     `json:"visits"`
	BrandMentions int     `json:"brand_mentions"`
	CitationRate  float64 `json:"citation_rate"`
}

// BotActivityData is returned by GET /api/v2/logs/bot-activity/{brandId}.
type BotActivityData struct {
	PeriodDays         int                         `json:"period_days"`
	TotalBotVisits     int                         `json:"total_bot_visits"`
	PlatformBreakdown  map[string]PlatformActivity `json:"platform_breakdown"`
	HourlyDistribution map[string]int              `json:"hourly_distribution"`
	TopPaths           []PathActivity              `json:"top_paths"`
}

// DashboardMetrics is the composite overview built from /brands and /health.
type DashboardMetrics struct {
	TotalBrands  int     `json:"total_brands"`
	ActiveBrands int     `json:"active_brands"`
	SystemStatus string  `json:"system_status"`
	RecentBrands []Brand `json:"recent_brands"`
}

// Document is a response the client passes through without a fixed shape:
// analysis results and log reports.
type Document map[string]any
