package protocol

import (
	"net/url"
	"strconv"
)

// LoginRequest is the body for POST /login.
type LoginRequest struct {
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
	OAuthToken string `json:"oauth_token,omitempty"`
}

// RegisterRequest is the body for POST /register.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Company    string `json:"company,omitempty"`
	OAuthToken string `json:"oauth_token,omitempty"`
}

// PasswordResetRequest is the body for POST /password-reset.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest is the body for POST /password-reset/confirm.
type PasswordResetConfirmRequest struct {
	Email       string `json:"email"`
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// BrandAnalysisRequest is the body for POST /analyze-brand.
type BrandAnalysisRequest struct {
	BrandName         string   `json:"brand_name"`
	WebsiteURL        string   `json:"website_url,omitempty"`
	ProductCategories []string `json:"product_categories,omitempty"`
	ContentSample     string   `json:"content_sample,omitempty"`
	CompetitorNames   []string `json:"competitor_names,omitempty"`
}

// OptimizationMetricsRequest is the body for POST /optimization-metrics.
type OptimizationMetricsRequest struct {
	BrandName     string `json:"brand_name"`
	ContentSample string `json:"content_sample,omitempty"`
	WebsiteURL    string `json:"website_url,omitempty"`
}

// QueryAnalysisRequest is the body for POST /analyze-queries.
type QueryAnalysisRequest struct {
	BrandName         string   `json:"brand_name"`
	ProductCategories []string `json:"product_categories"`
}

// UserFilter narrows GET /api/v2/admin/users.
type UserFilter struct {
	Search string `json:"search,omitempty"`
	Role   string `json:"role,omitempty"`
	Status string `json:"status,omitempty"`
}

// Values encodes the non-empty filter fields as query parameters.
func (f UserFilter) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "search", f.Search)
	setNonEmpty(v, "role", f.Role)
	setNonEmpty(v, "status", f.Status)
	return v
}

// SubscriptionFilter narrows GET /api/v2/admin/subscriptions.
type SubscriptionFilter struct {
	Plan   string `json:"plan,omitempty"`
	Status string `json:"status,omitempty"`
}

// Values encodes the non-empty filter fields as query parameters.
func (f SubscriptionFilter) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "plan", f.Plan)
	setNonEmpty(v, "status", f.Status)
	return v
}

// ErrorFilter narrows GET /api/v2/admin/errors.
type ErrorFilter struct {
	Severity       string `json:"severity,omitempty"`
	UnresolvedOnly bool   `json:"unresolved_only,omitempty"`
}

// Values encodes the filter as query parameters.
func (f ErrorFilter) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "severity", f.Severity)
	if f.UnresolvedOnly {
		v.Set("unresolved_only", "true")
	}
	return v
}

// ActivityFilter narrows GET /api/v2/admin/activity-logs.
type ActivityFilter struct {
	AdminEmail   string `json:"admin_email,omitempty"`
	Action       string `json:"action,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Values encodes the non-empty filter fields as query parameters.
func (f ActivityFilter) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "admin_email", f.AdminEmail)
	setNonEmpty(v, "action", f.Action)
	setNonEmpty(v, "resource_type", f.ResourceType)
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// ImprovementFilter narrows GET /api/v2/admin/improvements.
type ImprovementFilter struct {
	Status   string `json:"status,omitempty"`
	Category string `json:"category,omitempty"`
}

// Values encodes the non-empty filter fields as query parameters.
func (f ImprovementFilter) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "status", f.Status)
	setNonEmpty(v, "category", f.Category)
	return v
}

// ImprovementUpdate is sent as query parameters to
// PUT /api/v2/admin/improvements/{id}.
type ImprovementUpdate struct {
	Status     string
	Priority   string
	AdminNotes string
}

// Values encodes the update as query parameters.
func (u ImprovementUpdate) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "status", u.Status)
	setNonEmpty(v, "priority", u.Priority)
	setNonEmpty(v, "admin_notes", u.AdminNotes)
	return v
}

func setNonEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
