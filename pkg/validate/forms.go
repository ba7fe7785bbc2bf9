package validate

import (
	"strings"

	"github.com/aiodash/aiodash/pkg/protocol"
)

// MaxLogUploadBytes is the largest accepted server log upload.
const MaxLogUploadBytes = 1 << 30

// LogFormats are the server log formats the backend parses.
var LogFormats = []string{"nginx", "apache", "cloudflare", "aws-alb", "custom"}

const (
	msgEmail          = "Please enter a valid email address"
	msgPasswordLength = "Password must be at least 8 characters"
	msgPasswordUpper  = "Password must contain at least one uppercase letter"
	msgPasswordLower  = "Password must contain at least one lowercase letter"
	msgPasswordDigit  = "Password must contain at least one number"
	msgPasswordSymbol = "Password must contain at least one special character"
	msgPasswordMatch  = "Passwords don't match"
)

// newPasswordMessages maps the new-password rules of field.
func newPasswordMessages(field string, m map[string]string) map[string]string {
	m[field+".required"] = msgPasswordLength
	m[field+".min"] = msgPasswordLength
	m[field+".has_upper"] = msgPasswordUpper
	m[field+".has_lower"] = msgPasswordLower
	m[field+".has_digit"] = msgPasswordDigit
	m[field+".has_special"] = msgPasswordSymbol
	m["confirm_password.eqfield"] = msgPasswordMatch
	return m
}

// LoginForm is the sign-in form.
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

var loginMessages = map[string]string{
	"email.required":    msgEmail,
	"email.email":       msgEmail,
	"password.required": "Password is required",
}

func (f LoginForm) Validate() error {
	return check(f, loginMessages)
}

// Request converts the form to the login body.
func (f LoginForm) Request() protocol.LoginRequest {
	return protocol.LoginRequest{Email: strings.TrimSpace(f.Email), Password: f.Password}
}

// RegisterForm is the account creation form.
type RegisterForm struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8,has_upper,has_lower,has_digit,has_special"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
	FullName        string `json:"full_name" validate:"required,min=2"`
	Company         string `json:"company,omitempty"`
}

var registerMessages = newPasswordMessages("password", map[string]string{
	"email.required":     msgEmail,
	"email.email":        msgEmail,
	"full_name.required": "Full name must be at least 2 characters",
	"full_name.min":      "Full name must be at least 2 characters",
})

func (f RegisterForm) Validate() error {
	return check(f, registerMessages)
}

// Request converts the form to the registration body.
func (f RegisterForm) Request() protocol.RegisterRequest {
	return protocol.RegisterRequest{
		Email:    strings.TrimSpace(f.Email),
		Password: f.Password,
		FullName: strings.TrimSpace(f.FullName),
		Company:  strings.TrimSpace(f.Company),
	}
}

// ForgotPasswordForm requests a reset email.
type ForgotPasswordForm struct {
	Email string `json:"email" validate:"required,email"`
}

func (f ForgotPasswordForm) Validate() error {
	return check(f, loginMessages)
}

// ResetPasswordForm sets a new password from an emailed link. Email and
// Token come from the link.
type ResetPasswordForm struct {
	Email           string `json:"email" validate:"required,email"`
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required,min=8,has_upper,has_lower,has_digit,has_special"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password"`
}

var resetMessages = newPasswordMessages("password", map[string]string{
	"email.required": "Invalid reset link",
	"email.email":    "Invalid reset link",
	"token.required": "Invalid reset link",
})

func (f ResetPasswordForm) Validate() error {
	return check(f, resetMessages)
}

// Request converts the form to the reset confirmation body.
func (f ResetPasswordForm) Request() protocol.PasswordResetConfirmRequest {
	return protocol.PasswordResetConfirmRequest{Email: f.Email, Token: f.Token, NewPassword: f.Password}
}

// AnalysisForm starts a brand analysis.
type AnalysisForm struct {
	BrandName         string   `json:"brand_name" validate:"required,min=2,max=100"`
	WebsiteURL        string   `json:"website_url" validate:"omitempty,url"`
	ProductCategories []string `json:"product_categories" validate:"min=1,max=10,dive,required"`
	ContentSample     string   `json:"content_sample" validate:"max=50000"`
	CompetitorNames   []string `json:"competitor_names" validate:"max=5"`
}

var analysisMessages = map[string]string{
	"brand_name.required":    "Brand name must be at least 2 characters",
	"brand_name.min":         "Brand name must be at least 2 characters",
	"brand_name.max":         "Brand name must be at most 100 characters",
	"website_url.url":        "Please enter a valid URL",
	"product_categories.min": "At least one category is required",
	"product_categories.max": "At most 10 categories allowed",
	"content_sample.max":     "Content sample too large",
	"competitor_names.max":   "Maximum 5 competitors allowed",
}

func (f AnalysisForm) Validate() error {
	return check(f.normalize(), analysisMessages)
}

func (f AnalysisForm) normalize() AnalysisForm {
	f.BrandName = strings.TrimSpace(f.BrandName)
	f.WebsiteURL = strings.TrimSpace(f.WebsiteURL)
	f.ProductCategories = compact(f.ProductCategories)
	f.CompetitorNames = compact(f.CompetitorNames)
	return f
}

// Request converts the form to the analysis body.
func (f AnalysisForm) Request() protocol.BrandAnalysisRequest {
	f = f.normalize()
	return protocol.BrandAnalysisRequest{
		BrandName:         f.BrandName,
		WebsiteURL:        f.WebsiteURL,
		ProductCategories: f.ProductCategories,
		ContentSample:     f.ContentSample,
		CompetitorNames:   f.CompetitorNames,
	}
}

// compact trims entries and drops empty ones, as comma-separated input
// leaves them.
func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SplitList splits comma-separated input into trimmed, non-empty entries.
func SplitList(s string) []string {
	return compact(strings.Split(s, ","))
}

// LogUploadForm uploads a server log for a brand.
type LogUploadForm struct {
	BrandID  string `json:"brand_id" validate:"required"`
	Filename string `json:"file" validate:"required,log_ext"`
	Size     int64  `json:"size" validate:"min=0,max=1073741824"`
	Format   string `json:"log_format" validate:"required,oneof=nginx apache cloudflare aws-alb custom"`
	Timezone string `json:"timezone"`
}

var uploadMessages = map[string]string{
	"brand_id.required":   "Please select a brand first",
	"file.required":       "Please choose a log file",
	"file.log_ext":        "Supports .log, .txt, and .gz files",
	"size.max":            "File is larger than 1GB",
	"log_format.required": "Please choose a log format",
	"log_format.oneof":    "Log format must be one of: nginx, apache, cloudflare, aws-alb, custom",
}

// Validate checks the form; an empty timezone is allowed and sent as UTC.
func (f LogUploadForm) Validate() error {
	return check(f, uploadMessages)
}

// TimezoneOrDefault returns the timezone to send.
func (f LogUploadForm) TimezoneOrDefault() string {
	if f.Timezone == "" {
		return "UTC"
	}
	return f.Timezone
}

// SampleLogForm submits pasted log lines for a quick analysis.
type SampleLogForm struct {
	Sample string `json:"log_sample" validate:"required,max=1048576"`
	Format string `json:"log_format" validate:"required,oneof=nginx apache cloudflare aws-alb custom"`
}

var sampleMessages = map[string]string{
	"log_sample.required": "Paste at least one log line",
	"log_sample.max":      "Log sample too large",
	"log_format.required": "Please choose a log format",
	"log_format.oneof":    "Log format must be one of: nginx, apache, cloudflare, aws-alb, custom",
}

func (f SampleLogForm) Validate() error {
	return check(f, sampleMessages)
}
