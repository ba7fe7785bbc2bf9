package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldErrors(t *testing.T, err error) Errors {
	t.Helper()
	require.Error(t, err)
	errs, ok := AsErrors(err)
	require.True(t, ok, "expected validate.Errors, got %T", err)
	return errs
}

func TestLoginForm(t *testing.T) {
	assert.NoError(t, LoginForm{Email: "ada@example.com", Password: "x"}.Validate())

	errs := fieldErrors(t, LoginForm{Email: "not-an-email"}.Validate())
	assert.Equal(t, "Please enter a valid email address", errs.Field("email"))
	assert.Equal(t, "Password is required", errs.Field("password"))
}

func TestRegisterForm_PasswordRules(t *testing.T) {
	base := RegisterForm{Email: "ada@example.com", FullName: "Ada"}

	tests := []struct {
		password string
		want     string
	}{
		{"", "Password must be at least 8 characters"},
		{"Ab1!", "Password must be at least 8 characters"},
		{"abcdefg1!", "Password must contain at least one uppercase letter"},
		{"ABCDEFG1!", "Password must contain at least one lowercase letter"},
		{"Abcdefgh!", "Password must contain at least one number"},
		{"Abcdefg12", "Password must contain at least one special character"},
		{"Abcdefg1!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			f := base
			f.Password = tt.password
			f.ConfirmPassword = tt.password
			err := f.Validate()
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, fieldErrors(t, err).Field("password"))
		})
	}
}

func TestRegisterForm_ConfirmAndName(t *testing.T) {
	errs := fieldErrors(t, RegisterForm{
		Email:           "ada@example.com",
		Password:        "Abcdefg1!",
		ConfirmPassword: "Abcdefg1?",
		FullName:        "A",
	}.Validate())
	assert.Equal(t, "Passwords don't match", errs.Field("confirm_password"))
	assert.Equal(t, "Full name must be at least 2 characters", errs.Field("full_name"))
	assert.Empty(t, errs.Field("password"))
	assert.Contains(t, errs.Error(), "confirm_password: Passwords don't match")
}

func TestResetPasswordForm(t *testing.T) {
	errs := fieldErrors(t, ResetPasswordForm{Password: "Abcdefg1!", ConfirmPassword: "Abcdefg1!"}.Validate())
	assert.Equal(t, "Invalid reset link", errs.Field("token"))

	f := ResetPasswordForm{Email: "a@b.co", Token: "t", Password: "Abcdefg1!", ConfirmPassword: "Abcdefg1!"}
	require.NoError(t, f.Validate())
	assert.Equal(t, "Abcdefg1!", f.Request().NewPassword)
}

func TestAnalysisForm(t *testing.T) {
	ok := AnalysisForm{
		BrandName:         "Acme",
		WebsiteURL:        "https://acme.example",
		ProductCategories: []string{"widgets"},
	}
	assert.NoError(t, ok.Validate())

	empty := ok
	empty.WebsiteURL = ""
	assert.NoError(t, empty.Validate(), "website is optional")

	bad := AnalysisForm{
		BrandName:         "A",
		WebsiteURL:        "acme",
		ProductCategories: []string{" ", ""},
		ContentSample:     strings.Repeat("x", 50001),
		CompetitorNames:   []string{"a", "b", "c", "d", "e", "f"},
	}
	errs := fieldErrors(t, bad.Validate())
	assert.Equal(t, "Brand name must be at least 2 characters", errs.Field("brand_name"))
	assert.Equal(t, "Please enter a valid URL", errs.Field("website_url"))
	assert.Equal(t, "At least one category is required", errs.Field("product_categories"))
	assert.Equal(t, "Content sample too large", errs.Field("content_sample"))
	assert.Equal(t, "Maximum 5 competitors allowed", errs.Field("competitor_names"))
}

func TestAnalysisForm_Request(t *testing.T) {
	req := AnalysisForm{
		BrandName:         "  Acme ",
		ProductCategories: SplitList("widgets, gadgets,,"),
	}.Request()
	assert.Equal(t, "Acme", req.BrandName)
	assert.Equal(t, []string{"widgets", "gadgets"}, req.ProductCategories)
	assert.Nil(t, req.CompetitorNames)
}

func TestLogUploadForm(t *testing.T) {
	f := LogUploadForm{BrandID: "b1", Filename: "access.LOG", Size: 1024, Format: "nginx"}
	require.NoError(t, f.Validate())
	assert.Equal(t, "UTC", f.TimezoneOrDefault())

	errs := fieldErrors(t, LogUploadForm{Filename: "access.csv", Size: MaxLogUploadBytes + 1, Format: "iis"}.Validate())
	assert.Equal(t, "Please select a brand first", errs.Field("brand_id"))
	assert.Equal(t, "Supports .log, .txt, and .gz files", errs.Field("file"))
	assert.Equal(t, "File is larger than 1GB", errs.Field("size"))
	assert.Contains(t, errs.Field("log_format"), "nginx, apache")
}

func TestSampleLogForm(t *testing.T) {
	assert.NoError(t, SampleLogForm{Sample: "1.2.3.4 - - GET /", Format: "apache"}.Validate())
	errs := fieldErrors(t, SampleLogForm{}.Validate())
	assert.Equal(t, "Paste at least one log line", errs.Field("log_sample"))
}

func TestAllowedLogExtension(t *testing.T) {
	for name, want := range map[string]bool{
		"a.log": true, "a.txt": true, "a.log.gz": true, "A.GZ": true,
		"a.csv": false, "log": false, "": false,
	} {
		assert.Equal(t, want, AllowedLogExtension(name), name)
	}
}
