package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	*httptest.Server

	mu   sync.Mutex
	hits map[string]int
}

func (b *fakeBackend) count(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[pattern]
}

// newEnv starts a backend serving routes and points the CLI at it with a
// private home directory.
func newEnv(t *testing.T, routes map[string]http.HandlerFunc) (*fakeBackend, string) {
	t.Helper()
	b := &fakeBackend{hits: map[string]int{}}
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			b.mu.Lock()
			b.hits[pattern]++
			b.mu.Unlock()
			h(w, r)
		})
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		http.NotFound(w, r)
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("APPDATA", home)
	t.Chdir(home)
	t.Setenv("AIODASH_API_URL", b.URL)
	t.Setenv("AIODASH_SESSION_FILE", filepath.Join(home, "session.json"))
	t.Setenv("AIODASH_RETRIES", "0")
	t.Setenv("AIODASH_UPLOAD_POLL_INTERVAL", "10ms")
	t.Setenv("AIODASH_OUTPUT", "json")
	t.Setenv("AIODASH_TOKEN_STORE", "file")
	t.Setenv("AIODASH_NO_COLOR", "true")
	return b, home
}

// run executes one CLI invocation, as a separate process would.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	a := newApp(strings.NewReader(stdin), &stdout, &stderr)
	defer a.close()
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func ok(data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"success": true, "data": data})
	}
}

func loginAs(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter22" {
			respond(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"})
			return
		}
		respond(w, http.StatusOK, map[string]any{
			"access_token": "opaque-token",
			"token_type":   "bearer",
			"user": map[string]any{
				"id":        "u1",
				"email":     body["email"],
				"full_name": "Ada Lovelace",
				"role":      role,
				"is_active": true,
			},
		})
	}
}

func TestLoginWhoamiLogout(t *testing.T) {
	_, home := newEnv(t, map[string]http.HandlerFunc{
		"POST /login": loginAs("client"),
	})

	_, stderr, err := run(t, "hunter22\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Signed in as Ada Lovelace")

	data, err := os.ReadFile(filepath.Join(home, "session.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "opaque-token")

	stdout, _, err := run(t, "", "whoami")
	require.NoError(t, err)
	var user map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &user))
	assert.Equal(t, "ada@example.com", user["email"])
	assert.Equal(t, "client", user["role"])

	_, _, err = run(t, "hunter22\n", "login", "--email", "ada@example.com")
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "already signed in", denied.Decision.Reason)

	_, _, err = run(t, "", "logout")
	require.NoError(t, err)

	_, _, err = run(t, "", "whoami")
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, err.Error(), "run 'dashboard login' first")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	_, home := newEnv(t, map[string]http.HandlerFunc{
		"POST /login": loginAs("client"),
	})

	_, _, err := run(t, "wrong\n", "login", "--email", "ada@example.com")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())

	_, statErr := os.Stat(filepath.Join(home, "session.json"))
	assert.True(t, os.IsNotExist(statErr), "no session may be saved after a failed login")
}

func TestLogin_ValidatesBeforeRequest(t *testing.T) {
	b, _ := newEnv(t, map[string]http.HandlerFunc{
		"POST /login": loginAs("client"),
	})

	_, _, err := run(t, "hunter22\n", "login", "--email", "not-an-email")
	require.Error(t, err)
	assert.Zero(t, b.count("POST /login"))
}

func TestAdminCommands_RequireAdminRole(t *testing.T) {
	b, _ := newEnv(t, map[string]http.HandlerFunc{
		"POST /login":             loginAs("client"),
		"GET /api/v2/admin/users": ok(map[string]any{"users": []any{}, "total": 0}),
	})
	_, _, err := run(t, "hunter22\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)

	_, _, err = run(t, "", "admin", "users")
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Contains(t, err.Error(), "admin role required")
	assert.Zero(t, b.count("GET /api/v2/admin/users"))
}

func TestAdminUsers_AsAdmin(t *testing.T) {
	var (
		mu      sync.Mutex
		gotRole string
	)
	_, _ = newEnv(t, map[string]http.HandlerFunc{
		"POST /login": loginAs("admin"),
		"GET /api/v2/admin/users": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			gotRole = r.URL.Query().Get("role")
			mu.Unlock()
			ok(map[string]any{
				"users": []map[string]any{{"id": "u2", "email": "bob@example.com", "role": "client", "is_active": true}},
				"total": 1,
			})(w, r)
		},
	})
	_, _, err := run(t, "hunter22\n", "login", "--email", "root@example.com")
	require.NoError(t, err)

	stdout, _, err := run(t, "", "-o", "table", "admin", "users", "--role", "client")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, "client", gotRole)
	mu.Unlock()
	assert.Contains(t, stdout, "bob@example.com")
	assert.Contains(t, stdout, "Email")
}

func TestBrandsList_Table(t *testing.T) {
	_, _ = newEnv(t, map[string]http.HandlerFunc{
		"POST /login": loginAs("client"),
		"GET /brands": ok(map[string]any{
			"brands": []map[string]any{
				{"id": "b1", "name": "Acme", "website_url": "https://acme.test", "tracking_enabled": true},
				{"id": "b2", "name": "Globex"},
			},
			"total_count": 2,
		}),
	})
	_, _, err := run(t, "hunter22\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)

	stdout, _, err := run(t, "", "-o", "table", "brands", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Acme")
	assert.Contains(t, stdout, "Globex")
	assert.Contains(t, stdout, "https://acme.test")
	assert.Contains(t, stdout, "Last analysis")
}

func TestLogsUpload_RejectsMissingBrand(t *testing.T) {
	b, home := newEnv(t, map[string]http.HandlerFunc{
		"POST /login":              loginAs("client"),
		"POST /api/v2/logs/upload": ok(map[string]any{"upload_id": "up1"}),
	})
	_, _, err := run(t, "hunter22\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)

	logFile := filepath.Join(home, "access.log")
	require.NoError(t, os.WriteFile(logFile, []byte("127.0.0.1 - - GET / 200\n"), 0o600))

	_, _, err = run(t, "", "logs", "upload", logFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please select a brand first")
	assert.Zero(t, b.count("POST /api/v2/logs/upload"))
}

func TestLogsUpload_Wait(t *testing.T) {
	var (
		mu    sync.Mutex
		polls int
	)
	b, home := newEnv(t, map[string]http.HandlerFunc{
		"POST /login": loginAs("client"),
		"POST /api/v2/logs/upload": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "b1", r.FormValue("brand_id"))
			assert.Equal(t, "apache", r.FormValue("log_format"))
			ok(map[string]any{"upload_id": "up1", "status": "pending"})(w, r)
		},
		"GET /api/v2/logs/upload/up1/status": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			polls++
			n := polls
			mu.Unlock()
			status := "processing"
			if n >= 3 {
				status = "completed"
			}
			ok(map[string]any{"id": "up1", "filename": "access.log", "status": status, "total_requests": 120})(w, r)
		},
	})
	_, _, err := run(t, "hunter22\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)

	logFile := filepath.Join(home, "access.log")
	require.NoError(t, os.WriteFile(logFile, []byte("127.0.0.1 - - GET / 200\n"), 0o600))

	stdout, stderr, err := run(t, "", "logs", "upload", logFile, "--brand", "b1", "--format", "apache", "--wait")
	require.NoError(t, err)
	assert.Contains(t, stderr, "processing")

	var u map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &u))
	assert.Equal(t, "completed", u["status"])
	assert.Equal(t, 3, b.count("GET /api/v2/logs/upload/up1/status"))
}

func TestLogsStatus_WaitReportsFailure(t *testing.T) {
	_, _ = newEnv(t, map[string]http.HandlerFunc{
		"POST /login": loginAs("client"),
		"GET /api/v2/logs/upload/up9/status": ok(map[string]any{
			"id": "up9", "status": "failed", "error": "unrecognized log format",
		}),
	})
	_, _, err := run(t, "hunter22\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)

	_, _, err = run(t, "", "logs", "status", "up9", "--wait")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized log format")
}

func TestAnalyzeBrand_ValidationMessages(t *testing.T) {
	_, _ = newEnv(t, map[string]http.HandlerFunc{
		"POST /login": loginAs("client"),
	})
	_, _, err := run(t, "hunter22\n", "login", "--email", "ada@example.com")
	require.NoError(t, err)

	_, _, err = run(t, "", "analyze", "brand", "--name", "A", "--categories", " , ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Brand name must be at least 2 characters")
	assert.Contains(t, err.Error(), "At least one category is required")
}

func TestHealth_RequiresSignIn(t *testing.T) {
	_, _ = newEnv(t, map[string]http.HandlerFunc{
		"GET /health": ok(map[string]any{"status": "healthy", "services": map[string]bool{"database": true}}),
	})

	_, _, err := run(t, "", "health")
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "sign in required", denied.Decision.Reason)
}
