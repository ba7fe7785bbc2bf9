package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiodash/aiodash/pkg/protocol"
	"github.com/aiodash/aiodash/pkg/retry"
)

func testClient(handler http.Handler, tokens TokenSource) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		Tokens:  tokens,
		RetryConfig: retry.Config{
			MaxAttempts: 4,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})
	return c, ts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestGet_DecodesEnvelope(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"data":      map[string]any{"brands": []any{map[string]any{"id": "b1", "name": "Acme"}}, "total_count": 1},
			"timestamp": "2024-01-01T00:00:00",
		})
	}), nil)
	defer ts.Close()

	var out protocol.BrandList
	require.NoError(t, c.Get(context.Background(), protocol.PathBrands, nil, &out))
	require.Len(t, out.Brands, 1)
	assert.Equal(t, "Acme", out.Brands[0].Name)
	assert.Equal(t, 1, out.TotalCount)
}

func TestGet_DecodesBareBody(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy", "version": "2.0.0"})
	}), nil)
	defer ts.Close()

	var out protocol.Health
	require.NoError(t, c.Get(context.Background(), protocol.PathHealth, nil, &out))
	assert.Equal(t, "healthy", out.Status)
}

func TestGet_SendsQueryAndBearer(t *testing.T) {
	var gotAuth, gotQuery, gotRequestID string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		gotRequestID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, map[string]any{})
	}), StaticToken("tok-123"))
	defer ts.Close()

	q := url.Values{"days": {"7"}}
	require.NoError(t, c.Get(context.Background(), "/x", q, nil))
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "days=7", gotQuery)
	assert.NotEmpty(t, gotRequestID)
}

func TestGet_NoTokenNoHeader(t *testing.T) {
	var gotAuth string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{})
	}), StaticToken(""))
	defer ts.Close()

	require.NoError(t, c.Get(context.Background(), "/x", nil, nil))
	assert.Empty(t, gotAuth)
}

func TestWithoutAuth(t *testing.T) {
	var gotAuth string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{})
	}), StaticToken("tok"))
	defer ts.Close()

	require.NoError(t, c.Post(context.Background(), "/login", nil, map[string]string{"email": "a@b.c"}, nil, WithoutAuth()))
	assert.Empty(t, gotAuth)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "busy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}), nil)
	defer ts.Close()

	var out protocol.Health
	require.NoError(t, c.Get(context.Background(), "/health", nil, &out))
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "ok", out.Status)
}

func TestGet_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
	}), nil)
	defer ts.Close()

	err := c.Get(context.Background(), "/x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())

	e, ok := AsError(err)
	require.True(t, ok, "expected *Error, got %T", err)
	assert.Equal(t, KindHTTP, e.Kind)
	assert.Equal(t, 500, e.Status)
	assert.Equal(t, "boom", e.Message)
	assert.False(t, retry.IsRetryable(err), "retry marker should be stripped")
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Brand not found"})
	}), nil)
	defer ts.Close()

	err := c.Get(context.Background(), "/x", nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "Brand not found", Message(err, "fallback"))
}

func TestPost_NeverRetried(t *testing.T) {
	var calls atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream"})
	}), nil)
	defer ts.Close()

	err := c.Post(context.Background(), "/x", nil, map[string]string{"a": "b"}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, retry.IsRetryable(err))
}

func TestPost_SendsJSONBody(t *testing.T) {
	var got protocol.LoginRequest
	var contentType string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}), nil)
	defer ts.Close()

	body := protocol.LoginRequest{Email: "a@example.com", Password: "secret"}
	require.NoError(t, c.Post(context.Background(), protocol.PathLogin, nil, body, nil))
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, body, got)
}

func TestEnvelopeFailure(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Login failed: Invalid credentials"})
	}), nil)
	defer ts.Close()

	err := c.Post(context.Background(), protocol.PathLogin, nil, nil, nil)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindAPI, e.Kind)
	assert.Equal(t, "Login failed: Invalid credentials", e.Message)
}

func TestDecodeFailure(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": "not an object"})
	}), nil)
	defer ts.Close()

	var out protocol.Health
	err := c.Get(context.Background(), "/x", nil, &out)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindDecode, e.Kind)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), nil)
	defer ts.Close()
	defer close(release)

	err := c.Post(context.Background(), "/slow", nil, nil, nil, WithTimeout(20*time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)
}

func TestCallerCancellation(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}), nil)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := c.Get(ctx, "/x", nil, nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestNetworkError_MarksOffline(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	c := New(Config{BaseURL: addr, RetryConfig: retry.Config{MaxAttempts: 1}})
	err := c.Get(context.Background(), "/x", nil, nil)
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, e.Kind)
	assert.True(t, e.Transient())
	assert.False(t, c.IsOnline())
}

func TestUnauthorizedHook(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"})
	}), StaticToken("expired"))
	defer ts.Close()

	var (
		fired    atomic.Int32
		rejected atomic.Value
	)
	c.OnUnauthorized(func(token string) {
		fired.Add(1)
		rejected.Store(token)
	})

	err := c.Get(context.Background(), "/x", nil, nil)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, "expired", rejected.Load())
}

func TestUnauthorizedHook_SkippedWithoutToken(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid credentials"})
	}), nil)
	defer ts.Close()

	var fired atomic.Int32
	c.OnUnauthorized(func(string) { fired.Add(1) })

	err := c.Post(context.Background(), protocol.PathLogin, nil, nil, nil)
	assert.True(t, IsUnauthorized(err))
	assert.Zero(t, fired.Load())
}

func TestUpload_Multipart(t *testing.T) {
	fields := map[string]string{}
	var fileName, fileBody string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if err == nil {
			fileName = hdr.Filename
			b, _ := io.ReadAll(f)
			fileBody = string(b)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"upload_id": "u-42"}})
	}), StaticToken("tok"))
	defer ts.Close()

	form := NewForm().
		Set("brand_id", "7").
		Set("log_format", "nginx").
		Set("timezone", "UTC").
		AddFile("file", "access.log", strings.NewReader("GET / 200\n"))

	var out protocol.UploadAccepted
	require.NoError(t, c.Upload(context.Background(), "/api/v2/logs/upload", form, &out))
	assert.Equal(t, "u-42", out.UploadID)
	assert.Equal(t, map[string]string{"brand_id": "7", "log_format": "nginx", "timezone": "UTC"}, fields)
	assert.Equal(t, "access.log", fileName)
	assert.Equal(t, "GET / 200\n", fileBody)
}

func TestPing(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, protocol.PathHealth, r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	}), nil)
	defer ts.Close()

	require.NoError(t, c.Ping(context.Background()))
	assert.True(t, c.IsOnline())
	assert.False(t, c.LastPing().IsZero())
}

func TestRateLimit(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{})
	}))
	defer ts.Close()

	c := New(Config{BaseURL: ts.URL, RateLimit: 20, RateBurst: 1})
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Get(context.Background(), "/x", nil, nil))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}
