package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/chatrelay/config"
	"go.uber.org/zap/zaptest"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name           string
		providedReqID  string
		shouldBeReused bool
	}{
		{
			name: "generates new request ID",
		},
		{
			name:           "reuses provided request ID",
			providedReqID:  "test-id-123",
			shouldBeReused: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.providedReqID != "" {
				req.Header.Set(RequestIDHeader, tt.providedReqID)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			respID := rec.Header().Get(RequestIDHeader)
			assert.NotEmpty(t, respID)
			assert.Equal(t, respID, seen)

			if tt.shouldBeReused {
				assert.Equal(t, tt.providedReqID, respID)
			} else {
				assert.Len(t, respID, 36)
			}
		})
	}
}

func TestRequestTimer(t *testing.T) {
	handler := RequestTimer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(10 * time.Millisecond)
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	value := rec.Header().Get("X-Response-Time")
	require.NotEmpty(t, value)
	d, err := time.ParseDuration(value)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, 10*time.Millisecond)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCORS(t *testing.T) {
	called := false
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("preflight", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/chat", nil))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, called)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "OPTIONS,POST", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token",
			rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("post", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, called)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestClaims(t *testing.T) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email":            "a@b.com",
		"cognito:username": "alice",
	}).SignedString([]byte("any-secret"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantClaims bool
	}{
		{name: "no header"},
		{name: "not bearer", header: "Basic dXNlcjpwYXNz"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
		{name: "valid token", header: "Bearer " + signed, wantClaims: true},
		{name: "lowercase scheme", header: "bearer " + signed, wantClaims: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]interface{}
			handler := Claims(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetClaims(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/chat", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			if tt.wantClaims {
				require.NotNil(t, got)
				assert.Equal(t, "a@b.com", got["email"])
				assert.Equal(t, "alice", got["cognito:username"])
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestLogging(t *testing.T) {
	handler := Logging(zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	assert.Equal(t, http.StatusOK, rw.Status())

	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), rw.Size())
	assert.Equal(t, http.StatusOK, rw.Status())
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: true, Burst: 2, Every: time.Minute}, nil)
	limiter.now = func() time.Time { return clock }

	for i := 0; i < 100; i++ {
		limiter.get(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}
	assert.Len(t, limiter.visitors, 100)

	// Still inside the refill window: nobody is dropped.
	clock = clock.Add(time.Minute)
	limiter.get("10.9.9.9")
	assert.Len(t, limiter.visitors, 101)

	// Past Burst*Every of idleness the first hundred are swept.
	clock = clock.Add(time.Minute)
	limiter.get("10.9.9.9")
	assert.Len(t, limiter.visitors, 1)
	assert.Contains(t, limiter.visitors, "10.9.9.9")
}

func TestRateLimiter_SweptClientStartsWithFullBucket(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: true, Burst: 1, Every: time.Hour}, nil)
	limiter.now = func() time.Time { return clock }

	assert.True(t, limiter.get("10.0.0.1").Allow())
	assert.False(t, limiter.get("10.0.0.1").Allow())

	clock = clock.Add(2 * time.Hour)
	limiter.get("10.0.0.2")
	assert.NotContains(t, limiter.visitors, "10.0.0.1")
	assert.True(t, limiter.get("10.0.0.1").Allow())
}
