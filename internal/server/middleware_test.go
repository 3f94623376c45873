package server

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"todolist/internal/domain/errors"
	"todolist/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func gzipBytes(t *testing.T, data []byte) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func TestDecompressRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	const limit = 256

	router := gin.New()
	router.Use(DecompressRequest(limit))
	router.POST("/test", func(c *gin.Context) {
		var req models.CreateTodoRequest
		if !bindJSON(c, &req) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": req.Text})
	})

	tests := []struct {
		name            string
		body            func() io.Reader
		contentEncoding string
		want            struct {
			statusCode int
			body       string
		}
	}{
		{
			name:            "uncompressed request",
			body:            func() io.Reader { return strings.NewReader(`{"text":"plain"}`) },
			contentEncoding: "",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusOK, body: "plain"},
		},
		{
			name:            "gzip compressed request",
			body:            func() io.Reader { return gzipBytes(t, []byte(`{"text":"packed"}`)) },
			contentEncoding: "gzip",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusOK, body: "packed"},
		},
		{
			name:            "encoding header in upper case",
			body:            func() io.Reader { return gzipBytes(t, []byte(`{"text":"shouted"}`)) },
			contentEncoding: "GZIP",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusOK, body: "shouted"},
		},
		{
			name:            "body is not gzip",
			body:            func() io.Reader { return strings.NewReader("definitely not gzip") },
			contentEncoding: "gzip",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusBadRequest, body: errors.ErrInvalidGzipRequest.Error()},
		},
		{
			name: "inflated body over the limit",
			body: func() io.Reader {
				return gzipBytes(t, []byte(`{"text":"`+strings.Repeat("a", 64*1024)+`"}`))
			},
			contentEncoding: "gzip",
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusRequestEntityTooLarge, body: errors.ErrRequestTooLarge.Error()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, "/test", tt.body())
			if tt.contentEncoding != "" {
				req.Header.Set("Content-Encoding", tt.contentEncoding)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want.statusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.want.body)
		})
	}
}

func TestLimitRequestBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(LimitRequestBody(64))
	router.POST("/test", func(c *gin.Context) {
		var req models.LoginRequest
		if !bindJSON(c, &req) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": req.Email})
	})

	tests := []struct {
		name string
		body string
		want struct {
			statusCode int
			body       string
		}
	}{
		{
			name: "small body",
			body: `{"email":"a@example.com"}`,
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusOK, body: "a@example.com"},
		},
		{
			name: "body over the limit",
			body: `{"email":"` + strings.Repeat("a", 100) + `@example.com"}`,
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusRequestEntityTooLarge, body: errors.ErrRequestTooLarge.Error()},
		},
		{
			name: "malformed json under the limit",
			body: `{"email":`,
			want: struct {
				statusCode int
				body       string
			}{statusCode: http.StatusBadRequest, body: errors.ErrBadRequest.Error()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodPost, "/test", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want.statusCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.want.body)
		})
	}
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	alice := &models.User{ID: "user-1", Username: "alice"}

	tests := []struct {
		name      string
		prepare   func(r *http.Request)
		mockSetup func(*MockAuthService)
		want      struct {
			statusCode int
			userID     string
		}
	}{
		{
			name:    "bearer header",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
			mockSetup: func(m *MockAuthService) {
				m.On("Verify", mock.Anything, "good").Return(alice, nil)
			},
			want: struct {
				statusCode int
				userID     string
			}{statusCode: http.StatusOK, userID: "user-1"},
		},
		{
			name:    "cookie fallback",
			prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt_token", Value: "good"}) },
			mockSetup: func(m *MockAuthService) {
				m.On("Verify", mock.Anything, "good").Return(alice, nil)
			},
			want: struct {
				statusCode int
				userID     string
			}{statusCode: http.StatusOK, userID: "user-1"},
		},
		{
			name:      "no token",
			prepare:   func(*http.Request) {},
			mockSetup: func(*MockAuthService) {},
			want: struct {
				statusCode int
				userID     string
			}{statusCode: http.StatusUnauthorized},
		},
		{
			name:      "non-bearer scheme",
			prepare:   func(r *http.Request) { r.Header.Set("Authorization", "Basic YWxpY2U6cHc=") },
			mockSetup: func(*MockAuthService) {},
			want: struct {
				statusCode int
				userID     string
			}{statusCode: http.StatusUnauthorized},
		},
		{
			name:    "invalid token",
			prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") },
			mockSetup: func(m *MockAuthService) {
				m.On("Verify", mock.Anything, "bad").Return(nil, errors.ErrInvalidToken)
			},
			want: struct {
				statusCode int
				userID     string
			}{statusCode: http.StatusForbidden},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := new(MockAuthService)
			tt.mockSetup(auth)

			router := gin.New()
			router.GET("/me", AuthRequired(auth), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"id": currentUser(c).ID})
			})

			req, _ := http.NewRequest(http.MethodGet, "/me", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.want.statusCode, w.Code)
			if tt.want.userID != "" {
				assert.Contains(t, w.Body.String(), tt.want.userID)
			} else {
				assert.Contains(t, w.Body.String(), `"error"`)
			}
			auth.AssertExpectations(t)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(rate.Every(time.Hour), 2)
	defer rl.Stop()

	router := gin.New()
	router.Use(rl.LimitMiddleware())
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) int {
		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"))
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	defer rl.Stop()

	rl.getVisitor("10.0.0.1")
	rl.evictIdle(time.Now())
	assert.Len(t, rl.visitors, 1)

	rl.evictIdle(time.Now().Add(visitorIdleAfter + time.Second))
	assert.Empty(t, rl.visitors)

	rl.Stop()
	rl.Stop()
}
