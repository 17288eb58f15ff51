package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "spendwise/internal/errors"
	"spendwise/internal/jobs"
	"spendwise/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockProvisioner struct {
	EnsureUserFn func(externalID, email, name string) (*models.User, error)
}

func (m *mockProvisioner) EnsureUser(externalID, email, name string) (*models.User, error) {
	return m.EnsureUserFn(externalID, email, name)
}

func provisionAs(id string) *mockProvisioner {
	return &mockProvisioner{EnsureUserFn: func(_, email, _ string) (*models.User, error) {
		u := &models.User{Email: email}
		u.ID = id
		return u, nil
	}}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestJWTVerifier(t *testing.T) {
	verifier := NewJWTVerifier("test-secret", "spendwise-test")
	id := Identity{Subject: "idp|123", Email: "ana@test.com", Name: "Ana"}

	t.Run("round_trip", func(t *testing.T) {
		token, err := verifier.Issue(id, time.Minute)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		got, err := verifier.Verify(token)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if *got != id {
			t.Errorf("expected %+v, got %+v", id, *got)
		}
	})

	t.Run("wrong_secret", func(t *testing.T) {
		token, _ := NewJWTVerifier("other-secret", "spendwise-test").Issue(id, time.Minute)
		if _, err := verifier.Verify(token); err == nil {
			t.Error("expected signature failure")
		}
	})

	t.Run("wrong_issuer", func(t *testing.T) {
		token, _ := NewJWTVerifier("test-secret", "someone-else").Issue(id, time.Minute)
		if _, err := verifier.Verify(token); err == nil {
			t.Error("expected issuer mismatch")
		}
	})

	t.Run("expired", func(t *testing.T) {
		token, _ := verifier.Issue(id, -time.Minute)
		if _, err := verifier.Verify(token); err == nil {
			t.Error("expected expired token to fail")
		}
	})

	t.Run("missing_subject", func(t *testing.T) {
		token, _ := verifier.Issue(Identity{Email: "ana@test.com"}, time.Minute)
		if _, err := verifier.Verify(token); err == nil {
			t.Error("expected token without subject to fail")
		}
	})

	t.Run("unsigned", func(t *testing.T) {
		claims := &JWTClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "idp|123", Issuer: "spendwise-test"}}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		if _, err := verifier.Verify(token); err == nil {
			t.Error("expected alg none to be rejected")
		}
	})
}

func TestAuthMiddleware(t *testing.T) {
	verifier := NewJWTVerifier("test-secret", "")
	valid, _ := verifier.Issue(Identity{Subject: "idp|1", Email: "ana@test.com"}, time.Minute)

	tests := []struct {
		name        string
		header      string
		provisioner *mockProvisioner
		wantStatus  int
		wantCode    string
	}{
		{name: "missing_header", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "wrong_scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "empty_token", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "garbage_token", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{
			name:   "provisioning_fails",
			header: "Bearer " + valid,
			provisioner: &mockProvisioner{EnsureUserFn: func(_, _, _ string) (*models.User, error) {
				return nil, apperrors.Wrap(apperrors.ErrInternalServer, errors.New("db down"))
			}},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
		{name: "valid", header: "Bearer " + valid, provisioner: provisionAs("user-1"), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provisioner := tt.provisioner
			if provisioner == nil {
				provisioner = &mockProvisioner{EnsureUserFn: func(_, _, _ string) (*models.User, error) {
					t.Fatal("provisioner must not be called")
					return nil, nil
				}}
			}

			r := gin.New()
			r.Use(AuthMiddleware(verifier, provisioner))
			r.GET("/me", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey), "email": c.GetString(EmailKey)})
			})

			req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode != "" {
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Errorf("error code = %q, want %q", code, tt.wantCode)
				}
				return
			}
			var body map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &body)
			if body["user_id"] != "user-1" || body["email"] != "ana@test.com" {
				t.Errorf("unexpected context values %v", body)
			}
		})
	}
}

func TestPipelineAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		sent       string
		wantStatus int
		wantCode   string
	}{
		{"valid", "pipeline-key", "pipeline-key", http.StatusOK, ""},
		{"wrong", "pipeline-key", "other", http.StatusUnauthorized, "INVALID_API_KEY"},
		{"missing", "pipeline-key", "", http.StatusUnauthorized, "INVALID_API_KEY"},
		{"prefix", "pipeline-key", "pipeline", http.StatusUnauthorized, "INVALID_API_KEY"},
		{"not_configured", "", "anything", http.StatusServiceUnavailable, "PIPELINE_NOT_CONFIGURED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(PipelineAuthMiddleware(tt.configured))
			r.POST("/jobs", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodPost, "/jobs", http.NoBody)
			if tt.sent != "" {
				req.Header.Set("X-API-Key", tt.sent)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Errorf("error code = %q, want %q", code, tt.wantCode)
				}
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	throttle := jobs.PerHour(2, 2)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(UserIDKey, c.GetHeader("X-User"))
		c.Next()
	})
	r.Use(RateLimit(throttle))
	r.POST("/transactions", func(c *gin.Context) { c.Status(http.StatusCreated) })

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/transactions", http.NoBody)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("alice"); rec.Code != http.StatusCreated {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}
	rec := send("alice")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("error code = %q", code)
	}
	if rec := send("bob"); rec.Code != http.StatusCreated {
		t.Errorf("other users keep their own bucket, got %d", rec.Code)
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/app", func(c *gin.Context) { _ = c.Error(apperrors.ErrBudgetNotFound) })
	r.GET("/plain", func(c *gin.Context) { _ = c.Error(errors.New("boom")) })
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		path       string
		wantStatus int
		wantCode   string
	}{
		{"/app", http.StatusNotFound, "BUDGET_NOT_FOUND"},
		{"/plain", http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"/ok", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
		if rec.Code != tt.wantStatus {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.wantStatus)
		}
		if tt.wantCode != "" {
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("%s: code = %q, want %q", tt.path, code, tt.wantCode)
			}
		}
	}
}

func TestRequestLogging(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogging())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-ID", "trace-42")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "trace-42" {
		t.Errorf("expected incoming request id to be kept, got %q", got)
	}
}
