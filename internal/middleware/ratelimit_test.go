package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/service"
)

func TestRateLimiterRefillsWholeIntervals(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request within the interval should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("another key has its own bucket")
	}

	now = now.Add(59 * time.Second)
	if rl.Allow("a") {
		t.Fatal("partial interval must not refill")
	}

	now = now.Add(time.Second)
	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("bucket should be full again after one interval")
	}
	if rl.Allow("a") {
		t.Fatal("refill is capped at the rate")
	}
}

func TestRateLimiterCleanupDropsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }
	rl.Allow("idle")

	now = now.Add(4 * time.Minute)
	rl.cleanup()
	if _, ok := rl.visitors["idle"]; ok {
		t.Fatal("idle visitor survived cleanup")
	}
}

func TestRequireRoleAndNoStore(t *testing.T) {
	gin.SetMode(gin.TestMode)

	withClaims := func(role model.Role) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(ContextKeyClaims, &service.Claims{UserID: 1, Role: role})
			c.Next()
		}
	}

	tests := []struct {
		name string
		role model.Role
		want int
	}{
		{"allowed role", model.RoleProfessor, http.StatusOK},
		{"other allowed role", model.RoleAdmin, http.StatusOK},
		{"denied role", model.RoleStudent, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/x", withClaims(tc.role), RequireRole(model.RoleProfessor, model.RoleAdmin), NoStore(), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusOK && rec.Header().Get("Cache-Control") != "no-store, private" {
				t.Fatalf("Cache-Control = %q", rec.Header().Get("Cache-Control"))
			}
		})
	}

	r := gin.New()
	r.GET("/x", RequireRole(model.RoleStudent), func(c *gin.Context) { c.Status(http.StatusOK) })
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing claims status = %d, want 401", rec.Code)
	}
}
