package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"expense-tracker/auth"
	"expense-tracker/ledger"
	"expense-tracker/session"
	"expense-tracker/store/memory"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newRouter(t *testing.T) (*gin.Engine, *session.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memory.New(nil)
	svc := auth.NewService(st, st, auth.Options{Secret: "middleware-test-secret", TTL: time.Hour})
	registry := session.NewRegistry(svc, ledger.Deps{Store: st}, session.Options{})
	t.Cleanup(registry.Close)

	r := gin.New()
	r.Use(CORSMiddleware())
	r.GET("/private", AuthRequired(registry), func(c *gin.Context) {
		if Client(c) == nil {
			c.String(http.StatusInternalServerError, "no client")
			return
		}
		id, _ := c.Get("user_id")
		c.String(http.StatusOK, id.(uuid.UUID).String())
	})
	return r, registry
}

func get(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired_Rejects(t *testing.T) {
	r, _ := newRouter(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.header)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401 (body %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestAuthRequired_SetsClient(t *testing.T) {
	r, registry := newRouter(t)
	ctx := context.Background()

	if err := registry.SignUp(ctx, auth.SignUpParams{Email: "alice@example.com", Password: "secret1", DisplayName: "Alice"}); err != nil {
		t.Fatal(err)
	}
	_, s, err := registry.SignIn(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}

	w := get(r, "Bearer "+s.AccessToken)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != s.UserID.String() {
		t.Errorf("user_id = %q, want %q", got, s.UserID)
	}

	if err := registry.SignOut(ctx, s.AccessToken); err != nil {
		t.Fatal(err)
	}
	if w := get(r, "Bearer "+s.AccessToken); w.Code != http.StatusUnauthorized {
		t.Errorf("after sign out status = %d, want 401", w.Code)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/private", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
