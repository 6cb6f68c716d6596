// README: Tests for bearer auth and recovery middleware.
package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"shuttle/internal/http/middleware"
	"shuttle/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.Token
	err   error
}

func (s *stubVerifier) VerifyToken(_ context.Context, _ string) (*infra.Token, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Logging(), middleware.Recovery())
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	authed := r.Group("/", middleware.Auth(verifier))
	authed.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"operator_id": middleware.OperatorID(c),
			"staff_id":    middleware.StaffID(c),
			"order_id":    middleware.OrderID(c),
		})
	})
	return r
}

func do(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRejects(t *testing.T) {
	ok := &stubVerifier{token: &infra.Token{Scope: infra.ScopeOperator, OperatorID: "op-1"}}
	cases := []struct {
		name     string
		verifier infra.TokenVerifier
		auth     string
	}{
		{"missing header", ok, ""},
		{"wrong scheme", ok, "Token abc"},
		{"empty bearer", ok, "Bearer  "},
		{"verifier error", &stubVerifier{err: errors.New("bad token")}, "Bearer abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(newTestRouter(tc.verifier), "/test", tc.auth)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestAuthPopulatesOperator(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{Scope: infra.ScopeOperator, OperatorID: "op-7"}})
	w := do(r, "/test", "Bearer valid")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "op-7") {
		t.Fatalf("expected operator id in body, got %s", w.Body.String())
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
}

func TestAuthWithSignedToken(t *testing.T) {
	verifier, err := infra.NewOperatorVerifier("secret")
	if err != nil {
		t.Fatal(err)
	}
	raw, err := infra.SignOperatorToken("secret", "op-3", jwt.RegisteredClaims{
		Subject:   "ops@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRouter(verifier)
	if w := do(r, "/test", "Bearer "+raw); w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "op-3") {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	forged, _ := infra.SignOperatorToken("other", "op-3", jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	if w := do(r, "/test", "Bearer "+forged); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", w.Code)
	}
}

func TestAuthKeepsScopesApart(t *testing.T) {
	exp := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	staffVerifier, err := infra.NewVerifier("shared", infra.ScopeStaff)
	if err != nil {
		t.Fatal(err)
	}
	r := newTestRouter(staffVerifier)

	operatorTok, _ := infra.SignOperatorToken("shared", "op-1", exp)
	if w := do(r, "/test", "Bearer "+operatorTok); w.Code != http.StatusUnauthorized {
		t.Fatalf("operator token on a staff route: expected 401, got %d", w.Code)
	}
	staffTok, _ := infra.SignToken("shared", infra.Claims{Scope: infra.ScopeStaff, StaffID: "s-4", RegisteredClaims: exp})
	w := do(r, "/test", "Bearer "+staffTok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"staff_id":"s-4"`) || !strings.Contains(w.Body.String(), `"operator_id":""`) {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
}

func TestRecoveryReturns500(t *testing.T) {
	w := do(newTestRouter(&stubVerifier{}), "/panic", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.Token{Scope: infra.ScopeOperator, OperatorID: "op-1"}})
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer x")
	req.Header.Set(middleware.RequestIDHeader, "rid-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(middleware.RequestIDHeader); got != "rid-42" {
		t.Fatalf("request id = %q", got)
	}
}
