package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mind-engage/mindengage-grades/internal/auth"
	"github.com/mind-engage/mindengage-grades/internal/rbac"
)

func TestIssueAndParse(t *testing.T) {
	a := auth.NewAuthService("test-secret")
	tok, err := a.IssueJWT("u1", "staff")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Sub != "u1" || claims.Role != "staff" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	other := auth.NewAuthService("other-secret")
	tok, err := other.IssueJWT("u1", "admin")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	a := auth.NewAuthService("test-secret")
	if _, err := a.Parse(tok); err == nil {
		t.Fatal("token signed with a different secret parsed")
	}
}

func TestJWTMiddleware(t *testing.T) {
	a := auth.NewAuthService("test-secret")
	var gotSub, gotRole string
	h := auth.JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = auth.SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header: status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: status = %d, want 401", rec.Code)
	}

	tok, err := a.IssueJWT("u7", "learner")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if gotSub != "u7" || gotRole != "learner" {
		t.Fatalf("context sub %q role %q", gotSub, gotRole)
	}
}
