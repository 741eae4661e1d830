package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgauth "github.com/minhtran/veloshop-backend/pkg/auth"
	"github.com/minhtran/veloshop-backend/pkg/config"
	"github.com/minhtran/veloshop-backend/pkg/logger"
)

var testJWT = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "veloshop-test",
	ExpirationMinutes: 30,
}

func mintToken(t *testing.T, userID int64, role string) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testJWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthSeedsContext(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})

	var gotUser int64
	var gotRole string
	handler := Auth(testJWT, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, 42, "customer"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUser != 42 || gotRole != "customer" {
		t.Fatalf("unexpected context: user=%d role=%s", gotUser, gotRole)
	}
}

func TestAuthRejectsMissingAndBadTokens(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})
	handler := Auth(testJWT, logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without credentials")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing header, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}

	wrongSecret := testJWT
	wrongSecret.Secret = "other-secret"
	token, err := pkgauth.MintAccessToken(wrongSecret, time.Now(), pkgauth.AccessTokenPayload{UserID: 1})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "middleware-test"})
	handler := Auth(testJWT, logg)(RequireRole("admin", logg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/1/status", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, 1, "customer"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/1/status", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, 1, "admin"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for admin, got %d", rec.Code)
	}
}
