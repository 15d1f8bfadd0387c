package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"battlefield/internal/auth"
	"battlefield/internal/store"
)

const testSecret = "middleware-test-secret"

func okHandler(t *testing.T, wantUserID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Error("expected user ID in context")
		}
		if wantUserID != "" && userID != wantUserID {
			t.Errorf("user ID = %q, want %q", userID, wantUserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateValidToken(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	handler := Authenticate(testSecret)(okHandler(t, "user-1"))
	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuthenticateRejectsMissingHeader(t *testing.T) {
	handler := Authenticate(testSecret)(okHandler(t, ""))
	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	handler := Authenticate(testSecret)(okHandler(t, ""))
	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

type stubRoles struct {
	role string
	err  error
}

func (s *stubRoles) RoleOf(ctx context.Context, userID string) (string, error) {
	return s.role, s.err
}

func TestRequireRoleAllowsEqualRank(t *testing.T) {
	handler := RequireRole(&stubRoles{role: store.RoleAdmin}, store.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	req := httptest.NewRequest(http.MethodGet, "/admin/payouts", nil)
	req = req.WithContext(WithUserID(req.Context(), "admin-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireRoleAllowsHigherRank(t *testing.T) {
	handler := RequireRole(&stubRoles{role: store.RoleSuperadmin}, store.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
	req := httptest.NewRequest(http.MethodGet, "/admin/payouts", nil)
	req = req.WithContext(WithUserID(req.Context(), "root-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireRoleRejectsLowerRank(t *testing.T) {
	handler := RequireRole(&stubRoles{role: store.RolePlayer}, store.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be reached")
		}))
	req := httptest.NewRequest(http.MethodGet, "/admin/payouts", nil)
	req = req.WithContext(WithUserID(req.Context(), "player-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireRoleRejectsUnauthenticated(t *testing.T) {
	handler := RequireRole(&stubRoles{role: store.RoleAdmin}, store.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be reached")
		}))
	req := httptest.NewRequest(http.MethodGet, "/admin/payouts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireRoleStoreFailure(t *testing.T) {
	handler := RequireRole(&stubRoles{err: errors.New("db down")}, store.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be reached")
		}))
	req := httptest.NewRequest(http.MethodGet, "/admin/payouts", nil)
	req = req.WithContext(WithUserID(req.Context(), "admin-1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
