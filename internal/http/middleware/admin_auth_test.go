package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func serveAdmin(t *testing.T, secret, authorization string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	called := false
	AdminJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if claims, ok := AdminClaimsFromContext(r.Context()); !ok || claims.Subject != "ops" {
			t.Fatalf("expected admin claims in context")
		}
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rec, req)
	return rec, called
}

func signedAdminToken(t *testing.T, secret string, method jwt.SigningMethod, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAdminJWT(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		auth   string
		status int
	}{
		{"auth disabled", "", "Bearer " + signedAdminToken(t, "secret", jwt.SigningMethodHS256, time.Minute), http.StatusUnauthorized},
		{"missing header", "secret", "", http.StatusUnauthorized},
		{"not bearer", "secret", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "secret", "Bearer " + signedAdminToken(t, "wrong", jwt.SigningMethodHS256, time.Minute), http.StatusUnauthorized},
		{"expired", "secret", "Bearer " + signedAdminToken(t, "secret", jwt.SigningMethodHS256, -time.Hour), http.StatusUnauthorized},
		{"other hmac alg", "secret", "Bearer " + signedAdminToken(t, "secret", jwt.SigningMethodHS512, time.Minute), http.StatusUnauthorized},
		{"valid", "secret", "Bearer " + signedAdminToken(t, "secret", jwt.SigningMethodHS256, time.Minute), http.StatusOK},
		{"valid lowercase scheme", "secret", "bearer " + signedAdminToken(t, "secret", jwt.SigningMethodHS256, time.Minute), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, called := serveAdmin(t, tc.secret, tc.auth)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if called != (tc.status == http.StatusOK) {
				t.Fatalf("handler called=%v for status %d", called, rec.Code)
			}
		})
	}
}
