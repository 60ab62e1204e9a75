package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yungbote/wayfarer-backend/internal/platform/ctxutil"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

func adminRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewAdminMiddleware(logger.Nop(), secret).RequireAdmin())
	r.GET("/admin", func(c *gin.Context) {
		p := ctxutil.GetPrincipal(c.Request.Context())
		c.String(http.StatusOK, p.Subject)
	})
	return r
}

func doAdmin(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequireAdmin(t *testing.T) {
	r := adminRouter("s3cret")

	good, err := SignAdminToken("s3cret", "ops@example.com", time.Hour)
	if err != nil {
		t.Fatalf("SignAdminToken: %v", err)
	}
	if rec := doAdmin(r, good); rec.Code != http.StatusOK || rec.Body.String() != "ops@example.com" {
		t.Fatalf("valid token: %d %s", rec.Code, rec.Body.String())
	}

	wrongKey, _ := SignAdminToken("other", "ops", time.Hour)
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role:             RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
	}).SignedString([]byte("s3cret"))
	notAdmin, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{Role: "user"}).SignedString([]byte("s3cret"))
	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, AdminClaims{Role: RoleAdmin}).SignedString([]byte("s3cret"))

	cases := []struct {
		name  string
		token string
		code  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong key", wrongKey, http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"wrong alg", hs512, http.StatusUnauthorized},
		{"not admin", notAdmin, http.StatusForbidden},
	}
	for _, tc := range cases {
		if rec := doAdmin(r, tc.token); rec.Code != tc.code {
			t.Fatalf("%s: got %d want %d", tc.name, rec.Code, tc.code)
		}
	}
}

func TestRequireAdminWithoutSecret(t *testing.T) {
	r := adminRouter("")
	tok, _ := SignAdminToken("anything", "ops", time.Hour)
	if rec := doAdmin(r, tok); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d", rec.Code)
	}
	if _, err := SignAdminToken(" ", "ops", 0); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
