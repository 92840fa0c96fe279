package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/forumx/backend/internal/auth"
	"github.com/forumx/backend/internal/database"
	"github.com/forumx/backend/internal/models"
)

const secret = "middleware-secret"

type users map[string]*models.User

func (u users) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	if user, ok := u[email]; ok {
		return user, nil
	}
	return nil, database.ErrNotFound
}

type brokenUsers struct{}

func (brokenUsers) FindUserByEmail(context.Context, string) (*models.User, error) {
	return nil, errors.New("connection refused")
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(lookup RoleLookup) *gin.Engine {
	logger := zap.NewNop()
	r := gin.New()
	r.Use(Recovery(logger), RequestLogger(logger))
	r.GET("/me", AuthMiddleware(auth.NewHMACVerifier(secret), logger), func(c *gin.Context) {
		identity, ok := CurrentIdentity(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": identity.Email})
	})
	r.GET("/admin", AuthMiddleware(auth.NewHMACVerifier(secret), logger), AdminOnly(lookup, logger), func(c *gin.Context) {
		admin, ok := CurrentAdmin(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": admin.Email})
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func token(t *testing.T, email string, ttl time.Duration) string {
	t.Helper()
	tok, err := auth.NewHMACVerifier(secret).Sign("uid-"+email, email, ttl)
	require.NoError(t, err)
	return tok
}

func get(r http.Handler, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(users{})

	w := get(r, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized access"}`, w.Body.String())

	w = get(r, "/me", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/me", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid token"}`, w.Body.String())

	w = get(r, "/me", "Bearer "+token(t, "bob@x.com", -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Token expired"}`, w.Body.String())

	forged, err := auth.NewHMACVerifier("other").Sign("u", "bob@x.com", time.Hour)
	require.NoError(t, err)
	w = get(r, "/me", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/me", "Bearer "+token(t, "Bob@X.com", time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"bob@x.com"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestAdminOnly(t *testing.T) {
	r := newRouter(users{
		"root@x.com": {Email: "root@x.com", Role: models.RoleAdmin},
		"bob@x.com":  {Email: "bob@x.com", Role: models.RoleUser},
	})

	w := get(r, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/admin", "Bearer "+token(t, "bob@x.com", time.Hour))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden access"}`, w.Body.String())

	w = get(r, "/admin", "Bearer "+token(t, "ghost@x.com", time.Hour))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(r, "/admin", "Bearer "+token(t, "root@x.com", time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"root@x.com"}`, w.Body.String())
}

func TestAdminOnlyLookupFailure(t *testing.T) {
	r := newRouter(brokenUsers{})
	w := get(r, "/admin", "Bearer "+token(t, "root@x.com", time.Hour))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRecovery(t *testing.T) {
	r := newRouter(users{})
	w := get(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
}

func TestRequestLoggerKeepsRequestID(t *testing.T) {
	r := newRouter(users{})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}
