package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sigauth/sigauth/engine/auth/bearer"
	"github.com/sigauth/sigauth/engine/auth/userctx"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func setupRouter(t *testing.T, clock core.Clock) (*gin.Engine, *bearer.Issuer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	issuer, err := bearer.NewIssuer(testSecret, 15*time.Minute, clock)
	require.NoError(t, err)
	r := gin.New()
	r.GET("/secure", NewManager(issuer).RequireBearer(), func(c *gin.Context) {
		subject, ok := userctx.SubjectFromContext(c.Request.Context())
		if !ok {
			c.String(http.StatusInternalServerError, "missing subject")
			return
		}
		c.String(http.StatusOK, subject.UserID.String())
	})
	return r, issuer
}

func get(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", http.NoBody)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRequireBearer(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Should put the subject in context for a valid token", func(t *testing.T) {
		r, issuer := setupRouter(t, core.NewManualClock(start))
		userID := core.MustNewID()
		token, _, err := issuer.Issue(userID)
		require.NoError(t, err)
		w := get(r, "Bearer "+token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, userID.String(), w.Body.String())
	})

	t.Run("Should accept a lowercase scheme", func(t *testing.T) {
		r, issuer := setupRouter(t, core.NewManualClock(start))
		token, _, err := issuer.Issue(core.MustNewID())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, get(r, "bearer "+token).Code)
	})

	t.Run("Should reject a missing header", func(t *testing.T) {
		r, _ := setupRouter(t, core.NewManualClock(start))
		w := get(r, "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized","details":"invalid or missing credentials"}`, w.Body.String())
	})

	t.Run("Should reject malformed headers", func(t *testing.T) {
		r, _ := setupRouter(t, core.NewManualClock(start))
		for _, h := range []string{"Bearer", "Basic abc", "Bearer a b"} {
			w := get(r, h)
			require.Equal(t, http.StatusUnauthorized, w.Code, h)
			assert.Contains(t, w.Body.String(), "invalid authorization header format")
		}
	})

	t.Run("Should reject a token at its expiry", func(t *testing.T) {
		clock := core.NewManualClock(start)
		r, issuer := setupRouter(t, clock)
		token, exp, err := issuer.Issue(core.MustNewID())
		require.NoError(t, err)
		clock.Set(exp.Add(-time.Second))
		assert.Equal(t, http.StatusOK, get(r, "Bearer "+token).Code)
		clock.Set(exp)
		assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
	})

	t.Run("Should reject a token signed with another secret", func(t *testing.T) {
		r, _ := setupRouter(t, core.NewManualClock(start))
		other, err := bearer.NewIssuer([]byte("ffffffffffffffffffffffffffffffff"), time.Minute, core.NewManualClock(start))
		require.NoError(t, err)
		token, _, err := other.Issue(core.MustNewID())
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
	})

	t.Run("Should reject a token with a malformed subject", func(t *testing.T) {
		r, _ := setupRouter(t, core.NewManualClock(start))
		claims := jwt.RegisteredClaims{
			Subject:   "not-a-uuid",
			ExpiresAt: jwt.NewNumericDate(start.Add(time.Minute)),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, get(r, "Bearer "+token).Code)
	})
}
