// Package auth holds the bearer-token middleware guarding protected routes.
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/bearer"
	"github.com/sigauth/sigauth/engine/auth/userctx"
	"github.com/sigauth/sigauth/pkg/logger"
)

// Manager handles authentication middleware. It is the only caller of
// Issuer.Validate.
type Manager struct {
	issuer *bearer.Issuer
}

// NewManager creates a new auth middleware manager
func NewManager(issuer *bearer.Issuer) *Manager {
	return &Manager{issuer: issuer}
}

// RequireBearer rejects requests without a valid bearer token and stores the
// subject in the request context otherwise.
func (m *Manager) RequireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			log.Debug("Authentication failed", "reason", err.Error())
			auth.RecordBearerCheck(ctx, auth.ResultFailure)
			abortUnauthorized(c, err)
			return
		}
		subject, err := m.issuer.Validate(token)
		if err != nil {
			log.Debug("Bearer validation failed")
			auth.RecordBearerCheck(ctx, auth.ResultFailure)
			abortUnauthorized(c, err)
			return
		}
		auth.RecordBearerCheck(ctx, auth.ResultSuccess)
		ctx = userctx.WithSubject(ctx, subject)
		ctx = logger.ContextWithLogger(ctx, log.With("user_id", subject.UserID))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", &authError{message: "no authorization header"}
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", &authError{message: "invalid format", public: true}
	}
	return parts[1], nil
}

func abortUnauthorized(c *gin.Context, err error) {
	details := "invalid or missing credentials"
	if authErr, ok := err.(*authError); ok && authErr.public {
		details = "invalid authorization header format"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"details": details,
	})
}

type authError struct {
	message string
	public  bool // whether details can be shown publicly
}

func (e *authError) Error() string {
	return e.message
}
