package router

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// ErrorResponse represents a structured error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// publicErrors are the sentinels whose message may be shown to clients.
var publicErrors = []error{
	uc.ErrUsernameTaken,
	uc.ErrInvalidUsername,
	uc.ErrInvalidPublicKey,
	uc.ErrKeyLimitReached,
	uc.ErrUserNotFound,
	uc.ErrKeyNotFound,
	uc.ErrRefreshTokenNotFound,
	uc.ErrUnauthorized,
}

// respondError maps err onto the error taxonomy. Internal errors are logged
// and never carry details.
func respondError(c *gin.Context, err error) {
	kind := uc.Kind(err)
	if kind == core.KindInternal {
		logger.FromContext(c.Request.Context()).Error("Request failed", "error", core.RedactError(err))
		c.AbortWithStatusJSON(kind.HTTPStatus(), ErrorResponse{Error: kind.String()})
		return
	}
	c.AbortWithStatusJSON(kind.HTTPStatus(), ErrorResponse{Error: kind.String(), Details: publicDetails(err)})
}

func respondInvalid(c *gin.Context, details string) {
	c.AbortWithStatusJSON(core.KindInvalidInput.HTTPStatus(), ErrorResponse{
		Error:   core.KindInvalidInput.String(),
		Details: details,
	})
}

func publicDetails(err error) string {
	// Foreign keys are reported as missing, not as owned by someone else.
	if errors.Is(err, uc.ErrNotKeyOwner) {
		return uc.ErrKeyNotFound.Error()
	}
	for _, target := range publicErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}
