package router

import (
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/auth/userctx"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/pkg/logger"
)

// RegisterKeyRequest is the body of POST /register-key.
type RegisterKeyRequest struct {
	UserID       string `json:"user_id"        binding:"required"`
	PublicKeyB64 string `json:"public_key_b64" binding:"required"`
}

// VerifyRequest is the body of POST /auth/verify.
type VerifyRequest struct {
	ChallengeID  string `json:"challenge_id"`
	SignatureB64 string `json:"signature_b64"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ChallengeResponse carries the value the client must sign.
type ChallengeResponse struct {
	ChallengeID  string `json:"challenge_id"`
	ChallengeB64 string `json:"challenge_b64"`
}

// TokenPairResponse is returned by a successful verification.
type TokenPairResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by a refresh.
type TokenResponse struct {
	Token string `json:"token"`
}

// KeyResponse describes one active key.
type KeyResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// Handler handles auth-related HTTP requests
type Handler struct {
	factory *uc.Factory
}

// NewHandler creates a new auth handler
func NewHandler(factory *uc.Factory) *Handler {
	return &Handler{factory: factory}
}

// decodeBase64 decodes standard padded base64. Query strings turn an
// unescaped '+' into a space, so spaces are read back as '+'.
func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.ReplaceAll(s, " ", "+"))
}

// subjectFromContext reads the subject stored by the bearer middleware.
func subjectFromContext(c *gin.Context) (model.Subject, bool) {
	subject, err := userctx.MustSubjectFromContext(c.Request.Context())
	if err != nil {
		respondError(c, uc.ErrUnauthorized)
		return model.Subject{}, false
	}
	return subject, true
}

// Root reports that the service is up.
func (h *Handler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Auth Server Running")
}

// RegisterUser godoc
// @Summary Enroll a user
// @Param username query string true "Unique, case-sensitive username"
// @Success 200 {object} UserResponse
// @Failure 400 {object} ErrorResponse "username taken or invalid"
// @Router /register-user [post]
func (h *Handler) RegisterUser(c *gin.Context) {
	user, err := h.factory.RegisterUser(c.Query("username")).Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, UserResponse{ID: user.ID.String(), Username: user.Username})
}

// RegisterKey godoc
// @Summary Register a public key for a user
// @Accept json
// @Param request body RegisterKeyRequest true "user id and base64 Ed25519 public key"
// @Success 200 {string} string "Key registered"
// @Failure 400 {object} ErrorResponse "malformed request or bad key"
// @Failure 404 {object} ErrorResponse "no such user"
// @Router /register-key [post]
func (h *Handler) RegisterKey(c *gin.Context) {
	var req RegisterKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "invalid request body")
		return
	}
	userID, err := core.ParseID(req.UserID)
	if err != nil {
		respondInvalid(c, "invalid user id")
		return
	}
	publicKey, err := decodeBase64(req.PublicKeyB64)
	if err != nil {
		respondError(c, uc.ErrInvalidPublicKey)
		return
	}
	if _, err := h.factory.RegisterKey(userID, publicKey).Execute(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, "Key registered")
}

// RequestChallenge godoc
// @Summary Issue a single-use challenge
// @Description Rate limited per client IP. Unknown users get a synthetic challenge when enumeration protection is on.
// @Param username query string true "Username"
// @Success 200 {object} ChallengeResponse
// @Failure 404 {object} ErrorResponse "no such user, only with enumeration protection off"
// @Failure 429 {object} ErrorResponse "rate limited"
// @Router /auth/request [post]
func (h *Handler) RequestChallenge(c *gin.Context) {
	challenge, err := h.factory.RequestChallenge(c.Query("username")).Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ChallengeResponse{
		ChallengeID:  challenge.ID.String(),
		ChallengeB64: base64.StdEncoding.EncodeToString(challenge.Value),
	})
}

// Verify godoc
// @Summary Complete a login with a signed challenge
// @Accept json
// @Param request body VerifyRequest true "challenge id and base64 signature"
// @Success 200 {object} TokenPairResponse
// @Failure 401 {object} ErrorResponse "unauthorized"
// @Router /auth/verify [post]
func (h *Handler) Verify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, uc.ErrUnauthorized)
		return
	}
	// An undecodable signature still spends the challenge.
	sig, err := decodeBase64(req.SignatureB64)
	if err != nil {
		sig = nil
	}
	pair, err := h.factory.VerifyChallenge(&uc.VerifyChallengeInput{
		ChallengeID: req.ChallengeID,
		Signature:   sig,
		ClientIP:    c.ClientIP(),
	}).Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenPairResponse{Token: pair.Token, RefreshToken: pair.RefreshToken})
}

// Refresh godoc
// @Summary Exchange a refresh token for a new bearer
// @Param refresh_token query string true "Refresh token"
// @Success 200 {object} TokenResponse
// @Failure 401 {object} ErrorResponse "unauthorized"
// @Router /auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	token, err := h.factory.RefreshToken(c.Query("refresh_token")).Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{Token: token.Token})
}

// RevokeRefresh godoc
// @Summary Revoke a refresh token
// @Param refresh_token query string true "Refresh token"
// @Success 200
// @Failure 404 {object} ErrorResponse "unknown refresh token"
// @Router /auth/revoke-refresh [post]
func (h *Handler) RevokeRefresh(c *gin.Context) {
	err := h.factory.RevokeRefresh(c.Query("refresh_token"), c.ClientIP()).Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// Logout godoc
// @Summary Revoke every refresh token of the caller
// @Param Authorization header string true "Bearer token"
// @Success 200 {string} string "Logged out"
// @Failure 401 {object} ErrorResponse "unauthorized"
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		return
	}
	if err := h.factory.Logout(subject, c.ClientIP()).Execute(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, "Logged out")
}

// AddKey godoc
// @Summary Add a public key for the caller
// @Param Authorization header string true "Bearer token"
// @Param public_key_b64 query string true "Base64 Ed25519 public key"
// @Success 200 {object} map[string]string "key_id"
// @Failure 400 {object} ErrorResponse "bad key"
// @Failure 401 {object} ErrorResponse "unauthorized"
// @Router /auth/add-key [post]
func (h *Handler) AddKey(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		return
	}
	publicKey, err := decodeBase64(c.Query("public_key_b64"))
	if err != nil {
		respondError(c, uc.ErrInvalidPublicKey)
		return
	}
	key, err := h.factory.AddKey(subject, publicKey, c.ClientIP()).Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key_id": key.ID.String()})
}

// RevokeKey godoc
// @Summary Revoke one of the caller's keys
// @Param Authorization header string true "Bearer token"
// @Param key_id query string true "Key id"
// @Success 200
// @Failure 401 {object} ErrorResponse "unauthorized"
// @Failure 404 {object} ErrorResponse "key not found"
// @Router /auth/revoke-key [post]
func (h *Handler) RevokeKey(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		return
	}
	keyID, err := core.ParseID(c.Query("key_id"))
	if err != nil {
		respondInvalid(c, "invalid key id")
		return
	}
	if err := h.factory.RevokeKey(subject, keyID, c.ClientIP()).Execute(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// ListKeys godoc
// @Summary List the caller's active keys
// @Param Authorization header string true "Bearer token"
// @Success 200 {object} map[string][]KeyResponse "keys"
// @Failure 401 {object} ErrorResponse "unauthorized"
// @Router /auth/keys [get]
func (h *Handler) ListKeys(c *gin.Context) {
	subject, ok := subjectFromContext(c)
	if !ok {
		return
	}
	keys, err := h.factory.ListKeys(subject).Execute(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]KeyResponse, 0, len(keys))
	for i := range keys {
		out = append(out, KeyResponse{ID: keys[i].ID.String(), CreatedAt: keys[i].CreatedAt})
	}
	c.JSON(http.StatusOK, gin.H{"keys": out})
}

// Secure is the sample protected endpoint.
func (h *Handler) Secure(c *gin.Context) {
	if _, ok := subjectFromContext(c); !ok {
		return
	}
	logger.FromContext(c.Request.Context()).Debug("Secure endpoint reached")
	c.String(http.StatusOK, "Authenticated OK")
}
