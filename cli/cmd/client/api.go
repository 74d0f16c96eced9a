package client

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sigauth/sigauth/cli/helpers"
	authrouter "github.com/sigauth/sigauth/engine/auth/router"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/tidwall/gjson"
)

// API is a thin client for the authentication endpoints. Requests are never
// retried: register and verify are not idempotent.
type API struct {
	http *resty.Client
}

// NewAPI creates a client for the server at baseURL.
func NewAPI(baseURL string, timeout time.Duration) *API {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &API{http: client}
}

// RegisterUser creates a user and returns its id.
func (a *API) RegisterUser(ctx context.Context, username string) (*authrouter.UserResponse, error) {
	var out authrouter.UserResponse
	req := a.http.R().SetContext(ctx).SetQueryParam("username", username).SetResult(&out)
	if err := a.do(ctx, req, http.MethodPost, "/register-user"); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterKey enrolls a base64 public key for userID.
func (a *API) RegisterKey(ctx context.Context, userID, publicKeyB64 string) error {
	req := a.http.R().SetContext(ctx).SetBody(authrouter.RegisterKeyRequest{
		UserID:       userID,
		PublicKeyB64: publicKeyB64,
	})
	return a.do(ctx, req, http.MethodPost, "/register-key")
}

// RequestChallenge asks for a fresh challenge for username.
func (a *API) RequestChallenge(ctx context.Context, username string) (*authrouter.ChallengeResponse, error) {
	var out authrouter.ChallengeResponse
	req := a.http.R().SetContext(ctx).SetQueryParam("username", username).SetResult(&out)
	if err := a.do(ctx, req, http.MethodPost, "/auth/request"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify submits a signature over a challenge and returns the token pair.
func (a *API) Verify(ctx context.Context, challengeID, signatureB64 string) (*authrouter.TokenPairResponse, error) {
	var out authrouter.TokenPairResponse
	req := a.http.R().SetContext(ctx).SetResult(&out).SetBody(authrouter.VerifyRequest{
		ChallengeID:  challengeID,
		SignatureB64: signatureB64,
	})
	if err := a.do(ctx, req, http.MethodPost, "/auth/verify"); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login runs the full challenge/response exchange with key.
func (a *API) Login(ctx context.Context, username string, key ed25519.PrivateKey) (*authrouter.TokenPairResponse, error) {
	challenge, err := a.RequestChallenge(ctx, username)
	if err != nil {
		return nil, err
	}
	message, err := base64.StdEncoding.DecodeString(challenge.ChallengeB64)
	if err != nil {
		return nil, fmt.Errorf("server sent a malformed challenge: %w", err)
	}
	signature := ed25519.Sign(key, message)
	return a.Verify(ctx, challenge.ChallengeID, base64.StdEncoding.EncodeToString(signature))
}

// Refresh exchanges a refresh token for a new bearer token.
func (a *API) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var out authrouter.TokenResponse
	req := a.http.R().SetContext(ctx).SetQueryParam("refresh_token", refreshToken).SetResult(&out)
	if err := a.do(ctx, req, http.MethodPost, "/auth/refresh"); err != nil {
		return "", err
	}
	return out.Token, nil
}

// ListKeys returns the caller's active keys.
func (a *API) ListKeys(ctx context.Context, token string) ([]authrouter.KeyResponse, error) {
	var out struct {
		Keys []authrouter.KeyResponse `json:"keys"`
	}
	req := a.http.R().SetContext(ctx).SetAuthToken(token).SetResult(&out)
	if err := a.do(ctx, req, http.MethodGet, "/auth/keys"); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

func (a *API) do(ctx context.Context, req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return helpers.NewNetworkError(method+" "+path, err)
	}
	logger.FromContext(ctx).Debug("API request completed", "method", method, "path", path, "status", resp.StatusCode())
	if resp.StatusCode() < http.StatusBadRequest {
		return nil
	}
	return decodeError(resp)
}

func decodeError(resp *resty.Response) error {
	body := resp.Body()
	apiErr := &helpers.APIError{Status: resp.StatusCode()}
	if gjson.ValidBytes(body) {
		apiErr.Kind = gjson.GetBytes(body, "error").String()
		apiErr.Details = gjson.GetBytes(body, "details").String()
	}
	if apiErr.Kind == "" {
		apiErr.Kind = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode()), " ", "_"))
	}
	return apiErr
}
