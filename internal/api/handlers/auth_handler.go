package handlers

import (
	"net/http"
	"time"

	jujuerrors "github.com/juju/errors"

	"landr/internal/pkg/errors"
	"landr/internal/platform/auth"
)

type AuthHandler struct {
	operators *auth.Operators
	tokenSvc  *auth.TokenService
	dev       bool
}

func NewAuthHandler(operators *auth.Operators, tokenSvc *auth.TokenService, dev bool) *AuthHandler {
	return &AuthHandler{operators: operators, tokenSvc: tokenSvc, dev: dev}
}

type TokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Token exchanges operator credentials for a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}
	if req.Username == "" || req.Password == "" {
		errors.Respond(w, jujuerrors.BadRequestf("username and password are required"), h.dev)
		return
	}

	if err := h.operators.Authenticate(req.Username, req.Password); err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	token, expires, err := h.tokenSvc.GenerateAccessToken(req.Username)
	if err != nil {
		errors.Respond(w, err, h.dev)
		return
	}

	errors.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expires.UTC(),
	}, "")
}
