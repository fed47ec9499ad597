package handler

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionCheckRequest struct {
	Token string `json:"token"`
}

// AuthHandler handles login and token checks. Tokens are stateless, so
// logout only acknowledges the request.
type AuthHandler struct {
	Service AuthService
	Logger  zerolog.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(svc AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		Service:        svc,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// LoginHandler handles POST /auth/login.
func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	var req loginRequest
	if err := h.ResponseHelper.DecodeJSON(r, &req); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	result, err := h.Service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "login")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Login successful", result)
}

// SessionCheckHandler handles POST /auth/session-check. The token is read
// from the Authorization header, or from the body.
func (h *AuthHandler) SessionCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	token := BearerToken(r)
	if token == "" {
		var req sessionCheckRequest
		if err := h.ResponseHelper.DecodeJSON(r, &req); err != nil {
			h.ErrorHandler.HandleJSONDecodeError(w, err)
			return
		}
		token = strings.TrimSpace(req.Token)
	}

	info, err := h.Service.SessionCheck(ctx, token)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "check session")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Session is valid", info)
}

// LogoutHandler handles POST /auth/logout.
func (h *AuthHandler) LogoutHandler(w http.ResponseWriter, _ *http.Request) {
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Logged out", nil)
}
