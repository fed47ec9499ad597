package handler

import (
	"net/http"

	"attendance-sync-api/internal/repository"
	"attendance-sync-api/internal/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// UserHandler handles the HTTP requests for operator accounts.
type UserHandler struct {
	Service UserService
	Logger  zerolog.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(svc UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		Service:        svc,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// CreateUserHandler handles POST /users.
func (h *UserHandler) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	var req service.CreateUserRequest
	if err := h.ResponseHelper.DecodeJSON(r, &req); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	user, err := h.Service.CreateUser(ctx, req)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "create user")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "User created successfully", user)
}

// ListUsersHandler handles GET /users.
func (h *UserHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	params := h.ResponseHelper.ParsePaginationParams(r)
	result, err := h.Service.ListUsers(ctx, repository.PaginationParams{Offset: params.Offset, Limit: params.Limit})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve users")
		return
	}

	meta := h.ResponseHelper.CalculatePaginationMeta(params, result.TotalCount)
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, h.ResponseHelper.CreatePaginatedListResponseData(result.Items, meta))
}

// GetUserHandler handles GET /users/{id}.
func (h *UserHandler) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	user, err := h.Service.GetUser(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve user")
		return
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, user)
}

// UpdateUserHandler handles PUT /users/{id}.
func (h *UserHandler) UpdateUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var req service.UpdateUserRequest
	if err := h.ResponseHelper.DecodeJSON(r, &req); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	user, err := h.Service.UpdateUser(ctx, id, req)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "update user")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "User updated successfully", user)
}

// DeleteUserHandler handles DELETE /users/{id}.
func (h *UserHandler) DeleteUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	if err := h.Service.DeleteUser(ctx, id); err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "delete user")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "User deleted successfully", map[string]string{"id": id.String()})
}
