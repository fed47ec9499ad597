package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"
	"attendance-sync-api/pkg/validation"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Constants for timeouts and limits
const (
	DefaultTimeout     = 10 * time.Second
	LongRunningTimeout = 60 * time.Second
	UploadTimeout      = 30 * time.Second
	DefaultMaxUpload   = 5 << 20
)

var employeeSortFields = map[string]bool{"name": true, "department": true, "createdAt": true}

// createEmployeeRequest is the body of POST /employees.
type createEmployeeRequest struct {
	ExternalID *int64 `json:"externalId" validate:"omitempty,min=1"`
	Name       string `json:"name" validate:"required,max=100"`
	Department string `json:"department" validate:"max=100"`
	IsActive   *bool  `json:"isActive"`
	Position   string `json:"position" validate:"max=100"`
}

// EmployeeHandler handles the HTTP requests for employees.
type EmployeeHandler struct {
	Service   EmployeeService
	Logger    zerolog.Logger
	MaxUpload int64

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewEmployeeHandler creates a new EmployeeHandler. maxUpload <= 0 means 5 MiB.
func NewEmployeeHandler(svc EmployeeService, maxUpload int64, logger zerolog.Logger) *EmployeeHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	return &EmployeeHandler{
		Service:        svc,
		Logger:         logger,
		MaxUpload:      maxUpload,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

func (h *EmployeeHandler) parseFilter(r *http.Request) (model.EmployeeFilter, map[string]string) {
	q := r.URL.Query()
	filter := model.EmployeeFilter{
		Department: strings.TrimSpace(q.Get("department")),
		Position:   strings.TrimSpace(q.Get("position")),
		SortBy:     q.Get("sortBy"),
		SortDir:    strings.ToLower(q.Get("sortDir")),
	}
	problems := map[string]string{}

	if raw := q.Get("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			problems["isActive"] = "must be true or false"
		} else {
			filter.IsActive = &active
		}
	}
	if filter.SortBy != "" && !employeeSortFields[filter.SortBy] {
		problems["sortBy"] = "must be one of: name department createdAt"
	}
	if filter.SortDir != "" && filter.SortDir != "asc" && filter.SortDir != "desc" {
		problems["sortDir"] = "must be one of: asc desc"
	}
	return filter, problems
}

// ListEmployeesHandler handles GET /employees.
func (h *EmployeeHandler) ListEmployeesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	filter, problems := h.parseFilter(r)
	if len(problems) > 0 {
		h.ErrorHandler.HandleValidationErrors(w, problems)
		return
	}
	params := h.ResponseHelper.ParsePaginationParams(r)

	result, err := h.Service.ListEmployees(ctx, filter, repository.PaginationParams{Offset: params.Offset, Limit: params.Limit})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve employees")
		return
	}

	meta := h.ResponseHelper.CalculatePaginationMeta(params, result.TotalCount)
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, h.ResponseHelper.CreatePaginatedListResponseData(result.Items, meta))
}

// CreateEmployeeHandler handles POST /employees.
func (h *EmployeeHandler) CreateEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	var req createEmployeeRequest
	if err := h.ResponseHelper.DecodeJSON(r, &req); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}
	if problems := validation.Struct(req); problems != nil {
		h.ErrorHandler.HandleValidationErrors(w, problems)
		return
	}

	employee := model.Employee{
		ExternalID: req.ExternalID,
		Name:       req.Name,
		Department: req.Department,
		IsActive:   true,
		Position:   req.Position,
	}
	if req.IsActive != nil {
		employee.IsActive = *req.IsActive
	}

	created, err := h.Service.CreateEmployee(ctx, employee)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "create employee")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Employee added successfully", created)
}

// GetEmployeeHandler handles GET /employees/{id}.
func (h *EmployeeHandler) GetEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	employee, err := h.Service.GetEmployee(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve employee")
		return
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, employee)
}

// patch decodes an EmployeeUpdate, keeps only the allowed fields and applies it.
func (h *EmployeeHandler) patch(w http.ResponseWriter, r *http.Request, message string, keep func(model.EmployeeUpdate) model.EmployeeUpdate) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var update model.EmployeeUpdate
	if err := h.ResponseHelper.DecodeJSON(r, &update); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}
	update = keep(update)
	if update.Empty() {
		h.ErrorHandler.HandleBadRequest(w, "No fields provided to update")
		return
	}
	if problems := validation.Struct(update); problems != nil {
		h.ErrorHandler.HandleValidationErrors(w, problems)
		return
	}

	updated, err := h.Service.UpdateEmployee(ctx, id, update)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "update employee")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, message, updated)
}

// UpdateEmployeeHandler handles PATCH /employees/{id}.
func (h *EmployeeHandler) UpdateEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "Employee updated", func(u model.EmployeeUpdate) model.EmployeeUpdate {
		u.ProfileImageURL = nil
		return u
	})
}

// UpdatePositionHandler handles PATCH /employees/{id}/position. Department and
// isActive may be changed in the same request.
func (h *EmployeeHandler) UpdatePositionHandler(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "Employee position updated", func(u model.EmployeeUpdate) model.EmployeeUpdate {
		return model.EmployeeUpdate{Position: u.Position, Department: u.Department, IsActive: u.IsActive}
	})
}

// UpdateDepartmentHandler handles PATCH /employees/{id}/department.
func (h *EmployeeHandler) UpdateDepartmentHandler(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "Employee department updated", func(u model.EmployeeUpdate) model.EmployeeUpdate {
		return model.EmployeeUpdate{Department: u.Department}
	})
}

// UpdateIsActiveHandler handles PATCH /employees/{id}/isactive.
func (h *EmployeeHandler) UpdateIsActiveHandler(w http.ResponseWriter, r *http.Request) {
	h.patch(w, r, "Employee active status updated", func(u model.EmployeeUpdate) model.EmployeeUpdate {
		return model.EmployeeUpdate{IsActive: u.IsActive}
	})
}

// UpdateProfileImageHandler handles PATCH /employees/{id}/profile-image with a
// multipart `file` field.
func (h *EmployeeHandler) UpdateProfileImageHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, UploadTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUpload+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		h.ErrorHandler.HandleBadRequest(w, "File is required")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.ErrorHandler.HandleBadRequest(w, "File is required")
		return
	}
	defer file.Close()

	if header.Size > h.MaxUpload {
		h.ErrorHandler.HandleBadRequest(w, "File exceeds the upload size limit")
		return
	}

	updated, err := h.Service.SetProfileImage(ctx, id, header.Filename, file)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "update profile image")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Employee profile image updated", updated)
}

// DeleteEmployeeHandler handles DELETE /employees/{id}. Employees are
// deactivated, never removed.
func (h *EmployeeHandler) DeleteEmployeeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	deactivated, err := h.Service.DeactivateEmployee(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "deactivate employee")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Employee deactivated", deactivated)
}
