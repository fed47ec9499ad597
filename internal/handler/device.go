package handler

import (
	"net/http"
	"strconv"
	"strings"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/internal/repository"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type createDeviceRequest struct {
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	MachineNumber int    `json:"machineNumber"`
}

// DeviceHandler handles the HTTP requests for devices.
type DeviceHandler struct {
	Service DeviceService
	Logger  zerolog.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewDeviceHandler creates a new DeviceHandler
func NewDeviceHandler(svc DeviceService, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{
		Service:        svc,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// CreateDeviceHandler handles POST /devices.
func (h *DeviceHandler) CreateDeviceHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	var req createDeviceRequest
	if err := h.ResponseHelper.DecodeJSON(r, &req); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return
	}

	created, err := h.Service.CreateDevice(ctx, model.Device{IP: req.IP, Port: req.Port, MachineNumber: req.MachineNumber})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "create device")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusCreated, "Device created successfully", created)
}

// ListDevicesHandler handles GET /devices.
func (h *DeviceHandler) ListDevicesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	q := r.URL.Query()
	filter := model.DeviceFilter{IP: strings.TrimSpace(q.Get("ip"))}
	problems := map[string]string{}
	if raw := q.Get("port"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			problems["port"] = "must be an integer"
		} else {
			filter.Port = &port
		}
	}
	if raw := q.Get("machineNumber"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			problems["machineNumber"] = "must be an integer"
		} else {
			filter.MachineNumber = &n
		}
	}
	if len(problems) > 0 {
		h.ErrorHandler.HandleValidationErrors(w, problems)
		return
	}

	params := h.ResponseHelper.ParsePaginationParams(r)
	result, err := h.Service.ListDevices(ctx, filter, repository.PaginationParams{Offset: params.Offset, Limit: params.Limit})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve devices")
		return
	}

	meta := h.ResponseHelper.CalculatePaginationMeta(params, result.TotalCount)
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, h.ResponseHelper.CreatePaginatedListResponseData(result.Items, meta))
}

// GetDeviceHandler handles GET /devices/{id}.
func (h *DeviceHandler) GetDeviceHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	device, err := h.Service.GetDevice(ctx, id)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve device")
		return
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, device)
}

// DeleteDeviceHandler handles DELETE /devices/{id}.
func (h *DeviceHandler) DeleteDeviceHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	id, ok := h.ErrorHandler.ParseAndValidateUUID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	if err := h.Service.DeleteDevice(ctx, id); err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "delete device")
		return
	}
	h.ErrorHandler.SendSuccessResponse(w, http.StatusOK, "Device deleted successfully", map[string]string{"id": id.String()})
}
