package handler

import (
	"net/http"
	"strings"

	"attendance-sync-api/internal/model"
	"attendance-sync-api/pkg/validation"

	"github.com/rs/zerolog"
)

// syncRequest is the optional body of the manual sync endpoints.
type syncRequest struct {
	MachineNumber *int   `json:"machineNumber"`
	From          string `json:"from"`
	To            string `json:"to"`
}

// SyncHandler exposes manual triggers and diagnostics of the sync engines.
// Either engine may be nil when disabled.
type SyncHandler struct {
	Employees   EmployeeSyncer
	Attendances AttendanceSyncer
	Logger      zerolog.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(employees EmployeeSyncer, attendances AttendanceSyncer, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		Employees:      employees,
		Attendances:    attendances,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

// readSyncRequest merges the JSON body with query parameters; body values win.
func (h *SyncHandler) readSyncRequest(w http.ResponseWriter, r *http.Request) (syncRequest, bool) {
	var req syncRequest
	if err := h.ResponseHelper.DecodeJSON(r, &req); err != nil {
		h.ErrorHandler.HandleJSONDecodeError(w, err)
		return req, false
	}

	q := r.URL.Query()
	if req.MachineNumber != nil {
		if err := validation.ValidateMachineNumber(*req.MachineNumber); err != nil {
			h.ErrorHandler.HandleBadRequest(w, err.Error())
			return req, false
		}
	} else {
		if raw := strings.TrimSpace(q.Get("machineNumber")); raw != "" {
			n, err := validation.ParseMachineNumber(raw)
			if err != nil {
				h.ErrorHandler.HandleBadRequest(w, err.Error())
				return req, false
			}
			req.MachineNumber = &n
		}
	}
	if req.From == "" {
		req.From = q.Get("from")
	}
	if req.To == "" {
		req.To = q.Get("to")
	}
	return req, true
}

func machineLabel(n *int) interface{} {
	if n == nil {
		return "all"
	}
	return *n
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (h *SyncHandler) engineDisabled(w http.ResponseWriter, name string) {
	h.ErrorHandler.SendErrorResponse(w, http.StatusServiceUnavailable, name+" sync is disabled", "SERVICE_UNAVAILABLE", nil)
}

// SyncEmployeesHandler handles POST /employees/sync. The pass runs to
// completion even if the client goes away.
func (h *SyncHandler) SyncEmployeesHandler(w http.ResponseWriter, r *http.Request) {
	if h.Employees == nil {
		h.engineDisabled(w, "employee")
		return
	}
	req, ok := h.readSyncRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Employees.TriggerManual(r.Context(), req.MachineNumber)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "sync employees")
		return
	}

	message := "Employee sync completed"
	if result.Skipped {
		message = "Employee sync already in progress"
	}
	employees := result.Employees
	if employees == nil {
		employees = []model.SyncedEmployee{}
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message":       message,
		"skipped":       result.Skipped,
		"machineNumber": machineLabel(req.MachineNumber),
		"stats":         result.Stats,
		"employees":     employees,
		"count":         len(employees),
		"rawResponses":  result.RawResponses,
	})
}

// EmployeeSyncStatsHandler handles GET /employees/sync/stats.
func (h *SyncHandler) EmployeeSyncStatsHandler(w http.ResponseWriter, _ *http.Request) {
	if h.Employees == nil {
		h.engineDisabled(w, "employee")
		return
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"running": h.Employees.Running(),
		"stats":   h.Employees.Stats(),
	})
}

// LastSyncedEmployeesHandler handles GET /employees/sync/last?machineNumber=N.
func (h *SyncHandler) LastSyncedEmployeesHandler(w http.ResponseWriter, r *http.Request) {
	if h.Employees == nil {
		h.engineDisabled(w, "employee")
		return
	}
	raw := r.URL.Query().Get("machineNumber")
	if strings.TrimSpace(raw) == "" {
		h.ErrorHandler.HandleBadRequest(w, "machineNumber is required")
		return
	}
	n, err := validation.ParseMachineNumber(raw)
	if err != nil {
		h.ErrorHandler.HandleBadRequest(w, err.Error())
		return
	}

	employees := []model.SyncedEmployee{}
	for _, e := range h.Employees.LastEmployees() {
		if e.MachineNumber == n {
			employees = append(employees, e)
		}
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"machineNumber": n,
		"count":         len(employees),
		"employees":     employees,
	})
}

// EmployeeSyncRawHandler handles GET /employees/sync/raw.
func (h *SyncHandler) EmployeeSyncRawHandler(w http.ResponseWriter, _ *http.Request) {
	if h.Employees == nil {
		h.engineDisabled(w, "employee")
		return
	}
	h.sendRaw(w, h.Employees.LastRawResponses())
}

// SyncAttendancesHandler handles POST /attendances/sync.
func (h *SyncHandler) SyncAttendancesHandler(w http.ResponseWriter, r *http.Request) {
	if h.Attendances == nil {
		h.engineDisabled(w, "attendance")
		return
	}
	req, ok := h.readSyncRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Attendances.TriggerManual(r.Context(), req.MachineNumber, req.From, req.To)
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "sync attendances")
		return
	}

	message := "Attendance manual sync completed"
	if result.Skipped {
		message = "Attendance sync already in progress"
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message":       message,
		"skipped":       result.Skipped,
		"machineNumber": machineLabel(req.MachineNumber),
		"from":          nullable(req.From),
		"to":            nullable(req.To),
		"stats":         result.Stats,
	})
}

// AttendanceSyncStatsHandler handles GET /attendances/sync/stats.
func (h *SyncHandler) AttendanceSyncStatsHandler(w http.ResponseWriter, _ *http.Request) {
	if h.Attendances == nil {
		h.engineDisabled(w, "attendance")
		return
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"running": h.Attendances.Running(),
		"stats":   h.Attendances.Stats(),
	})
}

// AttendanceSyncRawHandler handles GET /attendances/sync/raw.
func (h *SyncHandler) AttendanceSyncRawHandler(w http.ResponseWriter, _ *http.Request) {
	if h.Attendances == nil {
		h.engineDisabled(w, "attendance")
		return
	}
	h.sendRaw(w, h.Attendances.LastRawResponses())
}

func (h *SyncHandler) sendRaw(w http.ResponseWriter, raw []model.RawResponse) {
	if raw == nil {
		raw = []model.RawResponse{}
	}
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, map[string]interface{}{
		"count":     len(raw),
		"responses": raw,
	})
}
