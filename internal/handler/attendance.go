package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"attendance-sync-api/internal/export"
	"attendance-sync-api/internal/repository"
	"attendance-sync-api/internal/service"

	"github.com/rs/zerolog"
)

// AttendanceHandler handles attendance listing and export.
type AttendanceHandler struct {
	Service AttendanceService
	Logger  zerolog.Logger

	ErrorHandler   *ErrorHandler
	ResponseHelper *ResponseHelper
}

// NewAttendanceHandler creates a new AttendanceHandler
func NewAttendanceHandler(svc AttendanceService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		Service:        svc,
		Logger:         logger,
		ErrorHandler:   NewErrorHandler(logger),
		ResponseHelper: NewResponseHelper(),
	}
}

func attendanceQuery(r *http.Request) service.AttendanceQuery {
	q := r.URL.Query()
	return service.AttendanceQuery{
		UserID:        q.Get("userId"),
		MachineNumber: q.Get("machineNumber"),
		From:          q.Get("from"),
		To:            q.Get("to"),
		SortDir:       q.Get("sortDir"),
	}
}

// ListAttendancesHandler handles GET /attendances.
func (h *AttendanceHandler) ListAttendancesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, DefaultTimeout)
	defer cancel()

	params := h.ResponseHelper.ParsePaginationParams(r)
	result, err := h.Service.ListAttendances(ctx, attendanceQuery(r), repository.PaginationParams{Offset: params.Offset, Limit: params.Limit})
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "retrieve attendances")
		return
	}

	meta := h.ResponseHelper.CalculatePaginationMeta(params, result.TotalCount)
	h.ErrorHandler.SendJSONResponse(w, http.StatusOK, h.ResponseHelper.CreatePaginatedListResponseData(result.Items, meta))
}

// ExportAttendancesHandler handles GET /attendances/export. The file is
// rendered fully before any header is written so failures still produce a JSON error.
func (h *AttendanceHandler) ExportAttendancesHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ResponseHelper.CreateRequestContext(r, LongRunningTimeout)
	defer cancel()

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.ErrorHandler.HandleBadRequest(w, err.Error())
		return
	}

	rows, err := h.Service.ExportAttendances(ctx, attendanceQuery(r))
	if err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "export attendances")
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, rows); err != nil {
		h.ErrorHandler.HandleServiceError(w, err, "render export")
		return
	}

	h.Logger.Info().
		Str("format", string(format)).
		Int("rows", len(rows)).
		Int("bytes", buf.Len()).
		Msg("Attendance export served")

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
