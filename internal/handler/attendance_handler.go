package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-presence-api/internal/dto"
	"github.com/noah-isme/campus-presence-api/internal/models"
	appErrors "github.com/noah-isme/campus-presence-api/pkg/errors"
	"github.com/noah-isme/campus-presence-api/pkg/response"
)

type attendanceService interface {
	Submit(ctx context.Context, req dto.SubmitAttendanceRequest) (*models.AttendanceRecord, *dto.SubmissionResult, error)
	Correct(ctx context.Context, req dto.CorrectionRequest, actorID string) (*dto.CorrectionResponse, error)
}

// AttendanceHandler exposes check-in and correction endpoints.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Submit godoc
// @Summary Submit an attendance check-in
// @Description Classifies the submission against the geofence and schedule windows. Rejected attempts are persisted for the audit trail.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.SubmitAttendanceRequest true "Check-in payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var req dto.SubmitAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	record, result, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if !result.Accepted {
		status = http.StatusOK
	}
	response.JSON(c, status, dto.SubmitAttendanceResponse{Record: record, Result: *result}, nil)
}

// Correct godoc
// @Summary Correct an attendance status
// @Description Updates an existing record by attendance_id, or creates a manual record for a student_code with no submission.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.CorrectionRequest true "Correction payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/attendance/status [post]
func (h *AttendanceHandler) Correct(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid correction payload"))
		return
	}

	res, err := h.service.Correct(c.Request.Context(), req, claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
