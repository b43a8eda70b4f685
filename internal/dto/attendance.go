package dto

import (
	"time"

	"github.com/noah-isme/campus-presence-api/internal/models"
)

// SubmitAttendanceRequest is the payload for a check-in attempt. The
// coordinate fields are pointers so a missing value fails validation
// instead of defaulting to the zero coordinate. Timestamp is optional and
// defaults to now in the campus timezone.
type SubmitAttendanceRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	Course    string     `json:"course" validate:"required"`
	Latitude  *float64   `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64   `json:"longitude" validate:"required,gte=-180,lte=180"`
	Timestamp *time.Time `json:"timestamp"`
}

// SubmissionResult reports the business outcome of a classified attempt.
// Accepted=false does not mean nothing was stored: rejected attempts are
// persisted for the audit trail.
type SubmissionResult struct {
	Status   models.AttendanceStatus `json:"status"`
	Accepted bool                    `json:"accepted"`
	Reason   string                  `json:"reason,omitempty"`
	Message  string                  `json:"message"`
}

// RejectionReason values surfaced in SubmissionResult.
const (
	ReasonOutsideCampus   = "outside_campus"
	ReasonOutsideSchedule = "outside_schedule"
)

// SubmitAttendanceResponse wraps the stored record and the outcome.
type SubmitAttendanceResponse struct {
	Record *models.AttendanceRecord `json:"record"`
	Result SubmissionResult         `json:"result"`
}

// CorrectionRequest updates a record's status or creates a manual record.
// Exactly one of AttendanceID / StudentCode must be set.
type CorrectionRequest struct {
	AttendanceID *string `json:"attendance_id"`
	StudentCode  *string `json:"student_code"`
	NewStatus    string  `json:"new_status" validate:"required,attendance_status"`
}

// CorrectionResponse reports the affected record.
type CorrectionResponse struct {
	Record  *models.AttendanceRecord `json:"record"`
	Created bool                     `json:"created"`
}

// CreateStudentRequest registers a roster member.
type CreateStudentRequest struct {
	StudentCode     string `json:"student_code" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	FirstName       string `json:"first_name" validate:"required"`
	PaternalSurname string `json:"paternal_surname" validate:"required"`
	MaternalSurname string `json:"maternal_surname" validate:"required"`
	GroupName       string `json:"group_name"`
	Password        string `json:"password" validate:"required,min=6"`
	Role            string `json:"role" validate:"omitempty,oneof=student teacher"`
}

// ExportRequest queues an asynchronous report export.
type ExportRequest struct {
	Date   *string `json:"date"`
	Format string  `json:"format" validate:"required,oneof=csv pdf"`
}
