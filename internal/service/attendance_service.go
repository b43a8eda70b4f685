package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-presence-api/internal/dto"
	"github.com/noah-isme/campus-presence-api/internal/models"
	appErrors "github.com/noah-isme/campus-presence-api/pkg/errors"
	"github.com/noah-isme/campus-presence-api/pkg/geo"
)

type attendanceRepository interface {
	Create(ctx context.Context, record *models.AttendanceRecord) error
	FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type rosterLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
}

type reportCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type submissionObserver interface {
	ObserveSubmission(status models.AttendanceStatus)
}

// AttendanceConfig carries the immutable classification parameters: the
// campus geofence and the time windows, both evaluated in Location.
type AttendanceConfig struct {
	Campus   geo.Coordinate
	RadiusKm float64
	Location *time.Location
	Windows  models.AttendanceWindows
}

// AttendanceService classifies submissions and applies corrections. It is
// stateless apart from its injected collaborators; the configuration is
// read-only and safe to share across concurrent calls.
type AttendanceService struct {
	repo      attendanceRepository
	roster    rosterLookup
	cache     reportCacheInvalidator
	metrics   submissionObserver
	validator *validator.Validate
	logger    *zap.Logger
	config    AttendanceConfig
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, roster rosterLookup, cache reportCacheInvalidator,
	metrics submissionObserver, validate *validator.Validate, logger *zap.Logger, config AttendanceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	svc := &AttendanceService{
		repo:      repo,
		roster:    roster,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
	_ = svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
	return svc
}

// Submit classifies one check-in attempt and persists exactly one record
// for it. Rejections (outside the geofence, outside the schedule) still
// produce a stored record; only validation and lookup failures leave no
// trace.
func (s *AttendanceService) Submit(ctx context.Context, req dto.SubmitAttendanceRequest) (*models.AttendanceRecord, *dto.SubmissionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	if _, err := s.roster.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	submittedAt := time.Now().In(s.config.Location)
	if req.Timestamp != nil {
		submittedAt = req.Timestamp.In(s.config.Location)
	}

	record := &models.AttendanceRecord{
		StudentID:  req.StudentID,
		Course:     req.Course,
		Latitude:   *req.Latitude,
		Longitude:  *req.Longitude,
		RecordedAt: submittedAt.UTC(),
	}

	point := geo.Coordinate{Lat: *req.Latitude, Lng: *req.Longitude}
	if !geo.WithinRadius(s.config.Campus, point, s.config.RadiusKm) {
		record.Status = models.StatusOutsideCampus
		if err := s.persist(ctx, record); err != nil {
			return nil, nil, err
		}
		return record, &dto.SubmissionResult{
			Status:   models.StatusOutsideCampus,
			Accepted: false,
			Reason:   dto.ReasonOutsideCampus,
			Message:  "student is outside the campus geofence",
		}, nil
	}

	record.Status = s.config.Windows.Classify(models.ClockTimeOf(submittedAt))
	if err := s.persist(ctx, record); err != nil {
		return nil, nil, err
	}

	result := &dto.SubmissionResult{Status: record.Status}
	switch record.Status {
	case models.StatusOnTime:
		result.Accepted = true
		result.Message = "attendance registered"
	case models.StatusLate:
		result.Accepted = true
		result.Message = "attendance registered as late"
	default:
		// Recorded as absent: the attempt itself does not count as
		// fulfilling attendance, but the row stays for the audit trail.
		result.Accepted = false
		result.Reason = dto.ReasonOutsideSchedule
		result.Message = "submission outside the allowed schedule, marked as absent"
	}
	return record, result, nil
}

// Correct overwrites the status of an existing record, or creates a manual
// record for a student when only a student code is supplied. Exactly one of
// the two selectors must be present.
func (s *AttendanceService) Correct(ctx context.Context, req dto.CorrectionRequest, actorID string) (*dto.CorrectionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid correction payload")
	}
	hasID := req.AttendanceID != nil && *req.AttendanceID != ""
	hasCode := req.StudentCode != nil && *req.StudentCode != ""
	if hasID == hasCode {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of attendance_id or student_code is required")
	}

	newStatus := models.AttendanceStatus(req.NewStatus)

	if hasID {
		existing, err := s.repo.FindByID(ctx, *req.AttendanceID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch attendance record")
		}
		updated, err := s.repo.UpdateStatus(ctx, existing.ID, newStatus)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance status")
		}
		s.audit(ctx, actorID, models.AuditActionStatusCorrection, updated.ID, existing.Status, newStatus)
		s.invalidateReports(ctx)
		return &dto.CorrectionResponse{Record: updated, Created: false}, nil
	}

	student, err := s.roster.FindByCode(ctx, *req.StudentCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch student")
	}

	record := &models.AttendanceRecord{
		StudentID:  student.ID,
		Course:     models.CourseManualCorrection,
		Latitude:   0,
		Longitude:  0,
		RecordedAt: time.Now().UTC(),
		Status:     newStatus,
	}
	if err := s.persist(ctx, record); err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, models.AuditActionManualRecord, record.ID, "", newStatus)
	return &dto.CorrectionResponse{Record: record, Created: true}, nil
}

func (s *AttendanceService) persist(ctx context.Context, record *models.AttendanceRecord) error {
	if err := s.repo.Create(ctx, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist attendance record")
	}
	if s.metrics != nil {
		s.metrics.ObserveSubmission(record.Status)
	}
	s.invalidateReports(ctx)
	return nil
}

func (s *AttendanceService) invalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "report:*"); err != nil {
		s.logger.Warn("failed to invalidate report cache", zap.Error(err))
	}
}

func (s *AttendanceService) audit(ctx context.Context, actorID, action, recordID string, oldStatus, newStatus models.AttendanceStatus) {
	var actor *string
	if actorID != "" {
		actor = &actorID
	}
	var oldValues []byte
	if oldStatus != "" {
		oldValues, _ = json.Marshal(map[string]string{"status": string(oldStatus)})
	}
	newValues, _ := json.Marshal(map[string]string{"status": string(newStatus)})
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		ActorID:    actor,
		Action:     action,
		Resource:   "attendance",
		ResourceID: &recordID,
		OldValues:  oldValues,
		NewValues:  newValues,
	}); err != nil {
		s.logger.Warn("failed to record correction audit log", zap.Error(err))
	}
}
