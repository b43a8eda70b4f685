package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-presence-api/internal/dto"
	"github.com/noah-isme/campus-presence-api/internal/models"
	appErrors "github.com/noah-isme/campus-presence-api/pkg/errors"
	"github.com/noah-isme/campus-presence-api/pkg/geo"
)

type attendanceRepoStub struct {
	created  []*models.AttendanceRecord
	existing map[string]*models.AttendanceRecord
	audits   []*models.AuditLog
}

func (s *attendanceRepoStub) Create(_ context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = fmt.Sprintf("att-%d", len(s.created)+1)
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	s.created = append(s.created, record)
	return nil
}

func (s *attendanceRepoStub) FindByID(_ context.Context, id string) (*models.AttendanceRecord, error) {
	record, ok := s.existing[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (s *attendanceRepoStub) UpdateStatus(_ context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	record, ok := s.existing[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	record.Status = status
	copied := *record
	return &copied, nil
}

func (s *attendanceRepoStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.audits = append(s.audits, log)
	return nil
}

type rosterStub struct {
	byID   map[string]*models.Student
	byCode map[string]*models.Student
}

func (s rosterStub) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (s rosterStub) FindByCode(_ context.Context, code string) (*models.Student, error) {
	student, ok := s.byCode[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

var testCampus = geo.Coordinate{Lat: -12.0432, Lng: -77.0282}

func testConfig(loc *time.Location) AttendanceConfig {
	return AttendanceConfig{
		Campus:   testCampus,
		RadiusKm: 0.5,
		Location: loc,
		Windows: models.AttendanceWindows{
			Start:     models.ClockTime(18 * 3600),
			EndOnTime: models.ClockTime(18*3600 + 30*60),
			EndLate:   models.ClockTime(19*3600 + 30*60),
		},
	}
}

func newTestService(loc *time.Location) (*AttendanceService, *attendanceRepoStub, rosterStub) {
	repo := &attendanceRepoStub{existing: map[string]*models.AttendanceRecord{}}
	ana := &models.Student{ID: "stu-1", StudentCode: "20250001", FirstName: "Ana", Role: models.RoleStudent}
	roster := rosterStub{
		byID:   map[string]*models.Student{"stu-1": ana},
		byCode: map[string]*models.Student{"20250001": ana},
	}
	svc := NewAttendanceService(repo, roster, nil, nil, nil, nil, testConfig(loc))
	return svc, repo, roster
}

func submitRequest(lat, lng float64, ts time.Time) dto.SubmitAttendanceRequest {
	return dto.SubmitAttendanceRequest{
		StudentID: "stu-1",
		Course:    "Databases",
		Latitude:  &lat,
		Longitude: &lng,
		Timestamp: &ts,
	}
}

func TestSubmitOutsideCampusPersistsAndRejects(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)

	// ~1.1 km north of the reference with a 0.5 km radius.
	ts := time.Date(2025, 3, 10, 18, 10, 0, 0, time.UTC)
	record, result, err := svc.Submit(context.Background(), submitRequest(testCampus.Lat+0.01, testCampus.Lng, ts))
	require.NoError(t, err)

	assert.Equal(t, models.StatusOutsideCampus, record.Status)
	assert.False(t, result.Accepted)
	assert.Equal(t, dto.ReasonOutsideCampus, result.Reason)
	require.Len(t, repo.created, 1)
	assert.Equal(t, models.StatusOutsideCampus, repo.created[0].Status)
}

func TestSubmitAtReferenceLateAccepted(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)

	ts := time.Date(2025, 3, 10, 18, 45, 0, 0, time.UTC)
	record, result, err := svc.Submit(context.Background(), submitRequest(testCampus.Lat, testCampus.Lng, ts))
	require.NoError(t, err)

	assert.Equal(t, models.StatusLate, record.Status)
	assert.True(t, result.Accepted)
	require.Len(t, repo.created, 1)
}

func TestSubmitOnTimeAtWindowStart(t *testing.T) {
	svc, _, _ := newTestService(time.UTC)

	ts := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	record, result, err := svc.Submit(context.Background(), submitRequest(testCampus.Lat, testCampus.Lng, ts))
	require.NoError(t, err)

	assert.Equal(t, models.StatusOnTime, record.Status)
	assert.True(t, result.Accepted)
}

func TestSubmitOutsideScheduleRecordsAbsent(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)

	ts := time.Date(2025, 3, 10, 17, 59, 59, 0, time.UTC)
	record, result, err := svc.Submit(context.Background(), submitRequest(testCampus.Lat, testCampus.Lng, ts))
	require.NoError(t, err)

	assert.Equal(t, models.StatusAbsent, record.Status)
	assert.False(t, result.Accepted)
	assert.Equal(t, dto.ReasonOutsideSchedule, result.Reason)
	// Rejected but still recorded.
	require.Len(t, repo.created, 1)
}

func TestSubmitClassifiesInCampusTimezone(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)
	svc, _, _ := newTestService(lima)

	// 23:45 UTC is 18:45 in Lima: late, not absent.
	ts := time.Date(2025, 3, 10, 23, 45, 0, 0, time.UTC)
	record, result, err := svc.Submit(context.Background(), submitRequest(testCampus.Lat, testCampus.Lng, ts))
	require.NoError(t, err)

	assert.Equal(t, models.StatusLate, record.Status)
	assert.True(t, result.Accepted)
}

func TestSubmitMissingCourseFailsValidation(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)

	req := submitRequest(testCampus.Lat, testCampus.Lng, time.Now())
	req.Course = ""
	_, _, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestSubmitMissingCoordinateFailsValidation(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)

	ts := time.Now()
	req := dto.SubmitAttendanceRequest{StudentID: "stu-1", Course: "Databases", Timestamp: &ts}
	_, _, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestSubmitUnknownStudentNotFound(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)

	req := submitRequest(testCampus.Lat, testCampus.Lng, time.Now())
	req.StudentID = "ghost"
	_, _, err := svc.Submit(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestCorrectByIDOverwritesWithoutCreating(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)
	repo.existing["att-1"] = &models.AttendanceRecord{
		ID: "att-1", StudentID: "stu-1", Course: "Databases", Status: models.StatusAbsent,
		RecordedAt: time.Now().UTC(),
	}

	id := "att-1"
	resp, err := svc.Correct(context.Background(), dto.CorrectionRequest{AttendanceID: &id, NewStatus: "late"}, "teacher-1")
	require.NoError(t, err)

	assert.False(t, resp.Created)
	assert.Equal(t, models.StatusLate, resp.Record.Status)
	assert.Empty(t, repo.created)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionStatusCorrection, repo.audits[0].Action)
}

func TestCorrectByIDMissingRecord(t *testing.T) {
	svc, _, _ := newTestService(time.UTC)

	id := "missing"
	_, err := svc.Correct(context.Background(), dto.CorrectionRequest{AttendanceID: &id, NewStatus: "late"}, "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCorrectByCodeCreatesManualRecord(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)

	code := "20250001"
	resp, err := svc.Correct(context.Background(), dto.CorrectionRequest{StudentCode: &code, NewStatus: "on_time"}, "teacher-1")
	require.NoError(t, err)

	assert.True(t, resp.Created)
	require.Len(t, repo.created, 1)
	created := repo.created[0]
	assert.Equal(t, models.CourseManualCorrection, created.Course)
	assert.Equal(t, "stu-1", created.StudentID)
	assert.Zero(t, created.Latitude)
	assert.Zero(t, created.Longitude)
	assert.Equal(t, models.StatusOnTime, created.Status)
}

func TestCorrectByCodeUnknownStudent(t *testing.T) {
	svc, repo, _ := newTestService(time.UTC)

	code := "ghost"
	_, err := svc.Correct(context.Background(), dto.CorrectionRequest{StudentCode: &code, NewStatus: "absent"}, "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestCorrectSelectorValidation(t *testing.T) {
	svc, _, _ := newTestService(time.UTC)
	id, code := "att-1", "20250001"

	cases := []struct {
		name string
		req  dto.CorrectionRequest
	}{
		{"neither selector", dto.CorrectionRequest{NewStatus: "late"}},
		{"both selectors", dto.CorrectionRequest{AttendanceID: &id, StudentCode: &code, NewStatus: "late"}},
		{"invalid status", dto.CorrectionRequest{AttendanceID: &id, NewStatus: "present"}},
		{"missing status", dto.CorrectionRequest{AttendanceID: &id}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Correct(context.Background(), tc.req, "teacher-1")
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}
