package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-presence-api/internal/models"
	appErrors "github.com/noah-isme/campus-presence-api/pkg/errors"
)

type attendanceReaderStub struct {
	records []models.AttendanceRecordDetail
	calls   int
	from    *time.Time
	to      *time.Time
}

func (s *attendanceReaderStub) ListDetailed(_ context.Context, from, to *time.Time) ([]models.AttendanceRecordDetail, error) {
	s.calls++
	s.from, s.to = from, to
	return s.records, nil
}

type rosterReaderStub struct {
	roster []models.Student
}

func (s rosterReaderStub) Roster(_ context.Context) ([]models.Student, error) {
	return s.roster, nil
}

type cacheStub struct {
	store map[string][]byte
}

func (s *cacheStub) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheStub) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.store == nil {
		s.store = map[string][]byte{}
	}
	s.store[key] = raw
	return nil
}

func detail(id, studentID, code string, status models.AttendanceStatus, at time.Time) models.AttendanceRecordDetail {
	return models.AttendanceRecordDetail{
		AttendanceRecord: models.AttendanceRecord{
			ID: id, StudentID: studentID, Course: "Databases", RecordedAt: at, Status: status,
		},
		StudentCode: code,
	}
}

func testRoster() []models.Student {
	return []models.Student{
		{ID: "stu-1", StudentCode: "S1", FirstName: "Ana", Role: models.RoleStudent},
		{ID: "stu-2", StudentCode: "S2", FirstName: "Luis", Role: models.RoleStudent},
		{ID: "stu-3", StudentCode: "S3", FirstName: "Rosa", Role: models.RoleStudent},
	}
}

func TestBuildDayReportSynthesizesAbsences(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	reader := &attendanceReaderStub{records: []models.AttendanceRecordDetail{
		detail("att-1", "stu-1", "S1", models.StatusOnTime, day.Add(18*time.Hour)),
	}}
	svc := NewReportService(reader, rosterReaderStub{roster: testRoster()}, nil, nil, nil, time.UTC, time.Minute)

	report, cacheHit, err := svc.Build(context.Background(), models.ForDay(day))
	require.NoError(t, err)
	assert.False(t, cacheHit)

	assert.Equal(t, "2025-03-10", report.Date)
	require.Len(t, report.OnTime, 1)
	require.Len(t, report.Absent, 2)

	for _, entry := range report.Absent {
		assert.Nil(t, entry.AttendanceID)
		assert.Nil(t, entry.Timestamp)
		assert.Equal(t, models.StatusAbsent, entry.Status)
	}
	assert.Equal(t, "S2", report.Absent[0].StudentCode)
	assert.Equal(t, "S3", report.Absent[1].StudentCode)
}

func TestBuildDayReportRealAbsentsPrecedeSynthetic(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	reader := &attendanceReaderStub{records: []models.AttendanceRecordDetail{
		detail("att-1", "stu-1", "S1", models.StatusAbsent, day.Add(20*time.Hour)),
	}}
	svc := NewReportService(reader, rosterReaderStub{roster: testRoster()}, nil, nil, nil, time.UTC, time.Minute)

	report, _, err := svc.Build(context.Background(), models.ForDay(day))
	require.NoError(t, err)

	require.Len(t, report.Absent, 3)
	require.NotNil(t, report.Absent[0].AttendanceID)
	assert.Equal(t, "att-1", *report.Absent[0].AttendanceID)
	assert.Nil(t, report.Absent[1].AttendanceID)
	assert.Nil(t, report.Absent[2].AttendanceID)
}

func TestBuildAllRecordsNeverSynthesizes(t *testing.T) {
	reader := &attendanceReaderStub{records: []models.AttendanceRecordDetail{
		detail("att-1", "stu-1", "S1", models.StatusLate, time.Now()),
	}}
	svc := NewReportService(reader, rosterReaderStub{roster: testRoster()}, nil, nil, nil, time.UTC, time.Minute)

	report, _, err := svc.Build(context.Background(), models.AllRecords())
	require.NoError(t, err)

	assert.Equal(t, "all", report.Date)
	assert.Len(t, report.Late, 1)
	assert.Empty(t, report.Absent)
	assert.Nil(t, reader.from)
	assert.Nil(t, reader.to)
}

func TestBuildPartitionPreservesRecordOrder(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	reader := &attendanceReaderStub{records: []models.AttendanceRecordDetail{
		detail("att-1", "stu-1", "S1", models.StatusLate, day.Add(18*time.Hour+40*time.Minute)),
		detail("att-2", "stu-2", "S2", models.StatusOnTime, day.Add(18*time.Hour+5*time.Minute)),
		detail("att-3", "stu-3", "S3", models.StatusLate, day.Add(19*time.Hour)),
	}}
	svc := NewReportService(reader, rosterReaderStub{roster: testRoster()}, nil, nil, nil, time.UTC, time.Minute)

	report, _, err := svc.Build(context.Background(), models.ForDay(day))
	require.NoError(t, err)

	require.Len(t, report.Late, 2)
	assert.Equal(t, "att-1", *report.Late[0].AttendanceID)
	assert.Equal(t, "att-3", *report.Late[1].AttendanceID)
}

func TestBuildDayBoundsUseCampusTimezone(t *testing.T) {
	lima, err := time.LoadLocation("America/Lima")
	require.NoError(t, err)

	reader := &attendanceReaderStub{}
	svc := NewReportService(reader, rosterReaderStub{}, nil, nil, nil, lima, time.Minute)

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, lima)
	_, _, err = svc.Build(context.Background(), models.ForDay(day))
	require.NoError(t, err)

	require.NotNil(t, reader.from)
	require.NotNil(t, reader.to)
	// Midnight in Lima is 05:00 UTC.
	assert.Equal(t, time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC), reader.from.UTC())
	assert.Equal(t, time.Date(2025, 3, 11, 5, 0, 0, 0, time.UTC), reader.to.UTC())
}

func TestBuildIsIdempotent(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	reader := &attendanceReaderStub{records: []models.AttendanceRecordDetail{
		detail("att-1", "stu-1", "S1", models.StatusOnTime, day.Add(18*time.Hour)),
	}}
	svc := NewReportService(reader, rosterReaderStub{roster: testRoster()}, nil, nil, nil, time.UTC, time.Minute)

	first, _, err := svc.Build(context.Background(), models.ForDay(day))
	require.NoError(t, err)
	second, _, err := svc.Build(context.Background(), models.ForDay(day))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// Reconciliation must not mutate the reader's backing slice.
	require.Len(t, reader.records, 1)
	assert.Equal(t, models.StatusOnTime, reader.records[0].Status)
}

func TestBuildServesFromCache(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	reader := &attendanceReaderStub{}
	cache := &cacheStub{}
	svc := NewReportService(reader, rosterReaderStub{roster: testRoster()}, cache, nil, nil, time.UTC, time.Minute)

	_, hit, err := svc.Build(context.Background(), models.ForDay(day))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, reader.calls)

	_, hit, err = svc.Build(context.Background(), models.ForDay(day))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, reader.calls)
}
