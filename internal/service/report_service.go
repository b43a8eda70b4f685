package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-presence-api/internal/models"
	appErrors "github.com/noah-isme/campus-presence-api/pkg/errors"
)

type attendanceReader interface {
	ListDetailed(ctx context.Context, from, to *time.Time) ([]models.AttendanceRecordDetail, error)
}

type rosterReader interface {
	Roster(ctx context.Context) ([]models.Student, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type reportCacheObserver interface {
	ObserveReportCache(hit bool)
}

// ReportService partitions attendance records by status and, for
// day-scoped reports, reconciles roster students without a submission
// into synthetic absences. Synthetic entries are never written back to
// storage; they exist only in the report payload.
type ReportService struct {
	attendance attendanceReader
	roster     rosterReader
	cache      reportCache
	metrics    reportCacheObserver
	logger     *zap.Logger
	location   *time.Location
	cacheTTL   time.Duration
}

// NewReportService constructs the report service. The location is the
// campus timezone; day boundaries are computed in it.
func NewReportService(attendance attendanceReader, roster rosterReader, cache reportCache,
	metrics reportCacheObserver, logger *zap.Logger, location *time.Location, cacheTTL time.Duration) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &ReportService{
		attendance: attendance,
		roster:     roster,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		location:   location,
		cacheTTL:   cacheTTL,
	}
}

// Build assembles the report for the given scope. The boolean result
// reports whether the payload was served from cache.
func (s *ReportService) Build(ctx context.Context, scope models.ReportScope) (*models.AttendanceReport, bool, error) {
	cacheKey := "report:" + scope.Label()
	if s.cache != nil {
		var cached models.AttendanceReport
		err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil {
			s.observeCache(true)
			return &cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("report cache read failed", zap.Error(err))
		}
		s.observeCache(false)
	}

	var from, to *time.Time
	day, dayScoped := scope.Day()
	if dayScoped {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.location)
		end := start.AddDate(0, 0, 1)
		from, to = &start, &end
	}

	records, err := s.attendance.ListDetailed(ctx, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}

	report := &models.AttendanceReport{
		Date:          scope.Label(),
		OnTime:        []models.ReportEntry{},
		Late:          []models.ReportEntry{},
		OutsideCampus: []models.ReportEntry{},
		Absent:        []models.ReportEntry{},
	}

	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		seen[record.StudentID] = struct{}{}
		entry := realEntry(record)
		switch record.Status {
		case models.StatusOnTime:
			report.OnTime = append(report.OnTime, entry)
		case models.StatusLate:
			report.Late = append(report.Late, entry)
		case models.StatusOutsideCampus:
			report.OutsideCampus = append(report.OutsideCampus, entry)
		default:
			report.Absent = append(report.Absent, entry)
		}
	}

	if dayScoped {
		roster, err := s.roster.Roster(ctx)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		// Students with no record that day become synthetic absences,
		// appended after the real absent rows. They carry no identifier
		// and no timestamp so callers can tell them apart.
		for _, student := range roster {
			if _, ok := seen[student.ID]; ok {
				continue
			}
			report.Absent = append(report.Absent, models.ReportEntry{
				StudentCode:     student.StudentCode,
				FirstName:       student.FirstName,
				PaternalSurname: student.PaternalSurname,
				MaternalSurname: student.MaternalSurname,
				Status:          models.StatusAbsent,
			})
		}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, report, s.cacheTTL); err != nil {
			s.logger.Warn("report cache write failed", zap.Error(err))
		}
	}
	return report, false, nil
}

func (s *ReportService) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveReportCache(hit)
	}
}

func realEntry(record models.AttendanceRecordDetail) models.ReportEntry {
	id := record.ID
	ts := record.RecordedAt
	return models.ReportEntry{
		AttendanceID:    &id,
		StudentCode:     record.StudentCode,
		FirstName:       record.FirstName,
		PaternalSurname: record.PaternalSurname,
		MaternalSurname: record.MaternalSurname,
		Timestamp:       &ts,
		Status:          record.Status,
	}
}
