package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-presence-api/internal/dto"
	"github.com/noah-isme/campus-presence-api/internal/models"
	appErrors "github.com/noah-isme/campus-presence-api/pkg/errors"
	"github.com/noah-isme/campus-presence-api/pkg/export"
	"github.com/noah-isme/campus-presence-api/pkg/jobs"
	"github.com/noah-isme/campus-presence-api/pkg/storage"
)

var reportHeaders = []string{"attendance_id", "student_code", "first_name", "paternal_surname", "maternal_surname", "timestamp", "status"}

type reportBuilder interface {
	Build(ctx context.Context, scope models.ReportScope) (*models.AttendanceReport, bool, error)
}

// ExportService renders attendance reports to CSV or PDF asynchronously.
// Jobs run on an in-process worker queue; finished artifacts are stored on
// disk and handed out through HMAC-signed download tokens.
type ExportService struct {
	reports   reportBuilder
	storage   *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
	location  *time.Location
	retention time.Duration

	queue *jobs.Queue

	mu      sync.RWMutex
	entries map[string]*models.ExportJob
}

// ExportServiceConfig tunes the worker pool and artifact retention.
type ExportServiceConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	RetentionTTL      time.Duration
}

// NewExportService constructs the export service and its queue. Call
// Start before enqueueing jobs and Stop on shutdown.
func NewExportService(reports reportBuilder, store *storage.LocalStorage, signer *storage.SignedURLSigner,
	logger *zap.Logger, location *time.Location, cfg ExportServiceConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	svc := &ExportService{
		reports:   reports,
		storage:   store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
		location:  location,
		retention: cfg.RetentionTTL,
		entries:   make(map[string]*models.ExportJob),
	}
	svc.queue = jobs.NewQueue("report-exports", svc.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return svc
}

// Start launches the export workers and, when a retention TTL is set, a
// background sweep that removes expired artifacts from disk.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	if s.retention > 0 {
		go s.retentionLoop(ctx)
	}
}

func (s *ExportService) retentionLoop(ctx context.Context) {
	ticker := time.NewTicker(s.retention)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *ExportService) sweepExpired() {
	deleted, err := s.storage.CleanupOlderThan(s.retention)
	if err != nil {
		s.logger.Warn("export retention sweep failed", zap.Error(err))
		return
	}
	if len(deleted) > 0 {
		s.logger.Info("removed expired export artifacts", zap.Int("count", len(deleted)))
	}
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// CreateJob validates the request and queues an export.
func (s *ExportService) CreateJob(ctx context.Context, req dto.ExportRequest) (*models.ExportJob, error) {
	format := models.ExportFormat(req.Format)
	if !format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	scope := models.AllRecords()
	if req.Date != nil && *req.Date != "" {
		day, err := time.ParseInLocation("2006-01-02", *req.Date, s.location)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date format, expected YYYY-MM-DD")
		}
		scope = models.ForDay(day)
	}

	now := time.Now().UTC()
	job := &models.ExportJob{
		ID:         uuid.NewString(),
		ScopeLabel: scope.Label(),
		Format:     format,
		Status:     models.ExportStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	s.entries[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "report_export", Payload: scope}); err != nil {
		s.fail(job.ID, err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}
	return s.snapshot(job.ID), nil
}

// GetJob returns the current state of an export job.
func (s *ExportService) GetJob(id string) (*models.ExportJob, error) {
	job := s.snapshot(id)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the stored artifact.
func (s *ExportService) ResolveDownload(token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	if job := s.snapshot(jobID); job == nil || job.Status != models.ExportStatusFinished {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export not available")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return file, filepath.Base(relPath), nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	scope, ok := job.Payload.(models.ReportScope)
	if !ok {
		s.fail(job.ID, fmt.Errorf("unexpected payload type %T", job.Payload))
		return nil
	}
	s.transition(job.ID, models.ExportStatusRunning)

	report, _, err := s.reports.Build(ctx, scope)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	entry := s.snapshot(job.ID)
	if entry == nil {
		return nil
	}

	dataset := reportDataset(report)
	var payload []byte
	switch entry.Format {
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Attendance Report "+report.Date)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	relPath := fmt.Sprintf("%s/attendance-%s.%s", job.ID, report.Date, entry.Format)
	if _, err := s.storage.Save(relPath, payload); err != nil {
		s.fail(job.ID, err)
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	s.mu.Lock()
	if stored, ok := s.entries[job.ID]; ok {
		stored.Status = models.ExportStatusFinished
		stored.FilePath = relPath
		stored.DownloadToken = token
		stored.ExpiresAt = &expiresAt
		stored.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()
	return nil
}

func (s *ExportService) transition(id string, status models.ExportStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.entries[id]; ok {
		job.Status = status
		job.UpdatedAt = time.Now().UTC()
	}
}

func (s *ExportService) fail(id string, err error) {
	s.logger.Warn("report export failed", zap.String("job_id", id), zap.Error(err))
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.entries[id]; ok {
		job.Status = models.ExportStatusFailed
		job.Error = err.Error()
		job.UpdatedAt = time.Now().UTC()
	}
}

func (s *ExportService) snapshot(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.entries[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func reportDataset(report *models.AttendanceReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.OnTime)+len(report.Late)+len(report.OutsideCampus)+len(report.Absent))
	for _, group := range [][]models.ReportEntry{report.OnTime, report.Late, report.OutsideCampus, report.Absent} {
		for _, entry := range group {
			row := map[string]string{
				"student_code":     entry.StudentCode,
				"first_name":       entry.FirstName,
				"paternal_surname": entry.PaternalSurname,
				"maternal_surname": entry.MaternalSurname,
				"status":           string(entry.Status),
			}
			if entry.AttendanceID != nil {
				row["attendance_id"] = *entry.AttendanceID
			}
			if entry.Timestamp != nil {
				row["timestamp"] = entry.Timestamp.UTC().Format(time.RFC3339)
			}
			rows = append(rows, row)
		}
	}
	return export.Dataset{Headers: reportHeaders, Rows: rows}
}
