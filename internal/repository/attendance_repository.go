package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-presence-api/internal/models"
)

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create inserts one attendance record. Each submission attempt maps to
// exactly one row, including rejected attempts.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now().UTC()
	}
	query := `INSERT INTO attendance (id, student_id, course, latitude, longitude, recorded_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query, record.ID, record.StudentID, record.Course,
		record.Latitude, record.Longitude, record.RecordedAt, record.Status); err != nil {
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

// FindByID returns a single record by identifier.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	query := `SELECT id, student_id, course, latitude, longitude, recorded_at, status
FROM attendance WHERE id = $1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateStatus overwrites the status of one record and returns the updated row.
func (r *AttendanceRepository) UpdateStatus(ctx context.Context, id string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	query := `UPDATE attendance SET status = $2 WHERE id = $1
RETURNING id, student_id, course, latitude, longitude, recorded_at, status`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id, status); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListDetailed returns attendance rows joined with roster identity,
// optionally bounded to [from, to). Rows keep insertion order so report
// partitions preserve the order records were created in.
func (r *AttendanceRepository) ListDetailed(ctx context.Context, from, to *time.Time) ([]models.AttendanceRecordDetail, error) {
	query := `SELECT a.id, a.student_id, a.course, a.latitude, a.longitude, a.recorded_at, a.status,
        s.student_code, s.first_name, s.paternal_surname, s.maternal_surname
        FROM attendance a
        JOIN students s ON s.id = a.student_id`
	args := []interface{}{}
	if from != nil && to != nil {
		query += " WHERE a.recorded_at >= $1 AND a.recorded_at < $2"
		args = append(args, *from, *to)
	}
	query += " ORDER BY a.recorded_at ASC, a.id ASC"

	var rows []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return rows, nil
}

// CreateAuditLog records an administrative action on the attendance trail.
func (r *AttendanceRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO audit_logs (id, actor_id, action, resource, resource_id, old_values, new_values, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.db.ExecContext(ctx, query, log.ID, log.ActorID, log.Action, log.Resource,
		log.ResourceID, log.OldValues, log.NewValues, log.CreatedAt); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
