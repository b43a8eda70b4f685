package models

import "time"

// ExportFormat selects the rendered report artifact type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid returns true when the format is supported.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ExportStatus tracks the lifecycle of an export job.
type ExportStatus string

const (
	ExportStatusQueued   ExportStatus = "queued"
	ExportStatusRunning  ExportStatus = "running"
	ExportStatusFinished ExportStatus = "finished"
	ExportStatusFailed   ExportStatus = "failed"
)

// ExportJob describes an asynchronous report export.
type ExportJob struct {
	ID            string       `json:"id"`
	ScopeLabel    string       `json:"scope"`
	Format        ExportFormat `json:"format"`
	Status        ExportStatus `json:"status"`
	FilePath      string       `json:"-"`
	DownloadToken string       `json:"download_token,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	Error         string       `json:"error,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
