package models

import "time"

// AttendanceStatus classifies one attendance submission.
type AttendanceStatus string

const (
	StatusOnTime        AttendanceStatus = "on_time"
	StatusLate          AttendanceStatus = "late"
	StatusAbsent        AttendanceStatus = "absent"
	StatusOutsideCampus AttendanceStatus = "outside_campus"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusOnTime, StatusLate, StatusAbsent, StatusOutsideCampus:
		return true
	default:
		return false
	}
}

// ClockTime is a time of day expressed as seconds since midnight.
type ClockTime int

// ClockTimeOf extracts the wall-clock time of the given instant. The caller
// is responsible for converting the instant into the campus timezone first.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

// AttendanceWindows holds the three classification boundaries.
// Invariant: Start <= EndOnTime <= EndLate, all within one day.
type AttendanceWindows struct {
	Start     ClockTime
	EndOnTime ClockTime
	EndLate   ClockTime
}

// Classify maps an arrival time onto a status using half-open intervals:
//
//	[Start, EndOnTime)   -> on_time
//	[EndOnTime, EndLate) -> late
//	anything else        -> absent
//
// The three cases partition the whole day, so every arrival gets exactly
// one status.
func (w AttendanceWindows) Classify(arrival ClockTime) AttendanceStatus {
	switch {
	case arrival >= w.Start && arrival < w.EndOnTime:
		return StatusOnTime
	case arrival >= w.EndOnTime && arrival < w.EndLate:
		return StatusLate
	default:
		return StatusAbsent
	}
}

// CourseManualCorrection labels records created by a teacher correction
// instead of a student submission.
const CourseManualCorrection = "Manual Correction"

// AttendanceRecord represents one persisted submission attempt. Rejected
// attempts (outside_campus, outside the schedule) are stored too: every
// attempt leaves exactly one row.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	Course     string           `db:"course" json:"course"`
	Latitude   float64          `db:"latitude" json:"latitude"`
	Longitude  float64          `db:"longitude" json:"longitude"`
	RecordedAt time.Time        `db:"recorded_at" json:"recorded_at"`
	Status     AttendanceStatus `db:"status" json:"status"`
}

// AttendanceRecordDetail joins the record with roster identity fields.
type AttendanceRecordDetail struct {
	AttendanceRecord
	StudentCode     string `db:"student_code" json:"student_code"`
	FirstName       string `db:"first_name" json:"first_name"`
	PaternalSurname string `db:"paternal_surname" json:"paternal_surname"`
	MaternalSurname string `db:"maternal_surname" json:"maternal_surname"`
}

// ReportScope selects either the full history or a single calendar day.
type ReportScope struct {
	day *time.Time
}

// AllRecords scopes a report to every stored record with no absence
// reconciliation.
func AllRecords() ReportScope {
	return ReportScope{}
}

// ForDay scopes a report to one calendar day; building it reconciles
// roster students without a record into synthetic absences.
func ForDay(day time.Time) ReportScope {
	d := day
	return ReportScope{day: &d}
}

// Day returns the scoped day when present.
func (s ReportScope) Day() (time.Time, bool) {
	if s.day == nil {
		return time.Time{}, false
	}
	return *s.day, true
}

// Label renders the scope for report output: "all" or "YYYY-MM-DD".
func (s ReportScope) Label() string {
	if s.day == nil {
		return "all"
	}
	return s.day.Format("2006-01-02")
}
