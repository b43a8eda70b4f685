package models

import "time"

// ReportEntry is one row of an attendance report. Synthetic absences
// produced by day reconciliation carry a nil AttendanceID and Timestamp;
// callers distinguish "never attempted" from "attempted, judged absent"
// by inspecting AttendanceID.
type ReportEntry struct {
	AttendanceID    *string          `json:"attendance_id"`
	StudentCode     string           `json:"student_code"`
	FirstName       string           `json:"first_name"`
	PaternalSurname string           `json:"paternal_surname"`
	MaternalSurname string           `json:"maternal_surname"`
	Timestamp       *time.Time       `json:"timestamp"`
	Status          AttendanceStatus `json:"status"`
}

// AttendanceReport partitions records by status for one scope.
type AttendanceReport struct {
	Date          string        `json:"date"`
	OnTime        []ReportEntry `json:"on_time"`
	Late          []ReportEntry `json:"late"`
	OutsideCampus []ReportEntry `json:"outside_campus"`
	Absent        []ReportEntry `json:"absent"`
}
