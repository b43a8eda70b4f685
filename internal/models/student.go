package models

import "time"

// UserRole represents the available roles on the roster.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
)

// Valid returns true when the role is a supported value.
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// Student is a roster member. Students both submit attendance and, when
// their role is teacher, operate the admin surface.
type Student struct {
	ID              string    `db:"id" json:"id"`
	StudentCode     string    `db:"student_code" json:"student_code"`
	Email           string    `db:"email" json:"email"`
	FirstName       string    `db:"first_name" json:"first_name"`
	PaternalSurname string    `db:"paternal_surname" json:"paternal_surname"`
	MaternalSurname string    `db:"maternal_surname" json:"maternal_surname"`
	GroupName       string    `db:"group_name" json:"group_name"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	Role            UserRole  `db:"role" json:"role"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures filtering criteria for listing the roster.
type StudentFilter struct {
	Search   string
	Group    string
	Role     *UserRole
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
