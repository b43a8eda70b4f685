package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-presence-api/internal/models"
)

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_code", "email", "first_name", "paternal_surname",
		"maternal_surname", "group_name", "password_hash", "role", "created_at", "updated_at"})
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "20250001", "ana@uni.edu", "Ana", "Quispe", "Flores",
			"G1", sqlmock.AnyArg(), models.RoleStudent, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		StudentCode:     "20250001",
		Email:           "ana@uni.edu",
		FirstName:       "Ana",
		PaternalSurname: "Quispe",
		MaternalSurname: "Flores",
		GroupName:       "G1",
		PasswordHash:    "hash",
		Role:            models.RoleStudent,
	}
	require.NoError(t, repo.Create(context.Background(), student))
	assert.NotEmpty(t, student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := studentRows().
		AddRow("stu-1", "20250001", "ana@uni.edu", "Ana", "Quispe", "Flores", "G1", "hash",
			models.RoleStudent, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM students WHERE student_code").
		WithArgs("20250001").
		WillReturnRows(rows)

	student, err := repo.FindByCode(context.Background(), "20250001")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByEmailMissing(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM students WHERE email").
		WithArgs("ghost@uni.edu").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@uni.edu")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := studentRows().
		AddRow("stu-1", "20250001", "ana@uni.edu", "Ana", "Quispe", "Flores", "G1", "hash",
			models.RoleStudent, time.Now(), time.Now()).
		AddRow("stu-2", "20250002", "luis@uni.edu", "Luis", "Mamani", "Rojas", "G1", "hash",
			models.RoleStudent, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM students WHERE role").
		WithArgs(models.RoleStudent).
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background())
	require.NoError(t, err)
	assert.Len(t, roster, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	role := models.RoleStudent
	rows := studentRows().
		AddRow("stu-1", "20250001", "ana@uni.edu", "Ana", "Quispe", "Flores", "G1", "hash",
			models.RoleStudent, time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM students WHERE 1=1 AND role").
		WithArgs(role).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(role).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Role: &role})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
