package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-presence-api/internal/dto"
	"github.com/noah-isme/campus-presence-api/internal/models"
	appErrors "github.com/noah-isme/campus-presence-api/pkg/errors"
)

type studentRepoStub struct {
	byCode  map[string]*models.Student
	created []*models.Student
	list    []models.Student
	total   int
	filter  models.StudentFilter
}

func (s *studentRepoStub) Create(_ context.Context, student *models.Student) error {
	student.ID = "stu-new"
	s.created = append(s.created, student)
	return nil
}

func (s *studentRepoStub) FindByCode(_ context.Context, code string) (*models.Student, error) {
	student, ok := s.byCode[code]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return student, nil
}

func (s *studentRepoStub) List(_ context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	s.filter = filter
	return s.list, s.total, nil
}

func createRequest() dto.CreateStudentRequest {
	return dto.CreateStudentRequest{
		StudentCode:     "20250001",
		Email:           "ana@uni.edu",
		FirstName:       "Ana",
		PaternalSurname: "Quispe",
		MaternalSurname: "Flores",
		GroupName:       "G1",
		Password:        "secret123",
	}
}

func TestStudentCreateHashesPasswordAndDefaultsRole(t *testing.T) {
	repo := &studentRepoStub{byCode: map[string]*models.Student{}}
	svc := NewStudentService(repo, nil, nil, nil)

	student, err := svc.Create(context.Background(), createRequest())
	require.NoError(t, err)

	assert.Equal(t, models.RoleStudent, student.Role)
	assert.NotEqual(t, "secret123", student.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte("secret123")))
	require.Len(t, repo.created, 1)
}

func TestStudentCreateRecordsAuditLog(t *testing.T) {
	repo := &studentRepoStub{byCode: map[string]*models.Student{}}
	audit := &auditRecorderStub{}
	svc := NewStudentService(repo, audit, nil, nil)

	student, err := svc.Create(context.Background(), createRequest())
	require.NoError(t, err)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStudentCreate, audit.logs[0].Action)
	require.NotNil(t, audit.logs[0].ActorID)
	assert.Equal(t, student.ID, *audit.logs[0].ActorID)
}

func TestStudentCreateDuplicateCode(t *testing.T) {
	repo := &studentRepoStub{byCode: map[string]*models.Student{
		"20250001": {ID: "stu-1", StudentCode: "20250001"},
	}}
	svc := NewStudentService(repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), createRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestStudentCreateInvalidPayload(t *testing.T) {
	repo := &studentRepoStub{byCode: map[string]*models.Student{}}
	svc := NewStudentService(repo, nil, nil, nil)

	req := createRequest()
	req.Email = "not-an-email"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentListDefaultsPagination(t *testing.T) {
	repo := &studentRepoStub{list: []models.Student{{ID: "stu-1"}}, total: 1}
	svc := NewStudentService(repo, nil, nil, nil)

	students, pagination, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)

	assert.Len(t, students, 1)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 50, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, repo.filter.Page)
}
