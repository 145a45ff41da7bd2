package identity

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kabinet/core"
)

const maxExternalIDLength = 64

var (
	ErrStudentExists = errors.New("a student with this id already exists")
	ErrTeacherExists = errors.New("a teacher with this id already exists")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		GetStudentByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Student, error)
		GetStudentByExternalID(ctx context.Context, studentID string, exec ...core.DBExecutor) (Student, error)
		// FindStudent does an exact match on both the external id and the normalized birth date.
		FindStudent(ctx context.Context, studentID, birthDate string, exec ...core.DBExecutor) (Student, error)
		GetTeacherByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Teacher, error)
		GetTeacherByExternalID(ctx context.Context, teacherID string, exec ...core.DBExecutor) (Teacher, error)
		FindTeacher(ctx context.Context, teacherID, birthDate string, exec ...core.DBExecutor) (Teacher, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CleanExternalID trims id and checks its charset and length.
func CleanExternalID(field, id string) (string, error) {
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return "", core.NewFieldError(field, "this field is required")
	case len([]rune(id)) > maxExternalIDLength:
		return "", core.NewFieldError(field, "must be at most 64 characters long")
	case !core.ValidExternalID(id):
		return "", core.NewFieldError(field, "only letters, digits, hyphens and underscores are allowed")
	}
	return id, nil
}

func cleanBirthDate(raw string) (string, error) {
	date, err := NormalizeBirthDate(raw)
	if err != nil {
		return "", core.NewFieldError("birth_date", err.Error())
	}
	return date, nil
}

// Authenticate matches (externalID, birth date) against the role's table.
// Any mismatch yields core.ErrUnauthorized, whatever part of the credentials was wrong.
func (svc *Service) Authenticate(ctx context.Context, role Role, externalID, rawBirthDate string) (Identity, error) {
	extID, err := CleanExternalID("external_id", externalID)
	if err != nil {
		return Identity{}, err
	}
	birthDate, err := cleanBirthDate(rawBirthDate)
	if err != nil {
		return Identity{}, err
	}

	var ident Identity
	switch role {
	case RoleStudent:
		s, err := svc.repo.FindStudent(ctx, extID, birthDate)
		if err != nil {
			return Identity{}, trapNotFound(err)
		}
		ident = s.Identity()
	case RoleTeacher:
		t, err := svc.repo.FindTeacher(ctx, extID, birthDate)
		if err != nil {
			return Identity{}, trapNotFound(err)
		}
		ident = t.Identity()
	default:
		return Identity{}, errors.Errorf("unknown role %q", role)
	}
	return ident, nil
}

func trapNotFound(err error) error {
	if core.IsNotFound(err) {
		return core.ErrUnauthorized
	}
	return err
}

// Resolve loads the identity behind a (user id, role) pair, e.g. from a session.
func (svc *Service) Resolve(ctx context.Context, userID int64, role Role) (Identity, error) {
	switch role {
	case RoleStudent:
		s, err := svc.Student(ctx, userID)
		return s.Identity(), err
	case RoleTeacher:
		t, err := svc.Teacher(ctx, userID)
		return t.Identity(), err
	}
	return Identity{}, errors.Errorf("unknown role %q", role)
}

func (svc *Service) Student(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) StudentByExternalID(ctx context.Context, studentID string) (Student, error) {
	return svc.repo.GetStudentByExternalID(ctx, strings.TrimSpace(studentID))
}

func (svc *Service) Teacher(ctx context.Context, id int64) (Teacher, error) {
	return svc.repo.GetTeacherByID(ctx, id)
}

func (svc *Service) TeacherByExternalID(ctx context.Context, teacherID string) (Teacher, error) {
	return svc.repo.GetTeacherByExternalID(ctx, strings.TrimSpace(teacherID))
}

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	extID, err := CleanExternalID("student_id", ns.StudentID)
	if err != nil {
		return Student{}, err
	}
	birthDate, err := cleanBirthDate(ns.BirthDate)
	if err != nil {
		return Student{}, err
	}
	if _, err = svc.repo.GetStudentByExternalID(ctx, extID); err == nil {
		return Student{}, core.NewValidationError(ErrStudentExists, core.FieldError{Field: "student_id", Error: ErrStudentExists.Error()})
	} else if !core.IsNotFound(err) {
		return Student{}, err
	}

	return svc.repo.CreateStudent(ctx, Student{
		StudentID:  extID,
		LastName:   core.CleanString(ns.LastName),
		FirstName:  core.CleanString(ns.FirstName),
		Patronymic: optional(ns.Patronymic),
		Email:      optional(ns.Email),
		Group:      core.CleanString(ns.Group),
		BirthDate:  birthDate,
	})
}

func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (Teacher, error) {
	extID, err := CleanExternalID("teacher_id", nt.TeacherID)
	if err != nil {
		return Teacher{}, err
	}
	birthDate, err := cleanBirthDate(nt.BirthDate)
	if err != nil {
		return Teacher{}, err
	}
	if _, err = svc.repo.GetTeacherByExternalID(ctx, extID); err == nil {
		return Teacher{}, core.NewValidationError(ErrTeacherExists, core.FieldError{Field: "teacher_id", Error: ErrTeacherExists.Error()})
	} else if !core.IsNotFound(err) {
		return Teacher{}, err
	}

	return svc.repo.CreateTeacher(ctx, Teacher{
		TeacherID:  extID,
		LastName:   core.CleanString(nt.LastName),
		FirstName:  core.CleanString(nt.FirstName),
		Patronymic: optional(nt.Patronymic),
		Email:      optional(nt.Email),
		BirthDate:  birthDate,
	})
}

func optional(s string) null.String {
	s = core.CleanString(s)
	return null.NewString(s, s != "")
}
