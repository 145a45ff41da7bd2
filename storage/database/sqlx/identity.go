package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/identity"
)

const (
	studentColumns = "id, student_id, last_name, first_name, patronymic, email, group_name, birth_date"
	teacherColumns = "id, teacher_id, last_name, first_name, patronymic, email, birth_date"
)

type identityRepository struct {
	repository
}

var _ identity.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(exec core.DBExecutor) *identityRepository {
	return &identityRepository{repository{exec: exec}}
}

func (repo identityRepository) CreateStudent(ctx context.Context, s identity.Student, exec ...core.DBExecutor) (identity.Student, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		INSERT INTO students (student_id, last_name, first_name, patronymic, email, group_name, birth_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := exe.GetContext(ctx, &s.ID, q,
		s.StudentID, s.LastName, s.FirstName, s.Patronymic, s.Email, s.Group, s.BirthDate,
	); err != nil {
		return identity.Student{}, errors.Wrap(err, "inserting student")
	}
	return s, nil
}

func (repo identityRepository) CreateTeacher(ctx context.Context, t identity.Teacher, exec ...core.DBExecutor) (identity.Teacher, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		INSERT INTO teachers (teacher_id, last_name, first_name, patronymic, email, birth_date)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := exe.GetContext(ctx, &t.ID, q,
		t.TeacherID, t.LastName, t.FirstName, t.Patronymic, t.Email, t.BirthDate,
	); err != nil {
		return identity.Teacher{}, errors.Wrap(err, "inserting teacher")
	}
	return t, nil
}

func (repo identityRepository) getStudent(ctx context.Context, exe core.DBExecutor, where string, args ...interface{}) (identity.Student, error) {
	var s identity.Student
	q := exe.Rebind("SELECT " + studentColumns + " FROM students WHERE " + where)
	if err := exe.GetContext(ctx, &s, q, args...); err != nil {
		return identity.Student{}, trapNoRowsErr(err, "student", "finding student")
	}
	return s, nil
}

func (repo identityRepository) getTeacher(ctx context.Context, exe core.DBExecutor, where string, args ...interface{}) (identity.Teacher, error) {
	var t identity.Teacher
	q := exe.Rebind("SELECT " + teacherColumns + " FROM teachers WHERE " + where)
	if err := exe.GetContext(ctx, &t, q, args...); err != nil {
		return identity.Teacher{}, trapNoRowsErr(err, "teacher", "finding teacher")
	}
	return t, nil
}

func (repo identityRepository) GetStudentByID(ctx context.Context, id int64, exec ...core.DBExecutor) (identity.Student, error) {
	return repo.getStudent(ctx, repo.getExec(exec), "id = ?", id)
}

func (repo identityRepository) GetStudentByExternalID(ctx context.Context, studentID string, exec ...core.DBExecutor) (identity.Student, error) {
	return repo.getStudent(ctx, repo.getExec(exec), "student_id = ?", studentID)
}

func (repo identityRepository) FindStudent(ctx context.Context, studentID, birthDate string, exec ...core.DBExecutor) (identity.Student, error) {
	return repo.getStudent(ctx, repo.getExec(exec), "student_id = ? AND birth_date = ?", studentID, birthDate)
}

func (repo identityRepository) GetTeacherByID(ctx context.Context, id int64, exec ...core.DBExecutor) (identity.Teacher, error) {
	return repo.getTeacher(ctx, repo.getExec(exec), "id = ?", id)
}

func (repo identityRepository) GetTeacherByExternalID(ctx context.Context, teacherID string, exec ...core.DBExecutor) (identity.Teacher, error) {
	return repo.getTeacher(ctx, repo.getExec(exec), "teacher_id = ?", teacherID)
}

func (repo identityRepository) FindTeacher(ctx context.Context, teacherID, birthDate string, exec ...core.DBExecutor) (identity.Teacher, error) {
	return repo.getTeacher(ctx, repo.getExec(exec), "teacher_id = ? AND birth_date = ?", teacherID, birthDate)
}
