package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
)

const assignmentSelect = `
	SELECT a.id, a.subject_id, s.name AS subject_name, a.title, a.description, a.deadline
	FROM assignments a
	JOIN subjects s ON s.id = a.subject_id`

type academicRepository struct {
	repository
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(exec core.DBExecutor) *academicRepository {
	return &academicRepository{repository{exec: exec}}
}

func (repo academicRepository) CreateSubject(ctx context.Context, s academic.Subject, exec ...core.DBExecutor) (academic.Subject, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind("INSERT INTO subjects (name, code, semester) VALUES (?, ?, ?) RETURNING id")
	if err := exe.GetContext(ctx, &s.ID, q, s.Name, s.Code, s.Semester); err != nil {
		return academic.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return s, nil
}

func (repo academicRepository) getSubject(ctx context.Context, exe core.DBExecutor, where string, arg interface{}) (academic.Subject, error) {
	var s academic.Subject
	if err := exe.GetContext(ctx, &s, exe.Rebind("SELECT id, name, code, semester FROM subjects WHERE "+where), arg); err != nil {
		return academic.Subject{}, trapNoRowsErr(err, "subject", "finding subject")
	}
	return s, nil
}

func (repo academicRepository) GetSubjectByID(ctx context.Context, id int64, exec ...core.DBExecutor) (academic.Subject, error) {
	return repo.getSubject(ctx, repo.getExec(exec), "id = ?", id)
}

func (repo academicRepository) GetSubjectByName(ctx context.Context, name string, exec ...core.DBExecutor) (academic.Subject, error) {
	return repo.getSubject(ctx, repo.getExec(exec), "name = ?", name)
}

func (repo academicRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]academic.Subject, error) {
	subjects := make([]academic.Subject, 0)
	if err := repo.getExec(exec).SelectContext(ctx, &subjects, "SELECT id, name, code, semester FROM subjects ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjects, nil
}

func (repo academicRepository) LinkTeacher(ctx context.Context, subjectID, teacherID int64, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("INSERT INTO subject_teachers (subject_id, teacher_id) VALUES (?, ?) ON CONFLICT DO NOTHING")
	if _, err := exe.ExecContext(ctx, q, subjectID, teacherID); err != nil {
		return errors.Wrap(err, "linking teacher to subject")
	}
	return nil
}

func (repo academicRepository) Enroll(ctx context.Context, studentID, subjectID int64, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("INSERT INTO student_subjects (student_id, subject_id) VALUES (?, ?) ON CONFLICT DO NOTHING")
	if _, err := exe.ExecContext(ctx, q, studentID, subjectID); err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	return nil
}

func (repo academicRepository) exists(ctx context.Context, exe core.DBExecutor, q string, args ...interface{}) (bool, error) {
	var n int
	if err := exe.GetContext(ctx, &n, exe.Rebind(q), args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (repo academicRepository) IsEnrolled(ctx context.Context, studentID, subjectID int64, exec ...core.DBExecutor) (bool, error) {
	ok, err := repo.exists(ctx, repo.getExec(exec),
		"SELECT COUNT(*) FROM student_subjects WHERE student_id = ? AND subject_id = ?", studentID, subjectID)
	return ok, errors.Wrap(err, "checking enrollment")
}

func (repo academicRepository) Teaches(ctx context.Context, teacherID, subjectID int64, exec ...core.DBExecutor) (bool, error) {
	ok, err := repo.exists(ctx, repo.getExec(exec),
		"SELECT COUNT(*) FROM subject_teachers WHERE teacher_id = ? AND subject_id = ?", teacherID, subjectID)
	return ok, errors.Wrap(err, "checking subject teacher")
}

func (repo academicRepository) CreateAssignment(ctx context.Context, a academic.Assignment, exec ...core.DBExecutor) (academic.Assignment, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind("INSERT INTO assignments (subject_id, title, description, deadline) VALUES (?, ?, ?, ?) RETURNING id")
	if err := exe.GetContext(ctx, &a.ID, q, a.SubjectID, a.Title, a.Description, a.Deadline); err != nil {
		return academic.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo academicRepository) GetAssignmentByID(ctx context.Context, id int64, exec ...core.DBExecutor) (academic.Assignment, error) {
	var a academic.Assignment
	exe := repo.getExec(exec)
	if err := exe.GetContext(ctx, &a, exe.Rebind(assignmentSelect+" WHERE a.id = ?"), id); err != nil {
		return academic.Assignment{}, trapNoRowsErr(err, "assignment", "finding assignment")
	}
	return a, nil
}

func (repo academicRepository) QueryAssignments(ctx context.Context, exec ...core.DBExecutor) ([]academic.Assignment, error) {
	assignments := make([]academic.Assignment, 0)
	if err := repo.getExec(exec).SelectContext(ctx, &assignments, assignmentSelect+" ORDER BY a.deadline, a.id"); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	return assignments, nil
}
