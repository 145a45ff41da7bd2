package academic

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
)

var ErrSubjectExists = errors.New("a subject with this name already exists")

type (
	Repository interface {
		CreateSubject(ctx context.Context, s Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubjectByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Subject, error)
		GetSubjectByName(ctx context.Context, name string, exec ...core.DBExecutor) (Subject, error)
		QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)
		// LinkTeacher and Enroll are idempotent.
		LinkTeacher(ctx context.Context, subjectID, teacherID int64, exec ...core.DBExecutor) error
		Enroll(ctx context.Context, studentID, subjectID int64, exec ...core.DBExecutor) error
		IsEnrolled(ctx context.Context, studentID, subjectID int64, exec ...core.DBExecutor) (bool, error)
		Teaches(ctx context.Context, teacherID, subjectID int64, exec ...core.DBExecutor) (bool, error)

		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id int64, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, exec ...core.DBExecutor) ([]Assignment, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	name := core.CleanString(ns.Name)
	if name == "" {
		return Subject{}, core.NewFieldError("name", "this field cannot be blank")
	}
	if _, err := svc.repo.GetSubjectByName(ctx, name); err == nil {
		return Subject{}, core.NewValidationError(ErrSubjectExists, core.FieldError{Field: "name", Error: ErrSubjectExists.Error()})
	} else if !core.IsNotFound(err) {
		return Subject{}, err
	}
	return svc.repo.CreateSubject(ctx, Subject{
		Name:     name,
		Code:     core.CleanString(ns.Code),
		Semester: core.CleanString(ns.Semester),
	})
}

func (svc *Service) Subject(ctx context.Context, id int64) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, id)
}

func (svc *Service) SubjectByName(ctx context.Context, name string) (Subject, error) {
	return svc.repo.GetSubjectByName(ctx, core.CleanString(name))
}

func (svc *Service) Subjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}

func (svc *Service) LinkTeacher(ctx context.Context, subjectID, teacherID int64) error {
	if _, err := svc.repo.GetSubjectByID(ctx, subjectID); err != nil {
		return err
	}
	return svc.repo.LinkTeacher(ctx, subjectID, teacherID)
}

func (svc *Service) Enroll(ctx context.Context, studentID, subjectID int64) error {
	if _, err := svc.repo.GetSubjectByID(ctx, subjectID); err != nil {
		return err
	}
	return svc.repo.Enroll(ctx, studentID, subjectID)
}

func (svc *Service) IsEnrolled(ctx context.Context, studentID, subjectID int64) (bool, error) {
	return svc.repo.IsEnrolled(ctx, studentID, subjectID)
}

func (svc *Service) Teaches(ctx context.Context, teacherID, subjectID int64) (bool, error) {
	return svc.repo.Teaches(ctx, teacherID, subjectID)
}

func (svc *Service) CreateAssignment(ctx context.Context, na NewAssignment) (Assignment, error) {
	title := core.CleanString(na.Title)
	if title == "" {
		return Assignment{}, core.NewFieldError("title", "this field cannot be blank")
	}
	deadline := core.CleanString(na.Deadline)
	if _, err := time.Parse("2006-01-02", deadline); err != nil {
		return Assignment{}, core.NewFieldError("deadline", "invalid date, expected YYYY-MM-DD")
	}
	subj, err := svc.repo.GetSubjectByID(ctx, na.SubjectID)
	if err != nil {
		return Assignment{}, err
	}
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		SubjectID:   subj.ID,
		Title:       title,
		Description: core.CleanString(na.Description),
		Deadline:    deadline,
	})
	if err != nil {
		return Assignment{}, err
	}
	a.Subject = subj.Name
	return a, nil
}

func (svc *Service) Assignment(ctx context.Context, id int64) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *Service) Assignments(ctx context.Context) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx)
}
