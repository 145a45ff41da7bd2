package grading

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/core/submission"
)

// ApprovedGrade is recorded in the ledger for an approving verdict.
const ApprovedGrade = 100

var nowFunc = time.Now // mockable

type (
	Grade struct {
		ID        int64       `json:"id" db:"id"`
		StudentID int64       `json:"student_id" db:"student_id"`
		SubjectID int64       `json:"subject_id" db:"subject_id"`
		Subject   string      `json:"subject" db:"subject_name"`
		Grade     null.Int    `json:"grade" db:"grade"`
		Status    string      `json:"status" db:"status"`
		Review    null.String `json:"review" db:"review"`
		GradedAt  int64       `json:"graded_at" db:"graded_at"`
	}

	Repository interface {
		// UpsertGrade inserts or replaces the (student, subject) ledger row.
		UpsertGrade(ctx context.Context, g Grade, exec ...core.DBExecutor) (Grade, error)
		QueryGrades(ctx context.Context, studentID int64, exec ...core.DBExecutor) ([]Grade, error)
	}

	GradeRequest struct {
		StudentExternalID string
		SubjectName       string
		AssignmentID      int64
		Verdict           Verdict
		Review            string
	}

	Result struct {
		Grade             Grade       `json:"grade"`
		AssignmentID      int64       `json:"assignment_id"`
		SubmissionUpdated bool        `json:"submission_updated"`
		SubmissionStatus  null.String `json:"submission_status"`
		FilesRemoved      int         `json:"files_removed"`
	}

	Service struct {
		db          core.DB
		repo        Repository
		submissions submission.Repository
		catalog     *academic.Service
		students    *identity.Service
		store       submission.FileStore
		log         core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	submissions submission.Repository,
	catalog *academic.Service,
	students *identity.Service,
	store submission.FileStore,
	log core.Logger,
) *Service {
	return &Service{
		db:          db,
		repo:        repo,
		submissions: submissions,
		catalog:     catalog,
		students:    students,
		store:       store,
		log:         log,
	}
}

// GradeSubmission records a teacher's verdict: the submission status/review and the subject's ledger row.
// Both are written in one transaction. Files of a purging verdict are removed from disk after commit.
func (svc *Service) GradeSubmission(ctx context.Context, req GradeRequest) (Result, error) {
	student, err := svc.students.StudentByExternalID(ctx, req.StudentExternalID)
	if err != nil {
		return Result{}, err
	}
	subj, err := svc.catalog.SubjectByName(ctx, req.SubjectName)
	if err != nil {
		return Result{}, err
	}
	asgmt, err := svc.catalog.Assignment(ctx, req.AssignmentID)
	if err != nil {
		return Result{}, err
	}
	if asgmt.SubjectID != subj.ID {
		return Result{}, core.NewFieldError("assignment_id", "assignment does not belong to this subject")
	}

	now := nowFunc().UTC().Unix()
	review := core.CleanString(req.Review)
	res := Result{AssignmentID: asgmt.ID}
	var purged []submission.File

	err = core.WithTx(ctx, svc.db, func(tx core.DBExecutor) error {
		sub, err := svc.submissions.GetSubmission(ctx, student.ID, asgmt.ID, tx)
		switch {
		case core.IsNotFound(err):
			// nothing submitted yet; only the ledger is written
		case err != nil:
			return err
		default:
			if req.Verdict.PurgeFiles {
				if purged, err = svc.submissions.DeleteFiles(ctx, sub.ID, tx); err != nil {
					return err
				}
			}
			if err = svc.submissions.UpdateReview(ctx, sub.ID, string(req.Verdict.Status), review, now, tx); err != nil {
				return err
			}
			res.SubmissionUpdated = true
			res.SubmissionStatus = req.Verdict.Status.Null()
		}

		g := Grade{
			StudentID: student.ID,
			SubjectID: subj.ID,
			Status:    req.Verdict.Label,
			Review:    null.NewString(review, review != ""),
			GradedAt:  now,
		}
		if req.Verdict.Approved {
			g.Grade = null.IntFrom(ApprovedGrade)
		}
		if res.Grade, err = svc.repo.UpsertGrade(ctx, g, tx); err != nil {
			return err
		}
		res.Grade.Subject = subj.Name
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	for _, f := range purged {
		if err := svc.store.Remove(f.Path); err != nil {
			svc.log.Warn("removing rejected submission file", err, map[string]interface{}{"path": f.Path})
			continue
		}
		res.FilesRemoved++
	}
	return res, nil
}

// GradesForStudent returns the student's ledger ordered by subject name.
func (svc *Service) GradesForStudent(ctx context.Context, studentID int64) ([]Grade, error) {
	return svc.repo.QueryGrades(ctx, studentID)
}
