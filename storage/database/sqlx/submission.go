package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/submission"
)

const (
	submissionColumns = "id, student_id, assignment_id, status, review, submitted_at, reviewed_at"
	fileColumns       = "id, submission_id, file_path, original_name, size, uploaded_at"

	reviewItemSelect = `
	SELECT sub.id AS submission_id, a.id AS assignment_id, a.title AS assignment_title,
		s.id AS subject_id, s.name AS subject_name,
		st.student_id AS student_external_id, st.last_name, st.first_name, st.patronymic, st.group_name,
		sub.status, sub.review, sub.submitted_at, sub.reviewed_at
	FROM submissions sub
	JOIN assignments a ON a.id = sub.assignment_id
	JOIN subjects s ON s.id = a.subject_id
	JOIN subject_teachers tt ON tt.subject_id = s.id AND tt.teacher_id = ?
	JOIN students st ON st.id = sub.student_id`
)

type submissionRepository struct {
	repository
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) *submissionRepository {
	return &submissionRepository{repository{exec: exec}}
}

func (repo submissionRepository) EnsureSubmission(ctx context.Context, studentID, assignmentID, now int64, exec ...core.DBExecutor) (submission.Submission, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		INSERT INTO submissions (student_id, assignment_id, submitted_at) VALUES (?, ?, ?)
		ON CONFLICT (student_id, assignment_id) DO NOTHING`)
	if _, err := exe.ExecContext(ctx, q, studentID, assignmentID, now); err != nil {
		return submission.Submission{}, errors.Wrap(err, "inserting submission")
	}
	// whoever inserted first, the row is there now
	return repo.GetSubmission(ctx, studentID, assignmentID, exe)
}

func (repo submissionRepository) GetSubmission(ctx context.Context, studentID, assignmentID int64, exec ...core.DBExecutor) (submission.Submission, error) {
	var sub submission.Submission
	exe := repo.getExec(exec)
	q := exe.Rebind("SELECT " + submissionColumns + " FROM submissions WHERE student_id = ? AND assignment_id = ?")
	if err := exe.GetContext(ctx, &sub, q, studentID, assignmentID); err != nil {
		return submission.Submission{}, trapNoRowsErr(err, "submission", "finding submission")
	}
	return sub, nil
}

func (repo submissionRepository) UpdateReview(ctx context.Context, submissionID int64, status, review string, reviewedAt int64, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	q := exe.Rebind("UPDATE submissions SET status = ?, review = ?, reviewed_at = ? WHERE id = ?")
	if _, err := exe.ExecContext(ctx, q,
		null.NewString(status, status != ""), null.NewString(review, review != ""), reviewedAt, submissionID,
	); err != nil {
		return errors.Wrap(err, "updating submission review")
	}
	return nil
}

func (repo submissionRepository) AddFile(ctx context.Context, f submission.File, exec ...core.DBExecutor) (submission.File, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		INSERT INTO submission_files (submission_id, file_path, original_name, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)
	if err := exe.GetContext(ctx, &f.ID, q, f.SubmissionID, f.Path, f.OriginalName, f.Size, f.UploadedAt); err != nil {
		return submission.File{}, errors.Wrap(err, "inserting submission file")
	}
	return f, nil
}

func (repo submissionRepository) QueryFiles(ctx context.Context, submissionIDs []int64, exec ...core.DBExecutor) ([]submission.File, error) {
	files := make([]submission.File, 0)
	if len(submissionIDs) == 0 {
		return files, nil
	}
	exe := repo.getExec(exec)
	q, args, err := sqlx.In("SELECT "+fileColumns+" FROM submission_files WHERE submission_id IN (?) ORDER BY uploaded_at, id", submissionIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building submission files query")
	}
	if err = exe.SelectContext(ctx, &files, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying submission files")
	}
	return files, nil
}

func (repo submissionRepository) DeleteFiles(ctx context.Context, submissionID int64, exec ...core.DBExecutor) ([]submission.File, error) {
	exe := repo.getExec(exec)
	files, err := repo.QueryFiles(ctx, []int64{submissionID}, exe)
	if err != nil {
		return nil, err
	}
	if _, err = exe.ExecContext(ctx, exe.Rebind("DELETE FROM submission_files WHERE submission_id = ?"), submissionID); err != nil {
		return nil, errors.Wrap(err, "deleting submission files")
	}
	return files, nil
}

func (repo submissionRepository) DeleteFile(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	if _, err := exe.ExecContext(ctx, exe.Rebind("DELETE FROM submission_files WHERE id = ?"), id); err != nil {
		return errors.Wrap(err, "deleting submission file")
	}
	return nil
}

func (repo submissionRepository) QueryAssignmentStatuses(ctx context.Context, studentID int64, enrolledOnly bool, exec ...core.DBExecutor) ([]submission.AssignmentStatus, error) {
	q := `
	SELECT a.id, a.subject_id, s.name AS subject_name, a.title, a.description, a.deadline,
		sub.id IS NOT NULL AS submitted, sub.status, sub.review, sub.submitted_at,
		(SELECT COUNT(*) FROM submission_files f WHERE f.submission_id = sub.id) AS file_count
	FROM assignments a
	JOIN subjects s ON s.id = a.subject_id
	LEFT JOIN submissions sub ON sub.assignment_id = a.id AND sub.student_id = ?`
	args := []interface{}{studentID}
	if enrolledOnly {
		q += " WHERE a.subject_id IN (SELECT subject_id FROM student_subjects WHERE student_id = ?)"
		args = append(args, studentID)
	}
	q += " ORDER BY a.deadline, a.id"

	rows := make([]submission.AssignmentStatus, 0)
	exe := repo.getExec(exec)
	if err := exe.SelectContext(ctx, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying assignment statuses")
	}
	return rows, nil
}

func (repo submissionRepository) QuerySubjectTeachers(ctx context.Context, exec ...core.DBExecutor) ([]submission.SubjectTeacher, error) {
	teachers := make([]submission.SubjectTeacher, 0)
	q := `
	SELECT st.subject_id, t.last_name, t.first_name, t.patronymic
	FROM subject_teachers st
	JOIN teachers t ON t.id = st.teacher_id
	ORDER BY st.subject_id, t.last_name, t.first_name`
	if err := repo.getExec(exec).SelectContext(ctx, &teachers, q); err != nil {
		return nil, errors.Wrap(err, "querying subject teachers")
	}
	return teachers, nil
}

func (repo submissionRepository) QueryReviewItems(ctx context.Context, teacherID int64, approved bool, exec ...core.DBExecutor) ([]submission.ReviewItem, error) {
	var q string
	if approved {
		q = reviewItemSelect + `
		WHERE sub.status = ?
		ORDER BY sub.reviewed_at DESC, sub.id DESC`
	} else {
		q = reviewItemSelect + `
		WHERE (sub.status IS NULL OR sub.status <> ?)
			AND EXISTS (SELECT 1 FROM submission_files f WHERE f.submission_id = sub.id)
		ORDER BY sub.submitted_at, sub.id`
	}

	items := make([]submission.ReviewItem, 0)
	exe := repo.getExec(exec)
	if err := exe.SelectContext(ctx, &items, exe.Rebind(q), teacherID, string(submission.StatusApproved)); err != nil {
		return nil, errors.Wrap(err, "querying review items")
	}
	return items, nil
}
