package submission

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/identity"
)

// NoTeacher stands in for an empty teacher roster.
const NoTeacher = "—"

var (
	ErrNoFiles = errors.New("no file selected")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// EnsureSubmission creates the (student, assignment) submission unless it exists, then returns it.
		// Existing status and review are left untouched.
		EnsureSubmission(ctx context.Context, studentID, assignmentID, now int64, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, studentID, assignmentID int64, exec ...core.DBExecutor) (Submission, error)
		UpdateReview(ctx context.Context, submissionID int64, status, review string, reviewedAt int64, exec ...core.DBExecutor) error

		AddFile(ctx context.Context, f File, exec ...core.DBExecutor) (File, error)
		QueryFiles(ctx context.Context, submissionIDs []int64, exec ...core.DBExecutor) ([]File, error)
		// DeleteFiles removes every file row of the submission and returns the removed rows.
		DeleteFiles(ctx context.Context, submissionID int64, exec ...core.DBExecutor) ([]File, error)
		DeleteFile(ctx context.Context, id int64, exec ...core.DBExecutor) error

		// QueryAssignmentStatuses lists assignments with the student's submission state.
		// When enrolledOnly is set only subjects the student is enrolled in are considered.
		QueryAssignmentStatuses(ctx context.Context, studentID int64, enrolledOnly bool, exec ...core.DBExecutor) ([]AssignmentStatus, error)
		QuerySubjectTeachers(ctx context.Context, exec ...core.DBExecutor) ([]SubjectTeacher, error)
		// QueryReviewItems lists submissions in the teacher's subjects.
		// approved selects the approved ones (most recently reviewed first), otherwise the ones
		// still awaiting a decision that have at least one file.
		QueryReviewItems(ctx context.Context, teacherID int64, approved bool, exec ...core.DBExecutor) ([]ReviewItem, error)
	}

	// FileStore persists uploaded bytes. Paths are relative to the store root.
	FileStore interface {
		Save(studentID, assignmentID int64, name string, r io.Reader) (path string, size int64, err error)
		Remove(path string) error
	}

	Service struct {
		repo     Repository
		catalog  *academic.Service
		students *identity.Service
		store    FileStore
		conf     *core.Config
		log      core.Logger
	}
)

func NewService(
	repo Repository,
	catalog *academic.Service,
	students *identity.Service,
	store FileStore,
	conf *core.Config,
	log core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		students: students,
		store:    store,
		conf:     conf,
		log:      log,
	}
}

func (svc *Service) MaxFileSize() int64 {
	return svc.conf.Storage.MaxFileSize
}

// Submit stores uploads for (studentID, assignmentID) and returns how many were saved.
// Entries without a name are skipped. The whole batch is rejected if any file is too large.
func (svc *Service) Submit(ctx context.Context, studentID, assignmentID int64, uploads []Upload) (int, error) {
	named := make([]Upload, 0, len(uploads))
	for _, u := range uploads {
		if strings.TrimSpace(u.Name) != "" {
			named = append(named, u)
		}
	}
	if len(named) == 0 {
		return 0, core.NewValidationError(ErrNoFiles, core.FieldError{Field: "files", Error: ErrNoFiles.Error()})
	}

	asgmt, err := svc.catalog.Assignment(ctx, assignmentID)
	if err != nil {
		return 0, err
	}
	if svc.conf.Portal.AssignmentScope == core.ScopeEnrolled {
		enrolled, err := svc.catalog.IsEnrolled(ctx, studentID, asgmt.SubjectID)
		if err != nil {
			return 0, err
		}
		if !enrolled {
			return 0, core.ErrForbidden
		}
	}

	limit := svc.MaxFileSize()
	for _, u := range named {
		if u.Size > limit {
			return 0, tooLarge(u.Name, limit)
		}
	}

	now := nowFunc().UTC().Unix()
	sub, err := svc.repo.EnsureSubmission(ctx, studentID, assignmentID, now)
	if err != nil {
		return 0, err
	}

	saved := make([]File, 0, len(named))
	for _, u := range named {
		f, err := svc.saveOne(ctx, sub, u, now)
		if err != nil {
			// a failed batch leaves no files behind
			svc.discard(ctx, saved)
			return 0, err
		}
		saved = append(saved, f)
	}
	return len(saved), nil
}

func (svc *Service) discard(ctx context.Context, files []File) {
	for _, f := range files {
		if err := svc.repo.DeleteFile(ctx, f.ID); err != nil {
			svc.log.Warn("deleting submission file row", err, map[string]interface{}{"id": f.ID})
			continue
		}
		svc.removeFile(f.Path)
	}
}

func (svc *Service) saveOne(ctx context.Context, sub Submission, u Upload, now int64) (File, error) {
	rc, err := u.Open()
	if err != nil {
		return File{}, errors.Wrapf(err, "opening upload %q", u.Name)
	}
	defer func() { _ = rc.Close() }()

	limit := svc.MaxFileSize()
	// the declared size may lie; never read more than one byte over the limit
	path, size, err := svc.store.Save(sub.StudentID, sub.AssignmentID, u.Name, io.LimitReader(rc, limit+1))
	if err != nil {
		return File{}, err
	}
	if size > limit {
		svc.removeFile(path)
		return File{}, tooLarge(u.Name, limit)
	}

	f, err := svc.repo.AddFile(ctx, File{
		SubmissionID: sub.ID,
		Path:         path,
		OriginalName: u.Name,
		Size:         size,
		UploadedAt:   now,
	})
	if err != nil {
		svc.removeFile(path)
		return File{}, err
	}
	return f, nil
}

func (svc *Service) removeFile(path string) {
	if err := svc.store.Remove(path); err != nil {
		svc.log.Warn("removing stored file", err, map[string]interface{}{"path": path})
	}
}

func tooLarge(name string, limit int64) error {
	msg := fmt.Sprintf("file %q exceeds the %d MB limit", name, limit>>20)
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "files", Error: msg})
}

// ListForStudent returns the student's assignments with their submission state, by deadline.
func (svc *Service) ListForStudent(ctx context.Context, studentID int64) ([]AssignmentStatus, error) {
	enrolledOnly := svc.conf.Portal.AssignmentScope == core.ScopeEnrolled
	rows, err := svc.repo.QueryAssignmentStatuses(ctx, studentID, enrolledOnly)
	if err != nil {
		return nil, err
	}
	teachers, err := svc.repo.QuerySubjectTeachers(ctx)
	if err != nil {
		return nil, err
	}

	roster := make(map[int64][]string)
	for _, t := range teachers {
		roster[t.SubjectID] = append(roster[t.SubjectID], t.DisplayName())
	}
	for i := range rows {
		if names := roster[rows[i].SubjectID]; len(names) > 0 {
			rows[i].Teachers = strings.Join(names, ", ")
		} else {
			rows[i].Teachers = NoTeacher
		}
	}
	return rows, nil
}

// Files lists what a student uploaded for an assignment. Nothing submitted yields an empty list.
func (svc *Service) Files(ctx context.Context, assignmentID int64, studentExternalID string) ([]File, error) {
	student, err := svc.students.StudentByExternalID(ctx, studentExternalID)
	if err != nil {
		return nil, err
	}
	if _, err = svc.catalog.Assignment(ctx, assignmentID); err != nil {
		return nil, err
	}
	sub, err := svc.repo.GetSubmission(ctx, student.ID, assignmentID)
	if err != nil {
		if core.IsNotFound(err) {
			return []File{}, nil
		}
		return nil, err
	}
	return svc.repo.QueryFiles(ctx, []int64{sub.ID})
}

// ReviewQueue lists submissions with files awaiting a decision in the teacher's subjects.
func (svc *Service) ReviewQueue(ctx context.Context, teacherID int64) ([]ReviewItem, error) {
	return svc.reviewItems(ctx, teacherID, false)
}

// History lists approved submissions in the teacher's subjects, most recently reviewed first.
func (svc *Service) History(ctx context.Context, teacherID int64) ([]ReviewItem, error) {
	return svc.reviewItems(ctx, teacherID, true)
}

func (svc *Service) reviewItems(ctx context.Context, teacherID int64, approved bool) ([]ReviewItem, error) {
	items, err := svc.repo.QueryReviewItems(ctx, teacherID, approved)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.SubmissionID)
	}
	files, err := svc.repo.QueryFiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	bySub := make(map[int64][]File, len(items))
	for _, f := range files {
		bySub[f.SubmissionID] = append(bySub[f.SubmissionID], f)
	}
	for i := range items {
		items[i].StudentName = joinName(items[i].LastName, items[i].FirstName, items[i].Patronymic)
		items[i].Files = bySub[items[i].SubmissionID]
		if items[i].Files == nil {
			items[i].Files = []File{}
		}
	}
	return items, nil
}
