package submission

import (
	"io"
	"strings"

	"github.com/volatiletech/null/v8"
)

// Status is the review state of a submission. A submission nobody reviewed yet has no status (NULL).
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusInReview  Status = "in_review"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

func (s Status) Null() null.String {
	return null.NewString(string(s), s != "")
}

type (
	Submission struct {
		ID           int64       `json:"id" db:"id"`
		StudentID    int64       `json:"student_id" db:"student_id"`
		AssignmentID int64       `json:"assignment_id" db:"assignment_id"`
		Status       null.String `json:"status" db:"status"`
		Review       null.String `json:"review" db:"review"`
		SubmittedAt  int64       `json:"submitted_at" db:"submitted_at"`
		ReviewedAt   null.Int64  `json:"reviewed_at" db:"reviewed_at"`
	}

	// File is a stored upload. Path is relative to the storage root.
	File struct {
		ID           int64  `json:"id" db:"id"`
		SubmissionID int64  `json:"submission_id" db:"submission_id"`
		Path         string `json:"file_path" db:"file_path"`
		OriginalName string `json:"original_name" db:"original_name"`
		Size         int64  `json:"size" db:"size"`
		UploadedAt   int64  `json:"uploaded_at" db:"uploaded_at"`
	}

	// AssignmentStatus is one row of a student's assignment list.
	AssignmentStatus struct {
		ID          int64       `json:"id" db:"id"`
		SubjectID   int64       `json:"subject_id" db:"subject_id"`
		Subject     string      `json:"subject" db:"subject_name"`
		Title       string      `json:"title" db:"title"`
		Description string      `json:"description" db:"description"`
		Deadline    string      `json:"deadline" db:"deadline"`
		Teachers    string      `json:"teachers" db:"-"`
		Submitted   bool        `json:"submitted" db:"submitted"`
		Status      null.String `json:"status" db:"status"`
		Review      null.String `json:"review" db:"review"`
		SubmittedAt null.Int64  `json:"submitted_at" db:"submitted_at"`
		FileCount   int         `json:"file_count" db:"file_count"`
	}

	// ReviewItem is a submission as seen by a teacher.
	ReviewItem struct {
		SubmissionID      int64       `json:"submission_id" db:"submission_id"`
		AssignmentID      int64       `json:"assignment_id" db:"assignment_id"`
		AssignmentTitle   string      `json:"assignment_title" db:"assignment_title"`
		SubjectID         int64       `json:"subject_id" db:"subject_id"`
		Subject           string      `json:"subject" db:"subject_name"`
		StudentExternalID string      `json:"student_id" db:"student_external_id"`
		StudentName       string      `json:"student_name" db:"-"`
		LastName          string      `json:"-" db:"last_name"`
		FirstName         string      `json:"-" db:"first_name"`
		Patronymic        null.String `json:"-" db:"patronymic"`
		Group             string      `json:"group_name" db:"group_name"`
		Status            null.String `json:"status" db:"status"`
		Review            null.String `json:"review" db:"review"`
		SubmittedAt       int64       `json:"submitted_at" db:"submitted_at"`
		ReviewedAt        null.Int64  `json:"reviewed_at" db:"reviewed_at"`
		Files             []File      `json:"files" db:"-"`
	}

	// SubjectTeacher is one entry of a subject's teacher roster.
	SubjectTeacher struct {
		SubjectID  int64       `db:"subject_id"`
		LastName   string      `db:"last_name"`
		FirstName  string      `db:"first_name"`
		Patronymic null.String `db:"patronymic"`
	}

	// Upload is one incoming file of a submit request.
	Upload struct {
		Name string
		Size int64
		Open func() (io.ReadCloser, error)
	}
)

func (t SubjectTeacher) DisplayName() string {
	return joinName(t.LastName, t.FirstName, t.Patronymic)
}

func joinName(last, first string, patronymic null.String) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{last, first, patronymic.String} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
