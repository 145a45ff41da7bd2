package academic

type Subject struct {
	ID       int64  `json:"id" db:"id"`
	Name     string `json:"name" db:"name"`
	Code     string `json:"code" db:"code"`
	Semester string `json:"semester" db:"semester"`
}

type Assignment struct {
	ID          int64  `json:"id" db:"id"`
	SubjectID   int64  `json:"subject_id" db:"subject_id"`
	Subject     string `json:"subject" db:"subject_name"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	Deadline    string `json:"deadline" db:"deadline"` // YYYY-MM-DD
}

// NewSubject contains information needed to create a new Subject.
type NewSubject struct {
	Name     string `json:"name" validate:"required,notblank"`
	Code     string `json:"code"`
	Semester string `json:"semester"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	SubjectID   int64  `json:"subject_id" validate:"required"`
	Title       string `json:"title" validate:"required,notblank"`
	Description string `json:"description"`
	Deadline    string `json:"deadline" validate:"required"`
}
