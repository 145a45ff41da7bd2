package identity

import (
	"strings"

	"github.com/volatiletech/null/v8"
)

// Role of an authenticated user. Students and teachers live in disjoint tables.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTeacher
}

func (r Role) String() string { return string(r) }

type Student struct {
	ID         int64       `json:"id" db:"id"`
	StudentID  string      `json:"student_id" db:"student_id"`
	LastName   string      `json:"last_name" db:"last_name"`
	FirstName  string      `json:"first_name" db:"first_name"`
	Patronymic null.String `json:"patronymic" db:"patronymic"`
	Email      null.String `json:"email" db:"email"`
	Group      string      `json:"group_name" db:"group_name"`
	BirthDate  string      `json:"-" db:"birth_date"` // YYYY-MM-DD
}

func (s Student) DisplayName() string {
	return displayName(s.LastName, s.FirstName, s.Patronymic)
}

type Teacher struct {
	ID         int64       `json:"id" db:"id"`
	TeacherID  string      `json:"teacher_id" db:"teacher_id"`
	LastName   string      `json:"last_name" db:"last_name"`
	FirstName  string      `json:"first_name" db:"first_name"`
	Patronymic null.String `json:"patronymic" db:"patronymic"`
	Email      null.String `json:"email" db:"email"`
	BirthDate  string      `json:"-" db:"birth_date"` // YYYY-MM-DD
}

func (t Teacher) DisplayName() string {
	return displayName(t.LastName, t.FirstName, t.Patronymic)
}

// Identity is the role-agnostic view of an authenticated user.
type Identity struct {
	ID         int64       `json:"id"`
	ExternalID string      `json:"external_id"`
	Role       Role        `json:"role"`
	LastName   string      `json:"last_name"`
	FirstName  string      `json:"first_name"`
	Patronymic null.String `json:"patronymic"`
	Group      null.String `json:"group_name"`
}

func (s Student) Identity() Identity {
	return Identity{
		ID:         s.ID,
		ExternalID: s.StudentID,
		Role:       RoleStudent,
		LastName:   s.LastName,
		FirstName:  s.FirstName,
		Patronymic: s.Patronymic,
		Group:      null.StringFrom(s.Group),
	}
}

func (t Teacher) Identity() Identity {
	return Identity{
		ID:         t.ID,
		ExternalID: t.TeacherID,
		Role:       RoleTeacher,
		LastName:   t.LastName,
		FirstName:  t.FirstName,
		Patronymic: t.Patronymic,
	}
}

// displayName joins name parts, skipping the empty ones.
func displayName(last, first string, patronymic null.String) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{last, first, patronymic.String} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	StudentID  string `json:"student_id" validate:"required,max=64,extid"`
	LastName   string `json:"last_name" validate:"required,notblank"`
	FirstName  string `json:"first_name" validate:"required,notblank"`
	Patronymic string `json:"patronymic"`
	Email      string `json:"email" validate:"omitempty,email"`
	Group      string `json:"group_name" validate:"required,notblank"`
	BirthDate  string `json:"birth_date" validate:"required"`
}

// NewTeacher contains information needed to create a new Teacher.
type NewTeacher struct {
	TeacherID  string `json:"teacher_id" validate:"required,max=64,extid"`
	LastName   string `json:"last_name" validate:"required,notblank"`
	FirstName  string `json:"first_name" validate:"required,notblank"`
	Patronymic string `json:"patronymic"`
	Email      string `json:"email" validate:"omitempty,email"`
	BirthDate  string `json:"birth_date" validate:"required"`
}
