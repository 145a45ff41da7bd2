package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/storage/database"
)

// PrepareDB opens a migrated SQLite database in a temporary directory.
// The returned config points uploads to the same directory.
func PrepareDB(t *testing.T) (*sqlx.DB, *core.Config) {
	t.Helper()
	conf := core.NewTestConfig(t.TempDir())

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db, conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db, conf
}

func CreateStudent(t *testing.T, repo identity.Repository, studentID, lastName, firstName, group, birthDate string) identity.Student {
	t.Helper()
	s, err := repo.CreateStudent(context.Background(), identity.Student{
		StudentID: studentID,
		LastName:  lastName,
		FirstName: firstName,
		Group:     group,
		BirthDate: birthDate,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return s
}

func CreateTeacher(t *testing.T, repo identity.Repository, teacherID, lastName, firstName, patronymic, birthDate string) identity.Teacher {
	t.Helper()
	tc, err := repo.CreateTeacher(context.Background(), identity.Teacher{
		TeacherID:  teacherID,
		LastName:   lastName,
		FirstName:  firstName,
		Patronymic: null.NewString(patronymic, patronymic != ""),
		BirthDate:  birthDate,
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tc
}

// CreateSubject creates a subject and links the given teachers to it.
func CreateSubject(t *testing.T, repo academic.Repository, name string, teacherIDs ...int64) academic.Subject {
	t.Helper()
	ctx := context.Background()
	s, err := repo.CreateSubject(ctx, academic.Subject{Name: name, Code: "C-" + name, Semester: "2025-1"})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	for _, tid := range teacherIDs {
		if err = repo.LinkTeacher(ctx, s.ID, tid); err != nil {
			t.Fatalf("CreateSubject() failed: %v", err)
		}
	}
	return s
}

func CreateAssignment(t *testing.T, repo academic.Repository, subject academic.Subject, title, deadline string) academic.Assignment {
	t.Helper()
	a, err := repo.CreateAssignment(context.Background(), academic.Assignment{
		SubjectID: subject.ID,
		Title:     title,
		Deadline:  deadline,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	a.Subject = subject.Name
	return a
}

func Enroll(t *testing.T, repo academic.Repository, studentID, subjectID int64) {
	t.Helper()
	if err := repo.Enroll(context.Background(), studentID, subjectID); err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}

// NopLogger discards everything.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
