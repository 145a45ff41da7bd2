package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/storage/database/sqlx"
	"github.com/trezcool/kabinet/tests"
)

var (
	idRepo identity.Repository
	acRepo academic.Repository
)

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db, conf := testutil.PrepareDB(t)
	idRepo = sqlxrepos.NewIdentityRepository(db)
	acRepo = sqlxrepos.NewAcademicRepository(db)

	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())

	// start CLI
	return &commandLine{
		conf:       conf,
		db:         db,
		identities: identity.NewService(idRepo),
		catalog:    academic.NewService(acRepo),
		validate:   validate,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	check      func(t *testing.T, err error)
	extra      interface{}
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readSecretFunc = func(fd int) ([]byte, error) {
			if secret, ok := tt.extra.(string); ok {
				return []byte(secret), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.check != nil:
				tt.check(t, err)
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func isValidationErr(t *testing.T, err error) {
	assert.IsType(t, &core.ValidationError{}, err)
}

func isValidatorErr(t *testing.T, err error) {
	assert.IsType(t, validator.ValidationErrors{}, err)
}

func isNotFound(t *testing.T, err error) {
	assert.True(t, core.IsNotFound(err), "want a NotFoundError, got %v", err)
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(ctx context.Context, command string, db *sql.DB, dir string, args ...string) error {
		if dir != "migrations/sqlite" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "1"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	})
}

func Test_commandLine_addStudent(t *testing.T) {
	cli := setup(t)

	base := []string{"addstudent", "-id", "2023-ЭК-115", "-last", "Сидоров", "-first", "Алексей", "-group", "ЭК-22"}
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"addstudent"}, wantErr: errHelp},
		{name: "no birth date", args: base, wantErr: errHelp},
		{name: "invalid birth date", args: base, extra: "31.02.2000", check: isValidationErr},
		{
			name: "invalid id", args: []string{"addstudent", "-id", "S 1", "-last", "A", "-first", "B", "-group", "C"},
			extra: "30.08.2000", check: isValidatorErr,
		},
		{
			name: "invalid email", args: append(append([]string{}, base...), "-email", "lol"),
			extra: "30.08.2000", check: isValidatorErr,
		},
		{name: "created", args: append(append([]string{}, base...), "-patronymic", "Петрович"), extra: "30.08.00"},
		{name: "duplicate", args: base, extra: "30.08.2000", check: isValidationErr},
	})

	s, err := idRepo.GetStudentByExternalID(context.Background(), "2023-ЭК-115")
	require.NoError(t, err)
	assert.Equal(t, "2000-08-30", s.BirthDate)
	assert.Equal(t, "Петрович", s.Patronymic.String)
	assert.Equal(t, "ЭК-22", s.Group)
}

func Test_commandLine_addTeacher(t *testing.T) {
	cli := setup(t)

	runCLITests(t, cli, []cliTest{
		{name: "no args", args: []string{"addteacher", "-id", "T1"}, wantErr: errHelp},
		{name: "created", args: []string{"addteacher", "-id", "T1", "-last", "Смирнов", "-first", "Пётр"}, extra: "12.03.1975"},
		{name: "duplicate", args: []string{"addteacher", "-id", "T1", "-last", "Смирнов", "-first", "Пётр"}, extra: "12.03.1975", check: isValidationErr},
	})

	tc, err := idRepo.GetTeacherByExternalID(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "1975-03-12", tc.BirthDate)
	assert.False(t, tc.Patronymic.Valid)
}

func Test_commandLine_catalog(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	student := testutil.CreateStudent(t, idRepo, "S1", "Иванов", "Иван", "ИС-31", "2001-05-15")
	t1 := testutil.CreateTeacher(t, idRepo, "T1", "Смирнов", "Пётр", "", "1975-03-12")
	t2 := testutil.CreateTeacher(t, idRepo, "T2", "Орлова", "Мария", "", "1980-11-02")

	runCLITests(t, cli, []cliTest{
		{name: "subject: no name", args: []string{"addsubject"}, wantErr: errHelp},
		{name: "subject: unknown teacher", args: []string{"addsubject", "-name", "Физика", "-teachers", "T9"}, check: isNotFound},
		{name: "subject", args: []string{"addsubject", "-name", "Математика", "-code", "MATH", "-semester", "2025-1", "-teachers", "T1, T2"}},
		{name: "subject: duplicate", args: []string{"addsubject", "-name", "Математика"}, check: isValidationErr},
		{name: "assignment: missing flags", args: []string{"addassignment", "-subject", "Математика"}, wantErr: errHelp},
		{name: "assignment: unknown subject", args: []string{"addassignment", "-subject", "Химия", "-title", "Лаба", "-deadline", "2026-02-01"}, check: isNotFound},
		{name: "assignment: bad deadline", args: []string{"addassignment", "-subject", "Математика", "-title", "Лаба", "-deadline", "01.02.2026"}, check: isValidationErr},
		{name: "assignment", args: []string{"addassignment", "-subject", "Математика", "-title", "Контрольная №1", "-deadline", "2026-02-01"}},
		{name: "enroll: unknown student", args: []string{"enroll", "-student", "S9", "-subject", "Математика"}, check: isNotFound},
		{name: "enroll", args: []string{"enroll", "-student", "S1", "-subject", "Математика"}},
		{name: "enroll twice", args: []string{"enroll", "-student", "S1", "-subject", "Математика"}},
		{name: "linkteacher: unknown subject", args: []string{"linkteacher", "-teacher", "T1", "-subject", "Химия"}, check: isNotFound},
		{name: "linkteacher twice", args: []string{"linkteacher", "-teacher", "T1", "-subject", "Математика"}},
	})

	subj, err := acRepo.GetSubjectByName(ctx, "Математика")
	require.NoError(t, err)
	assert.Equal(t, "MATH", subj.Code)

	for _, tid := range []int64{t1.ID, t2.ID} {
		ok, err := acRepo.Teaches(ctx, tid, subj.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := acRepo.IsEnrolled(ctx, student.ID, subj.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	assignments, err := acRepo.QueryAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "Контрольная №1", assignments[0].Title)
	assert.Equal(t, "Математика", assignments[0].Subject)

	_, err = acRepo.GetSubjectByName(ctx, "Физика")
	assert.True(t, core.IsNotFound(err))
}
