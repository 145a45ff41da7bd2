package main

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/identity"
)

var (
	readSecretFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	db         *sqlx.DB
	identities *identity.Service
	catalog    *academic.Service
	validate   *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS]                                   - run a goose command (up, down, status, version...)")
	fmt.Println("  addstudent -id ID -last NAME -first NAME -group GROUP    - create a student, the birth date is prompted next")
	fmt.Println("  addteacher -id ID -last NAME -first NAME                 - create a teacher, the birth date is prompted next")
	fmt.Println("  addsubject -name NAME [-code CODE] [-semester S] [-teachers ID,ID]")
	fmt.Println("  addassignment -subject NAME -title TITLE -deadline YYYY-MM-DD [-description TEXT]")
	fmt.Println("  enroll -student ID -subject NAME                         - enroll a student in a subject")
	fmt.Println("  linkteacher -teacher ID -subject NAME                    - add a teacher to a subject's roster")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ExitOnError)
	studentID := addStudentCmd.String("id", "", "The student ID (record book number).")
	studentLast := addStudentCmd.String("last", "", "Last name.")
	studentFirst := addStudentCmd.String("first", "", "First name.")
	studentPatronymic := addStudentCmd.String("patronymic", "", "Patronymic (optional).")
	studentEmail := addStudentCmd.String("email", "", "Email (optional).")
	studentGroup := addStudentCmd.String("group", "", "Study group.")

	addTeacherCmd := flag.NewFlagSet("addteacher", flag.ExitOnError)
	teacherID := addTeacherCmd.String("id", "", "The teacher ID.")
	teacherLast := addTeacherCmd.String("last", "", "Last name.")
	teacherFirst := addTeacherCmd.String("first", "", "First name.")
	teacherPatronymic := addTeacherCmd.String("patronymic", "", "Patronymic (optional).")
	teacherEmail := addTeacherCmd.String("email", "", "Email (optional).")

	addSubjectCmd := flag.NewFlagSet("addsubject", flag.ExitOnError)
	subjectName := addSubjectCmd.String("name", "", "Subject name, unique.")
	subjectCode := addSubjectCmd.String("code", "", "Subject code.")
	subjectSemester := addSubjectCmd.String("semester", "", "Semester.")
	subjectTeachers := addSubjectCmd.String("teachers", "", "Comma separated teacher IDs.")

	addAssignmentCmd := flag.NewFlagSet("addassignment", flag.ExitOnError)
	assignmentSubject := addAssignmentCmd.String("subject", "", "Subject name.")
	assignmentTitle := addAssignmentCmd.String("title", "", "Title.")
	assignmentDescription := addAssignmentCmd.String("description", "", "Description.")
	assignmentDeadline := addAssignmentCmd.String("deadline", "", "Deadline, YYYY-MM-DD.")

	enrollCmd := flag.NewFlagSet("enroll", flag.ExitOnError)
	enrollStudent := enrollCmd.String("student", "", "The student ID.")
	enrollSubject := enrollCmd.String("subject", "", "Subject name.")

	linkTeacherCmd := flag.NewFlagSet("linkteacher", flag.ExitOnError)
	linkTeacher := linkTeacherCmd.String("teacher", "", "The teacher ID.")
	linkSubject := linkTeacherCmd.String("subject", "", "Subject name.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *studentID == "" || *studentLast == "" || *studentFirst == "" || *studentGroup == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		birthDate, err := promptBirthDate()
		if err != nil {
			return err
		}
		if birthDate == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(identity.NewStudent{
			StudentID:  *studentID,
			LastName:   *studentLast,
			FirstName:  *studentFirst,
			Patronymic: *studentPatronymic,
			Email:      *studentEmail,
			Group:      *studentGroup,
			BirthDate:  birthDate,
		})

	case "addteacher":
		if err := addTeacherCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *teacherID == "" || *teacherLast == "" || *teacherFirst == "" {
			addTeacherCmd.Usage()
			return errHelp
		}
		birthDate, err := promptBirthDate()
		if err != nil {
			return err
		}
		if birthDate == "" {
			addTeacherCmd.Usage()
			return errHelp
		}
		return cli.addTeacher(identity.NewTeacher{
			TeacherID:  *teacherID,
			LastName:   *teacherLast,
			FirstName:  *teacherFirst,
			Patronymic: *teacherPatronymic,
			Email:      *teacherEmail,
			BirthDate:  birthDate,
		})

	case "addsubject":
		if err := addSubjectCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *subjectName == "" {
			addSubjectCmd.Usage()
			return errHelp
		}
		return cli.addSubject(
			academic.NewSubject{Name: *subjectName, Code: *subjectCode, Semester: *subjectSemester},
			splitList(*subjectTeachers),
		)

	case "addassignment":
		if err := addAssignmentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignmentSubject == "" || *assignmentTitle == "" || *assignmentDeadline == "" {
			addAssignmentCmd.Usage()
			return errHelp
		}
		return cli.addAssignment(*assignmentSubject, *assignmentTitle, *assignmentDescription, *assignmentDeadline)

	case "enroll":
		if err := enrollCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *enrollStudent == "" || *enrollSubject == "" {
			enrollCmd.Usage()
			return errHelp
		}
		return cli.enroll(*enrollStudent, *enrollSubject)

	case "linkteacher":
		if err := linkTeacherCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *linkTeacher == "" || *linkSubject == "" {
			linkTeacherCmd.Usage()
			return errHelp
		}
		return cli.linkTeacher(*linkTeacher, *linkSubject)

	default:
		cli.printUsage()
		return errHelp
	}
}

// promptBirthDate reads the birth date without echoing it, it doubles as the login secret.
func promptBirthDate() (string, error) {
	fmt.Print("Enter birth date (DD.MM.YYYY):")
	raw, err := readSecretFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
