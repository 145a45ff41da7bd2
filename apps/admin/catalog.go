package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/identity"
)

func (cli *commandLine) addStudent(ns identity.NewStudent) error {
	if err := cli.validate.Struct(ns); err != nil {
		return err
	}
	s, err := cli.identities.CreateStudent(context.Background(), ns)
	if err != nil {
		return err
	}
	fmt.Printf("student %s created (id %d)\n", s.StudentID, s.ID)
	return nil
}

func (cli *commandLine) addTeacher(nt identity.NewTeacher) error {
	if err := cli.validate.Struct(nt); err != nil {
		return err
	}
	t, err := cli.identities.CreateTeacher(context.Background(), nt)
	if err != nil {
		return err
	}
	fmt.Printf("teacher %s created (id %d)\n", t.TeacherID, t.ID)
	return nil
}

// addSubject creates the subject, then links each teacher to it.
func (cli *commandLine) addSubject(ns academic.NewSubject, teacherIDs []string) error {
	ctx := context.Background()
	if err := cli.validate.Struct(ns); err != nil {
		return err
	}

	teachers := make([]identity.Teacher, 0, len(teacherIDs))
	for _, id := range teacherIDs {
		t, err := cli.identities.TeacherByExternalID(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "teacher %s", id)
		}
		teachers = append(teachers, t)
	}

	subj, err := cli.catalog.CreateSubject(ctx, ns)
	if err != nil {
		return err
	}
	for _, t := range teachers {
		if err = cli.catalog.LinkTeacher(ctx, subj.ID, t.ID); err != nil {
			return errors.Wrapf(err, "linking teacher %s", t.TeacherID)
		}
	}
	fmt.Printf("subject %q created (id %d)\n", subj.Name, subj.ID)
	return nil
}

func (cli *commandLine) addAssignment(subjectName, title, description, deadline string) error {
	ctx := context.Background()
	subj, err := cli.catalog.SubjectByName(ctx, subjectName)
	if err != nil {
		return err
	}
	a, err := cli.catalog.CreateAssignment(ctx, academic.NewAssignment{
		SubjectID:   subj.ID,
		Title:       title,
		Description: description,
		Deadline:    deadline,
	})
	if err != nil {
		return err
	}
	fmt.Printf("assignment %q created for %q (id %d)\n", a.Title, a.Subject, a.ID)
	return nil
}

func (cli *commandLine) enroll(studentID, subjectName string) error {
	ctx := context.Background()
	s, err := cli.identities.StudentByExternalID(ctx, studentID)
	if err != nil {
		return err
	}
	subj, err := cli.catalog.SubjectByName(ctx, subjectName)
	if err != nil {
		return err
	}
	return cli.catalog.Enroll(ctx, s.ID, subj.ID)
}

func (cli *commandLine) linkTeacher(teacherID, subjectName string) error {
	ctx := context.Background()
	t, err := cli.identities.TeacherByExternalID(ctx, teacherID)
	if err != nil {
		return err
	}
	subj, err := cli.catalog.SubjectByName(ctx, subjectName)
	if err != nil {
		return err
	}
	return cli.catalog.LinkTeacher(ctx, subj.ID, t.ID)
}
