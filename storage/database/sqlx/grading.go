package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/grading"
)

type gradeRepository struct {
	repository
}

var _ grading.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{repository{exec: exec}}
}

func (repo gradeRepository) UpsertGrade(ctx context.Context, g grading.Grade, exec ...core.DBExecutor) (grading.Grade, error) {
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		INSERT INTO grades (student_id, subject_id, grade, status, review, graded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (student_id, subject_id) DO UPDATE SET
			grade = excluded.grade,
			status = excluded.status,
			review = excluded.review,
			graded_at = excluded.graded_at
		RETURNING id`)
	if err := exe.GetContext(ctx, &g.ID, q, g.StudentID, g.SubjectID, g.Grade, g.Status, g.Review, g.GradedAt); err != nil {
		return grading.Grade{}, errors.Wrap(err, "upserting grade")
	}
	return g, nil
}

func (repo gradeRepository) QueryGrades(ctx context.Context, studentID int64, exec ...core.DBExecutor) ([]grading.Grade, error) {
	grades := make([]grading.Grade, 0)
	exe := repo.getExec(exec)
	q := exe.Rebind(`
		SELECT g.id, g.student_id, g.subject_id, s.name AS subject_name, g.grade, g.status, g.review, g.graded_at
		FROM grades g
		JOIN subjects s ON s.id = g.subject_id
		WHERE g.student_id = ?
		ORDER BY s.name`)
	if err := exe.SelectContext(ctx, &grades, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	return grades, nil
}
