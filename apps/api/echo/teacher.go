package echoapi

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/grading"
	"github.com/trezcool/kabinet/core/submission"
)

type teacherApi struct {
	submissions *submission.Service
	grades      *grading.Service
	conf        *core.Config
	validate    *validator.Validate
}

func registerTeacherAPI(
	g *echo.Group,
	bearer echo.MiddlewareFunc,
	teacherOnly echo.MiddlewareFunc,
	submissions *submission.Service,
	grades *grading.Service,
	conf *core.Config,
	validate *validator.Validate,
) {
	api := teacherApi{
		submissions: submissions,
		grades:      grades,
		conf:        conf,
		validate:    validate,
	}

	tg := g.Group("", bearer, teacherOnly)
	tg.GET("/assignments/me", api.queue)
	tg.GET("/history/me", api.history)
	tg.GET("/files/:assignment_id/:student_id", api.files)
	tg.POST("/grade", api.grade)
}

// Handlers

func (api *teacherApi) queue(ctx echo.Context) error {
	return api.reviewItems(ctx, api.submissions.ReviewQueue)
}

func (api *teacherApi) history(ctx echo.Context) error {
	return api.reviewItems(ctx, api.submissions.History)
}

func (api *teacherApi) reviewItems(
	ctx echo.Context,
	list func(ctx context.Context, teacherID int64) ([]submission.ReviewItem, error),
) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	items, err := list(ctx.Request().Context(), sess.UserID)
	if err != nil {
		return errors.Wrap(err, "listing review items")
	}
	if items == nil {
		items = []submission.ReviewItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *teacherApi) files(ctx echo.Context) error {
	assignmentID, err := paramID(ctx, "assignment_id")
	if err != nil {
		return err
	}
	files, err := api.submissions.Files(ctx.Request().Context(), assignmentID, core.CleanString(ctx.Param("student_id")))
	if err != nil {
		return err
	}
	if files == nil {
		files = []submission.File{}
	}
	return ctx.JSON(http.StatusOK, files)
}

func (api *teacherApi) grade(ctx echo.Context) error {
	var data GradeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	verdict, err := grading.ParseLabel(data.Status, api.conf.Portal.StrictGradeLabels)
	if err != nil {
		return err
	}
	res, err := api.grades.GradeSubmission(ctx.Request().Context(), grading.GradeRequest{
		StudentExternalID: data.StudentID,
		SubjectName:       data.Subject,
		AssignmentID:      data.AssignmentID,
		Verdict:           verdict,
		Review:            data.Review,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}
