package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/grading"
	"github.com/trezcool/kabinet/core/submission"
)

// multipart fields holding uploads
var uploadFields = []string{"files", "file"}

type studentApi struct {
	submissions *submission.Service
	grades      *grading.Service
}

func registerStudentAPI(
	g *echo.Group,
	bearer echo.MiddlewareFunc,
	studentOnly echo.MiddlewareFunc,
	submissions *submission.Service,
	grades *grading.Service,
) {
	api := studentApi{
		submissions: submissions,
		grades:      grades,
	}

	sg := g.Group("", bearer, studentOnly)
	sg.POST("/submit/:assignment_id", api.submit)
	sg.GET("/assignments/me", api.assignments)
	sg.GET("/grades/me", api.gradeLedger)
}

func paramID(ctx echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewFieldError(name, "must be a positive integer")
	}
	return id, nil
}

func multipartUploads(form *multipart.Form) []submission.Upload {
	var uploads []submission.Upload
	for _, field := range uploadFields {
		for _, fh := range form.File[field] {
			fh := fh
			uploads = append(uploads, submission.Upload{
				Name: fh.Filename,
				Size: fh.Size,
				Open: func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}
	return uploads
}

// Handlers

func (api *studentApi) submit(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	assignmentID, err := paramID(ctx, "assignment_id")
	if err != nil {
		return err
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) { // body limit
			return httpErr
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return core.NewFieldError("files", "a multipart/form-data body is required")
		}
		return errors.Wrap(err, "parsing multipart form")
	}
	defer func() { _ = form.RemoveAll() }()

	saved, err := api.submissions.Submit(ctx.Request().Context(), sess.UserID, assignmentID, multipartUploads(form))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, SubmitResponse{Saved: saved})
}

func (api *studentApi) assignments(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	rows, err := api.submissions.ListForStudent(ctx.Request().Context(), sess.UserID)
	if err != nil {
		return errors.Wrap(err, "listing assignments")
	}
	if rows == nil {
		rows = []submission.AssignmentStatus{}
	}
	return ctx.JSON(http.StatusOK, rows)
}

func (api *studentApi) gradeLedger(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	grades, err := api.grades.GradesForStudent(ctx.Request().Context(), sess.UserID)
	if err != nil {
		return errors.Wrap(err, "listing grades")
	}
	if grades == nil {
		grades = []grading.Grade{}
	}
	return ctx.JSON(http.StatusOK, grades)
}
