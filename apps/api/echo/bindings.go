package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/core/session"
)

type (
	// LoginRequest accepts the external id under its generic name or the role-specific
	// alias the login forms post.
	LoginRequest struct {
		ExternalID string `json:"external_id" form:"external_id" validate:"required"`
		StudentID  string `json:"student_id" form:"student_id" validate:"-"`
		TeacherID  string `json:"teacher_id" form:"teacher_id" validate:"-"`
		BirthDate  string `json:"birth_date" form:"birth_date" validate:"required"`
	}

	LoginResponse struct {
		Token     string            `json:"token"`
		ExpiresAt int64             `json:"expires_at"`
		User      identity.Identity `json:"user"`
	}

	GradeRequest struct {
		StudentID    string `json:"student_id" form:"student_id" validate:"required"`
		Subject      string `json:"subject" form:"subject" validate:"required,notblank"`
		AssignmentID int64  `json:"assignment_id" form:"assignment_id" validate:"required,gt=0"`
		Status       string `json:"status" form:"status" validate:"required,notblank"`
		Review       string `json:"review" form:"review"`
	}

	SubmitResponse struct {
		Saved int `json:"saved"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.ExternalID = core.CleanString(lr.ExternalID)
	for _, alias := range []string{lr.StudentID, lr.TeacherID} {
		if lr.ExternalID != "" {
			break
		}
		lr.ExternalID = core.CleanString(alias)
	}
	lr.BirthDate = core.CleanString(lr.BirthDate)
	return validate.Struct(lr)
}

func (gr *GradeRequest) Validate(validate *validator.Validate) error {
	gr.StudentID = core.CleanString(gr.StudentID)
	gr.Subject = core.CleanString(gr.Subject)
	gr.Review = core.CleanString(gr.Review)
	return validate.Struct(gr)
}

func newLoginResponse(sess session.Session, ident identity.Identity) LoginResponse {
	return LoginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt, User: ident}
}
