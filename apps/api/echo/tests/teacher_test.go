package tests

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	. "github.com/trezcool/kabinet/apps/api/echo"
	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/grading"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/core/submission"
	"github.com/trezcool/kabinet/tests"
)

func Test_teacherApi(t *testing.T) {
	env := setup(t)
	s1 := testutil.CreateStudent(t, env.idRepo, "S1", "Иванов", "Иван", "ИС-31", "2001-05-15")
	s2 := testutil.CreateStudent(t, env.idRepo, "S2", "Петрова", "Анна", "ИС-31", "2002-01-20")
	teacher := testutil.CreateTeacher(t, env.idRepo, "T1", "Смирнов", "Пётр", "Алексеевич", "1975-03-12")
	other := testutil.CreateTeacher(t, env.idRepo, "T2", "Орлова", "Мария", "", "1980-11-02")
	math := testutil.CreateSubject(t, env.acRepo, "Математика", teacher.ID)
	econ := testutil.CreateSubject(t, env.acRepo, "Экономика", other.ID)
	a1 := testutil.CreateAssignment(t, env.acRepo, math, "Контрольная №1", "2026-02-01")
	econA := testutil.CreateAssignment(t, env.acRepo, econ, "Эссе", "2026-03-01")

	s1Token := getToken(t, env, s1.ID, identity.RoleStudent)
	s2Token := getToken(t, env, s2.ID, identity.RoleStudent)
	teacherToken := getToken(t, env, teacher.ID, identity.RoleTeacher)
	otherToken := getToken(t, env, other.ID, identity.RoleTeacher)

	submit := func(t *testing.T, token string, assignmentID int64, names ...string) {
		t.Helper()
		files := make([]upload, 0, len(names))
		for _, n := range names {
			files = append(files, upload{name: n, data: []byte("content of " + n)})
		}
		req, rec := newUploadRequest(t, fmt.Sprintf("/api/submit/%d", assignmentID), token, files...)
		env.serve(req, rec)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	queue := func(t *testing.T, token, path string) []submission.ReviewItem {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, path, token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []submission.ReviewItem
		unmarchall(t, rec, &items)
		return items
	}
	grade := func(t *testing.T, data interface{}) *bytes.Buffer {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/api/teacher/grade", teacherToken, marchallObj(t, data))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return rec.Body
	}

	submit(t, s1Token, a1.ID, "report.pdf")
	submit(t, s2Token, a1.ID, "solution.pdf", "scan.jpg")
	submit(t, s1Token, econA.ID, "essay.docx")

	t.Run("queue only shows own subjects", func(t *testing.T) {
		items := queue(t, teacherToken, "/api/teacher/assignments/me")
		require.Len(t, items, 2)
		for _, it := range items {
			assert.Equal(t, math.ID, it.SubjectID)
			assert.Equal(t, "Математика", it.Subject)
			assert.NotEmpty(t, it.Files)
		}
		names := []string{items[0].StudentName, items[1].StudentName}
		assert.ElementsMatch(t, []string{"Иванов Иван", "Петрова Анна"}, names)

		econItems := queue(t, otherToken, "/api/teacher/assignments/me")
		require.Len(t, econItems, 1)
		assert.Equal(t, "S1", econItems[0].StudentExternalID)
	})

	t.Run("files of a submission", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/api/teacher/files/%d/S2", a1.ID), teacherToken)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var files []submission.File
		unmarchall(t, rec, &files)
		assert.Len(t, files, 2)

		req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/api/teacher/files/%d/S2", econA.ID), teacherToken)
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`[]`)}, rec)

		req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/api/teacher/files/%d/S9", a1.ID), teacherToken)
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"})}, rec)
	})

	t.Run("grade validation", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "missing fields", body: []byte(`{}`), wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{
					"student_id":    "this field is required",
					"subject":       "this field is required",
					"assignment_id": "this field is required",
					"status":        "this field is required",
				}),
			},
			{
				name: "unknown student", wantCode: http.StatusNotFound,
				body:     marchallObj(t, GradeRequest{StudentID: "S9", Subject: "Математика", AssignmentID: a1.ID, Status: "зачёт"}),
				wantData: marchallObj(t, httpErr{Error: "student not found"}),
			},
			{
				name: "unknown subject", wantCode: http.StatusNotFound,
				body:     marchallObj(t, GradeRequest{StudentID: "S1", Subject: "Химия", AssignmentID: a1.ID, Status: "зачёт"}),
				wantData: marchallObj(t, httpErr{Error: "subject not found"}),
			},
			{
				name: "assignment of another subject", wantCode: http.StatusBadRequest,
				body: marchallObj(t, GradeRequest{StudentID: "S1", Subject: "Математика", AssignmentID: econA.ID, Status: "зачёт"}),
			},
			{
				name: "student token", token: s1Token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
				body: marchallObj(t, GradeRequest{StudentID: "S1", Subject: "Математика", AssignmentID: a1.ID, Status: "зачёт"}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				token := tt.token
				if token == "" {
					token = teacherToken
				}
				req, rec := newAuthRequest(http.MethodPost, "/api/teacher/grade", token, tt.body)
				env.serve(req, rec)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	t.Run("approve moves the submission to history", func(t *testing.T) {
		body := grade(t, GradeRequest{StudentID: "S2", Subject: "Математика", AssignmentID: a1.ID, Status: "Зачет", Review: "отлично"})
		var res grading.Result
		require.NoError(t, jsonUnmarshal(body.Bytes(), &res))
		assert.True(t, res.SubmissionUpdated)
		assert.Equal(t, null.StringFrom("approved"), res.SubmissionStatus)
		assert.Equal(t, null.IntFrom(grading.ApprovedGrade), res.Grade.Grade)

		items := queue(t, teacherToken, "/api/teacher/assignments/me")
		require.Len(t, items, 1)
		assert.Equal(t, "S1", items[0].StudentExternalID)

		history := queue(t, teacherToken, "/api/teacher/history/me")
		require.Len(t, history, 1)
		assert.Equal(t, "S2", history[0].StudentExternalID)
		assert.Equal(t, null.StringFrom("отлично"), history[0].Review)
		assert.Len(t, history[0].Files, 2)
	})

	t.Run("unknown label falls back to submitted", func(t *testing.T) {
		body := grade(t, GradeRequest{StudentID: "S1", Subject: "Математика", AssignmentID: a1.ID, Status: "на доработку"})
		var res grading.Result
		require.NoError(t, jsonUnmarshal(body.Bytes(), &res))
		assert.Equal(t, null.StringFrom("submitted"), res.SubmissionStatus)
		assert.False(t, res.Grade.Grade.Valid)
		assert.Equal(t, "на доработку", res.Grade.Status)
	})
}

func Test_teacherApi_strictLabels(t *testing.T) {
	env := setup(t, func(conf *core.Config) { conf.Portal.StrictGradeLabels = true })
	testutil.CreateStudent(t, env.idRepo, "S1", "Иванов", "Иван", "ИС-31", "2001-05-15")
	teacher := testutil.CreateTeacher(t, env.idRepo, "T1", "Смирнов", "Пётр", "", "1975-03-12")
	math := testutil.CreateSubject(t, env.acRepo, "Математика", teacher.ID)
	a1 := testutil.CreateAssignment(t, env.acRepo, math, "Контрольная №1", "2026-02-01")

	req, rec := newAuthRequest(http.MethodPost, "/api/teacher/grade", getToken(t, env, teacher.ID, identity.RoleTeacher),
		marchallObj(t, GradeRequest{StudentID: "S1", Subject: "Математика", AssignmentID: a1.ID, Status: "на доработку"}))
	env.serve(req, rec)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"status": "unknown grade label"}),
	}, rec)
}
