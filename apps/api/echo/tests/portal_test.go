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
	"github.com/trezcool/kabinet/core/grading"
	"github.com/trezcool/kabinet/core/submission"
	"github.com/trezcool/kabinet/tests"
)

// login → upload → review → grade → reject, as a student and a teacher would do it.
func Test_portalScenario(t *testing.T) {
	env := setup(t)
	testutil.CreateStudent(t, env.idRepo, "S1", "Иванов", "Иван", "ИС-31", "2001-05-15")
	teacher := testutil.CreateTeacher(t, env.idRepo, "T1", "Смирнов", "Пётр", "Алексеевич", "1975-03-12")
	math := testutil.CreateSubject(t, env.acRepo, "Математика", teacher.ID)
	a1 := testutil.CreateAssignment(t, env.acRepo, math, "Контрольная №1", "2026-02-01")

	login := func(t *testing.T, path string, data LoginRequest) string {
		t.Helper()
		req, rec := newRequest(http.MethodPost, path, marchallObj(t, data))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		unmarchall(t, rec, &resp)
		return resp.Token
	}
	myAssignments := func(t *testing.T, token string) submission.AssignmentStatus {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, "/api/assignments/me", token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		var rows []submission.AssignmentStatus
		unmarchall(t, rec, &rows)
		require.Len(t, rows, 1)
		return rows[0]
	}

	studentToken := login(t, "/api/login", LoginRequest{ExternalID: "S1", BirthDate: "15.05.2001"})
	teacherToken := login(t, "/api/teacher/login", LoginRequest{ExternalID: "T1", BirthDate: "12.03.1975"})

	// 3 MB upload
	report := bytes.Repeat([]byte("0123456789abcdef"), 3<<16)
	req, rec := newUploadRequest(t, fmt.Sprintf("/api/submit/%d", a1.ID), studentToken, upload{name: "report.pdf", data: report})
	env.serve(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusCreated, wantData: marchallObj(t, SubmitResponse{Saved: 1})}, rec)

	row := myAssignments(t, studentToken)
	assert.True(t, row.Submitted)
	assert.False(t, row.Status.Valid)
	assert.Equal(t, 1, row.FileCount)
	assert.Equal(t, "Смирнов Пётр Алексеевич", row.Teachers)

	// the teacher sees it and downloads it
	req, rec = newAuthRequest(http.MethodGet, "/api/teacher/assignments/me", teacherToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []submission.ReviewItem
	unmarchall(t, rec, &items)
	require.Len(t, items, 1)
	require.Len(t, items[0].Files, 1)
	assert.Equal(t, int64(len(report)), items[0].Files[0].Size)

	req, rec = newAuthRequest(http.MethodGet, "/download/"+items[0].Files[0].Path, teacherToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report, rec.Body.Bytes())

	grade := func(t *testing.T, status, review string) {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/api/teacher/grade", teacherToken, marchallObj(t, GradeRequest{
			StudentID: "S1", Subject: "Математика", AssignmentID: a1.ID, Status: status, Review: review,
		}))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	grade(t, "зачёт", "хорошо")
	req, rec = newAuthRequest(http.MethodGet, "/api/grades/me", studentToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var grades []grading.Grade
	unmarchall(t, rec, &grades)
	require.Len(t, grades, 1)
	assert.Equal(t, null.IntFrom(100), grades[0].Grade)
	assert.Equal(t, "зачёт", grades[0].Status)
	assert.Equal(t, "Математика", grades[0].Subject)
	assert.Equal(t, null.StringFrom("approved"), myAssignments(t, studentToken).Status)

	grade(t, "не зачтено", "переделать")
	assert.Equal(t, 0, countFiles(t, env.store.Root()))
	row = myAssignments(t, studentToken)
	assert.Equal(t, null.StringFrom("rejected"), row.Status)
	assert.Equal(t, null.StringFrom("переделать"), row.Review)
	assert.Equal(t, 0, row.FileCount)

	req, rec = newAuthRequest(http.MethodGet, "/api/grades/me", studentToken)
	env.serve(req, rec)
	unmarchall(t, rec, &grades)
	require.Len(t, grades, 1)
	assert.False(t, grades[0].Grade.Valid)
	assert.Equal(t, "не зачтено", grades[0].Status)

	// a fresh submit puts it back in the queue
	req, rec = newUploadRequest(t, fmt.Sprintf("/api/submit/%d", a1.ID), studentToken, upload{name: "report_v2.pdf", data: []byte("v2")})
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code)

	req, rec = newAuthRequest(http.MethodGet, "/api/teacher/assignments/me", teacherToken)
	env.serve(req, rec)
	unmarchall(t, rec, &items)
	require.Len(t, items, 1)
	assert.Equal(t, null.StringFrom("rejected"), items[0].Status)
}
