package tests

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/core/submission"
	"github.com/trezcool/kabinet/storage/filestore"
	"github.com/trezcool/kabinet/tests"
)

func Test_downloadApi(t *testing.T) {
	env := setup(t)
	s1 := testutil.CreateStudent(t, env.idRepo, "S1", "Иванов", "Иван", "ИС-31", "2001-05-15")
	s2 := testutil.CreateStudent(t, env.idRepo, "S2", "Петрова", "Анна", "ИС-31", "2002-01-20")
	teacher := testutil.CreateTeacher(t, env.idRepo, "T1", "Смирнов", "Пётр", "", "1975-03-12")
	math := testutil.CreateSubject(t, env.acRepo, "Математика", teacher.ID)
	a1 := testutil.CreateAssignment(t, env.acRepo, math, "Контрольная №1", "2026-02-01")

	s1Token := getToken(t, env, s1.ID, identity.RoleStudent)
	s2Token := getToken(t, env, s2.ID, identity.RoleStudent)
	teacherToken := getToken(t, env, teacher.ID, identity.RoleTeacher)

	req, rec := newUploadRequest(t, fmt.Sprintf("/api/submit/%d", a1.ID), s1Token, upload{name: "report.pdf", data: []byte("%PDF-1.4 report")})
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/api/teacher/files/%d/S1", a1.ID), teacherToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var files []submission.File
	unmarchall(t, rec, &files)
	require.Len(t, files, 1)
	filePath := "/download/" + files[0].Path

	// a file outside the storage root, reachable through a symlink from inside it
	secret := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0o600))
	require.NoError(t, os.Symlink(secret, filepath.Join(env.store.Root(), filestore.StudentDir(s1.ID), "leak.txt")))

	invalidPath := marchallObj(t, map[string]string{"path": "invalid file path"})

	tests := []httpTest{
		{name: "owner", path: filePath, token: s1Token, wantCode: http.StatusOK},
		{name: "teacher", path: filePath, token: teacherToken, wantCode: http.StatusOK},
		{name: "another student", path: filePath, token: s2Token, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "missing file", path: fmt.Sprintf("/download/%d/%d/nope.pdf", s1.ID, a1.ID), token: s1Token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "file not found"}),
		},
		{name: "parent traversal", path: "/download/../../etc/passwd", token: teacherToken, wantCode: http.StatusBadRequest, wantData: invalidPath},
		{name: "encoded traversal", path: "/download/%2e%2e/%2e%2e/etc/passwd", token: teacherToken, wantCode: http.StatusBadRequest, wantData: invalidPath},
		{name: "absolute path", path: "/download//etc/passwd", token: teacherToken, wantCode: http.StatusBadRequest, wantData: invalidPath},
		{
			name: "symlink escaping the root", path: fmt.Sprintf("/download/%d/leak.txt", s1.ID), token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "directory", path: fmt.Sprintf("/download/%d", s1.ID), token: s1Token, wantCode: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("headers and content", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, filePath, s1Token)
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=report.pdf", rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.4 report", rec.Body.String())
	})
}

func Test_downloadApi_dottedName(t *testing.T) {
	env := setup(t)
	s1 := testutil.CreateStudent(t, env.idRepo, "S1", "Иванов", "Иван", "ИС-31", "2001-05-15")
	teacher := testutil.CreateTeacher(t, env.idRepo, "T1", "Смирнов", "Пётр", "", "1975-03-12")
	math := testutil.CreateSubject(t, env.acRepo, "Математика", teacher.ID)
	a1 := testutil.CreateAssignment(t, env.acRepo, math, "Контрольная №1", "2026-02-01")

	s1Token := getToken(t, env, s1.ID, identity.RoleStudent)
	teacherToken := getToken(t, env, teacher.ID, identity.RoleTeacher)

	req, rec := newUploadRequest(t, fmt.Sprintf("/api/submit/%d", a1.ID), s1Token, upload{name: "report..v2.pdf", data: []byte("v2")})
	env.serve(req, rec)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, fmt.Sprintf("/api/teacher/files/%d/S1", a1.ID), teacherToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code)
	var files []submission.File
	unmarchall(t, rec, &files)
	require.Len(t, files, 1)
	assert.NotContains(t, files[0].Path, "..")

	req, rec = newAuthRequest(http.MethodGet, "/download/"+files[0].Path, teacherToken)
	env.serve(req, rec)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "attachment; filename=report._v2.pdf", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "v2", rec.Body.String())
}
