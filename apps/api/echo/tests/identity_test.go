package tests

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/kabinet/apps/api/echo"
	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/tests"
)

func Test_identityApi_login(t *testing.T) {
	env := setup(t)
	student := testutil.CreateStudent(t, env.idRepo, "2023-ЭК-115", "Сидоров", "Алексей", "ЭК-22", "2000-08-30")
	teacher := testutil.CreateTeacher(t, env.idRepo, "T-MATH-01", "Смирнов", "Пётр", "Алексеевич", "1975-03-12")

	tests := []httpTest{
		{
			name: "missing fields", path: "/api/login", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"external_id": "this field is required",
				"birth_date":  "this field is required",
			}),
		},
		{
			name: "wrong birth date", path: "/api/login",
			body:     marchallObj(t, LoginRequest{ExternalID: "2023-ЭК-115", BirthDate: "31.08.2000"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errBadLogin),
		},
		{
			name: "unknown student", path: "/api/login",
			body:     marchallObj(t, LoginRequest{ExternalID: "2023-ЭК-999", BirthDate: "30.08.2000"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errBadLogin),
		},
		{
			name: "teacher on the student login", path: "/api/login",
			body:     marchallObj(t, LoginRequest{ExternalID: "T-MATH-01", BirthDate: "12.03.1975"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errBadLogin),
		},
		{
			name: "student on the teacher login", path: "/api/teacher/login",
			body:     marchallObj(t, LoginRequest{ExternalID: "2023-ЭК-115", BirthDate: "30.08.2000"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errBadLogin),
		},
		{
			name: "invalid external id", path: "/api/login",
			body:     marchallObj(t, LoginRequest{ExternalID: "S1' OR '1'='1", BirthDate: "30.08.2000"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"external_id": "only letters, digits, hyphens and underscores are allowed"}),
		},
		{
			name: "impossible birth date", path: "/api/login",
			body:     marchallObj(t, LoginRequest{ExternalID: "2023-ЭК-115", BirthDate: "31.02.2000"}),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, tt.path, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("student, json", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/api/login",
			marchallObj(t, LoginRequest{ExternalID: " 2023-ЭК-115 ", BirthDate: "30.08.00"}))
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarchall(t, rec, &resp)
		assert.Len(t, resp.Token, 64)
		assert.Equal(t, student.Identity(), resp.User)
		assert.Greater(t, resp.ExpiresAt, int64(0))

		// the token works
		req, rec = newAuthRequest(http.MethodGet, "/api/assignments/me", resp.Token)
		env.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("teacher, form with alias", func(t *testing.T) {
		form := url.Values{"teacher_id": {"T-MATH-01"}, "birth_date": {"12/03/1975"}}
		req, rec := newRequest(http.MethodPost, "/api/teacher/login", []byte(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		env.serve(req, rec)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		unmarchall(t, rec, &resp)
		assert.Equal(t, teacher.ID, resp.User.ID)
		assert.Equal(t, identity.RoleTeacher, resp.User.Role)
		assert.False(t, resp.User.Group.Valid)
	})

	t.Run("student, form with alias", func(t *testing.T) {
		form := url.Values{"student_id": {"2023-ЭК-115"}, "birth_date": {"2000-08-30"}}
		req, rec := newRequest(http.MethodPost, "/api/login", []byte(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		env.serve(req, rec)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}

func Test_identityApi_loginRateLimit(t *testing.T) {
	env := setup(t, func(conf *core.Config) { conf.Server.LoginRateLimit = 0.001 })
	body := marchallObj(t, LoginRequest{ExternalID: "nobody", BirthDate: "01.01.2000"})

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		req, rec := newRequest(http.MethodPost, "/api/login", body)
		env.serve(req, rec)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{401, 401, 401, 401, 401, 429}, codes)
}

func Test_bearerAuth(t *testing.T) {
	env := setup(t)
	student := testutil.CreateStudent(t, env.idRepo, "S1", "Иванов", "Иван", "ИС-31", "2001-05-15")
	teacher := testutil.CreateTeacher(t, env.idRepo, "T1", "Смирнов", "Пётр", "", "1975-03-12")
	studentToken := getToken(t, env, student.ID, identity.RoleStudent)
	teacherToken := getToken(t, env, teacher.ID, identity.RoleTeacher)

	tests := []httpTest{
		{name: "no token", path: "/api/assignments/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "unknown token", path: "/api/assignments/me", token: strings.Repeat("ab", 32),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{name: "student route", path: "/api/grades/me", token: studentToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{
			name: "teacher on a student route", path: "/api/grades/me", token: teacherToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "student on a teacher route", path: "/api/teacher/assignments/me", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "teacher route", path: "/api/teacher/history/me", token: teacherToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "download needs a token", path: "/download/1/1/file.pdf", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("malformed header", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/assignments/me")
		req.Header.Set("Authorization", "Token "+studentToken)
		env.serve(req, rec)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_health(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/health")
	env.serve(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"status":"ok","build":"test"}`)}, rec)

	req, rec = newRequest(http.MethodGet, "/metrics")
	env.serve(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "kabinet_http_requests_total")
}
