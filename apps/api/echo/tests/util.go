package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/kabinet/apps/api/echo"
	"github.com/trezcool/kabinet/core"
	"github.com/trezcool/kabinet/core/academic"
	"github.com/trezcool/kabinet/core/grading"
	"github.com/trezcool/kabinet/core/identity"
	"github.com/trezcool/kabinet/core/session"
	"github.com/trezcool/kabinet/core/submission"
	"github.com/trezcool/kabinet/storage/database/sqlx"
	"github.com/trezcool/kabinet/storage/filestore"
	"github.com/trezcool/kabinet/tests"
)

var (
	errMissingToken = httpErr{Error: "authentication required"}
	errBadLogin     = httpErr{Error: "invalid credentials"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testEnv struct {
	app      Server
	conf     *core.Config
	idRepo   identity.Repository
	acRepo   academic.Repository
	sessions *session.Manager
	store    *filestore.FileStore
}

func setup(t *testing.T, configure ...func(conf *core.Config)) testEnv {
	t.Helper()

	// set up DB & repos
	db, conf := testutil.PrepareDB(t)
	for _, fn := range configure {
		fn(conf)
	}
	idRepo := sqlxrepos.NewIdentityRepository(db)
	acRepo := sqlxrepos.NewAcademicRepository(db)
	subRepo := sqlxrepos.NewSubmissionRepository(db)
	store, err := filestore.New(conf)
	if err != nil {
		t.Fatalf("filestore.New(): %v", err)
	}

	// set up services
	logger := testutil.NopLogger{}
	idSvc := identity.NewService(idRepo)
	acSvc := academic.NewService(acRepo)
	sessions := session.NewManager(sqlxrepos.NewSessionRepository(db), conf, logger)
	subSvc := submission.NewService(subRepo, acSvc, idSvc, store, conf, logger)
	gradeSvc := grading.NewService(db, sqlxrepos.NewGradeRepository(db), subRepo, acSvc, idSvc, store, logger)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)

	// set up server
	app := NewServer(ServerDeps{
		Conf:        conf,
		Logger:      logger,
		DB:          db,
		IdentitySvc: idSvc,
		Sessions:    sessions,
		SubmitSvc:   subSvc,
		GradingSvc:  gradeSvc,
		Store:       store,
		Validate:    validate,
		Translator:  translator,
	})
	t.Cleanup(func() { _ = app.Close() })

	return testEnv{
		app:      app,
		conf:     conf,
		idRepo:   idRepo,
		acRepo:   acRepo,
		sessions: sessions,
		store:    store,
	}
}

func (env testEnv) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	env.app.ServeHTTP(rec, req)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

type upload struct {
	field string
	name  string
	data  []byte
}

func newUploadRequest(t *testing.T, path, token string, files ...upload) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range files {
		field := f.field
		if field == "" {
			field = "files"
		}
		part, err := w.CreateFormFile(field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile(): %v", err)
		}
		if _, err = io.Copy(part, bytes.NewReader(f.data)); err != nil {
			t.Fatalf("writing part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, env testEnv, userID int64, role identity.Role) string {
	t.Helper()
	sess, err := env.sessions.Create(context.Background(), userID, role)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return sess.Token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("unmarchall(): %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func jsonUnmarshal(data []byte, dst interface{}) error {
	return json.Unmarshal(data, dst)
}
