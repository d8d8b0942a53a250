package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dig_container "github.com/trezcool/investiga/apps/api/di/dig"
	echoapi "github.com/trezcool/investiga/apps/api/echo"
	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/announcement"
	"github.com/trezcool/investiga/core/funding"
	"github.com/trezcool/investiga/core/ingest"
	"github.com/trezcool/investiga/core/period"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/scholarship"
	"github.com/trezcool/investiga/core/thesis"
	"github.com/trezcool/investiga/core/user"
	cachesvc "github.com/trezcool/investiga/services/cache"
	emailsvc "github.com/trezcool/investiga/services/email"
	logsvc "github.com/trezcool/investiga/services/logger"
	storagesvc "github.com/trezcool/investiga/services/storage"
	inmemdb "github.com/trezcool/investiga/storage/database/inmem"
	testutil "github.com/trezcool/investiga/tests"
)

var errForbidden = httpErr{Error: "permission denied", Kind: "forbidden"}

type testApp struct {
	*echoapi.Server
	conf       *core.Config
	usrRepo    user.Repository
	periodRepo period.Repository
	mail       *emailsvc.ConsoleServiceMock
	storage    *storagesvc.MemoryStorage
	cache      *cachesvc.MemoryCache
}

// setup wires the API over the in-memory database and services.
func setup(t *testing.T) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	translator := dig_container.NewTranslator()
	validate := dig_container.NewValidator(translator)

	db := inmemdb.Open()
	app := &testApp{
		conf:       conf,
		usrRepo:    inmemdb.NewUserRepository(db),
		periodRepo: inmemdb.NewPeriodRepository(db),
		mail:       emailsvc.NewConsoleServiceMock(conf, logger),
		storage:    storagesvc.NewMemoryStorage(conf),
		cache:      cachesvc.NewMemoryCache(),
	}
	roleRepo := inmemdb.NewRoleRepository(db)

	usrSvc := user.NewService(app.usrRepo, roleRepo, app.cache, app.mail, conf)
	roleSvc := role.NewService(roleRepo)
	roleSvc.OnChange(usrSvc.InvalidateRoleLookups)
	researchSvc := research.NewService(inmemdb.NewResearchRepository(db))

	app.Server = echoapi.NewServer(&echoapi.Deps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		Cache:           app.cache,
		Storage:         app.storage,
		UserSvc:         usrSvc,
		RoleSvc:         roleSvc,
		ThesisSvc:       thesis.NewService(inmemdb.NewThesisRepository(db)),
		ResearchSvc:     researchSvc,
		PeriodSvc:       period.NewService(app.periodRepo),
		ScholarshipSvc:  scholarship.NewService(inmemdb.NewScholarshipRepository(db), app.periodRepo, usrSvc, app.storage, app.mail, logger),
		FundingSvc:      funding.NewService(inmemdb.NewFundingRepository(db), usrSvc, app.storage, app.mail, logger),
		AnnouncementSvc: announcement.NewService(inmemdb.NewAnnouncementRepository(db)),
		IngestSvc:       ingest.NewService(usrSvc, researchSvc, validate, translator),
	})
	return app
}

func (app *testApp) createUser(t *testing.T, uname string, roleID *int) user.User {
	return testutil.CreateUser(t, app.usrRepo, uname, uname, uname+"@uni.cl", "", roleID)
}

func (app *testApp) executive(t *testing.T) (user.User, string) {
	usr := app.createUser(t, "boss", testutil.IntPtr(role.Executive))
	return usr, getToken(t, app.conf, usr)
}

func (app *testApp) student(t *testing.T, uname string) (user.User, string) {
	usr := app.createUser(t, uname, testutil.IntPtr(role.Student))
	return usr, getToken(t, app.conf, usr)
}

// do serves the request and returns the recorded response.
func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
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
	name    string
	content string
}

// newMultipartRequest sends data as the JSON "data" field, along with form values and files.
func newMultipartRequest(
	t *testing.T, method, path, token string, data interface{}, values map[string][]string, files ...upload,
) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		require.NoError(t, w.WriteField("data", string(marchallObj(t, data))))
	}
	for k, vals := range values {
		for _, v := range vals {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, echoapi.NewClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarchall(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
