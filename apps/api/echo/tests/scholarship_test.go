package tests

import (
	"context"
	"net/http"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/investiga/apps/api/echo"
	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/period"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/scholarship"
	testutil "github.com/trezcool/investiga/tests"
)

type scholarshipFixture struct {
	app       *testApp
	execToken string
	token     string
	period    period.ApplicationPeriod
}

func newScholarshipFixture(t *testing.T) scholarshipFixture {
	app := setup(t)
	_, execToken := app.executive(t)
	_, token := app.student(t, "ana")
	return scholarshipFixture{
		app:       app,
		execToken: execToken,
		token:     token,
		period:    createPeriod(t, app, execToken, openPeriodBody("Beca 2025")),
	}
}

func (f scholarshipFixture) create(t *testing.T, files ...upload) scholarship.Scholarship {
	t.Helper()
	data := map[string]interface{}{
		"periodId":        f.period.ID,
		"degreeLevel":     core.DegreeMaster,
		"amountRequested": 500000,
		"bankName":        " Banco Estado ",
	}
	rec := f.app.do(newMultipartRequest(t, http.MethodPost, "/v1/scholarships", f.token, data, nil, files...))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var s scholarship.Scholarship
	unmarchall(t, rec, &s)
	return s
}

func sortedKeys(app *testApp) []string {
	keys := app.storage.Keys()
	sort.Strings(keys)
	return keys
}

func Test_scholarshipApi_create(t *testing.T) {
	f := newScholarshipFixture(t)

	s := f.create(t, upload{"notas.pdf", "%PDF-notas"}, upload{"carta.pdf", "%PDF-carta"})
	assert.Equal(t, core.StatusPending, s.Status)
	assert.Equal(t, core.StatusPending, s.StatusTutor)
	assert.Equal(t, "Banco Estado", s.BankName)
	require.NotNil(t, s.PeriodID)
	assert.Equal(t, f.period.ID, *s.PeriodID)
	require.Len(t, s.Files, 2)
	assert.Equal(t, "notas.pdf", s.Files[0].Name)
	assert.Equal(t, int64(len("%PDF-notas")), s.Files[0].Size)
	assert.Len(t, f.app.storage.Keys(), 2)

	t.Run("executives do not apply", func(t *testing.T) {
		data := map[string]interface{}{"periodId": f.period.ID, "degreeLevel": core.DegreeMaster, "amountRequested": 1}
		rec := f.app.do(newMultipartRequest(t, http.MethodPost, "/v1/scholarships", f.execToken, data, nil))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	t.Run("closed period", func(t *testing.T) {
		closed := createPeriod(t, f.app, f.execToken, `{"periodTitle": "Beca 2020", "statusApplication": "Cerrado",
			"startDate": "2020-01-01", "endDate": "2020-02-01"}`)
		data := map[string]interface{}{"periodId": closed.ID, "degreeLevel": core.DegreeMaster, "amountRequested": 1}
		rec := f.app.do(newMultipartRequest(t, http.MethodPost, "/v1/scholarships", f.token, data, nil, upload{"a.pdf", "a"}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"periodId": scholarship.ErrPeriodClosed.Error()},
			}),
		}, rec)
		assert.Len(t, f.app.storage.Keys(), 2)
	})
}

func Test_scholarshipApi_updateFiles(t *testing.T) {
	f := newScholarshipFixture(t)
	s := f.create(t, upload{"notas.pdf", "notas"}, upload{"carta.pdf", "carta"})
	path := "/v1/scholarships/" + itoa(s.ID)

	rec := f.app.do(newMultipartRequest(t, http.MethodPatch, path, f.token,
		map[string]interface{}{"accountNumber": "123-456"}, map[string][]string{"remove": {s.Files[0].ID}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got scholarship.Scholarship
	unmarchall(t, rec, &got)
	require.Len(t, got.Files, 1)
	assert.Equal(t, s.Files[1].ID, got.Files[0].ID)
	assert.Equal(t, "123-456", got.AccountNumber)
	keysBefore := sortedKeys(f.app)
	require.Len(t, keysBefore, 1)

	t.Run("failed update changes nothing", func(t *testing.T) {
		rec := f.app.do(newMultipartRequest(t, http.MethodPatch, path, f.token,
			map[string]interface{}{"amountRequested": -1},
			map[string][]string{"remove": {s.Files[1].ID}},
			upload{"nueva.pdf", "nueva"}))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"amountRequested": "amountRequested must be greater than 0"},
			}),
		}, rec)

		rec = f.app.do(newAuthRequest(http.MethodGet, path, f.token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var after scholarship.Scholarship
		unmarchall(t, rec, &after)
		assert.Equal(t, got.Files, after.Files)
		assert.Equal(t, got.AmountRequested, after.AmountRequested)
		assert.Equal(t, keysBefore, sortedKeys(f.app))
	})

	t.Run("keep with no value drops every file", func(t *testing.T) {
		rec := f.app.do(newMultipartRequest(t, http.MethodPatch, path, f.token, nil,
			map[string][]string{"keep": {""}}, upload{"nueva.pdf", "nueva"}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var after scholarship.Scholarship
		unmarchall(t, rec, &after)
		require.Len(t, after.Files, 1)
		assert.Equal(t, "nueva.pdf", after.Files[0].Name)
		assert.Len(t, f.app.storage.Keys(), 1)
	})
}

func Test_scholarshipApi_download(t *testing.T) {
	f := newScholarshipFixture(t)
	s := f.create(t, upload{"notas.pdf", "%PDF-notas"})

	rec := f.app.do(newAuthRequest(http.MethodGet, "/v1/scholarships/"+itoa(s.ID)+"/files/"+s.Files[0].ID+"/download", f.token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp echoapi.FileURLResponse
	unmarchall(t, rec, &resp)
	require.NotEmpty(t, resp.URL)

	rec = f.app.do(newRequest(http.MethodGet, resp.URL))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "%PDF-notas", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "notas.pdf")

	rec = f.app.do(newAuthRequest(http.MethodGet, "/v1/scholarships/"+itoa(s.ID)+"/files/nope/download", f.token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func Test_scholarshipApi_review(t *testing.T) {
	f := newScholarshipFixture(t)
	s := f.create(t)
	bob := f.app.createUser(t, "bob", testutil.IntPtr(role.Student))
	path := "/v1/scholarships/" + itoa(s.ID)

	// other students do not see it
	rec := f.app.do(newAuthRequest(http.MethodGet, path, getToken(t, f.app.conf, bob)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	t.Run("over budget", func(t *testing.T) {
		rec := f.app.do(newAuthRequest(http.MethodPost, path+"/review", f.execToken, []byte(`{"status": "Approved", "amountGranted": 2000001}`)))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"amountGranted": period.ErrBudgetExceeded.Error()},
			}),
		}, rec)
	})

	rec = f.app.do(newAuthRequest(http.MethodPost, path+"/review", f.execToken, []byte(`{"status": "aprobada", "comment": "felicitaciones"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got scholarship.Scholarship
	unmarchall(t, rec, &got)
	assert.Equal(t, core.StatusApproved, got.Status)
	assert.Equal(t, float64(500000), got.AmountGranted)

	p, err := f.app.periodRepo.GetPeriod(context.Background(), f.period.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Budget{MasterDegree: 500000}, p.UsedBudget)
	require.Len(t, f.app.mail.SentMessages(), 1)

	rec = f.app.do(newAuthRequest(http.MethodPost, path+"/tutor-review", f.execToken, []byte(`{"statusTutor": "Rejected"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &got)
	assert.Equal(t, core.StatusRejected, got.StatusTutor)
	assert.Equal(t, core.StatusApproved, got.Status)

	rec = f.app.do(newMultipartRequest(t, http.MethodPatch, path, f.token, map[string]interface{}{"amountRequested": 10}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}
