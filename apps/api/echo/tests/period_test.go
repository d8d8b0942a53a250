package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/period"
)

// openPeriodBody is a period taking applications from yesterday for a month.
func openPeriodBody(title string) string {
	now := time.Now().UTC()
	return fmt.Sprintf(`{
		"periodTitle": %q,
		"statusApplication": "Abierto",
		"startDate": %q,
		"endDate": %q,
		"totalBudget": {"BachelorDegree": 1000000, "MasterDegree": 2000000, "Doctorate": 3000000}
	}`, title, now.AddDate(0, 0, -1).Format(core.DateLayout), now.AddDate(0, 1, 0).Format(core.DateLayout))
}

func createPeriod(t *testing.T, app *testApp, token, body string) period.ApplicationPeriod {
	t.Helper()
	rec := app.do(newAuthRequest(http.MethodPost, "/v1/applicationPeriod", token, []byte(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var p period.ApplicationPeriod
	unmarchall(t, rec, &p)
	return p
}

func Test_periodApi_create(t *testing.T) {
	app := setup(t)
	_, token := app.executive(t)

	p := createPeriod(t, app, token, openPeriodBody("Beca 2025"))
	want := core.Budget{BachelorDegree: 1000000, MasterDegree: 2000000, Doctorate: 3000000}
	assert.Equal(t, "Beca 2025", p.Title)
	assert.Equal(t, period.Open, p.StatusApplication)
	assert.Equal(t, want, p.TotalBudget)
	assert.Equal(t, core.Budget{}, p.UsedBudget)

	rec := app.do(newAuthRequest(http.MethodGet, "/v1/applicationPeriod/"+itoa(p.ID), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got period.ApplicationPeriod
	unmarchall(t, rec, &got)
	assert.Equal(t, want, got.TotalBudget)
	assert.Equal(t, core.Budget{}, got.UsedBudget)

	t.Run("duplicate title", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPost, "/v1/applicationPeriod", token, []byte(openPeriodBody(" Beca 2025 "))))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"periodTitle": period.ErrTitleExists.Error()},
			}),
		}, rec)
	})

	t.Run("dates out of order", func(t *testing.T) {
		body := `{"periodTitle": "Beca 2026", "startDate": "2026-05-01", "endDate": "2026-04-01"}`
		rec := app.do(newAuthRequest(http.MethodPost, "/v1/applicationPeriod", token, []byte(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})

	t.Run("dates missing", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPost, "/v1/applicationPeriod", token, []byte(`{"periodTitle": "Beca 2028"}`)))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"startDate": "this field is required", "endDate": "this field is required"},
			}),
		}, rec)
	})

	t.Run("unknown status", func(t *testing.T) {
		body := `{"periodTitle": "Beca 2027", "statusApplication": "maybe", "startDate": "2027-03-01", "endDate": "2027-04-01"}`
		rec := app.do(newAuthRequest(http.MethodPost, "/v1/applicationPeriod", token, []byte(body)))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"statusApplication": period.ErrInvalidStatus.Error()},
			}),
		}, rec)
	})
}

func Test_periodApi_studentsRead(t *testing.T) {
	app := setup(t)
	_, execToken := app.executive(t)
	_, token := app.student(t, "ana")
	p := createPeriod(t, app, execToken, openPeriodBody("Beca 2025"))

	rec := app.do(newAuthRequest(http.MethodGet, "/v1/applicationPeriod/"+itoa(p.ID), token))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(newAuthRequest(http.MethodDelete, "/v1/applicationPeriod/"+itoa(p.ID), token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
}
