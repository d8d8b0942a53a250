package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/funding"
)

const otherPurposeRequest = `{
	"purpose": "otro",
	"otherPurpose": " Taller de escritura ",
	"financingType": ["pasajes", "Viatico"],
	"amountRequested": 350000,
	"destination": "Valdivia",
	"startDate": "2025-03-10",
	"endDate": "2025-03-14"
}`

func createFunding(t *testing.T, app *testApp, token, body string) funding.FundingRequest {
	t.Helper()
	rec := app.do(newAuthRequest(http.MethodPost, "/v1/fundingRequests", token, []byte(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var fr funding.FundingRequest
	unmarchall(t, rec, &fr)
	return fr
}

func Test_fundingApi_otherPurpose(t *testing.T) {
	app := setup(t)
	ana, token := app.student(t, "ana")

	fr := createFunding(t, app, token, otherPurposeRequest)
	assert.Equal(t, funding.PurposeOther, fr.Purpose)
	require.NotNil(t, fr.OtherPurpose)
	assert.Equal(t, "Taller de escritura", *fr.OtherPurpose)
	assert.Equal(t, []string{funding.FinancingTickets, funding.FinancingAllowance}, fr.FinancingType)
	assert.Equal(t, core.StatusPending, fr.Status)
	require.NotNil(t, fr.UserID)
	assert.Equal(t, ana.ID, *fr.UserID)

	rec := app.do(newAuthRequest(http.MethodGet, "/v1/fundingRequests/"+itoa(fr.ID), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got funding.FundingRequest
	unmarchall(t, rec, &got)
	require.NotNil(t, got.OtherPurpose)
	assert.Equal(t, "Taller de escritura", *got.OtherPurpose)

	rec = app.do(newAuthRequest(http.MethodPatch, "/v1/fundingRequests/"+itoa(fr.ID), token, []byte(`{"purpose": "Pasantia"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &got)
	assert.Equal(t, funding.PurposeInternship, got.Purpose)
	assert.Nil(t, got.OtherPurpose)
}

func Test_fundingApi_createInvalid(t *testing.T) {
	app := setup(t)
	_, token := app.student(t, "ana")

	tests := []httpTest{
		{
			name: "other purpose missing",
			body: []byte(`{"purpose": "Otro", "financingType": ["Pasajes"], "amountRequested": 1, "destination": "Lima",
				"startDate": "2025-03-10", "endDate": "2025-03-14"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"otherPurpose": "this field is required"},
			}),
		},
		{
			name: "conference name missing",
			body: []byte(`{"purpose": "congreso", "financingType": ["Inscripción"], "amountRequested": 1, "destination": "Lima",
				"startDate": "2025-03-10", "endDate": "2025-03-14"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"conferenceName": "this field is required"},
			}),
		},
		{
			name:     "dates missing",
			body:     []byte(`{"purpose": "Pasantia", "financingType": ["Pasajes"], "amountRequested": 1, "destination": "Lima"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"startDate": "this field is required", "endDate": "this field is required"},
			}),
		},
		{
			name: "unknown purpose",
			body: []byte(`{"purpose": "vacaciones", "financingType": ["Pasajes"], "amountRequested": 1, "destination": "Lima",
				"startDate": "2025-03-10", "endDate": "2025-03-14"}`),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, app.do(newAuthRequest(http.MethodPost, "/v1/fundingRequests", token, tt.body)))
		})
	}
}

func Test_fundingApi_ownership(t *testing.T) {
	app := setup(t)
	_, execToken := app.executive(t)
	_, anaToken := app.student(t, "ana")
	_, bobToken := app.student(t, "bob")
	fr := createFunding(t, app, anaToken, otherPurposeRequest)
	createFunding(t, app, bobToken, otherPurposeRequest)

	rec := app.do(newAuthRequest(http.MethodGet, "/v1/fundingRequests/"+itoa(fr.ID), bobToken))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var page struct {
		Total int `json:"total"`
	}
	rec = app.do(newAuthRequest(http.MethodGet, "/v1/fundingRequests", bobToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &page)
	assert.Equal(t, 1, page.Total)

	rec = app.do(newAuthRequest(http.MethodGet, "/v1/fundingRequests", execToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarchall(t, rec, &page)
	assert.Equal(t, 2, page.Total)
}

func Test_fundingApi_review(t *testing.T) {
	app := setup(t)
	_, execToken := app.executive(t)
	_, token := app.student(t, "ana")
	fr := createFunding(t, app, token, otherPurposeRequest)
	path := "/v1/fundingRequests/" + itoa(fr.ID) + "/review"

	rec := app.do(newAuthRequest(http.MethodPost, path, token, []byte(`{"status": "Approved"}`)))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)

	rec = app.do(newAuthRequest(http.MethodPost, path, execToken, []byte(`{"status": "rechazada", "comment": "sin fondos"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got funding.FundingRequest
	unmarchall(t, rec, &got)
	assert.Equal(t, core.StatusRejected, got.Status)

	sent := app.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "ana@uni.cl", sent[0].To[0].Address)

	rec = app.do(newAuthRequest(http.MethodPost, path, execToken, []byte(`{"status": "Rejected"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func Test_fundingApi_statusPaging(t *testing.T) {
	app := setup(t)
	_, execToken := app.executive(t)
	_, token := app.student(t, "ana")
	rejected := createFunding(t, app, token, otherPurposeRequest)
	createFunding(t, app, token, otherPurposeRequest)
	createFunding(t, app, token, otherPurposeRequest)

	rec := app.do(newAuthRequest(http.MethodPost, "/v1/fundingRequests/"+itoa(rejected.ID)+"/review", execToken, []byte(`{"status": "Rejected"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	type fundingPage struct {
		Data  []funding.FundingRequest `json:"data"`
		Pages int                      `json:"pages"`
		Total int                      `json:"total"`
	}
	seen := map[int]bool{}
	for _, pg := range []string{"1", "2"} {
		rec = app.do(newAuthRequest(http.MethodGet, "/v1/fundingRequests?status=Pending&pageSize=1&page="+pg, execToken))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got fundingPage
		unmarchall(t, rec, &got)
		assert.Equal(t, 2, got.Total)
		assert.Equal(t, 2, got.Pages)
		require.Len(t, got.Data, 1)
		assert.Equal(t, core.StatusPending, got.Data[0].Status)
		assert.NotEqual(t, rejected.ID, got.Data[0].ID)
		seen[got.Data[0].ID] = true
	}
	assert.Len(t, seen, 2)

	rec = app.do(newAuthRequest(http.MethodGet, "/v1/fundingRequests?status=Rejected&pageSize=1", execToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got fundingPage
	unmarchall(t, rec, &got)
	assert.Equal(t, 1, got.Total)
	assert.Equal(t, 1, got.Pages)
}
