package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/investiga/apps/api/echo"
	"github.com/trezcool/investiga/core/role"
	testutil "github.com/trezcool/investiga/tests"
)

func Test_authApi_login(t *testing.T) {
	app := setup(t)
	testutil.CreateUser(t, app.usrRepo, "Ana", "ana", "ana@uni.cl", "Sup3r-Secret!", testutil.IntPtr(role.Student))

	tests := []httpTest{
		{
			name:     "invalid data",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"username": "this field is required", "password": "this field is required"},
			}),
		},
		{
			name:     "wrong password",
			body:     []byte(`{"username": "ana", "password": "nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials", Kind: "bad_data"}),
		},
		{
			name:     "unknown user",
			body:     []byte(`{"username": "bob", "password": "Sup3r-Secret!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid credentials", Kind: "bad_data"}),
		},
		{
			name:     "by email",
			body:     []byte(`{"username": " ANA@uni.cl ", "password": "Sup3r-Secret!"}`),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newRequest(http.MethodPost, "/v1/auth/login", tt.body))
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusOK {
				var resp echoapi.TokenResponse
				unmarchall(t, rec, &resp)
				assert.NotEmpty(t, resp.Token)
			}
		})
	}
}

func Test_authApi_session(t *testing.T) {
	app := setup(t)
	ana, token := app.student(t, "ana")

	rec := app.do(newAuthRequest(http.MethodGet, "/v1/auth/session", token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sess echoapi.SessionResponse
	unmarchall(t, rec, &sess)
	assert.Equal(t, token, sess.Token)
	assert.Equal(t, "student", sess.Role)
	require.NotNil(t, sess.RoleID)
	assert.Equal(t, role.Student, *sess.RoleID)
	assert.Equal(t, ana.ID, sess.User.ID)
}

func Test_authApi_missingToken(t *testing.T) {
	app := setup(t)

	rec := app.do(newRequest(http.MethodGet, "/v1/auth/session"))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusUnauthorized,
		wantData: marchallObj(t, httpErr{Error: "user not authenticated", Kind: "unauthorized"}),
	}, rec)

	rec = app.do(newAuthRequest(http.MethodGet, "/v1/auth/session", "not-a-token"))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusUnauthorized,
		wantData: marchallObj(t, httpErr{Error: "invalid or expired token", Kind: "unauthorized"}),
	}, rec)
}

func Test_authApi_foreignTokens(t *testing.T) {
	app := setup(t)
	ana, _ := app.student(t, "ana")
	sign := func(claims jwt.Claims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(app.conf.SecretKey))
		require.NoError(t, err)
		return token
	}

	fileLink := sign(jwt.RegisteredClaims{
		Subject:   itoa(ana.ID),
		Audience:  jwt.ClaimStrings{"files"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	otherIssuer := echoapi.NewClaims(app.conf, ana)
	otherIssuer.Issuer = "elsewhere"
	noExpiry := echoapi.NewClaims(app.conf, ana)
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"file link", fileLink},
		{"other issuer", sign(otherIssuer)},
		{"no expiry", sign(noExpiry)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newAuthRequest(http.MethodGet, "/v1/auth/session", tt.token))
			checkCodeAndData(t, httpTest{
				wantCode: http.StatusUnauthorized,
				wantData: marchallObj(t, httpErr{Error: "invalid or expired token", Kind: "unauthorized"}),
			}, rec)
		})
	}
}

func Test_authApi_logoutRevokesToken(t *testing.T) {
	app := setup(t)
	_, token := app.student(t, "ana")

	rec := app.do(newAuthRequest(http.MethodPost, "/v1/auth/logout", token))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = app.do(newAuthRequest(http.MethodGet, "/v1/auth/session", token))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusUnauthorized,
		wantData: marchallObj(t, httpErr{Error: "invalid or expired token", Kind: "unauthorized"}),
	}, rec)
}

func Test_authApi_deletedUserLosesSession(t *testing.T) {
	app := setup(t)
	_, execToken := app.executive(t)
	ana, token := app.student(t, "ana")

	rec := app.do(newAuthRequest(http.MethodDelete, "/v1/users/"+itoa(ana.ID), execToken))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = app.do(newAuthRequest(http.MethodGet, "/v1/auth/session", token))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_authApi_refreshToken(t *testing.T) {
	app := setup(t)
	_, token := app.student(t, "ana")

	rec := app.do(newAuthRequest(http.MethodPost, "/v1/auth/token-refresh", token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp echoapi.TokenResponse
	unmarchall(t, rec, &resp)
	assert.NotEmpty(t, resp.Token)
	assert.NotEqual(t, token, resp.Token)
}
