package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/user"
	testutil "github.com/trezcool/investiga/tests"
)

type userPage struct {
	Data  []user.User `json:"data"`
	Pages int         `json:"pages"`
	Total int         `json:"total"`
}

func Test_userApi_create(t *testing.T) {
	app := setup(t)
	_, token := app.executive(t)
	app.createUser(t, "ana", testutil.IntPtr(role.Student))

	tests := []httpTest{
		{
			name:     "missing fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error: "invalid data",
				Kind:  "bad_data",
				Fields: map[string]string{
					"email":    "this field is required",
					"username": "this field is required",
					"names":    "this field is required",
				},
			}),
		},
		{
			name:     "duplicate email",
			body:     []byte(`{"email": "ANA@uni.cl", "username": "ana2", "names": "Ana Maria"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"email": "a user with this email already exists"},
			}),
		},
		{
			name:     "duplicate username",
			body:     []byte(`{"email": "ana2@uni.cl", "username": "ana", "names": "Ana Maria"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"username": "a user with this username already exists"},
			}),
		},
		{
			name:     "unknown role",
			body:     []byte(`{"email": "bob@uni.cl", "username": "bob", "names": "Bob", "roleId": 99}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"roleId": "role does not exist"},
			}),
		},
		{
			name:     "weak password",
			body:     []byte(`{"email": "bob@uni.cl", "username": "bob", "names": "Bob", "password": "12345678", "passwordConfirm": "12345678"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Error:  "invalid data",
				Kind:   "bad_data",
				Fields: map[string]string{"password": "password cannot be entirely numeric"},
			}),
		},
		{
			name:     "valid",
			body:     []byte(`{"email": " Bob@Uni.cl ", "username": "bob", "names": "Bob", "roleId": 4, "password": "Xk93-lmnq!", "passwordConfirm": "Xk93-lmnq!"}`),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newAuthRequest(http.MethodPost, "/v1/users", token, tt.body))
			checkCodeAndData(t, tt, rec)
			if tt.wantCode == http.StatusCreated {
				var usr user.User
				unmarchall(t, rec, &usr)
				assert.Equal(t, "bob@uni.cl", usr.Email)
				require.NotNil(t, usr.RoleID)
				assert.Equal(t, role.Investigator, *usr.RoleID)
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	app := setup(t)
	_, token := app.executive(t)
	start := time.Now().Add(-time.Hour)
	for i := 0; i < 7; i++ {
		uname := fmt.Sprintf("student%d", i)
		testutil.CreateUser(t, app.usrRepo, uname, uname, uname+"@uni.cl", "", testutil.IntPtr(role.Student), start.Add(time.Duration(i)*time.Minute))
	}
	app.createUser(t, "ines", testutil.IntPtr(role.Investigator))

	t.Run("filter by role, paginated", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/users?roleId=2&pageSize=3", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var page userPage
		unmarchall(t, rec, &page)
		assert.Equal(t, 7, page.Total)
		assert.Equal(t, 3, page.Pages)
		assert.Len(t, page.Data, 3)
	})

	t.Run("last page", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/users?roleId=2&pageSize=3&page=3", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var page userPage
		unmarchall(t, rec, &page)
		assert.Equal(t, 7, page.Total)
		assert.Len(t, page.Data, 1)
	})

	t.Run("search in body", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPost, "/v1/users/search", token, []byte(`{"search": "INES"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var page userPage
		unmarchall(t, rec, &page)
		require.Equal(t, 1, page.Total)
		assert.Equal(t, "ines", page.Data[0].Username)
	})
}

func Test_userApi_executiveOnly(t *testing.T) {
	app := setup(t)
	_, token := app.student(t, "ana")

	tests := []httpTest{
		{name: "list users", method: http.MethodGet, path: "/v1/users"},
		{name: "create user", method: http.MethodPost, path: "/v1/users", body: []byte(`{}`)},
		{name: "create period", method: http.MethodPost, path: "/v1/applicationPeriod", body: []byte(`{}`)},
		{name: "list roles", method: http.MethodGet, path: "/v1/roles"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.wantCode = http.StatusForbidden
			tt.wantData = marchallObj(t, errForbidden)
			checkCodeAndData(t, tt, app.do(newAuthRequest(tt.method, tt.path, token, tt.body)))
		})
	}
}

func Test_userApi_retrieveAndUpdate(t *testing.T) {
	app := setup(t)
	ana, token := app.student(t, "ana")
	bob := app.createUser(t, "bob", testutil.IntPtr(role.Student))

	t.Run("self", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/users/"+itoa(ana.ID), token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("someone else", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodGet, "/v1/users/"+itoa(bob.ID), token))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("own profile", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPatch, "/v1/users/"+itoa(ana.ID), token, []byte(`{"institution": "UdeC"}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		unmarchall(t, rec, &usr)
		assert.Equal(t, "UdeC", usr.Institution)
	})

	t.Run("own role", func(t *testing.T) {
		rec := app.do(newAuthRequest(http.MethodPatch, "/v1/users/"+itoa(ana.ID), token, []byte(`{"roleId": 1}`)))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})
}

func Test_userApi_destroySelf(t *testing.T) {
	app := setup(t)
	boss, token := app.executive(t)

	rec := app.do(newAuthRequest(http.MethodDelete, "/v1/users/"+itoa(boss.ID), token))
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
}

func Test_userApi_roleLookup(t *testing.T) {
	app := setup(t)
	_, token := app.executive(t)
	ines := app.createUser(t, "ines", testutil.IntPtr(role.Investigator))

	lookup := func(t *testing.T, email string) (int, *int) {
		rec := app.do(newRequest(http.MethodGet, "/v1/users/role?email="+email))
		var resp struct {
			RoleID *int `json:"roleId"`
		}
		if rec.Code == http.StatusOK {
			unmarchall(t, rec, &resp)
		}
		return rec.Code, resp.RoleID
	}

	code, roleID := lookup(t, "INES@uni.cl")
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, roleID)
	assert.Equal(t, role.Investigator, *roleID)

	code, _ = lookup(t, "nobody@uni.cl")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = lookup(t, "not-an-email")
	assert.Equal(t, http.StatusBadRequest, code)

	// deleting the role leaves its users without one, cached lookups included
	rec := app.do(newAuthRequest(http.MethodDelete, "/v1/roles/"+itoa(role.Investigator), token))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	code, roleID = lookup(t, "ines@uni.cl")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, roleID)

	rec = app.do(newAuthRequest(http.MethodGet, "/v1/users/"+itoa(ines.ID), token))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var usr user.User
	unmarchall(t, rec, &usr)
	assert.Nil(t, usr.RoleID)
}
