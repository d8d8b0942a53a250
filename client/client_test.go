package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/role"
)

const goodToken = "good-token"

type fakeAPI struct {
	roleID      int
	logouts     int32
	sessionHits int32
	lastForm    *http.Request
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAPI) authed(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") != "Bearer "+goodToken {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired token", "kind": "unauthorized"})
		return false
	}
	return true
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid credentials", "kind": "bad_data"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": goodToken})
	})
	mux.HandleFunc("/v1/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if !f.authed(w, r) {
			return
		}
		atomic.AddInt32(&f.sessionHits, 1)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"token":  goodToken,
			"roleId": f.roleID,
			"role":   role.Names[f.roleID],
			"user":   map[string]interface{}{"id": 7, "username": "ana", "email": "ana@example.com", "roleId": f.roleID},
		})
	})
	mux.HandleFunc("/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if !f.authed(w, r) {
			return
		}
		atomic.AddInt32(&f.logouts, 1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/v1/theses/search", func(w http.ResponseWriter, r *http.Request) {
		if !f.authed(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": []map[string]string{{"title": "T1"}}, "pages": 1, "total": 1})
	})
	mux.HandleFunc("/v1/scholarships/3", func(w http.ResponseWriter, r *http.Request) {
		if !f.authed(w, r) {
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "kind": "bad_data"})
			return
		}
		f.lastForm = r
		writeJSON(w, http.StatusOK, map[string]interface{}{"id": 3})
	})
	mux.HandleFunc("/v1/status/", func(w http.ResponseWriter, r *http.Request) {
		var code int
		switch strings.TrimPrefix(r.URL.Path, "/v1/status/") {
		case "400":
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error": "invalid data", "kind": "bad_data", "fields": map[string]string{"title": "this field is required"},
			})
			return
		case "403":
			code = http.StatusForbidden
		case "404":
			code = http.StatusNotFound
		case "409":
			code = http.StatusConflict
		case "422":
			code = http.StatusUnprocessableEntity
		case "500":
			code = http.StatusInternalServerError
		case "503":
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, code, map[string]string{"error": "boom", "kind": "server"})
	})
	return mux
}

func newFake(t *testing.T, roleID int) (*fakeAPI, *Session) {
	t.Helper()
	f := &fakeAPI{roleID: roleID}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, NewSession(New(srv.URL))
}

func TestProblemKinds(t *testing.T) {
	_, s := newFake(t, role.Student)
	tests := []struct {
		path       string
		wantKind   core.ErrorKind
		wantStatus int
	}{
		{"/v1/status/400", core.KindBadData, 400},
		{"/v1/status/422", core.KindBadData, 422},
		{"/v1/status/403", core.KindForbidden, 403},
		{"/v1/status/404", core.KindNotFound, 404},
		{"/v1/status/409", core.KindConflict, 409},
		{"/v1/status/500", core.KindServer, 500},
		{"/v1/status/503", core.KindServer, 503},
		{"/v1/theses/search", core.KindUnauthorized, 401},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := s.Client().Get(context.Background(), tt.path, nil, nil)
			p := AsProblem(err)
			require.NotNil(t, p)
			assert.Equal(t, tt.wantKind, p.Kind)
			assert.Equal(t, tt.wantStatus, p.Status)
		})
	}

	p := AsProblem(s.Client().Get(context.Background(), "/v1/status/400", nil, nil))
	assert.Equal(t, "invalid data", p.Message)
	assert.Equal(t, map[string]string{"title": "this field is required"}, p.Fields)
}

func TestTransportProblems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	slow := New(srv.URL, WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))
	p := AsProblem(slow.Get(context.Background(), "/", nil, nil))
	assert.Equal(t, core.KindTimeout, p.Kind)
	srv.Close()

	closed := httptest.NewServer(http.NotFoundHandler())
	addr := closed.URL
	closed.Close()
	p = AsProblem(New(addr).Get(context.Background(), "/", nil, nil))
	assert.Equal(t, core.KindCannotConnect, p.Kind)
}

func TestSession(t *testing.T) {
	f, s := newFake(t, role.Executive)
	ctx := context.Background()

	_, err := s.Info()
	assert.Equal(t, ErrNoSession, err)

	_, err = s.Login(ctx, "ana", "wrong")
	assert.Equal(t, core.KindBadData, AsProblem(err).Kind)
	assert.Empty(t, s.Token())

	info, err := s.Login(ctx, "ana", "secret")
	require.NoError(t, err)
	assert.Equal(t, goodToken, info.Token)
	assert.Equal(t, "executive", info.Role)
	assert.Equal(t, 7, info.User.ID)
	assert.True(t, s.IsExecutive())

	// the role is resolved once per session
	for i := 0; i < 3; i++ {
		roleID, err := s.Role(ctx)
		require.NoError(t, err)
		assert.Equal(t, role.Executive, *roleID)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.sessionHits))

	require.NoError(t, s.Logout(ctx))
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.logouts))
	assert.Empty(t, s.Token())
	assert.False(t, s.IsExecutive())
	_, err = s.Role(ctx)
	assert.Equal(t, ErrNoSession, err)
	assert.Equal(t, ErrNoSession, s.Logout(ctx))
}

func TestSession_RejectedToken(t *testing.T) {
	_, s := newFake(t, role.Student)
	s.set(&SessionInfo{Token: "stale"})

	_, err := s.Refresh(context.Background())
	assert.Equal(t, core.KindUnauthorized, AsProblem(err).Kind)
	_, err = s.Info()
	assert.Equal(t, ErrNoSession, err)
}

type thesisRow struct {
	Title string `json:"title"`
}

func fetchTheses(ctx context.Context, c *Client) (Page[thesisRow], error) {
	return Search[thesisRow](ctx, c, "/v1/theses", map[string]string{})
}

func TestLoadScreen(t *testing.T) {
	tests := []struct {
		name     string
		roleID   int
		login    bool
		required int
		wantKind core.ErrorKind
	}{
		{name: "matching role", roleID: role.Executive, login: true, required: role.Executive},
		{name: "wrong role", roleID: role.Student, login: true, required: role.Executive, wantKind: core.KindForbidden},
		{name: "no session", roleID: role.Executive, required: role.Executive, wantKind: core.KindUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s := newFake(t, tt.roleID)
			ctx := context.Background()
			if tt.login {
				_, err := s.Login(ctx, "ana", "secret")
				require.NoError(t, err)
			}

			res := LoadScreen(ctx, s, tt.required, fetchTheses)
			if tt.wantKind == "" {
				require.True(t, res.OK(), "%v", res.Err)
				assert.Equal(t, 1, res.Value.Total)
				assert.Equal(t, []thesisRow{{Title: "T1"}}, res.Value.Data)
				return
			}
			require.False(t, res.OK())
			assert.Equal(t, tt.wantKind, res.Err.Kind)
			assert.Nil(t, res.Value.Data)
		})
	}
}

func TestLoadScreen_FetchFailure(t *testing.T) {
	_, s := newFake(t, role.Executive)
	ctx := context.Background()
	_, err := s.Login(ctx, "ana", "secret")
	require.NoError(t, err)

	res := LoadScreen(ctx, s, role.Executive, func(ctx context.Context, c *Client) (struct{}, error) {
		return struct{}{}, c.Get(ctx, "/v1/status/404", nil, nil)
	})
	require.False(t, res.OK())
	assert.Equal(t, core.KindNotFound, res.Err.Kind)
}

func TestSaveAttachments(t *testing.T) {
	f, s := newFake(t, role.Student)
	ctx := context.Background()
	_, err := s.Login(ctx, "ana", "secret")
	require.NoError(t, err)

	changes := AttachmentChanges{
		Remove: []string{"f1"},
		Add:    []Attachment{{Name: "plan.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF")}},
	}
	var out struct {
		ID int `json:"id"`
	}
	err = s.Client().SaveAttachments(ctx, "/v1/scholarships/3", map[string]int{"amountRequested": 10}, changes, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, out.ID)

	form := f.lastForm.MultipartForm
	assert.Equal(t, []string{`{"amountRequested":10}`}, form.Value["data"])
	assert.Equal(t, []string{"f1"}, form.Value["remove"])
	_, hasKeep := form.Value["keep"]
	assert.False(t, hasKeep)
	require.Len(t, form.File["files"], 1)
	assert.Equal(t, "plan.pdf", form.File["files"][0].Filename)
	assert.Equal(t, "application/pdf", form.File["files"][0].Header.Get("Content-Type"))

	// an empty keep list drops every file
	err = s.Client().SaveAttachments(ctx, "/v1/scholarships/3", nil, AttachmentChanges{Keep: []string{}}, nil)
	require.NoError(t, err)
	form = f.lastForm.MultipartForm
	assert.Equal(t, []string{""}, form.Value["keep"])
	assert.NotContains(t, form.Value, "data")
}
