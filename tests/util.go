// Package testutil holds the fixtures shared by the tests of the apps.
package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/user"
)

// NewConfig returns the configuration used by tests, independent of the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		AppName:          "Investiga",
		SecretKey:        "test-secret-key",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Investiga", Address: "noreply@investiga.test"},
		Server: core.ServerConfig{
			Host:                      "localhost",
			Address:                   ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			CORSOrigins:               []string{"*"},
		},
		Storage: core.StorageConfig{
			BaseURL: "http://localhost:8000/v1/files",
			URLTTL:  time.Minute,
		},
		Pagination: core.PaginationConfig{DefaultSize: 6, MaxSize: 100},
		Upload:     core.UploadConfig{MaxSize: 1 << 20},
	}
}

func IntPtr(i int) *int { return &i }

func CreateUser(
	t *testing.T,
	repo user.Repository,
	names, uname, email, pwd string,
	roleID *int,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Names:         names,
		Username:      uname,
		Email:         email,
		RoleID:        roleID,
		ResearchLines: []string{},
		CreatedAt:     tstamp,
		UpdatedAt:     tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}
