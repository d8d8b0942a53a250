package storagesvc

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var ErrInvalidToken = core.NewError(core.KindNotFound, "file link is invalid or expired")

type fileClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// signer issues the tokens of download links, the storage key is their subject.
type signer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
}

func newSigner(conf *core.Config) signer {
	return signer{
		secret:  []byte(conf.SecretKey),
		baseURL: strings.TrimSuffix(conf.Storage.BaseURL, "/"),
		ttl:     conf.Storage.URLTTL,
	}
}

func (s signer) url(key, name string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, fileClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   key,
			Audience:  jwt.ClaimStrings{"files"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "signing file token")
	}
	return s.baseURL + "/" + signed, nil
}

func (s signer) verify(tokenStr string) (string, string, error) {
	var claims fileClaims
	_, err := jwt.ParseWithClaims(
		tokenStr, &claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience("files"),
	)
	if err != nil || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Name, nil
}
