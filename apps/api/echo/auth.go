package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
	revokedKey      = "session:revoked:"
	tokenAudience   = "investiga"
)

// Claims represents the authorization claims transmitted via a JWT.
// Subject holds the user ID and ID a unique token ID used for revocation.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Email        string `json:"email,omitempty"`
	RoleID       *int   `json:"roleId,omitempty"`
}

func NewClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Email:        usr.Email,
		RoleID:       usr.RoleID,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextToken(ctx echo.Context) (*jwt.Token, *Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return token, claims, nil
		}
	}
	return nil, nil, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

type authenticator struct {
	conf     *core.Config
	cache    core.Cache
	users    *user.Service
	validate *validator.Validate
}

func newAuthenticator(deps *Deps) *authenticator {
	return &authenticator{
		conf:     deps.Conf,
		cache:    deps.Cache,
		users:    deps.UserSvc,
		validate: deps.Validate,
	}
}

// parseToken only accepts session tokens issued by the app, other tokens signed with the same key are invalid.
func (a *authenticator) parseToken(_ echo.Context, auth string) (interface{}, error) {
	token, err := jwt.ParseWithClaims(
		auth, new(Claims),
		func(*jwt.Token) (interface{}, error) { return []byte(a.conf.SecretKey), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(a.conf.AppName),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// jwt parses the bearer token, a missing or invalid one is a 401.
func (a *authenticator) jwt() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:     contextTokenKey,
		ParseTokenFunc: a.parseToken,
		ErrorHandler: func(ctx echo.Context, err error) error {
			if ctx.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return errUnauthorized
			}
			return errInvalidToken
		},
	})
}

// session resolves the user of the token from storage, so that every request sees their current role.
func (a *authenticator) session(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		_, claims, err := getContextToken(ctx)
		if err != nil {
			return err
		}
		reqCtx := ctx.Request().Context()

		if _, err = a.cache.Get(reqCtx, revokedKey+claims.ID); err == nil {
			return errInvalidToken
		} else if errors.Cause(err) != core.ErrCacheMiss {
			return errors.Wrap(err, "checking token revocation")
		}

		id, err := strconv.Atoi(claims.Subject)
		if err != nil {
			return errInvalidToken
		}
		usr, err := a.users.Get(reqCtx, id)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return errInvalidToken
			}
			return errors.Wrap(err, "finding session user")
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

func (a *authenticator) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(a.validate); err != nil {
		return err
	}

	usr, err := a.users.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		if errors.Cause(err) == user.ErrInvalidCreds {
			return err
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(a.conf, NewClaims(a.conf, usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

func (a *authenticator) logout(ctx echo.Context) error {
	_, claims, err := getContextToken(ctx)
	if err != nil {
		return err
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if left := time.Until(claims.ExpiresAt.Time); left > 0 {
			ttl = left
		}
	}
	if err = a.cache.Set(ctx.Request().Context(), revokedKey+claims.ID, "1", ttl); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (a *authenticator) refreshToken(ctx echo.Context) error {
	_, claims, err := getContextToken(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return errRefreshExpired
	}

	token, err := GenerateToken(a.conf, NewClaims(a.conf, usr, claims.OrigIssuedAt))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

// getSession returns the whole session context in one call.
func (a *authenticator) getSession(ctx echo.Context) error {
	token, _, err := getContextToken(ctx)
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	resp := SessionResponse{Token: token.Raw, RoleID: usr.RoleID, User: usr}
	if usr.RoleID != nil {
		resp.Role = role.Names[*usr.RoleID]
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (a *authenticator) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(a.validate); err != nil {
		return err
	}

	if err := a.users.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (a *authenticator) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(a.validate); err != nil {
		return err
	}

	if err := a.users.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func registerAuthAPI(v1, authed *echo.Group, a *authenticator) {
	// TODO: rate limit `/login` & `/password-reset`
	v1.POST("/auth/login", a.login)
	v1.POST("/auth/password-reset", a.resetPassword)
	v1.POST("/auth/password-reset-confirm", a.confirmPasswordReset)

	authed.GET("/auth/session", a.getSession)
	authed.POST("/auth/logout", a.logout)
	authed.POST("/auth/token-refresh", a.refreshToken)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	SessionResponse struct {
		Token  string    `json:"token"`
		RoleID *int      `json:"roleId"`
		Role   string    `json:"role"`
		User   user.User `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
