package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/feira/core"
	"github.com/trezcool/feira/core/evaluator"
	"github.com/trezcool/feira/core/user"
)

// Token kinds
const (
	kindUser      = "user"
	kindEvaluator = "evaluator"
)

const (
	contextTokenKey     = "token"
	contextUserKey      = "user"
	contextEvaluatorKey = "evaluator"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	Kind         string   `json:"kind"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	SchoolID     string   `json:"school_id,omitempty"`
	FairID       string   `json:"fair_id,omitempty"` // evaluators only
	Roles        []string `json:"roles,omitempty"`
}

func (c Claims) IsEvaluator() bool {
	return c.Kind == kindEvaluator
}

func (c Claims) Identity() evaluator.Identity {
	return evaluator.Identity{EvaluatorID: c.Subject, SchoolID: c.SchoolID, FairID: c.FairID}
}

// authenticator issues and reads the JWTs of admin users and evaluators.
type authenticator struct {
	conf      *core.Config
	jwtConfig middleware.JWTConfig
}

func newAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{
		conf: conf,
		jwtConfig: middleware.JWTConfig{
			SigningKey:    []byte(conf.SecretKey),
			SigningMethod: middleware.AlgorithmHS256,
			ContextKey:    contextTokenKey,
			Claims:        new(Claims),
		},
	}
}

func (a *authenticator) standardClaims(subject string, now time.Time, delta time.Duration) jwt.StandardClaims {
	return jwt.StandardClaims{
		Issuer:    a.conf.AppName,
		Subject:   subject,
		Audience:  "Feira",
		ExpiresAt: now.Add(delta).Unix(),
		IssuedAt:  now.Unix(),
	}
}

func (a *authenticator) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}
	return &Claims{
		StandardClaims: a.standardClaims(usr.ID, now, a.conf.Server.JWTExpirationDelta),
		OrigIssuedAt:   oriat,
		Kind:           kindUser,
		Username:       usr.Username,
		Email:          usr.Email,
		SchoolID:       usr.SchoolID,
		Roles:          usr.Roles,
	}
}

// EvaluatorClaims are not refreshable: an evaluation session lasts one JWTRefreshExpirationDelta at most.
func (a *authenticator) EvaluatorClaims(e evaluator.Evaluator) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: a.standardClaims(e.ID, now, a.conf.Server.JWTRefreshExpirationDelta),
		OrigIssuedAt:   now.Unix(),
		Kind:           kindEvaluator,
		Email:          e.Email,
		SchoolID:       e.SchoolID,
		FairID:         e.FairID,
	}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (a *authenticator) GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(a.jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(a.jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	if claims.IsEvaluator() {
		return user.User{}, errHttpForbidden
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func getContextEvaluator(ctx echo.Context) (evaluator.Evaluator, error) {
	if e, ok := ctx.Get(contextEvaluatorKey).(evaluator.Evaluator); ok {
		return e, nil
	}
	return evaluator.Evaluator{}, errUnauthorized
}

func (a *authenticator) refreshToken(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	if claims.IsEvaluator() {
		return "", errHttpForbidden
	}

	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := a.GenerateToken(a.UserClaims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
