package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
)

const (
	contextTokenKey = "userToken"
	contextActorKey = "actor"
)

// Claims represents the authorization claims transmitted via a JWT.
// The subject is the actor id.
type Claims struct {
	jwt.StandardClaims
	Name       string `json:"name,omitempty"`
	Role       string `json:"role" validate:"required,role"`
	CenterCode string `json:"center_code,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// NewClaims returns the claims of a token issued to actor.
func NewClaims(actor core.Actor, conf *core.Config) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.Server.JWTIssuer,
			Subject:   actor.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:       actor.Name,
		Role:       string(actor.Role),
		CenterCode: actor.CenterCode,
	}
}

// Validate checks the application claims carried by a verified token.
func (c Claims) Validate(validate *validator.Validate) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Subject == "" {
		return errors.New("missing subject")
	}
	return nil
}

// Actor converts the claims to a core.Actor; the role must be known.
func (c Claims) Actor() (core.Actor, error) {
	role, err := core.ParseRole(c.Role)
	if err != nil {
		return core.Actor{}, err
	}
	if c.Subject == "" {
		return core.Actor{}, errors.New("missing subject")
	}
	actor := core.Actor{ID: c.Subject, Name: c.Name, Role: role, CenterCode: core.CleanString(c.CenterCode)}
	if actor.IsAdmin() {
		actor.CenterCode = ""
	}
	return actor, nil
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(secretKey))
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

func contextActor(ctx echo.Context) (core.Actor, error) {
	if actor, ok := ctx.Get(contextActorKey).(core.Actor); ok {
		return actor, nil
	}
	return core.Actor{}, errUnauthorized
}
