package handler

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/rl1809/pizzeria/internal/core/domain"
)

const tokenContextKey = "user"

// Claims carry the caller identity issued by the authentication service. The
// subject is the customer or staff id.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for id. Used by tooling and tests; production
// tokens come from the authentication service.
func IssueToken(secret []byte, id string, role domain.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func jwtMiddleware(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: secret,
		ContextKey: tokenContextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, Outcome{Code: domain.CodeForbidden, Message: "missing or invalid token"})
		},
	})
}

func actorFrom(c echo.Context) domain.Actor {
	token, ok := c.Get(tokenContextKey).(*jwt.Token)
	if !ok {
		return domain.Actor{}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return domain.Actor{}
	}
	role := claims.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	return domain.Actor{ID: claims.Subject, Role: role}
}

func requireStaff(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !actorFrom(c).Role.IsStaff() {
			return c.JSON(Failure(domain.ErrForbidden))
		}
		return next(c)
	}
}
