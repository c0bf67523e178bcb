// services/auth.go
package services

import (
	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"

	"github.com/riddlehouse/riddle_api/shared"
)

// AuthService guards the ingest and progress endpoints. Every request
// from the browser extension carries a bearer token identifying the
// player; handlers read the resolved username from locals.
type AuthService struct {
	context.DefaultService

	jwtSvc *JWTService
}

const AUTH_SVC = "auth_svc"

func (svc AuthService) Id() string {
	return AUTH_SVC
}

func (svc *AuthService) Start() error {
	svc.jwtSvc = svc.Service(JWT_SVC).(*JWTService)
	return nil
}

func (svc *AuthService) RequiredAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")

		tokenString, err := svc.jwtSvc.ExtractTokenFromHeader(authHeader)
		if err != nil {
			return shared.NewUnauthorizedError("missing or malformed authorization header")
		}

		username, err := svc.jwtSvc.VerifyJWTToken(tokenString)
		if err != nil {
			return shared.NewUnauthorizedError("invalid or expired token")
		}

		c.Locals(shared.Username, username)
		return c.Next()
	}
}
