package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"finscholars/backend/auth"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

const (
	SessionCookie = "session_id"

	localUser      = "user"
	localUserID    = "user_id"
	localSessionID = "session_id"
)

// Authenticator resolves bearer tokens and session ids to users.
type Authenticator interface {
	VerifyToken(ctx context.Context, token string) (*users.User, error)
	UserFromSession(ctx context.Context, sessionID string) (*users.User, error)
}

// AuthMiddleware accepts a bearer token or a session_id cookie and stores the
// resolved user in the context locals. Anything else is rejected with 401.
func AuthMiddleware(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if sid := c.Cookies(SessionCookie); sid != "" {
			c.Locals(localSessionID, sid)
		}

		if token := utils.BearerToken(c); token != "" {
			user, err := a.VerifyToken(ctx, token)
			if err == nil {
				return next(c, user)
			}
			if !errors.Is(err, auth.ErrInvalidToken) {
				return utils.Fail(c, err)
			}
		}

		if sid := SessionID(c); sid != "" {
			user, err := a.UserFromSession(ctx, sid)
			if err == nil {
				return next(c, user)
			}
			if !errors.Is(err, auth.ErrNoSession) && !errors.Is(err, users.ErrNotFound) {
				return utils.Fail(c, err)
			}
		}

		return utils.Unauthorized(c, "Authentication required")
	}
}

func next(c *fiber.Ctx, user *users.User) error {
	c.Locals(localUser, user)
	c.Locals(localUserID, user.ID())
	return c.Next()
}

// CurrentUser returns the user set by AuthMiddleware.
func CurrentUser(c *fiber.Ctx) *users.User {
	u, _ := c.Locals(localUser).(*users.User)
	return u
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// SessionID returns the request's session cookie, if any.
func SessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals(localSessionID).(string)
	if sid == "" {
		sid = c.Cookies(SessionCookie)
	}
	return sid
}
