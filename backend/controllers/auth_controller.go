package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"finscholars/backend/auth"
	"finscholars/backend/config"
	"finscholars/backend/middleware"
	"finscholars/backend/sessions"
	"finscholars/backend/utils"
)

type AuthController struct {
	Auth     *auth.Manager
	Sessions *sessions.Manager
	Cfg      *config.Config
}

func NewAuthController(a *auth.Manager, sm *sessions.Manager, cfg *config.Config) *AuthController {
	return &AuthController{Auth: a, Sessions: sm, Cfg: cfg}
}

type SignupRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"secret123" minLength:"6"`
	UserData struct {
		DisplayName string `json:"display_name"`
	} `json:"user_data"`
}

type LoginRequest struct {
	Email    string `json:"email" example:"user@example.com"`
	Password string `json:"password" example:"secret123"`
}

// Signup godoc
// @Summary Register a new user
// @Description Creates the account, opens a session and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param input body SignupRequest true "Signup data"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Router /user/signup [post]
func (ac *AuthController) Signup(c *fiber.Ctx) error {
	var input SignupRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Email == "" || input.Password == "" {
		return utils.BadRequest(c, "Missing email or password")
	}

	res, err := ac.Auth.Register(c.UserContext(), input.Email, input.Password, input.UserData.DisplayName)
	if err != nil {
		return fail(c, err)
	}
	return ac.opened(c, res)
}

// Login godoc
// @Summary User login
// @Description Verifies credentials, opens a session and returns a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param input body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Router /user/login [post]
func (ac *AuthController) Login(c *fiber.Ctx) error {
	var input LoginRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Email == "" || input.Password == "" {
		return utils.BadRequest(c, "Missing email or password")
	}

	res, err := ac.Auth.Login(c.UserContext(), input.Email, input.Password)
	if err != nil {
		return fail(c, err)
	}
	return ac.opened(c, res)
}

func (ac *AuthController) opened(c *fiber.Ctx, res *auth.Result) error {
	ac.Sessions.UpdateMetadata(res.SessionID, c.IP(), c.Get(fiber.HeaderUserAgent))
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    res.SessionID,
		Path:     "/",
		Expires:  time.Now().Add(ac.Cfg.SessionCookieTTL),
		HTTPOnly: true,
		Secure:   ac.Cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return utils.OK(c, fiber.Map{
		"user_id":     res.User.ID(),
		"session_id":  res.SessionID,
		"token":       res.Token,
		"is_new_user": res.IsNewUser,
	})
}

// Logout godoc
// @Summary Log out
// @Description Ends the cookie session, if any
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Security ApiKeyAuth
// @Router /user/logout [post]
func (ac *AuthController) Logout(c *fiber.Ctx) error {
	if sid := middleware.SessionID(c); sid != "" {
		ac.Auth.Logout(sid)
	}
	c.ClearCookie(middleware.SessionCookie)
	return utils.OK(c, fiber.Map{})
}

// UpdatePassword godoc
// @Summary Change password
// @Description Changes the password of the user owning the current session
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/password [post]
func (ac *AuthController) UpdatePassword(c *fiber.Ctx) error {
	var input struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if err := ac.Auth.UpdatePassword(c.UserContext(), middleware.SessionID(c), input.Password); err != nil {
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{"message": "Password updated"})
}

// RefreshSession extends the cookie session and returns it.
func (ac *AuthController) RefreshSession(c *fiber.Ctx) error {
	sid := middleware.SessionID(c)
	if !ac.Auth.RefreshSession(sid) {
		return fail(c, auth.ErrNoSession)
	}
	session, _ := ac.Sessions.Get(sid)
	return utils.OK(c, fiber.Map{"session": session})
}

// ListSessions lists the caller's open sessions.
func (ac *AuthController) ListSessions(c *fiber.Ctx) error {
	return utils.OK(c, fiber.Map{"sessions": ac.Sessions.UserSessions(middleware.UserID(c))})
}

// ResetPassword godoc
// @Summary Request a password reset
// @Description Sends a reset token to the address. The reply is the same whether or not the account exists.
// @Tags auth
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Router /user/reset-password [post]
func (ac *AuthController) ResetPassword(c *fiber.Ctx) error {
	var input struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Email == "" {
		return utils.BadRequest(c, "Missing email")
	}
	if err := ac.Auth.ResetPassword(c.UserContext(), input.Email); err != nil {
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{"message": "If the address is registered, a reset link has been sent"})
}

// ConfirmPasswordReset sets a new password from a reset token.
func (ac *AuthController) ConfirmPasswordReset(c *fiber.Ctx) error {
	var input struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Token == "" {
		return utils.BadRequest(c, "Missing token")
	}
	if err := ac.Auth.ConfirmPasswordReset(c.UserContext(), input.Token, input.Password); err != nil {
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{"message": "Password updated"})
}
