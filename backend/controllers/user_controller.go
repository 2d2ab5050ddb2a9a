package controllers

import (
	"github.com/gofiber/fiber/v2"

	"finscholars/backend/middleware"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

type UserController struct {
	Users *users.Manager
}

func NewUserController(um *users.Manager) *UserController {
	return &UserController{Users: um}
}

// GetProfile godoc
// @Summary Get current user
// @Description Returns the authenticated user's profile, modules, badges and recent focus sessions
// @Tags users
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/me [get]
func (uc *UserController) GetProfile(c *fiber.Ctx) error {
	return utils.OK(c, fiber.Map{"user": middleware.CurrentUser(c).Profile()})
}

// UpdateInterests godoc
// @Summary Replace interests
// @Description Replaces the user's interest list
// @Tags users
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/interests [post]
func (uc *UserController) UpdateInterests(c *fiber.Ctx) error {
	var input struct {
		Interests []string `json:"interests"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.Interests == nil {
		return utils.BadRequest(c, "Missing interests")
	}

	user := middleware.CurrentUser(c)
	if err := user.UpdateInterests(c.UserContext(), input.Interests); err != nil {
		return fail(c, err)
	}
	uc.Users.SaveToCache(c.UserContext(), user)
	return utils.OK(c, fiber.Map{"user": user.Profile()})
}

// UpdateSettings merges the posted keys into the user's settings.
func (uc *UserController) UpdateSettings(c *fiber.Ctx) error {
	var input map[string]any
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	user := middleware.CurrentUser(c)
	settings, err := user.UpdateSettings(c.UserContext(), input)
	if err != nil {
		return fail(c, err)
	}
	uc.Users.SaveToCache(c.UserContext(), user)
	return utils.OK(c, fiber.Map{"settings": settings})
}

func (uc *UserController) StartFocus(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	session, err := user.StartFocusSession(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	uc.Users.SaveToCache(c.UserContext(), user)
	return utils.OK(c, fiber.Map{"focus_session": session})
}

func (uc *UserController) EndFocus(c *fiber.Ctx) error {
	var input struct {
		SessionID string `json:"focus_session_id"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.BadRequest(c, "Cannot parse JSON")
		}
	}

	user := middleware.CurrentUser(c)
	session, err := user.EndFocusSession(c.UserContext(), input.SessionID)
	if err != nil {
		return fail(c, err)
	}
	uc.Users.SaveToCache(c.UserContext(), user)
	return utils.OK(c, fiber.Map{"focus_session": session})
}
