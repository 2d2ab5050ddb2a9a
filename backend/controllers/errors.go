package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"finscholars/backend/auth"
	"finscholars/backend/learning"
	"finscholars/backend/sessions"
	"finscholars/backend/tts"
	"finscholars/backend/users"
	"finscholars/backend/utils"
)

// fail maps domain errors onto HTTP statuses and writes the error body.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, learning.ErrInvalidLevel),
		errors.Is(err, learning.ErrMissingTopic),
		errors.Is(err, learning.ErrInvalidQuestionType),
		errors.Is(err, learning.ErrInvalidAnswer),
		errors.Is(err, learning.ErrEmptySyllabus),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, users.ErrFocusActive),
		errors.Is(err, users.ErrNoFocusSession),
		errors.Is(err, tts.ErrUnsupportedFormat),
		errors.Is(err, tts.ErrInvalidModelID):
		return utils.Fail(c, utils.ErrBadRequest(err))
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrNoSession),
		errors.Is(err, sessions.ErrNotFound):
		return utils.Fail(c, utils.ErrUnauthorized(err))
	case errors.Is(err, learning.ErrModuleNotFound),
		errors.Is(err, learning.ErrQuizNotFound),
		errors.Is(err, learning.ErrQuestionNotFound),
		errors.Is(err, users.ErrNotFound):
		return utils.Fail(c, utils.ErrNotFound(err))
	}
	return utils.Fail(c, err)
}

// foreignUserID reports whether a user_id sent in a body names someone other
// than the authenticated user. An empty body value means the caller.
func foreignUserID(bodyUserID, authUserID string) bool {
	return bodyUserID != "" && bodyUserID != authUserID
}
