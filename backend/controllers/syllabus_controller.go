package controllers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"finscholars/backend/middleware"
	"finscholars/backend/utils"
)

const maxSyllabusBytes = 1 << 20

// UploadSyllabus godoc
// @Summary Upload a syllabus
// @Description Segments a plain-text syllabus file into units and generates a Basic module per unit
// @Tags modules
// @Accept mpfd
// @Produce json
// @Param file formData file true "Syllabus as UTF-8 text"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /user/upload-syllabus [post]
func (mc *ModuleController) UploadSyllabus(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return utils.BadRequest(c, "No file part")
	}
	if header.Filename == "" {
		return utils.BadRequest(c, "No selected file")
	}
	if header.Size > maxSyllabusBytes {
		return utils.BadRequest(c, "Syllabus file must be at most 1 MB")
	}
	f, err := header.Open()
	if err != nil {
		return utils.Fail(c, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, maxSyllabusBytes+1))
	if err != nil {
		return utils.Fail(c, err)
	}
	if len(raw) > maxSyllabusBytes {
		return utils.BadRequest(c, "Syllabus file must be at most 1 MB")
	}
	return mc.processSyllabus(c, string(raw))
}

// ProcessSyllabus godoc
// @Summary Process syllabus text
// @Description Same as the upload, with the text sent in the JSON body
// @Tags modules
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /process-syllabus [post]
func (mc *ModuleController) ProcessSyllabus(c *fiber.Ctx) error {
	var input struct {
		UserID       string `json:"user_id"`
		SyllabusText string `json:"syllabus_text"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Missing request data")
	}
	if foreignUserID(input.UserID, middleware.UserID(c)) {
		return utils.Forbidden(c, "user_id does not match the authenticated user")
	}
	return mc.processSyllabus(c, input.SyllabusText)
}

func (mc *ModuleController) processSyllabus(c *fiber.Ctx, text string) error {
	res, err := mc.Learning.ProcessSyllabus(c.UserContext(), middleware.UserID(c), text)
	if err != nil {
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{
		"message":         "Syllabus processed successfully",
		"modules_created": len(res.ModuleIDs),
		"module_ids":      res.ModuleIDs,
		"units":           res.Units,
	})
}
