package controllers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"finscholars/backend/learning"
	"finscholars/backend/middleware"
	"finscholars/backend/models"
	"finscholars/backend/utils"
)

type ModuleController struct {
	Learning *learning.Service
}

func NewModuleController(svc *learning.Service) *ModuleController {
	return &ModuleController{Learning: svc}
}

type GenerateModuleRequest struct {
	UserID string `json:"user_id"`
	Topic  string `json:"topic" example:"Budgeting"`
	Level  string `json:"level" example:"Basic" enums:"Basic,Moderate,Advanced"`
}

type SubmitAnswerRequest struct {
	UserID       string          `json:"user_id"`
	ModuleID     string          `json:"module_id"`
	QuestionID   string          `json:"question_id"`
	UserAnswer   json.RawMessage `json:"user_answer"`
	QuestionType string          `json:"question_type" enums:"mcq,free_text"`
	IsFinal      bool            `json:"is_final_question"`
}

// GenerateModule godoc
// @Summary Generate a lesson module
// @Description Generates lesson HTML for a topic and level and queues quiz generation
// @Tags modules
// @Accept json
// @Produce json
// @Param input body GenerateModuleRequest true "Topic and level"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 403 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /generate-module [post]
func (mc *ModuleController) GenerateModule(c *fiber.Ctx) error {
	var input GenerateModuleRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	userID := middleware.UserID(c)
	if foreignUserID(input.UserID, userID) {
		return utils.Forbidden(c, "user_id does not match the authenticated user")
	}
	if input.Level == "" {
		input.Level = string(models.LevelBasic)
	}

	res, err := mc.Learning.GenerateModule(c.UserContext(), userID, input.Topic, input.Level)
	if err != nil {
		return fail(c, err)
	}
	message := "Module generated successfully"
	if res.Existing {
		message = "Module already exists"
	}
	return utils.OK(c, fiber.Map{
		"message":     message,
		"module_id":   res.Module.ID,
		"quiz_status": res.QuizStatus,
	})
}

// UpdateInterests godoc
// @Summary Add interests
// @Description Adds interests and generates a Basic module for each new one
// @Tags modules
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /update-interests [post]
func (mc *ModuleController) UpdateInterests(c *fiber.Ctx) error {
	var input struct {
		UserID       string   `json:"user_id"`
		NewInterests []string `json:"new_interests"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	userID := middleware.UserID(c)
	if foreignUserID(input.UserID, userID) {
		return utils.Forbidden(c, "user_id does not match the authenticated user")
	}
	if len(input.NewInterests) == 0 {
		return utils.BadRequest(c, "Missing or invalid new_interests parameter")
	}

	ids, err := mc.Learning.UpdateInterests(c.UserContext(), userID, input.NewInterests)
	if err != nil {
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{
		"message":    "Generated modules for new interests",
		"module_ids": ids,
	})
}

// QuizStatus reports the quiz generation state of a module.
func (mc *ModuleController) QuizStatus(c *fiber.Ctx) error {
	state, err := mc.Learning.QuizStatus(c.UserContext(), c.Params("module_id"))
	if err != nil {
		return fail(c, err)
	}
	body := fiber.Map{"module_id": state.ModuleID, "status": state.Status}
	if state.Job != nil && state.Job.Error != "" {
		body["error"] = state.Job.Error
	}
	return utils.OK(c, body)
}

// GetModuleContent godoc
// @Summary Module content
// @Description Returns the stored lesson of a module
// @Tags modules
// @Produce json
// @Param id path string true "Module ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /module-content/{id} [get]
func (mc *ModuleController) GetModuleContent(c *fiber.Ctx) error {
	m, err := mc.Learning.ModuleContent(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{"module": fiber.Map{
		"id":         m.ID,
		"topic":      m.Topic,
		"level":      m.Level,
		"content":    m.Content,
		"has_quiz":   m.HasQuiz,
		"created_at": m.CreatedAt,
	}})
}

func (mc *ModuleController) GetModuleQuiz(c *fiber.Ctx) error {
	questions, err := mc.Learning.ModuleQuiz(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{"module_id": c.Params("id"), "questions": questions})
}

// SubmitAnswer godoc
// @Summary Submit a quiz answer
// @Description Grades one answer; on the final question returns the averaged result and any unlocked module
// @Tags modules
// @Accept json
// @Produce json
// @Param input body SubmitAnswerRequest true "Answer"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /submit-answer [post]
func (mc *ModuleController) SubmitAnswer(c *fiber.Ctx) error {
	var input SubmitAnswerRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	userID := middleware.UserID(c)
	if foreignUserID(input.UserID, userID) {
		return utils.Forbidden(c, "user_id does not match the authenticated user")
	}
	if input.ModuleID == "" || input.QuestionID == "" || len(input.UserAnswer) == 0 {
		return utils.BadRequest(c, "Missing required parameters: module_id, question_id and user_answer")
	}

	grade, err := mc.Learning.SubmitAnswer(c.UserContext(), learning.Submission{
		UserID:       userID,
		ModuleID:     input.ModuleID,
		QuestionID:   input.QuestionID,
		Answer:       input.UserAnswer,
		QuestionType: input.QuestionType,
		IsFinal:      input.IsFinal,
	})
	if err != nil {
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{
		"question_id":  input.QuestionID,
		"score":        grade.Score,
		"feedback":     grade.Feedback,
		"graded_by":    grade.GradedBy,
		"fallback":     grade.Fallback,
		"final_result": grade.FinalResult,
	})
}
