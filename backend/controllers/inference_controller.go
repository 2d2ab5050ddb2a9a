package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"

	"finscholars/backend/tts"
	"finscholars/backend/utils"
)

// Inferencer runs a hosted model by id.
type Inferencer interface {
	Inference(ctx context.Context, modelID string, inputs json.RawMessage, parameters map[string]any) (json.RawMessage, error)
}

type InferenceController struct {
	Models Inferencer
	Log    *utils.Logger
}

func NewInferenceController(models Inferencer, log *utils.Logger) *InferenceController {
	return &InferenceController{Models: models, Log: log}
}

type InferenceRequest struct {
	ModelID    string          `json:"model_id" example:"distilbert/distilbert-base-uncased-finetuned-sst-2-english"`
	Inputs     json.RawMessage `json:"inputs" swaggertype:"object"`
	Parameters map[string]any  `json:"parameters"`
}

// RunInference godoc
// @Summary Run a hosted model
// @Description Forwards inputs and parameters to the model host and returns its JSON reply
// @Tags models
// @Accept json
// @Produce json
// @Param input body InferenceRequest true "Model id, inputs and optional parameters"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /model/inference [post]
func (ic *InferenceController) RunInference(c *fiber.Ctx) error {
	var input InferenceRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Missing request data")
	}
	if input.ModelID == "" {
		return utils.BadRequest(c, "Missing model_id parameter")
	}
	inputs := bytes.TrimSpace(input.Inputs)
	if len(inputs) == 0 || bytes.Equal(inputs, []byte("null")) {
		return utils.BadRequest(c, "Missing inputs parameter")
	}

	result, err := ic.Models.Inference(c.UserContext(), input.ModelID, inputs, input.Parameters)
	if err != nil {
		ic.Log.Error("model inference failed", "model_id", input.ModelID, "error", err)
		var apiErr *tts.APIError
		switch {
		case errors.Is(err, tts.ErrInvalidModelID):
			return fail(c, err)
		case errors.As(err, &apiErr):
			return utils.Error(c, fiber.StatusInternalServerError, err, apiErr.Body)
		case errors.Is(err, tts.ErrMissingAPIKey):
			return utils.InternalServerError(c, "Missing Hugging Face API key. Set HUGGINGFACE_API_KEY.")
		case errors.Is(err, tts.ErrConnection):
			return utils.InternalServerError(c, "Connection error when calling the model API.")
		}
		return fail(c, err)
	}
	return utils.OK(c, fiber.Map{"result": result})
}
