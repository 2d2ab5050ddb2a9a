package controllers

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"finscholars/backend/learning"
	"finscholars/backend/tts"
	"finscholars/backend/utils"
)

// Synthesizer turns plain text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type TTSController struct {
	Learning *learning.Service
	TTS      Synthesizer
	Log      *utils.Logger
}

func NewTTSController(svc *learning.Service, synth Synthesizer, log *utils.Logger) *TTSController {
	return &TTSController{Learning: svc, TTS: synth, Log: log}
}

// GetAudio godoc
// @Summary Lesson audio
// @Description Synthesizes the module lesson and returns it as an attachment
// @Tags tts
// @Produce audio/mpeg
// @Param id path string true "Module ID"
// @Param format query string false "mp3, ogg or wav" default(mp3)
// @Success 200 {file} binary
// @Failure 400 {object} utils.ErrorResponse
// @Failure 404 {object} utils.ErrorResponse
// @Failure 500 {object} utils.ErrorResponse
// @Security ApiKeyAuth
// @Router /tts/{id} [get]
func (tc *TTSController) GetAudio(c *fiber.Ctx) error {
	format, audio, err := tc.synthesize(c)
	if err != nil {
		return err
	}
	if audio == nil {
		return nil
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Attachment(fmt.Sprintf("module_%s.%s", c.Params("id"), format))
	return c.Send(audio)
}

// StreamAudio writes the same audio as a stream. The payload arrives from the
// TTS API in one piece, so it is sent as a single chunk.
func (tc *TTSController) StreamAudio(c *fiber.Ctx) error {
	format, audio, err := tc.synthesize(c)
	if err != nil {
		return err
	}
	if audio == nil {
		return nil
	}
	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.SendStream(bytes.NewReader(audio), len(audio))
}

// synthesize writes an error response itself and returns nil audio when the
// request cannot be served.
func (tc *TTSController) synthesize(c *fiber.Ctx) (tts.Format, []byte, error) {
	format, err := tts.ParseFormat(c.Query("format"))
	if err != nil {
		return "", nil, fail(c, err)
	}
	m, err := tc.Learning.ModuleContent(c.UserContext(), c.Params("id"))
	if err != nil {
		return "", nil, fail(c, err)
	}

	audio, err := tc.TTS.Synthesize(c.UserContext(), tts.StripTags(m.Content))
	if err != nil {
		tc.Log.Error("text-to-speech failed", "module_id", m.ID, "error", err)
	}
	switch {
	case err == nil:
		return format, audio, nil
	case errors.Is(err, tts.ErrMissingAPIKey):
		return "", nil, utils.InternalServerError(c, "Text-to-speech API key not configured. Set HUGGINGFACE_API_KEY.")
	case errors.Is(err, tts.ErrAPI):
		return "", nil, utils.InternalServerError(c, "Error from text-to-speech API. Check server logs for details.")
	case errors.Is(err, tts.ErrConnection):
		return "", nil, utils.InternalServerError(c, "Connection error when calling text-to-speech API.")
	}
	return "", nil, fail(c, err)
}
