package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const DefaultModelsURL = "https://api-inference.huggingface.co/models"

var ErrInvalidModelID = errors.New("model_id must look like owner/name")

// Model ids are one or two path segments; anything else could escape the models path.
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+(/[A-Za-z0-9_.-]+)?$`)

// WithModelsURL points Inference at a different model host.
func (c *Client) WithModelsURL(url string) *Client {
	if url != "" {
		c.modelsURL = strings.TrimRight(url, "/")
	}
	return c
}

// Inference runs a hosted model and returns its JSON reply untouched.
// parameters is sent only when non-empty.
func (c *Client) Inference(ctx context.Context, modelID string, inputs json.RawMessage, parameters map[string]any) (json.RawMessage, error) {
	if !modelIDPattern.MatchString(modelID) || strings.Contains(modelID, "..") {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidModelID, modelID)
	}
	body := map[string]any{"inputs": inputs}
	if len(parameters) > 0 {
		body["parameters"] = parameters
	}
	out, err := c.post(ctx, c.modelsURL+"/"+modelID, body)
	if err != nil {
		return nil, err
	}
	out = bytes.TrimSpace(out)
	if !json.Valid(out) {
		return nil, &APIError{Status: 200, Body: "reply is not JSON: " + truncate(out, 200)}
	}
	return json.RawMessage(out), nil
}
