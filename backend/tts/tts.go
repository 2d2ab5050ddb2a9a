// Package tts turns lesson HTML into audio through a hosted text-to-speech model
// and proxies general inference calls to the same model host.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Failure causes a caller must tell apart from a model reply.
var (
	ErrMissingAPIKey = errors.New("model API key not configured")
	ErrAPI           = errors.New("model API returned an error")
	ErrConnection    = errors.New("could not reach model API")
)

// APIError is a non-200 reply. It matches ErrAPI under errors.Is.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", ErrAPI, e.Status, e.Body)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

var ErrUnsupportedFormat = errors.New("format must be one of mp3, ogg, wav")

type Format string

const (
	FormatMP3 Format = "mp3"
	FormatOGG Format = "ogg"
	FormatWAV Format = "wav"
)

var contentTypes = map[Format]string{
	FormatMP3: "audio/mpeg",
	FormatOGG: "audio/ogg",
	FormatWAV: "audio/wav",
}

// ParseFormat defaults an empty value to mp3.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatMP3, nil
	}
	f := Format(strings.ToLower(s))
	if _, ok := contentTypes[f]; !ok {
		return "", ErrUnsupportedFormat
	}
	return f, nil
}

func (f Format) ContentType() string {
	return contentTypes[f]
}

// StripTags removes h1 and p tags only; any other markup is left in place.
func StripTags(html string) string {
	return strings.NewReplacer(
		"<h1>", "",
		"</h1>", ". ",
		"<p>", "",
		"</p>", " ",
	).Replace(html)
}

type Client struct {
	apiKey    string
	url       string
	modelsURL string
	http      *http.Client
}

func NewClient(apiKey, url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{apiKey: apiKey, url: url, modelsURL: DefaultModelsURL, http: &http.Client{Timeout: timeout}}
}

// Synthesize posts text to the inference endpoint and returns the audio bytes.
// Errors wrap ErrMissingAPIKey, ErrAPI or ErrConnection.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return c.post(ctx, c.url, map[string]string{"inputs": text})
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrConnection, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: truncate(out, 200)}
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
