package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripTags(t *testing.T) {
	got := StripTags("<h1>Budgeting</h1><p>Plan ahead.</p><h2>Why</h2>")
	assert.Equal(t, "Budgeting. Plan ahead. <h2>Why</h2>", got)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatMP3, f)
	assert.Equal(t, "audio/mpeg", f.ContentType())

	f, err = ParseFormat("OGG")
	require.NoError(t, err)
	assert.Equal(t, "audio/ogg", f.ContentType())

	_, err = ParseFormat("flac")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Budgeting. ", body["inputs"])
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	audio, err := NewClient("hf-key", srv.URL, time.Second).Synthesize(context.Background(), "Budgeting. ")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
}

func TestSynthesize_FailureCauses(t *testing.T) {
	_, err := NewClient("", "http://unused", time.Second).Synthesize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	_, err = NewClient("k", srv.URL, time.Second).Synthesize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "503")

	url := srv.URL
	srv.Close()
	_, err = NewClient("k", url, time.Second).Synthesize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrConnection)
}

func TestInference(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/distilbert/sst-2", r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `"Saving is great"`, string(body["inputs"]))
		assert.JSONEq(t, `{"top_k":1}`, string(body["parameters"]))
		_, _ = w.Write([]byte(`[{"label":"POSITIVE","score":0.99}]`))
	}))
	defer srv.Close()

	c := NewClient("hf-key", "http://unused", time.Second).WithModelsURL(srv.URL + "/models/")
	out, err := c.Inference(context.Background(), "distilbert/sst-2", json.RawMessage(`"Saving is great"`), map[string]any{"top_k": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"label":"POSITIVE","score":0.99}]`, string(out))
}

func TestInference_OmitsEmptyParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, ok := body["parameters"]
		assert.False(t, ok)
		_, _ = w.Write([]byte(`{"generated_text":"ok"}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", "", time.Second).WithModelsURL(srv.URL).Inference(context.Background(), "gpt2", json.RawMessage(`{"text":"hi"}`), nil)
	require.NoError(t, err)
}

func TestInference_Failures(t *testing.T) {
	c := NewClient("k", "", time.Second)
	for _, id := range []string{"", "../admin", "a/b/c", "owner/..", "name?x=1"} {
		_, err := c.Inference(context.Background(), id, json.RawMessage(`"x"`), nil)
		assert.ErrorIs(t, err, ErrInvalidModelID, id)
	}

	_, err := NewClient("", "", time.Second).Inference(context.Background(), "gpt2", json.RawMessage(`"x"`), nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/html" {
			_, _ = w.Write([]byte("<html>"))
			return
		}
		http.Error(w, `{"error":"Model gpt2 is currently loading"}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err = NewClient("k", "", time.Second).WithModelsURL(srv.URL).Inference(context.Background(), "gpt2", json.RawMessage(`"x"`), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Contains(t, apiErr.Body, "currently loading")
	assert.ErrorIs(t, err, ErrAPI)

	_, err = NewClient("k", "", time.Second).WithModelsURL(srv.URL).Inference(context.Background(), "html", json.RawMessage(`"x"`), nil)
	assert.ErrorIs(t, err, ErrAPI)
}
