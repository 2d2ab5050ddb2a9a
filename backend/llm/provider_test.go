package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"finscholars/backend/config"
	"finscholars/backend/utils"
)

func TestMockProvider_FIFOAndCalls(t *testing.T) {
	mock := NewMockProvider(TextResponse("first"))
	mock.AddResponse(TextResponse("second"))

	r1, err := mock.Generate(context.Background(), UserPrompt("", "a", 10))
	require.NoError(t, err)
	r2, err := mock.Generate(context.Background(), UserPrompt("", "b", 10))
	require.NoError(t, err)

	assert.Equal(t, "first", r1.Text())
	assert.Equal(t, "second", r2.Text())
	last, ok := mock.LastCall()
	require.True(t, ok)
	assert.Equal(t, "b", last.Messages[0].Content)

	_, err = mock.Generate(context.Background(), Request{})
	var unavailable *ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 3, mock.CallCount())
}

func TestMockProvider_PurposeQueues(t *testing.T) {
	mock := NewMockProvider(TextResponse("shared"))
	mock.AddResponseFor("quiz", TextResponse(`{"questions":[]}`))

	lesson, err := mock.Generate(WithPurpose(context.Background(), "lesson"), Request{})
	require.NoError(t, err)
	quiz, err := mock.Generate(WithPurpose(context.Background(), "quiz"), Request{})
	require.NoError(t, err)
	assert.Equal(t, "shared", lesson.Text())
	assert.Equal(t, `{"questions":[]}`, quiz.Text())

	_, err = mock.Generate(WithPurpose(context.Background(), "quiz"), Request{})
	var unavailable *ErrProviderUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestPurposeContext(t *testing.T) {
	assert.Equal(t, "unknown", PurposeFrom(context.Background()))
	assert.Equal(t, "quiz", PurposeFrom(WithPurpose(context.Background(), "quiz")))
}

func TestLoggingProvider_PassesThrough(t *testing.T) {
	mock := NewMockProvider(TextResponse("hello"))
	p := WithLogging(mock, utils.NewNopLogger())

	resp, err := p.Generate(WithPurpose(context.Background(), "lesson"), Request{})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text())
	assert.Equal(t, "mock", p.ModelID())
}

func TestNewProvider_Mock(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Provider: "mock"}, utils.NewNopLogger())
	require.NoError(t, err)
	assert.IsType(t, &MockProvider{}, p)

	_, err = NewProvider(context.Background(), Config{Provider: "bogus"}, utils.NewNopLogger())
	assert.Error(t, err)

	_, err = NewProvider(context.Background(), Config{Provider: "openai"}, utils.NewNopLogger())
	assert.ErrorContains(t, err, "API key is required")
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(&config.Config{
		LLMProvider:    "anthropic",
		AnthropicModel: "claude-sonnet",
		LLMMaxAttempts: 5,
	})
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-sonnet", cfg.Anthropic.Model)
	assert.Equal(t, "gemini-flash", cfg.Gemini.Model)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, DefaultConfig().Timeout, cfg.Timeout)
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "gemini-2.0-flash", resolveModel("gemini-flash", geminiModels))
	assert.Equal(t, "custom-model", resolveModel("custom-model", geminiModels))
}

func TestBuildGeminiSchema(t *testing.T) {
	s := buildGeminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":    map[string]any{"type": "string", "enum": []any{"mcq", "free_text"}},
			"options": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []any{"type"},
	})
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"type"}, s.Required)
	assert.Equal(t, []string{"mcq", "free_text"}, s.Properties["type"].Enum)
	assert.Equal(t, genai.TypeArray, s.Properties["options"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["options"].Items.Type)
}

func TestBuildOpenAIMessages(t *testing.T) {
	msgs := buildOpenAIMessages(Request{
		System:   "sys",
		Messages: []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "yo"}},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[2].Role)
}
