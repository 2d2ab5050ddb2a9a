package learning

import (
	"encoding/json"
	"fmt"
	"strings"

	"finscholars/backend/llm"
	"finscholars/backend/models"
)

const educatorRole = "You are an expert financial educator."

var levelGuidance = map[models.Level]string{
	models.LevelBasic:    "Focus on fundamental concepts, simple explanations, and everyday examples.",
	models.LevelModerate: "Include more detailed explanations, some technical terms with definitions, and practical applications.",
	models.LevelAdvanced: "Provide in-depth analysis, technical concepts, market implications, and advanced strategies.",
}

func lessonPrompt(topic string, level models.Level) string {
	return fmt.Sprintf(`Create comprehensive educational content about %s at %s level.

Requirements:
- %s

Format the response as clean HTML with:
- Clear section headings using <h1>, <h2>, <h3> tags
- Well-structured paragraphs using <p> tags
- Bullet points using <ul> and <li> tags where appropriate
- Bold important terms using <strong> tags
- Include 2-3 real-world examples

The content should be educational, accurate, and engaging. Return only the HTML.`,
		topic, level, levelGuidance[level])
}

func quizPrompt(topic string, level models.Level, content string) string {
	return fmt.Sprintf(`Create a comprehensive quiz about %s at %s level based on this content:

%s

Create a quiz with the following requirements:
1. Include %d multiple-choice questions (MCQs) with 4 options each
2. Include %d free-text questions that require short paragraph answers

Format your response as a JSON object with this exact structure:
{
  "questions": [
    {
      "id": "q1",
      "type": "mcq",
      "question": "Question text here?",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correct_answer": 0,
      "explanation": "Explanation of the correct answer"
    },
    {
      "id": "q6",
      "type": "free_text",
      "question": "Question text here?",
      "sample_answer": "A sample correct answer to help with grading",
      "key_points": ["Key point 1", "Key point 2", "Key point 3"]
    }
  ]
}

Ensure all questions are directly related to the content provided and appropriate for the %s difficulty level.`,
		topic, level, content, mcqPerQuiz, freeTextPerQuiz, level)
}

func gradePrompt(q models.Question, answer string) string {
	keyPoints, _ := json.MarshalIndent(q.KeyPoints, "", "  ")
	return fmt.Sprintf(`You are evaluating a student's answer.

Question: %s

Sample Correct Answer: %s

Key Points That Should Be Addressed:
%s

Student Answer: %s

Evaluate the student's answer and provide:
1. A score from 0-100 based on how well they addressed the key points
2. Constructive feedback explaining the score

Format your response as a JSON object with this structure:
{
  "score": 85,
  "feedback": "Your feedback here"
}`, q.Question, q.SampleAnswer, keyPoints, answer)
}

const syllabusRole = "You are a curriculum parser and unit designer analyzing educational content."

func syllabusPrompt(text string) string {
	return fmt.Sprintf(`Analyze the following raw text from a syllabus document:

%s

Segment this content into logical learning units (maximum %d units total).
Ignore any structural markers like page numbers or headers.

For each unit, provide:
1. A concise unit_title derived from the content
2. A key_summary that captures the essence of the unit
3. 3-%d key_topics that are covered in the unit

Your response must be a valid JSON object with the following structure:
{
  "units": [
    {
      "unit_title": "Title of the unit",
      "key_summary": "Concise summary of the unit",
      "key_topics": ["Topic 1", "Topic 2", "Topic 3"]
    }
  ]
}`, text, maxSyllabusUnits, maxUnitTopics)
}

// stripFences removes a surrounding markdown code fence that models like to add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var quizSchema = &llm.Schema{
	Name:        "quiz",
	Description: "A quiz of multiple-choice and free-text questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":             map[string]any{"type": "string"},
						"type":           map[string]any{"type": "string", "enum": []any{"mcq", "free_text"}},
						"question":       map[string]any{"type": "string", "minLength": 1},
						"options":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"correct_answer": map[string]any{"type": "integer", "minimum": 0},
						"explanation":    map[string]any{"type": "string"},
						"sample_answer":  map[string]any{"type": "string"},
						"key_points":     map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []any{"type", "question"},
				},
			},
		},
		"required": []any{"questions"},
	},
}

var gradeSchema = &llm.Schema{
	Name:        "grade",
	Description: "A graded free-text answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score":    map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"feedback": map[string]any{"type": "string"},
		},
		"required": []any{"score", "feedback"},
	},
}

var syllabusSchema = &llm.Schema{
	Name:        "syllabus",
	Description: "Learning units segmented from a syllabus",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"units": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"unit_title":  map[string]any{"type": "string", "minLength": 1},
						"key_summary": map[string]any{"type": "string"},
						"key_topics":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					},
					"required": []any{"unit_title"},
				},
			},
		},
		"required": []any{"units"},
	},
}
