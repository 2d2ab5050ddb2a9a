package models

import "encoding/json"

type QuestionType string

const (
	QuestionMCQ      QuestionType = "mcq"
	QuestionFreeText QuestionType = "free_text"
)

type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Question      string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer int          `json:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty"`
	SampleAnswer  string       `json:"sample_answer,omitempty"`
	KeyPoints     []string     `json:"key_points,omitempty"`
}

// PublicQuestion is what a learner sees before answering.
type PublicQuestion struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Question string       `json:"question"`
	Options  []string     `json:"options,omitempty"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Type: q.Type, Question: q.Question, Options: q.Options}
}

// DecodeQuestions reads the questions column; an empty column yields no questions.
func (q Quiz) DecodeQuestions() ([]Question, error) {
	if len(q.Questions) == 0 {
		return nil, nil
	}
	var out []Question
	if err := json.Unmarshal(q.Questions, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindQuestion returns the question with the given id.
func FindQuestion(questions []Question, id string) (Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&UserInterest{},
		&UserBadge{},
		&FocusSession{},
		&Credential{},
		&Module{},
		&Quiz{},
		&Answer{},
		&UserModule{},
	}
}
