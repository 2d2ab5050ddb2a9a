package learning

import "errors"

var (
	ErrInvalidLevel        = errors.New("invalid level: must be one of Basic, Moderate, Advanced")
	ErrMissingTopic        = errors.New("topic is required")
	ErrModuleNotFound      = errors.New("module not found")
	ErrQuizNotFound        = errors.New("quiz not found for module")
	ErrQuestionNotFound    = errors.New("question not found in quiz")
	ErrInvalidQuestionType = errors.New("question_type must be mcq or free_text")
	ErrInvalidAnswer       = errors.New("invalid answer")
	ErrQueueClosed         = errors.New("quiz queue is shut down")
	ErrEmptySyllabus       = errors.New("syllabus text is required")
	ErrSyllabusUnusable    = errors.New("could not segment syllabus into units")
)
