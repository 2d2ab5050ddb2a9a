package learning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"finscholars/backend/llm"
	"finscholars/backend/models"
)

const (
	maxSyllabusUnits  = 8
	maxUnitTopics     = 5
	maxSyllabusRunes  = 60000
	syllabusMaxTokens = 4096
)

// SyllabusUnit is one learning unit segmented out of a syllabus.
type SyllabusUnit struct {
	Title   string   `json:"unit_title"`
	Summary string   `json:"key_summary"`
	Topics  []string `json:"key_topics"`
}

type SyllabusResult struct {
	Units     []SyllabusUnit `json:"units"`
	ModuleIDs []string       `json:"module_ids"`
}

// ProcessSyllabus segments raw syllabus text into at most eight units and
// generates a Basic module for each unit title. Modules already stored for a
// title are reused.
func (s *Service) ProcessSyllabus(ctx context.Context, userID, text string) (*SyllabusResult, error) {
	units, err := s.ParseSyllabus(ctx, text)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return nil, err
	}

	res := &SyllabusResult{Units: units}
	for _, unit := range units {
		mod, err := s.GenerateModule(ctx, userID, unit.Title, string(models.LevelBasic))
		if err != nil {
			return res, fmt.Errorf("generate module for unit %q: %w", unit.Title, err)
		}
		res.ModuleIDs = append(res.ModuleIDs, mod.Module.ID)
	}
	s.log.Info("syllabus processed", "user_id", userID, "units", len(units), "modules", len(res.ModuleIDs))
	return res, nil
}

// ParseSyllabus asks the model to segment text into learning units.
func (s *Service) ParseSyllabus(ctx context.Context, text string) ([]SyllabusUnit, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptySyllabus
	}
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: text is not valid UTF-8", ErrEmptySyllabus)
	}
	if utf8.RuneCountInString(text) > maxSyllabusRunes {
		text = string([]rune(text)[:maxSyllabusRunes])
	}

	req := llm.UserPrompt(syllabusRole, syllabusPrompt(text), syllabusMaxTokens)
	req.Schema = syllabusSchema
	resp, err := s.llm.Generate(llm.WithPurpose(ctx, "syllabus"), req)
	var invalid *llm.ErrInvalidResponse
	if err != nil && !errors.As(err, &invalid) {
		return nil, fmt.Errorf("parse syllabus: %w", err)
	}

	var payload struct {
		Units []SyllabusUnit `json:"units"`
	}
	if err = decodeReply(syllabusSchema, resp, err, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyllabusUnusable, err)
	}
	units := normalizeUnits(payload.Units)
	if len(units) == 0 {
		return nil, ErrSyllabusUnusable
	}
	return units, nil
}

// normalizeUnits trims fields, drops untitled and repeated units, and applies
// the unit and topic caps.
func normalizeUnits(in []SyllabusUnit) []SyllabusUnit {
	seen := make(map[string]bool, len(in))
	out := make([]SyllabusUnit, 0, len(in))
	for _, u := range in {
		u.Title = strings.TrimSpace(u.Title)
		key := strings.ToLower(u.Title)
		if u.Title == "" || seen[key] {
			continue
		}
		seen[key] = true
		u.Summary = strings.TrimSpace(u.Summary)

		topics := make([]string, 0, len(u.Topics))
		for _, t := range u.Topics {
			if t = strings.TrimSpace(t); t != "" && len(topics) < maxUnitTopics {
				topics = append(topics, t)
			}
		}
		u.Topics = topics
		out = append(out, u)
		if len(out) == maxSyllabusUnits {
			break
		}
	}
	return out
}
