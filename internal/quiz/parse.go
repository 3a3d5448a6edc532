package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"study-assistant-platform/models"
)

const fence = "```"

// StripCodeFence returns the body of the first fenced block in s, with or
// without a language label. Text without a fence is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	start := strings.Index(s, fence)
	if start < 0 {
		return s
	}

	body := s[start+len(fence):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && isFenceLabel(body[:nl]) {
		body = body[nl+1:]
	}
	if end := strings.Index(body, fence); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

func isFenceLabel(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

// decodeObject decodes a JSON object, falling back to the outermost braces
// when the model wrapped the object in prose.
func decodeObject(raw string) (map[string]any, error) {
	text := StripCodeFence(raw)

	var obj map[string]any
	err := json.Unmarshal([]byte(text), &obj)
	if err == nil && obj != nil {
		return obj, nil
	}

	open, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	if open >= 0 && end > open {
		if err2 := json.Unmarshal([]byte(text[open:end+1]), &obj); err2 == nil && obj != nil {
			return obj, nil
		}
	}
	if err == nil {
		err = errors.New("response is not a JSON object")
	}
	return nil, err
}

// ParseQuestions maps a generation response onto question records. Missing
// fields become empty strings and a missing topic becomes the default topic.
func ParseQuestions(raw string, kind models.QuizKind) ([]models.Question, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, &InvalidGenerationResponseError{Reason: "response is not valid JSON", Err: err}
	}

	rawList, ok := obj["questions"]
	if !ok {
		return nil, &InvalidGenerationResponseError{Reason: "missing questions array"}
	}
	items, ok := rawList.([]any)
	if !ok {
		return nil, &InvalidGenerationResponseError{Reason: fmt.Sprintf("questions is %T, not a list", rawList)}
	}

	questions := make([]models.Question, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		q := models.Question{
			Kind:        kind,
			Text:        firstText(m, "question_text", "question"),
			Explanation: textField(m, "explanation"),
			Topic:       textField(m, "topic"),
		}
		if q.Text == "" {
			continue
		}
		if q.Topic == "" {
			q.Topic = models.DefaultTopic
		}

		if kind == models.QuizKindMCQ {
			q.OptionA = textField(m, "option_a")
			q.OptionB = textField(m, "option_b")
			q.OptionC = textField(m, "option_c")
			q.OptionD = textField(m, "option_d")
			q.CorrectAnswer = normalizeLetter(textField(m, "correct_answer"))
		} else {
			q.ExpectedAnswer = firstText(m, "expected_answer", "model_answer", "answer")
		}
		questions = append(questions, q)
	}

	if len(questions) == 0 {
		return nil, &InvalidGenerationResponseError{Reason: "no usable questions in response"}
	}
	return questions, nil
}

func textField(m map[string]any, key string) string {
	return strings.TrimSpace(coerceText(m[key]))
}

func firstText(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := textField(m, k); v != "" {
			return v
		}
	}
	return ""
}

func coerceText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s := strings.TrimSpace(coerceText(p)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// normalizeLetter reduces forms like "B", "b)", "(c)" or "Option D" to a single lower-case letter.
func normalizeLetter(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "option")
	s = strings.TrimLeft(s, " (:")
	if s == "" {
		return ""
	}
	letter := s[0]
	if letter < 'a' || letter > 'd' {
		return ""
	}
	if len(s) > 1 && unicode.IsLetter(rune(s[1])) {
		return ""
	}
	return string(letter)
}

// evaluationResult is the lenient decoding of a grading response.
type evaluationResult struct {
	IsCorrect bool
	Feedback  string
	Score     *int
}

func parseEvaluation(raw string) (evaluationResult, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return evaluationResult{}, err
	}

	var res evaluationResult
	switch v := obj["is_correct"].(type) {
	case bool:
		res.IsCorrect = v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "correct":
			res.IsCorrect = true
		}
	}

	res.Feedback = textField(obj, "feedback")

	var score float64
	hasScore := false
	switch v := obj["score"].(type) {
	case float64:
		score, hasScore = v, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			score, hasScore = f, true
		}
	}
	if hasScore {
		s := int(score + 0.5)
		s = max(0, min(10, s))
		res.Score = &s
	}
	return res, nil
}
