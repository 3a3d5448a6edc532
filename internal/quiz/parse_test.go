package quiz

import (
	"errors"
	"reflect"
	"testing"

	"study-assistant-platform/models"
)

const mcqJSON = `{"questions": [{"question_text": "What is the SI unit of force?", "option_a": "Joule", "option_b": "Newton", "option_c": "Watt", "option_d": "Pascal", "correct_answer": "B", "explanation": "Force is measured in newtons.", "topic": "Units"}]}`

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"labeled":          "```json\n" + mcqJSON + "\n```",
		"labeled upper":    "```JSON\n" + mcqJSON + "\n```",
		"unlabeled":        "```\n" + mcqJSON + "\n```",
		"surrounding text": "Here you go:\n```json\n" + mcqJSON + "\n```\nGood luck!",
		"bare":             "  " + mcqJSON + "\n",
	}
	for name, in := range cases {
		if got := StripCodeFence(in); got != mcqJSON {
			t.Errorf("%s: got %q", name, got)
		}
	}
}

func TestParseQuestionsFencedMatchesBare(t *testing.T) {
	want, err := ParseQuestions(mcqJSON, models.QuizKindMCQ)
	if err != nil {
		t.Fatalf("bare: %v", err)
	}
	for _, wrapped := range []string{"```json\n" + mcqJSON + "\n```", "```\n" + mcqJSON + "\n```"} {
		got, err := ParseQuestions(wrapped, models.QuizKindMCQ)
		if err != nil {
			t.Fatalf("fenced: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("fenced parse differs:\n got %+v\nwant %+v", got, want)
		}
	}
	if want[0].CorrectAnswer != "b" {
		t.Fatalf("expected correct answer normalised to b, got %q", want[0].CorrectAnswer)
	}
}

func TestParseQuestionsDefaults(t *testing.T) {
	raw := `{"questions": [{"question_text": "Explain refraction.", "expected_answer": 42, "explanation": null}]}`
	qs, err := ParseQuestions(raw, models.QuizKindSAQ)
	if err != nil {
		t.Fatal(err)
	}
	q := qs[0]
	if q.Topic != models.DefaultTopic || q.Explanation != "" || q.ExpectedAnswer != "42" {
		t.Fatalf("unexpected defaults: %+v", q)
	}
	if q.Kind != models.QuizKindSAQ {
		t.Fatalf("expected saq kind, got %s", q.Kind)
	}
}

func TestParseQuestionsProseWrapped(t *testing.T) {
	raw := "Sure! " + mcqJSON + " Let me know if you need more."
	qs, err := ParseQuestions(raw, models.QuizKindMCQ)
	if err != nil || len(qs) != 1 {
		t.Fatalf("expected brace extraction to recover the object, got %v (%v)", qs, err)
	}
}

func TestParseQuestionsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":        "I cannot help with that.",
		"missing array":   `{"items": []}`,
		"non-list":        `{"questions": "none"}`,
		"empty list":      `{"questions": []}`,
		"no usable items": `{"questions": [1, "two", {"topic": "x"}]}`,
		"top-level array": `[{"question_text": "q"}]`,
	}
	for name, raw := range cases {
		_, err := ParseQuestions(raw, models.QuizKindMCQ)
		var invalid *InvalidGenerationResponseError
		if !errors.As(err, &invalid) {
			t.Errorf("%s: expected InvalidGenerationResponseError, got %v", name, err)
		}
	}
}

func TestNormalizeLetter(t *testing.T) {
	cases := map[string]string{
		"A": "a", " b ": "b", "c)": "c", "(D)": "d", "Option B": "b", "option: c": "c",
		"e": "", "": "", "answer": "", "bee": "",
	}
	for in, want := range cases {
		if got := normalizeLetter(in); got != want {
			t.Errorf("normalizeLetter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseEvaluation(t *testing.T) {
	res, err := parseEvaluation("```json\n{\"is_correct\": \"true\", \"feedback\": \"Good\", \"score\": \"8\"}\n```")
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsCorrect || res.Feedback != "Good" || res.Score == nil || *res.Score != 8 {
		t.Fatalf("unexpected evaluation: %+v", res)
	}

	res, err = parseEvaluation(`{"is_correct": false, "score": 14}`)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsCorrect || *res.Score != 10 {
		t.Fatalf("expected clamped score 10, got %+v", res)
	}
}
