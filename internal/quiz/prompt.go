package quiz

import (
	"fmt"
	"strings"

	"study-assistant-platform/models"
)

var kindRequirements = map[models.QuizKind]string{
	models.QuizKindMCQ: `- Create multiple choice questions with exactly 4 options (A, B, C, D)
- Each question has exactly one correct answer; the other options are plausible but wrong
- Explain why the correct answer is right
- Identify the main topic of each question`,
	models.QuizKindSAQ: `- Create short answer questions that need a 2-3 sentence answer
- Provide a model answer for each question
- Add an explanation that helps the student understand the answer
- Identify the main topic of each question`,
	models.QuizKindLAQ: `- Create long answer questions that need a detailed, structured answer
- Provide a comprehensive model answer in paragraph form
- Add an explanation listing the key points a good answer covers
- Identify the main topic of each question`,
}

var kindFormats = map[models.QuizKind]string{
	models.QuizKindMCQ: `{
  "questions": [
    {
      "question_text": "clear question here",
      "option_a": "option A text",
      "option_b": "option B text",
      "option_c": "option C text",
      "option_d": "option D text",
      "correct_answer": "a",
      "explanation": "why the correct answer is right",
      "topic": "main topic name"
    }
  ]
}`,
	models.QuizKindSAQ: `{
  "questions": [
    {
      "question_text": "clear question here",
      "expected_answer": "model answer (2-3 sentences)",
      "explanation": "additional context",
      "topic": "main topic name"
    }
  ]
}`,
	models.QuizKindLAQ: `{
  "questions": [
    {
      "question_text": "clear, comprehensive question here",
      "expected_answer": "detailed model answer",
      "explanation": "key points and explanation",
      "topic": "main topic name"
    }
  ]
}`,
}

func buildGenerationPrompt(content string, kind models.QuizKind, count int, difficulty models.Difficulty) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an expert educational content creator. Generate %d %s questions based only on the study material below. Difficulty level: %s.\n\n",
		count, strings.ToUpper(string(kind)), difficulty)
	sb.WriteString("MATERIAL:\n")
	sb.WriteString(content)
	sb.WriteString("\n\nREQUIREMENTS:\n")
	sb.WriteString(kindRequirements[kind])
	sb.WriteString("\n\nReturn ONLY valid JSON in exactly this format:\n")
	sb.WriteString(kindFormats[kind])
	sb.WriteString("\n\nIMPORTANT: Return ONLY the JSON object, no other text.")
	return sb.String()
}

func buildEvaluationPrompt(q models.Question, answer string) string {
	return fmt.Sprintf(`Evaluate the student's answer to this question.

QUESTION: %s

EXPECTED ANSWER: %s

STUDENT'S ANSWER: %s

Consider the key concepts covered, accuracy, completeness and clarity.

Respond with ONLY this JSON object:
{
  "is_correct": true or false,
  "feedback": "constructive feedback on what is good and what needs improvement",
  "score": 0-10
}`, q.Text, q.ExpectedAnswer, answer)
}
