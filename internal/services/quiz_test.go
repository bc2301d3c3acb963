package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"edulearn-backend/internal/models"
)

func quizJSON(n int) string {
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprintf(`{"question_text":"Q%d?","options":[{"option_id":"A","option_text":"a"},{"option_id":"B","option_text":"b"},{"option_id":"C","option_text":"c"},{"option_id":"D","option_text":"d"}],"correct_answer":"B","explanation":"because"}`, i+1)
	}
	return "[" + strings.Join(items, ",") + "]"
}

func TestQuizEngine_GenerateExactCount(t *testing.T) {
	e := NewQuizEngine(&stubGenerator{replies: []string{quizJSON(7)}})

	questions, err := e.Generate(context.Background(), "text", models.DifficultyMedium, 5, "Quiz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 5 {
		t.Fatalf("expected 5 questions, got %d", len(questions))
	}
	seen := map[string]bool{}
	for _, q := range questions {
		if len(q.Options) != 4 {
			t.Fatalf("expected 4 options, got %d", len(q.Options))
		}
		if q.ID == "" || seen[q.ID] {
			t.Fatalf("expected unique question ids, got %q", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestQuizEngine_GenerateShortResultAccepted(t *testing.T) {
	e := NewQuizEngine(&stubGenerator{replies: []string{"Sure:\n" + quizJSON(3) + "\nEnjoy"}})

	questions, err := e.Generate(context.Background(), "text", models.DifficultyEasy, 10, "Quiz")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
}

func TestQuizEngine_GenerateZeroIsError(t *testing.T) {
	e := NewQuizEngine(&stubGenerator{replies: []string{"no quiz today"}})

	_, err := e.Generate(context.Background(), "text", models.DifficultyHard, 5, "Quiz")
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestQuizEngine_GenerateValidation(t *testing.T) {
	tests := []struct {
		name       string
		difficulty models.Difficulty
		count      int
	}{
		{"zero count", models.DifficultyEasy, 0},
		{"too many", models.DifficultyEasy, 51},
		{"bad difficulty", models.Difficulty("extreme"), 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &stubGenerator{}
			_, err := NewQuizEngine(gen).Generate(context.Background(), "text", tc.difficulty, tc.count, "Quiz")
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if len(gen.prompts) != 0 {
				t.Fatalf("generation should not run for invalid params")
			}
		})
	}
}

func TestQuizEngine_DifficultyInstructionInPrompt(t *testing.T) {
	gen := &stubGenerator{replies: []string{quizJSON(1)}}
	NewQuizEngine(gen).Generate(context.Background(), "text", models.DifficultyHard, 1, "Quiz")

	if !strings.Contains(gen.prompts[0], "combine multiple concepts") {
		t.Fatalf("expected hard instruction in prompt")
	}
	if !strings.Contains(gen.prompts[0], "Difficulty Level: HARD") {
		t.Fatalf("expected difficulty label in prompt")
	}
}

func TestNormalizeQuestion(t *testing.T) {
	opts := func(ids ...string) []rawQuizOption {
		out := make([]rawQuizOption, len(ids))
		for i, id := range ids {
			out[i] = rawQuizOption{OptionID: id, OptionText: "text " + id}
		}
		return out
	}

	tests := []struct {
		name        string
		item        rawQuizQuestion
		ok          bool
		wantCorrect string
		firstText   string
	}{
		{"ordered", rawQuizQuestion{QuestionText: "Q", Options: opts("A", "B", "C", "D"), CorrectAnswer: "C"}, true, "C", "text A"},
		{"shuffled ids are sorted", rawQuizQuestion{QuestionText: "Q", Options: opts("D", "C", "B", "A"), CorrectAnswer: "a"}, true, "A", "text A"},
		{"decorated answer", rawQuizQuestion{QuestionText: "Q", Options: opts("A", "B", "C", "D"), CorrectAnswer: "B) second"}, true, "B", "text A"},
		{"missing ids are positional", rawQuizQuestion{QuestionText: "Q", Options: opts("", "", "", ""), CorrectAnswer: "D"}, true, "D", "text"},
		{"three options", rawQuizQuestion{QuestionText: "Q", Options: opts("A", "B", "C"), CorrectAnswer: "A"}, false, "", ""},
		{"answer out of range", rawQuizQuestion{QuestionText: "Q", Options: opts("A", "B", "C", "D"), CorrectAnswer: "E"}, false, "", ""},
		{"empty question", rawQuizQuestion{Options: opts("A", "B", "C", "D"), CorrectAnswer: "A"}, false, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, ok := normalizeQuestion(tc.item)
			if ok != tc.ok {
				t.Fatalf("expected ok=%v, got %v", tc.ok, ok)
			}
			if !ok {
				return
			}
			if q.CorrectAnswer != tc.wantCorrect {
				t.Fatalf("expected correct %q, got %q", tc.wantCorrect, q.CorrectAnswer)
			}
			for i, o := range q.Options {
				if o.OptionID != models.OptionIDs[i] {
					t.Fatalf("expected option id %s at %d, got %s", models.OptionIDs[i], i, o.OptionID)
				}
			}
			if q.Options[0].OptionText != tc.firstText {
				t.Fatalf("expected first option %q, got %q", tc.firstText, q.Options[0].OptionText)
			}
		})
	}
}

func sampleQuiz(n int) *models.Quiz {
	q := &models.Quiz{
		ID:         uuid.New(),
		UserID:     uuid.New(),
		DocumentID: uuid.New(),
		Title:      "Cells",
		Difficulty: models.DifficultyMedium,
	}
	for i := 0; i < n; i++ {
		q.Questions = append(q.Questions, models.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			QuestionText:  fmt.Sprintf("Question %d", i+1),
			CorrectAnswer: "A",
			Explanation:   "exp",
		})
	}
	q.QuestionCount = n
	return q
}

func TestGrade_ThreeOfFiveWrong(t *testing.T) {
	quiz := sampleQuiz(5)
	answers := []models.ExamAnswer{
		{QuestionID: "q1", SelectedAnswer: "A"},
		{QuestionID: "q2", SelectedAnswer: "A"},
		{QuestionID: "q3", SelectedAnswer: "B"},
		{QuestionID: "q4", SelectedAnswer: "C"},
		// q5 not answered
	}

	result, wrong := Grade(quiz, answers, 120)

	if result.CorrectAnswers != 2 || result.WrongAnswers != 3 || result.TotalQuestions != 5 {
		t.Fatalf("unexpected tallies: %+v", result)
	}
	if result.ScorePercentage != 40.00 {
		t.Fatalf("expected score 40.00, got %v", result.ScorePercentage)
	}
	if len(wrong) != 3 {
		t.Fatalf("expected 3 wrong answers, got %d", len(wrong))
	}
	if wrong[2].SelectedAnswer != "" || wrong[2].QuestionText != "Question 5" {
		t.Fatalf("expected unanswered question as empty selection, got %+v", wrong[2])
	}
	if result.Answers[4].IsCorrect {
		t.Fatalf("missing answer must be incorrect")
	}
	if result.TimeTaken != 120 || result.QuizTitle != "Cells" || result.Difficulty != models.DifficultyMedium {
		t.Fatalf("expected snapshots to be copied, got %+v", result)
	}
}

func TestGrade_AllCorrect(t *testing.T) {
	quiz := sampleQuiz(3)
	answers := []models.ExamAnswer{
		{QuestionID: "q1", SelectedAnswer: "A"},
		{QuestionID: "q2", SelectedAnswer: "A"},
		{QuestionID: "q3", SelectedAnswer: "A"},
	}

	result, wrong := Grade(quiz, answers, 30)
	if len(wrong) != 0 {
		t.Fatalf("expected no wrong answers, got %d", len(wrong))
	}
	if result.ScorePercentage != 100 {
		t.Fatalf("expected 100, got %v", result.ScorePercentage)
	}
}

func TestGrade_ExactMatchOnly(t *testing.T) {
	quiz := sampleQuiz(1)
	result, _ := Grade(quiz, []models.ExamAnswer{{QuestionID: "q1", SelectedAnswer: "a"}}, 0)
	if result.CorrectAnswers != 0 {
		t.Fatalf("expected lower-case answer to be wrong")
	}
}

func TestGrade_EmptyQuiz(t *testing.T) {
	result, wrong := Grade(sampleQuiz(0), nil, 0)
	if result.ScorePercentage != 0 || result.TotalQuestions != 0 || len(wrong) != 0 {
		t.Fatalf("unexpected result for empty quiz: %+v", result)
	}
}

func TestGrade_Deterministic(t *testing.T) {
	quiz := sampleQuiz(4)
	answers := []models.ExamAnswer{{QuestionID: "q1", SelectedAnswer: "A"}, {QuestionID: "q3", SelectedAnswer: "D"}}

	a, _ := Grade(quiz, answers, 10)
	b, _ := Grade(quiz, answers, 10)
	if a.ScorePercentage != b.ScorePercentage || a.CorrectAnswers != b.CorrectAnswers {
		t.Fatalf("expected identical grading")
	}
	for i := range a.Answers {
		if a.Answers[i] != b.Answers[i] {
			t.Fatalf("expected identical answer details at %d", i)
		}
	}
}

func TestScorePercentage_Rounding(t *testing.T) {
	tests := []struct {
		correct, total int
		want           float64
	}{
		{1, 3, 33.33},
		{2, 3, 66.67},
		{0, 7, 0},
		{7, 7, 100},
	}
	for _, tc := range tests {
		if got := scorePercentage(tc.correct, tc.total); got != tc.want {
			t.Fatalf("%d/%d: expected %v, got %v", tc.correct, tc.total, tc.want, got)
		}
	}
}
