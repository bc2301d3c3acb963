package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"edulearn-backend/internal/models"
)

const (
	MinQuizQuestions = 1
	MaxQuizQuestions = 50

	quizTextLimit = 6000
)

// QuizEngine generates multiple-choice quizzes and grades submissions.
type QuizEngine struct {
	gen Generator
}

func NewQuizEngine(gen Generator) *QuizEngine {
	return &QuizEngine{gen: gen}
}

// ValidateQuizParams rejects out-of-range requests before any generation happens.
func ValidateQuizParams(difficulty models.Difficulty, count int) error {
	fields := map[string]string{}
	if !difficulty.Valid() {
		fields["difficulty"] = "Difficulty must be easy, medium, or hard"
	}
	if count < MinQuizQuestions || count > MaxQuizQuestions {
		fields["question_count"] = "Question count must be between 1 and 50"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

type rawQuizOption struct {
	OptionID   string `json:"option_id"`
	OptionText string `json:"option_text"`
}

type rawQuizQuestion struct {
	QuestionText  string          `json:"question_text"`
	Options       []rawQuizOption `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	Explanation   string          `json:"explanation"`
}

// Generate returns up to count questions. Fewer is accepted; none is ErrNoQuestions.
func (e *QuizEngine) Generate(ctx context.Context, text string, difficulty models.Difficulty, count int, title string) ([]models.Question, error) {
	if err := ValidateQuizParams(difficulty, count); err != nil {
		return nil, err
	}

	prompt := buildQuizPrompt(title, difficulty, count, truncateRunes(text, quizTextLimit))
	raw, err := e.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	items := JSONOrDefault[[]rawQuizQuestion](raw, ShapeArray, nil)

	questions := make([]models.Question, 0, min(len(items), count))
	for _, item := range items {
		q, ok := normalizeQuestion(item)
		if !ok {
			continue
		}
		questions = append(questions, q)
		if len(questions) == count {
			break
		}
	}

	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return questions, nil
}

// normalizeQuestion enforces four options with ids A-D and a correct answer among them.
func normalizeQuestion(item rawQuizQuestion) (models.Question, bool) {
	text := strings.TrimSpace(item.QuestionText)
	if text == "" || len(item.Options) != len(models.OptionIDs) {
		return models.Question{}, false
	}

	opts := make([]rawQuizOption, len(item.Options))
	copy(opts, item.Options)
	for i := range opts {
		opts[i].OptionID = normalizeOptionID(opts[i].OptionID)
		opts[i].OptionText = strings.TrimSpace(opts[i].OptionText)
		if opts[i].OptionText == "" {
			return models.Question{}, false
		}
	}

	// Ids that already form A-D are kept and ordered; anything else is positional.
	if isOptionIDPermutation(opts) {
		sort.Slice(opts, func(i, j int) bool { return opts[i].OptionID < opts[j].OptionID })
	}

	options := make([]models.QuizOption, len(opts))
	for i, o := range opts {
		options[i] = models.QuizOption{OptionID: models.OptionIDs[i], OptionText: o.OptionText}
	}

	correct := normalizeOptionID(item.CorrectAnswer)
	if !isOptionID(correct) {
		return models.Question{}, false
	}

	return models.Question{
		ID:            uuid.New().String(),
		QuestionText:  text,
		Options:       options,
		CorrectAnswer: correct,
		Explanation:   strings.TrimSpace(item.Explanation),
	}, true
}

// normalizeOptionID turns "b", " B ", "B)" or "B. foo" into "B".
func normalizeOptionID(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) > 1 && isOptionID(s[:1]) && !unicode.IsLetter(rune(s[1])) {
		return s[:1]
	}
	return s
}

func isOptionID(s string) bool {
	for _, id := range models.OptionIDs {
		if s == id {
			return true
		}
	}
	return false
}

func isOptionIDPermutation(opts []rawQuizOption) bool {
	seen := make(map[string]bool, len(opts))
	for _, o := range opts {
		if !isOptionID(o.OptionID) || seen[o.OptionID] {
			return false
		}
		seen[o.OptionID] = true
	}
	return true
}

// Grade scores a submission against the stored answers. The returned wrong
// answers are empty when everything was correct.
func Grade(quiz *models.Quiz, answers []models.ExamAnswer, timeTaken int) (*models.ExamResult, []models.WrongAnswer) {
	submitted := make(map[string]string, len(answers))
	for _, a := range answers {
		submitted[a.QuestionID] = a.SelectedAnswer
	}

	details := make([]models.AnswerDetail, 0, len(quiz.Questions))
	var wrong []models.WrongAnswer
	correct := 0

	for _, q := range quiz.Questions {
		selected := submitted[q.ID]
		isCorrect := selected == q.CorrectAnswer
		if isCorrect {
			correct++
		} else {
			wrong = append(wrong, models.WrongAnswer{
				QuestionText:   q.QuestionText,
				SelectedAnswer: selected,
				CorrectAnswer:  q.CorrectAnswer,
			})
		}

		details = append(details, models.AnswerDetail{
			QuestionID:     q.ID,
			QuestionText:   q.QuestionText,
			SelectedAnswer: selected,
			CorrectAnswer:  q.CorrectAnswer,
			IsCorrect:      isCorrect,
			Explanation:    q.Explanation,
		})
	}

	total := len(quiz.Questions)
	if timeTaken < 0 {
		timeTaken = 0
	}

	result := &models.ExamResult{
		UserID:          quiz.UserID,
		QuizID:          quiz.ID,
		DocumentID:      quiz.DocumentID,
		QuizTitle:       quiz.Title,
		TotalQuestions:  total,
		CorrectAnswers:  correct,
		WrongAnswers:    total - correct,
		ScorePercentage: scorePercentage(correct, total),
		TimeTaken:       timeTaken,
		Difficulty:      quiz.Difficulty,
		Answers:         details,
		WeakTopics:      []string{},
		CompletedAt:     time.Now().UTC(),
	}
	return result, wrong
}

func scorePercentage(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*100*100) / 100
}
