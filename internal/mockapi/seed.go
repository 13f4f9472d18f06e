package mockapi

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/model"
)

// Seed fills the store with demo accounts and exams so the client has
// something to log into out of the box.
//
// Accounts: student@example.com / password123, admin@example.com / admin123.
func Seed(store *Store, log zerolog.Logger) {
	if _, err := store.CreateUser("Demo Student", "student", "student@example.com", "password123", model.RoleStudent); err != nil {
		log.Warn().Err(err).Msg("Seed student failed")
	}
	if _, err := store.CreateUser("Demo Admin", "admin", "admin@example.com", "admin123", model.RoleAdmin); err != nil {
		log.Warn().Err(err).Msg("Seed admin failed")
	}

	now := time.Now().UTC()

	store.AddExam(model.Exam{
		ID:          1,
		Title:       "Go Fundamentals",
		Description: "Syntax, types and tooling basics.",
		Duration:    30,
		CreatedAt:   now,
		UpdatedAt:   now,
		Questions: []model.Question{
			{
				ID: 101, ExamID: 1, QuestionType: model.QuestionMultipleChoice, Points: 10,
				QuestionText: "Which keyword declares a new variable with inferred type?",
				Choices: []model.Choice{
					{ID: 1001, QuestionID: 101, ChoiceText: "var x = 1"},
					{ID: 1002, QuestionID: 101, ChoiceText: "x := 1"},
					{ID: 1003, QuestionID: 101, ChoiceText: "let x = 1"},
					{ID: 1004, QuestionID: 101, ChoiceText: "x = 1"},
				},
			},
			{
				ID: 102, ExamID: 1, QuestionType: model.QuestionTrueFalse, Points: 5,
				QuestionText: "A nil map can be written to without panicking.",
			},
			{
				ID: 103, ExamID: 1, QuestionType: model.QuestionEssay, Points: 20,
				QuestionText: "Explain when you would choose a buffered channel over an unbuffered one.",
			},
		},
	}, map[int64]int64{101: 1002, 102: 0})

	store.AddExam(model.Exam{
		ID:          2,
		Title:       "HTTP Quick Check",
		Description: "Short auto-graded quiz.",
		Duration:    10,
		CreatedAt:   now,
		UpdatedAt:   now,
		Questions: []model.Question{
			{
				ID: 201, ExamID: 2, QuestionType: model.QuestionMultipleChoice, Points: 10,
				QuestionText: "Which status code means Unauthorized?",
				Choices: []model.Choice{
					{ID: 2001, QuestionID: 201, ChoiceText: "400"},
					{ID: 2002, QuestionID: 201, ChoiceText: "401"},
					{ID: 2003, QuestionID: 201, ChoiceText: "403"},
					{ID: 2004, QuestionID: 201, ChoiceText: "404"},
				},
			},
			{
				ID: 202, ExamID: 2, QuestionType: model.QuestionTrueFalse, Points: 5,
				QuestionText: "GET requests should be idempotent.",
			},
		},
	}, map[int64]int64{201: 2002, 202: 1})

	log.Info().Int("exams", 2).Msg("Seeded demo data")
}
