package model

import "time"

// QuestionType enumerates the question kinds the platform supports.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionEssay          QuestionType = "essay"
)

// Exam represents an exam as served by the platform API. Immutable once
// loaded for a session.
type Exam struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Duration       int        `json:"duration"` // minutes
	QuestionsCount int        `json:"questions_count,omitempty"`
	Questions      []Question `json:"questions,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Question is a single exam question. Choices are only present for
// multiple_choice questions.
type Question struct {
	ID           int64        `json:"id"`
	ExamID       int64        `json:"exam_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Points       int          `json:"points"`
	Choices      []Choice     `json:"choices,omitempty"`
}

// Choice is one selectable option of a multiple_choice question. The
// correctness flag is server-only and never appears on this wire type
// during an active attempt.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	ChoiceText string `json:"choice_text"`
}

// ChoiceByID returns the choice with the given id, or nil.
func (q *Question) ChoiceByID(id int64) *Choice {
	for i := range q.Choices {
		if q.Choices[i].ID == id {
			return &q.Choices[i]
		}
	}
	return nil
}
