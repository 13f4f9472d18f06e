package model

import "time"

// Attempt is one student's run at a specific exam: its own timer window,
// answers, and eventual score. The score stays nil until server-side grading
// finishes; the client never computes or guesses it.
type Attempt struct {
	ID          int64      `json:"id"`
	ExamID      int64      `json:"exam_id"`
	UserID      int64      `json:"user_id"`
	StartedAt   time.Time  `json:"started_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	Score       *float64   `json:"score,omitempty"`
	Answers     []Answer   `json:"answers,omitempty"`
	Exam        *Exam      `json:"exam,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// StartExamResult is the payload returned when starting an attempt.
type StartExamResult struct {
	ExamAttempt Attempt `json:"exam_attempt"`
	Exam        Exam    `json:"exam"`
}

// SubmitRequest is the final submission payload: the full current answer
// set, not only answers edited since the last incremental save.
type SubmitRequest struct {
	Answers []Answer `json:"answers"`
}
