// Package session drives a single exam attempt from load to submission: it
// owns the countdown, the per-question answer cache, navigation and
// completion gating, and the reconciliation of local answers with the
// remote gateway. The presentation layer only reads snapshots and forwards
// user actions; it never mutates controller state directly.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/model"
)

// State is the lifecycle state of an attempt session.
type State int

const (
	// StateLoading is the initial state; exam content is not available yet.
	StateLoading State = iota
	// StateActive means the countdown is running and the student can
	// navigate and edit answers. A failed submit returns here with the
	// timer left stopped.
	StateActive
	// StateSubmitting means a submit request is in flight. Navigation and
	// edits are disabled; at most one submission can be in flight.
	StateSubmitting
	// StateSubmitted is terminal: the gateway acknowledged the submission.
	StateSubmitted
	// StateClosed is terminal: the session view was torn down. A late
	// submit response arriving afterwards is ignored.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateSubmitting:
		return "submitting"
	case StateSubmitted:
		return "submitted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned by Load when either route identifier is
	// missing or not a positive integer. The caller must redirect to a
	// safe default view; no timer is started.
	ErrNotFound = errors.New("session: exam or attempt not found")

	// ErrNotActive is returned when an operation requires the Active state
	// (an edit during submission, a second submit, a submit before load).
	ErrNotActive = errors.New("session: not active")

	// ErrUnknownQuestion is returned when an answer references a question
	// id that is not part of the loaded exam.
	ErrUnknownQuestion = errors.New("session: unknown question")
)

// Gateway is the slice of the exam API the controller consumes.
type Gateway interface {
	FetchExam(ctx context.Context, examID int64) (*model.Exam, error)
	FetchAttempt(ctx context.Context, attemptID int64) (*model.Attempt, error)
	SaveAnswer(ctx context.Context, attemptID int64, answer model.Answer) error
	SubmitAttempt(ctx context.Context, attemptID int64, answers []model.Answer) (*model.Attempt, error)
}

// Options tune a controller.
type Options struct {
	// WarningThreshold is the remaining time at which the one-shot time
	// warning fires. Defaults to 5 minutes.
	WarningThreshold time.Duration
	// TickInterval is the countdown granularity. Defaults to one second;
	// only tests change it.
	TickInterval time.Duration
	Logger       zerolog.Logger
}

// EventKind discriminates controller events.
type EventKind int

const (
	// EventTick fires every countdown tick with the remaining seconds.
	EventTick EventKind = iota
	// EventWarning fires once when remaining time crosses the threshold.
	EventWarning
	// EventAutoSubmit fires when the countdown reaches zero, right before
	// the unconditional submission.
	EventAutoSubmit
	// EventSubmitted fires when the gateway acknowledges the submission.
	EventSubmitted
	// EventSubmitFailed fires when a submission fails; the session is
	// Active again and a retry is permitted.
	EventSubmitFailed
)

// Event is a notification for the presentation layer.
type Event struct {
	Kind      EventKind
	Remaining int
	Attempt   *model.Attempt
	Err       error
}

// SubmitOutcome is the result of RequestSubmit.
type SubmitOutcome struct {
	// NeedsConfirmation is true when unanswered questions exist; the
	// caller must confirm explicitly before the submission proceeds.
	NeedsConfirmation bool
	// Unanswered lists the 1-based positions without an answer.
	Unanswered []int
	// Attempt is the finalized attempt when the submission went through
	// without confirmation.
	Attempt *model.Attempt
}

// Snapshot is a read-only view of controller state for rendering.
type Snapshot struct {
	State          State
	ExamTitle      string
	TotalQuestions int
	CurrentIndex   int
	Remaining      int
	WarningShown   bool
	ConfirmPending bool
	Unanswered     []int
}
