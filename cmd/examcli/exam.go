package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-client/internal/model"
	"github.com/stemsi/exstem-client/internal/session"
)

// runExam drives one attempt through the session controller: it renders
// snapshots and forwards input events, nothing more.
func (a *app) runExam(ctx context.Context, examID, attemptID int64) {
	ctrl := session.New(a.gw, session.Options{
		WarningThreshold: a.cfg.WarningThreshold,
		Logger:           a.log,
	})

	if err := ctrl.Load(ctx, examID, attemptID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			fmt.Println("Exam or attempt not found.")
		} else {
			fmt.Printf("Could not load the exam: %v\n", err)
		}
		return
	}

	timerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer ctrl.Close()
	go ctrl.Start(timerCtx)
	go a.watchEvents(ctrl)

	fmt.Println("\nCommands: answer directly, [n]ext, [p]rev, g <num>, [s]ubmit, [q]uit")

	for {
		snap := ctrl.Snapshot()
		switch snap.State {
		case session.StateSubmitted, session.StateClosed:
			return
		}

		q := ctrl.CurrentQuestion()
		if q == nil {
			return
		}
		a.renderQuestion(ctrl, snap, q)

		input := a.prompt("exam> ")
		snap = ctrl.Snapshot()
		if snap.State != session.StateActive {
			// Timer expired while waiting for input.
			continue
		}

		switch {
		case input == "q":
			fmt.Println("Leaving the exam; your answers stay saved.")
			return
		case input == "n":
			ctrl.NextQuestion()
		case input == "p":
			ctrl.PreviousQuestion()
		case strings.HasPrefix(input, "g "):
			if idx, err := strconv.Atoi(strings.TrimSpace(input[2:])); err == nil {
				ctrl.GoToQuestion(idx - 1)
			}
		case input == "s":
			if a.submitFlow(ctx, ctrl) {
				return
			}
		case input != "":
			a.captureAnswer(ctrl, q, input)
		}
	}
}

func (a *app) renderQuestion(ctrl *session.Controller, snap session.Snapshot, q *model.Question) {
	fmt.Printf("\n── %s ── question %d/%d ── %s remaining ──\n",
		snap.ExamTitle, snap.CurrentIndex+1, snap.TotalQuestions, formatClock(snap.Remaining))
	fmt.Printf("[%d pts] %s\n", q.Points, q.QuestionText)

	switch q.QuestionType {
	case model.QuestionMultipleChoice:
		for i, choice := range q.Choices {
			fmt.Printf("  %c) %s\n", 'a'+i, choice.ChoiceText)
		}
		fmt.Println("Answer with the choice letter.")
	case model.QuestionTrueFalse:
		fmt.Println("Answer with t or f.")
	case model.QuestionEssay:
		fmt.Println("Type your answer as one line.")
	}

	if v, ok := ctrl.AnswerFor(q.ID); ok {
		fmt.Printf("Current answer: %s\n", v)
	}
	fmt.Printf("Grid: %s\n", renderGrid(ctrl, snap))
}

// renderGrid marks each question as answered [#], unanswered [ ] or
// current [*].
func renderGrid(ctrl *session.Controller, snap session.Snapshot) string {
	var b strings.Builder
	for i := 0; i < snap.TotalQuestions; i++ {
		mark := " "
		if ctrl.IsQuestionAnswered(i) {
			mark = "#"
		}
		if i == snap.CurrentIndex {
			mark = "*"
		}
		fmt.Fprintf(&b, "[%d%s]", i+1, mark)
	}
	return b.String()
}

func (a *app) captureAnswer(ctrl *session.Controller, q *model.Question, input string) {
	var value model.Value

	switch q.QuestionType {
	case model.QuestionMultipleChoice:
		idx := int(input[0] - 'a')
		if len(input) != 1 || idx < 0 || idx >= len(q.Choices) {
			fmt.Println("Pick one of the listed letters.")
			return
		}
		value = model.ChoiceValue(q.Choices[idx].ID)
	case model.QuestionTrueFalse:
		switch strings.ToLower(input) {
		case "t", "true":
			value = model.BoolValue(true)
		case "f", "false":
			value = model.BoolValue(false)
		default:
			fmt.Println("Answer with t or f.")
			return
		}
	case model.QuestionEssay:
		value = model.TextValue(input)
	}

	if err := ctrl.RecordAnswer(q.ID, value); err != nil {
		fmt.Printf("Could not record answer: %v\n", err)
	}
}

// submitFlow returns true when the attempt ended.
func (a *app) submitFlow(ctx context.Context, ctrl *session.Controller) bool {
	outcome, err := ctrl.RequestSubmit(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNotActive) {
			return false
		}
		fmt.Printf("Submission failed: %v — your answers are kept, try again.\n", err)
		return false
	}

	if outcome.NeedsConfirmation {
		fmt.Printf("Unanswered questions: %v\n", outcome.Unanswered)
		if !strings.EqualFold(a.prompt("Submit anyway? [y/N] "), "y") {
			ctrl.CancelSubmit()
			return false
		}
		attempt, err := ctrl.ConfirmSubmit(ctx)
		if err != nil {
			if errors.Is(err, session.ErrNotActive) {
				return false
			}
			fmt.Printf("Submission failed: %v — your answers are kept, try again.\n", err)
			return false
		}
		a.renderResult(attempt)
		return true
	}

	a.renderResult(outcome.Attempt)
	return true
}

func (a *app) renderResult(attempt *model.Attempt) {
	fmt.Println("\nExam submitted.")
	if attempt == nil {
		return
	}
	if attempt.Score != nil {
		fmt.Printf("Score: %.1f\n", *attempt.Score)
	} else {
		fmt.Println("Score: pending grading — check the results view later.")
	}
}

// watchEvents surfaces timer notifications while the main loop waits on
// stdin.
func (a *app) watchEvents(ctrl *session.Controller) {
	for {
		var ev session.Event
		select {
		case <-ctrl.Done():
			return
		case ev = <-ctrl.Events():
		}
		switch ev.Kind {
		case session.EventWarning:
			fmt.Printf("\n⚠ time is running out: %s remaining\n", formatClock(ev.Remaining))
		case session.EventAutoSubmit:
			fmt.Println("\nTime is up — submitting your answers.")
		case session.EventSubmitted:
			if ev.Attempt != nil && ev.Attempt.SubmittedAt != nil {
				fmt.Println("Submission acknowledged. Press enter to continue.")
			}
		case session.EventSubmitFailed:
			fmt.Printf("\nSubmission failed: %v — answers are kept, submit again.\n", ev.Err)
		}
	}
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
