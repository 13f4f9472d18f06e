package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stemsi/exstem-client/internal/model"
)

// Controller is the exam-taking session state machine. All mutations are
// serialized under one mutex, so the timer tick and user actions can never
// race; network calls happen outside the lock.
type Controller struct {
	gw   Gateway
	opts Options

	mu             sync.Mutex
	state          State
	examID         int64
	attemptID      int64
	exam           *model.Exam
	questionByID   map[int64]*model.Question
	current        int
	remaining      int // seconds
	answers        map[int64]model.Value
	warnShown      bool
	confirmPending bool
	timerStopped   bool

	events   chan Event
	stop     chan struct{}
	stopOnce sync.Once
	saves    sync.WaitGroup
}

// New creates a controller in the Loading state.
func New(gw Gateway, opts Options) *Controller {
	if opts.WarningThreshold <= 0 {
		opts.WarningThreshold = 5 * time.Minute
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	return &Controller{
		gw:           gw,
		opts:         opts,
		state:        StateLoading,
		questionByID: make(map[int64]*model.Question),
		answers:      make(map[int64]model.Value),
		events:       make(chan Event, 16),
		stop:         make(chan struct{}),
	}
}

// Events exposes controller notifications for the presentation layer.
func (c *Controller) Events() <-chan Event { return c.events }

// Done is closed when the session is torn down; event consumers select on
// it to stop.
func (c *Controller) Done() <-chan struct{} { return c.stop }

// Load fetches the exam and any previously recorded answers for the
// attempt, then activates the session with remaining time set to the full
// exam duration. Both identifiers must be positive; otherwise ErrNotFound
// is returned and no session starts.
func (c *Controller) Load(ctx context.Context, examID, attemptID int64) error {
	if examID <= 0 || attemptID <= 0 {
		return ErrNotFound
	}

	c.mu.Lock()
	if c.state != StateLoading {
		c.mu.Unlock()
		return fmt.Errorf("session already loaded (state %s)", c.state)
	}
	c.mu.Unlock()

	exam, err := c.gw.FetchExam(ctx, examID)
	if err != nil {
		return fmt.Errorf("load exam %d: %w", examID, err)
	}

	// Resuming after a reload: previously persisted answers are folded
	// back into the cache so answered markers survive. Failures here are
	// non-fatal; the local cache simply starts empty.
	var resumed []model.Answer
	if attempt, err := c.gw.FetchAttempt(ctx, attemptID); err != nil {
		c.opts.Logger.Warn().Err(err).Int64("attempt_id", attemptID).
			Msg("Could not load existing answers")
	} else {
		resumed = attempt.Answers
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.examID = examID
	c.attemptID = attemptID
	c.exam = exam
	for i := range exam.Questions {
		q := &exam.Questions[i]
		c.questionByID[q.ID] = q
	}
	c.remaining = exam.Duration * 60

	for _, ans := range resumed {
		q, ok := c.questionByID[ans.QuestionID]
		if !ok {
			continue
		}
		value, err := ans.Value.CoerceTo(q.QuestionType)
		if err != nil || value.IsEmpty() {
			continue
		}
		c.answers[ans.QuestionID] = value
	}

	c.state = StateActive
	return nil
}

// Start runs the countdown until the session ends or ctx is cancelled.
// Call in a goroutine after a successful Load.
func (c *Controller) Start(ctx context.Context) {
	ticker := time.NewTicker(c.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// Close tears the session down: the timer is cancelled and any submit
// response still in flight becomes a no-op. Idempotent.
func (c *Controller) Close() {
	c.stopOnce.Do(func() { close(c.stop) })

	c.mu.Lock()
	if c.state != StateSubmitted {
		c.state = StateClosed
	}
	c.mu.Unlock()
}

// ─── Answer capture ─────────────────────────────────────────────────────

// RecordAnswer validates the value against the question's declared type and
// overwrites any prior answer for that question (last-write-wins). The
// answer is persisted to the gateway fire-and-forget: a save failure is
// logged and never blocks the student, because the final submit payload is
// self-contained. An empty value clears the recorded answer.
func (c *Controller) RecordAnswer(questionID int64, value model.Value) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNotActive
	}
	q, ok := c.questionByID[questionID]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}

	coerced, err := value.CoerceTo(q.QuestionType)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("record answer for question %d: %w", questionID, err)
	}

	if coerced.IsEmpty() {
		delete(c.answers, questionID)
		c.mu.Unlock()
		return nil
	}

	c.answers[questionID] = coerced
	attemptID := c.attemptID
	c.mu.Unlock()

	// The save response is never read back: a stale response arriving
	// after a newer edit must not clobber local state, so local state
	// stays authoritative and the server is treated as an idempotent
	// per-question upsert.
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		ans := model.Answer{QuestionID: questionID, Value: coerced}
		if err := c.gw.SaveAnswer(context.Background(), attemptID, ans); err != nil {
			c.opts.Logger.Warn().Err(err).
				Int64("question_id", questionID).
				Msg("Answer autosave failed")
		}
	}()
	return nil
}

// AnswerFor returns the cached answer for a question id.
func (c *Controller) AnswerFor(questionID int64) (model.Value, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.answers[questionID]
	return v, ok
}

// IsQuestionAnswered reports whether the question at the given 0-based
// index has a non-empty recorded answer.
func (c *Controller) IsQuestionAnswered(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exam == nil || index < 0 || index >= len(c.exam.Questions) {
		return false
	}
	v, ok := c.answers[c.exam.Questions[index].ID]
	return ok && !v.IsEmpty()
}

// Unanswered returns the 1-based positions of questions with no recorded
// answer, in question order.
func (c *Controller) Unanswered() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unansweredLocked()
}

func (c *Controller) unansweredLocked() []int {
	if c.exam == nil {
		return nil
	}
	var positions []int
	for i := range c.exam.Questions {
		v, ok := c.answers[c.exam.Questions[i].ID]
		if !ok || v.IsEmpty() {
			positions = append(positions, i+1)
		}
	}
	return positions
}

// ─── Navigation ─────────────────────────────────────────────────────────

// GoToQuestion switches the current question. Out-of-range indexes are a
// no-op. Switching never discards an in-progress edit: capture happens on
// every edit event, not on navigation.
func (c *Controller) GoToQuestion(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateActive || c.exam == nil {
		return
	}
	if index < 0 || index >= len(c.exam.Questions) {
		return
	}
	c.current = index
}

// NextQuestion advances to the next question if one exists.
func (c *Controller) NextQuestion() {
	c.mu.Lock()
	idx := c.current + 1
	c.mu.Unlock()
	c.GoToQuestion(idx)
}

// PreviousQuestion moves back one question if possible.
func (c *Controller) PreviousQuestion() {
	c.mu.Lock()
	idx := c.current - 1
	c.mu.Unlock()
	c.GoToQuestion(idx)
}

// CurrentQuestion returns the question under the cursor, or nil before
// load. The exam is immutable for the session, so sharing the pointer with
// the presentation layer is safe.
func (c *Controller) CurrentQuestion() *model.Question {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exam == nil || c.current >= len(c.exam.Questions) {
		return nil
	}
	return &c.exam.Questions[c.current]
}

// Exam returns the loaded exam, or nil.
func (c *Controller) Exam() *model.Exam {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exam
}

// Snapshot returns a consistent view of the session for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:          c.state,
		CurrentIndex:   c.current,
		Remaining:      c.remaining,
		WarningShown:   c.warnShown,
		ConfirmPending: c.confirmPending,
		Unanswered:     c.unansweredLocked(),
	}
	if c.exam != nil {
		snap.ExamTitle = c.exam.Title
		snap.TotalQuestions = len(c.exam.Questions)
	}
	return snap
}

// ─── Submission ─────────────────────────────────────────────────────────

// RequestSubmit starts a user-initiated submission. With unanswered
// questions present it only enters the confirmation-pending sub-state and
// reports the unanswered positions; with none it submits immediately.
// Returns ErrNotActive when no submission is possible (already submitting,
// already submitted, not loaded) — a manual submit racing a timer expiry
// in the same tick resolves to a no-op here.
func (c *Controller) RequestSubmit(ctx context.Context) (*SubmitOutcome, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return nil, ErrNotActive
	}

	if unanswered := c.unansweredLocked(); len(unanswered) > 0 {
		c.confirmPending = true
		c.mu.Unlock()
		return &SubmitOutcome{NeedsConfirmation: true, Unanswered: unanswered}, nil
	}

	c.beginSubmitLocked()
	c.mu.Unlock()

	attempt, err := c.finishSubmit(ctx)
	if err != nil {
		return nil, err
	}
	return &SubmitOutcome{Attempt: attempt}, nil
}

// ConfirmSubmit proceeds with the submission after the unanswered-questions
// confirmation.
func (c *Controller) ConfirmSubmit(ctx context.Context) (*model.Attempt, error) {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	c.beginSubmitLocked()
	c.mu.Unlock()

	return c.finishSubmit(ctx)
}

// CancelSubmit leaves the confirmation-pending sub-state. The timer keeps
// whatever state it had: it only ever stops when a submission begins, so a
// normal cancellation leaves it running while a cancel after a failed
// submit leaves it stopped.
func (c *Controller) CancelSubmit() {
	c.mu.Lock()
	c.confirmPending = false
	c.mu.Unlock()
}

// beginSubmitLocked atomically claims the single submission slot: entering
// Submitting disables the timer callback's and the user's submit paths at
// once.
func (c *Controller) beginSubmitLocked() {
	c.state = StateSubmitting
	c.confirmPending = false
	c.timerStopped = true
}

// finishSubmit sends the full current answer set as one payload. On failure
// the session returns to Active with every local answer intact and the
// timer left stopped; the user must re-submit explicitly.
func (c *Controller) finishSubmit(ctx context.Context) (*model.Attempt, error) {
	c.mu.Lock()
	attemptID := c.attemptID
	payload := c.answerPayloadLocked()
	c.mu.Unlock()

	attempt, err := c.gw.SubmitAttempt(ctx, attemptID, payload)

	c.mu.Lock()
	if c.state == StateClosed {
		// The view was torn down while the request was in flight.
		c.mu.Unlock()
		return nil, ErrNotActive
	}
	if err != nil {
		c.state = StateActive
		c.mu.Unlock()
		c.emit(Event{Kind: EventSubmitFailed, Err: err})
		return nil, fmt.Errorf("submit attempt %d: %w", attemptID, err)
	}
	c.state = StateSubmitted
	c.mu.Unlock()

	c.emit(Event{Kind: EventSubmitted, Attempt: attempt})
	return attempt, nil
}

// answerPayloadLocked assembles the submission payload in question order.
func (c *Controller) answerPayloadLocked() []model.Answer {
	if c.exam == nil {
		return []model.Answer{}
	}
	payload := make([]model.Answer, 0, len(c.answers))
	for i := range c.exam.Questions {
		qid := c.exam.Questions[i].ID
		if v, ok := c.answers[qid]; ok && !v.IsEmpty() {
			payload = append(payload, model.Answer{QuestionID: qid, Value: v})
		}
	}
	return payload
}

// ─── Countdown ──────────────────────────────────────────────────────────

// tick advances the countdown by one interval. Crossing the warning
// threshold notifies once; reaching zero auto-submits exactly once,
// unconditionally and without confirmation.
func (c *Controller) tick() {
	c.mu.Lock()
	if c.state != StateActive || c.timerStopped {
		c.mu.Unlock()
		return
	}

	if c.remaining > 0 {
		c.remaining--
	}
	remaining := c.remaining

	warn := false
	if !c.warnShown && time.Duration(remaining)*time.Second <= c.opts.WarningThreshold {
		c.warnShown = true
		warn = true
	}

	expired := remaining <= 0
	if expired {
		c.beginSubmitLocked()
	}
	c.mu.Unlock()

	c.emit(Event{Kind: EventTick, Remaining: remaining})
	if warn {
		c.emit(Event{Kind: EventWarning, Remaining: remaining})
	}
	if expired {
		c.emit(Event{Kind: EventAutoSubmit, Remaining: remaining})
		// The in-flight request deliberately outlives any caller scope;
		// it is bounded by the gateway's own HTTP timeout.
		if _, err := c.finishSubmit(context.Background()); err != nil {
			c.opts.Logger.Error().Err(err).Msg("Auto-submit failed")
		}
	}
}

// emit delivers an event without ever blocking the control flow. A slow
// reader only loses notifications, never state: the snapshot stays exact.
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
	}
}
