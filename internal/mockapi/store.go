package mockapi

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stemsi/exstem-client/internal/model"
)

// Common store errors.
var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrForbidden          = errors.New("attempt belongs to another user")
)

// Store is the in-memory stand-in for the platform database. It exists so
// the client can be developed and tested without the real backend; nothing
// survives a restart on purpose.
type Store struct {
	mu sync.RWMutex

	users        map[int64]*userRecord
	usersByEmail map[string]int64
	exams        map[int64]*examRecord
	attempts     map[int64]*attemptRecord

	nextUserID    int64
	nextAttemptID int64

	bcryptCost int
}

type userRecord struct {
	model.User
	passwordHash []byte
}

// examRecord keeps the correctness map separate from the wire exam, so the
// correct choice ids never leave the server during an active attempt.
type examRecord struct {
	exam model.Exam
	// correct maps question id to the correct choice id (multiple_choice)
	// or to 1/0 for true_false.
	correct map[int64]int64
	points  map[int64]int
}

type attemptRecord struct {
	attempt model.Attempt
	answers map[int64]model.Value
}

// NewStore creates an empty store.
func NewStore(bcryptCost int) *Store {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.MinCost
	}
	return &Store{
		users:        make(map[int64]*userRecord),
		usersByEmail: make(map[string]int64),
		exams:        make(map[int64]*examRecord),
		attempts:     make(map[int64]*attemptRecord),
		bcryptCost:   bcryptCost,
	}
}

// ─── Users ──────────────────────────────────────────────────────────────

// CreateUser registers a user with a bcrypt-hashed password.
func (s *Store) CreateUser(name, username, email, password string, role model.Role) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByEmail[email]; taken {
		return nil, ErrEmailTaken
	}

	s.nextUserID++
	now := time.Now().UTC()
	rec := &userRecord{
		User: model.User{
			ID:        s.nextUserID,
			Name:      name,
			Username:  username,
			Email:     email,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		},
		passwordHash: hash,
	}
	s.users[rec.ID] = rec
	s.usersByEmail[email] = rec.ID

	u := rec.User
	return &u, nil
}

// Authenticate checks credentials and returns the user.
func (s *Store) Authenticate(email, password string) (*model.User, error) {
	s.mu.RLock()
	id, ok := s.usersByEmail[email]
	var rec *userRecord
	if ok {
		rec = s.users[id]
	}
	s.mu.RUnlock()

	if rec == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	u := rec.User
	return &u, nil
}

// UserByID returns a user by id.
func (s *Store) UserByID(id int64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u := rec.User
	return &u, nil
}

// ─── Exams ──────────────────────────────────────────────────────────────

// AddExam stores an exam together with its server-only correctness map.
func (s *Store) AddExam(exam model.Exam, correct map[int64]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := make(map[int64]int, len(exam.Questions))
	for _, q := range exam.Questions {
		points[q.ID] = q.Points
	}
	exam.QuestionsCount = len(exam.Questions)
	s.exams[exam.ID] = &examRecord{exam: exam, correct: correct, points: points}
}

// ListExams returns all exams without their question payloads.
func (s *Store) ListExams() []model.Exam {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Exam, 0, len(s.exams))
	for _, rec := range s.exams {
		e := rec.exam
		e.Questions = nil
		out = append(out, e)
	}
	return out
}

// ExamByID returns an exam with questions and choices.
func (s *Store) ExamByID(id int64) (*model.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.exams[id]
	if !ok {
		return nil, ErrNotFound
	}
	e := rec.exam
	return &e, nil
}

// ─── Attempts ───────────────────────────────────────────────────────────

// StartAttempt creates an attempt for the user, or returns the existing
// unsubmitted one (starting twice is idempotent).
func (s *Store) StartAttempt(examID, userID int64) (*model.Attempt, *model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	examRec, ok := s.exams[examID]
	if !ok {
		return nil, nil, ErrNotFound
	}

	for _, rec := range s.attempts {
		if rec.attempt.ExamID == examID && rec.attempt.UserID == userID && rec.attempt.SubmittedAt == nil {
			a := s.wireAttemptLocked(rec)
			e := examRec.exam
			return &a, &e, nil
		}
	}

	s.nextAttemptID++
	now := time.Now().UTC()
	rec := &attemptRecord{
		attempt: model.Attempt{
			ID:        s.nextAttemptID,
			ExamID:    examID,
			UserID:    userID,
			StartedAt: now,
			CreatedAt: now,
			UpdatedAt: now,
		},
		answers: make(map[int64]model.Value),
	}
	s.attempts[rec.attempt.ID] = rec

	a := s.wireAttemptLocked(rec)
	e := examRec.exam
	return &a, &e, nil
}

// SaveAnswer upserts one answer keyed by question id. Saving the same
// question again replaces the prior value, never merges.
func (s *Store) SaveAnswer(attemptID, userID int64, answer model.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if rec.attempt.UserID != userID {
		return ErrForbidden
	}
	if rec.attempt.SubmittedAt != nil {
		return ErrAlreadySubmitted
	}

	rec.answers[answer.QuestionID] = answer.Value
	rec.attempt.UpdatedAt = time.Now().UTC()
	return nil
}

// AttemptByID returns an attempt with its recorded answers.
func (s *Store) AttemptByID(attemptID, userID int64) (*model.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.attempt.UserID != userID {
		return nil, ErrForbidden
	}
	a := s.wireAttemptLocked(rec)
	return &a, nil
}

// Submit finalizes an attempt with the full answer payload and grades the
// auto-gradable questions. Exams containing essay questions keep a nil
// score, pending "manual" grading that never comes in the mock.
func (s *Store) Submit(attemptID, userID int64, answers []model.Answer) (*model.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.attempts[attemptID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.attempt.UserID != userID {
		return nil, ErrForbidden
	}
	if rec.attempt.SubmittedAt != nil {
		return nil, ErrAlreadySubmitted
	}

	for _, ans := range answers {
		rec.answers[ans.QuestionID] = ans.Value
	}

	now := time.Now().UTC()
	rec.attempt.SubmittedAt = &now
	rec.attempt.UpdatedAt = now

	if examRec, ok := s.exams[rec.attempt.ExamID]; ok {
		if score, gradable := grade(examRec, rec.answers); gradable {
			rec.attempt.Score = &score
		}
	}

	a := s.wireAttemptLocked(rec)
	return &a, nil
}

// ResultsFor returns the user's attempts, newest first not guaranteed.
func (s *Store) ResultsFor(userID int64) []model.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Attempt
	for _, rec := range s.attempts {
		if rec.attempt.UserID == userID {
			out = append(out, s.wireAttemptLocked(rec))
		}
	}
	return out
}

// ResultsForExam returns every attempt of one exam (admin listing).
func (s *Store) ResultsForExam(examID int64) []model.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Attempt
	for _, rec := range s.attempts {
		if rec.attempt.ExamID == examID {
			out = append(out, s.wireAttemptLocked(rec))
		}
	}
	return out
}

// wireAttemptLocked materializes the wire attempt with an answers slice.
func (s *Store) wireAttemptLocked(rec *attemptRecord) model.Attempt {
	a := rec.attempt
	if examRec, ok := s.exams[a.ExamID]; ok {
		// Answers in exam question order for stable output.
		for _, q := range examRec.exam.Questions {
			if v, ok := rec.answers[q.ID]; ok {
				a.Answers = append(a.Answers, model.Answer{QuestionID: q.ID, Value: v})
			}
		}
	}
	return a
}

// grade sums points over auto-gradable questions. Returns gradable=false
// when the exam contains an essay question with a recorded answer or not —
// essays always require manual grading.
func grade(examRec *examRecord, answers map[int64]model.Value) (float64, bool) {
	var score float64
	for _, q := range examRec.exam.Questions {
		switch q.QuestionType {
		case model.QuestionEssay:
			return 0, false
		case model.QuestionMultipleChoice:
			if v, ok := answers[q.ID]; ok {
				if id, isChoice := v.ChoiceID(); isChoice && id == examRec.correct[q.ID] {
					score += float64(q.Points)
				}
			}
		case model.QuestionTrueFalse:
			if v, ok := answers[q.ID]; ok {
				if b, isBool := v.Bool(); isBool {
					want := examRec.correct[q.ID] == 1
					if b == want {
						score += float64(q.Points)
					}
				}
			}
		}
	}
	return score, true
}
