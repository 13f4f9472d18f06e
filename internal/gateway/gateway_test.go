package gateway_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-client/internal/api"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/gateway"
	"github.com/stemsi/exstem-client/internal/mockapi"
	"github.com/stemsi/exstem-client/internal/model"
)

// tokenHolder is a settable TokenSource for tests.
type tokenHolder struct {
	mu    sync.Mutex
	token string
}

func (h *tokenHolder) Token() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token
}

func (h *tokenHolder) set(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
}

// newTestClient spins up the mock API with seeded data and a gateway client
// pointed at it.
func newTestClient(t *testing.T) (*gateway.Client, *tokenHolder) {
	t.Helper()

	cfg := &config.Config{
		GinMode:   "test",
		JWTSecret: "gateway-test-secret",
		JWTExpiry: time.Hour,
	}
	store := mockapi.NewStore(0)
	mockapi.Seed(store, zerolog.Nop())

	srv := httptest.NewServer(mockapi.NewServer(cfg, store, zerolog.Nop()))
	t.Cleanup(srv.Close)

	tokens := &tokenHolder{}
	client := gateway.New(srv.URL+"/api", 5*time.Second, tokens, zerolog.Nop())
	return client, tokens
}

func loginStudent(t *testing.T, client *gateway.Client, tokens *tokenHolder) *model.User {
	t.Helper()
	resp, err := client.Login(context.Background(), model.LoginRequest{
		Email:    "student@example.com",
		Password: "password123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	tokens.set(resp.Token)
	return &resp.User
}

func TestLoginAndMe(t *testing.T) {
	client, tokens := newTestClient(t)
	ctx := context.Background()

	user := loginStudent(t, client, tokens)
	require.Equal(t, model.RoleStudent, user.Role)
	require.Equal(t, "student@example.com", user.Email)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, user.ID, me.ID)
	require.Equal(t, user.Email, me.Email)
}

func TestLoginInvalidCredentials(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Login(context.Background(), model.LoginRequest{
		Email:    "student@example.com",
		Password: "wrong-password",
	})
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
}

func TestRegister(t *testing.T) {
	client, tokens := newTestClient(t)
	ctx := context.Background()

	req := model.RegisterRequest{
		Name:                 "New Student",
		Username:             "newbie",
		Email:                "new@example.com",
		Password:             "secret123",
		PasswordConfirmation: "secret123",
		Role:                 model.RoleStudent,
	}
	resp, err := client.Register(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.Equal(t, model.RoleStudent, resp.User.Role)
	tokens.set(resp.Token)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "new@example.com", me.Email)

	// Duplicate registration surfaces the validation field errors.
	_, err = client.Register(ctx, req)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 422, apiErr.Status)
	require.Contains(t, apiErr.Fields, "email")
}

func TestUnauthorizedFiresHook(t *testing.T) {
	client, _ := newTestClient(t)

	var hookFired bool
	client.SetUnauthorizedHook(func() { hookFired = true })

	_, err := client.ListExams(context.Background())
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
	require.True(t, hookFired, "401 must invoke the unauthorized hook")
}

func TestFetchExamNotFound(t *testing.T) {
	client, tokens := newTestClient(t)
	loginStudent(t, client, tokens)

	_, err := client.FetchExam(context.Background(), 999)
	require.ErrorIs(t, err, gateway.ErrNotFound)
}

func TestExamAttemptLifecycle(t *testing.T) {
	client, tokens := newTestClient(t)
	ctx := context.Background()
	loginStudent(t, client, tokens)

	exams, err := client.ListExams(ctx)
	require.NoError(t, err)
	require.Len(t, exams, 2)
	for _, e := range exams {
		require.Empty(t, e.Questions, "the listing must not carry question payloads")
	}

	// The auto-gradable quiz: one multiple choice, one true/false.
	exam, err := client.FetchExam(ctx, 2)
	require.NoError(t, err)
	require.Len(t, exam.Questions, 2)
	require.Equal(t, model.QuestionMultipleChoice, exam.Questions[0].QuestionType)
	require.Len(t, exam.Questions[0].Choices, 4)

	started, err := client.StartAttempt(ctx, 2)
	require.NoError(t, err)
	attemptID := started.ExamAttempt.ID
	require.Positive(t, attemptID)
	require.Equal(t, "HTTP Quick Check", started.Exam.Title)

	// Starting again resumes the same unsubmitted attempt.
	again, err := client.StartAttempt(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, attemptID, again.ExamAttempt.ID)

	// Incremental save, then read the answers back as a resume would.
	err = client.SaveAnswer(ctx, attemptID, model.Answer{QuestionID: 201, Value: model.ChoiceValue(2002)})
	require.NoError(t, err)

	attempt, err := client.FetchAttempt(ctx, attemptID)
	require.NoError(t, err)
	require.Len(t, attempt.Answers, 1)
	require.Equal(t, int64(201), attempt.Answers[0].QuestionID)
	id, isChoice := attempt.Answers[0].Value.ChoiceID()
	require.True(t, isChoice)
	require.Equal(t, int64(2002), id)

	// Full submission with both answers correct scores 10 + 5.
	final, err := client.SubmitAttempt(ctx, attemptID, []model.Answer{
		{QuestionID: 201, Value: model.ChoiceValue(2002)},
		{QuestionID: 202, Value: model.BoolValue(true)},
	})
	require.NoError(t, err)
	require.NotNil(t, final.SubmittedAt)
	require.NotNil(t, final.Score)
	require.Equal(t, 15.0, *final.Score)

	results, err := client.FetchResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, attemptID, results[0].ID)

	// The attempt is closed now; further saves are rejected.
	err = client.SaveAnswer(ctx, attemptID, model.Answer{QuestionID: 201, Value: model.ChoiceValue(2001)})
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 409, apiErr.Status)
	require.False(t, apiErr.Retryable())
}

func TestEssayExamScorePending(t *testing.T) {
	client, tokens := newTestClient(t)
	ctx := context.Background()
	loginStudent(t, client, tokens)

	started, err := client.StartAttempt(ctx, 1)
	require.NoError(t, err)

	final, err := client.SubmitAttempt(ctx, started.ExamAttempt.ID, []model.Answer{
		{QuestionID: 101, Value: model.ChoiceValue(1002)},
		{QuestionID: 102, Value: model.BoolValue(false)},
		{QuestionID: 103, Value: model.TextValue("Buffered channels decouple sender and receiver pacing.")},
	})
	require.NoError(t, err)
	require.NotNil(t, final.SubmittedAt)
	require.Nil(t, final.Score, "essay exams stay ungraded")
}

func TestExamResultsRequiresAdmin(t *testing.T) {
	client, tokens := newTestClient(t)
	ctx := context.Background()
	loginStudent(t, client, tokens)

	_, err := client.FetchExamResults(ctx, 1)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 403, apiErr.Status)

	resp, err := client.Login(ctx, model.LoginRequest{Email: "admin@example.com", Password: "admin123"})
	require.NoError(t, err)
	tokens.set(resp.Token)

	attempts, err := client.FetchExamResults(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, attempts)
}
