package mockapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-client/internal/api"
	"github.com/stemsi/exstem-client/internal/model"
)

const contextKeyClaims = "claims"

// Handler serves the mock platform API.
type Handler struct {
	store  *Store
	tokens *TokenService
	log    zerolog.Logger
}

// NewHandler creates the handler set.
func NewHandler(store *Store, tokens *TokenService, log zerolog.Logger) *Handler {
	return &Handler{
		store:  store,
		tokens: tokens,
		log:    log.With().Str("component", "mockapi").Logger(),
	}
}

// requireAuth validates the bearer token and stores the claims.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				tokenStr = parts[1]
			}
		}
		if tokenStr == "" {
			api.AbortFail(c, http.StatusUnauthorized, "Authentication token required.")
			return
		}

		claims, err := h.tokens.Validate(tokenStr)
		if err != nil {
			api.AbortFail(c, http.StatusUnauthorized, "Authentication token is invalid or expired.")
			return
		}

		c.Set(contextKeyClaims, claims)
		c.Next()
	}
}

func getClaims(c *gin.Context) *Claims {
	val, exists := c.Get(contextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		api.Fail(c, http.StatusNotFound, "Resource not found.")
		return 0, false
	}
	return id, true
}

// ─── Auth ───────────────────────────────────────────────────────────────

// Login handles POST /login. The auth endpoints answer unwrapped, matching
// the upstream API.
func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := bind(c, &req); fields != nil {
		api.FailWithFields(c, http.StatusUnprocessableEntity, "Validation failed.", fields)
		return
	}

	user, err := h.store.Authenticate(req.Email, req.Password)
	if err != nil {
		api.Fail(c, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		h.log.Error().Err(err).Msg("Token issue failed")
		api.Fail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	c.JSON(http.StatusOK, model.AuthResponse{User: *user, Token: token, Message: "Logged in."})
}

// Register handles POST /register.
func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := bind(c, &req); fields != nil {
		api.FailWithFields(c, http.StatusUnprocessableEntity, "Validation failed.", fields)
		return
	}

	user, err := h.store.CreateUser(req.Name, req.Username, req.Email, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			api.FailWithFields(c, http.StatusUnprocessableEntity, "Validation failed.",
				map[string][]string{"email": {"The email has already been taken."}})
			return
		}
		h.log.Error().Err(err).Msg("User creation failed")
		api.Fail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		h.log.Error().Err(err).Msg("Token issue failed")
		api.Fail(c, http.StatusInternalServerError, "Internal server error.")
		return
	}

	c.JSON(http.StatusCreated, model.AuthResponse{User: *user, Token: token, Message: "Registered."})
}

// Me handles GET /me.
func (h *Handler) Me(c *gin.Context) {
	claims := getClaims(c)
	user, err := h.store.UserByID(claims.UserID)
	if err != nil {
		api.Fail(c, http.StatusUnauthorized, "Unknown user.")
		return
	}
	api.Success(c, http.StatusOK, user)
}

// Logout handles POST /logout. Tokens are stateless here, so this only
// acknowledges; the client clears its own state.
func (h *Handler) Logout(c *gin.Context) {
	api.SuccessWithMessage(c, http.StatusOK, nil, "Logged out.")
}

// ─── Exams ──────────────────────────────────────────────────────────────

// ListExams handles GET /exams.
func (h *Handler) ListExams(c *gin.Context) {
	api.Success(c, http.StatusOK, h.store.ListExams())
}

// GetExam handles GET /exams/:examId.
func (h *Handler) GetExam(c *gin.Context) {
	examID, ok := idParam(c, "examId")
	if !ok {
		return
	}

	exam, err := h.store.ExamByID(examID)
	if err != nil {
		api.Fail(c, http.StatusNotFound, "Exam not found.")
		return
	}
	api.Success(c, http.StatusOK, exam)
}

// StartExam handles POST /exams/:examId/start.
func (h *Handler) StartExam(c *gin.Context) {
	examID, ok := idParam(c, "examId")
	if !ok {
		return
	}
	claims := getClaims(c)

	attempt, exam, err := h.store.StartAttempt(examID, claims.UserID)
	if err != nil {
		api.Fail(c, http.StatusNotFound, "Exam not found.")
		return
	}
	api.Success(c, http.StatusOK, model.StartExamResult{ExamAttempt: *attempt, Exam: *exam})
}

// ExamResults handles GET /exams/:examId/results (admin only).
func (h *Handler) ExamResults(c *gin.Context) {
	claims := getClaims(c)
	if claims.Role != model.RoleAdmin {
		api.Fail(c, http.StatusForbidden, "Administrator access only.")
		return
	}

	examID, ok := idParam(c, "examId")
	if !ok {
		return
	}
	api.Success(c, http.StatusOK, h.store.ResultsForExam(examID))
}

// ─── Attempts ───────────────────────────────────────────────────────────

// SaveAnswer handles POST /attempts/:attemptId/answer — an idempotent
// per-question upsert. The response body carries no data the client needs.
func (h *Handler) SaveAnswer(c *gin.Context) {
	attemptID, ok := idParam(c, "attemptId")
	if !ok {
		return
	}
	claims := getClaims(c)

	var answer model.Answer
	if fields := bind(c, &answer); fields != nil {
		api.FailWithFields(c, http.StatusUnprocessableEntity, "Validation failed.", fields)
		return
	}

	if err := h.store.SaveAnswer(attemptID, claims.UserID, answer); err != nil {
		h.failAttempt(c, err)
		return
	}
	api.SuccessWithMessage(c, http.StatusOK, nil, "Answer saved.")
}

// GetAttempt handles GET /attempts/:attemptId.
func (h *Handler) GetAttempt(c *gin.Context) {
	attemptID, ok := idParam(c, "attemptId")
	if !ok {
		return
	}
	claims := getClaims(c)

	attempt, err := h.store.AttemptByID(attemptID, claims.UserID)
	if err != nil {
		h.failAttempt(c, err)
		return
	}
	api.Success(c, http.StatusOK, attempt)
}

// SubmitAttempt handles POST /attempts/:attemptId/submit.
func (h *Handler) SubmitAttempt(c *gin.Context) {
	attemptID, ok := idParam(c, "attemptId")
	if !ok {
		return
	}
	claims := getClaims(c)

	var req model.SubmitRequest
	if fields := bind(c, &req); fields != nil {
		api.FailWithFields(c, http.StatusUnprocessableEntity, "Validation failed.", fields)
		return
	}

	attempt, err := h.store.Submit(attemptID, claims.UserID, req.Answers)
	if err != nil {
		h.failAttempt(c, err)
		return
	}
	api.SuccessWithMessage(c, http.StatusOK, attempt, "Exam submitted.")
}

// Results handles GET /results.
func (h *Handler) Results(c *gin.Context) {
	claims := getClaims(c)
	api.Success(c, http.StatusOK, h.store.ResultsFor(claims.UserID))
}

func (h *Handler) failAttempt(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		api.Fail(c, http.StatusNotFound, "Attempt not found.")
	case errors.Is(err, ErrForbidden):
		api.Fail(c, http.StatusForbidden, "This attempt belongs to another user.")
	case errors.Is(err, ErrAlreadySubmitted):
		api.Fail(c, http.StatusConflict, "This attempt was already submitted.")
	default:
		h.log.Error().Err(err).Msg("Attempt operation failed")
		api.Fail(c, http.StatusInternalServerError, "Internal server error.")
	}
}
