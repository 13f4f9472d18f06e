package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/stemsi/exstem-client/internal/auth"
	"github.com/stemsi/exstem-client/internal/config"
	"github.com/stemsi/exstem-client/internal/gateway"
	"github.com/stemsi/exstem-client/internal/logger"
	"github.com/stemsi/exstem-client/internal/model"
)

// app bundles the wired client pieces for the interactive loop.
type app struct {
	cfg  *config.Config
	log  zerolog.Logger
	auth *auth.Context
	gw   *gateway.Client
	in   *bufio.Reader
}

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── Wire Auth Context and Gateway ─────────────────────────────────
	// The auth context hydrates from the persisted token first, then the
	// gateway uses it as token source and reports 401s back into it.
	authCtx := auth.NewContext(auth.NewStore(cfg.TokenFile), log)
	gw := gateway.New(cfg.APIBaseURL, cfg.HTTPTimeout, authCtx, log)
	gw.SetUnauthorizedHook(authCtx.ForceLogout)
	authCtx.AttachGateway(gw)

	a := &app{
		cfg:  cfg,
		log:  log,
		auth: authCtx,
		gw:   gw,
		in:   bufio.NewReader(os.Stdin),
	}

	ctx := context.Background()

	if !a.auth.IsAuthenticated() {
		if !a.loginFlow(ctx) {
			return
		}
	}

	user := a.auth.CurrentUser()
	fmt.Printf("\nWelcome, %s (%s)\n", user.Name, user.Role)

	if a.auth.IsAdmin() {
		a.adminDashboard(ctx)
		return
	}
	a.studentMenu(ctx)
}

// ─── Auth flows ─────────────────────────────────────────────────────────

func (a *app) loginFlow(ctx context.Context) bool {
	for {
		fmt.Println("\n=== Exam Platform ===")
		fmt.Println("[1] Login")
		fmt.Println("[2] Register")
		fmt.Println("[q] Quit")

		switch a.prompt("> ") {
		case "1":
			if a.login(ctx) {
				return true
			}
		case "2":
			if a.register(ctx) {
				return true
			}
		case "q":
			return false
		}
	}
}

func (a *app) login(ctx context.Context) bool {
	email := a.prompt("Email: ")
	password, ok := a.promptPassword("Password: ")
	if !ok {
		return false
	}

	_, err := a.auth.Login(ctx, model.LoginRequest{Email: email, Password: password})
	if err != nil {
		fmt.Printf("Login failed: %v\n", err)
		return false
	}
	return true
}

func (a *app) register(ctx context.Context) bool {
	name := a.prompt("Name: ")
	username := a.prompt("Username: ")
	email := a.prompt("Email: ")
	password, ok := a.promptPassword("Password: ")
	if !ok {
		return false
	}
	confirm, ok := a.promptPassword("Confirm password: ")
	if !ok {
		return false
	}

	_, err := a.auth.Register(ctx, model.RegisterRequest{
		Name:                 name,
		Username:             username,
		Email:                email,
		Password:             password,
		PasswordConfirmation: confirm,
		Role:                 model.RoleStudent,
	})
	if err != nil {
		fmt.Printf("Registration failed: %v\n", err)
		return false
	}
	return true
}

// ─── Student menu ───────────────────────────────────────────────────────

func (a *app) studentMenu(ctx context.Context) {
	for {
		if !a.auth.IsAuthenticated() {
			fmt.Println("Session expired, please log in again.")
			return
		}

		fmt.Println("\n=== Dashboard ===")
		fmt.Println("[1] Available exams")
		fmt.Println("[2] Take an exam")
		fmt.Println("[3] My results")
		fmt.Println("[4] Logout")
		fmt.Println("[q] Quit")

		switch a.prompt("> ") {
		case "1":
			a.listExams(ctx)
		case "2":
			a.startExamFlow(ctx)
		case "3":
			a.showResults(ctx)
		case "4":
			if err := a.auth.Logout(ctx); err != nil {
				a.log.Warn().Err(err).Msg("Logout call failed")
			}
			fmt.Println("Logged out.")
			return
		case "q":
			return
		}
	}
}

func (a *app) listExams(ctx context.Context) {
	exams, err := a.gw.ListExams(ctx)
	if err != nil {
		fmt.Printf("Could not load exams: %v\n", err)
		return
	}
	if len(exams) == 0 {
		fmt.Println("No exams available.")
		return
	}
	fmt.Println("\nID  Duration  Title")
	for _, e := range exams {
		fmt.Printf("%-3d %3d min   %s\n", e.ID, e.Duration, e.Title)
	}
}

func (a *app) startExamFlow(ctx context.Context) {
	examID, err := strconv.ParseInt(a.prompt("Exam id: "), 10, 64)
	if err != nil || examID <= 0 {
		fmt.Println("Invalid exam id.")
		return
	}

	// Details view before committing to an attempt.
	exam, err := a.gw.FetchExam(ctx, examID)
	if err != nil {
		fmt.Printf("Could not load exam: %v\n", err)
		return
	}
	fmt.Printf("\n%s\n%s\nDuration: %d minutes, %d questions\n",
		exam.Title, exam.Description, exam.Duration, len(exam.Questions))
	if !strings.EqualFold(a.prompt("Start the exam now? [y/N] "), "y") {
		return
	}

	started, err := a.gw.StartAttempt(ctx, examID)
	if err != nil {
		fmt.Printf("Could not start attempt: %v\n", err)
		return
	}

	a.runExam(ctx, examID, started.ExamAttempt.ID)
}

func (a *app) showResults(ctx context.Context) {
	attempts, err := a.gw.FetchResults(ctx)
	if err != nil {
		fmt.Printf("Could not load results: %v\n", err)
		return
	}
	if len(attempts) == 0 {
		fmt.Println("No results yet.")
		return
	}
	fmt.Println("\nAttempt  Exam  Submitted            Score")
	for _, at := range attempts {
		submitted := "in progress"
		if at.SubmittedAt != nil {
			submitted = at.SubmittedAt.Format("2006-01-02 15:04")
		}
		score := "pending"
		if at.Score != nil {
			score = strconv.FormatFloat(*at.Score, 'f', 1, 64)
		}
		fmt.Printf("%-8d %-5d %-20s %s\n", at.ID, at.ExamID, submitted, score)
	}
}

// ─── Admin placeholder ──────────────────────────────────────────────────

func (a *app) adminDashboard(ctx context.Context) {
	fmt.Println("\n=== Admin Dashboard ===")
	fmt.Println("Management tooling is not built yet; exam results are available.")

	for {
		input := a.prompt("Exam id for results ([q] to quit): ")
		if input == "q" || input == "" {
			return
		}
		examID, err := strconv.ParseInt(input, 10, 64)
		if err != nil || examID <= 0 {
			fmt.Println("Invalid exam id.")
			continue
		}
		attempts, err := a.gw.FetchExamResults(ctx, examID)
		if err != nil {
			fmt.Printf("Could not load results: %v\n", err)
			continue
		}
		fmt.Printf("%d attempt(s)\n", len(attempts))
		for _, at := range attempts {
			score := "pending"
			if at.Score != nil {
				score = strconv.FormatFloat(*at.Score, 'f', 1, 64)
			}
			fmt.Printf("  attempt %d by user %d: %s\n", at.ID, at.UserID, score)
		}
	}
}

// ─── Input helpers ──────────────────────────────────────────────────────

func (a *app) prompt(label string) string {
	fmt.Print(label)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (a *app) promptPassword(label string) (string, bool) {
	fmt.Print(label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fmt.Println("Could not read password")
		return "", false
	}
	return string(raw), true
}
