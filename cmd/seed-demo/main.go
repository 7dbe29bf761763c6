package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/database"
	"github.com/qcmhub/qcm-backend/internal/logger"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository"
	"github.com/qcmhub/qcm-backend/internal/service"
)

// seed-demo inserts a professor, a handful of students and one question set,
// then prints a token per user so the API can be exercised by hand.
func main() {
	var students int
	var scopeID int
	flag.IntVar(&students, "students", 5, "Number of demo students")
	flag.IntVar(&scopeID, "scope", 1, "Class ID assigned to the demo students")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	authService := service.NewAuthService(cfg)

	fmt.Println("=== Seeding demo data ===")

	professor := &model.User{FirstName: "Claire", LastName: "Martin", Role: model.RoleProfessor}
	if err := userRepo.Create(ctx, professor); err != nil {
		log.Fatal().Err(err).Msg("Failed to create professor")
	}
	printToken(authService, professor)

	names := [][2]string{
		{"Lucas", "Bernard"}, {"Emma", "Dubois"}, {"Hugo", "Thomas"},
		{"Chloe", "Robert"}, {"Louis", "Richard"}, {"Lea", "Petit"},
		{"Jules", "Durand"}, {"Manon", "Leroy"}, {"Arthur", "Moreau"},
		{"Ines", "Simon"},
	}
	for i := 0; i < students; i++ {
		n := names[i%len(names)]
		scope := scopeID
		student := &model.User{FirstName: n[0], LastName: n[1], Role: model.RoleStudent, ScopeID: &scope}
		if err := userRepo.Create(ctx, student); err != nil {
			log.Fatal().Err(err).Int("index", i).Msg("Failed to create student")
		}
		printToken(authService, student)
	}

	qcm := &model.QCM{
		Title:    "Demo: Go basics",
		Level:    "L1",
		AuthorID: professor.ID,
		Questions: []model.Question{
			demoQuestion(1, "Which keyword starts a goroutine?", 1, "defer", "go", "async", "spawn"),
			demoQuestion(2, "What is the zero value of a map?", 2, "an empty map", "a panic", "nil", "undefined"),
			demoQuestion(3, "Which package provides Context?", 0, "context", "sync", "runtime", "os"),
			demoQuestion(4, "How many values can a function return?", 3, "one", "two", "three", "any number"),
		},
	}
	if err := questionRepo.CreateQCM(ctx, qcm); err != nil {
		log.Fatal().Err(err).Msg("Failed to create question set")
	}

	fmt.Printf("\nQCM %s (%d questions)\n", qcm.ID, len(qcm.Questions))
	fmt.Println("=== Seeding complete ===")
}

func demoQuestion(order int, text string, correct int, choices ...string) model.Question {
	q := model.Question{Text: text, OrderNum: order, Choices: make([]model.Choice, len(choices))}
	for i, c := range choices {
		q.Choices[i] = model.Choice{Text: c, IsCorrect: i == correct}
	}
	return q
}

func printToken(auth *service.AuthService, u *model.User) {
	token, err := auth.GenerateToken(u.ID, u.Role, u.ScopeID)
	if err != nil {
		fmt.Printf("%-9s #%d %s: token error: %v\n", u.Role, u.ID, u.DisplayName(), err)
		return
	}
	fmt.Printf("%-9s #%d %s\n  %s\n", u.Role, u.ID, u.DisplayName(), token)
}
