package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"territory-quiz-service/internal/app"
	"territory-quiz-service/internal/config"
	"territory-quiz-service/internal/domain"
	"territory-quiz-service/internal/infra/aigateway"
	"territory-quiz-service/internal/infra/memory"
	pgstore "territory-quiz-service/internal/infra/postgres"
	redisinfra "territory-quiz-service/internal/infra/redis"
	transport "territory-quiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the study-room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	memStore := memory.NewStore()
	var (
		rooms    app.RoomStore     = memStore
		progress app.ProgressStore = memStore
		pg       *pgstore.Store
	)
	if pool != nil {
		pg = pgstore.NewStore(pool)
		rooms, progress = pg, pg
	}

	syllabusTTL := config.TTLDuration(cfg.Syllabus.TTL, 10*time.Minute)
	var syllabi app.SyllabusRepository
	if redisClient != nil {
		var loader redisinfra.SyllabusLoader = memStore
		if pg != nil {
			loader = pg
		}
		syllabi = redisinfra.NewSyllabusRepository(redisClient, loader, syllabusTTL)
	} else {
		var loader memory.SyllabusLoader = memStore
		if pg != nil {
			loader = pg
		}
		syllabi = memory.NewSyllabusRepository(loader, syllabusTTL)
	}

	var notifier app.Notifier
	if redisClient != nil {
		notifier = redisinfra.NewNotifier(redisClient)
	} else {
		notifier = memory.NewNotifier()
	}

	// Without a configured gateway the demo generator lets rooms run fully
	// offline.
	var generator app.SyllabusGenerator = memory.NewStaticSyllabusGenerator(demoSyllabus())
	if cfg.AIGateway.URL != "" && cfg.AIGateway.APIKey != "" {
		generator = aigateway.NewClient(cfg.AIGateway.URL, cfg.AIGateway.APIKey, cfg.AIGateway.Model)
	}

	service := app.NewService(rooms, progress, syllabi, generator, notifier)
	wsHandler := transport.NewWSHandler(service)
	roomHandler := transport.NewRoomHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	roomHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting territory quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// demoSyllabus builds a placeholder seven-chapter syllabus for offline runs;
// production rooms get real content from the AI gateway.
func demoSyllabus() domain.Syllabus {
	titles := []string{
		"Foundations", "Core Concepts", "Applications", "Analysis",
		"Synthesis", "Advanced Topics", "Mastery",
	}
	chapters := make([]domain.Chapter, 0, domain.ChapterCount)
	for ch := 1; ch <= domain.ChapterCount; ch++ {
		difficulty, timeLimit := "easy", 180
		switch {
		case ch >= 6:
			difficulty, timeLimit = "hard", 90
		case ch >= 3:
			difficulty, timeLimit = "medium", 120
		}
		questions := make([]domain.Question, 0, domain.QuestionsPerChapter)
		for q := 1; q <= domain.QuestionsPerChapter; q++ {
			questions = append(questions, domain.Question{
				Prompt:        fmt.Sprintf("Chapter %d review question %d?", ch, q),
				Options:       []string{"Option A", "Option B", "Option C", "Option D"},
				CorrectAnswer: (q - 1) % domain.OptionsPerQuestion,
				Difficulty:    difficulty,
			})
		}
		chapters = append(chapters, domain.Chapter{
			ChapterNumber: ch,
			Title:         titles[ch-1],
			Questions:     questions,
			TimeLimit:     timeLimit,
		})
	}
	return domain.Syllabus{Chapters: chapters}
}
