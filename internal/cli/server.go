package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/amqp"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// backends holds the external connections opened for a server run.
type backends struct {
	redis  *redis.Client
	pool   *pgxpool.Pool
	db     *bun.DB
	broker *amqp.RecordPublisher
}

func (b *backends) close() {
	if b.broker != nil {
		if err := b.broker.Close(); err != nil {
			log.Printf("close amqp: %v", err)
		}
	}
	if b.db != nil {
		b.db.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.redis != nil {
		b.redis.Close()
	}
}

func (b *backends) readiness() map[string]transport.ReadinessCheck {
	checks := map[string]transport.ReadinessCheck{}
	if b.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return b.redis.Ping(ctx).Err() }
	}
	if b.pool != nil {
		checks["postgres"] = func(ctx context.Context) error { return b.pool.Ping(ctx) }
	}
	return checks
}

func connect(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.pool = pool
		b.db = openBun(cfg.Postgres.URL)
		if err := migrateDB(ctx, b.db); err != nil {
			b.close()
			return nil, err
		}
	}
	if cfg.AMQP.URL != "" {
		queue := cfg.AMQP.Queue
		if queue == "" {
			queue = "quiz.records"
		}
		broker, err := amqp.Dial(cfg.AMQP.URL, queue)
		if err != nil {
			b.close()
			return nil, err
		}
		b.broker = broker
	}
	return b, nil
}

// newGameService wires the stores onto Redis when configured, in process otherwise.
func newGameService(cfg config.Config, b *backends, hub *transport.Hub, recorder *app.Recorder) *app.GameService {
	var loader memory.QuizLoader = memory.NewStaticQuizLoader(map[string]domain.Quiz{"demo": memory.DemoQuiz()})
	if b.pool != nil {
		loader = postgres.NewQuizLoader(b.pool)
	}
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	answerTTL := config.TTLDuration(cfg.Game.AnswerBufferTTL, 5*time.Minute)
	answerLimit := cfg.Game.AnswerBufferLimit
	if answerLimit <= 0 {
		answerLimit = 1000
	}

	var (
		sessions    app.SessionRepository
		leaderboard app.LeaderboardIndex
		answers     app.AnswerAggregator
		quizzes     app.QuizRepository
		metrics     app.Metrics
	)
	if b.redis != nil {
		sessions = redisinfra.NewSessionStore(b.redis)
		leaderboard = redisinfra.NewLeaderboard(b.redis)
		answers = redisinfra.NewAnswerAggregator(b.redis, answerTTL, answerLimit)
		quizzes = redisinfra.NewQuizRepository(b.redis, loader, quizTTL)
		metrics = redisinfra.NewMetrics(b.redis)
	} else {
		sessions = memory.NewSessionStore()
		leaderboard = memory.NewLeaderboard()
		answers = memory.NewAnswerAggregator(answerTTL, answerLimit)
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		metrics = memory.NewMetrics()
	}

	return app.NewGameService(sessions, leaderboard, answers, quizzes, cfg.GameOptions(),
		app.WithBroadcaster(hub),
		app.WithRecorder(recorder),
		app.WithMetrics(metrics),
	)
}

// newRecorder fans records out to every configured durable sink; nil when there is none.
func newRecorder(cfg config.Config, b *backends) *app.Recorder {
	var sinks app.MultiRecordStore
	if b.db != nil {
		sinks = append(sinks, postgres.NewRecordStore(b.db))
	}
	if b.broker != nil {
		sinks = append(sinks, b.broker)
	}
	if len(sinks) == 0 {
		return nil
	}
	capacity := cfg.Game.RecorderQueue
	if capacity <= 0 {
		capacity = 1024
	}
	var store app.RecordStore = sinks
	if len(sinks) == 1 {
		store = sinks[0]
	}
	return app.NewRecorder(store, capacity, 5*time.Second)
}

func newLimiter(cfg config.Config, b *backends) transport.RateLimiter {
	limit := cfg.Gateway.RateLimit
	if limit == 0 {
		limit = 10
	}
	window := config.TTLDuration(cfg.Gateway.RateWindow, time.Minute)
	if b.redis != nil {
		return redisinfra.NewRateLimiter(b.redis, limit, window)
	}
	return memory.NewRateLimiter(limit, window)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	hub := transport.NewHub(cfg.Gateway.BatchSize, config.TTLDuration(cfg.Gateway.BatchPause, 10*time.Millisecond))
	recorder := newRecorder(cfg, b)
	service := newGameService(cfg, b, hub, recorder)
	wsHandler := transport.NewWSHandler(service, hub, newLimiter(cfg, b))
	apiHandler := transport.NewAPIHandler(service, b.readiness())

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Logger())
	apiHandler.Register(router)
	router.GET("/ws", gin.WrapF(wsHandler.ServeWS))

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	case runErr = <-serveErr:
		log.Printf("failed to start server: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	service.Close()
	hub.Close()
	recorder.Close()
	return runErr
}
