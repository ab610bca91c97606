package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"opsdesk/internal/api/handler"
	"opsdesk/internal/config"
	"opsdesk/internal/core/postgres/repository"
	"opsdesk/internal/domain"
	"opsdesk/internal/engine"
	infraredis "opsdesk/internal/infrastructure/redis"
	"opsdesk/internal/metrics"
	"opsdesk/internal/scribe"
	"opsdesk/internal/service"
	"opsdesk/internal/worker"
	"opsdesk/internal/workflow/postmeeting"
)

func newLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339,
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	}))
}

func main() {
	configPath := flag.String("config", os.Getenv("OPSDESK_CONFIG"), "path to config file")
	flag.Parse()

	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Database
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		logger.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	err = db.AutoMigrate(
		&domain.AgentRun{},
		&domain.Approval{},
		&domain.Task{},
		&domain.Meeting{},
		&domain.Transcript{},
		&domain.MeetingAsset{},
		&domain.MeetingOutput{},
		&domain.CalendarEvent{},
		&domain.Checkpoint{},
		&domain.CheckpointWrite{},
	)
	if err != nil {
		logger.Error("migrate schema", "error", err)
		os.Exit(1)
	}

	// 2. Redis queue and event bus
	redisClient, err := infraredis.NewRedisClient(cfg.Redis.Addr)
	if err != nil {
		logger.Error("connect to redis", "error", err)
		os.Exit(1)
	}
	queue := infraredis.NewJobQueue(redisClient)
	bus := infraredis.NewEventBus(redisClient)

	// 3. Repositories
	checkpoints := repository.NewCheckpointRepository(db)
	runs := repository.NewRunRepository(db)
	approvals := repository.NewApprovalRepository(db)
	meetings := repository.NewMeetingRepository(db)
	tasks := repository.NewTaskRepository(db)
	calendar := repository.NewCalendarRepository(db)

	// 4. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	// 5. Scribe client, workflow graph, engine
	var scribeClient scribe.Client
	if cfg.OpenAI.APIKey != "" {
		scribeClient = scribe.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	} else {
		logger.Warn("no openai api key set, using stub scribe")
		scribeClient = scribe.NewStubClient()
	}

	graph, err := postmeeting.NewGraph(postmeeting.Deps{
		Meetings:  meetings,
		Approvals: approvals,
		Scribe:    scribeClient,
	})
	if err != nil {
		logger.Error("build graph", "error", err)
		os.Exit(1)
	}
	eng := engine.New(graph, checkpoints, engine.Options{
		Namespace:   postmeeting.GraphName,
		Logger:      logger,
		ObserveNode: m.ObserveNode(postmeeting.GraphName),
	})

	// 6. Run supervisor
	runService := service.NewRunService(service.Deps{
		Runs:      runs,
		Approvals: approvals,
		Meetings:  meetings,
		Tasks:     tasks,
		Calendar:  calendar,
		Engine:    eng,
		Queue:     queue,
		Bus:       bus,
		Logger:    logger,
		Metrics:   m,
	})

	// 7. Workers
	registryJobs := worker.InitRegistry(runService)
	waitWorkers := worker.StartPool(ctx, cfg.Worker.Count, queue, registryJobs, logger)

	// 8. HTTP server
	router := gin.Default()
	handler.NewRunHandler(runService).Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	server := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "workers", cfg.Worker.Count)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	waitWorkers()
	logger.Info("bye")
}
