package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	mqcontracts "teamboard/contracts/mq"
	"teamboard/internal/cache"
	"teamboard/internal/config"
	"teamboard/internal/handler"
	"teamboard/internal/httpserver"
	"teamboard/internal/mqhandler"
	"teamboard/internal/realtime"
	"teamboard/internal/repository"
	"teamboard/internal/service/auth"
	"teamboard/internal/service/member"
	"teamboard/internal/service/project"
	"teamboard/internal/service/suggest"
	"teamboard/internal/service/task"
	"teamboard/pkg/db"
	"teamboard/pkg/logger"
	"teamboard/pkg/mq"
	"teamboard/pkg/outbox"
	"teamboard/pkg/redis"
	"teamboard/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting teamboard...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis: project-detail cache and consumer dedup.
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// MQ publisher for domain events. Services publish through the outbox
	// wrapper so a broker outage parks events instead of dropping them;
	// the dispatcher drains the backlog once the broker is back.
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	outboxRepo := outbox.NewRepository(dbConn)
	durablePublisher := outbox.NewDurablePublisher(publisher, outboxRepo, log)

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	go dispatcher.Start(dispatcherCtx)

	// Websocket hub.
	hub := realtime.NewHub(log)
	go hub.Run()

	// Repositories
	userRepo := repository.NewUserRepository(dbConn)
	projectRepo := repository.NewProjectRepository(dbConn, log)
	memberRepo := repository.NewMemberRepository(dbConn, log)
	invitationRepo := repository.NewInvitationRepository(dbConn, log)
	milestoneRepo := repository.NewMilestoneRepository(dbConn, log)
	taskRepo := repository.NewTaskRepository(dbConn, log)
	commentRepo := repository.NewCommentRepository(dbConn, log)
	notificationRepo := repository.NewNotificationRepository(dbConn, log)

	projectCache := cache.NewProjectCache(rdb, log)
	deduper := util.NewDeduperWithLogger(rdb, time.Hour, log)

	// Services
	authService := auth.NewService(userRepo, cfg.JWT.Secret)
	projectService := project.NewService(projectRepo, memberRepo, milestoneRepo, taskRepo, projectCache, log)
	memberService := member.NewService(invitationRepo, memberRepo, userRepo, projectRepo, durablePublisher, projectCache, log)
	taskService := task.NewService(taskRepo, milestoneRepo, commentRepo, memberRepo, projectRepo, userRepo, durablePublisher, projectCache, log)

	var generator suggest.Generator
	if cfg.Suggest.APIKey != "" {
		generator = suggest.NewOpenAIGenerator(cfg.Suggest.BaseURL, cfg.Suggest.APIKey, cfg.Suggest.Model)
		log.Info("Suggestion generator configured", zap.String("model", cfg.Suggest.Model))
	} else {
		log.Warn("SUGGEST_API_KEY not set, task suggestions will use the fallback template")
	}
	suggestService := suggest.NewService(generator, taskService, memberRepo, log)

	// One consumer per event; handlers write notifications and push them
	// to live websocket connections.
	eventHandlers := []struct {
		routingKey string
		handle     mq.MessageHandler
	}{
		{mqcontracts.RoutingKeyInvitationCreated, mqhandler.NewInvitationCreatedHandler(notificationRepo, deduper, hub, log).Handle},
		{mqcontracts.RoutingKeyInvitationAccepted, mqhandler.NewInvitationAcceptedHandler(notificationRepo, deduper, hub, log).Handle},
		{mqcontracts.RoutingKeyInvitationDeclined, mqhandler.NewInvitationDeclinedHandler(notificationRepo, deduper, hub, log).Handle},
		{mqcontracts.RoutingKeyTaskAssigned, mqhandler.NewTaskAssignedHandler(notificationRepo, deduper, hub, log).Handle},
		{mqcontracts.RoutingKeyCommentCreated, mqhandler.NewCommentCreatedHandler(notificationRepo, deduper, hub, log).Handle},
		{mqcontracts.RoutingKeyMemberRemoved, mqhandler.NewMemberRemovedHandler(notificationRepo, deduper, hub, log).Handle},
	}

	consumers := make([]*mq.Consumer, 0, len(eventHandlers))
	for _, eh := range eventHandlers {
		queue := eh.routingKey + ".q"
		log.Info("Initializing MQ consumer...",
			zap.String("queue", queue),
			zap.String("routing_key", eh.routingKey),
		)
		consumer, err := mq.NewConsumer(cfg.MQ.URL, queue, eh.routingKey, log)
		if err != nil {
			log.Fatal("Failed to init consumer",
				zap.String("routing_key", eh.routingKey),
				zap.Error(err),
			)
		}
		defer consumer.Close()
		consumer.SetHandler(eh.handle)
		consumers = append(consumers, consumer)

		go func() {
			if err := consumer.StartConsuming(); err != nil {
				log.Fatal("Consumer failed",
					zap.String("routing_key", eh.routingKey),
					zap.Error(err),
				)
			}
		}()
		log.Info("Consumer started", zap.String("routing_key", eh.routingKey))
	}

	// HTTP
	handlers := httpserver.Handlers{
		Auth:          handler.NewAuthHandler(authService, log),
		Projects:      handler.NewProjectHandler(projectService, log),
		Members:       handler.NewMemberHandler(memberService, log),
		Tasks:         handler.NewTaskHandler(taskService, log),
		Milestones:    handler.NewMilestoneHandler(taskService, log),
		Comments:      handler.NewCommentHandler(taskService, log),
		Suggestions:   handler.NewSuggestHandler(suggestService, log),
		Notifications: handler.NewNotificationHandler(notificationRepo, log),
		WS:            handler.NewWSHandler(hub, cfg.JWT.Secret, log),
	}
	router := httpserver.NewRouter(handlers, cfg.JWT.Secret, log, dbConn, consumers)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Trace-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      c.Handler(router.Engine),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("teamboard is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
		zap.Int("consumers", len(consumers)),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down teamboard gracefully...")

	stopDispatcher()

	log.Info("Stopping MQ consumers...")
	for _, consumer := range consumers {
		consumer.Stop()
	}

	log.Info("Shutting down HTTP server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("teamboard shutdown complete")
}
