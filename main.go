package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kaizenbot/internal/api"
	"kaizenbot/internal/bot"
	"kaizenbot/internal/config"
	"kaizenbot/internal/redis"
	"kaizenbot/internal/scheduler"
	aiservice "kaizenbot/internal/service/ai"
	"kaizenbot/internal/service/journal"
	"kaizenbot/internal/storage"
	"kaizenbot/internal/telegram"
	"kaizenbot/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("KAIZENBOT_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("KAIZENBOT_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: users, reminder_times, questions, answers, contexts
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	// Redis only backs API rate limiting; the bot runs fine without it.
	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		log.Printf("redis unavailable, rate limiting disabled: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	store := journal.NewService(db, dbType)
	assistant, err := aiservice.NewService(cfg)
	if err != nil {
		log.Fatalf("init ai service: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tgClient := telegram.NewClient(telegram.Config{
		BotToken:       cfg.Telegram.BotToken,
		PollInterval:   time.Duration(cfg.Telegram.PollInterval) * time.Second,
		TimeoutSeconds: cfg.Telegram.TimeoutSeconds,
		APIRoot:        cfg.Telegram.APIRoot,
	})

	handler := bot.NewHandler(store, assistant, tgClient)
	dispatcher := worker.NewDispatcher(
		ctx,
		handler,
		cfg.BasicConfig.MinWorkers,
		cfg.BasicConfig.MaxWorkers,
		cfg.BasicConfig.QueueSize,
		time.Duration(cfg.BasicConfig.WorkerIdleTimeout)*time.Minute,
	)

	go func() {
		err := tgClient.Start(ctx, func(upd telegram.Update) {
			if err := dispatcher.Submit(upd); err != nil {
				log.Printf("drop update %d: %v", upd.UpdateID, err)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("telegram poll loop stopped: %v", err)
		}
	}()

	daily := scheduler.NewDispatcher(store, tgClient, handler.LastMessages())
	sched := scheduler.New(store, daily)
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("scheduler stopped: %v", err)
		}
	}()

	handlers := api.NewHandler(
		store,
		assistant,
		rdb,
		cfg.BasicConfig.APIKey,
		cfg.BasicConfig.RateLimitRequests,
		time.Duration(cfg.BasicConfig.RateLimitWindow)*time.Minute,
	)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	server := &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	}()
	log.Printf("listening on %s", addr)

	<-ctx.Done()
	log.Println("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
}
