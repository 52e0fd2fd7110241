package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/viper"

	"github.com/notocbot/backend/internal/bot"
	"github.com/notocbot/backend/internal/config"
	"github.com/notocbot/backend/internal/database"
	mW "github.com/notocbot/backend/internal/middleware"
	"github.com/notocbot/backend/internal/notify"
	"github.com/notocbot/backend/internal/services"
)

// @title NoToc Debt Tracker API
// @version 1.0
// @description API for the personal debt tracking service
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")

	viper.SetDefault("jwt.expiry_hours", 72)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	botCfg := config.LoadBotConfig()

	var api *tgbotapi.BotAPI
	var notifier notify.Notifier = notify.Nop{}
	if botCfg.Token != "" {
		var err error
		api, err = tgbotapi.NewBotAPI(botCfg.Token)
		if err != nil {
			log.Fatalf("Failed to connect to Telegram: %v", err)
		}
		notifier = notify.NewTelegramNotifier(api)
		log.Printf("Telegram bot authorized as @%s", api.Self.UserName)
	} else {
		log.Println("TELEGRAM_BOT_TOKEN not set, running API only")
	}

	userService := services.NewUserService(db)
	debtorService := services.NewDebtorService(db)
	debtService := services.NewDebtService(db, notifier)
	deadlineService := services.NewDeadlineService(db)
	statsService := services.NewStatsService(db)
	pendingService := services.NewPendingService(redisClient, botCfg.PendingTTL)
	webAuthService := services.NewWebAuthService(db, botCfg.Token, userService)
	dashboardService := services.NewDashboardService(debtService, deadlineService, statsService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Long-poll Telegram alongside the HTTP API.
	if api != nil {
		handler := bot.NewHandler(api, botCfg, userService, debtorService,
			debtService, deadlineService, pendingService)

		u := tgbotapi.NewUpdate(0)
		u.Timeout = botCfg.PollTimeout
		updates := api.GetUpdatesChan(u)

		go func() {
			for {
				select {
				case <-ctx.Done():
					api.StopReceivingUpdates()
					return
				case upd := <-updates:
					handler.HandleUpdate(ctx, upd)
				}
			}
		}()
	}

	// Setup router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/telegram", webAuthService.Login)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/dashboard/summary", dashboardService.GetSummary)
			r.Get("/dashboard/balances", dashboardService.GetBalances)
			r.Get("/dashboard/history", dashboardService.GetHistory)
			r.Get("/dashboard/deadlines", dashboardService.GetDeadlines)
			r.Post("/dashboard/deadlines", dashboardService.SetDueDate)
			r.Get("/dashboard/trends", dashboardService.GetTrends)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
