package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"ahadumarket/controllers"
	"ahadumarket/controllers/admins"
	telegramctl "ahadumarket/controllers/telegram"
	"ahadumarket/controllers/users"
	"ahadumarket/database"
	"ahadumarket/middleware"
	"ahadumarket/models"
	"ahadumarket/routes"
	"ahadumarket/telegram"
	"ahadumarket/workflow"

	"github.com/joho/godotenv"
)

const defaultCommissionRate = 0.05

func main() {
	// Load .env if present (do not overwrite already-set environment variables).
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	requiredEnvVars := []string{"DB_HOST", "DB_USER", "DB_PASS", "DB_NAME", "BOT_TOKEN", "ADMIN_ID"}
	for _, envVar := range requiredEnvVars {
		if os.Getenv(envVar) == "" {
			log.Fatalf("Required environment variable %s is not set", envVar)
		}
	}

	adminID, err := strconv.ParseInt(os.Getenv("ADMIN_ID"), 10, 64)
	if err != nil || adminID == 0 {
		log.Fatalf("ADMIN_ID must be a Telegram user ID, got %q", os.Getenv("ADMIN_ID"))
	}

	commissionRate := defaultCommissionRate
	if s := os.Getenv("COMMISSION_RATE"); s != "" {
		rate, err := strconv.ParseFloat(s, 64)
		if err != nil || rate <= 0 || rate >= 1 {
			log.Fatalf("COMMISSION_RATE must be a fraction between 0 and 1, got %q", s)
		}
		commissionRate = rate
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.Payout{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	bot := telegram.NewBot(os.Getenv("BOT_TOKEN"))
	cfg := workflow.Config{
		AdminID:        adminID,
		SalesGroupChat: strings.TrimSpace(os.Getenv("SALES_GROUP_ID")),
		CommissionRate: commissionRate,
		WebAppURL:      strings.TrimSpace(os.Getenv("WEBAPP_URL")),
	}
	engine := workflow.NewEngine(db, bot, cfg)
	reports := workflow.NewReports(db, commissionRate)

	if err := engine.EnsureAdmin(context.Background()); err != nil {
		log.Fatalf("failed to seed admin user: %v", err)
	}

	router := routes.InitRouter(
		controllers.NewInitController(db, reports),
		users.NewController(engine),
		admins.NewController(engine, reports),
		telegramctl.NewController(engine, bot),
	)

	// Global middleware in recommended order:
	// Logging -> Security headers -> Request ID -> Max Body -> Timeout -> Recovery
	handler := middleware.RequestLogMiddleware(
		middleware.SecurityHeadersMiddleware(
			middleware.RequestIDMiddleware(
				middleware.MaxBodyMiddleware(
					middleware.TimeoutMiddleware(
						middleware.RecoveryMiddleware(router),
					),
				),
			),
		),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
