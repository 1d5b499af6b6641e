package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"ahadumarket/controllers"
	"ahadumarket/controllers/admins"
	telegramctl "ahadumarket/controllers/telegram"
	"ahadumarket/controllers/users"
	"ahadumarket/middleware"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// InitRouter assembles the full route table around the injected
// controllers.
func InitRouter(
	initCtl *controllers.InitController,
	userCtl *users.Controller,
	adminCtl *admins.Controller,
	botCtl *telegramctl.Controller,
) *mux.Router {
	r := mux.NewRouter()

	// Health check endpoint for Docker health checks
	r.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"service":   "ahadumarket-api",
		})
	})).Methods(http.MethodGet)

	// CORS - origins from CORS_ALLOWED_ORIGINS (comma-separated) or defaults
	origins := []string{
		"http://localhost:3000", "http://localhost:8080",
		"http://127.0.0.1:3000", "http://127.0.0.1:8080",
	}
	if originsEnv := os.Getenv("CORS_ALLOWED_ORIGINS"); originsEnv != "" {
		for _, p := range strings.Split(originsEnv, ",") {
			if o := strings.TrimSpace(p); o != "" {
				origins = append(origins, o)
			}
		}
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "X-Telegram-Init-Data", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	api := r.PathPrefix("/api").Subrouter()

	// Catch-all OPTIONS handler for CORS preflight
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	// init carries the full verification cost, keep it on a short leash
	initLimiter := middleware.NewIPRateLimiter(60, time.Minute)
	webhookLimiter := middleware.NewIPRateLimiter(500, time.Hour)

	api.Handle("/init", initLimiter.Middleware(http.HandlerFunc(initCtl.Handle))).Methods(http.MethodPost)
	api.Handle("/register", middleware.TelegramAuthMiddleware(http.HandlerFunc(userCtl.Register))).Methods(http.MethodPost)
	api.Handle("/sales", middleware.TelegramAuthMiddleware(http.HandlerFunc(userCtl.LogSale))).Methods(http.MethodPost)

	SetAdminRoutes(api, adminCtl)

	// Telegram bot plumbing lives outside /api
	r.Handle("/webhook", webhookLimiter.Middleware(http.HandlerFunc(botCtl.Webhook))).Methods(http.MethodPost)
	r.Handle("/set_webhook", http.HandlerFunc(botCtl.SetWebhook)).Methods(http.MethodGet)

	return r
}
