package middleware

import (
	"net/http"
	"os"
	"strconv"

	"ahadumarket/utils"
)

// AdminAuthMiddleware requires the verified Telegram identity to match
// the configured ADMIN_ID. Must run after TelegramAuthMiddleware.
func AdminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := utils.TelegramUserFrom(r)
		if !ok {
			utils.WriteError(w, http.StatusForbidden, "authentication required")
			return
		}

		adminID, err := strconv.ParseInt(os.Getenv("ADMIN_ID"), 10, 64)
		if err != nil || adminID == 0 || user.ID != adminID {
			utils.WriteError(w, http.StatusForbidden, "admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
