package middleware

import (
	"fmt"
	"net/http"
	"os"

	"ahadumarket/telegram"
	"ahadumarket/utils"
)

// TelegramAuthMiddleware verifies the X-Telegram-Init-Data header and
// injects the verified identity into the request context. Repeated
// signature failures from one IP trigger a progressive lockout.
func TelegramAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIPGeneric(r, trustedProxies())
		if blocked, retry := IsAuthBlocked(ip); blocked {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(retry.Seconds())+1))
			utils.WriteError(w, http.StatusTooManyRequests, "too many failed authentication attempts")
			return
		}

		user, err := telegram.ValidateInitData(r.Header.Get("X-Telegram-Init-Data"), os.Getenv("BOT_TOKEN"))
		if err != nil {
			RecordFailedAuth(ip)
			utils.WriteError(w, http.StatusForbidden, "invalid init data")
			return
		}
		ResetFailedAuth(ip)

		next.ServeHTTP(w, r.WithContext(utils.WithTelegramUser(r.Context(), user)))
	})
}
