package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"ahadumarket/utils"
)

const testBotToken = "123456:TEST-TOKEN"

func signedInitData(botToken, userJSON string) string {
	checkString := "auth_date=1724400000\nuser=" + userJSON

	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secretMac.Sum(nil))
	mac.Write([]byte(checkString))

	v := url.Values{}
	v.Set("auth_date", "1724400000")
	v.Set("user", userJSON)
	v.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return v.Encode()
}

func TestTelegramAuthMiddlewareInjectsIdentity(t *testing.T) {
	t.Setenv("BOT_TOKEN", testBotToken)

	var gotID int64
	handler := TelegramAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := utils.TelegramUserFrom(r)
		if !ok {
			t.Fatal("expected identity in context")
		}
		gotID = user.ID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/api/sales", nil)
	req.RemoteAddr = "203.0.113.50:1000"
	req.Header.Set("X-Telegram-Init-Data", signedInitData(testBotToken, `{"id":42,"first_name":"Abel"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	if gotID != 42 {
		t.Fatalf("expected identity 42, got %d", gotID)
	}
}

func TestTelegramAuthMiddlewareRejectsBadSignature(t *testing.T) {
	t.Setenv("BOT_TOKEN", testBotToken)

	handler := TelegramAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for invalid init data")
	}))

	req := httptest.NewRequest("POST", "/api/sales", nil)
	req.RemoteAddr = "203.0.113.51:1000"
	req.Header.Set("X-Telegram-Init-Data", "auth_date=1&user=%7B%22id%22%3A42%7D&hash=deadbeef")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestAdminAuthMiddlewareChecksConfiguredID(t *testing.T) {
	t.Setenv("BOT_TOKEN", testBotToken)
	t.Setenv("ADMIN_ID", "42")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := TelegramAuthMiddleware(AdminAuthMiddleware(inner))

	admin := httptest.NewRequest("POST", "/api/admin/product", nil)
	admin.RemoteAddr = "203.0.113.52:1000"
	admin.Header.Set("X-Telegram-Init-Data", signedInitData(testBotToken, `{"id":42,"first_name":"Admin"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, admin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d (%s)", rr.Code, rr.Body.String())
	}

	other := httptest.NewRequest("POST", "/api/admin/product", nil)
	other.RemoteAddr = "203.0.113.53:1000"
	other.Header.Set("X-Telegram-Init-Data", signedInitData(testBotToken, `{"id":7,"first_name":"Abel"}`))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rr.Code)
	}
}

func TestAdminAuthMiddlewareWithoutIdentity(t *testing.T) {
	t.Setenv("ADMIN_ID", "42")

	handler := AdminAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without identity")
	}))

	req := httptest.NewRequest("POST", "/api/admin/product", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
