package telegram

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"

	tg "ahadumarket/telegram"
	"ahadumarket/utils"
	"ahadumarket/workflow"
)

// Update mirrors the subset of the Bot API webhook payload we consume.
type Update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		From *struct {
			ID        int64  `json:"id"`
			IsBot     bool   `json:"is_bot"`
			FirstName string `json:"first_name"`
			Username  string `json:"username"`
		} `json:"from"`
		Chat *struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// Controller handles bot updates and webhook registration.
type Controller struct {
	engine *workflow.Engine
	bot    *tg.Bot
}

func NewController(engine *workflow.Engine, bot *tg.Bot) *Controller {
	return &Controller{engine: engine, bot: bot}
}

// POST /webhook
//
// Only /start is handled: it records the first contact as a PENDING
// user and replies with the Mini App launch button. Always answers 200
// so Telegram does not redeliver.
func (c *Controller) Webhook(w http.ResponseWriter, r *http.Request) {
	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid update payload")
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.From.IsBot {
		fmt.Fprint(w, "ok")
		return
	}
	if !strings.HasPrefix(strings.TrimSpace(msg.Text), "/start") {
		fmt.Fprint(w, "ok")
		return
	}

	user, created, err := c.engine.RegisterContact(r.Context(), msg.From.ID, msg.From.FirstName, msg.From.Username)
	if err != nil {
		log.Printf("[telegram] register contact %d: %v", msg.From.ID, err)
		fmt.Fprint(w, "ok")
		return
	}

	greeting := fmt.Sprintf("Welcome to Ahadu Market, %s!", user.FirstName)
	if created {
		greeting += "\n\nYour account is pending approval. You can open the app to complete your registration."
	}
	webAppURL := c.engine.Config().WebAppURL
	if webAppURL == "" {
		webAppURL = os.Getenv("WEBHOOK_URL")
	}
	chat := strconv.FormatInt(msg.Chat.ID, 10)
	if err := c.bot.SendWebAppKeyboard(chat, greeting, "🚀 Launch Ahadu Market", webAppURL); err != nil {
		log.Printf("[telegram] launch keyboard to %s: %v", chat, err)
	}

	fmt.Fprint(w, "ok")
}

// GET /set_webhook
//
// One-time convenience to point the bot at this deployment.
func (c *Controller) SetWebhook(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimRight(os.Getenv("WEBHOOK_URL"), "/")
	if base == "" {
		utils.WriteError(w, http.StatusInternalServerError, "WEBHOOK_URL is not configured")
		return
	}
	target := base + "/webhook"
	if err := c.bot.SetWebhook(target); err != nil {
		log.Printf("[telegram] set webhook: %v", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to set webhook")
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "webhook": target})
}
