package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Bot is a minimal Telegram Bot API client. Only the calls this service
// needs are implemented: sendMessage (plain and with a web_app reply
// keyboard) and setWebhook.
type Bot struct {
	token  string
	apiURL string
	client *http.Client
}

func NewBot(token string) *Bot {
	return &Bot{
		token:  token,
		apiURL: "https://api.telegram.org",
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type keyboardButton struct {
	Text   string `json:"text"`
	WebApp struct {
		URL string `json:"url"`
	} `json:"web_app"`
}

type replyMarkup struct {
	InlineKeyboard [][]keyboardButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ParseMode   string       `json:"parse_mode,omitempty"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

// Notify sends an HTML-formatted message to a chat. The chat is a
// string so numeric IDs and @channel names both work.
func (b *Bot) Notify(chat string, text string) error {
	return b.call("sendMessage", sendMessageRequest{
		ChatID:    chat,
		Text:      text,
		ParseMode: "HTML",
	})
}

// SendWebAppKeyboard replies with a single inline button that launches
// the Mini App at webAppURL.
func (b *Bot) SendWebAppKeyboard(chat, text, buttonText, webAppURL string) error {
	var btn keyboardButton
	btn.Text = buttonText
	btn.WebApp.URL = webAppURL
	return b.call("sendMessage", sendMessageRequest{
		ChatID:      chat,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: &replyMarkup{InlineKeyboard: [][]keyboardButton{{btn}}},
	})
}

// SetWebhook points the bot's webhook at url.
func (b *Bot) SetWebhook(url string) error {
	return b.call("setWebhook", map[string]string{"url": url})
}

func (b *Bot) call(method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", b.apiURL, b.token, method)
	resp, err := b.client.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, detail)
	}
	return nil
}
