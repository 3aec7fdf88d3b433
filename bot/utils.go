package bot

import (
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// answerCallbackQuery sends an answer to a callback query.
func (b *Bot) answerCallbackQuery(queryID string, text string) {
	callback := tgbotapi.NewCallback(queryID, text)
	if _, err := b.api.Request(callback); err != nil {
		log.Printf("Error answering callback query %s: %v", queryID, err)
	}
}

// formatLocalTime renders a stored UTC instant in the configured
// display time zone. Storage never deals with zones itself.
func (b *Bot) formatLocalTime(t time.Time) string {
	return t.In(b.location).Format("02.01.2006 15:04")
}

// displayName extracts a readable name from a Telegram user.
func displayName(user *tgbotapi.User) string {
	if user.FirstName != "" {
		return user.FirstName
	}
	return "Пользователь"
}

// contactOf builds a contact string the tutor can reach the user by.
func contactOf(user *tgbotapi.User) string {
	if user.UserName != "" {
		return "@" + user.UserName
	}
	return fmt.Sprintf("ID: %d", user.ID)
}
