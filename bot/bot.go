package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/dnikulchenkov/math-tutor-bot/calendar"
	"github.com/dnikulchenkov/math-tutor-bot/storage"
)

// Bot represents the Telegram assistant of a math tutor: it shows free
// lesson slots, books and cancels them, forwards questions to the
// tutor and delivers reminders coming from the background worker.
type Bot struct {
	api         *tgbotapi.BotAPI
	storage     storage.SlotStorage
	calendar    *calendar.Service
	adminChatID int64 // 0 when no admin chat is configured
	location    *time.Location
	limiter     *rate.Limiter
	notifyCh    chan storage.Slot
	userStates  map[int64]*UserState
}

// New creates a new bot instance.
func New(token string, store storage.SlotStorage, cal *calendar.Service, adminChatID int64, location *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if location == nil {
		location = time.UTC
	}

	return &Bot{
		api:         api,
		storage:     store,
		calendar:    cal,
		adminChatID: adminChatID,
		location:    location,
		// Telegram caps bots at roughly 30 messages per second.
		limiter:    rate.NewLimiter(rate.Limit(25), 5),
		notifyCh:   make(chan storage.Slot, 100),
		userStates: make(map[int64]*UserState),
	}, nil
}

// Start registers the command list and runs the update loop. It blocks
// until the updates channel is closed.
func (b *Bot) Start() error {
	log.Printf("Bot started: @%s", b.api.Self.UserName)

	b.setCommands()

	// Deliver reminders pushed by the background worker.
	go b.handleReminders()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message != nil {
			b.handleMessage(update.Message)
		} else if update.CallbackQuery != nil {
			b.handleCallbackQuery(update.CallbackQuery)
		}
	}

	return nil
}

// GetNotifyChannel returns the channel the reminder worker feeds.
func (b *Bot) GetNotifyChannel() chan storage.Slot {
	return b.notifyCh
}

// handleReminders delivers a reminder to the owner of each booking the
// worker found in its lookahead window. Send failures are logged and
// dropped; a missed reminder must not affect anything else.
func (b *Bot) handleReminders() {
	for slot := range b.notifyCh {
		if slot.BookedBy == 0 {
			continue
		}
		text := fmt.Sprintf(
			"🔔 Напоминание!\n\nЗавтра у вас занятие по математике:\n📅 %s\n\nНе забудьте подготовить вопросы и материалы. До встречи!",
			b.formatLocalTime(slot.StartAt))
		msg := tgbotapi.NewMessage(slot.BookedBy, text)
		if _, err := b.send(msg); err != nil {
			log.Printf("Error sending reminder to user %d: %v", slot.BookedBy, err)
		} else {
			log.Printf("Reminder sent to user %d for slot %s", slot.BookedBy, slot.ID)
		}
	}
}

// send delivers any chattable through the shared rate limiter.
func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := b.limiter.Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, err
	}
	return b.api.Send(c)
}

// notifyAdmin sends a message to the admin chat, if one is configured.
// Delivery failures are logged and swallowed.
func (b *Bot) notifyAdmin(text string) {
	if b.adminChatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(b.adminChatID, text)
	if _, err := b.send(msg); err != nil {
		log.Printf("Error notifying admin: %v", err)
	}
}

// setCommands publishes the command menu. Failures are not fatal.
func (b *Bot) setCommands() {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Главное меню"},
		tgbotapi.BotCommand{Command: "info", Description: "Информация об обучении"},
		tgbotapi.BotCommand{Command: "prices", Description: "Стоимость занятий"},
		tgbotapi.BotCommand{Command: "slots", Description: "Свободные даты"},
		tgbotapi.BotCommand{Command: "book", Description: "Записаться на занятие"},
		tgbotapi.BotCommand{Command: "mybookings", Description: "Мои записи"},
		tgbotapi.BotCommand{Command: "ask", Description: "Задать вопрос репетитору"},
		tgbotapi.BotCommand{Command: "stats", Description: "Статистика (только админ)"},
		tgbotapi.BotCommand{Command: "cancel", Description: "Отмена текущего действия"},
	)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Warning: failed to set bot commands: %v", err)
	}
}
