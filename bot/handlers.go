package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleMessage handles incoming messages
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID

	// Initialize user state if not exists
	if _, ok := b.userStates[userID]; !ok {
		b.userStates[userID] = &UserState{Stage: StageIdle}
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start":
			b.handleStartCommand(message)
		case "info":
			b.replyWithMenu(chatID, infoText)
		case "prices":
			b.replyWithMenu(chatID, pricesText)
		case "slots":
			b.sendSlotsList(chatID)
		case "book":
			b.sendBookingKeyboard(chatID)
		case "mybookings":
			b.sendMyBookings(chatID, userID)
		case "ask":
			b.handleAskCommand(message)
		case "cancel":
			b.handleCancelCommand(message)
		case "stats":
			b.handleStatsCommand(message)
		case "addslot":
			b.handleAddSlotCommand(message)
		case "removeslot":
			b.handleRemoveSlotCommand(message)
		case "listslots":
			b.handleListSlotsCommand(message)
		default:
			msg := tgbotapi.NewMessage(chatID, "Неизвестная команда. Используйте /start для главного меню.")
			b.send(msg)
		}
		return
	}

	// Plain text: only meaningful while we are waiting for a question.
	state := b.userStates[userID]
	if state.Stage == StageAwaitingQuestion {
		b.forwardQuestion(message)
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Используйте /start для главного меню или /book для записи на занятие.")
	b.send(msg)
}

// handleCallbackQuery handles callback queries from inline keyboards
func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	chatID := query.Message.Chat.ID

	if _, ok := b.userStates[userID]; !ok {
		b.userStates[userID] = &UserState{Stage: StageIdle}
	}

	// Parse callback data in action:value format.
	parts := strings.SplitN(query.Data, ":", 2)
	action := parts[0]
	value := ""
	if len(parts) > 1 {
		value = parts[1]
	}

	switch action {
	case "menu":
		b.answerCallbackQuery(query.ID, "")
		switch value {
		case "info":
			b.replyWithMenu(chatID, infoText)
		case "prices":
			b.replyWithMenu(chatID, pricesText)
		case "slots":
			b.sendSlotsList(chatID)
		case "book":
			b.sendBookingKeyboard(chatID)
		case "mybookings":
			b.sendMyBookings(chatID, userID)
		case "ask":
			b.userStates[userID].Stage = StageAwaitingQuestion
			msg := tgbotapi.NewMessage(chatID, "Напишите ваш вопрос одним сообщением. Для отмены — /cancel")
			b.send(msg)
		default:
			log.Printf("Unhandled menu value: %s", value)
		}

	case "book":
		b.answerCallbackQuery(query.ID, "")
		if value == "" {
			return
		}
		b.handleBookSlot(query, value)

	case "cancelbooking":
		b.answerCallbackQuery(query.ID, "")
		if value == "" {
			return
		}
		b.handleCancelBooking(query, value)

	default:
		log.Printf("Unhandled callback action: %s", action)
		b.answerCallbackQuery(query.ID, "")
	}
}

// handleStartCommand handles the /start command
func (b *Bot) handleStartCommand(message *tgbotapi.Message) {
	msg := tgbotapi.NewMessage(message.Chat.ID, "Привет! Я бот-ассистент репетитора по математике. Чем помочь?")
	msg.ReplyMarkup = b.mainMenuKeyboard()
	b.send(msg)
}

// replyWithMenu sends a text followed by the main menu keyboard.
func (b *Bot) replyWithMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = b.mainMenuKeyboard()
	b.send(msg)
}

// sendSlotsList shows the free slots as plain text.
func (b *Bot) sendSlotsList(chatID int64) {
	available := b.storage.Available()
	if len(available) == 0 {
		msg := tgbotapi.NewMessage(chatID, "Свободных слотов пока нет. Напишите /ask для индивидуальной договоренности.")
		b.send(msg)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ближайшие слоты (время: %s):\n\n", b.location.String())
	for _, slot := range available {
		fmt.Fprintf(&sb, "• %s — свободно\n", b.formatLocalTime(slot.StartAt))
	}
	msg := tgbotapi.NewMessage(chatID, sb.String())
	b.send(msg)
}

// sendBookingKeyboard shows the free slots as booking buttons.
func (b *Bot) sendBookingKeyboard(chatID int64) {
	available := b.storage.Available()
	if len(available) == 0 {
		msg := tgbotapi.NewMessage(chatID, "Свободных слотов нет. Попробуйте позже или задайте вопрос через /ask.")
		b.send(msg)
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Выберите слот:")
	msg.ReplyMarkup = b.bookingKeyboard(available)
	b.send(msg)
}

// sendMyBookings shows the user's active bookings with cancel buttons.
func (b *Bot) sendMyBookings(chatID, userID int64) {
	bookings := b.storage.BookingsFor(userID)
	if len(bookings) == 0 {
		b.replyWithMenu(chatID, "У вас пока нет активных записей.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Ваши записи:\n\n")
	for _, slot := range bookings {
		fmt.Fprintf(&sb, "• %s\n", b.formatLocalTime(slot.StartAt))
	}

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = b.bookingsKeyboard(bookings)
	b.send(msg)
}

// handleBookSlot runs the booking flow for one slot.
//
// The calendar event is created before the reservation, so a slot that
// gets booked by somebody else in between leaves an orphaned event; in
// that case the event is deleted again and the user is told the slot
// is gone. A calendar failure never blocks the booking itself.
func (b *Bot) handleBookSlot(query *tgbotapi.CallbackQuery, slotID string) {
	chatID := query.Message.Chat.ID
	user := query.From
	userName := displayName(user)
	userContact := contactOf(user)

	calendarEventID := ""
	if b.calendar.Enabled() {
		for _, slot := range b.storage.Available() {
			if slot.ID != slotID {
				continue
			}
			eventID, err := b.calendar.CreateEvent(context.Background(), slot, userName, userContact)
			if err != nil {
				log.Printf("Error creating calendar event for slot %s: %v", slotID, err)
			} else {
				calendarEventID = eventID
			}
			break
		}
	}

	booked := b.storage.Reserve(slotID, user.ID, userName, userContact, calendarEventID)
	if booked == nil {
		// The slot was taken between the keyboard render and the click.
		if calendarEventID != "" {
			b.calendar.DeleteEvent(context.Background(), calendarEventID)
		}
		msg := tgbotapi.NewMessage(chatID, "Увы, этот слот уже недоступен. Попробуйте другой.")
		b.send(msg)
		return
	}

	adminMessage := fmt.Sprintf("✅ Новая бронь:\nПользователь: %s %s\nСлот: %s",
		userName, userContact, b.formatLocalTime(booked.StartAt))
	if calendarEventID != "" {
		adminMessage += "\n📅 Добавлено в календарь"
	}
	b.notifyAdmin(adminMessage)

	text := fmt.Sprintf("✅ Готово! Вы записаны на %s.\n\nЯ пришлю напоминание за день до занятия.",
		b.formatLocalTime(booked.StartAt))
	msg := tgbotapi.NewMessage(chatID, text)
	b.send(msg)
}

// handleCancelBooking runs the cancellation flow for one booking.
func (b *Bot) handleCancelBooking(query *tgbotapi.CallbackQuery, slotID string) {
	chatID := query.Message.Chat.ID

	snapshot := b.storage.Cancel(slotID, query.From.ID)
	if snapshot == nil {
		msg := tgbotapi.NewMessage(chatID, "Не удалось отменить бронь. Возможно, она уже была отменена.")
		b.send(msg)
		return
	}

	if snapshot.CalendarEventID != "" {
		b.calendar.DeleteEvent(context.Background(), snapshot.CalendarEventID)
	}

	b.notifyAdmin(fmt.Sprintf("❌ Отмена брони:\nПользователь: %s %s\nСлот: %s",
		snapshot.UserName, snapshot.UserContact, b.formatLocalTime(snapshot.StartAt)))

	text := fmt.Sprintf("❌ Бронь отменена: %s\n\nСлот снова доступен для записи.",
		b.formatLocalTime(snapshot.StartAt))
	b.replyWithMenu(chatID, text)
}

// handleAskCommand switches the user into question mode.
func (b *Bot) handleAskCommand(message *tgbotapi.Message) {
	b.userStates[message.From.ID].Stage = StageAwaitingQuestion
	msg := tgbotapi.NewMessage(message.Chat.ID, "Напишите ваш вопрос одним сообщением. Для отмены — /cancel")
	b.send(msg)
}

// handleCancelCommand handles the /cancel command
func (b *Bot) handleCancelCommand(message *tgbotapi.Message) {
	b.userStates[message.From.ID].Stage = StageIdle
	b.replyWithMenu(message.Chat.ID, "Отменено.")
}

// forwardQuestion forwards a question message to the tutor.
func (b *Bot) forwardQuestion(message *tgbotapi.Message) {
	user := message.From
	b.notifyAdmin(fmt.Sprintf("Вопрос от %s @%s (id: %d):\n\n%s",
		user.FirstName, user.UserName, user.ID, message.Text))

	b.userStates[user.ID].Stage = StageIdle
	b.replyWithMenu(message.Chat.ID, "Спасибо! Ваш вопрос отправлен. Ответ поступит в личные сообщения.")
}

// handleStatsCommand handles the admin-only /stats command
func (b *Bot) handleStatsCommand(message *tgbotapi.Message) {
	if !b.isAdmin(message.From.ID) {
		msg := tgbotapi.NewMessage(message.Chat.ID, "У вас нет доступа к этой команде.")
		b.send(msg)
		return
	}

	allSlots := b.storage.ListAll()
	bookedSlots := b.storage.AllBooked()
	availableSlots := b.storage.Available()

	uniqueUsers := make(map[int64]struct{})
	pastBookings, futureBookings := 0, 0
	now := time.Now()
	for _, slot := range bookedSlots {
		uniqueUsers[slot.BookedBy] = struct{}{}
		if slot.StartAt.Before(now) {
			pastBookings++
		} else {
			futureBookings++
		}
	}

	calendarStatus := "Не подключен ❌"
	if b.calendar.Enabled() {
		calendarStatus = "Подключен ✅"
	}

	text := fmt.Sprintf("📊 Статистика бота\n\n"+
		"👥 Уникальных пользователей: %d\n"+
		"📅 Всего слотов: %d\n"+
		"✅ Забронировано: %d\n"+
		"🆓 Свободно: %d\n\n"+
		"⏮ Прошедших занятий: %d\n"+
		"⏭ Предстоящих занятий: %d\n\n"+
		"🔗 Google Calendar: %s",
		len(uniqueUsers), len(allSlots), len(bookedSlots), len(availableSlots),
		pastBookings, futureBookings, calendarStatus)

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	b.send(msg)
}

// handleAddSlotCommand handles the admin-only /addslot command.
// Format: /addslot 2025-10-25T12:00:00Z 55
func (b *Bot) handleAddSlotCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.isAdmin(message.From.ID) {
		msg := tgbotapi.NewMessage(chatID, "У вас нет доступа к этой команде.")
		b.send(msg)
		return
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		msg := tgbotapi.NewMessage(chatID, "Использование: /addslot 2025-10-25T12:00:00Z 55")
		b.send(msg)
		return
	}

	duration := 0
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			msg := tgbotapi.NewMessage(chatID, "Длительность должна быть числом минут, например 55.")
			b.send(msg)
			return
		}
		duration = parsed
	}

	created, err := b.storage.Add(args[0], duration)
	if err != nil {
		log.Printf("Error adding slot: %v", err)
		msg := tgbotapi.NewMessage(chatID, "Не удалось добавить слот. Проверьте формат даты.")
		b.send(msg)
		return
	}

	minutes := int(created.EndAt.Sub(created.StartAt).Minutes())
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Слот добавлен: %s (%d мин)",
		b.formatLocalTime(created.StartAt), minutes))
	b.send(msg)
}

// handleRemoveSlotCommand handles the admin-only /removeslot command.
// Format: /removeslot <slotId>
//
// Removing a booked slot drops the booking, so the affected client is
// told about it and the calendar event is released here.
func (b *Bot) handleRemoveSlotCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.isAdmin(message.From.ID) {
		msg := tgbotapi.NewMessage(chatID, "У вас нет доступа к этой команде.")
		b.send(msg)
		return
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		msg := tgbotapi.NewMessage(chatID, "Использование: /removeslot <slotId>")
		b.send(msg)
		return
	}

	removed, ok := b.storage.Remove(args[0])
	if !ok {
		msg := tgbotapi.NewMessage(chatID, "Слот не найден.")
		b.send(msg)
		return
	}

	if removed.IsBooked {
		if removed.CalendarEventID != "" {
			b.calendar.DeleteEvent(context.Background(), removed.CalendarEventID)
		}
		notice := fmt.Sprintf("К сожалению, ваше занятие %s отменено репетитором. Выберите другое время через /book.",
			b.formatLocalTime(removed.StartAt))
		if _, err := b.send(tgbotapi.NewMessage(removed.BookedBy, notice)); err != nil {
			log.Printf("Error notifying user %d about removed slot: %v", removed.BookedBy, err)
		}
	}

	msg := tgbotapi.NewMessage(chatID, "Слот удалён.")
	b.send(msg)
}

// handleListSlotsCommand handles the admin-only /listslots command
func (b *Bot) handleListSlotsCommand(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.isAdmin(message.From.ID) {
		msg := tgbotapi.NewMessage(chatID, "У вас нет доступа к этой команде.")
		b.send(msg)
		return
	}

	all := b.storage.ListAll()
	if len(all) == 0 {
		msg := tgbotapi.NewMessage(chatID, "Слотов нет.")
		b.send(msg)
		return
	}

	var sb strings.Builder
	for _, slot := range all {
		status := "свободен"
		if slot.IsBooked {
			status = fmt.Sprintf("занят (%s %s)", slot.UserName, slot.UserContact)
		}
		fmt.Fprintf(&sb, "• %s: %s — %s\n", slot.ID, b.formatLocalTime(slot.StartAt), status)
	}
	msg := tgbotapi.NewMessage(chatID, sb.String())
	b.send(msg)
}

// isAdmin reports whether the user is the configured tutor chat.
func (b *Bot) isAdmin(userID int64) bool {
	return b.adminChatID != 0 && userID == b.adminChatID
}
