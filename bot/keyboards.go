package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dnikulchenkov/math-tutor-bot/storage"
)

// mainMenuKeyboard returns the inline main menu shown after most replies.
func (b *Bot) mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("ℹ️ Обучение", "menu:info")},
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("💰 Стоимость", "menu:prices")},
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("📅 Свободные даты", "menu:slots")},
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("📝 Записаться", "menu:book")},
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("📋 Мои записи", "menu:mybookings")},
		[]tgbotapi.InlineKeyboardButton{tgbotapi.NewInlineKeyboardButtonData("❓ Задать вопрос", "menu:ask")},
	)
}

// bookingKeyboard returns one button per free slot; pressing a button
// books that slot.
func (b *Bot) bookingKeyboard(available []storage.Slot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, slot := range available {
		button := tgbotapi.NewInlineKeyboardButtonData(b.formatLocalTime(slot.StartAt), "book:"+slot.ID)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{button})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// bookingsKeyboard returns a cancel button per active booking of the user.
func (b *Bot) bookingsKeyboard(bookings []storage.Slot) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, slot := range bookings {
		label := b.formatLocalTime(slot.StartAt) + " - Отменить ❌"
		button := tgbotapi.NewInlineKeyboardButtonData(label, "cancelbooking:"+slot.ID)
		rows = append(rows, []tgbotapi.InlineKeyboardButton{button})
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
