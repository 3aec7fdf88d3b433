package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dnikulchenkov/math-tutor-bot/bot"
	"github.com/dnikulchenkov/math-tutor-bot/calendar"
	"github.com/dnikulchenkov/math-tutor-bot/storage"
	"github.com/dnikulchenkov/math-tutor-bot/worker"
)

func main() {
	// Parse command-line flags
	token := flag.String("token", "", "Telegram bot token (or use BOT_TOKEN env var)")
	adminChat := flag.Int64("adminChat", 0, "Telegram chat ID of the tutor (or use ADMIN_CHAT_ID env var)")
	flag.Parse()

	// --- Configuration from Environment Variables ---
	botToken := *token
	if botToken == "" {
		botToken = os.Getenv("BOT_TOKEN")
	}
	if botToken == "" {
		log.Fatal("Telegram bot token is required. Provide it with -token flag or BOT_TOKEN environment variable")
	}

	adminChatID := *adminChat
	if adminChatID == 0 {
		if raw := os.Getenv("ADMIN_CHAT_ID"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				log.Fatalf("Invalid ADMIN_CHAT_ID %q: %v", raw, err)
			}
			adminChatID = parsed
		}
	}
	if adminChatID == 0 {
		log.Println("ADMIN_CHAT_ID not set, admin notifications are disabled")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/tutorbot.db"
		log.Printf("DB_PATH not set, using default: %s", dbPath)
	}

	timeZone := os.Getenv("TZ")
	if timeZone == "" {
		timeZone = "Europe/Moscow"
	}
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		log.Fatalf("Invalid time zone %q: %v", timeZone, err)
	}
	// --- End Configuration ---

	// Initialize SQLite storage
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize SQLite storage at %s: %v", dbPath, err)
	}
	defer store.Close()

	// Initialize the Google Calendar integration (optional)
	calendarSvc, err := calendar.NewService(context.Background(),
		[]byte(os.Getenv("GOOGLE_CALENDAR_CREDENTIALS")),
		os.Getenv("GOOGLE_CALENDAR_ID"),
		timeZone)
	if err != nil {
		log.Fatalf("Failed to initialize Google Calendar: %v", err)
	}

	// Initialize the bot
	tutorBot, err := bot.New(botToken, store, calendarSvc, adminChatID, location)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	// Initialize and start the reminder worker
	reminderWorker := worker.NewReminderWorker(worker.NewReminderWorkerConfig{
		Storage:  store,
		NotifyCh: tutorBot.GetNotifyChannel(),
	})
	reminderWorker.Start()
	log.Printf("Reminder worker started (DB: %s)", dbPath)

	// Start the bot in a separate goroutine
	go func() {
		if err := tutorBot.Start(); err != nil {
			log.Fatalf("Failed to start bot: %v", err)
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	receivedSignal := <-sigCh
	log.Printf("Received signal: %v", receivedSignal)

	log.Println("Initiating graceful shutdown...")
	reminderWorker.Stop()
	log.Println("Reminder worker stopped")
	log.Println("Bot stopped")
}
