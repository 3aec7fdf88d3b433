package worker

import (
	"log"
	"sync"
	"time"

	"github.com/dnikulchenkov/math-tutor-bot/storage"
)

// DefaultLookaheadHours is how far ahead of a lesson the reminder
// fires. The sweep window is one hour wide and the sweep itself runs
// hourly, so each booking is picked up by at most one sweep.
const DefaultLookaheadHours = 24

const sweepInterval = time.Hour

// ReminderWorker periodically scans the slot storage for bookings that
// start within the lookahead window and pushes them onto the notify
// channel for delivery.
type ReminderWorker struct {
	storage        storage.SlotStorage
	notifyCh       chan<- storage.Slot
	lookaheadHours int
	stopCh         chan struct{}
	wg             sync.WaitGroup
	isRunning      bool
	runningMutex   sync.Mutex
}

// NewReminderWorkerConfig represents the configuration for the reminder worker
type NewReminderWorkerConfig struct {
	Storage        storage.SlotStorage
	NotifyCh       chan<- storage.Slot
	LookaheadHours int // defaults to DefaultLookaheadHours when non-positive
}

// NewReminderWorker creates a new reminder worker instance
func NewReminderWorker(config NewReminderWorkerConfig) *ReminderWorker {
	lookahead := config.LookaheadHours
	if lookahead <= 0 {
		lookahead = DefaultLookaheadHours
	}

	return &ReminderWorker{
		storage:        config.Storage,
		notifyCh:       config.NotifyCh,
		lookaheadHours: lookahead,
		stopCh:         make(chan struct{}),
	}
}

// Start starts the reminder worker
func (w *ReminderWorker) Start() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if w.isRunning {
		return
	}

	w.isRunning = true
	w.wg.Add(1)
	go w.run()
}

// Stop stops the reminder worker and waits for the sweep loop to exit.
func (w *ReminderWorker) Stop() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if !w.isRunning {
		return
	}

	log.Println("Stopping reminder worker...")
	close(w.stopCh)
	w.wg.Wait()
	w.isRunning = false
}

// run is the main worker loop
func (w *ReminderWorker) run() {
	defer w.wg.Done()
	log.Println("Reminder worker started.")

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkReminders()
		case <-w.stopCh:
			log.Println("Reminder worker loop stopping.")
			return
		}
	}
}

// checkReminders queries the storage for bookings inside the lookahead
// window and hands each one to the notify channel. A full channel
// drops the reminder with a log line rather than blocking the sweep.
func (w *ReminderWorker) checkReminders() {
	upcoming := w.storage.Upcoming(w.lookaheadHours)
	if len(upcoming) == 0 {
		return
	}
	log.Printf("Reminder sweep found %d upcoming booking(s)", len(upcoming))

	for _, slot := range upcoming {
		if slot.BookedBy == 0 {
			continue
		}
		select {
		case w.notifyCh <- slot:
		default:
			log.Printf("Notify channel full, dropping reminder for slot %s", slot.ID)
		}
	}
}

// ForceCheck triggers an immediate sweep outside the hourly cadence.
func (w *ReminderWorker) ForceCheck() {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()

	if !w.isRunning {
		log.Println("ForceCheck called, but worker is not running.")
		return
	}

	go w.checkReminders()
}
