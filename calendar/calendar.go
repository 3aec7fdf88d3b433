// Package calendar mirrors booked lessons into a Google Calendar.
// The integration is optional: without credentials the service stays
// disabled and every call is a cheap no-op, so the booking flow never
// depends on it.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/dnikulchenkov/math-tutor-bot/storage"
)

const retrySleep = 5 * time.Second

// Service wraps the Google Calendar API for a single tutor calendar,
// authenticated with a service account.
type Service struct {
	svc        *gcal.Service
	calendarID string
	timeZone   string
}

// NewService builds a calendar service from service-account credentials
// JSON and a calendar ID. When either is missing the integration is
// skipped and a disabled service is returned.
func NewService(ctx context.Context, credentialsJSON []byte, calendarID, timeZone string) (*Service, error) {
	if len(credentialsJSON) == 0 || calendarID == "" {
		log.Println("Google Calendar is not configured, skipping integration")
		return &Service{}, nil
	}

	jwtCfg, err := google.JWTConfigFromJSON(credentialsJSON, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar credentials: %w", err)
	}

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	log.Println("Google Calendar connected")
	return &Service{
		svc:        svc,
		calendarID: calendarID,
		timeZone:   timeZone,
	}, nil
}

// Enabled reports whether the integration is configured.
func (s *Service) Enabled() bool {
	return s.svc != nil
}

// CreateEvent inserts a lesson event for the booked slot and returns
// its event ID, the opaque handle stored on the slot for later
// deletion. Returns an empty ID when the integration is disabled.
func (s *Service) CreateEvent(ctx context.Context, slot storage.Slot, userName, userContact string) (string, error) {
	if !s.Enabled() {
		return "", nil
	}

	event := &gcal.Event{
		Summary:     fmt.Sprintf("Занятие по математике - %s", userName),
		Description: fmt.Sprintf("Занятие с %s (%s)\nДлительность: %d минут", userName, userContact, int(slot.EndAt.Sub(slot.StartAt).Minutes())),
		Start: &gcal.EventDateTime{
			DateTime: slot.StartAt.Format(time.RFC3339),
			TimeZone: s.timeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: slot.EndAt.Format(time.RFC3339),
			TimeZone: s.timeZone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 60},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	for {
		created, err := s.svc.Events.Insert(s.calendarID, event).Context(ctx).Do()
		if err == nil {
			log.Printf("Calendar event created: %s", created.Id)
			return created.Id, nil
		}
		if shouldRetry(err) {
			time.Sleep(retrySleep)
			continue
		}
		return "", fmt.Errorf("failed to create calendar event: %w", err)
	}
}

// DeleteEvent removes the event with the given ID. It reports whether
// the event is gone; an already-deleted event counts as success.
func (s *Service) DeleteEvent(ctx context.Context, eventID string) bool {
	if !s.Enabled() || eventID == "" {
		return false
	}

	for {
		err := s.svc.Events.Delete(s.calendarID, eventID).Context(ctx).Do()
		if err == nil || alreadyDeleted(err) {
			log.Printf("Calendar event deleted: %s", eventID)
			return true
		}
		if shouldRetry(err) {
			time.Sleep(retrySleep)
			continue
		}
		log.Printf("Error deleting calendar event %s: %v", eventID, err)
		return false
	}
}

func shouldRetry(err error) bool {
	return errIsReason(err, "rateLimitExceeded")
}

func alreadyDeleted(err error) bool {
	return errIsReason(err, "deleted")
}

func errIsReason(err error, reason string) bool {
	var gErr *googleapi.Error
	if !errors.As(err, &gErr) {
		return false
	}
	for _, e := range gErr.Errors {
		if e.Reason == reason {
			return true
		}
	}
	return false
}
