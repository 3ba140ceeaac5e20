// Package scheduler drives the daily reminder loop: a minute clock that
// matches due reminder times and pushes the day's questions to each user.
package scheduler

import (
	"context"
	"log"
	"time"

	"kaizenbot/internal/models"
)

// ReminderSource yields the users whose reminders are due at a given time.
type ReminderSource interface {
	UsersWithReminderAt(ctx context.Context, timeOfDay string) ([]*models.UserReminder, error)
}

// Notifier delivers the daily questions for one due reminder.
type Notifier interface {
	Dispatch(ctx context.Context, target *models.UserReminder) error
}

// Scheduler fires once per wall-clock minute and dispatches to every user
// with an active reminder matching that minute. Dispatch runs inline in the
// scheduler goroutine, so a tick can never overlap itself; if processing
// overruns the minute the missed minutes are skipped, not replayed.
type Scheduler struct {
	reminders ReminderSource
	notifier  Notifier
	lastFired string
}

func New(reminders ReminderSource, notifier Notifier) *Scheduler {
	return &Scheduler{reminders: reminders, notifier: notifier}
}

// Run blocks until the context is cancelled, ticking at every minute
// boundary of the server clock.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := time.Now()
		next := now.Truncate(time.Minute).Add(time.Minute)

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		hhmm := time.Now().Format("15:04")
		if hhmm == s.lastFired {
			continue
		}
		s.lastFired = hhmm
		s.Tick(ctx, hhmm)
	}
}

// Tick dispatches to every user due at the given HH:MM. One user's failure
// is logged and does not stop delivery to the rest.
func (s *Scheduler) Tick(ctx context.Context, hhmm string) {
	targets, err := s.reminders.UsersWithReminderAt(ctx, hhmm)
	if err != nil {
		log.Printf("scheduler: scan reminders at %s: %v", hhmm, err)
		return
	}
	if len(targets) == 0 {
		return
	}
	log.Printf("scheduler: %s due for %d user(s)", hhmm, len(targets))

	for _, target := range targets {
		if err := s.notifier.Dispatch(ctx, target); err != nil {
			log.Printf("scheduler: %v", err)
		}
	}
}
