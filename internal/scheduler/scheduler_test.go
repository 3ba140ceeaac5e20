package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"kaizenbot/internal/models"
)

func TestSelectQuestionsEmptyPool(t *testing.T) {
	if got := SelectQuestions(nil); got != nil {
		t.Fatalf("expected nil selection, got %v", got)
	}
}

func TestSelectQuestionsBounds(t *testing.T) {
	for poolSize := 1; poolSize <= 6; poolSize++ {
		pool := make([]*models.Question, poolSize)
		for i := range pool {
			pool[i] = &models.Question{ID: int64(i + 1), Text: fmt.Sprintf("q%d", i+1)}
		}
		max := poolSize
		if max > maxDailyQuestions {
			max = maxDailyQuestions
		}
		for run := 0; run < 50; run++ {
			selection := SelectQuestions(pool)
			if len(selection) < 1 || len(selection) > max {
				t.Fatalf("pool %d: selection size %d out of [1, %d]", poolSize, len(selection), max)
			}
			seen := make(map[int64]bool)
			for _, q := range selection {
				if seen[q.ID] {
					t.Fatalf("pool %d: duplicate question %d in selection", poolSize, q.ID)
				}
				seen[q.ID] = true
			}
		}
	}
}

func TestSelectQuestionsDoesNotMutatePool(t *testing.T) {
	pool := []*models.Question{{ID: 1}, {ID: 2}, {ID: 3}}
	for run := 0; run < 20; run++ {
		SelectQuestions(pool)
	}
	for i, q := range pool {
		if q.ID != int64(i+1) {
			t.Fatalf("pool order changed: %v", pool)
		}
	}
}

type fakeSource struct {
	due map[string][]*models.UserReminder
	err error
}

func (f *fakeSource) UsersWithReminderAt(_ context.Context, timeOfDay string) ([]*models.UserReminder, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.due[timeOfDay], nil
}

type fakeNotifier struct {
	dispatched []int64
	failFor    int64
}

func (f *fakeNotifier) Dispatch(_ context.Context, target *models.UserReminder) error {
	if target.UserID == f.failFor {
		return errors.New("delivery failed")
	}
	f.dispatched = append(f.dispatched, target.UserID)
	return nil
}

func TestTickDispatchesOnlyDueUsers(t *testing.T) {
	source := &fakeSource{due: map[string][]*models.UserReminder{
		"09:00": {
			{UserID: 1, TelegramID: 101, Time: "09:00"},
			{UserID: 2, TelegramID: 102, Time: "09:00"},
		},
	}}
	notifier := &fakeNotifier{}
	sched := New(source, notifier)

	sched.Tick(context.Background(), "08:59")
	if len(notifier.dispatched) != 0 {
		t.Fatalf("expected no dispatches at 08:59, got %v", notifier.dispatched)
	}

	sched.Tick(context.Background(), "09:00")
	if len(notifier.dispatched) != 2 {
		t.Fatalf("expected 2 dispatches at 09:00, got %v", notifier.dispatched)
	}
}

func TestTickIsolatesUserFailures(t *testing.T) {
	source := &fakeSource{due: map[string][]*models.UserReminder{
		"07:00": {
			{UserID: 1, TelegramID: 101, Time: "07:00"},
			{UserID: 2, TelegramID: 102, Time: "07:00"},
			{UserID: 3, TelegramID: 103, Time: "07:00"},
		},
	}}
	notifier := &fakeNotifier{failFor: 2}
	sched := New(source, notifier)

	sched.Tick(context.Background(), "07:00")
	if len(notifier.dispatched) != 2 {
		t.Fatalf("expected remaining users delivered, got %v", notifier.dispatched)
	}
	for _, id := range notifier.dispatched {
		if id == 2 {
			t.Fatalf("failed user should not be in dispatched list")
		}
	}
}

func TestTickSurvivesSourceError(t *testing.T) {
	source := &fakeSource{err: errors.New("db down")}
	notifier := &fakeNotifier{}
	sched := New(source, notifier)

	sched.Tick(context.Background(), "09:00")
	if len(notifier.dispatched) != 0 {
		t.Fatalf("expected no dispatches, got %v", notifier.dispatched)
	}
}
