package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"kaizenbot/internal/telegram"
)

type recordingHandler struct {
	mu       sync.Mutex
	order    map[int64][]int64
	inFlight map[int64]bool
	overlaps int
	delay    time.Duration
	wg       *sync.WaitGroup
}

func newRecordingHandler(expected int, delay time.Duration) *recordingHandler {
	wg := &sync.WaitGroup{}
	wg.Add(expected)
	return &recordingHandler{
		order:    make(map[int64][]int64),
		inFlight: make(map[int64]bool),
		delay:    delay,
		wg:       wg,
	}
}

func (h *recordingHandler) HandleUpdate(_ context.Context, upd telegram.Update) {
	key := upd.Message.Chat.ID

	h.mu.Lock()
	if h.inFlight[key] {
		h.overlaps++
	}
	h.inFlight[key] = true
	h.mu.Unlock()

	time.Sleep(h.delay)

	h.mu.Lock()
	h.inFlight[key] = false
	h.order[key] = append(h.order[key], upd.UpdateID)
	h.mu.Unlock()

	h.wg.Done()
}

func (h *recordingHandler) waitAll(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for updates to be processed")
	}
}

func chatUpdate(chatID, updateID int64) telegram.Update {
	return telegram.Update{
		UpdateID: updateID,
		Message: &telegram.Message{
			MessageID: updateID,
			From:      telegram.User{ID: chatID},
			Chat:      telegram.Chat{ID: chatID},
			Text:      "hello",
		},
	}
}

func TestDispatcherSerializesPerChat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const perChat = 5
	handler := newRecordingHandler(perChat*2, 5*time.Millisecond)
	d := NewDispatcher(ctx, handler, 2, 4, 64, time.Minute)

	// interleave two chats so parallel workers are tempted to overlap
	var updateID int64
	for i := 0; i < perChat; i++ {
		for _, chat := range []int64{100, 200} {
			updateID++
			if err := d.Submit(chatUpdate(chat, updateID)); err != nil {
				t.Fatalf("submit: %v", err)
			}
		}
	}
	handler.waitAll(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if handler.overlaps != 0 {
		t.Fatalf("updates for the same chat overlapped %d times", handler.overlaps)
	}
	for _, chat := range []int64{100, 200} {
		got := handler.order[chat]
		if len(got) != perChat {
			t.Fatalf("chat %d: expected %d updates, got %d", chat, perChat, len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i] < got[i-1] {
				t.Fatalf("chat %d: updates processed out of order: %v", chat, got)
			}
		}
	}
}

func TestDispatcherDrainsWithSmallQueueAndManyWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// More workers than the inbound buffer: their completion signals must
	// all fit while the run loop waits on the pool.
	const chats = 16
	handler := newRecordingHandler(chats, 5*time.Millisecond)
	d := NewDispatcher(ctx, handler, 8, 16, 2, time.Minute)

	for i := int64(1); i <= chats; i++ {
		for {
			if err := d.Submit(chatUpdate(i, i)); err == nil {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	handler.waitAll(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.order) != chats {
		t.Fatalf("expected %d chats served, got %d", chats, len(handler.order))
	}
}

func TestDispatcherProcessesManyChats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const chats = 20
	handler := newRecordingHandler(chats, time.Millisecond)
	d := NewDispatcher(ctx, handler, 1, 4, 64, time.Minute)

	for i := int64(1); i <= chats; i++ {
		if err := d.Submit(chatUpdate(i, i)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	handler.waitAll(t)

	handler.mu.Lock()
	defer handler.mu.Unlock()
	if len(handler.order) != chats {
		t.Fatalf("expected %d chats served, got %d", chats, len(handler.order))
	}
}
