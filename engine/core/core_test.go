package core

import (
	"errors"
	"sync"
	"testing"
)

func TestEventQueueOrder(t *testing.T) {
	q := NewEventQueue(8)
	q.Push(EventContext{Code: EVENT_CODE_RESIZED, Width: 800, Height: 600})
	q.Push(EventContext{Code: EVENT_CODE_MOUSE_MOVED, X: 1, Y: 2})
	q.Push(EventContext{Code: EVENT_CODE_APPLICATION_QUIT})

	events := q.Drain()
	want := []SystemEventCode{EVENT_CODE_RESIZED, EVENT_CODE_MOUSE_MOVED, EVENT_CODE_APPLICATION_QUIT}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.Code != want[i] {
			t.Errorf("event %d = %s, want %s", i, e.Code, want[i])
		}
	}
	if len(q.Drain()) != 0 {
		t.Fatal("queue should be empty after drain")
	}
}

func TestEventQueueOverflowDropsOldest(t *testing.T) {
	q := NewEventQueue(2)
	q.Push(EventContext{Code: EVENT_CODE_KEY_PRESSED, Key: KEY_R})
	q.Push(EventContext{Code: EVENT_CODE_KEY_PRESSED, Key: KEY_U})
	q.Push(EventContext{Code: EVENT_CODE_KEY_PRESSED, Key: KEY_F1})

	events := q.Drain()
	if len(events) != 2 || events[0].Key != KEY_U || events[1].Key != KEY_F1 {
		t.Fatalf("unexpected events after overflow: %+v", events)
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", q.Dropped())
	}
}

func TestEventQueueConcurrentProducers(t *testing.T) {
	q := NewEventQueue(1024)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				q.Push(EventContext{Code: EVENT_CODE_MOUSE_MOVED, X: float64(i)})
			}
		}()
	}
	wg.Wait()
	if n := len(q.Drain()); n != 400 {
		t.Fatalf("drained %d events, want 400", n)
	}
}

func TestInputStateEdges(t *testing.T) {
	s := NewInputState()
	s.Apply(EventContext{Code: EVENT_CODE_BUTTON_PRESSED, Button: BUTTON_LEFT, X: 10, Y: 20})
	if !s.ButtonPressed(BUTTON_LEFT) {
		t.Fatal("expected pressed edge")
	}
	s.Update()
	if s.ButtonPressed(BUTTON_LEFT) || !s.IsButtonDown(BUTTON_LEFT) {
		t.Fatal("button should be held without a new edge")
	}
	s.Apply(EventContext{Code: EVENT_CODE_MOUSE_MOVED, X: 15, Y: 18})
	dx, dy := s.MouseDelta()
	if dx != 5 || dy != -2 {
		t.Fatalf("delta = (%v, %v), want (5, -2)", dx, dy)
	}
	s.Apply(EventContext{Code: EVENT_CODE_MOUSE_WHEEL, Z: 1.5})
	if s.Scroll != 1.5 {
		t.Fatalf("scroll = %v", s.Scroll)
	}
	s.Update()
	if s.Scroll != 0 {
		t.Fatal("scroll should reset on update")
	}
}

func TestFrameMetricsFPS(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < 70; i++ {
		m.Update(1.0 / 60.0)
	}
	if m.FPS() < 59 || m.FPS() > 61 {
		t.Fatalf("fps = %v, want about 60", m.FPS())
	}
	if m.FrameTime() <= 0 {
		t.Fatal("frame time average should be populated")
	}
}

func TestJobSystemRunsEveryJob(t *testing.T) {
	js, err := NewJobSystem(3, 4)
	if err != nil {
		t.Fatal(err)
	}
	var mu sync.Mutex
	completed, failed := 0, 0
	for i := 0; i < 10; i++ {
		i := i
		js.Submit(JobTask{
			Run: func() error {
				if i%5 == 0 {
					return errors.New("boom")
				}
				return nil
			},
			OnComplete: func() {
				mu.Lock()
				completed++
				mu.Unlock()
			},
			OnFailure: func(error) {
				mu.Lock()
				failed++
				mu.Unlock()
			},
		})
	}
	js.Shutdown()
	js.Shutdown()

	if completed != 8 || failed != 2 {
		t.Errorf("completed %d failed %d, want 8 and 2", completed, failed)
	}
}

func TestJobSystemRejectsBadSizes(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Errorf("err = %v, want ErrNoWorkers", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Errorf("err = %v, want ErrNegativeChannelSize", err)
	}
}
