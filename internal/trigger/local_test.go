package trigger

import (
	"context"
	"testing"
	"time"
)

func TestLocalTriggerDeliversKicks(t *testing.T) {
	trig := NewLocalTrigger(8, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := trig.Kick(ctx, "job-1"); err != nil {
		t.Fatalf("kick: %v", err)
	}
	if err := trig.Kick(ctx, "job-2"); err != nil {
		t.Fatalf("kick: %v", err)
	}

	got := make(chan string, 2)
	go func() {
		_ = trig.Consume(ctx, func(_ context.Context, jobID string) error {
			got <- jobID
			return nil
		})
	}()

	for _, want := range []string{"job-1", "job-2"} {
		select {
		case jobID := <-got:
			if jobID != want {
				t.Fatalf("expected %s, got %s", want, jobID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestLocalTriggerDropsWhenFull(t *testing.T) {
	trig := NewLocalTrigger(1, nil)
	ctx := context.Background()

	if err := trig.Kick(ctx, "job-1"); err != nil {
		t.Fatalf("kick: %v", err)
	}

	// No consumer is running; a second kick must not block.
	done := make(chan error, 1)
	go func() { done <- trig.Kick(ctx, "job-2") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("kick on full buffer: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("kick blocked on full buffer")
	}
}
