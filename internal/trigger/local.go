package trigger

import (
	"context"
	"log"
)

// LocalTrigger is a fallback wake-up channel used when Redis is not
// configured. A kick that would block is dropped instead: the sweep
// picks the job up on its next pass.
type LocalTrigger struct {
	ch     chan string
	logger *log.Logger
}

func NewLocalTrigger(bufferSize int, logger *log.Logger) *LocalTrigger {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	return &LocalTrigger{
		ch:     make(chan string, bufferSize),
		logger: logger,
	}
}

func (t *LocalTrigger) Kick(ctx context.Context, jobID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case t.ch <- jobID:
		return nil
	default:
		if t.logger != nil {
			t.logger.Printf("local trigger full, dropping kick job_id=%s", jobID)
		}
		return nil
	}
}

func (t *LocalTrigger) Consume(ctx context.Context, handler func(context.Context, string) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case jobID := <-t.ch:
			if err := handler(ctx, jobID); err != nil {
				if t.logger != nil {
					t.logger.Printf("local trigger handler error job_id=%s err=%v", jobID, err)
				}
			}
		}
	}
}
