package trigger

import "context"

// Kicker wakes the executor for a specific job. A kick is a best-effort
// hint: the job record is the source of truth, and the periodic sweep
// eventually reaches any job whose kick was lost.
type Kicker interface {
	Kick(ctx context.Context, jobID string) error
}

// Source delivers job wake-ups to a handler until the context ends.
type Source interface {
	Consume(ctx context.Context, handler func(context.Context, string) error) error
}
