package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/memoza/flashcards-back/internal/ai"
	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/lease"
	"github.com/memoza/flashcards-back/internal/quality"
	"github.com/memoza/flashcards-back/internal/repository"
)

// Outcome is the terminal result of one executor pass.
type Outcome string

const (
	// OutcomeCompleted means the job reached done.
	OutcomeCompleted Outcome = "completed"
	// OutcomeFailed means the job was marked failed with a stored error.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means a live lease shut this pass out, or the job
	// is already terminal. Not an error; callers re-poll.
	OutcomeSkipped Outcome = "skipped"
)

type Dependencies struct {
	Jobs       repository.JobsRepository
	Decks      repository.DecksRepository
	Writer     *IdempotentWriter
	Leases     *lease.Manager
	Recognizer ai.Recognizer
	Generator  ai.CardGenerator
	Validator  *quality.CardValidator
	Logger     *log.Logger

	HolderID       string
	LeaseTTL       time.Duration
	MaxCardsPerJob int
}

// Executor acquires a job's lease and drives its phases to a terminal
// outcome, persisting the record after every unit of work so any later
// pass resumes from the checkpoint instead of redoing finished units.
type Executor struct {
	jobs       repository.JobsRepository
	decks      repository.DecksRepository
	writer     *IdempotentWriter
	leases     *lease.Manager
	recognizer ai.Recognizer
	generator  ai.CardGenerator
	validator  *quality.CardValidator
	logger     *log.Logger

	holderID string
	leaseTTL time.Duration
	maxCards int
	now      func() time.Time
}

func New(deps Dependencies) *Executor {
	if deps.HolderID == "" {
		deps.HolderID = "executor-1"
	}
	if deps.LeaseTTL <= 0 {
		deps.LeaseTTL = lease.DefaultTTL
	}
	if deps.MaxCardsPerJob <= 0 {
		deps.MaxCardsPerJob = 200
	}
	if deps.Validator == nil {
		deps.Validator = quality.NewCardValidator(deps.MaxCardsPerJob)
	}
	return &Executor{
		jobs:       deps.Jobs,
		decks:      deps.Decks,
		writer:     deps.Writer,
		leases:     deps.Leases,
		recognizer: deps.Recognizer,
		generator:  deps.Generator,
		validator:  deps.Validator,
		logger:     deps.Logger,
		holderID:   deps.HolderID,
		leaseTTL:   deps.LeaseTTL,
		maxCards:   deps.MaxCardsPerJob,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one pass over the job. Phase failures are captured into the
// record and reported as OutcomeFailed, not returned as errors: trigger
// paths have no caller to receive them. The returned error covers
// infrastructure trouble only (store unreachable, pass interrupted).
func (e *Executor) Run(ctx context.Context, jobID string) (Outcome, error) {
	job, err := e.leases.TryAcquire(ctx, jobID, e.holderID, e.leaseTTL)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) || errors.Is(err, lease.ErrTerminal) {
			return OutcomeSkipped, nil
		}
		return "", err
	}

	if err := job.Payload.Validate(); err != nil {
		return e.fail(ctx, job, err)
	}

	var runErr error
	switch job.Payload.Mode {
	case domain.JobModeCreate:
		runErr = e.runCreate(ctx, job)
	case domain.JobModeCollect:
		runErr = e.runCollect(ctx, job)
	default:
		runErr = fmt.Errorf("%w: mode %q", domain.ErrInvalidPayload, job.Payload.Mode)
	}

	if runErr != nil {
		// An interrupted pass is a crash, not a job failure: the record
		// stays running with a stale lease and the next trigger resumes it.
		if ctx.Err() != nil {
			return "", runErr
		}
		return e.fail(ctx, job, runErr)
	}

	job.Status = domain.JobStatusDone
	job.ErrorMessage = ""
	job.UpdatedAt = e.now()
	if err := e.jobs.UpdateJob(ctx, job); err != nil {
		return "", fmt.Errorf("mark done: %w", err)
	}
	if e.logger != nil {
		e.logger.Printf("job completed mode=%s job_id=%s", job.Mode, job.ID)
	}
	return OutcomeCompleted, nil
}

func (e *Executor) runCreate(ctx context.Context, job *domain.Job) error {
	payload := job.Payload.Create

	if len(payload.ImageRefs) > 0 {
		job.OCR.Total = len(payload.ImageRefs)
		job.OCR.Done = len(payload.OCRTexts)
		if err := e.checkpoint(ctx, job, domain.PhaseOCR); err != nil {
			return err
		}

		// Recognized text is persisted per image, so a resumed pass picks
		// up at the first unprocessed index.
		for index := len(payload.OCRTexts); index < len(payload.ImageRefs); index++ {
			text, err := e.recognizer.Recognize(ctx, payload.ImageRefs[index])
			if err != nil {
				return fmt.Errorf("ocr image %d: %w", index, err)
			}
			payload.OCRTexts = append(payload.OCRTexts, text)
			job.OCR.Done = len(payload.OCRTexts)
			if err := e.checkpoint(ctx, job, domain.PhaseOCR); err != nil {
				return err
			}
		}
	}

	if err := e.checkpoint(ctx, job, domain.PhaseGenerate); err != nil {
		return err
	}

	fragments := make([]string, 0, len(payload.OCRTexts)+1)
	if strings.TrimSpace(payload.RawText) != "" {
		fragments = append(fragments, strings.TrimSpace(payload.RawText))
	}
	for _, text := range payload.OCRTexts {
		if strings.TrimSpace(text) != "" {
			fragments = append(fragments, strings.TrimSpace(text))
		}
	}
	if len(fragments) == 0 {
		return fmt.Errorf("%w: no recognizable text in payload", domain.ErrInvalidPayload)
	}

	generated, err := e.generator.GenerateCards(ctx, strings.Join(fragments, "\n\n"), payload.Hints)
	if err != nil {
		return fmt.Errorf("generate cards: %w", err)
	}
	validated, err := e.validator.ValidateCards(generated)
	if err != nil {
		return err
	}

	items := make([]WriteItem, 0, len(validated.Cards))
	for index, card := range validated.Cards {
		items = append(items, WriteItem{
			Index:  index,
			DeckID: payload.TargetDeckID,
			Front:  card.Front,
			Back:   card.Back,
		})
	}

	job.Write.Total = len(items)
	if err := e.checkpoint(ctx, job, domain.PhaseWrite); err != nil {
		return err
	}
	return e.writeItems(ctx, job, items)
}

func (e *Executor) runCollect(ctx context.Context, job *domain.Job) error {
	payload := job.Payload.Collect

	if err := e.checkpoint(ctx, job, domain.PhaseCopy); err != nil {
		return err
	}

	shared, err := e.decks.GetSharedDeck(ctx, payload.SharedDeckID)
	if err != nil {
		return fmt.Errorf("load shared deck %s: %w", payload.SharedDeckID, err)
	}
	cards, err := e.decks.ListSharedDeckCards(ctx, payload.SharedDeckID)
	if err != nil {
		return fmt.Errorf("load shared deck cards %s: %w", payload.SharedDeckID, err)
	}
	if len(cards) > e.maxCards {
		return fmt.Errorf("%w: %d > %d", quality.ErrTooManyCards, len(cards), e.maxCards)
	}

	title := payload.DeckTitle
	if strings.TrimSpace(title) == "" {
		title = shared.Title
	}

	// Deck id derives from the job id, so re-running the pass recreates
	// the same deck instead of a duplicate.
	deckID := "deck-" + job.ID
	if err := e.decks.CreateDeck(ctx, &domain.Deck{
		ID:        deckID,
		OwnerID:   job.OwnerID,
		Title:     title,
		CreatedAt: e.now(),
	}); err != nil {
		return fmt.Errorf("create target deck: %w", err)
	}

	items := make([]WriteItem, 0, len(cards))
	for _, card := range cards {
		items = append(items, WriteItem{
			Index:  card.SourceIndex,
			DeckID: deckID,
			Front:  card.Front,
			Back:   card.Back,
		})
	}

	job.Write.Total = len(items)
	if err := e.checkpoint(ctx, job, domain.PhaseCopy); err != nil {
		return err
	}
	return e.writeItems(ctx, job, items)
}

func (e *Executor) writeItems(ctx context.Context, job *domain.Job, items []WriteItem) error {
	_, err := e.writer.WriteMissing(ctx, job.OwnerID, job.ID, items, func(done int) error {
		if done > job.Write.Done {
			job.Write.Done = done
		}
		job.UpdatedAt = e.now()
		return e.jobs.UpdateJob(ctx, job)
	})
	return err
}

// checkpoint persists the phase label and counters. A successful phase
// transition also clears the last failure message.
func (e *Executor) checkpoint(ctx context.Context, job *domain.Job, phase string) error {
	job.Phase = phase
	job.ErrorMessage = ""
	job.UpdatedAt = e.now()
	if err := e.jobs.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("checkpoint %s: %w", phase, err)
	}
	return nil
}

func (e *Executor) fail(ctx context.Context, job *domain.Job, cause error) (Outcome, error) {
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = cause.Error()
	job.UpdatedAt = e.now()
	if err := e.jobs.UpdateJob(ctx, job); err != nil {
		return "", fmt.Errorf("mark failed: %w", err)
	}
	if e.logger != nil {
		e.logger.Printf("job failed mode=%s job_id=%s err=%v", job.Mode, job.ID, cause)
	}
	return OutcomeFailed, nil
}
