package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

type JobMode string

const (
	JobModeCreate  JobMode = "create"
	JobModeCollect JobMode = "collect"
)

type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// Phase labels are progress-reporting strings only; control flow never
// branches on them. Consumers must treat unknown phases as opaque.
const (
	PhaseOCR      = "ocr"
	PhaseGenerate = "generate"
	PhaseWrite    = "write"
	PhaseCopy     = "copy"
)

var ErrInvalidPayload = errors.New("invalid job payload")

// StageProgress counts completed units for one executor stage.
// Done and Total never decrease within a job's lifetime.
type StageProgress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// CreateJobPayload holds the inputs of the OCR -> generate -> write pipeline.
// OCRTexts persists per-image recognition output so a resumed pass skips
// images already recognized.
type CreateJobPayload struct {
	ImageRefs    []string `json:"image_refs,omitempty"`
	RawText      string   `json:"raw_text,omitempty"`
	Hints        string   `json:"hints,omitempty"`
	TargetDeckID string   `json:"target_deck_id"`
	OCRTexts     []string `json:"ocr_texts,omitempty"`
}

// CollectJobPayload names the shared deck whose cards are copied into the
// owner's library.
type CollectJobPayload struct {
	SharedDeckID string `json:"shared_deck_id"`
	DeckTitle    string `json:"deck_title,omitempty"`
}

// JobPayload is a tagged union discriminated by Mode. Exactly one variant
// must be populated.
type JobPayload struct {
	Mode    JobMode            `json:"mode"`
	Create  *CreateJobPayload  `json:"create,omitempty"`
	Collect *CollectJobPayload `json:"collect,omitempty"`
}

func (p JobPayload) Validate() error {
	switch p.Mode {
	case JobModeCreate:
		if p.Create == nil || p.Collect != nil {
			return ErrInvalidPayload
		}
		if len(p.Create.ImageRefs) == 0 && p.Create.RawText == "" {
			return fmt.Errorf("%w: create job needs images or raw text", ErrInvalidPayload)
		}
		if p.Create.TargetDeckID == "" {
			return fmt.Errorf("%w: target_deck_id is required", ErrInvalidPayload)
		}
		return nil
	case JobModeCollect:
		if p.Collect == nil || p.Create != nil {
			return ErrInvalidPayload
		}
		if p.Collect.SharedDeckID == "" {
			return fmt.Errorf("%w: shared_deck_id is required", ErrInvalidPayload)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPayload, string(p.Mode))
	}
}

// Job is the unit processed by the executor. The record doubles as the
// job's lock (lease fields), its progress checkpoint (stage counters) and
// its idempotency ledger (id + stage indices key all derived writes).
type Job struct {
	ID      string
	OwnerID string
	Mode    JobMode
	Status  JobStatus
	Phase   string

	LeaseHolder    string
	LeaseUpdatedAt time.Time

	OCR   StageProgress
	Write StageProgress

	Payload      JobPayload
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal reports whether the job can never be picked again.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusDone || j.Status == JobStatusFailed
}

// LeaseFresh reports whether the current lease holder is still considered
// alive at the given instant.
func (j *Job) LeaseFresh(now time.Time, ttl time.Duration) bool {
	if j.Status != JobStatusRunning || j.LeaseHolder == "" {
		return false
	}
	return now.Sub(j.LeaseUpdatedAt) < ttl
}

// CollectJobID derives a stable id from the owner and shared deck so that
// re-enqueueing the same collect intent overwrites the same record instead
// of spawning a duplicate job.
func CollectJobID(ownerID, sharedDeckID string) string {
	sum := sha256.Sum256([]byte(ownerID + "|" + sharedDeckID))
	return "collect-" + hex.EncodeToString(sum[:16])
}
