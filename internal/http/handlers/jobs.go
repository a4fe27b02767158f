package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
)

type createJobRequest struct {
	ImageRefs    []string `json:"image_refs,omitempty"`
	RawText      string   `json:"raw_text,omitempty"`
	Hints        string   `json:"hints,omitempty"`
	TargetDeckID string   `json:"target_deck_id"`
}

type collectJobRequest struct {
	SharedDeckID string `json:"shared_deck_id"`
	DeckTitle    string `json:"deck_title,omitempty"`
}

// CreateJob accepts a card-generation request and returns 202 with a
// status URL. An Idempotency-Key header makes retried submissions land on
// the first job instead of spawning another.
func (api *API) CreateJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "X-Owner-ID header is required")
		return
	}

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(idempotencyKey) < 16 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "Idempotency-Key header is required")
		return
	}

	var request createJobRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.TargetDeckID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "target_deck_id is required")
		return
	}

	payloadHash := hashPayload(request)
	if entry, exists := api.idempotency.Get(owner + "|" + idempotencyKey); exists {
		if entry.PayloadHash != payloadHash {
			writeError(w, r, http.StatusConflict, "idempotency_conflict", "Idempotency-Key already used with different payload")
			return
		}
		writeAccepted(w, entry.JobID, entry.CreatedAt)
		return
	}

	job, err := api.jobsService.EnqueueCreate(r.Context(), owner, domain.CreateJobPayload{
		ImageRefs:    request.ImageRefs,
		RawText:      request.RawText,
		Hints:        request.Hints,
		TargetDeckID: request.TargetDeckID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	api.idempotency.Put(owner+"|"+idempotencyKey, payloadHash, job.ID)
	writeAccepted(w, job.ID, job.CreatedAt)
}

// CollectJob enqueues a shared-deck copy. No Idempotency-Key needed: the
// job id itself derives from (owner, shared deck).
func (api *API) CollectJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "X-Owner-ID header is required")
		return
	}

	var request collectJobRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.SharedDeckID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "shared_deck_id is required")
		return
	}

	job, err := api.jobsService.EnqueueCollect(r.Context(), owner, request.SharedDeckID, request.DeckTitle)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeAccepted(w, job.ID, job.CreatedAt)
}

// Jobs routes GET /v1/jobs/{id} and POST /v1/jobs/{id}/kick.
func (api *API) Jobs(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	rest = strings.Trim(rest, "/")
	if rest == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job id is required")
		return
	}

	if jobID, found := strings.CutSuffix(rest, "/kick"); found {
		api.kickJob(w, r, jobID)
		return
	}
	api.jobStatus(w, r, rest)
}

func (api *API) jobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "X-Owner-ID header is required")
		return
	}

	job, err := api.jobsService.GetStatus(r.Context(), owner, jobID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (api *API) kickJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "X-Owner-ID header is required")
		return
	}

	if err := api.jobsService.Kick(r.Context(), owner, jobID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     jobID,
		"status_url": "/v1/jobs/" + jobID,
	})
}

func writeAccepted(w http.ResponseWriter, jobID string, createdAt time.Time) {
	w.Header().Set("Retry-After", "2")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      jobID,
		"status":      "queued",
		"status_url":  "/v1/jobs/" + jobID,
		"accepted_at": createdAt.Format(time.RFC3339Nano),
	})
}
