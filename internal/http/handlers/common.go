package handlers

import (
	"encoding/json"
	"errors"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/http/middleware"
	"github.com/memoza/flashcards-back/internal/repository"
	"github.com/memoza/flashcards-back/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

type API struct {
	jobsService    *service.JobsService
	reviewsService *service.ReviewsService
	decksService   *service.DecksService
	idempotency    *idempotencyStore
}

func NewAPI(
	jobsService *service.JobsService,
	reviewsService *service.ReviewsService,
	decksService *service.DecksService,
) *API {
	return &API{
		jobsService:    jobsService,
		reviewsService: reviewsService,
		decksService:   decksService,
		idempotency:    newIdempotencyStore(),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "record not found")
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, "permission_denied", "caller does not own this record")
	case errors.Is(err, domain.ErrInvalidPayload):
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "request failed")
	}
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

// ownerID extracts the opaque owner identity of the request. Identity
// verification is the gateway's job; this service only scopes data by it.
func ownerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Owner-ID"))
}

func jobResponse(job *domain.Job) map[string]any {
	response := map[string]any{
		"job_id": job.ID,
		"mode":   job.Mode,
		"status": job.Status,
		"phase":  job.Phase,
		"progress": map[string]any{
			"ocr":   map[string]int{"done": job.OCR.Done, "total": job.OCR.Total},
			"write": map[string]int{"done": job.Write.Done, "total": job.Write.Total},
		},
		"created_at": job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if strings.TrimSpace(job.ErrorMessage) != "" {
		response["error"] = map[string]any{
			"code":    "processing_error",
			"message": job.ErrorMessage,
		}
	}
	return response
}

type idempotencyEntry struct {
	PayloadHash uint64
	JobID       string
	CreatedAt   time.Time
}

type idempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idempotencyEntry
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{
		entries: make(map[string]idempotencyEntry),
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		JobID:       jobID,
		CreatedAt:   time.Now().UTC(),
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
