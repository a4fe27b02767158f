package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/service"
)

type reviewRequest struct {
	CardID    string `json:"card_id"`
	Outcome   string `json:"outcome"`
	AttemptAt string `json:"attempt_at,omitempty"`
	Quality   *int   `json:"quality,omitempty"`
}

// Reviews handles POST /v1/reviews. The attempt timestamp travels with
// the request so a client retry after a lost response resubmits the same
// attempt key and lands as a no-op.
func (api *API) Reviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "X-Owner-ID header is required")
		return
	}

	var request reviewRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}
	if strings.TrimSpace(request.CardID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "card_id is required")
		return
	}
	outcome := domain.ReviewOutcome(request.Outcome)
	if outcome != domain.OutcomeRemember && outcome != domain.OutcomeForget {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "outcome must be remember or forget")
		return
	}

	var attemptAt time.Time
	if strings.TrimSpace(request.AttemptAt) != "" {
		parsed, err := time.Parse(time.RFC3339, request.AttemptAt)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "attempt_at must be RFC3339")
			return
		}
		attemptAt = parsed.UTC()
	}
	if request.Quality != nil && (*request.Quality < 0 || *request.Quality > 5) {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "quality must be between 0 and 5")
		return
	}

	state, applied, err := api.reviewsService.ApplyReview(r.Context(), owner, service.ReviewInput{
		CardID:    request.CardID,
		Outcome:   outcome,
		AttemptAt: attemptAt,
		Quality:   request.Quality,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"applied": applied,
		"state":   studyStateResponse(state),
	})
}

// StudyState handles GET /v1/reviews/{cardId}: the server-observed review
// state clients reconcile pending submissions against.
func (api *API) StudyState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "X-Owner-ID header is required")
		return
	}

	cardID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/reviews/"), "/")
	if cardID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "card id is required")
		return
	}

	state, err := api.reviewsService.GetStudyState(r.Context(), owner, cardID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, studyStateResponse(state))
}

func studyStateResponse(state *domain.StudyState) map[string]any {
	response := map[string]any{
		"card_id":          state.CardID,
		"easiness_factor":  state.EasinessFactor,
		"interval_days":    state.IntervalDays,
		"repetition_count": state.RepetitionCount,
	}
	if !state.LastReviewedAt.IsZero() {
		response["last_reviewed_at"] = state.LastReviewedAt.Format(time.RFC3339Nano)
	}
	if !state.NextReviewAt.IsZero() {
		response["next_review_at"] = state.NextReviewAt.Format(time.RFC3339Nano)
	}
	return response
}
