package handlers

import (
	"net/http"
	"strings"
	"time"
)

type saveDeckRequest struct {
	DeckTitle string `json:"deck_title,omitempty"`
}

// SharedDecks handles GET /v1/decks/shared.
func (api *API) SharedDecks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	decks, err := api.decksService.ListShared(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	items := make([]map[string]any, 0, len(decks))
	for _, deck := range decks {
		items = append(items, map[string]any{
			"deck_id":    deck.ID,
			"title":      deck.Title,
			"card_count": deck.CardCount,
			"save_count": deck.SaveCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"decks": items})
}

// Decks routes POST /v1/decks/{id}/save.
func (api *API) Decks(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/decks/"), "/")
	sharedDeckID, found := strings.CutSuffix(rest, "/save")
	if !found || sharedDeckID == "" {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown deck operation")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	owner := ownerID(r)
	if owner == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "X-Owner-ID header is required")
		return
	}

	var request saveDeckRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &request); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
			return
		}
	}

	result, err := api.decksService.Save(r.Context(), owner, sharedDeckID, request.DeckTitle)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Retry-After", "2")
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":        result.Job.ID,
		"status":        "queued",
		"status_url":    "/v1/jobs/" + result.Job.ID,
		"already_saved": result.AlreadySaved,
		"accepted_at":   result.Job.CreatedAt.Format(time.RFC3339Nano),
	})
}
