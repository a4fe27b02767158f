package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/memoza/flashcards-back/internal/domain"
	"github.com/memoza/flashcards-back/internal/repository"
	"github.com/memoza/flashcards-back/internal/retrytx"
	"github.com/memoza/flashcards-back/internal/service"
)

type apiFixture struct {
	api   *API
	jobs  *repository.MemoryJobsRepository
	decks *repository.MemoryDecksRepository
	cards *repository.MemoryCardsRepository
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	jobsRepo := repository.NewMemoryJobsRepository()
	cardsRepo := repository.NewMemoryCardsRepository()
	decksRepo := repository.NewMemoryDecksRepository()

	jobsService := service.NewJobsService(jobsRepo, nil, nil, nil)
	reviewsService := service.NewReviewsService(repository.NewMemoryReviewsRepository(), cardsRepo)
	decksService := service.NewDecksService(decksRepo, jobsService, retrytx.Config{}, nil)

	return &apiFixture{
		api:   NewAPI(jobsService, reviewsService, decksService),
		jobs:  jobsRepo,
		decks: decksRepo,
		cards: cardsRepo,
	}
}

func doJSON(t *testing.T, handler http.HandlerFunc, method, path, owner string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set("X-Owner-ID", owner)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	return recorder
}

func TestCreateJobAccepted(t *testing.T) {
	fixture := newAPIFixture(t)

	headers := map[string]string{"Idempotency-Key": "key-1234567890abcdef"}
	resp := doJSON(t, fixture.api.CreateJob, http.MethodPost, "/v1/jobs/create", "owner-1", map[string]any{
		"raw_text":       "photosynthesis notes",
		"target_deck_id": "deck-1",
	}, headers)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", resp.Code, resp.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	jobID, _ := body["job_id"].(string)
	if jobID == "" {
		t.Fatalf("expected job_id in response: %v", body)
	}

	// Same key replays the original job without creating another.
	replay := doJSON(t, fixture.api.CreateJob, http.MethodPost, "/v1/jobs/create", "owner-1", map[string]any{
		"raw_text":       "photosynthesis notes",
		"target_deck_id": "deck-1",
	}, headers)
	if replay.Code != http.StatusAccepted {
		t.Fatalf("expected 202 on replay, got %d", replay.Code)
	}
	var replayBody map[string]any
	_ = json.Unmarshal(replay.Body.Bytes(), &replayBody)
	if replayBody["job_id"] != jobID {
		t.Fatalf("replay must return the original job id")
	}

	// Same key with a different payload conflicts.
	conflict := doJSON(t, fixture.api.CreateJob, http.MethodPost, "/v1/jobs/create", "owner-1", map[string]any{
		"raw_text":       "different notes",
		"target_deck_id": "deck-1",
	}, headers)
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", conflict.Code)
	}
}

func TestCreateJobRequiresIdempotencyKey(t *testing.T) {
	fixture := newAPIFixture(t)

	resp := doJSON(t, fixture.api.CreateJob, http.MethodPost, "/v1/jobs/create", "owner-1", map[string]any{
		"raw_text":       "notes",
		"target_deck_id": "deck-1",
	}, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without key, got %d", resp.Code)
	}
}

func TestJobStatusOwnership(t *testing.T) {
	fixture := newAPIFixture(t)

	headers := map[string]string{"Idempotency-Key": "key-1234567890abcdef"}
	created := doJSON(t, fixture.api.CreateJob, http.MethodPost, "/v1/jobs/create", "owner-1", map[string]any{
		"raw_text":       "notes",
		"target_deck_id": "deck-1",
	}, headers)
	var body map[string]any
	_ = json.Unmarshal(created.Body.Bytes(), &body)
	jobID := body["job_id"].(string)

	ok := doJSON(t, fixture.api.Jobs, http.MethodGet, "/v1/jobs/"+jobID, "owner-1", nil, nil)
	if ok.Code != http.StatusOK {
		t.Fatalf("owner status read: %d body=%s", ok.Code, ok.Body.String())
	}

	denied := doJSON(t, fixture.api.Jobs, http.MethodGet, "/v1/jobs/"+jobID, "owner-2", nil, nil)
	if denied.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign owner, got %d", denied.Code)
	}

	missing := doJSON(t, fixture.api.Jobs, http.MethodGet, "/v1/jobs/nope", "owner-1", nil, nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", missing.Code)
	}
}

func TestReviewsEndpointDuplicateAttempt(t *testing.T) {
	fixture := newAPIFixture(t)
	if err := fixture.cards.CreateCard(context.Background(), &domain.Card{
		ID:      "card-1",
		OwnerID: "owner-1",
		DeckID:  "deck-1",
		Front:   "f",
		Back:    "b",
	}); err != nil {
		t.Fatalf("seed card: %v", err)
	}

	request := map[string]any{
		"card_id":    "card-1",
		"outcome":    "remember",
		"attempt_at": "2026-08-28T10:00:00Z",
	}

	first := doJSON(t, fixture.api.Reviews, http.MethodPost, "/v1/reviews", "owner-1", request, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first review: %d body=%s", first.Code, first.Body.String())
	}
	var firstBody map[string]any
	_ = json.Unmarshal(first.Body.Bytes(), &firstBody)
	if firstBody["applied"] != true {
		t.Fatalf("expected first review applied")
	}

	second := doJSON(t, fixture.api.Reviews, http.MethodPost, "/v1/reviews", "owner-1", request, nil)
	var secondBody map[string]any
	_ = json.Unmarshal(second.Body.Bytes(), &secondBody)
	if secondBody["applied"] != false {
		t.Fatalf("expected duplicate review to be a no-op")
	}
}

func TestSaveDeckEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	if err := fixture.decks.PutSharedDeck(context.Background(), &domain.SharedDeck{
		ID:    "shared-1",
		Title: "Chemistry",
	}); err != nil {
		t.Fatalf("seed shared deck: %v", err)
	}

	resp := doJSON(t, fixture.api.Decks, http.MethodPost, "/v1/decks/shared-1/save", "owner-1", nil, nil)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d body=%s", resp.Code, resp.Body.String())
	}

	var body map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["already_saved"] != false {
		t.Fatalf("first save must not be already_saved")
	}

	again := doJSON(t, fixture.api.Decks, http.MethodPost, "/v1/decks/shared-1/save", "owner-1", nil, nil)
	var againBody map[string]any
	_ = json.Unmarshal(again.Body.Bytes(), &againBody)
	if againBody["already_saved"] != true {
		t.Fatalf("second save must report already_saved")
	}
}

func TestSharedDecksListing(t *testing.T) {
	fixture := newAPIFixture(t)
	if err := fixture.decks.PutSharedDeck(context.Background(), &domain.SharedDeck{
		ID: "shared-1", Title: "Chemistry", CardCount: 12,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	resp := doJSON(t, fixture.api.SharedDecks, http.MethodGet, "/v1/decks/shared", "", nil, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("list: %d", resp.Code)
	}
	var body struct {
		Decks []map[string]any `json:"decks"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Decks) != 1 || body.Decks[0]["title"] != "Chemistry" {
		t.Fatalf("unexpected listing: %+v", body.Decks)
	}
}
