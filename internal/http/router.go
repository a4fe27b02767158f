package httpserver

import (
	"log"
	"net/http"

	"github.com/memoza/flashcards-back/internal/http/handlers"
	"github.com/memoza/flashcards-back/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/jobs/create", deps.API.CreateJob)
	mux.HandleFunc("/v1/jobs/collect", deps.API.CollectJob)
	mux.HandleFunc("/v1/jobs/", deps.API.Jobs)
	mux.HandleFunc("/v1/reviews", deps.API.Reviews)
	mux.HandleFunc("/v1/reviews/", deps.API.StudyState)
	mux.HandleFunc("/v1/decks/shared", deps.API.SharedDecks)
	mux.HandleFunc("/v1/decks/", deps.API.Decks)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
