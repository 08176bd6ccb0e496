package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/promptpit/promptpit-backend/internal/arena"
	"github.com/promptpit/promptpit-backend/internal/auth"
	"github.com/promptpit/promptpit-backend/internal/hub"
	"github.com/promptpit/promptpit-backend/internal/store"
	"github.com/promptpit/promptpit-backend/internal/ws"
)

// Deps is everything the routes close over.
type Deps struct {
	Arena *arena.Coordinator
	Store store.Store
	Auth  *auth.Service
	Hub   *hub.Hub
	Log   *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(d.Hub, d.Arena, d.Log))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", Register(d))
		r.Post("/login", Login(d))
		r.With(d.Auth.Middleware).Get("/me", Me(d))
	})

	r.Route("/api/battles", func(r chi.Router) {
		r.Get("/{id}", GetBattle(d))
		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Middleware)
			r.Post("/", RequestMatch(d))
			r.Post("/{id}/join", JoinBattle(d))
			r.Post("/{id}/submit", SubmitPrompt(d))
			r.Post("/{id}/vote", CastVote(d))
		})
	})

	return r
}
