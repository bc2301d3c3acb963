package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"edulearn-backend/internal/handlers"
	"edulearn-backend/internal/logger"
	"edulearn-backend/internal/middleware"
	"edulearn-backend/internal/websocket"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Documents *handlers.DocumentHandler
	Quizzes   *handlers.QuizHandler
	Results   *handlers.ResultHandler
	Progress  *handlers.ProgressHandler
	Hub       *websocket.Hub
}

func New(jwtAuth *middleware.JWTAuth, h Handlers, limiter *middleware.RateLimiter, frontendURL string, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Document Routes ────
		r.Route("/documents", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(limiter.Middleware).Post("/upload", h.Documents.Upload)
			r.Get("/", h.Documents.List)
			r.Get("/{id}", h.Documents.Get)
			r.Delete("/{id}", h.Documents.Delete)
			r.With(limiter.Middleware).Post("/{id}/reprocess", h.Documents.Reprocess)
			r.With(limiter.Middleware).Post("/{id}/chat", h.Documents.Chat)
		})

		// ──── Quiz Routes ────
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(limiter.Middleware, chimiddleware.Timeout(3*time.Minute)).Post("/", h.Quizzes.Create)
			r.Get("/", h.Quizzes.List)
			r.Get("/{id}", h.Quizzes.Get)
			r.Delete("/{id}", h.Quizzes.Delete)
			r.Post("/{id}/submit", h.Quizzes.Submit)
		})

		// ──── Result Routes ────
		r.Route("/results", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", h.Results.List)
			r.Get("/{id}", h.Results.Get)
		})

		// ──── Progress Routes ────
		r.Route("/progress", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/overview", h.Progress.Overview)
			r.Post("/activity", h.Progress.LogActivity)
		})

		// ──── WebSocket ────
		r.Get("/ws", h.Hub.HandleWebSocket)
	})

	return r
}
