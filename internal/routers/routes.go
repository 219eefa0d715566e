package routers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/hub"
	"peerprep/interview/internal/metrics"
	"peerprep/interview/internal/middleware"
)

const serviceName = "interview"

// NewRouter builds the base router with the middleware stack shared by every
// route.
func NewRouter(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Logger, chimw.Recoverer)
	r.Use(metrics.Middleware(serviceName))
	return r
}

func HealthRoutes(r *chi.Mux, healthHandler *handlers.HealthHandler) {
	r.Get("/healthz", healthHandler.HealthzHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
}

// APIRoutes mounts the bearer-authenticated REST surface.
func APIRoutes(r *chi.Mux, secret string, sessionHandler *handlers.SessionHandler, matchingHandler *handlers.MatchingHandler, feedbackHandler *handlers.FeedbackHandler) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(middleware.RequireAuth(secret))

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.ScheduleSessionHandler)
			r.Get("/", sessionHandler.ListMySessionsHandler)
			r.Get("/open", sessionHandler.ListOpenSessionsHandler)
			r.Get("/{id}", sessionHandler.GetSessionHandler)
			r.Get("/{id}/live", sessionHandler.GetLiveSessionHandler)
			r.Post("/{id}/invite", sessionHandler.InviteHandler)
			r.Post("/{id}/switch-roles", sessionHandler.SwitchRolesHandler)
			r.Post("/{id}/question", sessionHandler.ChangeQuestionHandler)
			r.Post("/{id}/end", sessionHandler.EndInterviewHandler)
			r.Post("/{id}/cancel", sessionHandler.CancelSessionHandler)

			r.Post("/{id}/matching", matchingHandler.StartMatchingHandler)
			r.Get("/{id}/matching", matchingHandler.GetMatchingStatusHandler)
			r.Delete("/{id}/matching", matchingHandler.CancelMatchingHandler)

			r.Get("/{id}/feedback", feedbackHandler.GetSessionFeedbackHandler)
		})

		r.Post("/matching/{requestId}/confirm", matchingHandler.ConfirmMatchHandler)
		r.Post("/matching/{requestId}/expire", matchingHandler.ExpireMatchHandler)

		r.Post("/feedback", feedbackHandler.SubmitFeedbackHandler)
		r.Get("/feedback/{id}", feedbackHandler.GetFeedbackHandler)
	})
}

// RealtimeRoutes mounts the WebSocket endpoint. It authenticates with the
// token query parameter and stays outside the request timeout.
func RealtimeRoutes(r *chi.Mux, wsHandler *hub.Handler) {
	r.Get("/ws/session/{id}", wsHandler.ServeWS)
}
