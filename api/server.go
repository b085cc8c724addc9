/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestLogger: Structured request logging (slog JSON)
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. Heartbeat:     Liveness probe on /health
  5. CORS:          Cross-origin requests for frontend
  6. RequireAuth:   Bearer-token verification (all but /api/auth/login)

ROUTE GROUPS:
  /api/auth/*          Login and identity
  /api/submissions/*   Earn/use lifecycle
  /api/balance         Balance views
  /api/team/*          Team overview for approvers
  /api/reports/*       Series and PDF statement
  /api/admin/*         User/department/settings/audit administration

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authentication middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, env string) *chi.Mux {
	r := chi.NewRouter()

	logFormat := httplog.SchemaECS.Concise(env == "development")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "toil-tracker"),
		slog.String("env", env),
	)

	// Middleware
	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Heartbeat("/health"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Everything below requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/auth/me", h.Me)

			r.Route("/submissions", func(r chi.Router) {
				r.Get("/", h.ListSubmissions)
				r.Post("/hours", h.LogHours)
				r.Post("/requests", h.RequestTimeOff)
				r.Get("/pending", h.ListPending)
				r.Post("/{id}/approve", h.Approve)
				r.Post("/{id}/reject", h.Reject)
			})

			r.Get("/balance", h.GetBalance)
			r.Get("/team/balances", h.GetTeamBalances)

			r.Route("/reports", func(r chi.Router) {
				r.Get("/monthly", h.MonthlyReport)
				r.Get("/statement.pdf", h.Statement)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Get("/users", h.ListUsers)
				r.Post("/users", h.CreateUser)
				r.Put("/users/{id}", h.UpdateUser)
				r.Get("/departments", h.ListDepartments)
				r.Post("/departments", h.CreateDepartment)
				r.Delete("/departments/{id}", h.DeleteDepartment)
				r.Get("/settings", h.GetSettings)
				r.Put("/settings", h.UpdateSettings)
				r.Get("/audit", h.GetAudit)
			})
		})
	})

	return r
}
