package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-chat-subscription/internal/domain/ports/adapter"
	"ai-chat-subscription/internal/usecase"
)

// Deps are the use cases served over HTTP.
type Deps struct {
	Plans    usecase.PlanUseCase
	Webhooks usecase.WebhookUseCase
	Chat     usecase.ChatUseCase
	Prompts  usecase.PromptUseCase
	Admin    usecase.AdminUseCase
	Billing  usecase.BillingUseCase
	Account  usecase.AccountUseCase
	Identity adapter.IdentityProvider
}

type Options struct {
	CookieName     string
	RequestTimeout time.Duration
	// Metrics exposes /metrics when true.
	Metrics bool
}

type Server struct {
	d    Deps
	opts Options
	log  *zerolog.Logger
}

func NewServer(d Deps, opts Options, logger *zerolog.Logger) *Server {
	return &Server{d: d, opts: opts, log: logger}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.opts.Metrics {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(Timeout(s.opts.RequestTimeout))

		r.Post("/webhooks/stripe", s.handleStripeWebhook)
		r.Get("/plans", s.handleListPlans)

		r.Group(func(r chi.Router) {
			r.Use(Authenticate(s.d.Identity, s.opts.CookieName, s.log))

			r.Get("/me", s.handleMe)
			r.Put("/me/profile", s.handleUpdateProfile)
			r.Post("/me/password", s.handleChangePassword)
			r.Delete("/me", s.handleDeleteAccount)

			r.Post("/billing/checkout", s.handleCheckout)
			r.Post("/billing/portal", s.handlePortal)

			r.Get("/chat", s.handleChatOverview)
			r.Post("/chat", s.handlePostMessage)
			r.Delete("/chat/{id}", s.handleDeleteSession)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin(s.d.Admin, s.log))

				r.Get("/plans", s.handleAdminListPlans)
				r.Post("/plans", s.handleAdminCreatePlan)
				r.Patch("/plans/{id}", s.handleAdminUpdatePlan)
				r.Delete("/plans/{id}", s.handleAdminDeactivatePlan)

				r.Get("/prompt", s.handleAdminGetPrompt)
				r.Patch("/prompt", s.handleAdminSetPrompt)
				r.Post("/prompt/reset", s.handleAdminResetPrompt)

				r.Get("/users", s.handleAdminListUsers)
				r.Get("/users/export.csv", s.handleAdminExportUsers)
				r.Get("/users/{id}", s.handleAdminUserDetail)
				r.Post("/users/{id}", s.handleAdminUserAction)

				r.Get("/webhooks", s.handleAdminListWebhooks)
				r.Post("/webhooks/{id}/replay", s.handleAdminReplayWebhook)

				r.Get("/logs", s.handleAdminLogs)
				r.Get("/dashboard", s.handleAdminDashboard)
			})
		})
	})
	return r
}
