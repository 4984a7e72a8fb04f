// Package httpapi wires the HTTP surface of the cashflow service.
// Handlers stay thin and delegate every business rule to the service layer.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/cashflow/internal/service/account"
	"github.com/tinoosan/cashflow/internal/service/materializer"
	"github.com/tinoosan/cashflow/internal/service/movement"
	"github.com/tinoosan/cashflow/internal/service/recurring"
)

// Jobs triggers the background jobs on demand.
type Jobs interface {
	Materialize(ctx context.Context) (materializer.Report, error)
	ApplyPending(ctx context.Context) (movement.SweepReport, error)
}

// ReadyChecker reports whether the backing store can serve requests.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Services bundles what the handlers delegate to.
type Services struct {
	Accounts  account.Service
	Movements movement.Service
	Recurring recurring.Service
	Jobs      Jobs
	Store     ReadyChecker
}

// Auth configures bearer token checks. An empty Secret disables them and the
// owner is read from the user_id query parameter instead.
type Auth struct {
	Secret   string
	Issuer   string
	Audience string
}

// Server wires handlers and middleware using Chi.
type Server struct {
	accounts account.Service
	moves    movement.Service
	recur    recurring.Service
	jobs     Jobs
	store    ReadyChecker
	auth     Auth
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(svc Services, auth Auth, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		accounts: svc.Accounts,
		moves:    svc.Movements,
		recur:    svc.Recurring,
		jobs:     svc.Jobs,
		store:    svc.Store,
		auth:     auth,
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

func (s *Server) routes() {
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
	s.rt.Get("/v1/dictionary/account-types", s.listAccountTypes)

	s.rt.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/v1/accounts", s.listAccounts)
		r.Post("/v1/accounts", s.postAccount)
		r.Get("/v1/accounts/{id}", s.getAccount)
		r.Patch("/v1/accounts/{id}", s.patchAccount)
		r.Delete("/v1/accounts/{id}", s.deactivateAccount)

		r.Get("/v1/movements", s.listMovements)
		r.Post("/v1/movements", s.postMovement)
		r.Get("/v1/movements/applied", s.appliedMovements)
		r.Get("/v1/movements/{id}", s.getMovement)
		r.Patch("/v1/movements/{id}", s.patchMovement)
		r.Delete("/v1/movements/{id}", s.deleteMovement)

		r.Get("/v1/recurring", s.listRecurring)
		r.Post("/v1/recurring", s.postRecurring)
		r.Get("/v1/recurring/active", s.listActiveRecurring)
		r.Get("/v1/recurring/{id}", s.getRecurring)
		r.Put("/v1/recurring/{id}", s.putRecurring)
		r.Delete("/v1/recurring/{id}", s.deleteRecurring)
		r.Post("/v1/recurring/{id}/apply-now", s.applyNow)
		r.Post("/v1/recurring/{id}/skip-today", s.skipToday)
		r.Post("/v1/recurring/{id}/postpone", s.postpone)
		r.Get("/v1/recurring/{id}/exceptions", s.listExceptions)
		r.Post("/v1/recurring/{id}/exceptions", s.postException)
		r.Delete("/v1/recurring/{id}/exceptions/{exceptionID}", s.deleteException)

		r.Get("/v1/calendar", s.calendar)

		r.Post("/v1/jobs/materialize", s.runMaterialize)
		r.Post("/v1/jobs/apply-pending", s.runApplyPending)
	})
}
